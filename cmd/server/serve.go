package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpserver "healthchat/internal/http"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Alerts need LISTEN, which only the postgres store provides.
	var alerts httpserver.AlertSource
	if a.notifier != nil {
		alerts = a.notifier
	}
	srv := httpserver.NewServer(httpserver.NewHandler(a.store, a.pipeline, alerts, a.logger.WithField("component", "http")), a.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(":" + strconv.Itoa(a.cfg.Server.Port))
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.logger.Infow("shutting down")
		return srv.Shutdown(context.WithoutCancel(ctx), shutdownTimeout)
	}
}
