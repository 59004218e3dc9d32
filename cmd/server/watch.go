package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print urgent-reply alerts as they are published",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.notifier == nil {
			return errors.New("watch requires the postgres database driver")
		}

		alerts, err := a.notifier.Listen(ctx)
		if err != nil {
			return err
		}
		for alert := range alerts {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", alert.Level, alert.ConversationID)
		}
		return nil
	},
}
