package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"healthchat/internal/logging"
)

// Server is the HTTP front end of the assistant.
type Server struct {
	echo   *echo.Echo
	logger *logging.Logger
}

// NewServer creates an echo server with h's routes and request logging.
func NewServer(h *Handler, logger *logging.Logger) *Server {
	logger = logging.OrNop(logger)
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				logger.Errorw("request failed", append(fields, "error", v.Error)...)
				return nil
			}
			logger.Infow("request", fields...)
			return nil
		},
	}))

	h.RegisterRoutes(e)
	return &Server{echo: e, logger: logger}
}

// Echo exposes the underlying router.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start starts the HTTP server.  It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Infow("listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server, waiting at most timeout for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}
