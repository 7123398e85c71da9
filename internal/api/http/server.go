package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshuadavidthomas/meteofetch/internal/fetch"
	"github.com/joshuadavidthomas/meteofetch/internal/geocode"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
	"github.com/joshuadavidthomas/meteofetch/internal/metrics"
)

// Server exposes a coordinator over HTTP.
type Server struct {
	app      *fiber.App
	coord    *fetch.Coordinator
	resolver geocode.Resolver
	metrics  *metrics.Recorder
	log      *log.Logger
}

type Option func(*Server)

// WithResolver enables the "location" field of fetch requests.
func WithResolver(r geocode.Resolver) Option {
	return func(s *Server) { s.resolver = r }
}

// WithMetrics mounts /metrics for the recorder's registry.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.log = logging.Component(l, "http") }
}

func New(coord *fetch.Coordinator, opts ...Option) *Server {
	s := &Server{coord: coord, log: logging.Component(nil, "http")}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "meteofetch",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(s.requestLogger)

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if reg := s.metrics.Registry(); reg != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	RegisterRoutes(s.app, s)
	return s
}

// App returns the underlying fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	s.log.Debug("request", "method", c.Method(), "path", c.Path(), "status", status, "duration", time.Since(start))
	return err
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
