package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	mw "github.com/tphakala/pokerwatch/internal/api/middleware"
	v1 "github.com/tphakala/pokerwatch/internal/api/v1"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/observability"
)

// Server is the HTTP server of pokerwatch. It owns the echo instance, the
// middleware stack and the v1 controller.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	dataStore datastore.Interface
	pipeline  v1.Pipeline
	metrics   *observability.Metrics

	apiController *v1.Controller
	startTime     time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithDataStore sets the datastore for the server.
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) {
		s.dataStore = ds
	}
}

// WithPipeline sets the orchestrator driven by the API.
func WithPipeline(p v1.Pipeline) ServerOption {
	return func(s *Server) {
		s.pipeline = p
	}
}

// WithMetrics exposes the given registry on /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger overrides the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		settings:  settings,
		log:       GetLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dataStore == nil {
		return nil, fmt.Errorf("api server requires a datastore")
	}
	if s.pipeline == nil {
		return nil, fmt.Errorf("api server requires a pipeline")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Listen),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, mw.SkipMetrics))
	s.echo.Use(mw.NewCORS(mw.SecurityConfig{AllowedOrigins: s.config.AllowedOrigins}))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders())
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	s.apiController = v1.New(s.echo, s.dataStore, s.settings, s.pipeline)

	s.log.Debug("routes initialized", logger.Int("routes", len(s.echo.Routes())))
}

// healthCheck is the liveness probe. Pipeline health lives under the API.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "alive",
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln
	s.log.Info("starting HTTP server", logger.String("address", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start("")
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.apiController.Shutdown()
		return err
	case <-ctx.Done():
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server and waits for API-triggered cycles.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.apiController.Shutdown()
	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
