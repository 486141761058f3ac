// Package httpapi serves the read API over the article store.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"HotspotLite/internal/ports"
	"HotspotLite/internal/usecase"
)

// Options tunes the HTTP listener.
type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Reclusterer rebuilds events on demand.
type Reclusterer interface {
	Recluster(ctx context.Context) (int, error)
}

// StatusReader exposes the per-source status board.
type StatusReader interface {
	Snapshot() []usecase.SourceStatus
	LastRun() (usecase.RunResult, bool)
}

// Deps are the collaborators of the server. Runner, Status and Gatherer are optional.
type Deps struct {
	Store    ports.ReadRepository
	Runner   Reclusterer
	Status   StatusReader
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Server is the echo-based read API.
type Server struct {
	store    ports.ReadRepository
	runner   Reclusterer
	status   StatusReader
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	now      func() time.Time
	opts     Options
}

// NewServer applies option defaults.
func NewServer(deps Deps, opts Options) *Server {
	if opts.Port <= 0 {
		opts.Port = 3000
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Server{
		store:    deps.Store,
		runner:   deps.Runner,
		status:   deps.Status,
		gatherer: deps.Gatherer,
		logger:   logger,
		now:      now,
		opts:     opts,
	}
}

// Handler builds the routed echo instance.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error("http request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency", v.Latency,
					"request_id", v.RequestID,
					"error", v.Error)
				return nil
			}
			s.logger.Debug("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID)
			return nil
		},
	}))

	e.GET("/health", s.handleHealth)
	e.GET("/feed", s.handleFeed)
	e.GET("/items/:id", s.handleItem)
	e.GET("/events", s.handleEvents)
	e.GET("/sources", s.handleSources)
	e.POST("/recluster", s.handleRecluster)
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return e
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error("server shutdown failed", "error", shutdownErr)
		}
	}()

	s.logger.Info("read api started", "addr", addr)
	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info("read api stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}
