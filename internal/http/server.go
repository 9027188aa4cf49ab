// Package http serves the read-only query API for a built index.
package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/chatindex/internal/logging"
	"github.com/fyrsmithlabs/chatindex/internal/search"
)

// Searcher is the read surface the API serves.
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]search.Result, error)
	Conversation(ctx context.Context, idOrPrefix string) (*search.ConversationView, error)
	ConversationKeywords(ctx context.Context, idOrPrefix string) ([]search.Keyword, error)
	TopKeywords(ctx context.Context, n int) ([]search.Keyword, error)
	Stats(ctx context.Context) (*search.CorpusStats, error)
}

// Server provides HTTP endpoints over a Searcher.
type Server struct {
	echo     *echo.Echo
	searcher Searcher
	logger   *logging.Logger
	config   *Config
	metrics  *Metrics
	limiter  *rate.Limiter
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// SearchRate is the sustained searches per second. 0 disables limiting.
	SearchRate  float64
	SearchBurst int

	// AuthToken, when set, is required as a bearer token on /api/v1.
	AuthToken string
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewServer creates a new HTTP server.
func NewServer(searcher Searcher, logger *logging.Logger, cfg *Config) (*Server, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 8765,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		searcher: searcher,
		logger:   logger.Named("http"),
		config:   cfg,
		metrics:  NewMetrics(),
	}
	if cfg.SearchRate > 0 {
		burst := cfg.SearchBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.SearchRate), burst)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(s.observe)

	s.registerRoutes()
	return s, nil
}

// observe logs each request and records its metrics. Handler errors are
// rendered here so the recorded status is the one sent.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		s.metrics.InFlight.Inc()
		defer s.metrics.InFlight.Dec()

		if err := next(c); err != nil {
			c.Error(err)
		}

		duration := time.Since(start)
		status := c.Response().Status
		s.metrics.observe(c.Request().Method, routeLabel(c), status, duration)

		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		)
		return nil
	}
}

func routeLabel(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	if s.config.AuthToken != "" {
		token := []byte(s.config.AuthToken)
		v1.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup:  "header:" + echo.HeaderAuthorization,
			AuthScheme: "Bearer",
			Validator: func(key string, _ echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), token) == 1, nil
			},
		}))
	}
	v1.GET("/search", s.handleSearch)
	v1.GET("/conversations/:id", s.handleConversation)
	v1.GET("/conversations/:id/keywords", s.handleConversationKeywords)
	v1.GET("/keywords", s.handleKeywords)
	v1.GET("/stats", s.handleStats)
}

// Echo exposes the router for tests and extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
