// Package mcp exposes the index to MCP clients as read-only tools over stdio.
//
// Tools:
//   - search: ranked full-text search with role/model/date/language filters
//   - get_conversation: one conversation in turn order, by id or id prefix
//   - corpus_stats: counts, date span and distributions
//   - keywords: corpus-wide or per-conversation keywords
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chatindex/internal/logging"
	"github.com/fyrsmithlabs/chatindex/internal/search"
	"github.com/fyrsmithlabs/chatindex/internal/telemetry"
)

var errInvalidArgument = errors.New("invalid argument")

// Searcher is the read surface the tools call.
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]search.Result, error)
	Conversation(ctx context.Context, idOrPrefix string) (*search.ConversationView, error)
	ConversationKeywords(ctx context.Context, idOrPrefix string) ([]search.Keyword, error)
	TopKeywords(ctx context.Context, n int) ([]search.Keyword, error)
	Stats(ctx context.Context) (*search.CorpusStats, error)
}

// Server is an MCP server over a Searcher.
type Server struct {
	mcp      *mcp.Server
	searcher Searcher
	config   *Config
	logger   *logging.Logger
	metrics  *Metrics
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "chatindex")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// MaxLimit caps result counts any tool returns (default: 100)
	MaxLimit int

	// Telemetry is optional; the global meter is used when nil.
	Telemetry *telemetry.Telemetry
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:     "chatindex",
		Version:  "dev",
		MaxLimit: 100,
	}
}

// NewServer creates an MCP server with the tools registered.
func NewServer(cfg *Config, searcher Searcher, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.MaxLimit < 1 {
		return nil, fmt.Errorf("max limit must be at least 1, got %d", cfg.MaxLimit)
	}

	meter := otel.Meter(InstrumentationName)
	if cfg.Telemetry != nil {
		meter = cfg.Telemetry.Meter(InstrumentationName)
	}
	metrics, err := NewMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		searcher: searcher,
		config:   cfg,
		logger:   logger.Named("mcp"),
		metrics:  metrics,
	}
	s.registerTools()
	return s, nil
}

// Run serves on the stdio transport until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// instrument wraps a tool handler with metrics and failure logging.
func instrument[In, Out any](s *Server, tool string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		res, out, err := h(ctx, req, in)
		s.metrics.RecordInvocation(ctx, tool, time.Since(start), err)
		if err != nil {
			s.logger.Warn(ctx, "mcp tool failed",
				zap.String("tool", tool),
				zap.String("reason", categorizeError(err)),
				zap.Error(err))
		}
		return res, out, err
	}
}

// clamp applies the default for unset limits and caps at MaxLimit.
func (s *Server) clamp(limit, def int) (int, error) {
	switch {
	case limit < 0:
		return 0, fmt.Errorf("%w: limit must not be negative, got %d", errInvalidArgument, limit)
	case limit == 0:
		limit = def
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	return limit, nil
}
