// Package watch rebuilds the index whenever the export file changes.
//
// The export's parent directory is watched rather than the file itself so
// that editors and download managers which replace the file by rename are
// still seen. Bursts of events are debounced into one rebuild.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chatindex/internal/indexer"
	"github.com/fyrsmithlabs/chatindex/internal/logging"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce is the quiet period after the last event before a rebuild.
const DefaultDebounce = 2 * time.Second

// Builder runs one index build. *indexer.Indexer satisfies it.
type Builder interface {
	Build(ctx context.Context, exportPath, dbPath string) (*indexer.Stats, error)
}

// Config configures a Watcher.
type Config struct {
	ExportPath string
	DBPath     string
	Debounce   time.Duration

	// BuildOnStart runs one build before waiting for changes.
	BuildOnStart bool

	// OnBuild, if set, is called after every build attempt.
	OnBuild func(*indexer.Stats, error)
}

// Watcher watches an export file and rebuilds on change.
type Watcher struct {
	cfg     Config
	export  string
	builder Builder
	logger  *logging.Logger
}

// New validates cfg and returns a Watcher. Nothing is watched until Run.
func New(cfg Config, builder Builder, logger *logging.Logger) (*Watcher, error) {
	if builder == nil {
		return nil, fmt.Errorf("builder is required")
	}
	if cfg.ExportPath == "" {
		return nil, fmt.Errorf("export path is required")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.Debounce < 0 {
		return nil, fmt.Errorf("debounce must not be negative, got %s", cfg.Debounce)
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	export, err := filepath.Abs(cfg.ExportPath)
	if err != nil {
		return nil, fmt.Errorf("resolving export path: %w", err)
	}

	return &Watcher{
		cfg:     cfg,
		export:  export,
		builder: builder,
		logger:  logger.Named("watch"),
	}, nil
}

// Run watches until ctx is cancelled. Build failures are logged and the
// watch continues; only watcher setup errors are returned.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	defer func() { _ = fw.Close() }()

	dir := filepath.Dir(w.export)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.Info(ctx, "watching export",
		zap.String("export", w.export),
		zap.Duration("debounce", w.cfg.Debounce))

	if w.cfg.BuildOnStart {
		w.build(ctx)
	}

	timer := time.NewTimer(w.cfg.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "watch stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug(ctx, "export changed",
				zap.String("op", event.Op.String()))
			timer.Reset(w.cfg.Debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "filesystem watcher error", zap.Error(err))

		case <-timer.C:
			w.build(ctx)
		}
	}
}

// relevant reports whether event changed the export's content.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.export {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (w *Watcher) build(ctx context.Context) {
	w.logger.Info(ctx, "rebuilding index", zap.String("export", w.export))
	stats, err := w.builder.Build(ctx, w.export, w.cfg.DBPath)
	switch {
	case err != nil && ctx.Err() != nil:
		// Cancelled mid-build; Run returns on the next select.
	case err != nil:
		w.logger.Error(ctx, "watch rebuild failed", zap.Error(err))
	default:
		w.logger.Info(ctx, "watch rebuild complete",
			zap.Int("conversations", stats.ConversationCount),
			zap.Int("messages", stats.MessageCount),
			zap.Duration("duration", stats.Duration))
	}
	if w.cfg.OnBuild != nil {
		w.cfg.OnBuild(stats, err)
	}
}
