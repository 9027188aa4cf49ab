// Package indexer turns a ChatGPT export into a searchable index.
//
// A build parses the whole export, streams conversations into the store in
// batched transactions, then runs keyword enrichment once over the committed
// corpus. Only parse and write failures abort a build; enrichment failures
// leave the index searchable without keywords.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/chatindex/internal/conversation"
	"github.com/fyrsmithlabs/chatindex/internal/enrichment"
	"github.com/fyrsmithlabs/chatindex/internal/language"
	"github.com/fyrsmithlabs/chatindex/internal/logging"
	"github.com/fyrsmithlabs/chatindex/internal/secrets"
	"github.com/fyrsmithlabs/chatindex/internal/store"
	"github.com/fyrsmithlabs/chatindex/internal/telemetry"
)

// Meta keys written at the start of every build.
const (
	MetaBuildID = "build_id"
	MetaBuiltAt = "built_at"
)

// DefaultBatchSize is the number of conversations committed per transaction.
const DefaultBatchSize = 100

const progressInterval = 5 * time.Second

// Options controls a build.
type Options struct {
	// Rebuild drops every index table before writing.
	Rebuild bool

	// BatchSize is conversations per transaction; 0 means DefaultBatchSize.
	BatchSize int

	Store store.Options
}

// Deps are the collaborators of an Indexer. Extractor and Logger are
// required; the rest fall back to no-op implementations.
type Deps struct {
	Detector  language.Detector
	Extractor *enrichment.Extractor
	Scrubber  secrets.Scrubber
	Logger    *logging.Logger
	Telemetry *telemetry.Telemetry
}

// Stats summarizes a completed build.
type Stats struct {
	BuildID           string        `json:"build_id"`
	DBPath            string        `json:"db_path"`
	ConversationCount int           `json:"conversation_count"`
	MessageCount      int           `json:"message_count"`
	KeywordCount      int           `json:"keyword_count"`
	SkippedRecords    int           `json:"skipped_records"`
	DuplicateMessages int           `json:"duplicate_messages"`
	ScrubbedMessages  int           `json:"scrubbed_messages,omitempty"`
	Duration          time.Duration `json:"duration"`
}

// Indexer builds indexes. Builds must not run concurrently against the
// same database path.
type Indexer struct {
	opts      Options
	parser    *conversation.Parser
	detector  language.Detector
	extractor *enrichment.Extractor
	scrubber  secrets.Scrubber
	logger    *logging.Logger
	tracer    trace.Tracer
	metrics   *Metrics
}

// New creates an Indexer.
func New(opts Options, deps Deps) (*Indexer, error) {
	if deps.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.BatchSize < 0 {
		return nil, fmt.Errorf("batch size must be >= 0, got %d", opts.BatchSize)
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Store == (store.Options{}) {
		opts.Store = store.DefaultOptions()
	}
	if deps.Detector == nil {
		deps.Detector = language.NopDetector{}
	}
	if deps.Scrubber == nil {
		deps.Scrubber = secrets.NoopScrubber{}
	}

	metrics, err := NewMetrics(deps.Telemetry.Meter(InstrumentationName))
	if err != nil {
		return nil, fmt.Errorf("creating indexer metrics: %w", err)
	}

	return &Indexer{
		opts:      opts,
		parser:    conversation.NewParser(),
		detector:  deps.Detector,
		extractor: deps.Extractor,
		scrubber:  deps.Scrubber,
		logger:    deps.Logger,
		tracer:    deps.Telemetry.Tracer(InstrumentationName),
		metrics:   metrics,
	}, nil
}

// Build indexes the export at exportPath into the database at dbPath.
func (ix *Indexer) Build(ctx context.Context, exportPath, dbPath string) (*Stats, error) {
	start := time.Now()
	stats := &Stats{BuildID: uuid.NewString(), DBPath: dbPath}

	ctx = logging.WithBuildID(ctx, stats.BuildID)
	ctx, span := ix.tracer.Start(ctx, "Indexer.Build", trace.WithAttributes(
		attribute.String("build.id", stats.BuildID),
		attribute.Bool("build.rebuild", ix.opts.Rebuild),
		attribute.Int("build.batch_size", ix.opts.BatchSize),
	))
	defer span.End()

	fail := func(err error) (*Stats, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ix.metrics.recordFailure(ctx, time.Since(start))
		ix.logger.Error(ctx, "index build failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	// The whole export is parsed before anything is written, so format
	// errors never touch an existing index.
	export, err := ix.parser.ParseFile(ctx, exportPath)
	if err != nil {
		return fail(fmt.Errorf("parsing export %s: %w", exportPath, err))
	}
	ix.logger.Info(ctx, "export loaded",
		zap.String("export", exportPath),
		zap.Int("records", export.Len()),
		zap.Bool("language_detection", ix.detector.Supported()),
		zap.Bool("scrub_secrets", ix.scrubber.IsEnabled()))

	st, err := ix.openForWrite(ctx, dbPath)
	if err != nil {
		return fail(err)
	}
	stats.DBPath = st.Path()

	ingestErr := ix.ingest(ctx, st, export, stats)
	if err := st.Close(); err != nil && ingestErr == nil {
		ingestErr = fmt.Errorf("closing index: %w", err)
	}
	if ingestErr != nil {
		return fail(ingestErr)
	}

	parsed := export.Stats()
	stats.SkippedRecords = parsed.Skipped()
	for _, pe := range parsed.Errors {
		ix.logger.Warn(ctx, "export record skipped", zap.Int("index", pe.Index), zap.String("reason", pe.Error))
	}

	stats.KeywordCount = ix.enrich(ctx, stats.DBPath)
	stats.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("build.conversations", stats.ConversationCount),
		attribute.Int("build.messages", stats.MessageCount),
		attribute.Int("build.keywords", stats.KeywordCount),
		attribute.Int("build.skipped", stats.SkippedRecords),
		attribute.Int("build.duplicates", stats.DuplicateMessages),
	)
	ix.metrics.recordBuild(ctx, stats)
	ix.logger.Info(ctx, "index built",
		zap.String("db", stats.DBPath),
		zap.Int("conversations", stats.ConversationCount),
		zap.Int("messages", stats.MessageCount),
		zap.Int("keywords", stats.KeywordCount),
		zap.Int("skipped_records", stats.SkippedRecords),
		zap.Int("duplicate_messages", stats.DuplicateMessages),
		zap.Duration("duration", stats.Duration))

	return stats, nil
}

// openForWrite opens the target store, applying rebuild semantics, and
// stamps the build metadata.
func (ix *Indexer) openForWrite(ctx context.Context, dbPath string) (*store.Store, error) {
	st, err := store.Open(ctx, dbPath, ix.opts.Store)
	if errors.Is(err, store.ErrInvalidStore) && ix.opts.Rebuild {
		// Nothing in a non-SQLite file can be dropped table by table.
		ix.logger.Warn(ctx, "replacing unreadable index file", zap.String("db", dbPath), zap.Error(err))
		for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				return nil, fmt.Errorf("removing %s: %w", p, rmErr)
			}
		}
		st, err = store.Open(ctx, dbPath, ix.opts.Store)
	}
	if err != nil {
		return nil, err
	}

	if ix.opts.Rebuild {
		if err := st.DropAll(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("dropping index tables: %w", err)
		}
		if err := st.Init(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		ix.logger.Info(ctx, "index tables dropped for rebuild", zap.String("db", st.Path()))
	}

	builtAt := time.Now().UTC().Format(time.RFC3339)
	if err := st.SetMeta(ctx, MetaBuildID, logging.BuildIDFromContext(ctx)); err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := st.SetMeta(ctx, MetaBuiltAt, builtAt); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// ingest writes every conversation, committing every BatchSize
// conversations. A failure rolls back the open batch only.
func (ix *Indexer) ingest(ctx context.Context, st *store.Store, export *conversation.Export, stats *Stats) error {
	ctx, span := ix.tracer.Start(ctx, "Indexer.ingest")
	defer span.End()

	progress := &rate.Sometimes{First: 1, Interval: progressInterval}
	total := export.Len()

	var tx *store.Tx
	inBatch := 0
	commit := func() error {
		if tx == nil {
			return nil
		}
		err := tx.Commit()
		tx, inBatch = nil, 0
		return err
	}

	err := export.Each(ctx, func(c *conversation.Conversation) error {
		if tx == nil {
			var err error
			if tx, err = st.Begin(ctx); err != nil {
				return err
			}
		}
		if err := ix.writeConversation(ctx, tx, c, stats); err != nil {
			return err
		}

		inBatch++
		if inBatch < ix.opts.BatchSize {
			return nil
		}
		if err := commit(); err != nil {
			return fmt.Errorf("committing batch: %w", err)
		}
		progress.Do(func() {
			ix.logger.Info(ctx, "indexing progress",
				zap.Int("conversations", stats.ConversationCount),
				zap.Int("messages", stats.MessageCount),
				zap.Int("records", total))
		})
		return nil
	})
	if err != nil {
		if tx != nil {
			_ = tx.Rollback()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	span.SetAttributes(attribute.Int("ingest.conversations", stats.ConversationCount))
	return nil
}

func (ix *Indexer) writeConversation(ctx context.Context, tx *store.Tx, c *conversation.Conversation, stats *Stats) error {
	ctx = logging.WithConversationID(ctx, c.ID)

	if err := tx.UpsertConversation(ctx, c); err != nil {
		return err
	}

	for i := range c.Messages {
		m := &c.Messages[i]
		if ix.scrub(m) {
			stats.ScrubbedMessages++
		}
		m.Lang = ix.detector.Detect(m.Content)

		inserted, err := tx.InsertMessage(ctx, c.Title, m)
		if err != nil {
			return err
		}
		if !inserted {
			stats.DuplicateMessages++
			ix.logger.Debug(ctx, "duplicate message skipped", zap.String("message.id", m.ID))
			continue
		}
		stats.MessageCount++
	}

	// A conversation whose messages were all duplicates keeps no row.
	dropped, err := tx.DropIfEmpty(ctx, c.ID)
	if err != nil {
		return err
	}
	if dropped {
		ix.logger.Debug(ctx, "conversation dropped: every message was a duplicate")
		return nil
	}

	if err := tx.RefreshMessageCount(ctx, c.ID); err != nil {
		return fmt.Errorf("refreshing message count for %s: %w", c.ID, err)
	}
	stats.ConversationCount++
	return nil
}

// scrub redacts secrets in place and reports whether anything changed.
func (ix *Indexer) scrub(m *conversation.Message) bool {
	if !ix.scrubber.IsEnabled() {
		return false
	}
	content := ix.scrubber.Scrub(m.Content)
	code := ix.scrubber.Scrub(m.Code)
	m.Content, m.Code = content.Scrubbed, code.Scrubbed
	return content.HasFindings() || code.HasFindings()
}

// enrich runs keyword extraction on a fresh connection. Failures degrade to
// zero keywords.
func (ix *Indexer) enrich(ctx context.Context, dbPath string) int {
	ctx, span := ix.tracer.Start(ctx, "enrichment.Run")
	defer span.End()

	st, err := store.Open(ctx, dbPath, ix.opts.Store)
	if err != nil {
		span.RecordError(err)
		ix.logger.Warn(ctx, "keyword extraction skipped", zap.Error(err))
		return 0
	}
	defer st.Close()

	n, err := ix.extractor.Run(ctx, st)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ix.logger.Warn(ctx, "keyword extraction failed; index has no keywords", zap.Error(err))
		return 0
	}
	span.SetAttributes(attribute.Int("enrichment.keywords", n))
	return n
}
