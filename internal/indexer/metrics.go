package indexer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the OTEL scope for indexer spans and instruments.
const InstrumentationName = "github.com/fyrsmithlabs/chatindex/internal/indexer"

// Metrics holds the indexer's OpenTelemetry instruments.
type Metrics struct {
	conversationsTotal metric.Int64Counter
	messagesTotal      metric.Int64Counter
	skippedTotal       metric.Int64Counter
	duplicatesTotal    metric.Int64Counter
	keywordsTotal      metric.Int64Counter
	buildFailures      metric.Int64Counter

	buildDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counter := func(dst *metric.Int64Counter, name, desc, unit string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	}
	counter(&m.conversationsTotal, "chatindex.indexer.conversations.total", "Conversations written to the index", "{conversation}")
	counter(&m.messagesTotal, "chatindex.indexer.messages.total", "Messages written to the index", "{message}")
	counter(&m.skippedTotal, "chatindex.indexer.records.skipped.total", "Export records that produced no conversation", "{record}")
	counter(&m.duplicatesTotal, "chatindex.indexer.messages.duplicate.total", "Messages skipped because their id was already stored", "{message}")
	counter(&m.keywordsTotal, "chatindex.indexer.keywords.total", "Keyword rows written by enrichment", "{keyword}")
	counter(&m.buildFailures, "chatindex.indexer.build.failed.total", "Builds that returned an error", "{build}")
	if err != nil {
		return nil, err
	}

	m.buildDuration, err = meter.Float64Histogram(
		"chatindex.indexer.build.duration.seconds",
		metric.WithDescription("Wall time of a full build"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordBuild(ctx context.Context, s *Stats) {
	if m == nil {
		return
	}
	m.conversationsTotal.Add(ctx, int64(s.ConversationCount))
	m.messagesTotal.Add(ctx, int64(s.MessageCount))
	m.skippedTotal.Add(ctx, int64(s.SkippedRecords))
	m.duplicatesTotal.Add(ctx, int64(s.DuplicateMessages))
	m.keywordsTotal.Add(ctx, int64(s.KeywordCount))
	m.buildDuration.Record(ctx, s.Duration.Seconds())
}

func (m *Metrics) recordFailure(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.buildFailures.Add(ctx, 1)
	m.buildDuration.Record(ctx, elapsed.Seconds())
}
