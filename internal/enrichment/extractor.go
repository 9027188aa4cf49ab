// Package enrichment derives per-conversation keywords from indexed
// messages with language-aware TF-IDF.
//
// Conversations are grouped by their dominant message language and each
// group is weighted independently, so a Russian conversation competes only
// with other Russian conversations for distinctive terms. Failures are scoped
// to a group: a group that yields no vocabulary is logged and skipped.
package enrichment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chatindex/internal/conversation"
	"github.com/fyrsmithlabs/chatindex/internal/language"
	"github.com/fyrsmithlabs/chatindex/internal/logging"
	"github.com/fyrsmithlabs/chatindex/internal/store"
)

// Config configures keyword extraction.
type Config struct {
	// TopN is the number of keywords kept per conversation.
	TopN int `koanf:"top_n"`

	// MaxFeatures caps the vocabulary of each language group.
	MaxFeatures int `koanf:"max_features"`

	// MaxDF is the maximum document-frequency ratio of a kept term.
	MaxDF float64 `koanf:"max_df"`

	// NGramMax is the longest n-gram considered.
	NGramMax int `koanf:"ngram_max"`
}

// NewDefaultConfig returns the default extraction settings.
func NewDefaultConfig() *Config {
	return &Config{
		TopN:        10,
		MaxFeatures: 50000,
		MaxDF:       0.8,
		NGramMax:    2,
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.TopN <= 0 {
		return fmt.Errorf("top_n must be > 0, got %d", c.TopN)
	}
	if c.MaxFeatures < 0 {
		return fmt.Errorf("max_features must be >= 0, got %d", c.MaxFeatures)
	}
	if c.MaxDF <= 0 || c.MaxDF > 1 {
		return fmt.Errorf("max_df must be in (0, 1], got %f", c.MaxDF)
	}
	if c.NGramMax < 1 {
		return fmt.Errorf("ngram_max must be >= 1, got %d", c.NGramMax)
	}
	return nil
}

// Extractor writes TF-IDF keywords for every conversation in a store.
type Extractor struct {
	cfg    *Config
	logger *logging.Logger
}

// NewExtractor creates an extractor. A nil cfg uses defaults.
func NewExtractor(cfg *Config, logger *logging.Logger) (*Extractor, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid enrichment config: %w", err)
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Extractor{cfg: cfg, logger: logger}, nil
}

// document is one conversation's concatenated prose plus its language profile.
type document struct {
	conversationID string
	text           string
	dominant       string
	languages      []string
}

// Run replaces all stored keywords with a fresh extraction and returns the
// number of keyword rows written.
func (e *Extractor) Run(ctx context.Context, s *store.Store) (int, error) {
	start := time.Now()

	docs, err := loadDocuments(ctx, s.DB())
	if err != nil {
		return 0, err
	}
	profiles, err := loadLanguages(ctx, s.DB())
	if err != nil {
		return 0, err
	}

	groups := make(map[string][]*document)
	for _, d := range docs {
		p := profiles[d.conversationID]
		if p == nil {
			d.dominant = language.Default
			d.languages = []string{language.Default}
		} else {
			d.dominant = p.dominant()
			d.languages = p.codes()
		}
		groups[d.dominant] = append(groups[d.dominant], d)
	}

	langs := make([]string, 0, len(groups))
	for lang := range groups {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	sets := make(map[string][]store.Keyword, len(docs))
	for _, lang := range langs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		group := groups[lang]
		written, err := e.extractGroup(lang, group, sets)
		if err != nil {
			e.logger.Warn(ctx, "keyword extraction skipped language group",
				zap.String("lang", lang),
				zap.Int("conversations", len(group)),
				zap.Error(err))
			continue
		}
		e.logger.Debug(ctx, "keyword extraction processed language group",
			zap.String("lang", language.DisplayName(lang)),
			zap.Int("conversations", len(group)),
			zap.Int("keywords", written))
	}

	n, err := s.ReplaceKeywords(ctx, sets)
	if err != nil {
		return 0, fmt.Errorf("writing keywords: %w", err)
	}

	e.logger.Info(ctx, "keyword extraction complete",
		zap.Int("keywords", n),
		zap.Int("conversations", len(docs)),
		zap.Duration("duration", time.Since(start)))
	return n, nil
}

func (e *Extractor) extractGroup(lang string, group []*document, sets map[string][]store.Keyword) (int, error) {
	minDF := 1
	if len(group) >= 2 {
		minDF = 2
	}

	observed := map[string]struct{}{lang: {}}
	for _, d := range group {
		for _, code := range d.languages {
			observed[code] = struct{}{}
		}
	}
	codes := make([]string, 0, len(observed))
	for code := range observed {
		codes = append(codes, code)
	}
	stops := language.StopWords(codes...)
	if len(stops) == 0 {
		stops = language.StopWords(language.Default)
	}

	v := &Vectorizer{
		MinDF:       minDF,
		MaxDF:       e.cfg.MaxDF,
		MaxFeatures: e.cfg.MaxFeatures,
		NGramMax:    e.cfg.NGramMax,
		StopWords:   stops,
	}
	texts := make([]string, len(group))
	for i, d := range group {
		texts[i] = d.text
	}
	m, err := v.FitTransform(texts)
	if err != nil {
		return 0, err
	}

	written := 0
	for i, d := range group {
		top := m.Top(i, e.cfg.TopN)
		if len(top) == 0 {
			continue
		}
		kws := make([]store.Keyword, len(top))
		for j, t := range top {
			kws[j] = store.Keyword{Term: t.Term, Score: round6(t.Weight)}
		}
		sets[d.conversationID] = kws
		written += len(kws)
	}
	return written, nil
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

// loadDocuments concatenates each conversation's non-empty prose in turn
// order, with any fenced code removed. Conversations left blank are dropped.
func loadDocuments(ctx context.Context, db *sql.DB) ([]*document, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT conversation_id, content
		FROM messages
		WHERE content IS NOT NULL AND content != ''
		ORDER BY conversation_id, turn_index`)
	if err != nil {
		return nil, fmt.Errorf("loading message text: %w", err)
	}
	defer rows.Close()

	var docs []*document
	var current *document
	var b strings.Builder
	flush := func() {
		if current == nil {
			return
		}
		text := conversation.StripCode(b.String())
		if strings.TrimSpace(text) != "" {
			current.text = text
			docs = append(docs, current)
		}
		b.Reset()
	}

	for rows.Next() {
		var convID, content string
		if err := rows.Scan(&convID, &content); err != nil {
			return nil, err
		}
		if current == nil || current.conversationID != convID {
			flush()
			current = &document{conversationID: convID}
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(content)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	flush()
	return docs, nil
}

// languageProfile counts message languages for one conversation.
type languageProfile struct {
	counts    map[string]int
	firstSeen map[string]int
}

// dominant returns the most frequent language. Ties go to the language
// that appears earliest in the conversation.
func (p *languageProfile) dominant() string {
	best := ""
	for lang, n := range p.counts {
		if best == "" ||
			n > p.counts[best] ||
			(n == p.counts[best] && p.firstSeen[lang] < p.firstSeen[best]) ||
			(n == p.counts[best] && p.firstSeen[lang] == p.firstSeen[best] && lang < best) {
			best = lang
		}
	}
	return best
}

func (p *languageProfile) codes() []string {
	codes := make([]string, 0, len(p.counts))
	for lang := range p.counts {
		codes = append(codes, lang)
	}
	sort.Strings(codes)
	return codes
}

func loadLanguages(ctx context.Context, db *sql.DB) (map[string]*languageProfile, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT conversation_id, lang, COUNT(*), MIN(turn_index)
		FROM messages
		WHERE lang IS NOT NULL AND lang != ''
		GROUP BY conversation_id, lang`)
	if err != nil {
		return nil, fmt.Errorf("loading message languages: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]*languageProfile)
	for rows.Next() {
		var convID, lang string
		var count int
		var first sql.NullInt64
		if err := rows.Scan(&convID, &lang, &count, &first); err != nil {
			return nil, err
		}
		p := profiles[convID]
		if p == nil {
			p = &languageProfile{counts: map[string]int{}, firstSeen: map[string]int{}}
			profiles[convID] = p
		}
		p.counts[lang] = count
		p.firstSeen[lang] = int(first.Int64)
	}
	return profiles, rows.Err()
}
