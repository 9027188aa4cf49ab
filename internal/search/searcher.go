// Package search answers read queries against a built index: ranked
// full-text search, conversation browsing, corpus statistics and keywords.
//
// Read paths never mutate the store, so a Searcher can serve the CLI, the
// HTTP API and the MCP server alike.
package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/chatindex/internal/conversation"
	"github.com/fyrsmithlabs/chatindex/internal/store"
)

const (
	contentSnippetLen = 300
	codeSnippetLen    = 200

	// DefaultTopKeywords is the corpus keyword count when none is requested.
	DefaultTopKeywords = 50
)

// Result is one matching message.
type Result struct {
	ConversationID    string     `json:"conversation_id"`
	ConversationTitle string     `json:"conversation_title"`
	MessageID         string     `json:"message_id"`
	Role              string     `json:"role"`
	ContentSnippet    string     `json:"content_snippet"`
	CodeSnippet       string     `json:"code_snippet,omitempty"`
	ModelSlug         string     `json:"model_slug,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	TurnIndex         int        `json:"turn_index"`

	// Rank is the BM25 score. Lower is more relevant.
	Rank float64 `json:"rank"`
}

// ConversationView is a full conversation in turn order.
type ConversationView struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	CreatedAt        *time.Time    `json:"created_at,omitempty"`
	UpdatedAt        *time.Time    `json:"updated_at,omitempty"`
	DefaultModelSlug string        `json:"default_model_slug,omitempty"`
	Messages         []MessageView `json:"messages"`
}

// MessageView is one stored message.
type MessageView struct {
	ID          string     `json:"id"`
	Role        string     `json:"role"`
	Content     string     `json:"content"`
	Code        string     `json:"code,omitempty"`
	ContentType string     `json:"content_type"`
	ModelSlug   string     `json:"model_slug,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	TurnIndex   int        `json:"turn_index"`
	Lang        string     `json:"lang,omitempty"`
}

// Keyword is a scored term. For corpus listings Score is the summed weight.
type Keyword struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
}

// Count is one bucket of a distribution.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// CorpusStats summarizes the index.
type CorpusStats struct {
	ConversationCount int        `json:"conversation_count"`
	MessageCount      int        `json:"message_count"`
	KeywordCount      int        `json:"keyword_count"`
	FirstConversation *time.Time `json:"first_conversation,omitempty"`
	LastConversation  *time.Time `json:"last_conversation,omitempty"`
	Roles             []Count    `json:"roles"`
	Models            []Count    `json:"models"`
	ContentTypes      []Count    `json:"content_types"`
	Languages         []Count    `json:"languages"`
	SizeBytes         int64      `json:"size_bytes"`
	SchemaVersion     int        `json:"schema_version"`
	BuildID           string     `json:"build_id,omitempty"`
}

// SizeMB returns the store size in mebibytes.
func (s *CorpusStats) SizeMB() float64 {
	return float64(s.SizeBytes) / (1024 * 1024)
}

// Searcher runs read queries against an open store.
type Searcher struct {
	store   *store.Store
	db      *sql.DB
	tracer  trace.Tracer
	metrics *Metrics
}

// New creates a searcher over s.
func New(s *store.Store, opts ...Option) (*Searcher, error) {
	if s == nil {
		return nil, errors.New("store is required")
	}
	sr := &Searcher{store: s, db: s.DB()}
	sr.tracer, sr.metrics = defaultInstruments()
	for _, opt := range opts {
		if err := opt(sr); err != nil {
			return nil, fmt.Errorf("configuring searcher: %w", err)
		}
	}
	return sr, nil
}

// Search runs a ranked full-text query. A query that matches nothing
// returns an empty slice and no error.
func (s *Searcher) Search(ctx context.Context, q Query) (results []Result, err error) {
	ctx, span := s.tracer.Start(ctx, "Searcher.Search")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.record(ctx, time.Since(start), err) }()

	if err := q.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	match := SanitizeQuery(q.Text)
	sqlText, args := buildSearchSQL(match, q)
	span.SetAttributes(
		attribute.String("search.match", match),
		attribute.Int("search.limit", q.limit()),
	)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, s.matchFailed(ctx, span, q.Text, err)
	}
	defer rows.Close()

	results = []Result{}
	for rows.Next() {
		var (
			r                    Result
			content, code, model sql.NullString
			created              sql.NullFloat64
			turn                 sql.NullInt64
		)
		if err := rows.Scan(&r.ConversationID, &r.ConversationTitle, &r.MessageID, &r.Role,
			&content, &code, &model, &created, &turn, &r.Rank); err != nil {
			return nil, s.failed(span, fmt.Errorf("search failed: %w", err))
		}
		r.ContentSnippet = conversation.Truncate(content.String, contentSnippetLen)
		r.CodeSnippet = conversation.Truncate(code.String, codeSnippetLen)
		r.ModelSlug = model.String
		r.CreatedAt = floatTime(created)
		r.TurnIndex = int(turn.Int64)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.matchFailed(ctx, span, q.Text, err)
	}

	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}

// matchFailed classifies an error raised while the MATCH expression runs.
// Apart from cancellation, the engine only fails there on the expression
// itself, so every such error is reported as a QueryError.
func (s *Searcher) matchFailed(ctx context.Context, span trace.Span, text string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return s.failed(span, fmt.Errorf("search failed: %w", ctxErr))
	}
	return s.failed(span, &QueryError{Query: text, Err: err})
}

func (s *Searcher) failed(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// buildSearchSQL assembles the ranked query. Title matches weigh 10x,
// prose 1x and code 0.5x.
func buildSearchSQL(match string, q Query) (string, []any) {
	var b strings.Builder
	b.WriteString(`
		SELECT
			m.conversation_id,
			COALESCE(c.title, ''),
			m.id,
			m.role,
			m.content,
			m.code,
			m.model_slug,
			m.created_at,
			m.turn_index,
			bm25(messages_fts, 10.0, 1.0, 0.5) AS rank
		FROM messages_fts
		JOIN messages m ON messages_fts.rowid = m.rowid
		JOIN conversations c ON m.conversation_id = c.id
		WHERE messages_fts MATCH ?`)
	args := []any{match}

	if q.Role != "" {
		b.WriteString(` AND m.role = ?`)
		args = append(args, q.Role)
	}
	if q.Model != "" {
		b.WriteString(` AND m.model_slug LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q.Model)+"%")
	}
	if q.Since != nil {
		b.WriteString(` AND m.created_at >= ?`)
		args = append(args, conversation.UnixSeconds(*q.Since))
	}
	if q.Until != nil {
		b.WriteString(` AND m.created_at < ?`)
		args = append(args, conversation.UnixSeconds(*q.Until))
	}
	if q.Lang != "" {
		b.WriteString(` AND m.conversation_id IN (SELECT DISTINCT conversation_id FROM messages WHERE lang = ?)`)
		args = append(args, q.Lang)
	}

	b.WriteString(` ORDER BY rank LIMIT ?`)
	args = append(args, q.limit())
	return b.String(), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// resolveID returns the stored conversation id matching idOrPrefix exactly,
// or else the first id (in id order) starting with it.
func (s *Searcher) resolveID(ctx context.Context, idOrPrefix string) (string, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}

	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM conversations WHERE id = ?`, idOrPrefix).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE id LIKE ? ESCAPE '\' ORDER BY id LIMIT 1`,
		escapeLike(idOrPrefix)+"%").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// Conversation returns a full conversation by id or id prefix.
func (s *Searcher) Conversation(ctx context.Context, idOrPrefix string) (*ConversationView, error) {
	ctx, span := s.tracer.Start(ctx, "Searcher.Conversation")
	defer span.End()

	id, err := s.resolveID(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	var (
		view             ConversationView
		title, model     sql.NullString
		created, updated sql.NullFloat64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at, default_model_slug FROM conversations WHERE id = ?`, id).
		Scan(&view.ID, &title, &created, &updated, &model)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", id, err)
	}
	view.Title = title.String
	view.CreatedAt = floatTime(created)
	view.UpdatedAt = floatTime(updated)
	view.DefaultModelSlug = model.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, code, content_type, model_slug, created_at, turn_index, lang
		FROM messages
		WHERE conversation_id = ?
		ORDER BY turn_index`, id)
	if err != nil {
		return nil, fmt.Errorf("loading messages for %s: %w", id, err)
	}
	defer rows.Close()

	view.Messages = []MessageView{}
	for rows.Next() {
		var (
			m                                MessageView
			content, code, ctype, slug, lang sql.NullString
			ts                               sql.NullFloat64
			turn                             sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.Role, &content, &code, &ctype, &slug, &ts, &turn, &lang); err != nil {
			return nil, err
		}
		m.Content = content.String
		m.Code = code.String
		m.ContentType = ctype.String
		m.ModelSlug = slug.String
		m.CreatedAt = floatTime(ts)
		m.TurnIndex = int(turn.Int64)
		m.Lang = lang.String
		view.Messages = append(view.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("conversation.id", view.ID), attribute.Int("conversation.messages", len(view.Messages)))
	return &view, nil
}

// ConversationKeywords returns the keywords of one conversation, heaviest
// first. The id may be a prefix.
func (s *Searcher) ConversationKeywords(ctx context.Context, idOrPrefix string) ([]Keyword, error) {
	id, err := s.resolveID(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	return s.keywords(ctx, `
		SELECT keyword, score FROM keywords
		WHERE conversation_id = ?
		ORDER BY score DESC, keyword`, id)
}

// TopKeywords returns the corpus keywords with the highest summed weight.
// n <= 0 means DefaultTopKeywords.
func (s *Searcher) TopKeywords(ctx context.Context, n int) ([]Keyword, error) {
	if n <= 0 {
		n = DefaultTopKeywords
	}
	return s.keywords(ctx, `
		SELECT keyword, SUM(score) AS total FROM keywords
		GROUP BY keyword
		ORDER BY total DESC, keyword
		LIMIT ?`, n)
}

func (s *Searcher) keywords(ctx context.Context, query string, args ...any) ([]Keyword, error) {
	ok, err := s.store.TableExists(ctx, "keywords")
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Keyword{}, nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading keywords: %w", err)
	}
	defer rows.Close()

	out := []Keyword{}
	for rows.Next() {
		var k Keyword
		if err := rows.Scan(&k.Keyword, &k.Score); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Stats computes corpus statistics.
func (s *Searcher) Stats(ctx context.Context) (*CorpusStats, error) {
	ctx, span := s.tracer.Start(ctx, "Searcher.Stats")
	defer span.End()

	st := &CorpusStats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&st.ConversationCount); err != nil {
		return nil, fmt.Errorf("counting conversations: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&st.MessageCount); err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}

	if ok, err := s.store.TableExists(ctx, "keywords"); err != nil {
		return nil, err
	} else if ok {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM keywords`).Scan(&st.KeywordCount); err != nil {
			return nil, fmt.Errorf("counting keywords: %w", err)
		}
	}

	var first, last sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(created_at), MAX(created_at) FROM conversations`).Scan(&first, &last); err != nil {
		return nil, fmt.Errorf("reading date range: %w", err)
	}
	st.FirstConversation = floatTime(first)
	st.LastConversation = floatTime(last)

	var err error
	if st.Roles, err = s.distribution(ctx, `
		SELECT role, COUNT(*) AS cnt FROM messages
		GROUP BY role ORDER BY cnt DESC, role`); err != nil {
		return nil, err
	}
	if st.Models, err = s.distribution(ctx, `
		SELECT model_slug, COUNT(*) AS cnt FROM messages
		WHERE model_slug IS NOT NULL
		GROUP BY model_slug ORDER BY cnt DESC, model_slug`); err != nil {
		return nil, err
	}
	if st.ContentTypes, err = s.distribution(ctx, `
		SELECT COALESCE(content_type, 'unknown'), COUNT(*) AS cnt FROM messages
		GROUP BY content_type ORDER BY cnt DESC, content_type`); err != nil {
		return nil, err
	}
	if st.Languages, err = s.distribution(ctx, `
		SELECT COALESCE(lang, 'unknown'), COUNT(*) AS cnt FROM messages
		GROUP BY lang ORDER BY cnt DESC, lang`); err != nil {
		return nil, err
	}

	if st.SizeBytes, err = s.store.SizeBytes(ctx); err != nil {
		return nil, err
	}
	if st.SchemaVersion, err = s.store.Version(ctx); err != nil {
		return nil, err
	}
	if id, ok, err := s.store.Meta(ctx, "build_id"); err != nil {
		return nil, err
	} else if ok {
		st.BuildID = id
	}
	return st, nil
}

func (s *Searcher) distribution(ctx context.Context, query string) ([]Count, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("computing distribution: %w", err)
	}
	defer rows.Close()

	out := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func floatTime(f sql.NullFloat64) *time.Time {
	if !f.Valid {
		return nil
	}
	t := conversation.UnixTime(f.Float64)
	return &t
}
