package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/chatindex/internal/conversation"
	"github.com/fyrsmithlabs/chatindex/internal/store"
	"github.com/fyrsmithlabs/chatindex/internal/telemetry"
)

func at(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func fixture() []*conversation.Conversation {
	return []*conversation.Conversation{
		{
			ID: "aaa-111", Title: "Kubernetes networking", CreatedAt: at(2024, 1, 10), DefaultModelSlug: "gpt-4o",
			Messages: []conversation.Message{
				{ID: "a1", Role: conversation.RoleUser, Content: "How do pods talk to each other?", ContentType: "text", CreatedAt: at(2024, 1, 10), Lang: "en"},
				{ID: "a2", Role: conversation.RoleAssistant, Content: "Pods share a flat network namespace.", Code: "kubectl get pods -o wide", ContentType: "text", ModelSlug: "gpt-4o", CreatedAt: at(2024, 1, 10), Lang: "en"},
			},
		},
		{
			ID: "aab-222", Title: "Python generators", CreatedAt: at(2024, 3, 5), DefaultModelSlug: "gpt-4o-mini",
			Messages: []conversation.Message{
				{ID: "b1", Role: conversation.RoleUser, Content: "Explain yield and pods of work", ContentType: "text", CreatedAt: at(2024, 3, 5), Lang: "en"},
				{ID: "b2", Role: conversation.RoleAssistant, Content: "A generator yields values lazily.", ContentType: "text", ModelSlug: "gpt-4o-mini", CreatedAt: at(2024, 3, 5), Lang: "en"},
			},
		},
		{
			ID: "ccc-333", Title: "Сети", CreatedAt: at(2025, 2, 1),
			Messages: []conversation.Message{
				{ID: "c1", Role: conversation.RoleUser, Content: "Как работают pods в кластере?", ContentType: "text", CreatedAt: at(2025, 2, 1), Lang: "ru"},
			},
		},
	}
}

func newTestSearcher(t *testing.T) (*Searcher, *store.Store) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "index.db"), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for _, c := range fixture() {
		require.NoError(t, tx.UpsertConversation(ctx, c))
		for i := range c.Messages {
			m := &c.Messages[i]
			m.ConversationID = c.ID
			m.TurnIndex = i
			_, err := tx.InsertMessage(ctx, c.Title, m)
			require.NoError(t, err)
		}
		require.NoError(t, tx.RefreshMessageCount(ctx, c.ID))
	}
	require.NoError(t, tx.Commit())

	_, err = s.ReplaceKeywords(ctx, map[string][]store.Keyword{
		"aaa-111": {{Term: "pods", Score: 0.8}, {Term: "network", Score: 0.5}},
		"aab-222": {{Term: "generator", Score: 0.9}, {Term: "pods", Score: 0.3}},
	})
	require.NoError(t, err)

	searcher, err := New(s)
	require.NoError(t, err)
	return searcher, s
}

func messageIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.MessageID
	}
	return ids
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSearcher(t)

	t.Run("ranks and fills results", func(t *testing.T) {
		results, err := s.Search(ctx, Query{Text: "pods"})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i-1].Rank, results[i].Rank)
		}

		byID := map[string]Result{}
		for _, r := range results {
			byID[r.MessageID] = r
		}
		a2, ok := byID["a2"]
		require.True(t, ok)
		assert.Equal(t, "Kubernetes networking", a2.ConversationTitle)
		assert.Equal(t, "gpt-4o", a2.ModelSlug)
		assert.Equal(t, "kubectl get pods -o wide", a2.CodeSnippet)
		assert.Equal(t, 1, a2.TurnIndex)
		require.NotNil(t, a2.CreatedAt)
	})

	t.Run("matches the title column", func(t *testing.T) {
		results, err := s.Search(ctx, Query{Text: "kubernetes"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a1", "a2"}, messageIDs(results))
	})

	t.Run("no match is empty", func(t *testing.T) {
		results, err := s.Search(ctx, Query{Text: "nonexistentterm"})
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("role filter", func(t *testing.T) {
		results, err := s.Search(ctx, Query{Text: "pods", Role: "assistant"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a2"}, messageIDs(results))
	})

	t.Run("model substring filter", func(t *testing.T) {
		results, err := s.Search(ctx, Query{Text: "generator OR yields", Model: "mini"})
		require.NoError(t, err)
		assert.Equal(t, []string{"b2"}, messageIDs(results))
	})

	t.Run("date range", func(t *testing.T) {
		since, err := ParseDateFilter("2024-03", false)
		require.NoError(t, err)
		until, err := ParseDateFilter("2024", true)
		require.NoError(t, err)

		results, err := s.Search(ctx, Query{Text: "pods", Since: &since, Until: &until})
		require.NoError(t, err)
		assert.Equal(t, []string{"b1"}, messageIDs(results))
	})

	t.Run("language filter", func(t *testing.T) {
		results, err := s.Search(ctx, Query{Text: "pods", Lang: "ru"})
		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, messageIDs(results))
	})

	t.Run("limit", func(t *testing.T) {
		results, err := s.Search(ctx, Query{Text: "pods", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("punctuation is sanitized", func(t *testing.T) {
		results, err := s.Search(ctx, Query{Text: "pods?"})
		require.NoError(t, err)
		assert.NotEmpty(t, results)
	})
}

func TestSearch_InvalidQuery(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSearcher(t)

	for _, text := range []string{`"unbalanced`, "pods AND", "*", "(", "OR ", "   "} {
		_, err := s.Search(ctx, Query{Text: text})
		require.Error(t, err, text)
		assert.ErrorIs(t, err, ErrInvalidQuery, text)
		assert.NotContains(t, err.Error(), "search failed", text)
	}

	for _, text := range []string{"*", "(", "OR "} {
		_, err := s.Search(ctx, Query{Text: text})
		var qe *QueryError
		require.ErrorAs(t, err, &qe, text)
		assert.Equal(t, text, qe.Query)
	}

	_, err := s.Search(ctx, Query{Text: `"unbalanced`})
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, `"unbalanced`, qe.Query)
	assert.Contains(t, err.Error(), "unmatched quotes")
}

func TestSearch_CancelledIsNotInvalidQuery(t *testing.T) {
	s, _ := newTestSearcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, Query{Text: "pods"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrInvalidQuery)
}

func TestConversation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSearcher(t)

	view, err := s.Conversation(ctx, "aab-222")
	require.NoError(t, err)
	assert.Equal(t, "Python generators", view.Title)
	assert.Equal(t, "gpt-4o-mini", view.DefaultModelSlug)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, 0, view.Messages[0].TurnIndex)
	assert.Equal(t, "b1", view.Messages[0].ID)
	assert.Equal(t, "en", view.Messages[1].Lang)

	// Prefix "aa" matches two ids; the lowest id wins.
	view, err = s.Conversation(ctx, "aa")
	require.NoError(t, err)
	assert.Equal(t, "aaa-111", view.ID)

	view, err = s.Conversation(ctx, "ccc")
	require.NoError(t, err)
	assert.Equal(t, "ccc-333", view.ID)

	for _, missing := range []string{"zzz", "", "%", "a_a"} {
		_, err = s.Conversation(ctx, missing)
		assert.ErrorIs(t, err, ErrNotFound, missing)
	}
}

func TestKeywords(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSearcher(t)

	kws, err := s.ConversationKeywords(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, []Keyword{{"pods", 0.8}, {"network", 0.5}}, kws)

	kws, err = s.ConversationKeywords(ctx, "ccc-333")
	require.NoError(t, err)
	assert.Empty(t, kws)

	_, err = s.ConversationKeywords(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	top, err := s.TopKeywords(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "pods", top[0].Keyword)
	assert.InDelta(t, 1.1, top[0].Score, 1e-9)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Score, top[i].Score)
	}

	top, err = s.TopKeywords(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s, st := newTestSearcher(t)
	require.NoError(t, st.SetMeta(ctx, "build_id", "build-1"))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ConversationCount)
	assert.Equal(t, 5, stats.MessageCount)
	assert.Equal(t, 4, stats.KeywordCount)
	assert.Equal(t, store.SchemaVersion, stats.SchemaVersion)
	assert.Equal(t, "build-1", stats.BuildID)
	assert.Positive(t, stats.SizeBytes)

	require.NotNil(t, stats.FirstConversation)
	require.NotNil(t, stats.LastConversation)
	assert.Equal(t, 2024, stats.FirstConversation.Year())
	assert.Equal(t, 2025, stats.LastConversation.Year())

	assert.Equal(t, []Count{{"user", 3}, {"assistant", 2}}, stats.Roles)
	assert.Equal(t, []Count{{"gpt-4o", 1}, {"gpt-4o-mini", 1}}, stats.Models)
	assert.Equal(t, []Count{{"en", 4}, {"ru", 1}}, stats.Languages)
	assert.Equal(t, []Count{{"text", 5}}, stats.ContentTypes)
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestSearch_Telemetry(t *testing.T) {
	ctx := context.Background()
	_, st := newTestSearcher(t)
	tel := telemetry.NewTestTelemetry()

	s, err := New(st, WithTelemetry(tel.Telemetry))
	require.NoError(t, err)

	_, err = s.Search(ctx, Query{Text: "pods", Limit: 2})
	require.NoError(t, err)
	_, err = s.Search(ctx, Query{Text: `"unbalanced`})
	require.Error(t, err)

	assert.Equal(t, int64(2), tel.Sum(t, "chatindex.search.queries.total"))
	assert.Equal(t, int64(1), tel.Sum(t, "chatindex.search.errors.total"))
	tel.AssertSpanExists(t, "Searcher.Search")
	tel.AssertSpanAttribute(t, "Searcher.Search", "search.limit", int64(2))
}
