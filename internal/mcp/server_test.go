package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/chatindex/internal/logging"
	"github.com/fyrsmithlabs/chatindex/internal/search"
	"github.com/fyrsmithlabs/chatindex/internal/telemetry"
)

type fakeSearcher struct {
	lastQuery search.Query
	topN      int
	view      *search.ConversationView
	err       error
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) ([]search.Result, error) {
	f.lastQuery = q
	if err := q.Validate(); err != nil {
		return nil, err
	}
	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	return []search.Result{{
		ConversationID: "c1-abcdef", ConversationTitle: "Python generators", MessageID: "m1",
		Role: "assistant", ContentSnippet: "A generator yields values lazily.", CodeSnippet: "yield 1",
		ModelSlug: "gpt-4o", CreatedAt: &created, TurnIndex: 1, Rank: -2.5,
	}}, f.err
}

func (f *fakeSearcher) Conversation(_ context.Context, id string) (*search.ConversationView, error) {
	if !strings.HasPrefix(f.view.ID, id) {
		return nil, search.ErrNotFound
	}
	return f.view, nil
}

func (f *fakeSearcher) ConversationKeywords(_ context.Context, id string) ([]search.Keyword, error) {
	if !strings.HasPrefix(f.view.ID, id) {
		return nil, search.ErrNotFound
	}
	return []search.Keyword{{Keyword: "generator", Score: 0.9}}, nil
}

func (f *fakeSearcher) TopKeywords(_ context.Context, n int) ([]search.Keyword, error) {
	f.topN = n
	return []search.Keyword{{Keyword: "pods", Score: 1.4}, {Keyword: "generator", Score: 0.9}}, nil
}

func (f *fakeSearcher) Stats(context.Context) (*search.CorpusStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	first := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	return &search.CorpusStats{
		ConversationCount: 2,
		MessageCount:      5,
		KeywordCount:      12,
		FirstConversation: &first,
		Roles:             []search.Count{{Key: "user", Count: 3}, {Key: "assistant", Count: 2}},
		Languages:         []search.Count{{Key: "en", Count: 5}},
		SchemaVersion:     4,
		BuildID:           "b-1",
	}, nil
}

func newFake() *fakeSearcher {
	return &fakeSearcher{view: &search.ConversationView{
		ID:    "c1-abcdef",
		Title: "Python generators",
		Messages: []search.MessageView{
			{ID: "m0", Role: "user", Content: "Explain yield", TurnIndex: 0, Lang: "en"},
			{ID: "m1", Role: "assistant", Content: "A generator yields values lazily.", Code: "yield 1", TurnIndex: 1, Lang: "en"},
			{ID: "m2", Role: "user", Content: "Thanks", TurnIndex: 2, Lang: "en"},
		},
	}}
}

type harness struct {
	fake    *fakeSearcher
	session *mcp.ClientSession
	logger  *logging.TestLogger
	tel     *telemetry.TestTelemetry
}

func newHarness(t *testing.T, maxLimit int) *harness {
	t.Helper()
	ctx := context.Background()
	fake := newFake()
	logger := logging.NewTestLogger()
	tel := telemetry.NewTestTelemetry()

	cfg := DefaultConfig()
	cfg.MaxLimit = maxLimit
	cfg.Telemetry = tel.Telemetry
	s, err := NewServer(cfg, fake, logger.Logger)
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.mcp.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return &harness{fake: fake, session: session, logger: logger, tel: tel}
}

func (h *harness) call(t *testing.T, tool string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := h.session.CallTool(context.Background(), &mcp.CallToolParams{Name: tool, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var out T
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	return out
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)

	_, err = NewServer(&Config{Name: "x", MaxLimit: 0}, newFake(), nil)
	assert.Error(t, err)

	s, err := NewServer(nil, newFake(), nil)
	require.NoError(t, err)
	assert.Equal(t, "chatindex", s.config.Name)
	assert.Equal(t, 100, s.config.MaxLimit)
}

func TestListTools(t *testing.T) {
	h := newHarness(t, 100)

	res, err := h.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"corpus_stats", "get_conversation", "keywords", "search"}, names)
}

func TestSearchTool(t *testing.T) {
	h := newHarness(t, 10)

	out := decodeResult[searchOutput](t, h.call(t, "search", map[string]any{
		"query": "generator",
		"role":  "assistant",
		"since": "2024-03",
		"until": "2024",
		"limit": 500,
	}))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "generator", out.Query)
	r := out.Results[0]
	assert.Equal(t, "c1-abcdef", r.ConversationID)
	assert.Equal(t, "yield 1", r.Code)
	assert.Equal(t, "2024-03-05T10:00:00Z", r.CreatedAt)

	q := h.fake.lastQuery
	assert.Equal(t, 10, q.Limit, "limit is capped at MaxLimit")
	assert.Equal(t, "assistant", q.Role)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *q.Since)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *q.Until)

	decodeResult[searchOutput](t, h.call(t, "search", map[string]any{"query": "generator"}))
	assert.Equal(t, 10, h.fake.lastQuery.Limit, "default limit is capped too")

	assert.Equal(t, int64(2), h.tel.Sum(t, "chatindex.mcp.tool.invocations.total"))
}

func TestSearchTool_Errors(t *testing.T) {
	h := newHarness(t, 100)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"blank query", map[string]any{"query": "  "}, "query is empty"},
		{"bad date", map[string]any{"query": "x", "since": "last week"}, "YYYY-MM-DD"},
		{"negative limit", map[string]any{"query": "x", "limit": -1}, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.call(t, "search", tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, text(t, res), tt.want)
		})
	}

	assert.Equal(t, int64(3), h.tel.Sum(t, "chatindex.mcp.tool.errors.total"))
	assert.Equal(t, int64(3), h.tel.SumWhere(t, "chatindex.mcp.tool.errors.total", "reason", "invalid_argument"))
	h.logger.AssertLogged(t, zapcore.WarnLevel, "mcp tool failed")
	h.logger.AssertField(t, "mcp tool failed", "reason", "invalid_argument")
}

func TestGetConversationTool(t *testing.T) {
	h := newHarness(t, 100)

	out := decodeResult[conversationOutput](t, h.call(t, "get_conversation", map[string]any{"id": "c1"}))
	assert.Equal(t, "c1-abcdef", out.ID)
	assert.Equal(t, 3, out.Total)
	require.Len(t, out.Messages, 3)
	assert.Equal(t, "yield 1", out.Messages[1].Code)

	out = decodeResult[conversationOutput](t, h.call(t, "get_conversation", map[string]any{"id": "c1", "max_messages": 2}))
	assert.Equal(t, 3, out.Total)
	assert.Len(t, out.Messages, 2)

	res := h.call(t, "get_conversation", map[string]any{"id": "zzz"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "conversation not found")
	h.logger.AssertField(t, "mcp tool failed", "reason", "not_found")
}

func TestCorpusStatsTool(t *testing.T) {
	h := newHarness(t, 100)

	out := decodeResult[corpusStatsOutput](t, h.call(t, "corpus_stats", map[string]any{}))
	assert.Equal(t, 2, out.Conversations)
	assert.Equal(t, 5, out.Messages)
	assert.Equal(t, 12, out.Keywords)
	assert.Equal(t, "2024-01-10T00:00:00Z", out.FirstConversation)
	assert.Empty(t, out.LastConversation)
	assert.Equal(t, []countOutput{{"user", 3}, {"assistant", 2}}, out.Roles)
	assert.Empty(t, out.Models)
	assert.Equal(t, "b-1", out.BuildID)

	h.fake.err = errors.New("database is locked")
	res := h.call(t, "corpus_stats", map[string]any{})
	assert.True(t, res.IsError)
	h.logger.AssertField(t, "mcp tool failed", "reason", "internal")
}

func TestKeywordsTool(t *testing.T) {
	h := newHarness(t, 100)

	out := decodeResult[keywordsOutput](t, h.call(t, "keywords", map[string]any{}))
	assert.Len(t, out.Keywords, 2)
	assert.Equal(t, search.DefaultTopKeywords, h.fake.topN)

	decodeResult[keywordsOutput](t, h.call(t, "keywords", map[string]any{"limit": 5}))
	assert.Equal(t, 5, h.fake.topN)

	out = decodeResult[keywordsOutput](t, h.call(t, "keywords", map[string]any{"conversation_id": "c1"}))
	assert.Equal(t, "c1", out.ConversationID)
	assert.Equal(t, []keywordOutput{{Keyword: "generator", Score: 0.9}}, out.Keywords)

	res := h.call(t, "keywords", map[string]any{"conversation_id": "nope"})
	assert.True(t, res.IsError)
}

func TestCategorizeError(t *testing.T) {
	assert.Equal(t, "invalid_argument", categorizeError(search.ErrInvalidQuery))
	assert.Equal(t, "invalid_argument", categorizeError(search.ErrInvalidDate))
	assert.Equal(t, "not_found", categorizeError(search.ErrNotFound))
	assert.Equal(t, "canceled", categorizeError(context.Canceled))
	assert.Equal(t, "internal", categorizeError(errors.New("boom")))
}
