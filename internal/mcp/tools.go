package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/chatindex/internal/search"
)

type searchInput struct {
	Query string `json:"query" jsonschema:"Full-text query. Supports quoted phrases, AND/OR/NOT and prefix* terms"`
	Role  string `json:"role,omitempty" jsonschema:"Only messages with this role (user, assistant, system, tool)"`
	Model string `json:"model,omitempty" jsonschema:"Only messages whose model slug contains this text"`
	Since string `json:"since,omitempty" jsonschema:"Inclusive lower date bound: YYYY, YYYY-MM or YYYY-MM-DD"`
	Until string `json:"until,omitempty" jsonschema:"Inclusive upper date period: YYYY, YYYY-MM or YYYY-MM-DD"`
	Lang  string `json:"lang,omitempty" jsonschema:"Only conversations with a message in this ISO 639-1 language"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results (default 20)"`
}

type searchResult struct {
	ConversationID    string  `json:"conversation_id"`
	ConversationTitle string  `json:"conversation_title"`
	MessageID         string  `json:"message_id"`
	Role              string  `json:"role"`
	Content           string  `json:"content"`
	Code              string  `json:"code,omitempty"`
	Model             string  `json:"model,omitempty"`
	CreatedAt         string  `json:"created_at,omitempty"`
	TurnIndex         int     `json:"turn_index"`
	Rank              float64 `json:"rank"`
}

type searchOutput struct {
	Query   string         `json:"query" jsonschema:"Query as received"`
	Count   int            `json:"count" jsonschema:"Number of results"`
	Results []searchResult `json:"results" jsonschema:"Matches, most relevant first"`
}

type getConversationInput struct {
	ID          string `json:"id" jsonschema:"Conversation id or a unique prefix of it"`
	MaxMessages int    `json:"max_messages,omitempty" jsonschema:"Return at most this many messages from the start (default: all)"`
}

type messageOutput struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Code      string `json:"code,omitempty"`
	Model     string `json:"model,omitempty"`
	Lang      string `json:"lang,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	TurnIndex int    `json:"turn_index"`
}

type conversationOutput struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Model     string          `json:"model,omitempty"`
	CreatedAt string          `json:"created_at,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
	Total     int             `json:"total_messages" jsonschema:"Messages stored for the conversation"`
	Messages  []messageOutput `json:"messages"`
}

type corpusStatsInput struct{}

type countOutput struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type corpusStatsOutput struct {
	Conversations     int           `json:"conversations"`
	Messages          int           `json:"messages"`
	Keywords          int           `json:"keywords"`
	FirstConversation string        `json:"first_conversation,omitempty"`
	LastConversation  string        `json:"last_conversation,omitempty"`
	Roles             []countOutput `json:"roles"`
	Models            []countOutput `json:"models"`
	ContentTypes      []countOutput `json:"content_types"`
	Languages         []countOutput `json:"languages"`
	SizeMB            float64       `json:"size_mb"`
	SchemaVersion     int           `json:"schema_version"`
	BuildID           string        `json:"build_id,omitempty"`
}

type keywordsInput struct {
	ConversationID string `json:"conversation_id,omitempty" jsonschema:"Conversation id or prefix. Omit for corpus-wide keywords"`
	Limit          int    `json:"limit,omitempty" jsonschema:"Maximum keywords for corpus-wide listings (default 50)"`
}

type keywordOutput struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
}

type keywordsOutput struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Keywords       []keywordOutput `json:"keywords"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed chat history. Returns matching messages ranked by relevance (title matches weigh most, code least) with snippets and conversation ids for get_conversation.",
	}, instrument(s, "search", s.handleSearch))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_conversation",
		Description: "Fetch one conversation with its messages in turn order. Accepts a full id or a unique prefix.",
	}, instrument(s, "get_conversation", s.handleGetConversation))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "corpus_stats",
		Description: "Summarize the index: conversation, message and keyword counts, date span, and role, model, content type and language distributions.",
	}, instrument(s, "corpus_stats", s.handleCorpusStats))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "keywords",
		Description: "List TF-IDF keywords, either the heaviest across the corpus or those of one conversation.",
	}, instrument(s, "keywords", s.handleKeywords))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, searchOutput, error) {
	limit, err := s.clamp(in.Limit, search.DefaultLimit)
	if err != nil {
		return nil, searchOutput{}, err
	}
	q := search.Query{
		Text:  in.Query,
		Role:  strings.TrimSpace(in.Role),
		Model: strings.TrimSpace(in.Model),
		Lang:  strings.TrimSpace(in.Lang),
		Limit: limit,
	}
	if in.Since != "" {
		t, err := search.ParseDateFilter(in.Since, false)
		if err != nil {
			return nil, searchOutput{}, err
		}
		q.Since = &t
	}
	if in.Until != "" {
		t, err := search.ParseDateFilter(in.Until, true)
		if err != nil {
			return nil, searchOutput{}, err
		}
		q.Until = &t
	}

	results, err := s.searcher.Search(ctx, q)
	if err != nil {
		return nil, searchOutput{}, err
	}

	out := searchOutput{Query: in.Query, Count: len(results), Results: make([]searchResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, searchResult{
			ConversationID:    r.ConversationID,
			ConversationTitle: r.ConversationTitle,
			MessageID:         r.MessageID,
			Role:              r.Role,
			Content:           r.ContentSnippet,
			Code:              r.CodeSnippet,
			Model:             r.ModelSlug,
			CreatedAt:         formatTime(r.CreatedAt),
			TurnIndex:         r.TurnIndex,
			Rank:              r.Rank,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetConversation(ctx context.Context, _ *mcp.CallToolRequest, in getConversationInput) (*mcp.CallToolResult, conversationOutput, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, conversationOutput{}, fmt.Errorf("%w: id is required", errInvalidArgument)
	}
	if in.MaxMessages < 0 {
		return nil, conversationOutput{}, fmt.Errorf("%w: max_messages must not be negative", errInvalidArgument)
	}

	view, err := s.searcher.Conversation(ctx, in.ID)
	if err != nil {
		return nil, conversationOutput{}, err
	}

	msgs := view.Messages
	if in.MaxMessages > 0 && len(msgs) > in.MaxMessages {
		msgs = msgs[:in.MaxMessages]
	}
	out := conversationOutput{
		ID:        view.ID,
		Title:     view.Title,
		Model:     view.DefaultModelSlug,
		CreatedAt: formatTime(view.CreatedAt),
		UpdatedAt: formatTime(view.UpdatedAt),
		Total:     len(view.Messages),
		Messages:  make([]messageOutput, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, messageOutput{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Code:      m.Code,
			Model:     m.ModelSlug,
			Lang:      m.Lang,
			CreatedAt: formatTime(m.CreatedAt),
			TurnIndex: m.TurnIndex,
		})
	}
	return nil, out, nil
}

func (s *Server) handleCorpusStats(ctx context.Context, _ *mcp.CallToolRequest, _ corpusStatsInput) (*mcp.CallToolResult, corpusStatsOutput, error) {
	st, err := s.searcher.Stats(ctx)
	if err != nil {
		return nil, corpusStatsOutput{}, err
	}
	return nil, corpusStatsOutput{
		Conversations:     st.ConversationCount,
		Messages:          st.MessageCount,
		Keywords:          st.KeywordCount,
		FirstConversation: formatTime(st.FirstConversation),
		LastConversation:  formatTime(st.LastConversation),
		Roles:             counts(st.Roles),
		Models:            counts(st.Models),
		ContentTypes:      counts(st.ContentTypes),
		Languages:         counts(st.Languages),
		SizeMB:            st.SizeMB(),
		SchemaVersion:     st.SchemaVersion,
		BuildID:           st.BuildID,
	}, nil
}

func (s *Server) handleKeywords(ctx context.Context, _ *mcp.CallToolRequest, in keywordsInput) (*mcp.CallToolResult, keywordsOutput, error) {
	limit, err := s.clamp(in.Limit, search.DefaultTopKeywords)
	if err != nil {
		return nil, keywordsOutput{}, err
	}

	var kws []search.Keyword
	if id := strings.TrimSpace(in.ConversationID); id != "" {
		kws, err = s.searcher.ConversationKeywords(ctx, id)
	} else {
		kws, err = s.searcher.TopKeywords(ctx, limit)
	}
	if err != nil {
		return nil, keywordsOutput{}, err
	}

	out := keywordsOutput{ConversationID: in.ConversationID, Keywords: make([]keywordOutput, 0, len(kws))}
	for _, k := range kws {
		out.Keywords = append(out.Keywords, keywordOutput{Keyword: k.Keyword, Score: k.Score})
	}
	return nil, out, nil
}

func counts(in []search.Count) []countOutput {
	out := make([]countOutput, 0, len(in))
	for _, c := range in {
		out = append(out, countOutput{Key: c.Key, Count: c.Count})
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
