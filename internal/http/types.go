package http

import "github.com/fyrsmithlabs/chatindex/internal/search"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// SearchResponse is the response body for GET /api/v1/search.
type SearchResponse struct {
	Query   string          `json:"query"`
	Count   int             `json:"count"`
	Results []search.Result `json:"results"`
}

// KeywordsResponse is the response body for both keyword endpoints.
type KeywordsResponse struct {
	ConversationID string           `json:"conversation_id,omitempty"`
	Keywords       []search.Keyword `json:"keywords"`
}

// StatsResponse is the response body for GET /api/v1/stats.
type StatsResponse struct {
	*search.CorpusStats
	SizeMB float64 `json:"size_mb"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Message string `json:"message"`
}
