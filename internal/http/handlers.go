package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chatindex/internal/search"
)

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleSearch runs GET /api/v1/search?q=&role=&model=&since=&until=&lang=&limit=.
func (s *Server) handleSearch(c echo.Context) error {
	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.RateLimitedTotal.Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, "search rate limit exceeded, retry shortly")
	}

	q, err := parseSearchQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	results, err := s.searcher.Search(c.Request().Context(), q)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, SearchResponse{
		Query:   q.Text,
		Count:   len(results),
		Results: results,
	})
}

func parseSearchQuery(c echo.Context) (search.Query, error) {
	q := search.Query{
		Text:  c.QueryParam("q"),
		Role:  strings.TrimSpace(c.QueryParam("role")),
		Model: strings.TrimSpace(c.QueryParam("model")),
		Lang:  strings.TrimSpace(c.QueryParam("lang")),
	}
	if v := c.QueryParam("since"); v != "" {
		t, err := search.ParseDateFilter(v, false)
		if err != nil {
			return q, err
		}
		q.Since = &t
	}
	if v := c.QueryParam("until"); v != "" {
		t, err := search.ParseDateFilter(v, true)
		if err != nil {
			return q, err
		}
		q.Until = &t
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return q, err
	}
	if c.QueryParam("limit") != "" && limit <= 0 {
		return q, fmt.Errorf("limit must be greater than 0, got %d", limit)
	}
	q.Limit = limit
	return q, nil
}

// queryInt parses an optional integer parameter; absent reads as 0.
func queryInt(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, v)
	}
	return n, nil
}

// handleConversation returns a conversation by id or id prefix.
func (s *Server) handleConversation(c echo.Context) error {
	view, err := s.searcher.Conversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) handleConversationKeywords(c echo.Context) error {
	id := c.Param("id")
	kws, err := s.searcher.ConversationKeywords(c.Request().Context(), id)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, KeywordsResponse{ConversationID: id, Keywords: kws})
}

// handleKeywords returns the corpus-wide top keywords.
func (s *Server) handleKeywords(c echo.Context) error {
	n, err := queryInt(c, "limit")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if n < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("limit must not be negative, got %d", n))
	}
	kws, err := s.searcher.TopKeywords(c.Request().Context(), n)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, KeywordsResponse{Keywords: kws})
}

func (s *Server) handleStats(c echo.Context) error {
	st, err := s.searcher.Stats(c.Request().Context())
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, StatsResponse{CorpusStats: st, SizeMB: st.SizeMB()})
}

// apiError maps searcher errors to status codes. Unexpected errors are
// logged and hidden from the client.
func (s *Server) apiError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, search.ErrInvalidQuery), errors.Is(err, search.ErrInvalidDate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, search.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		s.logger.Error(c.Request().Context(), "api request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
