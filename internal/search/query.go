package search

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidQuery is returned for blank or syntactically invalid queries.
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrInvalidDate is returned when a date filter cannot be parsed.
	ErrInvalidDate = errors.New("invalid date filter")

	// ErrNotFound is returned when no conversation matches an id or prefix.
	ErrNotFound = errors.New("conversation not found")
)

// QueryError describes a query the full-text engine rejected.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid search query %q: check full-text syntax (for example, unmatched quotes): %v", e.Query, e.Err)
}

// Unwrap lets errors.Is match ErrInvalidQuery.
func (e *QueryError) Unwrap() []error {
	return []error{ErrInvalidQuery, e.Err}
}

// DefaultLimit is the result cap when a query does not set one.
const DefaultLimit = 20

// Query is one full-text search with optional filters.
type Query struct {
	Text string

	// Role matches the message role exactly.
	Role string

	// Model matches any model slug containing it.
	Model string

	// Since is an inclusive lower bound on message time.
	Since *time.Time

	// Until is an exclusive upper bound on message time.
	Until *time.Time

	// Lang keeps conversations with at least one message in this language.
	Lang string

	// Limit caps the number of results. 0 means DefaultLimit.
	Limit int
}

// Validate checks the query for errors.
func (q *Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: query is empty", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must be greater than 0, got %d", ErrInvalidQuery, q.Limit)
	}
	if q.Since != nil && q.Until != nil && !q.Until.After(*q.Since) {
		return fmt.Errorf("%w: until must be after since", ErrInvalidQuery)
	}
	return nil
}

func (q *Query) limit() int {
	if q.Limit == 0 {
		return DefaultLimit
	}
	return q.Limit
}

// ftsOperators mark a query as already written in full-text syntax.
var ftsOperators = []string{`"`, "OR ", "AND ", "NOT ", "*", "(", ")"}

// SanitizeQuery prepares user input for an FTS5 MATCH expression.
// Queries using operators pass through unchanged. Otherwise ASCII
// punctuation becomes whitespace and the remaining terms are joined with
// single spaces, which FTS5 reads as an implicit AND. If nothing remains the
// original text is matched as a quoted phrase.
func SanitizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return q
	}
	for _, op := range ftsOperators {
		if strings.Contains(q, op) {
			return q
		}
	}

	cleaned := strings.Map(func(r rune) rune {
		if r < 0x80 && r != '_' && !isASCIIAlnum(r) {
			return ' '
		}
		return r
	}, q)
	terms := strings.Fields(cleaned)
	if len(terms) == 0 {
		return `"` + q + `"`
	}
	return strings.Join(terms, " ")
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// dateLayouts are tried in order; each maps to the length of its period.
var dateLayouts = []struct {
	layout string
	next   func(time.Time) time.Time
}{
	{"2006-01-02", func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }},
	{"2006-01", func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }},
	{"2006", func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }},
}

// ParseDateFilter parses YYYY, YYYY-MM or YYYY-MM-DD in UTC. With end set
// it returns the start of the following period, suitable as an exclusive
// upper bound, so "2024-03" as an end covers all of March.
func ParseDateFilter(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, d := range dateLayouts {
		t, err := time.ParseInLocation(d.layout, s, time.UTC)
		if err != nil {
			continue
		}
		if end {
			return d.next(t), nil
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q, use YYYY, YYYY-MM, or YYYY-MM-DD", ErrInvalidDate, s)
}

// FormatTimestamp renders t as "2006-01-02 15:04" in UTC, or "unknown".
func FormatTimestamp(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
