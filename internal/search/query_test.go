package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"transformer attention", "transformer attention"},
		{"  spaced   out  ", "spaced out"},
		{"node.js vs deno", "node js vs deno"},
		{"c++ templates", "c templates"},
		{"key:value", "key value"},
		{"don't panic, ok?", "don t panic ok"},
		{"snake_case", "snake_case"},
		{"привет, мир", "привет мир"},
		{`"exact phrase"`, `"exact phrase"`},
		{"rust OR go", "rust OR go"},
		{"NOT java", "NOT java"},
		{"embed*", "embed*"},
		{"(a b)", "(a b)"},
		{"+-.:", `"+-.:"`},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeQuery(tt.in), "SanitizeQuery(%q)", tt.in)
	}
}

func TestParseDateFilter(t *testing.T) {
	tests := []struct {
		in   string
		end  bool
		want time.Time
	}{
		{"2024", false, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024", true, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-02", false, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-02", true, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-12-31", false, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"2024-12-31", true, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseDateFilter(tt.in, tt.end)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "ParseDateFilter(%q, %v) = %v", tt.in, tt.end, got)
	}

	for _, bad := range []string{"", "yesterday", "2024/01/01", "2024-13"} {
		_, err := ParseDateFilter(bad, false)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}

func TestQuery_Validate(t *testing.T) {
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, -1, 0)

	tests := []struct {
		name    string
		q       Query
		wantErr bool
	}{
		{"ok", Query{Text: "go"}, false},
		{"blank", Query{Text: "   "}, true},
		{"negative limit", Query{Text: "go", Limit: -1}, true},
		{"inverted range", Query{Text: "go", Since: &since, Until: &until}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "unknown", FormatTimestamp(nil))
	ts := time.Date(2024, 6, 10, 12, 34, 56, 0, time.UTC)
	assert.Equal(t, "2024-06-10 12:34", FormatTimestamp(&ts))
}
