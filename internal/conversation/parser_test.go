package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const branchingRecord = `{
  "conversation_id": "conv-1",
  "title": "Branching chat",
  "create_time": 1718000000.5,
  "update_time": 1718000500,
  "default_model_slug": "gpt-4o",
  "current_node": "a2",
  "mapping": {
    "root": {"id": "root", "message": null, "parent": null, "children": ["sys"]},
    "sys": {"id": "sys", "parent": "root", "children": ["u1"],
      "message": {"id": "m-sys", "author": {"role": "system"}, "content": {"content_type": "text", "parts": [""]}}},
    "u1": {"id": "u1", "parent": "sys", "children": ["a1", "t1"],
      "message": {"id": "m-u1", "author": {"role": "user"}, "create_time": 1718000001,
        "content": {"content_type": "multimodal_text", "parts": ["Show me a loop", {"asset_pointer": "file-service://x"}]}}},
    "a1": {"id": "a1", "parent": "u1", "children": [],
      "message": {"id": "m-a1", "author": {"role": "assistant"}, "content": {"content_type": "text", "parts": ["discarded branch"]}}},
    "t1": {"id": "t1", "parent": "u1", "children": ["c1"],
      "message": {"id": "m-t1", "author": {"role": "assistant"}, "content": {"content_type": "thoughts", "thoughts": []}}},
    "c1": {"id": "c1", "parent": "t1", "children": ["a2"],
      "message": {"id": "m-c1", "author": {"role": "assistant"}, "content": {"content_type": "code", "text": "for i in range(3):\n    print(i)"}}},
    "a2": {"id": "a2", "parent": "c1", "children": [],
      "message": {"id": "", "author": {"role": "assistant"}, "metadata": {"model_slug": "gpt-4o"},
        "content": {"content_type": "text", "parts": ["Here you go citeturn0search1\n` + "```python\\nfor i in range(3):\\n    print(i)\\n```" + `\nDone."]}}}
  }
}`

func TestParseRecord_Branching(t *testing.T) {
	conv, err := ParseRecord(json.RawMessage(branchingRecord))
	require.NoError(t, err)
	require.NotNil(t, conv)

	assert.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, "Branching chat", conv.Title)
	assert.Equal(t, "gpt-4o", conv.DefaultModelSlug)
	require.NotNil(t, conv.CreatedAt)
	assert.Equal(t, int64(1718000000), conv.CreatedAt.Unix())

	require.Len(t, conv.Messages, 3)
	for i, m := range conv.Messages {
		assert.Equal(t, i, m.TurnIndex)
		assert.Equal(t, "conv-1", m.ConversationID)
		assert.False(t, m.IsEmpty())
	}

	user := conv.Messages[0]
	assert.Equal(t, "m-u1", user.ID)
	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, "Show me a loop", user.Content)
	assert.Equal(t, "multimodal_text", user.ContentType)
	require.NotNil(t, user.CreatedAt)

	code := conv.Messages[1]
	assert.Equal(t, ContentTypeCode, code.ContentType)
	assert.Empty(t, code.Content)
	assert.Contains(t, code.Code, "print(i)")

	answer := conv.Messages[2]
	assert.Equal(t, "a2", answer.ID, "falls back to node id")
	assert.Equal(t, "gpt-4o", answer.ModelSlug)
	assert.NotContains(t, answer.Content, "citeturn")
	assert.NotContains(t, answer.Content, "print(i)")
	assert.Contains(t, answer.Content, "Done.")
	assert.Contains(t, answer.Code, "print(i)")

	for _, m := range conv.Messages {
		assert.NotEqual(t, "discarded branch", m.Content)
	}
}

func TestParseRecord_Discarded(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing current node", `{"id": "c", "mapping": {}, "current_node": null, "title": "Test"}`},
		{"empty mapping", `{"id": "c", "mapping": {}, "current_node": "x"}`},
		{"no retained messages", `{"id": "c", "current_node": "n", "mapping": {"n": {"id": "n", "message": {"author": {"role": "user"}, "content": {"parts": ["   "]}}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := ParseRecord(json.RawMessage(tt.raw))
			assert.NoError(t, err)
			assert.Nil(t, conv)
		})
	}
}

func TestParseRecord_Defaults(t *testing.T) {
	raw := `{"id": "c-2", "current_node": "n", "mapping": {"n": {"message": {"author": {"role": "critic"}, "content": {"text": "fallback text"}}}}}`

	conv, err := ParseRecord(json.RawMessage(raw))
	require.NoError(t, err)
	require.NotNil(t, conv)

	assert.Equal(t, "c-2", conv.ID)
	assert.Equal(t, DefaultTitle, conv.Title)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "n", conv.Messages[0].ID)
	assert.Equal(t, RoleUnknown, conv.Messages[0].Role)
	assert.Equal(t, ContentTypeText, conv.Messages[0].ContentType)
	assert.Equal(t, "fallback text", conv.Messages[0].Content)
}

func TestParseRecord_Errors(t *testing.T) {
	_, err := ParseRecord(json.RawMessage(`42`))
	assert.Error(t, err)

	_, err = ParseRecord(json.RawMessage(`{"title": "no id", "current_node": "n", "mapping": {"n": {}}}`))
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = ParseRecord(json.RawMessage(`{"id": "x", "mapping": "not a map"}`))
	assert.Error(t, err)
}

func TestParser_Parse(t *testing.T) {
	doc := "[" + branchingRecord + `,
		42,
		{"id": "empty", "mapping": {}, "current_node": null},
		{"id": "c-3", "title": "Second", "current_node": "n", "mapping": {"n": {"id": "n", "message": {"id": "m3", "author": {"role": "user"}, "content": {"parts": ["hi there"]}}}}}
	]`

	export, err := NewParser().Parse(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 4, export.Len())

	var ids []string
	err = export.Each(context.Background(), func(c *Conversation) error {
		ids = append(ids, c.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"conv-1", "c-3"}, ids)

	stats := export.Stats()
	assert.Equal(t, 4, stats.Records)
	assert.Equal(t, 2, stats.Parsed)
	assert.Equal(t, 1, stats.Discarded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Skipped())
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, 1, stats.Errors[0].Index)
}

func TestParser_Parse_CallbackErrorStops(t *testing.T) {
	doc := "[" + branchingRecord + "," + branchingRecord + "]"
	export, err := NewParser().Parse(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)

	boom := errors.New("boom")
	calls := 0
	err = export.Each(context.Background(), func(*Conversation) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestParser_Parse_TopLevel(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
		wantMsg string
	}{
		{"object", `{"conversations": []}`, ErrNotArray, "got object"},
		{"string", `"hello"`, ErrNotArray, "got string"},
		{"invalid", `[{"id": `, ErrInvalidJSON, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(context.Background(), strings.NewReader(tt.doc))
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParser_ParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))

	export, err := NewParser().ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, export.Len())

	_, err = NewParser().ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
