package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/chatindex/internal/conversation"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "index.db"), DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_FreshSchema(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)

	for _, table := range []string{"meta", "conversations", "messages", "messages_fts", "keywords"} {
		ok, err := s.TableExists(ctx, table)
		require.NoError(t, err)
		assert.True(t, ok, "table %s", table)
	}

	size, err := s.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Positive(t, size)
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.db")

	s, err := Open(ctx, path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.SetMeta(ctx, "build_id", "abc"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Meta(ctx, "build_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	_, ok, err = s.Meta(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenExisting_CurrentSchemaIsNotWritten(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := Open(ctx, path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenExisting(ctx, path, DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	// The store holds one connection, so total_changes covers everything
	// Open did on it.
	var changes int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT total_changes()`).Scan(&changes))
	assert.Zero(t, changes)

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestOpen_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not a sqlite file ", 256)), 0o600))

	_, err := Open(context.Background(), path, DefaultOptions())
	require.ErrorIs(t, err, ErrInvalidStore)
	assert.Contains(t, err.Error(), "--rebuild")
}

func TestOpenExisting_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	_, err := OpenExisting(context.Background(), path, DefaultOptions())
	require.ErrorIs(t, err, ErrStoreNotFound)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "read path must not create the file")
}

func TestOptions_Validate(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())

	opts.Synchronous = "sometimes"
	assert.Error(t, opts.Validate())

	opts = DefaultOptions()
	opts.CacheSizeKB = 0
	assert.Error(t, opts.Validate())
}

func TestMigrate_FromVersionOne(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "v1.db")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT)`,
		`INSERT INTO meta (key, value) VALUES ('schema_version', '1')`,
		`CREATE TABLE conversations (id TEXT PRIMARY KEY, title TEXT, created_at REAL, updated_at REAL, default_model_slug TEXT)`,
		`CREATE TABLE messages (id TEXT PRIMARY KEY, conversation_id TEXT NOT NULL, role TEXT NOT NULL, content TEXT, code TEXT,
			content_type TEXT, model_slug TEXT, created_at REAL, turn_index INTEGER)`,
		`CREATE TABLE entities (id INTEGER PRIMARY KEY, conversation_id TEXT, name TEXT)`,
		`INSERT INTO conversations (id, title) VALUES ('c1', 'Old')`,
		`INSERT INTO messages (id, conversation_id, role, content) VALUES ('m1', 'c1', 'user', 'hello')`,
	} {
		_, err := raw.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, raw.Close())

	s, err := Open(ctx, path, DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	ok, err := s.TableExists(ctx, "entities")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.TableExists(ctx, "keywords")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, col := range [][2]string{{"conversations", "message_count"}, {"messages", "lang"}} {
		ok, err := columnExists(ctx, s.DB(), col[0], col[1])
		require.NoError(t, err)
		assert.True(t, ok, "%s.%s", col[0], col[1])
	}

	var content string
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT content FROM messages WHERE id = 'm1'`).Scan(&content))
	assert.Equal(t, "hello", content)
}

func TestDropAll(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.DropAll(ctx))
	for _, table := range []string{"meta", "conversations", "messages", "messages_fts", "keywords"} {
		ok, err := s.TableExists(ctx, table)
		require.NoError(t, err)
		assert.False(t, ok, "table %s", table)
	}

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, s.Init(ctx))
	v, err = s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func testConversation() *conversation.Conversation {
	created := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	return &conversation.Conversation{
		ID:               "conv-1",
		Title:            "Loops in Python",
		CreatedAt:        &created,
		DefaultModelSlug: "gpt-4o",
		Messages: []conversation.Message{
			{ID: "m1", ConversationID: "conv-1", Role: conversation.RoleUser, Content: "how do I write a loop", ContentType: "text", TurnIndex: 0, Lang: "en"},
			{ID: "m2", ConversationID: "conv-1", Role: conversation.RoleAssistant, Content: "use for", Code: "for i in range(3): pass", ContentType: "text", TurnIndex: 1, Lang: "en"},
		},
	}
}

func writeConversation(t *testing.T, s *Store, c *conversation.Conversation) (inserted, skipped int) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.UpsertConversation(ctx, c))
	for i := range c.Messages {
		ok, err := tx.InsertMessage(ctx, c.Title, &c.Messages[i])
		require.NoError(t, err)
		if ok {
			inserted++
		} else {
			skipped++
		}
	}
	require.NoError(t, tx.RefreshMessageCount(ctx, c.ID))
	require.NoError(t, tx.Commit())
	return inserted, skipped
}

func TestTx_InsertAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	c := testConversation()

	inserted, skipped := writeConversation(t, s, c)
	assert.Equal(t, 2, inserted)
	assert.Zero(t, skipped)

	c.Title = "Renamed"
	inserted, skipped = writeConversation(t, s, c)
	assert.Zero(t, inserted)
	assert.Equal(t, 2, skipped)

	var title string
	var count int
	require.NoError(t, s.DB().QueryRowContext(ctx,
		`SELECT title, message_count FROM conversations WHERE id = 'conv-1'`).Scan(&title, &count))
	assert.Equal(t, "Renamed", title)
	assert.Equal(t, 2, count)

	var ftsRows int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM messages_fts`).Scan(&ftsRows))
	assert.Equal(t, 2, ftsRows)

	var hit string
	require.NoError(t, s.DB().QueryRowContext(ctx,
		`SELECT m.id FROM messages_fts JOIN messages m ON m.rowid = messages_fts.rowid WHERE messages_fts MATCH 'range'`).Scan(&hit))
	assert.Equal(t, "m2", hit)
}

func TestReplaceKeywords(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	writeConversation(t, s, testConversation())

	n, err := s.ReplaceKeywords(ctx, map[string][]Keyword{
		"conv-1": {{Term: "loop", Score: 0.7}, {Term: "python", Score: 0.5}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.ReplaceKeywords(ctx, map[string][]Keyword{
		"conv-1": {{Term: "range", Score: 0.9}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var total int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM keywords`).Scan(&total))
	assert.Equal(t, 1, total)
}
