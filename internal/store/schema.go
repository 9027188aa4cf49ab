package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// SchemaVersion is the version written by EnsureSchema and the migrations.
const SchemaVersion = 4

const metaKeySchemaVersion = "schema_version"

// schemaStatements create every owned object. All are idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT,
		created_at REAL,
		updated_at REAL,
		default_model_slug TEXT,
		message_count INTEGER DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT,
		code TEXT,
		content_type TEXT,
		model_slug TEXT,
		created_at REAL,
		turn_index INTEGER,
		lang TEXT,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_role ON messages(role)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_model ON messages(model_slug)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_lang ON messages(lang)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
		title,
		content,
		code,
		tokenize='porter unicode61 remove_diacritics 2'
	)`,
	keywordsTable,
	`CREATE INDEX IF NOT EXISTS idx_keywords_keyword ON keywords(keyword)`,
	`CREATE INDEX IF NOT EXISTS idx_keywords_conversation ON keywords(conversation_id)`,
}

const keywordsTable = `CREATE TABLE IF NOT EXISTS keywords (
	id INTEGER PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	keyword TEXT NOT NULL,
	score REAL NOT NULL,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id)
)`

// dropStatements remove every owned object, including ones only older
// schema versions created.
var dropStatements = []string{
	`DROP TABLE IF EXISTS keywords`,
	`DROP TABLE IF EXISTS entities`,
	`DROP TABLE IF EXISTS messages_fts`,
	`DROP TRIGGER IF EXISTS messages_ai`,
	`DROP TRIGGER IF EXISTS messages_ad`,
	`DROP TRIGGER IF EXISTS messages_au`,
	`DROP TABLE IF EXISTS messages`,
	`DROP TABLE IF EXISTS conversations`,
	`DROP TABLE IF EXISTS meta`,
}

// EnsureSchema creates any missing tables and indexes and records the
// current schema version.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing %.40q: %w", stmt, err)
		}
	}
	if err := setMeta(ctx, tx, metaKeySchemaVersion, strconv.Itoa(SchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// DropAll removes every table, index and trigger owned by the store.
// The file itself is kept.
func (s *Store) DropAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range dropStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt, err)
		}
	}
	return tx.Commit()
}

// Version returns the recorded schema version, or 0 when none is recorded.
func (s *Store) Version(ctx context.Context) (int, error) {
	return schemaVersion(ctx, s.db)
}

// Meta returns the value stored under key. ok is false when absent.
func (s *Store) Meta(ctx context.Context, key string) (value string, ok bool, err error) {
	return getMeta(ctx, s.db, key)
}

// SetMeta stores value under key, replacing any previous value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return setMeta(ctx, s.db, key, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getMeta(ctx context.Context, q querier, key string) (string, bool, error) {
	ok, err := tableExists(ctx, q, "meta")
	if err != nil || !ok {
		return "", false, err
	}
	var value sql.NullString
	err = q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading meta %q: %w", key, err)
	}
	return value.String, true, nil
}

func setMeta(ctx context.Context, e execer, key, value string) error {
	_, err := e.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing meta %q: %w", key, err)
	}
	return nil
}

func schemaVersion(ctx context.Context, q querier) (int, error) {
	v, ok, err := getMeta(ctx, q, metaKeySchemaVersion)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
