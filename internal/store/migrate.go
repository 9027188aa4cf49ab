package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// Migration upgrades a schema from version From to From+1.
type Migration struct {
	From  int
	Name  string
	Apply func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the ordered upgrade chain. A migration runs when the
// recorded version is at or below From, so files with no recorded version
// replay the whole chain. Every step is idempotent.
var migrations = []Migration{
	{From: 1, Name: "add message_count and keywords", Apply: migrateAddKeywords},
	{From: 2, Name: "add message language", Apply: migrateAddLang},
	{From: 3, Name: "drop entities", Apply: migrateDropEntities},
}

// Migrate upgrades an existing index in place. Files without a messages
// table have nothing to upgrade and are left to EnsureSchema.
func (s *Store) Migrate(ctx context.Context) error {
	ok, err := tableExists(ctx, s.db, "messages")
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	current, err := schemaVersion(ctx, s.db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if current > m.From {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.From, m.Name, err)
		}
		current = m.From + 1
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := m.Apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return err
	}
	if err := setMeta(ctx, tx, metaKeySchemaVersion, strconv.Itoa(m.From+1)); err != nil {
		return err
	}
	return tx.Commit()
}

func migrateAddKeywords(ctx context.Context, tx *sql.Tx) error {
	hasConversations, err := tableExists(ctx, tx, "conversations")
	if err != nil {
		return err
	}
	if hasConversations {
		hasCount, err := columnExists(ctx, tx, "conversations", "message_count")
		if err != nil {
			return err
		}
		if !hasCount {
			if _, err := tx.ExecContext(ctx, `ALTER TABLE conversations ADD COLUMN message_count INTEGER DEFAULT 0`); err != nil {
				return err
			}
		}
	}

	for _, stmt := range []string{
		keywordsTable,
		`CREATE INDEX IF NOT EXISTS idx_keywords_keyword ON keywords(keyword)`,
		`CREATE INDEX IF NOT EXISTS idx_keywords_conversation ON keywords(conversation_id)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrateAddLang(ctx context.Context, tx *sql.Tx) error {
	hasLang, err := columnExists(ctx, tx, "messages", "lang")
	if err != nil {
		return err
	}
	if !hasLang {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE messages ADD COLUMN lang TEXT`); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_messages_lang ON messages(lang)`)
	return err
}

func migrateDropEntities(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS entities`)
	return err
}
