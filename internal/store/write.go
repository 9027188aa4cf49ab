package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fyrsmithlabs/chatindex/internal/conversation"
)

// Keyword is one scored term attached to a conversation.
type Keyword struct {
	Term  string
	Score float64
}

// Tx is a write transaction with prepared statements for ingestion.
// It is not safe for concurrent use.
type Tx struct {
	tx          *sql.Tx
	upsertConv  *sql.Stmt
	insertMsg   *sql.Stmt
	insertFTS   *sql.Stmt
	updateCount *sql.Stmt
	dropEmpty   *sql.Stmt
}

// Begin starts a write transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	t := &Tx{tx: sqlTx}

	prepare := func(dst **sql.Stmt, query string) {
		if err != nil {
			return
		}
		*dst, err = sqlTx.PrepareContext(ctx, query)
	}
	prepare(&t.upsertConv, `INSERT INTO conversations (id, title, created_at, updated_at, default_model_slug, message_count)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			default_model_slug = excluded.default_model_slug`)
	prepare(&t.insertMsg, `INSERT INTO messages (id, conversation_id, role, content, code, content_type, model_slug, created_at, turn_index, lang)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	prepare(&t.insertFTS, `INSERT INTO messages_fts (rowid, title, content, code) VALUES (?, ?, ?, ?)`)
	prepare(&t.updateCount, `UPDATE conversations
		SET message_count = (SELECT COUNT(*) FROM messages WHERE conversation_id = ?)
		WHERE id = ?`)
	prepare(&t.dropEmpty, `DELETE FROM conversations
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM messages WHERE conversation_id = ?)`)
	if err != nil {
		_ = sqlTx.Rollback()
		return nil, fmt.Errorf("preparing statements: %w", err)
	}
	return t, nil
}

// UpsertConversation inserts a conversation row or refreshes its metadata.
// The message count is left for RefreshMessageCount.
func (t *Tx) UpsertConversation(ctx context.Context, c *conversation.Conversation) error {
	_, err := t.upsertConv.ExecContext(ctx,
		c.ID, c.Title, nullTime(c.CreatedAt), nullTime(c.UpdatedAt), nullString(c.DefaultModelSlug))
	if err != nil {
		return fmt.Errorf("upserting conversation %s: %w", c.ID, err)
	}
	return nil
}

// InsertMessage stores a message and its full-text row. inserted is false
// when a message with the same id already exists; nothing is written then.
func (t *Tx) InsertMessage(ctx context.Context, title string, m *conversation.Message) (inserted bool, err error) {
	res, err := t.insertMsg.ExecContext(ctx,
		m.ID, m.ConversationID, string(m.Role), m.Content, m.Code, m.ContentType,
		nullString(m.ModelSlug), nullTime(m.CreatedAt), m.TurnIndex, nullString(m.Lang))
	if err != nil {
		return false, fmt.Errorf("inserting message %s: %w", m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	rowid, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	if _, err := t.insertFTS.ExecContext(ctx, rowid, title, m.Content, m.Code); err != nil {
		return false, fmt.Errorf("indexing message %s: %w", m.ID, err)
	}
	return true, nil
}

// RefreshMessageCount sets message_count to the number of stored messages.
func (t *Tx) RefreshMessageCount(ctx context.Context, conversationID string) error {
	_, err := t.updateCount.ExecContext(ctx, conversationID, conversationID)
	return err
}

// DropIfEmpty deletes the conversation row when no message references it,
// as happens when every message id was already stored under another
// conversation. dropped reports whether the row was removed.
func (t *Tx) DropIfEmpty(ctx context.Context, conversationID string) (dropped bool, err error) {
	res, err := t.dropEmpty.ExecContext(ctx, conversationID, conversationID)
	if err != nil {
		return false, fmt.Errorf("dropping empty conversation %s: %w", conversationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. It is a no-op after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// ReplaceKeywords deletes every stored keyword and writes the given sets in
// one transaction. Keys are conversation ids.
func (s *Store) ReplaceKeywords(ctx context.Context, sets map[string][]Keyword) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords`); err != nil {
		return 0, fmt.Errorf("clearing keywords: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO keywords (conversation_id, keyword, score) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	total := 0
	for convID, kws := range sets {
		for _, kw := range kws {
			if _, err := stmt.ExecContext(ctx, convID, kw.Term, kw.Score); err != nil {
				return 0, fmt.Errorf("inserting keyword for %s: %w", convID, err)
			}
			total++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func nullTime(t *time.Time) sql.NullFloat64 {
	if t == nil {
		return sql.NullFloat64{}
	}
	v := conversation.UnixSeconds(*t)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
