// Package postgres stores sessions in the chat_session table. Updates for
// one session id are serialized with a row lock.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sqlagent/sqlagent/internal/session"
)

type Store struct {
	db    *sql.DB
	clock func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, clock: time.Now}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sessions db: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	var raw []byte
	var updatedAt time.Time
	if err := s.db.QueryRowContext(ctx, `
SELECT state, updated_at
FROM chat_session
WHERE session_id = $1`, id).Scan(&raw, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(id, raw, updatedAt)
}

// Update runs fn while holding the session row lock. The lock and its pooled
// connection stay taken until fn returns, so concurrent chats each pin one
// connection for the length of their pipeline run.
func (s *Store) Update(ctx context.Context, id string, fn func(*session.Session) error) (session.Session, error) {
	now := s.clock().UTC()
	initial, err := json.Marshal(session.New(id))
	if err != nil {
		return session.Session{}, fmt.Errorf("encode new session: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return session.Session{}, fmt.Errorf("begin session tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO chat_session (session_id, state, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (session_id) DO NOTHING`, id, initial, now); err != nil {
		return session.Session{}, fmt.Errorf("ensure session: %w", err)
	}

	var raw []byte
	var updatedAt time.Time
	if err := tx.QueryRowContext(ctx, `
SELECT state, updated_at
FROM chat_session
WHERE session_id = $1
FOR UPDATE`, id).Scan(&raw, &updatedAt); err != nil {
		return session.Session{}, fmt.Errorf("lock session: %w", err)
	}
	current, err := decodeSession(id, raw, updatedAt)
	if err != nil {
		return session.Session{}, err
	}

	if err := fn(&current); err != nil {
		return session.Session{}, err
	}
	current.ID = id
	if !current.UpdatedAt.After(updatedAt.UTC()) {
		current.UpdatedAt = now
	}

	encoded, err := json.Marshal(current)
	if err != nil {
		return session.Session{}, fmt.Errorf("encode session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE chat_session
SET state = $2, updated_at = $3
WHERE session_id = $1`, id, encoded, current.UpdatedAt); err != nil {
		return session.Session{}, fmt.Errorf("update session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return session.Session{}, fmt.Errorf("commit session tx: %w", err)
	}
	return current, nil
}

func decodeSession(id string, raw []byte, updatedAt time.Time) (session.Session, error) {
	current := session.New(id)
	if err := json.Unmarshal(raw, &current); err != nil {
		return session.Session{}, fmt.Errorf("decode session %q: %w", id, err)
	}
	current.ID = id
	current.UpdatedAt = updatedAt.UTC()
	return current.Clone(), nil
}
