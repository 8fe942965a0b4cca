package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	phone TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	context_json TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteStore keeps sessions in a single-file database, for single-node
// deployments without Redis or Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path and creates the sessions table if needed.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: open sqlite %s: %w", path, err)
	}
	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func newSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT context_json FROM sessions WHERE phone = ?`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: sqlite select %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("session: sqlite decode %s: %w", id, err)
	}
	return &sess, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", sess.ID, err)
	}
	updated := sess.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (phone, state, context_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			state = excluded.state,
			context_json = excluded.context_json,
			updated_at = excluded.updated_at`,
		sess.ID, string(sess.State), string(data), updated.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("session: sqlite upsert %s: %w", sess.ID, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
