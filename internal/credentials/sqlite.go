package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	origin     TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (origin, key)
);`

// SQLiteStore implements Store over a SQLite database file. It is the default
// durable backend: values survive restarts and are shared by every process
// opening the same file for the same origin.
type SQLiteStore struct {
	db     *sql.DB
	origin string
}

// NewSQLiteStore ensures the credentials table exists and returns a store
// scoped to origin. The caller owns db.
func NewSQLiteStore(ctx context.Context, db *sql.DB, origin string) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite credential store: nil db")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create credentials table: %w", err)
	}
	return &SQLiteStore{db: db, origin: origin}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE origin = ?1 AND key = ?2`,
		s.origin, string(key)).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key Key, value string) error {
	if err := checkSet(key, value); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO credentials (origin, key, value, updated_at) VALUES (?1, ?2, ?3, ?4)
ON CONFLICT (origin, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.origin, string(key), value, time.Now().UTC().UnixMilli())
	return err
}

func (s *SQLiteStore) Remove(ctx context.Context, key Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE origin = ?1 AND key = ?2`, s.origin, string(key))
	return err
}
