package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type sqliteSaveStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*sqliteSaveStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS player_saves (
			player_id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &sqliteSaveStore{db: db}, nil
}

func (s *sqliteSaveStore) Load(ctx context.Context, playerID string) (Snapshot, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data
		FROM player_saves
		WHERE player_id = ?
	`, playerID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite load %s: %w", playerID, err)
	}
	return Snapshot(data), true, nil
}

func (s *sqliteSaveStore) Save(ctx context.Context, playerID string, data Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_saves (player_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (player_id)
		DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, playerID, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite save %s: %w", playerID, err)
	}
	return nil
}

func (s *sqliteSaveStore) Close() error {
	return s.db.Close()
}
