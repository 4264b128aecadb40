package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// postgresCloudStore holds cloud saves when DATABASE_URL is set.
type postgresCloudStore struct {
	db *sql.DB
}

func OpenPostgresStore(ctx context.Context, dbURL string) (*postgresCloudStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := ensureCloudSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &postgresCloudStore{db: db}, nil
}

func ensureCloudSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS player_saves (
			player_id TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			save_count BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (s *postgresCloudStore) Load(ctx context.Context, playerID string) (Snapshot, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data
		FROM player_saves
		WHERE player_id = $1
	`, playerID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return Snapshot(data), true, nil
}

func (s *postgresCloudStore) Save(ctx context.Context, playerID string, data Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_saves (player_id, data, save_count, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (player_id)
		DO UPDATE SET
			data = EXCLUDED.data,
			save_count = player_saves.save_count + 1,
			updated_at = NOW()
	`, playerID, string(data))
	return err
}

func (s *postgresCloudStore) Close() error {
	return s.db.Close()
}
