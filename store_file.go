package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// fileSaveStore writes each player's snapshot as a zstd-compressed JSON
// file. Writes go through a temp file and rename.
type fileSaveStore struct {
	dir string
}

func OpenFileStore(dir string) (*fileSaveStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty save dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileSaveStore{dir: dir}, nil
}

func (s *fileSaveStore) path(playerID string) string {
	return filepath.Join(s.dir, playerID+".json.zst")
}

func (s *fileSaveStore) Load(ctx context.Context, playerID string) (Snapshot, bool, error) {
	if !isValidPlayerID(playerID) {
		return nil, false, fmt.Errorf("file load: invalid player id %q", playerID)
	}
	f, err := os.Open(s.path(playerID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, false, fmt.Errorf("file load %s: %w", playerID, err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, false, fmt.Errorf("file load %s: %w", playerID, err)
	}
	return Snapshot(data), true, nil
}

func (s *fileSaveStore) Save(ctx context.Context, playerID string, data Snapshot) error {
	if !isValidPlayerID(playerID) {
		return fmt.Errorf("file save: invalid player id %q", playerID)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	path := s.path(playerID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("file save %s: %w", playerID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("file save %s: %w", playerID, err)
	}
	return nil
}

func (s *fileSaveStore) Close() error {
	return nil
}
