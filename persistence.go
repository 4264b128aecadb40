package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// SaveStore keeps one snapshot per player.
type SaveStore interface {
	Load(ctx context.Context, playerID string) (Snapshot, bool, error)
	Save(ctx context.Context, playerID string, data Snapshot) error
	Close() error
}

type SaveResult struct {
	LocalSaved bool `json:"localSaved"`
	CloudSaved bool `json:"cloudSaved"`
}

// Saver coalesces save requests for one player into at most one write per
// debounce window. Flush writes immediately. Failures are logged and the
// game continues in memory.
type Saver struct {
	playerID string
	local    SaveStore
	platform Platform
	export   func() (Snapshot, error)
	debounce time.Duration
	logger   *log.Logger

	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	writeMu sync.Mutex
}

func NewSaver(playerID string, local SaveStore, platform Platform, export func() (Snapshot, error), debounce time.Duration, logger *log.Logger) *Saver {
	if logger == nil {
		logger = log.Default()
	}
	return &Saver{
		playerID: playerID,
		local:    local,
		platform: platform,
		export:   export,
		debounce: debounce,
		logger:   logger,
	}
}

// RequestSave restarts the debounce deadline.
func (s *Saver) RequestSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Flush(ctx)
	})
}

func (s *Saver) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Flush cancels any pending deadline and writes now.
func (s *Saver) Flush(ctx context.Context) SaveResult {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var result SaveResult
	data, err := s.export()
	if err != nil {
		s.logger.Printf("save %s: export: %v", s.playerID, err)
		return result
	}

	if s.local != nil {
		if err := s.local.Save(ctx, s.playerID, data); err != nil {
			s.logger.Printf("save %s: local: %v", s.playerID, err)
		} else {
			result.LocalSaved = true
		}
	}

	if s.platform != nil && s.platform.IsAuthenticated(s.playerID) {
		if err := s.platform.CloudSave(ctx, s.playerID, data); err != nil {
			s.logger.Printf("save %s: cloud: %v", s.playerID, err)
		} else {
			result.CloudSaved = true
		}
	}
	return result
}

// Close flushes and stops accepting save requests.
func (s *Saver) Close(ctx context.Context) SaveResult {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Flush(ctx)
}

type SaveBackend string

const (
	SaveBackendSQLite SaveBackend = "sqlite"
	SaveBackendFile   SaveBackend = "file"
)

func ParseSaveBackend(value string) (SaveBackend, error) {
	switch SaveBackend(value) {
	case SaveBackendSQLite:
		return SaveBackendSQLite, nil
	case SaveBackendFile:
		return SaveBackendFile, nil
	case "":
		return "", fmt.Errorf("save backend is required (set SAVE_BACKEND to sqlite or file)")
	default:
		return "", fmt.Errorf("unsupported save backend: %s", value)
	}
}
