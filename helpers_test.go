package main

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

var testStart = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// memStore is an in-memory SaveStore that counts writes.
type memStore struct {
	mu    sync.Mutex
	data  map[string]Snapshot
	saves int
	err   error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]Snapshot{}}
}

func (m *memStore) Load(ctx context.Context, playerID string) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	d, ok := m.data[playerID]
	return d, ok, nil
}

func (m *memStore) Save(ctx context.Context, playerID string, data Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[playerID] = append(Snapshot(nil), data...)
	m.saves++
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// scriptedPlatform answers every ad with a fixed result and counts calls.
type scriptedPlatform struct {
	*mockPlatform
	mu            sync.Mutex
	rewarded      AdResult
	interstitial  AdResult
	rewardedCalls int
	interCalls    int
}

func newScriptedPlatform(cloud SaveStore) *scriptedPlatform {
	return &scriptedPlatform{
		mockPlatform: NewMockPlatform(cloud),
		rewarded:     AdResult{Shown: true, Rewarded: true},
		interstitial: AdResult{Shown: true},
	}
}

func (p *scriptedPlatform) ShowInterstitial(ctx context.Context, playerID string) AdResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interCalls++
	return p.interstitial
}

func (p *scriptedPlatform) ShowRewarded(ctx context.Context, playerID string) AdResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rewardedCalls++
	return p.rewarded
}

func (p *scriptedPlatform) calls() (rewarded, interstitial int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rewardedCalls, p.interCalls
}

type testSessionOpts struct {
	store    SaveStore
	platform Platform
	tuning   *Tuning
	presence time.Duration
}

func newTestSession(t *testing.T, opts testSessionOpts) (*Session, *simClock) {
	t.Helper()
	clock := &simClock{now: testStart}
	tuning := DefaultTuning()
	if opts.tuning != nil {
		tuning = *opts.tuning
	}
	if opts.platform == nil {
		opts.platform = newScriptedPlatform(newMemStore())
	}
	s := NewSession("player-1", SessionDeps{
		Tuning:   tuning,
		Store:    opts.store,
		Platform: opts.platform,
		Logger:   discardLogger(),
		Now:      clock.Now,
		Location: time.UTC,
		Presence: opts.presence,
	})
	s.spawn = func(f func()) { f() }
	s.Init(context.Background(), "en")
	return s, clock
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
