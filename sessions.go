package main

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionRegistry hosts the live sessions of this process, one per player.
type SessionRegistry struct {
	deps        SessionDeps
	idleTimeout time.Duration
	logger      *log.Logger

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

// sessionEntry is a registry slot. ready closes once the session has loaded;
// closing is set while its final save is being written and closes after.
type sessionEntry struct {
	session *Session
	ready   chan struct{}
	closing chan struct{}
}

func (e *sessionEntry) live() bool {
	return e.session != nil && e.closing == nil
}

func NewSessionRegistry(deps SessionDeps, idleTimeout time.Duration, logger *log.Logger) *SessionRegistry {
	if logger == nil {
		logger = log.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &SessionRegistry{
		deps:        deps,
		idleTimeout: idleTimeout,
		logger:      logger,
		entries:     map[string]*sessionEntry{},
	}
}

func newPlayerID() string {
	return uuid.NewString()
}

// Get returns the live session for playerID, loading it on first use. An
// empty playerID starts a brand new player. lang seeds new players only.
// Loads run outside the registry lock; a player being torn down is reloaded
// only after its final save lands.
func (r *SessionRegistry) Get(ctx context.Context, playerID string, lang string) *Session {
	if playerID == "" {
		playerID = newPlayerID()
	}

	for {
		r.mu.Lock()
		e, ok := r.entries[playerID]
		if !ok {
			e = &sessionEntry{ready: make(chan struct{})}
			r.entries[playerID] = e
			r.mu.Unlock()
			return r.load(ctx, e, playerID, lang)
		}
		closing := e.closing
		r.mu.Unlock()

		if closing != nil {
			<-closing
			continue
		}
		<-e.ready
		return e.session
	}
}

func (r *SessionRegistry) load(ctx context.Context, e *sessionEntry, playerID string, lang string) *Session {
	s := NewSession(playerID, r.deps)
	s.Init(ctx, lang)

	r.mu.Lock()
	e.session = s
	r.mu.Unlock()
	close(e.ready)

	r.logger.Println("Session: started", playerID)
	return s
}

func (r *SessionRegistry) Lookup(playerID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[playerID]
	if !ok || !e.live() {
		return nil, false
	}
	return e.session, true
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.live() {
			n++
		}
	}
	return n
}

// Each calls f for every live session, in player id order, without holding
// the registry lock.
func (r *SessionRegistry) Each(f func(*Session)) {
	for _, s := range r.snapshot() {
		f(s)
	}
}

func (r *SessionRegistry) snapshot() []*Session {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.entries))
	for _, e := range r.entries {
		if e.live() {
			list = append(list, e.session)
		}
	}
	r.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	return list
}

// EvictIdle tears down sessions nobody has touched for the idle timeout.
func (r *SessionRegistry) EvictIdle(ctx context.Context, now time.Time) int {
	if r.idleTimeout <= 0 {
		return 0
	}

	var idle []*sessionEntry
	r.mu.Lock()
	for _, e := range r.entries {
		if e.live() && now.Sub(e.session.LastSeen()) >= r.idleTimeout {
			e.closing = make(chan struct{})
			idle = append(idle, e)
		}
	}
	r.mu.Unlock()

	for _, e := range idle {
		res := e.session.Teardown(ctx)
		r.release(e)
		r.logger.Printf("Session: evicted %s (local=%t cloud=%t)", e.session.id, res.LocalSaved, res.CloudSaved)
	}
	return len(idle)
}

// release drops a torn down entry and wakes anyone waiting to reload it.
func (r *SessionRegistry) release(e *sessionEntry) {
	r.mu.Lock()
	if cur, ok := r.entries[e.session.id]; ok && cur == e {
		delete(r.entries, e.session.id)
	}
	r.mu.Unlock()
	close(e.closing)
}

// Shutdown tears down every session and empties the registry.
func (r *SessionRegistry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	list := make([]*sessionEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.live() {
			e.closing = make(chan struct{})
			list = append(list, e)
		}
	}
	r.mu.Unlock()

	for _, e := range list {
		res := e.session.Teardown(ctx)
		r.release(e)
		if !res.LocalSaved {
			r.logger.Printf("Session: final save for %s did not reach the local store", e.session.id)
		}
	}
	r.logger.Println("Session: shut down", len(list), "sessions")
}
