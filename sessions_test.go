package main

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T, store *memStore, clock *simClock, idle time.Duration) *SessionRegistry {
	t.Helper()
	return NewSessionRegistry(SessionDeps{
		Tuning:   DefaultTuning(),
		Store:    store,
		Platform: newScriptedPlatform(newMemStore()),
		Logger:   discardLogger(),
		Now:      clock.Now,
		Location: time.UTC,
	}, idle, discardLogger())
}

func TestRegistryGetReusesSessions(t *testing.T) {
	clock := &simClock{now: testStart}
	r := newTestRegistry(t, newMemStore(), clock, time.Hour)
	ctx := context.Background()

	a := r.Get(ctx, "player-1", "ru")
	b := r.Get(ctx, "player-1", "en")
	if a != b {
		t.Fatalf("second Get built a new session")
	}
	if a.State().Lang != "ru" {
		t.Fatalf("lang = %q, want the first request's language", a.State().Lang)
	}

	fresh := r.Get(ctx, "", "en")
	if fresh.ID() == "" || fresh.ID() == "player-1" || !isValidPlayerID(fresh.ID()) {
		t.Fatalf("new player id = %q", fresh.ID())
	}
	if r.Len() != 2 {
		t.Fatalf("sessions = %d, want 2", r.Len())
	}

	var ids []string
	r.Each(func(s *Session) { ids = append(ids, s.ID()) })
	if len(ids) != 2 || ids[0] > ids[1] {
		t.Fatalf("Each order = %v", ids)
	}
}

func TestRegistryEvictsIdleSessions(t *testing.T) {
	clock := &simClock{now: testStart}
	store := newMemStore()
	r := newTestRegistry(t, store, clock, 10*time.Minute)
	ctx := context.Background()

	idle := r.Get(ctx, "idle", "en")
	busy := r.Get(ctx, "busy", "en")
	idle.Tap()

	clock.Advance(9 * time.Minute)
	busy.Tap()
	clock.Advance(2 * time.Minute)

	if n := r.EvictIdle(ctx, clock.Now()); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if _, ok := r.Lookup("idle"); ok {
		t.Fatalf("idle session still registered")
	}
	if _, ok := r.Lookup("busy"); !ok {
		t.Fatalf("busy session evicted")
	}
	data, found, _ := store.Load(ctx, "idle")
	if !found {
		t.Fatalf("evicted session was not saved")
	}
	st := ImportSnapshot(data, DefaultTuning(), clock.Now())
	if st.TotalClicks != 1 || st.LastExitTimestamp != clock.Now().UnixMilli() {
		t.Fatalf("saved state = clicks %d exit %d", st.TotalClicks, st.LastExitTimestamp)
	}

	restored := r.Get(ctx, "idle", "en")
	if restored == idle || restored.State().TotalClicks != 1 {
		t.Fatalf("reload after eviction did not restore the save")
	}
}

func TestRegistryShutdownSavesEverySession(t *testing.T) {
	clock := &simClock{now: testStart}
	store := newMemStore()
	r := newTestRegistry(t, store, clock, 0)
	ctx := context.Background()

	r.Get(ctx, "a", "en").Tap()
	r.Get(ctx, "b", "en").Tap()
	if n := r.EvictIdle(ctx, clock.Now().Add(24*time.Hour)); n != 0 {
		t.Fatalf("zero idle timeout evicted %d", n)
	}

	r.Shutdown(ctx)
	if r.Len() != 0 {
		t.Fatalf("sessions after shutdown = %d", r.Len())
	}
	for _, id := range []string{"a", "b"} {
		if _, found, _ := store.Load(ctx, id); !found {
			t.Fatalf("%s not saved on shutdown", id)
		}
	}
}

func TestTickLoopAdvancesSessions(t *testing.T) {
	clock := &simClock{now: testStart}
	r := newTestRegistry(t, newMemStore(), clock, time.Hour)
	s := r.Get(context.Background(), "player-1", "en")

	ctx, cancel := context.WithCancel(context.Background())
	done := startTickLoop(ctx, r, 5*time.Millisecond, discardLogger())

	clock.Advance(time.Second)
	if !waitFor(t, 2*time.Second, func() bool { return s.State().Money > 0 }) {
		t.Fatalf("tick loop never paid income")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("tick loop did not stop")
	}
}

// gatedStore holds Load or Save for one player until the gate closes.
type gatedStore struct {
	*memStore
	player   string
	loadGate chan struct{}
	saveGate chan struct{}
	entered  chan string

	mu    sync.Mutex
	loads int
}

func newGatedStore(player string) *gatedStore {
	return &gatedStore{memStore: newMemStore(), player: player, entered: make(chan string, 8)}
}

func (g *gatedStore) Load(ctx context.Context, playerID string) (Snapshot, bool, error) {
	if playerID == g.player {
		g.mu.Lock()
		g.loads++
		g.mu.Unlock()
		if g.loadGate != nil {
			g.entered <- "load"
			<-g.loadGate
		}
	}
	return g.memStore.Load(ctx, playerID)
}

func (g *gatedStore) Save(ctx context.Context, playerID string, data Snapshot) error {
	if playerID == g.player && g.saveGate != nil {
		g.entered <- "save"
		<-g.saveGate
	}
	return g.memStore.Save(ctx, playerID, data)
}

func (g *gatedStore) Loads() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loads
}

func newGatedRegistry(store SaveStore, clock *simClock, idle time.Duration) *SessionRegistry {
	tuning := DefaultTuning()
	tuning.SaveDebounceMs = 60_000
	return NewSessionRegistry(SessionDeps{
		Tuning:   tuning,
		Store:    store,
		Platform: newScriptedPlatform(newMemStore()),
		Logger:   discardLogger(),
		Now:      clock.Now,
		Location: time.UTC,
	}, idle, discardLogger())
}

func TestRegistrySlowLoadDoesNotBlockOthers(t *testing.T) {
	clock := &simClock{now: testStart}
	store := newGatedStore("slow")
	store.loadGate = make(chan struct{})
	r := newGatedRegistry(store, clock, time.Hour)
	ctx := context.Background()

	first := make(chan *Session, 1)
	second := make(chan *Session, 1)
	go func() { first <- r.Get(ctx, "slow", "en") }()
	<-store.entered
	go func() { second <- r.Get(ctx, "slow", "en") }()

	fast := make(chan *Session, 1)
	go func() { fast <- r.Get(ctx, "fast", "en") }()
	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatalf("loading one player blocked another")
	}
	if _, ok := r.Lookup("slow"); ok || r.Len() != 1 {
		t.Fatalf("loading session visible before it was ready")
	}

	close(store.loadGate)
	a, b := <-first, <-second
	if a != b {
		t.Fatalf("concurrent Gets built two sessions")
	}
	if store.Loads() != 1 {
		t.Fatalf("loads = %d, want 1", store.Loads())
	}
}

func TestRegistryReloadWaitsForEvictionSave(t *testing.T) {
	clock := &simClock{now: testStart}
	store := newGatedStore("idle")
	r := newGatedRegistry(store, clock, 10*time.Minute)
	ctx := context.Background()

	old := r.Get(ctx, "idle", "en")
	old.Tap()
	store.saveGate = make(chan struct{})
	clock.Advance(11 * time.Minute)

	evicted := make(chan int, 1)
	go func() { evicted <- r.EvictIdle(ctx, clock.Now()) }()
	if got := <-store.entered; got != "save" {
		t.Fatalf("entered %s, want save", got)
	}

	reloaded := make(chan *Session, 1)
	go func() { reloaded <- r.Get(ctx, "idle", "en") }()
	select {
	case <-reloaded:
		t.Fatalf("reloaded before the eviction save finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.saveGate)
	if n := <-evicted; n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	s := <-reloaded
	if s == old || s.State().TotalClicks != 1 {
		t.Fatalf("reload did not see the final save")
	}
	if store.Loads() != 2 {
		t.Fatalf("loads = %d, want 2", store.Loads())
	}
}
