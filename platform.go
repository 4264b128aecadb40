package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// AdResult is the outcome of one ad break. Anything other than Rewarded is
// treated as a decline by callers.
type AdResult struct {
	Shown    bool   `json:"shown"`
	Rewarded bool   `json:"rewarded"`
	Reason   string `json:"reason,omitempty"`
}

type AdFormat string

const (
	AdInterstitial AdFormat = "interstitial"
	AdRewarded     AdFormat = "rewarded"
)

// Platform is the game-platform SDK surface: ad breaks, sign-in and cloud
// saves.
type Platform interface {
	ShowInterstitial(ctx context.Context, playerID string) AdResult
	ShowRewarded(ctx context.Context, playerID string) AdResult
	Authenticate(ctx context.Context, playerID string) error
	IsAuthenticated(playerID string) bool
	CloudLoad(ctx context.Context, playerID string) (Snapshot, bool, error)
	CloudSave(ctx context.Context, playerID string, data Snapshot) error
}

type PlatformMode string

const (
	PlatformMock  PlatformMode = "mock"
	PlatformRelay PlatformMode = "relay"
)

// ParsePlatformMode rejects unknown values.
func ParsePlatformMode(value string) (PlatformMode, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case string(PlatformMock):
		return PlatformMock, nil
	case string(PlatformRelay):
		return PlatformRelay, nil
	case "":
		return "", fmt.Errorf("platform mode is required (set PLATFORM_MODE to mock or relay)")
	default:
		return "", fmt.Errorf("unsupported platform mode: %s", value)
	}
}

var errNotAuthenticated = errors.New("player is not signed in")

// authSet tracks signed-in players for both platform modes.
type authSet struct {
	mu     sync.RWMutex
	authed map[string]bool
}

func (a *authSet) mark(playerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.authed == nil {
		a.authed = map[string]bool{}
	}
	a.authed[playerID] = true
}

func (a *authSet) has(playerID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.authed[playerID]
}

// mockPlatform stands in for the SDK when no real one is present.
// Interstitials are never shown, rewarded ads pay out at once, sign-in
// always succeeds and cloud saves go to a second local store.
type mockPlatform struct {
	cloud SaveStore
	auth  authSet
}

func NewMockPlatform(cloud SaveStore) *mockPlatform {
	return &mockPlatform{cloud: cloud}
}

func (p *mockPlatform) ShowInterstitial(ctx context.Context, playerID string) AdResult {
	return AdResult{Shown: false, Reason: "mock"}
}

func (p *mockPlatform) ShowRewarded(ctx context.Context, playerID string) AdResult {
	return AdResult{Shown: false, Rewarded: true, Reason: "mock"}
}

func (p *mockPlatform) Authenticate(ctx context.Context, playerID string) error {
	p.auth.mark(playerID)
	return nil
}

func (p *mockPlatform) IsAuthenticated(playerID string) bool {
	return p.auth.has(playerID)
}

func (p *mockPlatform) CloudLoad(ctx context.Context, playerID string) (Snapshot, bool, error) {
	if !p.IsAuthenticated(playerID) {
		return nil, false, errNotAuthenticated
	}
	return p.cloud.Load(ctx, playerID)
}

func (p *mockPlatform) CloudSave(ctx context.Context, playerID string, data Snapshot) error {
	if !p.IsAuthenticated(playerID) {
		return errNotAuthenticated
	}
	return p.cloud.Save(ctx, playerID, data)
}

// AdRequest is pushed to the player's client when the relay platform needs
// an ad presented.
type AdRequest struct {
	Type      string   `json:"type"`
	RequestID string   `json:"requestId"`
	Format    AdFormat `json:"format"`
}

type adPublisher interface {
	PublishAdRequest(playerID string, req AdRequest) bool
}

// relayPlatform asks the connected client to present ads and waits for it
// to report the outcome. No answer before the deadline is a decline.
type relayPlatform struct {
	cloud     SaveStore
	publisher adPublisher
	auth      authSet

	mu      sync.Mutex
	pending map[string]pendingAd
}

type pendingAd struct {
	playerID string
	result   chan AdResult
}

func NewRelayPlatform(cloud SaveStore, publisher adPublisher) *relayPlatform {
	return &relayPlatform{
		cloud:     cloud,
		publisher: publisher,
		pending:   map[string]pendingAd{},
	}
}

func (p *relayPlatform) ShowInterstitial(ctx context.Context, playerID string) AdResult {
	return p.request(ctx, playerID, AdInterstitial)
}

func (p *relayPlatform) ShowRewarded(ctx context.Context, playerID string) AdResult {
	return p.request(ctx, playerID, AdRewarded)
}

func (p *relayPlatform) request(ctx context.Context, playerID string, format AdFormat) AdResult {
	id := uuid.NewString()
	ch := make(chan AdResult, 1)

	p.mu.Lock()
	p.pending[id] = pendingAd{playerID: playerID, result: ch}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if !p.publisher.PublishAdRequest(playerID, AdRequest{Type: "ad_request", RequestID: id, Format: format}) {
		return AdResult{Reason: "no_client"}
	}

	select {
	case res := <-ch:
		if format == AdInterstitial {
			res.Rewarded = false
		}
		return res
	case <-ctx.Done():
		return AdResult{Reason: "timeout"}
	}
}

// ResolveAd delivers a client's ad outcome. It reports false when no ad
// with that id is outstanding for the player.
func (p *relayPlatform) ResolveAd(playerID, requestID string, res AdResult) bool {
	p.mu.Lock()
	pending, ok := p.pending[requestID]
	p.mu.Unlock()
	if !ok || pending.playerID != playerID {
		return false
	}
	select {
	case pending.result <- res:
		return true
	default:
		return false
	}
}

func (p *relayPlatform) Authenticate(ctx context.Context, playerID string) error {
	p.auth.mark(playerID)
	return nil
}

func (p *relayPlatform) IsAuthenticated(playerID string) bool {
	return p.auth.has(playerID)
}

func (p *relayPlatform) CloudLoad(ctx context.Context, playerID string) (Snapshot, bool, error) {
	if !p.IsAuthenticated(playerID) {
		return nil, false, errNotAuthenticated
	}
	return p.cloud.Load(ctx, playerID)
}

func (p *relayPlatform) CloudSave(ctx context.Context, playerID string, data Snapshot) error {
	if !p.IsAuthenticated(playerID) {
		return errNotAuthenticated
	}
	return p.cloud.Save(ctx, playerID, data)
}

type adResolver interface {
	ResolveAd(playerID, requestID string, res AdResult) bool
}
