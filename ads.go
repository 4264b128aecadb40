package main

import (
	"context"
	"sync"
	"time"
)

// adHost is paused and muted for the duration of every ad break.
type adHost interface {
	beginAd()
	endAd()
}

// AdsManager wraps the platform's ad calls for one player. It enforces the
// interstitial cooldown and always resumes the host, whatever the outcome.
type AdsManager struct {
	platform Platform
	playerID string
	timeout  time.Duration
	cooldown time.Duration
	now      func() time.Time

	mu                 sync.Mutex
	lastInterstitialAt time.Time
}

func NewAdsManager(platform Platform, playerID string, t Tuning, timeout time.Duration, now func() time.Time) *AdsManager {
	if now == nil {
		now = time.Now
	}
	return &AdsManager{
		platform: platform,
		playerID: playerID,
		timeout:  timeout,
		cooldown: time.Duration(t.InterstitialCooldownMs) * time.Millisecond,
		now:      now,
	}
}

// interstitialAllowed claims the cooldown slot when it is free.
func (a *AdsManager) interstitialAllowed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if !a.lastInterstitialAt.IsZero() && now.Sub(a.lastInterstitialAt) < a.cooldown {
		return false
	}
	a.lastInterstitialAt = now
	return true
}

func (a *AdsManager) ShowInterstitial(ctx context.Context, host adHost) AdResult {
	if !a.interstitialAllowed() {
		return AdResult{Reason: "cooldown"}
	}
	return a.present(ctx, host, a.platform.ShowInterstitial)
}

func (a *AdsManager) ShowRewarded(ctx context.Context, host adHost) AdResult {
	return a.present(ctx, host, a.platform.ShowRewarded)
}

func (a *AdsManager) present(ctx context.Context, host adHost, show func(context.Context, string) AdResult) AdResult {
	host.beginAd()
	defer host.endAd()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	res := show(ctx, a.playerID)
	if !res.Rewarded && res.Reason == "" && ctx.Err() != nil {
		res.Reason = "timeout"
	}
	return res
}
