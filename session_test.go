package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionTapCreditsMoneyAndProgress(t *testing.T) {
	s, _ := newTestSession(t, testSessionOpts{})

	res, err := s.Tap()
	if err != nil {
		t.Fatalf("tap: %v", err)
	}
	if res.Earned != 1 || res.Progress != 1 {
		t.Fatalf("tap result = %+v, want earned 1 progress 1", res)
	}
	st := s.State()
	if st.Money != 1 || st.TotalClicks != 1 || st.BusinessProgress != 1 {
		t.Fatalf("state after tap = money %v clicks %d progress %d", st.Money, st.TotalClicks, st.BusinessProgress)
	}
}

func TestSessionBuyUpgrade(t *testing.T) {
	s, _ := newTestSession(t, testSessionOpts{})

	if _, err := s.BuyUpgrade(UpgradeIncome); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("broke purchase err = %v, want ErrInsufficientFunds", err)
	}

	s.mu.Lock()
	s.state.Money = 100
	s.mu.Unlock()

	res, err := s.BuyUpgrade(UpgradeIncome)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if res.Cost != 50 || res.Level != 2 {
		t.Fatalf("purchase = %+v, want cost 50 level 2", res)
	}
	st := s.State()
	if st.Money != 50 || st.IncomePerSecond != 2 {
		t.Fatalf("state = money %v ips %v, want 50 and 2", st.Money, st.IncomePerSecond)
	}

	if _, err := s.BuyUpgrade(UpgradeKind("turbo")); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("unknown kind err = %v, want ErrUnknownItem", err)
	}
	if _, err := s.BuyShopItem(shopSize); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("shop index err = %v, want ErrUnknownItem", err)
	}
}

func TestSessionBuyShopItem(t *testing.T) {
	s, _ := newTestSession(t, testSessionOpts{})
	s.mu.Lock()
	s.state.Money = 250_000
	s.mu.Unlock()

	res, err := s.BuyShopItem(0)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if res.Cost != 100_000 || res.Level != 1 {
		t.Fatalf("purchase = %+v", res)
	}
	// floor(100000 * 1.55)
	if got := ShopCosts(&s.state, s.tuning)[0]; got != 155_000 {
		t.Fatalf("next cost = %d, want 155000", got)
	}
}

func TestSessionUpgradeBusiness(t *testing.T) {
	s, _ := newTestSession(t, testSessionOpts{})
	s.mu.Lock()
	s.state.Money = 200
	s.mu.Unlock()

	res, err := s.UpgradeBusiness()
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if res.Cost != 120 || res.Progress != 40 {
		t.Fatalf("result = %+v, want cost 120 progress 40", res)
	}
	st := s.State()
	if st.Money != 80 || st.BusinessProgress != 40 {
		t.Fatalf("state = money %v progress %d", st.Money, st.BusinessProgress)
	}
}

func TestSessionHideShowCreditsOfflineOffer(t *testing.T) {
	platform := newScriptedPlatform(newMemStore())
	s, clock := newTestSession(t, testSessionOpts{platform: platform})

	if _, err := s.ApplyVisibility(EventHide); err != nil {
		t.Fatalf("hide: %v", err)
	}
	if _, err := s.Tap(); !errors.Is(err, ErrPaused) {
		t.Fatalf("tap while hidden err = %v, want ErrPaused", err)
	}

	clock.Advance(time.Hour)
	s.Tick()
	if st := s.State(); st.Money != 0 {
		t.Fatalf("hidden tick paid %v", st.Money)
	}

	earned, err := s.ApplyVisibility(EventShow)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if earned != 3600 {
		t.Fatalf("offline earned = %d, want 3600", earned)
	}
	offers := s.Offers()
	if len(offers) != 1 || offers[0].Kind != OfferOffline || offers[0].Amount != 3600 {
		t.Fatalf("offers = %+v", offers)
	}

	doubled, err := s.DoubleOffer(context.Background(), OfferOffline)
	if err != nil {
		t.Fatalf("double: %v", err)
	}
	if doubled != 3600 || s.State().Money != 7200 {
		t.Fatalf("doubled %d money %v, want 3600 and 7200", doubled, s.State().Money)
	}
	if _, err := s.DoubleOffer(context.Background(), OfferOffline); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("second double err = %v, want ErrNoOffer", err)
	}
	if s.Paused() || s.Muted() {
		t.Fatalf("session left paused or muted after the ad")
	}
}

func TestSessionDeclinedAdConsumesOffer(t *testing.T) {
	platform := newScriptedPlatform(newMemStore())
	platform.rewarded = AdResult{Shown: true, Reason: "closed"}
	s, _ := newTestSession(t, testSessionOpts{platform: platform})

	if _, err := s.ClaimDaily(); err != nil {
		t.Fatalf("claim: %v", err)
	}
	before := s.State().Money
	if _, err := s.DoubleOffer(context.Background(), OfferDaily); !errors.Is(err, ErrNotRewarded) {
		t.Fatalf("double err = %v, want ErrNotRewarded", err)
	}
	if s.State().Money != before {
		t.Fatalf("declined ad changed money")
	}
	if len(s.Offers()) != 0 {
		t.Fatalf("offer survived a declined ad")
	}

	if _, err := s.ActivateRewardBoost(context.Background()); !errors.Is(err, ErrNotRewarded) {
		t.Fatalf("boost err = %v, want ErrNotRewarded", err)
	}
	if s.State().RewardBoostActive {
		t.Fatalf("boost active after declined ad")
	}
}

func TestSessionRewardBoost(t *testing.T) {
	s, clock := newTestSession(t, testSessionOpts{})

	ends, err := s.ActivateRewardBoost(context.Background())
	if err != nil {
		t.Fatalf("boost: %v", err)
	}
	if want := testStart.Add(3 * time.Minute); !ends.Equal(want) {
		t.Fatalf("boost ends %v, want %v", ends, want)
	}

	clock.Advance(time.Second)
	s.Tick()
	if got := s.State().Money; got != 2 {
		t.Fatalf("boosted tick paid %v, want 2", got)
	}

	clock.Advance(3 * time.Minute)
	s.Tick()
	if s.State().RewardBoostActive {
		t.Fatalf("boost not cleared after expiry")
	}
}

func TestSessionTickCapsFrameDelta(t *testing.T) {
	s, clock := newTestSession(t, testSessionOpts{})

	clock.Advance(10 * time.Second)
	s.Tick()

	st := s.State()
	if st.Money != 1 {
		t.Fatalf("money after stalled tick = %v, want 1", st.Money)
	}
	if st.PlayTimeSeconds != 1 {
		t.Fatalf("play time = %v, want 1", st.PlayTimeSeconds)
	}
	if st.LastExitTimestamp != clock.Now().UnixMilli() {
		t.Fatalf("exit mark did not follow the clock")
	}
}

func TestSessionTickFeedsPassiveProgress(t *testing.T) {
	s, clock := newTestSession(t, testSessionOpts{})
	s.mu.Lock()
	s.state.IncomePerSecond = 10
	s.mu.Unlock()

	clock.Advance(time.Second)
	s.Tick()
	st := s.State()
	// floor(10 * 1s * 0.22)
	if st.BusinessProgress != 2 || st.Money != 10 {
		t.Fatalf("after tick progress %d money %v, want 2 and 10", st.BusinessProgress, st.Money)
	}

	s.mu.Lock()
	s.state.BusinessProgress = s.state.BusinessProgressGoal - 1
	s.mu.Unlock()

	clock.Advance(time.Second)
	s.Tick()
	st = s.State()
	if st.BusinessLevel != 2 || st.BusinessProgress != 1 {
		t.Fatalf("level %d progress %d, want level 2 with 1 carried", st.BusinessLevel, st.BusinessProgress)
	}
	if st.BusinessProgressGoal != 430 {
		t.Fatalf("goal = %d, want 430", st.BusinessProgressGoal)
	}
}

func TestSessionSilentClientStopsEarning(t *testing.T) {
	store := newMemStore()
	s, clock := newTestSession(t, testSessionOpts{store: store, presence: time.Minute})

	for i := 0; i < 30*60; i++ {
		clock.Advance(time.Second)
		s.Tick()
	}
	st := s.State()
	if st.Money != 59 || !s.Paused() {
		t.Fatalf("money %v paused %t, want 59 and paused", st.Money, s.Paused())
	}
	if st.LastExitTimestamp != testStart.Add(59*time.Second).UnixMilli() {
		t.Fatalf("exit mark moved while away")
	}
	s.Teardown(context.Background())

	clock.Advance(5*time.Hour - 30*time.Minute)
	back := NewSession("player-1", SessionDeps{
		Tuning:   DefaultTuning(),
		Store:    store,
		Platform: newScriptedPlatform(newMemStore()),
		Logger:   discardLogger(),
		Now:      clock.Now,
		Location: time.UTC,
	})
	back.Init(context.Background(), "en")

	// 59s online plus the two hour offline cap.
	if got := back.State().Money; got != 59+7200 {
		t.Fatalf("money after return = %v, want %v", got, 59+7200)
	}
}

func TestSessionReturningClientResumes(t *testing.T) {
	s, clock := newTestSession(t, testSessionOpts{presence: time.Minute})

	for i := 0; i < 10*60; i++ {
		clock.Advance(time.Second)
		s.Tick()
	}
	if _, err := s.Tap(); err != nil {
		t.Fatalf("tap after return: %v", err)
	}
	if s.Paused() {
		t.Fatalf("session still paused after activity")
	}

	offers := s.Offers()
	if len(offers) != 1 || offers[0].Kind != OfferOffline || offers[0].Amount != 600-59 {
		t.Fatalf("offers = %+v, want offline 541", offers)
	}
	// 59 ticks, 541s offline and one tap cover the ten minutes once.
	if got := s.State().Money; got != 601 {
		t.Fatalf("money = %v, want 601", got)
	}

	clock.Advance(time.Second)
	s.Tick()
	if got := s.State().Money; got != 602 {
		t.Fatalf("money after tick = %v, want 602", got)
	}
}

func TestSessionLevelUpRequestsInterstitial(t *testing.T) {
	platform := newScriptedPlatform(newMemStore())
	s, _ := newTestSession(t, testSessionOpts{platform: platform})

	s.mu.Lock()
	s.state.BusinessLevel = 2
	s.state.BusinessProgress = s.state.BusinessProgressGoal - 1
	s.mu.Unlock()

	res, err := s.Tap()
	if err != nil {
		t.Fatalf("tap: %v", err)
	}
	if len(res.LevelsGained) != 1 || res.LevelsGained[0] != 3 {
		t.Fatalf("levels gained = %v, want [3]", res.LevelsGained)
	}
	if _, inter := platform.calls(); inter != 1 {
		t.Fatalf("interstitials = %d, want 1", inter)
	}
}

func TestSessionBusinessScreenInterstitialGap(t *testing.T) {
	platform := newScriptedPlatform(newMemStore())
	s, clock := newTestSession(t, testSessionOpts{platform: platform})

	if err := s.SetScreen(ScreenBusiness); err != nil {
		t.Fatalf("screen: %v", err)
	}
	clock.Advance(30 * time.Second)
	if err := s.SetScreen(ScreenBusiness); err != nil {
		t.Fatalf("screen: %v", err)
	}
	if _, inter := platform.calls(); inter != 1 {
		t.Fatalf("interstitials within the gap = %d, want 1", inter)
	}

	clock.Advance(2 * time.Minute)
	if err := s.SetScreen(ScreenBusiness); err != nil {
		t.Fatalf("screen: %v", err)
	}
	if _, inter := platform.calls(); inter != 2 {
		t.Fatalf("interstitials after the gap = %d, want 2", inter)
	}

	if err := s.SetScreen(Screen("casino")); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("unknown screen err = %v", err)
	}
	if s.State().ActiveScreen != ScreenBusiness {
		t.Fatalf("unknown screen changed the active screen")
	}
}

func TestSessionVisibilitySources(t *testing.T) {
	s, _ := newTestSession(t, testSessionOpts{})

	s.ApplyVisibility(EventBlur)
	s.ApplyVisibility(EventSDKPause)
	s.ApplyVisibility(EventFocus)
	if !s.Paused() {
		t.Fatalf("focus resumed an sdk pause")
	}
	s.ApplyVisibility(EventSDKResume)
	if s.Paused() {
		t.Fatalf("still paused after every source resumed")
	}
	if _, err := s.ApplyVisibility(VisibilityEvent("minimize")); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("unknown event err = %v", err)
	}
}

func TestSessionSettings(t *testing.T) {
	s, _ := newTestSession(t, testSessionOpts{})

	prefs, err := s.ApplySettings(map[string]string{"sound": "off", "music": "on", "lang": "RU"})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if prefs.AudioEnabled || !prefs.MusicEnabled || prefs.Lang != "ru" {
		t.Fatalf("prefs = %+v", prefs)
	}

	if _, err := s.ApplySettings(map[string]string{"music": "off", "volume": "3"}); err == nil {
		t.Fatalf("unknown setting accepted")
	}
	if !s.Preferences().MusicEnabled {
		t.Fatalf("rejected update changed music")
	}
	if _, err := s.ApplySettings(map[string]string{"lang": "de"}); err == nil {
		t.Fatalf("unsupported language accepted")
	}

	if !s.ToggleSound() || s.ToggleMusic() {
		t.Fatalf("toggles returned the wrong values")
	}
	if s.ToggleLanguage() != "en" || s.ToggleLanguage() != "ru" {
		t.Fatalf("language toggle did not alternate")
	}
}

func TestSessionInitRestoresSave(t *testing.T) {
	store := newMemStore()
	saved := DefaultState(DefaultTuning(), testStart)
	saved.Money = 900
	saved.BusinessLevel = 4
	saved.BusinessProgressGoal = 1000
	saved.Lang = "ru"
	data, err := ExportSnapshot(saved)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	store.data["player-1"] = data

	s, _ := newTestSession(t, testSessionOpts{store: store})
	st := s.State()
	if st.Money != 900 || st.BusinessLevel != 4 || st.Lang != "ru" {
		t.Fatalf("restored state = money %v level %d lang %s", st.Money, st.BusinessLevel, st.Lang)
	}
}

func TestSessionTeardownSavesLocally(t *testing.T) {
	store := newMemStore()
	s, _ := newTestSession(t, testSessionOpts{store: store})
	s.Tap()

	res := s.Teardown(context.Background())
	if !res.LocalSaved || res.CloudSaved {
		t.Fatalf("teardown result = %+v, want local only", res)
	}
	data, found, _ := store.Load(context.Background(), "player-1")
	if !found {
		t.Fatalf("nothing saved")
	}
	if st := ImportSnapshot(data, DefaultTuning(), testStart); st.TotalClicks != 1 {
		t.Fatalf("saved clicks = %d, want 1", st.TotalClicks)
	}
}

func TestSessionSignInMergesCloudSave(t *testing.T) {
	cloud := newMemStore()
	remote := DefaultState(DefaultTuning(), testStart)
	remote.Money = 5000
	remote.BusinessLevel = 3
	remote.BusinessProgressGoal = 820
	remote.Lang = "ru"
	remote.DailyLastClaim = "2025-03-09"
	data, err := ExportSnapshot(remote)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	cloud.data["player-1"] = data

	local := newMemStore()
	platform := newScriptedPlatform(cloud)
	s, _ := newTestSession(t, testSessionOpts{store: local, platform: platform})
	s.Tap()
	s.Tap()

	if s.Authenticated() {
		t.Fatalf("authenticated before sign-in")
	}
	res, err := s.SignIn(context.Background())
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !res.Merged || !res.Saved.LocalSaved || !res.Saved.CloudSaved {
		t.Fatalf("sign in result = %+v", res)
	}
	if !s.Authenticated() {
		t.Fatalf("not authenticated after sign-in")
	}

	st := s.State()
	if st.Money != 5000 || st.BusinessLevel != 3 || st.TotalClicks != 2 {
		t.Fatalf("merged = money %v level %d clicks %d", st.Money, st.BusinessLevel, st.TotalClicks)
	}
	if st.Lang != "en" {
		t.Fatalf("merge took the cloud language %q", st.Lang)
	}
	if st.DailyLastClaim != "2025-03-09" {
		t.Fatalf("daily claim = %q, want the cloud key", st.DailyLastClaim)
	}
	if cloud.Saves() == 0 || local.Saves() == 0 {
		t.Fatalf("merged state not written to both stores")
	}
}
