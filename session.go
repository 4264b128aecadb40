package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

var (
	ErrPaused            = errors.New("game is paused")
	ErrInsufficientFunds = errors.New("not enough money")
	ErrUnknownItem       = errors.New("unknown item")
	ErrUnknownEvent      = errors.New("unknown event")
	ErrDailyClaimed      = errors.New("daily reward already claimed today")
	ErrNoOffer           = errors.New("no pending offer")
	ErrNotRewarded       = errors.New("ad was not rewarded")
)

type OfferKind string

const (
	OfferDaily   OfferKind = "daily"
	OfferOffline OfferKind = "offline"
)

// Offer is a credit the player may double by watching a rewarded ad.
type Offer struct {
	Kind   OfferKind `json:"kind"`
	Amount int64     `json:"amount"`
}

type SessionDeps struct {
	Tuning    Tuning
	Store     SaveStore
	Platform  Platform
	Telemetry EventRecorder
	Logger    *log.Logger
	Now       func() time.Time
	Location  *time.Location
	AdTimeout time.Duration
	// Presence is how long a client may stay silent before its session
	// stops earning. Zero keeps sessions running until evicted.
	Presence time.Duration
}

// Session owns one player's GameState. Every mutation goes through mu, so
// ticks, HTTP actions and stream messages form a single ordered sequence.
// Ad breaks and saves run outside the lock.
type Session struct {
	id        string
	tuning    Tuning
	loc       *time.Location
	now       func() time.Time
	logger    *log.Logger
	store     SaveStore
	platform  Platform
	telemetry EventRecorder
	saver     *Saver
	ads       *AdsManager
	spawn     func(func())
	presence  time.Duration

	mu               sync.Mutex
	state            GameState
	pause            PauseSet
	adsInFlight      int
	offers           map[OfferKind]int64
	lastFrame        time.Time
	autosaveAccum    float64
	lastBusinessAdAt time.Time
	lastSeen         time.Time
}

func NewSession(playerID string, deps SessionDeps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Telemetry == nil {
		deps.Telemetry = nopRecorder{}
	}

	now := deps.Now()
	s := &Session{
		id:        playerID,
		tuning:    deps.Tuning,
		loc:       deps.Location,
		now:       deps.Now,
		logger:    deps.Logger,
		store:     deps.Store,
		platform:  deps.Platform,
		telemetry: deps.Telemetry,
		spawn:     func(f func()) { go f() },
		presence:  deps.Presence,
		state:     DefaultState(deps.Tuning, now),
		offers:    map[OfferKind]int64{},
		lastFrame: now,
		lastSeen:  now,
	}
	debounce := time.Duration(deps.Tuning.SaveDebounceMs) * time.Millisecond
	s.saver = NewSaver(playerID, deps.Store, deps.Platform, s.Export, debounce, deps.Logger)
	s.ads = NewAdsManager(deps.Platform, playerID, deps.Tuning, deps.AdTimeout, deps.Now)
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Init loads the local save (or starts fresh in lang), then credits any
// offline income earned since the last exit.
func (s *Session) Init(ctx context.Context, lang string) {
	var (
		data  Snapshot
		found bool
	)
	if s.store != nil {
		var err error
		data, found, err = s.store.Load(ctx, s.id)
		if err != nil {
			s.logger.Printf("session %s: load: %v", s.id, err)
		}
	}
	if found {
		if err := ValidateSnapshot(data); err != nil {
			s.logger.Printf("session %s: save does not match schema, clamping: %v", s.id, err)
		}
	}

	s.mu.Lock()
	now := s.now()
	if found {
		s.state = ImportSnapshot(data, s.tuning, now)
	} else {
		s.state = DefaultState(s.tuning, now)
		s.state.Lang = normalizeLang(lang)
	}
	s.lastFrame = now
	s.lastSeen = now
	s.applyOfflineLocked(now)
	s.mu.Unlock()

	s.telemetry.Record(s.id, "session_start", map[string]interface{}{"restored": found})
}

// Teardown marks the exit time and writes the final save. A paused session
// keeps the mark it was given when it stopped earning.
func (s *Session) Teardown(ctx context.Context) SaveResult {
	s.mu.Lock()
	now := s.now()
	s.checkPresenceLocked(now)
	if !s.pause.Paused() {
		s.state.LastExitTimestamp = now.UnixMilli()
	}
	s.mu.Unlock()

	res := s.saver.Close(ctx)
	s.telemetry.Record(s.id, "session_end", map[string]interface{}{
		"localSaved": res.LocalSaved,
		"cloudSaved": res.CloudSaved,
	})
	return res
}

func (s *Session) Export() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ExportSnapshot(s.state)
}

func (s *Session) State() GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) touch() {
	s.mu.Lock()
	s.seenLocked(s.now())
	s.mu.Unlock()
}

// seenLocked records client activity. A session that had gone away comes
// back the way a shown tab does, with offline income for the gap.
func (s *Session) seenLocked(now time.Time) {
	s.lastSeen = now
	if s.pause.Has(PauseAway) {
		s.pause.Resume(PauseAway)
		s.applyOfflineLocked(now)
	}
}

// checkPresenceLocked pauses a session whose client has been silent for the
// presence window. The exit mark stays at the last paid tick, so the time
// away is offline time and falls under the offline cap.
func (s *Session) checkPresenceLocked(now time.Time) {
	if s.presence <= 0 || s.pause.Has(PauseAway) || now.Sub(s.lastSeen) < s.presence {
		return
	}
	s.pause.Suspend(PauseAway)
	s.requestSaveLocked()
	s.telemetry.Record(s.id, "session_away", map[string]interface{}{"lastSeen": s.lastSeen.UnixMilli()})
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) requestSaveLocked() {
	s.saver.RequestSave()
}

/* ======================
   Actions
   ====================== */

type TapResult struct {
	Earned       float64 `json:"earned"`
	Progress     int64   `json:"progress"`
	LevelsGained []int   `json:"levelsGained,omitempty"`
}

func (s *Session) Tap() (TapResult, error) {
	s.mu.Lock()
	now := s.now()
	s.seenLocked(now)
	if s.pause.Paused() {
		s.mu.Unlock()
		return TapResult{}, ErrPaused
	}

	cv := EffectiveClickValue(&s.state, s.tuning, now)
	s.state.Money += cv
	s.state.TotalClicks++

	push := TapProgress(cv, s.tuning)
	progress := AddProgress(&s.state, s.tuning, float64(push))
	s.requestSaveLocked()
	s.mu.Unlock()

	s.afterProgress(progress)
	return TapResult{Earned: cv, Progress: push, LevelsGained: progress.LevelsGained}, nil
}

type PurchaseResult struct {
	Cost  int64 `json:"cost"`
	Level int   `json:"level"`
}

func (s *Session) BuyUpgrade(kind UpgradeKind) (PurchaseResult, error) {
	if !kind.Valid() {
		return PurchaseResult{}, ErrUnknownItem
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenLocked(s.now())
	if s.pause.Paused() {
		return PurchaseResult{}, ErrPaused
	}

	cost := UpgradeCost(&s.state, s.tuning, kind)
	if !canAfford(s.state.Money, cost) {
		return PurchaseResult{}, ErrInsufficientFunds
	}

	s.state.Money -= float64(cost)
	level := s.state.UpgradeLevels.inc(kind)
	applyUpgradeGain(&s.state, s.tuning, kind, level)
	s.requestSaveLocked()

	s.telemetry.Record(s.id, "upgrade_bought", map[string]interface{}{"kind": kind, "level": level, "cost": cost})
	return PurchaseResult{Cost: cost, Level: level}, nil
}

// applyUpgradeGain raises the base stat tied to an upgrade kind.
func applyUpgradeGain(st *GameState, t Tuning, kind UpgradeKind, level int) {
	gain := 1 + math.Floor(float64(level)*t.Upgrades[kind].StatGain)
	switch kind {
	case UpgradeIncome, UpgradeAuto:
		st.IncomePerSecond += gain
	case UpgradeBoost:
		st.ClickValue += gain
	}
}

func (s *Session) BuyShopItem(index int) (PurchaseResult, error) {
	if index < 0 || index >= shopSize {
		return PurchaseResult{}, ErrUnknownItem
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenLocked(s.now())
	if s.pause.Paused() {
		return PurchaseResult{}, ErrPaused
	}

	cost := ShopCosts(&s.state, s.tuning)[index]
	if !canAfford(s.state.Money, cost) {
		return PurchaseResult{}, ErrInsufficientFunds
	}

	s.state.Money -= float64(cost)
	s.state.ShopBuys[index]++
	s.requestSaveLocked()

	s.telemetry.Record(s.id, "shop_bought", map[string]interface{}{"index": index, "count": s.state.ShopBuys[index], "cost": cost})
	return PurchaseResult{Cost: cost, Level: s.state.ShopBuys[index]}, nil
}

type BusinessResult struct {
	Cost         int64 `json:"cost"`
	Progress     int64 `json:"progress"`
	LevelsGained []int `json:"levelsGained,omitempty"`
}

func (s *Session) UpgradeBusiness() (BusinessResult, error) {
	s.mu.Lock()
	now := s.now()
	s.seenLocked(now)
	if s.pause.Paused() {
		s.mu.Unlock()
		return BusinessResult{}, ErrPaused
	}

	cost := BusinessUpgradeCost(&s.state, s.tuning)
	if !canAfford(s.state.Money, cost) {
		s.mu.Unlock()
		return BusinessResult{}, ErrInsufficientFunds
	}

	s.state.Money -= float64(cost)
	push := BusinessPush(&s.state, s.tuning, now)
	progress := AddProgress(&s.state, s.tuning, float64(push))
	s.requestSaveLocked()
	s.mu.Unlock()

	s.afterProgress(progress)
	return BusinessResult{Cost: cost, Progress: push, LevelsGained: progress.LevelsGained}, nil
}

// ActivateRewardBoost shows a rewarded ad and starts the boost window when
// the ad pays out.
func (s *Session) ActivateRewardBoost(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	s.seenLocked(s.now())
	paused := s.pause.Paused()
	s.mu.Unlock()
	if paused {
		return time.Time{}, ErrPaused
	}

	res := s.ads.ShowRewarded(ctx, s)
	s.telemetry.Record(s.id, "ad_rewarded", map[string]interface{}{"placement": "boost", "rewarded": res.Rewarded, "reason": res.Reason})
	if !res.Rewarded {
		return time.Time{}, ErrNotRewarded
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt := ActivateRewardBoost(&s.state, s.tuning, s.now())
	s.requestSaveLocked()
	return expiresAt, nil
}

type DailyResult struct {
	Amount int64 `json:"amount"`
	Streak int   `json:"streak"`
}

func (s *Session) ClaimDaily() (DailyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.seenLocked(now)
	if s.pause.Paused() {
		return DailyResult{}, ErrPaused
	}

	amount, err := ClaimDaily(&s.state, s.tuning, now, s.loc)
	if err != nil {
		return DailyResult{}, err
	}
	s.offers[OfferDaily] = amount
	s.requestSaveLocked()

	s.telemetry.Record(s.id, "daily_claimed", map[string]interface{}{"amount": amount, "streak": s.state.DailyStreak})
	return DailyResult{Amount: amount, Streak: s.state.DailyStreak}, nil
}

// DoubleOffer shows a rewarded ad and pays a pending offer again. The offer
// is used up whether or not the ad pays out.
func (s *Session) DoubleOffer(ctx context.Context, kind OfferKind) (int64, error) {
	s.mu.Lock()
	s.seenLocked(s.now())
	if s.pause.Paused() {
		s.mu.Unlock()
		return 0, ErrPaused
	}
	amount, ok := s.offers[kind]
	if !ok {
		s.mu.Unlock()
		return 0, ErrNoOffer
	}
	delete(s.offers, kind)
	s.mu.Unlock()

	res := s.ads.ShowRewarded(ctx, s)
	s.telemetry.Record(s.id, "ad_rewarded", map[string]interface{}{"placement": string(kind), "rewarded": res.Rewarded, "reason": res.Reason})
	if !res.Rewarded {
		return 0, ErrNotRewarded
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Money += float64(amount)
	s.requestSaveLocked()
	return amount, nil
}

func (s *Session) Offers() []Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offersLocked()
}

func (s *Session) offersLocked() []Offer {
	out := make([]Offer, 0, len(s.offers))
	for _, kind := range []OfferKind{OfferDaily, OfferOffline} {
		if amount, ok := s.offers[kind]; ok {
			out = append(out, Offer{Kind: kind, Amount: amount})
		}
	}
	return out
}

// SetScreen switches the active screen. Entering the business screen asks
// for an interstitial at most once per gap.
func (s *Session) SetScreen(screen Screen) error {
	if !screen.Valid() {
		return ErrUnknownItem
	}

	s.mu.Lock()
	now := s.now()
	s.seenLocked(now)
	s.state.ActiveScreen = screen
	s.requestSaveLocked()

	due := false
	if screen == ScreenBusiness {
		gap := time.Duration(s.tuning.BusinessScreenAdGapMs) * time.Millisecond
		if s.lastBusinessAdAt.IsZero() || now.Sub(s.lastBusinessAdAt) > gap {
			s.lastBusinessAdAt = now
			due = true
		}
	}
	s.mu.Unlock()

	if due {
		s.requestInterstitial("enter_business")
	}
	return nil
}

/* ======================
   Lifecycle events
   ====================== */

type VisibilityEvent string

const (
	EventHide      VisibilityEvent = "hide"
	EventShow      VisibilityEvent = "show"
	EventBlur      VisibilityEvent = "blur"
	EventFocus     VisibilityEvent = "focus"
	EventSDKPause  VisibilityEvent = "sdk_pause"
	EventSDKResume VisibilityEvent = "sdk_resume"
)

// ApplyVisibility maps client lifecycle events onto pause sources. Hiding
// marks the exit time; showing again credits offline income.
func (s *Session) ApplyVisibility(event VisibilityEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.seenLocked(now)

	switch event {
	case EventHide:
		s.pause.Suspend(PauseHidden)
		s.markExitLocked(now)
	case EventBlur:
		s.pause.Suspend(PauseBlur)
		s.markExitLocked(now)
	case EventShow:
		s.pause.Resume(PauseHidden)
		return s.applyOfflineLocked(now), nil
	case EventFocus:
		s.pause.Resume(PauseBlur)
		return s.applyOfflineLocked(now), nil
	case EventSDKPause:
		s.pause.Suspend(PauseSDK)
	case EventSDKResume:
		s.pause.Resume(PauseSDK)
	default:
		return 0, ErrUnknownEvent
	}
	return 0, nil
}

func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pause.Paused()
}

func (s *Session) markExitLocked(now time.Time) {
	s.state.LastExitTimestamp = now.UnixMilli()
	s.requestSaveLocked()
}

func (s *Session) applyOfflineLocked(now time.Time) int64 {
	earned := ApplyOfflineIncome(&s.state, s.tuning, now)
	if earned > 0 {
		s.offers[OfferOffline] = earned
		s.telemetry.Record(s.id, "offline_income", map[string]interface{}{"amount": earned})
	}
	s.requestSaveLocked()
	return earned
}

func (s *Session) beginAd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adsInFlight++
	s.pause.Suspend(PauseAd)
}

func (s *Session) endAd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adsInFlight--
	if s.adsInFlight <= 0 {
		s.adsInFlight = 0
		s.pause.Resume(PauseAd)
	}
}

// Muted reports whether audio is silenced for an ad break.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adsInFlight > 0
}

/* ======================
   Tick
   ====================== */

// Tick advances the session to the current time. The frame delta is capped
// so a stalled loop cannot pay out time that offline income covers. While
// paused only the frame clock moves.
func (s *Session) Tick() {
	s.mu.Lock()
	now := s.now()
	dt := now.Sub(s.lastFrame).Seconds()
	s.lastFrame = now
	if dt < 0 {
		dt = 0
	}
	if dt > s.tuning.MaxTickSeconds {
		dt = s.tuning.MaxTickSeconds
	}
	s.checkPresenceLocked(now)
	if s.pause.Paused() {
		s.mu.Unlock()
		return
	}

	// A running session is never offline; the exit mark follows the clock.
	s.state.LastExitTimestamp = now.UnixMilli()
	s.state.PlayTimeSeconds += dt
	expireRewardBoost(&s.state, now)

	ips := EffectiveIncomePerSecond(&s.state, s.tuning, now)
	s.state.Money += ips * dt

	var progress ProgressResult
	if push := math.Floor(ips * dt * s.tuning.PassiveProgressFactor); push > 0 {
		progress = AddProgress(&s.state, s.tuning, push)
	}

	s.autosaveAccum += dt
	if s.autosaveAccum >= s.tuning.AutosaveEverySeconds {
		s.autosaveAccum = 0
		s.requestSaveLocked()
	}
	s.mu.Unlock()

	s.afterProgress(progress)
}

func (s *Session) afterProgress(progress ProgressResult) {
	if !progress.LeveledUp() {
		return
	}
	s.telemetry.Record(s.id, "business_level_up", map[string]interface{}{"levels": progress.LevelsGained})
	if progress.InterstitialDue {
		s.requestInterstitial("biz_level")
	}
}

// requestInterstitial fires a best-effort interstitial in the background.
func (s *Session) requestInterstitial(placement string) {
	s.spawn(func() {
		res := s.ads.ShowInterstitial(context.Background(), s)
		s.telemetry.Record(s.id, "ad_interstitial", map[string]interface{}{"placement": placement, "shown": res.Shown, "reason": res.Reason})
	})
}

/* ======================
   Sign-in
   ====================== */

type SignInResult struct {
	Merged bool       `json:"merged"`
	Saved  SaveResult `json:"saved"`
}

// SignIn authenticates with the platform, merges any cloud save into the
// live state and writes the result everywhere at once.
func (s *Session) SignIn(ctx context.Context) (SignInResult, error) {
	var result SignInResult
	if err := s.platform.Authenticate(ctx, s.id); err != nil {
		return result, fmt.Errorf("authenticate: %w", err)
	}

	data, found, err := s.platform.CloudLoad(ctx, s.id)
	if err != nil {
		s.logger.Printf("session %s: cloud load: %v", s.id, err)
	}
	if found {
		if err := ValidateSnapshot(data); err != nil {
			s.logger.Printf("session %s: cloud save does not match schema, clamping: %v", s.id, err)
		}
		s.mu.Lock()
		now := s.now()
		cloud := ImportSnapshot(data, s.tuning, now)
		s.state = MergeSnapshots(s.state, cloud, s.tuning, now)
		s.mu.Unlock()
		result.Merged = true
	}

	result.Saved = s.saver.Flush(ctx)
	s.telemetry.Record(s.id, "signed_in", map[string]interface{}{"merged": result.Merged})
	return result, nil
}

func (s *Session) Authenticated() bool {
	return s.platform != nil && s.platform.IsAuthenticated(s.id)
}
