package main

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// Snapshot is the serialized form of GameState handed to the stores.
type Snapshot []byte

func ExportSnapshot(s GameState) (Snapshot, error) {
	return json.Marshal(s)
}

// ImportSnapshot decodes a saved document field by field. It never fails:
// anything missing, mistyped or out of range falls back to the default
// state's value and the result always satisfies the GameState invariants.
func ImportSnapshot(data []byte, t Tuning, now time.Time) GameState {
	s := DefaultState(t, now)

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return s
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return s
	}

	s.Money = rawFloat(raw["money"], s.Money)
	s.ClickValue = rawFloat(raw["clickValue"], s.ClickValue)
	s.IncomePerSecond = rawFloat(raw["incomePerSecond"], s.IncomePerSecond)

	var levels map[string]json.RawMessage
	if err := json.Unmarshal(raw["upgradeLevels"], &levels); err == nil {
		s.UpgradeLevels.Income = rawInt(levels["income"], 1)
		s.UpgradeLevels.Boost = rawInt(levels["boost"], 1)
		s.UpgradeLevels.Auto = rawInt(levels["auto"], 1)
	}

	s.TotalClicks = rawInt64(raw["totalClicks"], 0)
	s.PlayTimeSeconds = rawFloat(raw["playTimeSeconds"], 0)

	s.BusinessLevel = rawInt(raw["businessLevel"], 1)
	s.BusinessProgress = rawInt64(raw["businessProgress"], 0)
	s.BusinessProgressGoal = rawInt64(raw["businessProgressGoal"], t.StartGoal)

	var screen string
	if json.Unmarshal(raw["activeScreen"], &screen) == nil {
		s.ActiveScreen = Screen(screen)
	}
	var audio bool
	if json.Unmarshal(raw["audioEnabled"], &audio) == nil {
		s.AudioEnabled = audio
	}
	var music bool
	if json.Unmarshal(raw["musicEnabled"], &music) == nil {
		s.MusicEnabled = music
	}
	var lang string
	if json.Unmarshal(raw["lang"], &lang) == nil {
		s.Lang = lang
	}

	var boost bool
	if json.Unmarshal(raw["rewardBoostActive"], &boost) == nil {
		s.RewardBoostActive = boost
	}
	s.RewardBoostEndTime = rawInt64(raw["rewardBoostEndTime"], 0)
	s.LastExitTimestamp = rawInt64(raw["lastExitTimestamp"], now.UnixMilli())

	var buys []json.RawMessage
	if json.Unmarshal(raw["shopBuys"], &buys) == nil {
		for i := 0; i < shopSize && i < len(buys); i++ {
			s.ShopBuys[i] = rawInt(buys[i], 0)
		}
	}

	var claim string
	if json.Unmarshal(raw["dailyLastClaim"], &claim) == nil {
		s.DailyLastClaim = claim
	}
	s.DailyStreak = rawInt(raw["dailyStreak"], 0)

	normalizeState(&s, t, now)
	return s
}

// normalizeState clamps every field into its valid range.
func normalizeState(s *GameState, t Tuning, now time.Time) {
	s.Money = math.Max(0, finiteOr(s.Money, 0))
	s.ClickValue = math.Max(1, finiteOr(s.ClickValue, 1))
	s.IncomePerSecond = math.Max(0, finiteOr(s.IncomePerSecond, 1))
	s.PlayTimeSeconds = math.Max(0, finiteOr(s.PlayTimeSeconds, 0))

	s.UpgradeLevels.Income = clampInt(s.UpgradeLevels.Income, 1, math.MaxInt32)
	s.UpgradeLevels.Boost = clampInt(s.UpgradeLevels.Boost, 1, math.MaxInt32)
	s.UpgradeLevels.Auto = clampInt(s.UpgradeLevels.Auto, 1, math.MaxInt32)

	if s.TotalClicks < 0 {
		s.TotalClicks = 0
	}

	s.BusinessLevel = clampInt(s.BusinessLevel, 1, t.MaxBusinessLevel)
	if s.BusinessProgressGoal < 1 {
		s.BusinessProgressGoal = t.StartGoal
	}
	if s.BusinessProgress < 0 {
		s.BusinessProgress = 0
	}
	if s.BusinessLevel >= t.MaxBusinessLevel {
		if s.BusinessProgress > s.BusinessProgressGoal {
			s.BusinessProgress = s.BusinessProgressGoal
		}
	} else if s.BusinessProgress >= s.BusinessProgressGoal {
		s.BusinessProgress = s.BusinessProgressGoal - 1
	}

	if !s.ActiveScreen.Valid() {
		s.ActiveScreen = ScreenClick
	}
	s.Lang = normalizeLang(s.Lang)

	if s.RewardBoostEndTime < 0 {
		s.RewardBoostEndTime = 0
	}
	if s.RewardBoostActive && now.UnixMilli() >= s.RewardBoostEndTime {
		s.RewardBoostActive = false
		s.RewardBoostEndTime = 0
	}
	if s.LastExitTimestamp <= 0 {
		s.LastExitTimestamp = now.UnixMilli()
	}

	for i := range s.ShopBuys {
		if s.ShopBuys[i] < 0 {
			s.ShopBuys[i] = 0
		}
	}

	if _, err := time.Parse(dayKeyLayout, s.DailyLastClaim); err != nil {
		s.DailyLastClaim = ""
	}
	s.DailyStreak = clampInt(s.DailyStreak, 0, t.Daily.StreakMax)
}

// MergeSnapshots combines a local and a cloud state after sign-in. Every
// progress field takes the larger value so neither device loses progress.
// Preferences stay local; the daily claim key prefers the cloud.
func MergeSnapshots(local, cloud GameState, t Tuning, now time.Time) GameState {
	m := local

	m.Money = math.Max(local.Money, cloud.Money)
	m.ClickValue = math.Max(local.ClickValue, cloud.ClickValue)
	m.IncomePerSecond = math.Max(local.IncomePerSecond, cloud.IncomePerSecond)

	m.UpgradeLevels.Income = max(local.UpgradeLevels.Income, cloud.UpgradeLevels.Income)
	m.UpgradeLevels.Boost = max(local.UpgradeLevels.Boost, cloud.UpgradeLevels.Boost)
	m.UpgradeLevels.Auto = max(local.UpgradeLevels.Auto, cloud.UpgradeLevels.Auto)

	m.TotalClicks = max(local.TotalClicks, cloud.TotalClicks)
	m.PlayTimeSeconds = math.Max(local.PlayTimeSeconds, cloud.PlayTimeSeconds)

	m.BusinessLevel = max(local.BusinessLevel, cloud.BusinessLevel)
	m.BusinessProgress = max(local.BusinessProgress, cloud.BusinessProgress)
	m.BusinessProgressGoal = max(local.BusinessProgressGoal, cloud.BusinessProgressGoal)

	for i := range m.ShopBuys {
		m.ShopBuys[i] = max(local.ShopBuys[i], cloud.ShopBuys[i])
	}

	if cloud.DailyLastClaim != "" {
		m.DailyLastClaim = cloud.DailyLastClaim
	}
	m.DailyStreak = max(local.DailyStreak, cloud.DailyStreak)

	normalizeState(&m, t, now)
	return m
}

func rawFloat(raw json.RawMessage, fallback float64) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return fallback
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback
	}
	return finiteOr(v, fallback)
}

func rawInt(raw json.RawMessage, fallback int) int {
	v := rawFloat(raw, float64(fallback))
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int(v)
}

func rawInt64(raw json.RawMessage, fallback int64) int64 {
	v := rawFloat(raw, float64(fallback))
	if v >= math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	if v <= math.MinInt64/2 {
		return math.MinInt64 / 2
	}
	return int64(v)
}

func finiteOr(v float64, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
