package main

import "time"

type UpgradeKind string

const (
	UpgradeIncome UpgradeKind = "income"
	UpgradeBoost  UpgradeKind = "boost"
	UpgradeAuto   UpgradeKind = "auto"
)

var upgradeKinds = []UpgradeKind{UpgradeIncome, UpgradeBoost, UpgradeAuto}

func (k UpgradeKind) Valid() bool {
	switch k {
	case UpgradeIncome, UpgradeBoost, UpgradeAuto:
		return true
	}
	return false
}

const shopSize = 5

type Screen string

const (
	ScreenClick    Screen = "click"
	ScreenBusiness Screen = "business"
	ScreenShop     Screen = "shop"
	ScreenRewards  Screen = "rewards"
	ScreenSettings Screen = "settings"
)

func (s Screen) Valid() bool {
	switch s {
	case ScreenClick, ScreenBusiness, ScreenShop, ScreenRewards, ScreenSettings:
		return true
	}
	return false
}

type UpgradeLevels struct {
	Income int `json:"income"`
	Boost  int `json:"boost"`
	Auto   int `json:"auto"`
}

func (u UpgradeLevels) Get(kind UpgradeKind) int {
	switch kind {
	case UpgradeIncome:
		return u.Income
	case UpgradeBoost:
		return u.Boost
	case UpgradeAuto:
		return u.Auto
	}
	return 1
}

func (u *UpgradeLevels) inc(kind UpgradeKind) int {
	switch kind {
	case UpgradeIncome:
		u.Income++
		return u.Income
	case UpgradeBoost:
		u.Boost++
		return u.Boost
	case UpgradeAuto:
		u.Auto++
		return u.Auto
	}
	return 1
}

// GameState is the single aggregate owned by one Session. It doubles as the
// persisted snapshot; see snapshot.go for the tolerant decoder.
type GameState struct {
	Money           float64 `json:"money"`
	ClickValue      float64 `json:"clickValue"`
	IncomePerSecond float64 `json:"incomePerSecond"`

	UpgradeLevels UpgradeLevels `json:"upgradeLevels"`

	TotalClicks     int64   `json:"totalClicks"`
	PlayTimeSeconds float64 `json:"playTimeSeconds"`

	BusinessLevel        int   `json:"businessLevel"`
	BusinessProgress     int64 `json:"businessProgress"`
	BusinessProgressGoal int64 `json:"businessProgressGoal"`

	ActiveScreen Screen `json:"activeScreen"`
	AudioEnabled bool   `json:"audioEnabled"`
	MusicEnabled bool   `json:"musicEnabled"`
	Lang         string `json:"lang"`

	RewardBoostActive  bool  `json:"rewardBoostActive"`
	RewardBoostEndTime int64 `json:"rewardBoostEndTime"`

	LastExitTimestamp int64 `json:"lastExitTimestamp"`

	ShopBuys [shopSize]int `json:"shopBuys"`

	DailyLastClaim string `json:"dailyLastClaim"`
	DailyStreak    int    `json:"dailyStreak"`
}

func DefaultState(t Tuning, now time.Time) GameState {
	return GameState{
		Money:                0,
		ClickValue:           1,
		IncomePerSecond:      1,
		UpgradeLevels:        UpgradeLevels{Income: 1, Boost: 1, Auto: 1},
		BusinessLevel:        1,
		BusinessProgressGoal: t.StartGoal,
		ActiveScreen:         ScreenClick,
		AudioEnabled:         true,
		MusicEnabled:         false,
		Lang:                 defaultLang,
		LastExitTimestamp:    now.UnixMilli(),
	}
}

// BoostActive reports whether the reward multiplier applies at now. The
// flag alone is not enough: an expired window is inactive even before the
// tick clears it.
func (s *GameState) BoostActive(now time.Time) bool {
	return s.RewardBoostActive && now.UnixMilli() < s.RewardBoostEndTime
}
