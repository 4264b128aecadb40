package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type UpgradeTuning struct {
	Base     float64 `yaml:"base"`
	Growth   float64 `yaml:"growth"`
	StatGain float64 `yaml:"stat_gain"`
}

type ShopItemTuning struct {
	Base        float64 `yaml:"base"`
	Growth      float64 `yaml:"growth"`
	IncomeBonus float64 `yaml:"income_bonus"`
	ClickBonus  float64 `yaml:"click_bonus"`
}

// GoalBand applies Factor to goal growth for levels below BelowLevel.
// A band with BelowLevel 0 matches every remaining level.
type GoalBand struct {
	BelowLevel int     `yaml:"below_level"`
	Factor     float64 `yaml:"factor"`
}

type DailyTuning struct {
	Floor          int64   `yaml:"floor"`
	Base           int64   `yaml:"base"`
	PerLevel       int64   `yaml:"per_level"`
	PerIncome      float64 `yaml:"per_income"`
	StreakStep     float64 `yaml:"streak_step"`
	StreakBonusCap float64 `yaml:"streak_bonus_cap"`
	StreakMax      int     `yaml:"streak_max"`
}

type Tuning struct {
	MaxBusinessLevel int        `yaml:"max_business_level"`
	StartGoal        int64      `yaml:"start_goal"`
	GoalBands        []GoalBand `yaml:"goal_bands"`
	GoalLevelStep    int64      `yaml:"goal_level_step"`
	LevelIncomeStep  float64    `yaml:"level_income_step"`
	LevelClickStep   float64    `yaml:"level_click_step"`

	InterstitialEveryLevels int   `yaml:"interstitial_every_levels"`
	InterstitialCooldownMs  int64 `yaml:"interstitial_cooldown_ms"`
	BusinessScreenAdGapMs   int64 `yaml:"business_screen_ad_gap_ms"`

	Upgrades map[UpgradeKind]UpgradeTuning `yaml:"upgrades"`
	Shop     []ShopItemTuning              `yaml:"shop"`

	BoostIncomePerLevel float64 `yaml:"boost_income_per_level"`
	BoostClickPerLevel  float64 `yaml:"boost_click_per_level"`
	AutoFlatPerLevel    float64 `yaml:"auto_flat_per_level"`

	BusinessBase       float64 `yaml:"business_base"`
	BusinessGrowth     float64 `yaml:"business_growth"`
	BusinessPushFlat   float64 `yaml:"business_push_flat"`
	BusinessPushPerIPS float64 `yaml:"business_push_per_ips"`

	TapProgressFactor     float64 `yaml:"tap_progress_factor"`
	PassiveProgressFactor float64 `yaml:"passive_progress_factor"`

	RewardBoostDurationMs int64   `yaml:"reward_boost_duration_ms"`
	RewardBoostMultiplier float64 `yaml:"reward_boost_multiplier"`

	OfflineMinMs int64 `yaml:"offline_min_ms"`
	OfflineCapMs int64 `yaml:"offline_cap_ms"`

	Daily DailyTuning `yaml:"daily"`

	MaxTickSeconds       float64 `yaml:"max_tick_seconds"`
	AutosaveEverySeconds float64 `yaml:"autosave_every_seconds"`
	SaveDebounceMs       int64   `yaml:"save_debounce_ms"`
}

func DefaultTuning() Tuning {
	return Tuning{
		MaxBusinessLevel: 20,
		StartGoal:        200,
		GoalBands: []GoalBand{
			{BelowLevel: 6, Factor: 1.35},
			{BelowLevel: 12, Factor: 1.52},
			{BelowLevel: 0, Factor: 1.70},
		},
		GoalLevelStep:   80,
		LevelIncomeStep: 0.6,
		LevelClickStep:  0.2,

		InterstitialEveryLevels: 3,
		InterstitialCooldownMs:  90_000,
		BusinessScreenAdGapMs:   90_000,

		Upgrades: map[UpgradeKind]UpgradeTuning{
			UpgradeIncome: {Base: 50, Growth: 1.45, StatGain: 0.15},
			UpgradeBoost:  {Base: 90, Growth: 1.55, StatGain: 0.10},
			UpgradeAuto:   {Base: 120, Growth: 1.62, StatGain: 0.08},
		},
		Shop: []ShopItemTuning{
			{Base: 100_000, Growth: 1.55, IncomeBonus: 0.10},
			{Base: 500_000, Growth: 1.65, IncomeBonus: 0.18},
			{Base: 1_500_000, Growth: 1.70, ClickBonus: 0.20},
			{Base: 8_500_000, Growth: 1.75, IncomeBonus: 0.30, ClickBonus: 0.12},
			{Base: 35_000_000, Growth: 1.80, IncomeBonus: 0.45},
		},

		BoostIncomePerLevel: 0.08,
		BoostClickPerLevel:  0.06,
		AutoFlatPerLevel:    0.6,

		BusinessBase:       120,
		BusinessGrowth:     1.52,
		BusinessPushFlat:   40,
		BusinessPushPerIPS: 0.6,

		TapProgressFactor:     0.08,
		PassiveProgressFactor: 0.22,

		RewardBoostDurationMs: 180_000,
		RewardBoostMultiplier: 2,

		OfflineMinMs: 8_000,
		OfflineCapMs: 2 * 60 * 60 * 1000,

		Daily: DailyTuning{
			Floor:          200,
			Base:           250,
			PerLevel:       120,
			PerIncome:      35,
			StreakStep:     0.03,
			StreakBonusCap: 0.40,
			StreakMax:      30,
		},

		MaxTickSeconds:       1,
		AutosaveEverySeconds: 10,
		SaveDebounceMs:       250,
	}
}

// LoadTuning reads a YAML file on top of DefaultTuning, so partial files
// only override the keys they name.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.MaxBusinessLevel < 1 {
		return errors.New("max_business_level must be >= 1")
	}
	if t.StartGoal < 1 {
		return errors.New("start_goal must be >= 1")
	}
	if len(t.GoalBands) == 0 {
		return errors.New("goal_bands is required")
	}
	for _, band := range t.GoalBands {
		if band.Factor < 1 {
			return fmt.Errorf("goal band factor %v must be >= 1", band.Factor)
		}
	}
	for _, kind := range upgradeKinds {
		u, ok := t.Upgrades[kind]
		if !ok {
			return fmt.Errorf("upgrade %q is not tuned", kind)
		}
		if u.Base <= 0 || u.Growth <= 1 {
			return fmt.Errorf("upgrade %q needs base > 0 and growth > 1", kind)
		}
	}
	if len(t.Shop) != shopSize {
		return fmt.Errorf("shop needs exactly %d items, got %d", shopSize, len(t.Shop))
	}
	for i, item := range t.Shop {
		if item.Base <= 0 || item.Growth <= 1 {
			return fmt.Errorf("shop item %d needs base > 0 and growth > 1", i)
		}
		if item.IncomeBonus < 0 || item.ClickBonus < 0 {
			return fmt.Errorf("shop item %d has a negative bonus", i)
		}
	}
	if t.BusinessBase <= 0 || t.BusinessGrowth <= 1 {
		return errors.New("business_base must be > 0 and business_growth > 1")
	}
	if t.RewardBoostMultiplier < 1 {
		return errors.New("reward_boost_multiplier must be >= 1")
	}
	if t.OfflineCapMs < 0 || t.OfflineMinMs < 0 {
		return errors.New("offline windows must be non-negative")
	}
	if t.MaxTickSeconds <= 0 {
		return errors.New("max_tick_seconds must be > 0")
	}
	return nil
}

func (t Tuning) goalFactor(level int) float64 {
	for _, band := range t.GoalBands {
		if band.BelowLevel == 0 || level < band.BelowLevel {
			return band.Factor
		}
	}
	return t.GoalBands[len(t.GoalBands)-1].Factor
}
