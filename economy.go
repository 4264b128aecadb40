package main

import (
	"math"
	"time"
)

// Economy formulas are pure over a state snapshot. Percentage multipliers
// are applied before the ad boost; the auto-collect bonus is the only
// additive term.

func EffectiveIncomePerSecond(s *GameState, t Tuning, now time.Time) float64 {
	ips := s.IncomePerSecond

	boostMultiplier := 1 + float64(s.UpgradeLevels.Boost-1)*t.BoostIncomePerLevel
	ips *= boostMultiplier

	autoBonus := float64(s.UpgradeLevels.Auto-1) * t.AutoFlatPerLevel
	ips += autoBonus

	ips *= ShopIncomeMultiplier(s, t)

	if s.BoostActive(now) {
		ips *= t.RewardBoostMultiplier
	}

	return math.Max(0, ips)
}

func EffectiveClickValue(s *GameState, t Tuning, now time.Time) float64 {
	cv := s.ClickValue
	cv *= 1 + float64(s.UpgradeLevels.Boost-1)*t.BoostClickPerLevel
	cv *= ShopClickMultiplier(s, t)
	if s.BoostActive(now) {
		cv *= t.RewardBoostMultiplier
	}
	return math.Max(1, cv)
}

func ShopIncomeMultiplier(s *GameState, t Tuning) float64 {
	multiplier := 1.0
	for i, item := range t.Shop {
		if item.IncomeBonus == 0 {
			continue
		}
		multiplier *= 1 + float64(s.ShopBuys[i])*item.IncomeBonus
	}
	return multiplier
}

func ShopClickMultiplier(s *GameState, t Tuning) float64 {
	multiplier := 1.0
	for i, item := range t.Shop {
		if item.ClickBonus == 0 {
			continue
		}
		multiplier *= 1 + float64(s.ShopBuys[i])*item.ClickBonus
	}
	return multiplier
}

func UpgradeCost(s *GameState, t Tuning, kind UpgradeKind) int64 {
	u := t.Upgrades[kind]
	level := s.UpgradeLevels.Get(kind)
	return geometricCost(u.Base, u.Growth, level-1)
}

func ShopCosts(s *GameState, t Tuning) [shopSize]int64 {
	var costs [shopSize]int64
	for i, item := range t.Shop {
		if i >= shopSize {
			break
		}
		costs[i] = geometricCost(item.Base, item.Growth, s.ShopBuys[i])
	}
	return costs
}

func BusinessUpgradeCost(s *GameState, t Tuning) int64 {
	return geometricCost(t.BusinessBase, t.BusinessGrowth, s.BusinessLevel-1)
}

// BusinessPush is the progress bought by one business upgrade.
func BusinessPush(s *GameState, t Tuning, now time.Time) int64 {
	return int64(math.Floor(t.BusinessPushFlat + EffectiveIncomePerSecond(s, t, now)*t.BusinessPushPerIPS))
}

func TapProgress(clickValue float64, t Tuning) int64 {
	return int64(math.Floor(1 + clickValue*t.TapProgressFactor))
}

func geometricCost(base float64, growth float64, steps int) int64 {
	if steps < 0 {
		steps = 0
	}
	cost := math.Floor(base * math.Pow(growth, float64(steps)))
	if cost > math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	return int64(cost)
}

func canAfford(money float64, cost int64) bool {
	return money >= float64(cost)
}
