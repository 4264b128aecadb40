package main

import (
	"math"
	"time"
)

// ApplyOfflineIncome credits income for the time since the last exit,
// capped at the offline window. Gaps shorter than the minimum are ignored.
// Any gap past the minimum moves the exit mark to now so the same span is
// never paid twice.
func ApplyOfflineIncome(s *GameState, t Tuning, now time.Time) int64 {
	nowMs := now.UnixMilli()
	last := s.LastExitTimestamp
	if last <= 0 {
		last = nowMs
	}
	elapsed := nowMs - last
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed < t.OfflineMinMs {
		return 0
	}

	used := min(elapsed, t.OfflineCapMs)
	seconds := float64(used) / 1000
	earned := int64(math.Floor(EffectiveIncomePerSecond(s, t, now) * seconds))

	s.LastExitTimestamp = nowMs
	if earned <= 0 {
		return 0
	}
	s.Money += float64(earned)
	return earned
}
