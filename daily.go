package main

import (
	"math"
	"time"
)

const dayKeyLayout = "2006-01-02"

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayKeyLayout)
}

func DailyAvailable(s *GameState, now time.Time, loc *time.Location) bool {
	return s.DailyLastClaim != dayKey(now, loc)
}

// DailyNextAvailable returns how long until the next calendar day starts
// when today's reward is already claimed, or zero when it can be claimed.
func DailyNextAvailable(s *GameState, now time.Time, loc *time.Location) time.Duration {
	if DailyAvailable(s, now, loc) {
		return 0
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return next.Sub(local)
}

// DailyRewardBase scales with business level and effective income.
func DailyRewardBase(s *GameState, t Tuning, now time.Time) int64 {
	ips := EffectiveIncomePerSecond(s, t, now)
	scaled := t.Daily.Base + int64(s.BusinessLevel)*t.Daily.PerLevel + int64(math.Floor(ips*t.Daily.PerIncome))
	return max(t.Daily.Floor, scaled)
}

func nextDailyStreak(s *GameState, t Tuning, now time.Time, loc *time.Location) int {
	local := now.In(loc)
	yesterday := time.Date(local.Year(), local.Month(), local.Day()-1, 12, 0, 0, 0, loc)
	if s.DailyLastClaim == dayKey(yesterday, loc) {
		return min(t.Daily.StreakMax, s.DailyStreak+1)
	}
	return 1
}

func dailyStreakMultiplier(streak int, t Tuning) float64 {
	return 1 + math.Min(t.Daily.StreakBonusCap, float64(streak-1)*t.Daily.StreakStep)
}

// ClaimDaily credits today's reward and advances the streak. The streak
// grows only when the previous claim was on the calendar day before.
func ClaimDaily(s *GameState, t Tuning, now time.Time, loc *time.Location) (int64, error) {
	if !DailyAvailable(s, now, loc) {
		return 0, ErrDailyClaimed
	}

	amount := DailyRewardBase(s, t, now)
	s.DailyStreak = nextDailyStreak(s, t, now, loc)
	total := int64(math.Floor(float64(amount) * dailyStreakMultiplier(s.DailyStreak, t)))

	s.Money += float64(total)
	s.DailyLastClaim = dayKey(now, loc)
	return total, nil
}
