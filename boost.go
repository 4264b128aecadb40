package main

import "time"

// ActivateRewardBoost starts or restarts the reward window. Re-activating
// an active boost resets the end time; durations never stack.
func ActivateRewardBoost(s *GameState, t Tuning, now time.Time) time.Time {
	expiresAt := now.Add(time.Duration(t.RewardBoostDurationMs) * time.Millisecond)
	s.RewardBoostActive = true
	s.RewardBoostEndTime = expiresAt.UnixMilli()
	return expiresAt
}

func BoostRemaining(s *GameState, now time.Time) time.Duration {
	if !s.BoostActive(now) {
		return 0
	}
	return time.Duration(s.RewardBoostEndTime-now.UnixMilli()) * time.Millisecond
}

// expireRewardBoost clears a boost whose window has passed.
func expireRewardBoost(s *GameState, now time.Time) bool {
	if s.RewardBoostActive && now.UnixMilli() >= s.RewardBoostEndTime {
		s.RewardBoostActive = false
		s.RewardBoostEndTime = 0
		return true
	}
	return false
}
