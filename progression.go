package main

import "math"

type ProgressResult struct {
	LevelsGained []int
	// InterstitialDue is set when a gained level lands on the ad cadence.
	InterstitialDue bool
	Clamped         bool
}

func (r ProgressResult) LeveledUp() bool {
	return len(r.LevelsGained) > 0
}

// AddProgress feeds amount into the business bar and carries overflow into
// level-ups. At the level cap the bar saturates at the goal and the excess
// is discarded.
func AddProgress(s *GameState, t Tuning, amount float64) ProgressResult {
	var result ProgressResult
	if math.IsNaN(amount) || amount <= 0 {
		amount = 0
	}
	if amount > math.MaxInt64/4 {
		amount = math.MaxInt64 / 4
	}
	s.BusinessProgress += int64(math.Floor(amount))

	for s.BusinessProgress >= s.BusinessProgressGoal && s.BusinessLevel < t.MaxBusinessLevel {
		s.BusinessProgress -= s.BusinessProgressGoal
		level := levelUpBusiness(s, t)
		result.LevelsGained = append(result.LevelsGained, level)
		if t.InterstitialEveryLevels > 0 && level%t.InterstitialEveryLevels == 0 {
			result.InterstitialDue = true
		}
	}

	if s.BusinessLevel >= t.MaxBusinessLevel && s.BusinessProgress > s.BusinessProgressGoal {
		s.BusinessProgress = s.BusinessProgressGoal
		result.Clamped = true
	}
	return result
}

func levelUpBusiness(s *GameState, t Tuning) int {
	s.BusinessLevel++
	level := s.BusinessLevel

	growth := t.goalFactor(level)
	s.BusinessProgressGoal = int64(math.Floor(float64(s.BusinessProgressGoal)*growth + float64(int64(level)*t.GoalLevelStep)))
	if s.BusinessProgressGoal < 1 {
		s.BusinessProgressGoal = 1
	}

	s.IncomePerSecond += math.Floor(1 + float64(level)*t.LevelIncomeStep)
	s.ClickValue += math.Floor(1 + float64(level)*t.LevelClickStep)
	return level
}
