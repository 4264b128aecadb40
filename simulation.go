package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type LevelPoint struct {
	Minute int `json:"minute"`
	Level  int `json:"level"`
}

type SimArchetypeResult struct {
	Archetype   string        `json:"archetype"`
	FinalLevel  int           `json:"finalLevel"`
	FinalMoney  float64       `json:"finalMoney"`
	TotalClicks int64         `json:"totalClicks"`
	Purchases   int           `json:"purchases"`
	Upgrades    UpgradeLevels `json:"upgradeLevels"`
	ShopBuys    [shopSize]int `json:"shopBuys"`
	LevelCurve  []LevelPoint  `json:"levelCurve"`
}

type SimulationAssertions struct {
	ProgressWithinGoal bool `json:"progressWithinGoal"`
	LevelWithinMax     bool `json:"levelWithinMax"`
	MoneyNonNegative   bool `json:"moneyNonNegative"`
	CostsMonotonic     bool `json:"costsMonotonic"`
}

type SimulationReport struct {
	Seed       int64                `json:"seed"`
	Generated  string               `json:"generatedAt"`
	Minutes    int                  `json:"minutes"`
	Tuning     Tuning               `json:"tuning"`
	Players    []SimArchetypeResult `json:"players"`
	Assertions SimulationAssertions `json:"assertions"`
}

type SimConfig struct {
	Seed    int64
	Minutes int
	Start   time.Time
}

// simArchetype is a scripted player: taps per second while playing and the
// order it spends money in.
type simArchetype struct {
	name         string
	tapsPerSec   int
	preferInvest bool
	buysShop     bool
}

var simArchetypes = []simArchetype{
	{name: "tapper", tapsPerSec: 5, buysShop: true},
	{name: "idler", tapsPerSec: 0},
	{name: "investor", tapsPerSec: 2, preferInvest: true, buysShop: true},
}

type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// RunBalanceSimulation plays each archetype through cfg.Minutes of game time
// on a fake clock and reports how far each one gets.
func RunBalanceSimulation(t Tuning, cfg SimConfig) (SimulationReport, error) {
	if err := t.Validate(); err != nil {
		return SimulationReport{}, err
	}
	if cfg.Minutes <= 0 {
		return SimulationReport{}, errors.New("simulation needs a positive number of minutes")
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	assertions := SimulationAssertions{
		ProgressWithinGoal: true,
		LevelWithinMax:     true,
		MoneyNonNegative:   true,
		CostsMonotonic:     true,
	}

	report := SimulationReport{
		Seed:      cfg.Seed,
		Generated: time.Now().UTC().Format(time.RFC3339),
		Minutes:   cfg.Minutes,
		Tuning:    t,
	}

	for _, arch := range simArchetypes {
		clock := &simClock{now: cfg.Start}
		s := NewSession("sim-"+arch.name, SessionDeps{
			Tuning:   t,
			Platform: NewMockPlatform(nil),
			Logger:   log.New(os.Stderr, "[sim] ", 0),
			Now:      clock.Now,
			Location: time.UTC,
		})
		s.spawn = func(f func()) { f() }
		s.Init(context.Background(), defaultLang)

		result := SimArchetypeResult{Archetype: arch.name}
		lastLevel := 1
		result.LevelCurve = append(result.LevelCurve, LevelPoint{Minute: 0, Level: 1})

		for minute := 0; minute < cfg.Minutes; minute++ {
			if minute%60 == 0 {
				if _, err := s.ClaimDaily(); err == nil {
					_, _ = s.DoubleOffer(context.Background(), OfferDaily)
				}
			}

			for sec := 0; sec < 60; sec++ {
				clock.Advance(time.Second)
				s.Tick()
				taps := arch.tapsPerSec
				if taps > 0 {
					taps += rng.Intn(3) - 1
				}
				for i := 0; i < taps; i++ {
					_, _ = s.Tap()
				}
			}

			result.Purchases += simSpend(s, t, arch, &assertions)

			st := s.State()
			if st.BusinessProgress < 0 || st.BusinessProgress > st.BusinessProgressGoal {
				assertions.ProgressWithinGoal = false
			}
			if st.BusinessLevel > t.MaxBusinessLevel {
				assertions.LevelWithinMax = false
			}
			if st.Money < 0 {
				assertions.MoneyNonNegative = false
			}
			if st.BusinessLevel != lastLevel {
				lastLevel = st.BusinessLevel
				result.LevelCurve = append(result.LevelCurve, LevelPoint{Minute: minute + 1, Level: lastLevel})
			}
		}

		st := s.State()
		result.FinalLevel = st.BusinessLevel
		result.FinalMoney = st.Money
		result.TotalClicks = st.TotalClicks
		result.Upgrades = st.UpgradeLevels
		result.ShopBuys = st.ShopBuys
		report.Players = append(report.Players, result)
	}

	report.Assertions = assertions
	return report, nil
}

// simSpend buys whatever the archetype wants until nothing is affordable.
func simSpend(s *Session, t Tuning, arch simArchetype, assertions *SimulationAssertions) int {
	bought := 0
	for guard := 0; guard < 200; guard++ {
		st := s.State()

		if st.BusinessLevel < t.MaxBusinessLevel {
			cost := BusinessUpgradeCost(&st, t)
			if canAfford(st.Money, cost) && (arch.preferInvest || cost < cheapestUpgradeCost(&st, t)) {
				if _, err := s.UpgradeBusiness(); err == nil {
					bought++
					continue
				}
			}
		}

		kind, cost := cheapestUpgrade(&st, t)
		if canAfford(st.Money, cost) {
			res, err := s.BuyUpgrade(kind)
			if err == nil {
				bought++
				after := s.State()
				if UpgradeCost(&after, t, kind) <= res.Cost {
					assertions.CostsMonotonic = false
				}
				continue
			}
		}

		if arch.buysShop {
			costs := ShopCosts(&st, t)
			done := false
			for i, c := range costs {
				if canAfford(st.Money, c) {
					if _, err := s.BuyShopItem(i); err == nil {
						bought++
						done = true
						break
					}
				}
			}
			if done {
				continue
			}
		}
		break
	}
	return bought
}

func cheapestUpgrade(st *GameState, t Tuning) (UpgradeKind, int64) {
	best := upgradeKinds[0]
	bestCost := UpgradeCost(st, t, best)
	for _, kind := range upgradeKinds[1:] {
		if c := UpgradeCost(st, t, kind); c < bestCost {
			best, bestCost = kind, c
		}
	}
	return best, bestCost
}

func cheapestUpgradeCost(st *GameState, t Tuning) int64 {
	_, c := cheapestUpgrade(st, t)
	return c
}

func SaveSimulationReport(report SimulationReport, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = "artifacts/simulations"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	filename := filepath.Join(outputDir, "balance_simulation_"+time.Now().UTC().Format("20060102_150405")+".json")
	bytes, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filename, bytes, 0o644); err != nil {
		return "", err
	}
	return filename, nil
}

// runSimulateCommand implements `business_empire simulate`.
func runSimulateCommand(args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	minutes := fs.Int("minutes", 240, "minutes of game time to play")
	seed := fs.Int64("seed", 1, "random seed")
	tuningPath := fs.String("tuning", "", "tuning YAML file (defaults when empty)")
	out := fs.String("out", "", "report directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tuning := DefaultTuning()
	if *tuningPath != "" {
		t, err := LoadTuning(*tuningPath)
		if err != nil {
			return err
		}
		tuning = t
	}

	report, err := RunBalanceSimulation(tuning, SimConfig{Seed: *seed, Minutes: *minutes})
	if err != nil {
		return err
	}
	path, err := SaveSimulationReport(report, *out)
	if err != nil {
		return err
	}
	for _, p := range report.Players {
		logger.Printf("Simulation: %s reached level %d with %d purchases", p.Archetype, p.FinalLevel, p.Purchases)
	}
	logger.Println("Simulation: report written to", path)
	return nil
}
