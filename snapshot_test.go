package main

import (
	"reflect"
	"testing"
	"time"
)

func TestSnapshotRoundTrip(t *testing.T) {
	tuning := DefaultTuning()
	s := DefaultState(tuning, testStart)
	s.Money = 1234.5
	s.UpgradeLevels = UpgradeLevels{Income: 4, Boost: 2, Auto: 3}
	s.BusinessLevel = 5
	s.BusinessProgress = 99
	s.BusinessProgressGoal = 1500
	s.ActiveScreen = ScreenShop
	s.Lang = "ru"
	s.RewardBoostActive = true
	s.RewardBoostEndTime = testStart.Add(time.Minute).UnixMilli()
	s.ShopBuys = [shopSize]int{1, 0, 2, 0, 0}
	s.DailyLastClaim = "2025-03-09"
	s.DailyStreak = 4

	data, err := ExportSnapshot(s)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := ValidateSnapshot(data); err != nil {
		t.Fatalf("exported snapshot fails the schema: %v", err)
	}
	got := ImportSnapshot(data, tuning, testStart)
	if !reflect.DeepEqual(got, s) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, s)
	}
}

func TestImportSnapshotFallsBackToDefaults(t *testing.T) {
	tuning := DefaultTuning()
	want := DefaultState(tuning, testStart)

	for _, in := range []string{"", "   ", "null", "{}", "[1,2]", "not json", `"money"`} {
		got := ImportSnapshot([]byte(in), tuning, testStart)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ImportSnapshot(%q) = %+v, want defaults", in, got)
		}
	}
}

func TestImportSnapshotClampsFields(t *testing.T) {
	tuning := DefaultTuning()
	tests := []struct {
		name  string
		in    string
		check func(GameState) bool
	}{
		{"negative money", `{"money":-5}`, func(s GameState) bool { return s.Money == 0 }},
		{"string money", `{"money":"lots"}`, func(s GameState) bool { return s.Money == 0 }},
		{"zero click value", `{"clickValue":0}`, func(s GameState) bool { return s.ClickValue == 1 }},
		{"zero upgrade level", `{"upgradeLevels":{"income":0,"boost":7}}`, func(s GameState) bool {
			return s.UpgradeLevels == UpgradeLevels{Income: 1, Boost: 7, Auto: 1}
		}},
		{"level above max", `{"businessLevel":99,"businessProgress":5000,"businessProgressGoal":100}`, func(s GameState) bool {
			return s.BusinessLevel == 20 && s.BusinessProgress == 100
		}},
		{"progress at goal", `{"businessLevel":3,"businessProgress":820,"businessProgressGoal":820}`, func(s GameState) bool {
			return s.BusinessProgress == 819
		}},
		{"zero goal", `{"businessProgressGoal":0}`, func(s GameState) bool { return s.BusinessProgressGoal == 200 }},
		{"unknown screen", `{"activeScreen":"casino"}`, func(s GameState) bool { return s.ActiveScreen == ScreenClick }},
		{"regional lang", `{"lang":"ru-RU"}`, func(s GameState) bool { return s.Lang == "ru" }},
		{"unsupported lang", `{"lang":"de"}`, func(s GameState) bool { return s.Lang == "en" }},
		{"expired boost", `{"rewardBoostActive":true,"rewardBoostEndTime":5}`, func(s GameState) bool {
			return !s.RewardBoostActive && s.RewardBoostEndTime == 0
		}},
		{"short shop list", `{"shopBuys":[-1,2]}`, func(s GameState) bool {
			return s.ShopBuys == [shopSize]int{0, 2, 0, 0, 0}
		}},
		{"bad daily key", `{"dailyLastClaim":"yesterday","dailyStreak":99}`, func(s GameState) bool {
			return s.DailyLastClaim == "" && s.DailyStreak == 30
		}},
		{"missing exit mark", `{"lastExitTimestamp":0}`, func(s GameState) bool {
			return s.LastExitTimestamp == testStart.UnixMilli()
		}},
	}
	for _, tt := range tests {
		got := ImportSnapshot([]byte(tt.in), tuning, testStart)
		if !tt.check(got) {
			t.Errorf("%s: imported %+v", tt.name, got)
		}
	}
}

func TestValidateSnapshot(t *testing.T) {
	data, err := ExportSnapshot(DefaultState(DefaultTuning(), testStart))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := ValidateSnapshot(data); err != nil {
		t.Fatalf("default state invalid: %v", err)
	}
	if err := ValidateSnapshot([]byte(`{"money":-1}`)); err == nil {
		t.Fatalf("negative money passed the schema")
	}
	if err := ValidateSnapshot([]byte(`not json`)); err == nil {
		t.Fatalf("garbage passed the schema")
	}
}

func TestMergeSnapshotsKeepsTheFurthestProgress(t *testing.T) {
	tuning := DefaultTuning()
	local := DefaultState(tuning, testStart)
	local.Money = 300
	local.TotalClicks = 80
	local.ShopBuys = [shopSize]int{2, 0, 0, 0, 0}
	local.AudioEnabled = false
	local.DailyLastClaim = "2025-03-10"
	local.DailyStreak = 5

	cloud := DefaultState(tuning, testStart)
	cloud.Money = 200
	cloud.TotalClicks = 10
	cloud.BusinessLevel = 6
	cloud.BusinessProgressGoal = 2000
	cloud.UpgradeLevels.Auto = 4
	cloud.ShopBuys = [shopSize]int{0, 1, 0, 0, 0}
	cloud.AudioEnabled = true
	cloud.DailyLastClaim = "2025-03-08"
	cloud.DailyStreak = 2

	m := MergeSnapshots(local, cloud, tuning, testStart)

	if m.Money != 300 || m.TotalClicks != 80 || m.BusinessLevel != 6 || m.UpgradeLevels.Auto != 4 {
		t.Fatalf("merged = %+v", m)
	}
	if m.ShopBuys != [shopSize]int{2, 1, 0, 0, 0} {
		t.Fatalf("shop buys = %v", m.ShopBuys)
	}
	if m.AudioEnabled {
		t.Fatalf("merge took the cloud audio preference")
	}
	if m.DailyLastClaim != "2025-03-08" || m.DailyStreak != 5 {
		t.Fatalf("daily = %q streak %d", m.DailyLastClaim, m.DailyStreak)
	}

	empty := MergeSnapshots(local, DefaultState(tuning, testStart), tuning, testStart)
	if empty.DailyLastClaim != "2025-03-10" {
		t.Fatalf("empty cloud claim cleared the local key")
	}
}
