package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type BotConfig struct {
	PlayerID string `json:"playerId,omitempty"`
	Strategy string `json:"strategy"`
}

type BotState struct {
	Config   BotConfig
	PlayerID string
	Taps     int
	Bought   int
	Levels   int
}

type UpgradeView struct {
	Kind string `json:"kind"`
	Cost int64  `json:"cost"`
}

type ShopItemView struct {
	Index int   `json:"index"`
	Cost  int64 `json:"cost"`
}

type StateView struct {
	PlayerID            string         `json:"playerId"`
	Upgrades            []UpgradeView  `json:"upgrades"`
	Shop                []ShopItemView `json:"shop"`
	BusinessUpgradeCost int64          `json:"businessUpgradeCost"`
	MaxLevel            bool           `json:"maxLevel"`
	DailyAvailable      bool           `json:"dailyAvailable"`
	Paused              bool           `json:"paused"`
	State               struct {
		Money         float64 `json:"money"`
		BusinessLevel int     `json:"businessLevel"`
	} `json:"state"`
}

type ActionResponse struct {
	OK    bool       `json:"ok"`
	Error string     `json:"error,omitempty"`
	State *StateView `json:"state,omitempty"`
}

func main() {
	if !botsEnabled() {
		logInfo("bots disabled")
		return
	}

	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("API_BASE_URL")), "/")
	if baseURL == "" {
		logError("API_BASE_URL is required")
		os.Exit(1)
	}

	bots, err := loadBots()
	if err != nil {
		logError(fmt.Sprintf("failed to load bots: %v", err))
		os.Exit(1)
	}
	if len(bots) == 0 {
		logInfo("no bots configured")
		return
	}

	minDelay := parseEnvInt("BOT_RATE_LIMIT_MIN_MS", 200)
	maxDelay := parseEnvInt("BOT_RATE_LIMIT_MAX_MS", 800)
	tapsPerRound := parseEnvInt("BOT_TAPS_PER_ROUND", 25)
	rounds := parseEnvInt("BOT_ROUNDS", 10)

	states := make([]*BotState, 0, len(bots))
	for _, bot := range bots {
		states = append(states, &BotState{Config: bot, PlayerID: bot.PlayerID})
	}

	client := &http.Client{Timeout: 15 * time.Second}

	for round := 0; round < rounds; round++ {
		shuffle(states)
		for _, bot := range states {
			if err := playRound(client, baseURL, bot, tapsPerRound); err != nil {
				logError(fmt.Sprintf("bot %s round %d: %v", bot.PlayerID, round, err))
			}
			sleepJitter(minDelay, maxDelay)
		}
	}

	for _, bot := range states {
		logInfo(fmt.Sprintf("%s (%s): taps=%d bought=%d level=%d", bot.PlayerID, bot.Config.Strategy, bot.Taps, bot.Bought, bot.Levels))
	}
}

func botsEnabled() bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv("BOTS_ENABLED")))
	if value == "" {
		return true
	}
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

// loadBots reads BOT_LIST or BOT_LIST_PATH, falling back to BOT_COUNT new
// players with the BOT_STRATEGY strategy.
func loadBots() ([]BotConfig, error) {
	if raw := strings.TrimSpace(os.Getenv("BOT_LIST")); raw != "" {
		var bots []BotConfig
		if err := json.Unmarshal([]byte(raw), &bots); err != nil {
			return nil, err
		}
		return bots, nil
	}
	if raw := strings.TrimSpace(os.Getenv("BOT_LIST_PATH")); raw != "" {
		path := filepath.Clean(raw)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var bots []BotConfig
		if err := json.Unmarshal(data, &bots); err != nil {
			return nil, err
		}
		return bots, nil
	}

	count := parseEnvInt("BOT_COUNT", 0)
	strategy := strings.TrimSpace(os.Getenv("BOT_STRATEGY"))
	if strategy == "" {
		strategy = "tapper"
	}
	bots := make([]BotConfig, 0, count)
	for i := 0; i < count; i++ {
		bots = append(bots, BotConfig{Strategy: strategy})
	}
	return bots, nil
}

func playRound(client *http.Client, baseURL string, bot *BotState, taps int) error {
	view, err := fetchState(client, baseURL, bot.PlayerID)
	if err != nil {
		return err
	}
	bot.PlayerID = view.PlayerID

	if view.DailyAvailable {
		if _, err := post(client, baseURL+"/daily/claim", map[string]interface{}{"playerId": bot.PlayerID}); err != nil {
			logError(fmt.Sprintf("%s daily: %v", bot.PlayerID, err))
		}
	}

	for i := 0; i < taps; i++ {
		next, err := post(client, baseURL+"/tap", map[string]interface{}{"playerId": bot.PlayerID})
		if err != nil {
			return err
		}
		view = next
		bot.Taps++
	}

	for {
		path, payload := decideAction(bot, view)
		if path == "" {
			break
		}
		next, err := post(client, baseURL+path, payload)
		if err != nil {
			break
		}
		view = next
		bot.Bought++
	}
	bot.Levels = view.State.BusinessLevel
	return nil
}

// decideAction picks the next purchase for the bot's strategy, or "" when
// nothing affordable fits it.
func decideAction(bot *BotState, view *StateView) (string, map[string]interface{}) {
	money := view.State.Money
	base := map[string]interface{}{"playerId": bot.PlayerID}

	business := func() (string, map[string]interface{}) {
		if !view.MaxLevel && float64(view.BusinessUpgradeCost) <= money {
			return "/business/upgrade", base
		}
		return "", nil
	}
	upgrade := func() (string, map[string]interface{}) {
		var best *UpgradeView
		for i := range view.Upgrades {
			u := &view.Upgrades[i]
			if float64(u.Cost) <= money && (best == nil || u.Cost < best.Cost) {
				best = u
			}
		}
		if best == nil {
			return "", nil
		}
		base["kind"] = best.Kind
		return "/upgrade", base
	}
	shop := func() (string, map[string]interface{}) {
		for _, item := range view.Shop {
			if float64(item.Cost) <= money {
				base["index"] = item.Index
				return "/shop/buy", base
			}
		}
		return "", nil
	}

	order := []func() (string, map[string]interface{}){upgrade, business, shop}
	switch bot.Config.Strategy {
	case "investor":
		order = []func() (string, map[string]interface{}){business, upgrade, shop}
	case "collector":
		order = []func() (string, map[string]interface{}){shop, upgrade, business}
	}
	for _, pick := range order {
		if path, payload := pick(); path != "" {
			return path, payload
		}
	}
	return "", nil
}

func fetchState(client *http.Client, baseURL string, playerID string) (*StateView, error) {
	url := baseURL + "/state"
	if playerID != "" {
		url += "?playerId=" + playerID
	}
	res, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var response ActionResponse
	if err := decodeJSON(res.Body, &response); err != nil {
		return nil, err
	}
	if !response.OK || response.State == nil {
		return nil, errors.New(response.Error)
	}
	return response.State, nil
}

func post(client *http.Client, url string, payload map[string]interface{}) (*StateView, error) {
	body, _ := json.Marshal(payload)
	res, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var response ActionResponse
	if err := decodeJSON(res.Body, &response); err != nil {
		return nil, err
	}
	if !response.OK || response.State == nil {
		return nil, errors.New(response.Error)
	}
	return response.State, nil
}

func decodeJSON(reader io.Reader, target interface{}) error {
	return json.NewDecoder(reader).Decode(target)
}

func sleepJitter(minMs int, maxMs int) {
	if minMs <= 0 {
		return
	}
	if maxMs < minMs {
		maxMs = minMs
	}
	jitter := rand.Intn(maxMs-minMs+1) + minMs
	time.Sleep(time.Duration(jitter) * time.Millisecond)
}

func shuffle(states []*BotState) {
	rand.Shuffle(len(states), func(i, j int) {
		states[i], states[j] = states[j], states[i]
	})
}

func parseEnvInt(key string, fallback int) int {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return fallback
}

func logInfo(message string) {
	fmt.Printf("[INFO] %s %s\n", time.Now().Format(time.RFC3339), message)
}

func logError(message string) {
	fmt.Printf("[ERROR] %s %s\n", time.Now().Format(time.RFC3339), message)
}
