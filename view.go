package main

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type UpgradeView struct {
	Kind  UpgradeKind `json:"kind"`
	Title string      `json:"title"`
	Level int         `json:"level"`
	Cost  int64       `json:"cost"`
	Label string      `json:"label"`
}

type ShopItemView struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Count int    `json:"count"`
	Cost  int64  `json:"cost"`
	Label string `json:"label"`
}

type OfferView struct {
	Offer
	Title  string `json:"title"`
	Body   string `json:"body"`
	Action string `json:"action"`
}

// StateView is what clients render: the raw state plus every derived
// number, already localized.
type StateView struct {
	PlayerID   string    `json:"playerId"`
	ServerTime string    `json:"serverTime"`
	State      GameState `json:"state"`

	EffectiveIncomePerSecond float64 `json:"effectiveIncomePerSecond"`
	EffectiveClickValue      float64 `json:"effectiveClickValue"`
	MoneyText                string  `json:"moneyText"`
	ProgressText             string  `json:"progressText"`

	Upgrades            []UpgradeView  `json:"upgrades"`
	Shop                []ShopItemView `json:"shop"`
	BusinessUpgradeCost int64          `json:"businessUpgradeCost"`
	BusinessPush        int64          `json:"businessPush"`
	MaxLevel            bool           `json:"maxLevel"`

	BoostSecondsLeft   int64  `json:"boostSecondsLeft"`
	DailyAvailable     bool   `json:"dailyAvailable"`
	DailyText          string `json:"dailyText"`
	DailyNextInSeconds int64  `json:"dailyNextInSeconds,omitempty"`

	Paused        bool          `json:"paused"`
	PauseSources  []PauseSource `json:"pauseSources,omitempty"`
	Muted         bool          `json:"muted"`
	Offers        []OfferView   `json:"offers,omitempty"`
	Authenticated bool          `json:"authenticated"`
	AuthText      string        `json:"authText"`
}

func (s *Session) View(cat *Catalog) StateView {
	authed := s.Authenticated()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := s.state
	lang := st.Lang

	view := StateView{
		PlayerID:                 s.id,
		ServerTime:               now.UTC().Format(time.RFC3339),
		State:                    st,
		EffectiveIncomePerSecond: EffectiveIncomePerSecond(&st, s.tuning, now),
		EffectiveClickValue:      EffectiveClickValue(&st, s.tuning, now),
		MoneyText:                cat.FormatInt(lang, int64(st.Money)),
		ProgressText:             cat.FormatInt(lang, st.BusinessProgress) + "/" + cat.FormatInt(lang, st.BusinessProgressGoal),
		BusinessUpgradeCost:      BusinessUpgradeCost(&st, s.tuning),
		BusinessPush:             BusinessPush(&st, s.tuning, now),
		MaxLevel:                 st.BusinessLevel >= s.tuning.MaxBusinessLevel,
		BoostSecondsLeft:         int64(BoostRemaining(&st, now).Seconds()),
		DailyAvailable:           DailyAvailable(&st, now, s.loc),
		Paused:                   s.pause.Paused(),
		PauseSources:             s.pause.Sources(),
		Muted:                    s.adsInFlight > 0,
		Authenticated:            authed,
	}

	for _, kind := range upgradeKinds {
		cost := UpgradeCost(&st, s.tuning, kind)
		view.Upgrades = append(view.Upgrades, UpgradeView{
			Kind:  kind,
			Title: cat.Text(lang, "upgrade_"+string(kind)+"_title"),
			Level: st.UpgradeLevels.Get(kind),
			Cost:  cost,
			Label: compactLabel(cost),
		})
	}

	costs := ShopCosts(&st, s.tuning)
	for i, cost := range costs {
		view.Shop = append(view.Shop, ShopItemView{
			Index: i,
			Title: cat.Text(lang, shopItemKey(i)),
			Count: st.ShopBuys[i],
			Cost:  cost,
			Label: compactLabel(cost),
		})
	}

	if view.DailyAvailable {
		view.DailyText = cat.Text(lang, "daily_available")
	} else {
		view.DailyText = cat.Text(lang, "daily_tomorrow")
		view.DailyNextInSeconds = int64(DailyNextAvailable(&st, now, s.loc).Seconds())
	}

	if authed {
		view.AuthText = cat.Text(lang, "signed")
	} else {
		view.AuthText = cat.Text(lang, "guest")
	}

	for _, offer := range s.offersLocked() {
		view.Offers = append(view.Offers, offerView(cat, lang, offer, st.DailyStreak))
	}
	return view
}

func offerView(cat *Catalog, lang string, offer Offer, streak int) OfferView {
	amount := cat.FormatInt(lang, offer.Amount)
	v := OfferView{Offer: offer, Action: cat.Text(lang, "modal_double_action")}
	switch offer.Kind {
	case OfferDaily:
		v.Title = cat.Text(lang, "daily_title")
		v.Body = cat.Text(lang, "modal_daily_body", amount, streak)
	case OfferOffline:
		v.Title = cat.Text(lang, "modal_offline_title")
		v.Body = cat.Text(lang, "modal_offline_body", amount)
	}
	return v
}

func shopItemKey(index int) string {
	return "shop_item_" + string(rune('1'+index))
}

// compactLabel renders a price like 1.5M for buttons.
func compactLabel(v int64) string {
	return strings.ReplaceAll(humanize.SIWithDigits(float64(v), 1, ""), " ", "")
}
