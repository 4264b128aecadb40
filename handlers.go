package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

/* ======================
   Request / Response Types
   ====================== */

type ActionRequest struct {
	PlayerID string `json:"playerId"`
	Kind     string `json:"kind,omitempty"`
	Index    *int   `json:"index,omitempty"`
	Event    string `json:"event,omitempty"`
	Screen   string `json:"screen,omitempty"`
}

type SettingsRequest struct {
	PlayerID string `json:"playerId"`
	Sound    *bool  `json:"sound,omitempty"`
	Music    *bool  `json:"music,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

type AdResultRequest struct {
	PlayerID  string `json:"playerId"`
	RequestID string `json:"requestId"`
	Shown     bool   `json:"shown"`
	Rewarded  bool   `json:"rewarded"`
	Reason    string `json:"reason,omitempty"`
}

type ActionResponse struct {
	OK    bool       `json:"ok"`
	Error string     `json:"error,omitempty"`
	State *StateView `json:"state,omitempty"`

	Tap       *TapResult      `json:"tap,omitempty"`
	Purchase  *PurchaseResult `json:"purchase,omitempty"`
	Business  *BusinessResult `json:"business,omitempty"`
	Daily     *DailyResult    `json:"daily,omitempty"`
	SignIn    *SignInResult   `json:"signIn,omitempty"`
	Credited  int64           `json:"credited,omitempty"`
	BoostEnds int64           `json:"boostEndsAt,omitempty"`
	Prefs     *Preferences    `json:"preferences,omitempty"`
}

type I18nResponse struct {
	OK       bool              `json:"ok"`
	Lang     string            `json:"lang"`
	Messages map[string]string `json:"messages"`
}

/* ======================
   Helpers
   ====================== */

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, code string) {
	writeJSON(w, ActionResponse{OK: false, Error: code})
}

// errorCode maps session errors onto the wire codes clients switch on.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrPaused):
		return "PAUSED"
	case errors.Is(err, ErrInsufficientFunds):
		return "NOT_ENOUGH_MONEY"
	case errors.Is(err, ErrUnknownItem):
		return "UNKNOWN_ITEM"
	case errors.Is(err, ErrUnknownEvent):
		return "UNKNOWN_EVENT"
	case errors.Is(err, ErrDailyClaimed):
		return "DAILY_ALREADY_CLAIMED"
	case errors.Is(err, ErrNoOffer):
		return "NO_OFFER"
	case errors.Is(err, ErrNotRewarded):
		return "AD_NOT_REWARDED"
	default:
		return "INTERNAL_ERROR"
	}
}

// decodeAction reads a POST body and resolves the player's session.
func decodeAction(app *App, w http.ResponseWriter, r *http.Request) (ActionRequest, *Session, bool) {
	var req ActionRequest
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return req, nil, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, "INVALID_REQUEST")
		return req, nil, false
	}
	if !isValidPlayerID(req.PlayerID) {
		fail(w, "INVALID_PLAYER_ID")
		return req, nil, false
	}
	lang := app.catalog.MatchLanguage("", r.Header.Get("Accept-Language"))
	return req, app.registry.Get(r.Context(), req.PlayerID, lang), true
}

/* ======================
   Handlers
   ====================== */

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"ok":       true,
			"sessions": app.registry.Len(),
		})
	}
}

// stateHandler loads or creates the player's session. Without a playerId a
// new player is started and its id is returned in the view.
func stateHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		playerID := r.URL.Query().Get("playerId")
		if playerID != "" && !isValidPlayerID(playerID) {
			fail(w, "INVALID_PLAYER_ID")
			return
		}
		lang := app.catalog.MatchLanguage(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
		s := app.registry.Get(r.Context(), playerID, lang)
		s.touch()

		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, State: &view})
	}
}

func tapHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, s, ok := decodeAction(app, w, r)
		if !ok {
			return
		}
		res, err := s.Tap()
		if err != nil {
			fail(w, errorCode(err))
			return
		}
		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, Tap: &res, State: &view})
	}
}

func upgradeHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, s, ok := decodeAction(app, w, r)
		if !ok {
			return
		}
		res, err := s.BuyUpgrade(UpgradeKind(strings.ToLower(req.Kind)))
		if err != nil {
			fail(w, errorCode(err))
			return
		}
		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, Purchase: &res, State: &view})
	}
}

func shopBuyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, s, ok := decodeAction(app, w, r)
		if !ok {
			return
		}
		if req.Index == nil {
			fail(w, "INVALID_REQUEST")
			return
		}
		res, err := s.BuyShopItem(*req.Index)
		if err != nil {
			fail(w, errorCode(err))
			return
		}
		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, Purchase: &res, State: &view})
	}
}

func businessUpgradeHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, s, ok := decodeAction(app, w, r)
		if !ok {
			return
		}
		res, err := s.UpgradeBusiness()
		if err != nil {
			fail(w, errorCode(err))
			return
		}
		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, Business: &res, State: &view})
	}
}

func rewardBoostHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, s, ok := decodeAction(app, w, r)
		if !ok {
			return
		}
		endsAt, err := s.ActivateRewardBoost(r.Context())
		if err != nil {
			fail(w, errorCode(err))
			return
		}
		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, BoostEnds: endsAt.UnixMilli(), State: &view})
	}
}

func dailyClaimHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, s, ok := decodeAction(app, w, r)
		if !ok {
			return
		}
		res, err := s.ClaimDaily()
		if err != nil {
			fail(w, errorCode(err))
			return
		}
		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, Daily: &res, State: &view})
	}
}

func offerDoubleHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, s, ok := decodeAction(app, w, r)
		if !ok {
			return
		}
		kind := OfferKind(strings.ToLower(req.Kind))
		if kind != OfferDaily && kind != OfferOffline {
			fail(w, "UNKNOWN_ITEM")
			return
		}
		credited, err := s.DoubleOffer(r.Context(), kind)
		if err != nil {
			fail(w, errorCode(err))
			return
		}
		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, Credited: credited, State: &view})
	}
}

func visibilityHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, s, ok := decodeAction(app, w, r)
		if !ok {
			return
		}
		earned, err := s.ApplyVisibility(VisibilityEvent(strings.ToLower(req.Event)))
		if err != nil {
			fail(w, errorCode(err))
			return
		}
		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, Credited: earned, State: &view})
	}
}

func screenHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, s, ok := decodeAction(app, w, r)
		if !ok {
			return
		}
		if err := s.SetScreen(Screen(strings.ToLower(req.Screen))); err != nil {
			fail(w, errorCode(err))
			return
		}
		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, State: &view})
	}
}

func settingsHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req SettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			fail(w, "INVALID_REQUEST")
			return
		}
		if !isValidPlayerID(req.PlayerID) {
			fail(w, "INVALID_PLAYER_ID")
			return
		}

		updates := map[string]string{}
		if req.Sound != nil {
			updates["sound"] = boolString(*req.Sound)
		}
		if req.Music != nil {
			updates["music"] = boolString(*req.Music)
		}
		if req.Lang != "" {
			updates["lang"] = req.Lang
		}

		s := app.registry.Get(r.Context(), req.PlayerID, "")
		prefs, err := s.ApplySettings(updates)
		if err != nil {
			fail(w, "INVALID_REQUEST")
			return
		}
		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, Prefs: &prefs, State: &view})
	}
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func authHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, s, ok := decodeAction(app, w, r)
		if !ok {
			return
		}
		res, err := s.SignIn(r.Context())
		if err != nil {
			app.logger.Printf("auth %s: %v", s.ID(), err)
			fail(w, "AUTH_FAILED")
			return
		}
		view := s.View(app.catalog)
		writeJSON(w, ActionResponse{OK: true, SignIn: &res, State: &view})
	}
}

// adResultHandler lets a client without a live stream report the outcome
// of an ad the relay platform asked it to show.
func adResultHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req AdResultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequestID == "" {
			fail(w, "INVALID_REQUEST")
			return
		}
		if !isValidPlayerID(req.PlayerID) {
			fail(w, "INVALID_PLAYER_ID")
			return
		}
		if app.resolver == nil || !app.resolver.ResolveAd(req.PlayerID, req.RequestID, AdResult{
			Shown:    req.Shown,
			Rewarded: req.Rewarded,
			Reason:   req.Reason,
		}) {
			fail(w, "NO_PENDING_AD")
			return
		}
		writeJSON(w, SimpleResponse{OK: true})
	}
}

func i18nHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lang := app.catalog.MatchLanguage(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
		writeJSON(w, I18nResponse{OK: true, Lang: lang, Messages: app.catalog.Messages(lang)})
	}
}
