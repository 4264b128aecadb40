package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type streamClientMsg struct {
	Type      string `json:"type"`
	Event     string `json:"event,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Shown     bool   `json:"shown,omitempty"`
	Rewarded  bool   `json:"rewarded,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type streamStateMsg struct {
	Type  string    `json:"type"`
	State StateView `json:"state"`
}

type streamErrorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type streamClient struct {
	out chan []byte
}

// StreamHub keeps the open websocket streams per player. It pushes state
// frames and relays ad requests to the player's client.
type StreamHub struct {
	app      *App
	interval time.Duration
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[string]map[*streamClient]struct{}
	resolver adResolver
}

func NewStreamHub(app *App, interval time.Duration, logger *log.Logger) *StreamHub {
	if logger == nil {
		logger = log.Default()
	}
	return &StreamHub{
		app:      app,
		interval: interval,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: map[string]map[*streamClient]struct{}{},
	}
}

// SetAdResolver routes ad_result messages to the relay platform.
func (h *StreamHub) SetAdResolver(r adResolver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resolver = r
}

// PublishAdRequest hands an ad request to one connected client of the
// player. It reports false when no client could take it.
func (h *StreamHub) PublishAdRequest(playerID string, req AdRequest) bool {
	b, err := json.Marshal(req)
	if err != nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[playerID] {
		select {
		case c.out <- b:
			return true
		default:
		}
	}
	return false
}

func (h *StreamHub) Connected(playerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[playerID])
}

func (h *StreamHub) add(playerID string, c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[playerID]
	if set == nil {
		set = map[*streamClient]struct{}{}
		h.clients[playerID] = set
	}
	set[c] = struct{}{}
}

// remove drops a client and reports whether it was the player's last.
func (h *StreamHub) remove(playerID string, c *streamClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[playerID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, playerID)
		return true
	}
	return false
}

func (h *StreamHub) currentResolver() adResolver {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resolver
}

func (h *StreamHub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		playerID := r.URL.Query().Get("playerId")
		if !isValidPlayerID(playerID) {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		lang := h.app.catalog.MatchLanguage(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
		s := h.app.registry.Get(r.Context(), playerID, lang)
		if _, err := s.ApplyVisibility(EventShow); err != nil {
			h.logger.Printf("stream %s: show: %v", playerID, err)
		}

		client := &streamClient{out: make(chan []byte, 16)}
		h.add(playerID, client)
		defer func() {
			if h.remove(playerID, client) {
				if _, err := s.ApplyVisibility(EventHide); err != nil {
					h.logger.Printf("stream %s: hide: %v", playerID, err)
				}
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-client.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// State pusher.
		go func() {
			ticker := time.NewTicker(h.interval)
			defer ticker.Stop()
			h.pushState(client, s)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					// An open stream keeps the session alive.
					s.touch()
					h.pushState(client, s)
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			var in streamClientMsg
			if err := json.Unmarshal(msg, &in); err != nil {
				continue
			}
			s.touch()
			if code := h.handleMessage(s, in); code != "" {
				h.send(client, streamErrorMsg{Type: "error", Error: code})
				continue
			}
			h.pushState(client, s)
		}
	}
}

// handleMessage applies one client message and returns an error code, or
// "" on success.
func (h *StreamHub) handleMessage(s *Session, in streamClientMsg) string {
	switch strings.ToLower(in.Type) {
	case "tap":
		if _, err := s.Tap(); err != nil {
			return errorCode(err)
		}
	case "visibility":
		if _, err := s.ApplyVisibility(VisibilityEvent(strings.ToLower(in.Event))); err != nil {
			return errorCode(err)
		}
	case "ad_result":
		resolver := h.currentResolver()
		if resolver == nil || !resolver.ResolveAd(s.ID(), in.RequestID, AdResult{Shown: in.Shown, Rewarded: in.Rewarded, Reason: in.Reason}) {
			return "NO_PENDING_AD"
		}
	case "toggle_sound":
		s.ToggleSound()
	case "toggle_music":
		s.ToggleMusic()
	case "toggle_lang":
		s.ToggleLanguage()
	default:
		return "UNKNOWN_EVENT"
	}
	return ""
}

func (h *StreamHub) pushState(c *streamClient, s *Session) {
	h.send(c, streamStateMsg{Type: "state", State: s.View(h.app.catalog)})
}

// send drops the frame when the client is not keeping up.
func (h *StreamHub) send(c *streamClient, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("stream: encode: %v", err)
		return
	}
	select {
	case c.out <- b:
	default:
	}
}
