package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

type TelemetryEvent struct {
	At        string          `json:"at"`
	Source    string          `json:"source"`
	PlayerID  string          `json:"playerId,omitempty"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventRecorder receives gameplay events. Recording never fails the caller.
type EventRecorder interface {
	Record(playerID string, eventType string, payload map[string]interface{})
}

type nopRecorder struct{}

func (nopRecorder) Record(string, string, map[string]interface{}) {}

// TelemetryLog appends events as JSON lines to hourly zstd files.
type TelemetryLog struct {
	baseDir string
	logger  *log.Logger
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewTelemetryLog(baseDir string, logger *log.Logger) *TelemetryLog {
	if logger == nil {
		logger = log.Default()
	}
	return &TelemetryLog{baseDir: baseDir, logger: logger, now: time.Now}
}

func (t *TelemetryLog) Record(playerID string, eventType string, payload map[string]interface{}) {
	var raw json.RawMessage
	if len(payload) > 0 {
		b, err := json.Marshal(payload)
		if err != nil {
			t.logger.Printf("telemetry: encode %s: %v", eventType, err)
			return
		}
		raw = b
	}
	t.write(TelemetryEvent{
		Source:    "server",
		PlayerID:  playerID,
		EventType: eventType,
		Payload:   raw,
	})
}

func (t *TelemetryLog) write(ev TelemetryEvent) {
	if err := t.Write(ev); err != nil {
		t.logger.Printf("telemetry: %v", err)
	}
}

func (t *TelemetryLog) Write(ev TelemetryEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	if ev.At == "" {
		ev.At = now.Format(time.RFC3339Nano)
	}
	hour := now.Format("2006-01-02-15")
	if hour != t.curHour {
		if err := t.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := t.w.Write(b); err != nil {
		return err
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := t.w.Flush(); err != nil {
		return err
	}
	return t.enc.Flush()
}

func (t *TelemetryLog) pathForHour(hour string) string {
	return filepath.Join(t.baseDir, "events-"+hour+".jsonl.zst")
}

func (t *TelemetryLog) rotateLocked(hour string) error {
	if err := t.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(t.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(t.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	t.f = f
	t.enc = enc
	t.w = bufio.NewWriter(enc)
	t.curHour = hour
	return nil
}

func (t *TelemetryLog) closeLocked() error {
	if t.f == nil {
		return nil
	}
	var firstErr error
	if err := t.w.Flush(); err != nil {
		firstErr = err
	}
	if err := t.enc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := t.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	t.f, t.enc, t.w, t.curHour = nil, nil, nil, ""
	if firstErr != nil {
		return fmt.Errorf("close telemetry file: %w", firstErr)
	}
	return nil
}

func (t *TelemetryLog) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

type TelemetryEventRequest struct {
	PlayerID  string          `json:"playerId"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
}

type FeedbackRequest struct {
	PlayerID string          `json:"playerId"`
	Rating   int             `json:"rating,omitempty"`
	Message  string          `json:"message"`
	Context  json.RawMessage `json:"context,omitempty"`
}

func telemetryHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if app.telemetryLog == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var req TelemetryEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.EventType == "" || (req.PlayerID != "" && !isValidPlayerID(req.PlayerID)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		app.telemetryLog.write(TelemetryEvent{
			Source:    "client",
			PlayerID:  req.PlayerID,
			EventType: req.EventType,
			Payload:   req.Payload,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func feedbackHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if app.telemetryLog == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var req FeedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Message == "" || (req.PlayerID != "" && !isValidPlayerID(req.PlayerID)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		payload, err := json.Marshal(map[string]interface{}{
			"rating":  req.Rating,
			"message": req.Message,
			"context": req.Context,
		})
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		app.telemetryLog.write(TelemetryEvent{
			Source:    "client",
			PlayerID:  req.PlayerID,
			EventType: "feedback",
			Payload:   payload,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}
