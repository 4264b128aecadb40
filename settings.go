package main

import (
	"fmt"
	"strconv"
	"strings"
)

type Preferences struct {
	AudioEnabled bool   `json:"audioEnabled"`
	MusicEnabled bool   `json:"musicEnabled"`
	Lang         string `json:"lang"`
}

func (s *Session) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferencesLocked()
}

func (s *Session) preferencesLocked() Preferences {
	return Preferences{
		AudioEnabled: s.state.AudioEnabled,
		MusicEnabled: s.state.MusicEnabled,
		Lang:         s.state.Lang,
	}
}

// ApplySettings updates player preferences from string key/value pairs.
// Unknown keys and unparsable values are rejected before anything changes.
func (s *Session) ApplySettings(updates map[string]string) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	for key, value := range updates {
		if err := applySetting(&next, key, value); err != nil {
			return s.preferencesLocked(), err
		}
	}
	s.state.AudioEnabled = next.AudioEnabled
	s.state.MusicEnabled = next.MusicEnabled
	s.state.Lang = next.Lang
	s.lastSeen = s.now()
	s.requestSaveLocked()
	return s.preferencesLocked(), nil
}

func (s *Session) ToggleSound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AudioEnabled = !s.state.AudioEnabled
	s.requestSaveLocked()
	return s.state.AudioEnabled
}

func (s *Session) ToggleMusic() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MusicEnabled = !s.state.MusicEnabled
	s.requestSaveLocked()
	return s.state.MusicEnabled
}

// ToggleLanguage flips between the two supported languages.
func (s *Session) ToggleLanguage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Lang == "ru" {
		s.state.Lang = "en"
	} else {
		s.state.Lang = "ru"
	}
	s.requestSaveLocked()
	return s.state.Lang
}

func applySetting(target *GameState, key string, value string) error {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "sound", "audio":
		v, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
		target.AudioEnabled = v
	case "music":
		v, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
		target.MusicEnabled = v
	case "lang", "language":
		lang := strings.ToLower(strings.TrimSpace(value))
		if lang != "en" && lang != "ru" {
			return fmt.Errorf("setting %s: unsupported language %q", key, value)
		}
		target.Lang = lang
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, strconv.ErrSyntax
	}
}
