package preferences

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// Settings is the in-memory view of the stored preferences.
type Settings struct {
	store  Store
	logger *zap.Logger

	mu       sync.RWMutex
	darkMode bool
}

// NewSettings returns settings backed by store with every preference at
// its default.
func NewSettings(store Store, logger *zap.Logger) *Settings {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Settings{store: store, logger: logger}
}

// Load reads the stored values. A missing or unreadable value leaves the
// default in place.
func (s *Settings) Load(ctx context.Context) error {
	raw, ok, err := s.store.Load(ctx, KeyDarkMode)
	if err != nil {
		return fmt.Errorf("load %s: %w", KeyDarkMode, err)
	}
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.Warn("ignoring malformed preference",
			zap.String("key", KeyDarkMode),
			zap.String("value", raw))
		return nil
	}

	s.mu.Lock()
	s.darkMode = v
	s.mu.Unlock()
	return nil
}

// DarkMode reports the current dark mode flag
func (s *Settings) DarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.darkMode
}

// SetDarkMode updates the flag and persists it when it changed
func (s *Settings) SetDarkMode(ctx context.Context, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.darkMode == v {
		return nil
	}
	if err := s.store.Save(ctx, KeyDarkMode, strconv.FormatBool(v)); err != nil {
		return fmt.Errorf("save %s: %w", KeyDarkMode, err)
	}
	s.darkMode = v
	return nil
}

// Toggle flips dark mode and returns the new value
func (s *Settings) Toggle(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := !s.darkMode
	if err := s.store.Save(ctx, KeyDarkMode, strconv.FormatBool(next)); err != nil {
		return s.darkMode, fmt.Errorf("save %s: %w", KeyDarkMode, err)
	}
	s.darkMode = next
	return next, nil
}
