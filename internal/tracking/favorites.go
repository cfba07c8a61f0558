package tracking

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	apperrors "ecos-terminal/internal/errors"
	"ecos-terminal/internal/logging"
	"ecos-terminal/internal/stream"
)

// Favorites is the user's starred-symbol set, kept in insertion order.
// Symbols are stored as passed, so "GARAN" and "GARAN.IS" are distinct.
type Favorites struct {
	prefs  Persister
	hub    *stream.Hub
	logger zerolog.Logger

	mu       sync.Mutex
	username string
	symbols  []string
}

// NewFavorites creates an empty favorites set. hub may be nil.
func NewFavorites(prefs Persister, hub *stream.Hub, logger zerolog.Logger) *Favorites {
	return &Favorites{
		prefs:  prefs,
		hub:    hub,
		logger: logging.WithComponent(logger, "favorites"),
	}
}

// Load installs username's stored set without persisting.
func (f *Favorites) Load(username string, symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.username = username
	f.symbols = f.symbols[:0]
	for _, s := range symbols {
		if s != "" && indexOf(f.symbols, s) < 0 {
			f.symbols = append(f.symbols, s)
		}
	}
}

// Toggle adds symbol if absent, removes it otherwise, and reports whether
// it is now a favorite.
func (f *Favorites) Toggle(ctx context.Context, symbol string) (bool, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return false, apperrors.NewValidationError("symbol", symbol, "must not be empty")
	}

	f.mu.Lock()
	if err := requireUser(f.username); err != nil {
		f.mu.Unlock()
		return false, err
	}
	added := false
	if i := indexOf(f.symbols, symbol); i >= 0 {
		f.symbols = append(f.symbols[:i:i], f.symbols[i+1:]...)
	} else {
		f.symbols = append(f.symbols, symbol)
		added = true
	}
	username := f.username
	out := append([]string(nil), f.symbols...)
	f.mu.Unlock()

	publish(f.hub, stream.KindFavorites)

	if err := f.prefs.SaveFavorites(ctx, username, out); err != nil {
		f.logger.Error().Err(err).Str("username", username).Msg("Failed to persist favorites")
		return added, apperrors.Wrap(err, "saving favorites")
	}
	return added, nil
}

// Contains reports whether symbol is a favorite.
func (f *Favorites) Contains(symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return indexOf(f.symbols, symbol) >= 0
}

// List returns the favorites in insertion order.
func (f *Favorites) List() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.symbols...)
}
