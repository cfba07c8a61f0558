// Package tracking maintains the user's tracked-symbol list and favorites.
package tracking

import (
	"context"

	"ecos-terminal/internal/config"
	apperrors "ecos-terminal/internal/errors"
	"ecos-terminal/internal/models"
	"ecos-terminal/internal/stream"
)

// DefaultMaxSymbols bounds the tracked list.
const DefaultMaxSymbols = 20

// Persister writes preference lists for a user.
type Persister interface {
	SaveTracked(ctx context.Context, username string, symbols []string) error
	SaveFavorites(ctx context.Context, username string, symbols []string) error
}

// Resetter re-synchronizes a stock listing against a new symbol filter.
type Resetter interface {
	Reset(filter []string)
}

func publish(hub *stream.Hub, kind stream.Kind) {
	if hub != nil {
		hub.Publish(stream.Event{Kind: kind})
	}
}

// normalizer returns a symbol normalizer for suffixes, falling back to the
// default suffixes.
func normalizer(suffixes []string) func(string) string {
	if len(suffixes) == 0 {
		suffixes = models.DefaultExchangeSuffixes
	}
	return func(raw string) string {
		return models.NormalizeSymbol(raw, suffixes)
	}
}

func requireUser(username string) error {
	if username == "" {
		return apperrors.ErrNotAuthenticated
	}
	return nil
}

// Options configures a Controller.
type Options struct {
	MaxSymbols int
	Suffixes   []string
}

// OptionsFromConfig builds Options from the tracking config section.
func OptionsFromConfig(cfg config.TrackingConfig) Options {
	return Options{MaxSymbols: cfg.MaxSymbols, Suffixes: cfg.ExchangeSuffixes}
}
