package tracking

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	apperrors "ecos-terminal/internal/errors"
	"ecos-terminal/internal/logging"
	"ecos-terminal/internal/stream"
)

// Controller owns the tracked-symbol list: normalized, most recently
// searched first, at most MaxSymbols long. Every mutation resets the
// engine with the new filter and persists the list for the active user.
type Controller struct {
	prefs     Persister
	engine    Resetter
	hub       *stream.Hub
	logger    zerolog.Logger
	max       int
	normalize func(string) string

	mu       sync.Mutex
	username string
	symbols  []string
}

// NewController creates a controller. hub may be nil.
func NewController(prefs Persister, engine Resetter, opts Options, hub *stream.Hub, logger zerolog.Logger) *Controller {
	if opts.MaxSymbols <= 0 {
		opts.MaxSymbols = DefaultMaxSymbols
	}
	return &Controller{
		prefs:     prefs,
		engine:    engine,
		hub:       hub,
		logger:    logging.WithComponent(logger, "tracking"),
		max:       opts.MaxSymbols,
		normalize: normalizer(opts.Suffixes),
	}
}

// Load installs username's stored list without persisting or resetting.
// Stored entries are normalized, deduplicated and truncated.
func (c *Controller) Load(username string, symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.username = username
	c.symbols = c.symbols[:0]
	for _, raw := range symbols {
		sym := c.normalize(raw)
		if sym == "" || indexOf(c.symbols, sym) >= 0 {
			continue
		}
		c.symbols = append(c.symbols, sym)
		if len(c.symbols) == c.max {
			break
		}
	}
}

// Normalize upper-cases raw and strips a known exchange suffix.
func (c *Controller) Normalize(raw string) string {
	return c.normalize(raw)
}

// Symbols returns a copy of the tracked list.
func (c *Controller) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.symbols...)
}

// Add moves raw to the front of the list, inserting it if absent, and
// drops entries beyond the limit.
func (c *Controller) Add(ctx context.Context, raw string) ([]string, error) {
	sym := c.normalize(raw)
	if sym == "" {
		return nil, apperrors.NewValidationError("symbol", raw, "must not be empty")
	}
	return c.mutate(ctx, func(cur []string) []string {
		next := make([]string, 0, len(cur)+1)
		next = append(next, sym)
		for _, s := range cur {
			if s != sym {
				next = append(next, s)
			}
		}
		if len(next) > c.max {
			next = next[:c.max]
		}
		return next
	})
}

// Remove drops raw from the list. Removing an absent symbol still resets
// and persists.
func (c *Controller) Remove(ctx context.Context, raw string) ([]string, error) {
	sym := c.normalize(raw)
	if sym == "" {
		return nil, apperrors.NewValidationError("symbol", raw, "must not be empty")
	}
	return c.mutate(ctx, func(cur []string) []string {
		next := make([]string, 0, len(cur))
		for _, s := range cur {
			if s != sym {
				next = append(next, s)
			}
		}
		return next
	})
}

// Clear empties the list.
func (c *Controller) Clear(ctx context.Context) error {
	_, err := c.mutate(ctx, func([]string) []string { return []string{} })
	return err
}

// mutate computes the new list, installs it, resets the engine and writes
// the whole list. A failed write keeps the in-memory list.
func (c *Controller) mutate(ctx context.Context, fn func([]string) []string) ([]string, error) {
	c.mu.Lock()
	if err := requireUser(c.username); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	next := fn(c.symbols)
	c.symbols = next
	username := c.username
	out := append([]string(nil), next...)
	c.mu.Unlock()

	if c.engine != nil {
		c.engine.Reset(out)
	}
	publish(c.hub, stream.KindTracked)

	if err := c.prefs.SaveTracked(ctx, username, out); err != nil {
		c.logger.Error().Err(err).Str("username", username).Msg("Failed to persist tracked symbols")
		return out, apperrors.Wrap(err, "saving tracked symbols")
	}
	c.logger.Debug().Strs("symbols", out).Msg("Tracked symbols updated")
	return out, nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
