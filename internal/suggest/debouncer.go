// Package suggest turns search-box keystrokes into debounced suggestion
// queries.
package suggest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ecos-terminal/internal/config"
	"ecos-terminal/internal/logging"
	"ecos-terminal/internal/models"
	"ecos-terminal/internal/stream"
)

// Defaults for the quiet period and the shortest query sent.
const (
	DefaultQuietPeriod    = 300 * time.Millisecond
	DefaultMinQueryLength = 2
)

// Source answers suggestion queries.
type Source interface {
	Suggestions(ctx context.Context, q string) ([]models.Suggestion, error)
}

// Debouncer issues one suggestion request per burst of keystrokes, for the
// last query of the burst. Every query change bumps a generation; a response
// is applied only if its generation is still current.
type Debouncer struct {
	source Source
	quiet  time.Duration
	minLen int
	hub    *stream.Hub
	logger zerolog.Logger

	mu          sync.Mutex
	generation  uint64
	timer       *time.Timer
	cancel      context.CancelFunc
	query       string
	suggestions []models.Suggestion
}

// NewDebouncer creates a debouncer. hub may be nil.
func NewDebouncer(source Source, cfg config.SearchConfig, hub *stream.Hub, logger zerolog.Logger) *Debouncer {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultQuietPeriod
	}
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = DefaultMinQueryLength
	}
	return &Debouncer{
		source:      source,
		quiet:       cfg.Debounce,
		minLen:      cfg.MinQueryLength,
		hub:         hub,
		logger:      logging.WithComponent(logger, "suggest"),
		suggestions: []models.Suggestion{},
	}
}

// OnQueryChange reacts to the search text changing. Queries shorter than
// the minimum clear the suggestions at once; longer ones are sent after
// the quiet period unless another change arrives first.
func (d *Debouncer) OnQueryChange(text string) {
	q := strings.TrimSpace(text)

	d.mu.Lock()
	d.generation++
	gen := d.generation
	d.stopPendingLocked()
	d.query = q

	if len([]rune(q)) < d.minLen {
		cleared := len(d.suggestions) > 0
		d.suggestions = []models.Suggestion{}
		d.mu.Unlock()
		if cleared {
			d.publish()
		}
		return
	}

	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen, q) })
	d.mu.Unlock()
}

func (d *Debouncer) fire(gen uint64, q string) {
	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	results, err := d.source.Suggestions(ctx, q)

	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		d.logger.Debug().Str("query", q).Msg("Discarding superseded suggestions")
		return
	}
	d.cancel = nil
	if err != nil {
		d.mu.Unlock()
		d.logger.Debug().Err(err).Str("query", q).Msg("Suggestion query failed")
		return
	}
	if results == nil {
		results = []models.Suggestion{}
	}
	d.suggestions = results
	d.mu.Unlock()

	d.publish()
}

// Suggestions returns the current suggestions.
func (d *Debouncer) Suggestions() []models.Suggestion {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.Suggestion, len(d.suggestions))
	copy(out, d.suggestions)
	return out
}

// Query returns the last query text seen.
func (d *Debouncer) Query() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.query
}

// Stop cancels any pending or in-flight query and clears the suggestions.
// The debouncer can be used again afterwards.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.generation++
	d.stopPendingLocked()
	d.query = ""
	d.suggestions = []models.Suggestion{}
	d.mu.Unlock()
}

func (d *Debouncer) stopPendingLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) publish() {
	if d.hub != nil {
		d.hub.Publish(stream.Event{Kind: stream.KindSuggestions})
	}
}
