package paging

import (
	"context"

	"github.com/rs/zerolog"

	"ecos-terminal/internal/logging"
)

// Trigger turns sentinel visibility into next-page loads.
type Trigger struct {
	engine *Engine
	logger zerolog.Logger
}

// NewTrigger creates a trigger for engine.
func NewTrigger(engine *Engine, logger zerolog.Logger) *Trigger {
	return &Trigger{engine: engine, logger: logging.WithComponent(logger, "scroll")}
}

// Visible reports a visibility change of the end-of-list sentinel. It loads
// the next page only when the sentinel is fully visible, more pages exist
// and no load is in flight, and returns whether it issued a load. When it
// does, it blocks until the load completes; failures are published on the
// hub by the engine.
func (t *Trigger) Visible(ctx context.Context, fully bool) bool {
	if !fully {
		return false
	}
	tk, err := t.engine.claim(0)
	if err != nil {
		return false
	}
	if err := t.engine.run(ctx, tk); err != nil {
		t.logger.Debug().Err(err).Int("page", tk.page).Msg("Scroll load failed")
	}
	return true
}
