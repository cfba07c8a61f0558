// Package paging loads the stock listing page by page and merges the pages
// into one deduplicated list.
package paging

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"ecos-terminal/internal/api"
	apperrors "ecos-terminal/internal/errors"
	"ecos-terminal/internal/logging"
	"ecos-terminal/internal/models"
	"ecos-terminal/internal/stream"
)

// DefaultPageSize is the number of stocks requested per page.
const DefaultPageSize = 20

// Source serves pages of the stock listing.
type Source interface {
	Stocks(ctx context.Context, q api.StockQuery) (api.StockPage, error)
}

// Snapshot is a read-only copy of the engine state.
type Snapshot struct {
	Stocks  []models.Stock
	Page    int
	HasMore bool
	Loading bool
	Filter  []string
}

// Engine owns the StockList, the page cursor and the has-more flag.
//
// Every Reset bumps a generation; a load stamped with an older generation
// is discarded on arrival, so a slow page from a previous filter can never
// land in the list built for the current one.
type Engine struct {
	source   Source
	pageSize int
	hub      *stream.Hub
	logger   zerolog.Logger

	mu         sync.Mutex
	list       *StockList
	page       int
	hasMore    bool
	loading    bool
	loaded     bool
	filter     []string
	generation uint64
}

// NewEngine creates an engine. hub may be nil.
func NewEngine(source Source, pageSize int, hub *stream.Hub, logger zerolog.Logger) *Engine {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Engine{
		source:   source,
		pageSize: pageSize,
		hub:      hub,
		logger:   logging.WithComponent(logger, "paging"),
		list:     NewStockList(),
		page:     1,
		hasMore:  true,
	}
}

type ticket struct {
	page   int
	gen    uint64
	filter []string
}

// claim checks the load preconditions and marks a load in flight. page 0
// selects the next page.
func (e *Engine) claim(page int) (ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loading {
		return ticket{}, apperrors.ErrLoadInFlight
	}
	if page == 0 {
		page = 1
		if e.loaded {
			page = e.page + 1
		}
	}
	if page > 1 && !e.hasMore {
		return ticket{}, apperrors.ErrNoMorePages
	}

	e.loading = true
	return ticket{page: page, gen: e.generation, filter: append([]string(nil), e.filter...)}, nil
}

// LoadPage fetches page and applies it: page 1 replaces the list, later
// pages are merged. On failure the list and cursor are unchanged.
func (e *Engine) LoadPage(ctx context.Context, page int) error {
	if page < 1 {
		return apperrors.NewValidationError("page", page, "must be >= 1")
	}
	t, err := e.claim(page)
	if err != nil {
		return err
	}
	return e.run(ctx, t)
}

// LoadNext loads the page after the cursor, or page 1 if nothing has been
// loaded since the last reset.
func (e *Engine) LoadNext(ctx context.Context) error {
	t, err := e.claim(0)
	if err != nil {
		return err
	}
	return e.run(ctx, t)
}

func (e *Engine) run(ctx context.Context, t ticket) error {
	defer func() {
		e.mu.Lock()
		if e.generation == t.gen {
			e.loading = false
		}
		e.mu.Unlock()
	}()

	resp, err := e.source.Stocks(ctx, api.StockQuery{
		Page:    t.page,
		Limit:   e.pageSize,
		Symbols: t.filter,
	})
	if err != nil {
		e.logger.Warn().Err(err).Int("page", t.page).Msg("Stock page load failed")
		e.publish(stream.Event{Kind: stream.KindError, Detail: fmt.Sprintf("load page %d", t.page), Err: err})
		return apperrors.Wrapf(err, "loading page %d", t.page)
	}

	hasMore := len(resp.Items) >= e.pageSize
	if resp.HasMore != nil {
		hasMore = *resp.HasMore
	}

	e.mu.Lock()
	if e.generation != t.gen {
		e.mu.Unlock()
		e.logger.Debug().Int("page", t.page).Msg("Discarding page for superseded filter")
		return nil
	}
	if t.page == 1 {
		e.list.Replace(resp.Items)
	} else {
		e.list.Merge(resp.Items)
	}
	e.page = t.page
	e.hasMore = hasMore
	e.loaded = true
	total := e.list.Len()
	e.mu.Unlock()

	logging.LogPageLoad(e.logger, t.page, len(resp.Items), total, hasMore)
	e.publish(stream.Event{Kind: stream.KindStocks})
	return nil
}

// Reset installs a new symbol filter: cursor 1, HasMore true, list empty.
// Any load still in flight is superseded.
func (e *Engine) Reset(filter []string) {
	e.mu.Lock()
	e.generation++
	e.list.Clear()
	e.page = 1
	e.hasMore = true
	e.loading = false
	e.loaded = false
	e.filter = append([]string(nil), filter...)
	e.mu.Unlock()

	e.publish(stream.Event{Kind: stream.KindStocks})
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Stocks:  e.list.Items(),
		Page:    e.page,
		HasMore: e.hasMore,
		Loading: e.loading,
		Filter:  append([]string(nil), e.filter...),
	}
}

// Stock returns the loaded stock for symbol.
func (e *Engine) Stock(symbol string) (models.Stock, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.list.Get(symbol)
}

// PageSize returns the number of stocks requested per page.
func (e *Engine) PageSize() int {
	return e.pageSize
}

func (e *Engine) publish(ev stream.Event) {
	if e.hub != nil {
		e.hub.Publish(ev)
	}
}
