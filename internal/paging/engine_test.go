package paging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"ecos-terminal/internal/api"
	apperrors "ecos-terminal/internal/errors"
	"ecos-terminal/internal/models"
	"ecos-terminal/internal/stream"
)

// fakeSource serves canned pages. When gate is set, Stocks signals started
// and then blocks until gate yields.
type fakeSource struct {
	mu      sync.Mutex
	pages   map[int]api.StockPage
	err     error
	calls   []api.StockQuery
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeSource) Stocks(ctx context.Context, q api.StockQuery) (api.StockPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	page, err, gate, started := f.pages[q.Page], f.err, f.gate, f.started
	f.mu.Unlock()

	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		<-gate
	}
	if err != nil {
		return api.StockPage{}, err
	}
	return page, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func stocks(symbols ...string) []models.Stock {
	out := make([]models.Stock, len(symbols))
	for i, s := range symbols {
		out[i] = models.Stock{Symbol: s, Name: s}
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func symbolsOf(list []models.Stock) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Symbol
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Property: for any sequence of page loads over overlapping pages, the
// list never holds two stocks with the same symbol.
func TestProperty_MergedListHasNoDuplicates(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	universe := []string{"THYAO", "GARAN", "AKBNK", "ASELS", "BIMAS", "EREGL", "KCHOL", "SISE"}

	properties.Property("no duplicate symbols after any load sequence", prop.ForAll(
		func(pageSymbols [][]int, order []int) bool {
			src := &fakeSource{pages: make(map[int]api.StockPage)}
			for i, idxs := range pageSymbols {
				var syms []string
				for _, j := range idxs {
					syms = append(syms, universe[j])
				}
				src.pages[i+1] = api.StockPage{Items: stocks(syms...), HasMore: boolPtr(true)}
			}

			e := NewEngine(src, 5, nil, zerolog.Nop())
			for _, o := range order {
				page := o%len(pageSymbols) + 1
				if err := e.LoadPage(context.Background(), page); err != nil {
					return false
				}
			}

			seen := make(map[string]bool)
			for _, s := range e.Snapshot().Stocks {
				if seen[s.Symbol] {
					return false
				}
				seen[s.Symbol] = true
			}
			return true
		},
		gen.SliceOfN(4, gen.SliceOf(gen.IntRange(0, len(universe)-1))),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}

func TestEngine_HasMoreInference(t *testing.T) {
	tests := []struct {
		name string
		page api.StockPage
		want bool
	}{
		{"full page without flag", api.StockPage{Items: stocks("A", "B", "C")}, true},
		{"short page without flag", api.StockPage{Items: stocks("A", "B")}, false},
		{"empty page without flag", api.StockPage{Items: stocks()}, false},
		{"full page explicit false", api.StockPage{Items: stocks("A", "B", "C"), HasMore: boolPtr(false)}, false},
		{"short page explicit true", api.StockPage{Items: stocks("A"), HasMore: boolPtr(true)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{pages: map[int]api.StockPage{1: tt.page}}
			e := NewEngine(src, 3, nil, zerolog.Nop())
			if err := e.LoadPage(context.Background(), 1); err != nil {
				t.Fatal(err)
			}
			if got := e.Snapshot().HasMore; got != tt.want {
				t.Errorf("HasMore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngine_PageOneReplacesLaterPagesMerge(t *testing.T) {
	src := &fakeSource{pages: map[int]api.StockPage{
		1: {Items: stocks("THYAO", "GARAN")},
		2: {Items: stocks("GARAN", "AKBNK")},
	}}
	e := NewEngine(src, 2, nil, zerolog.Nop())
	ctx := context.Background()

	if err := e.LoadPage(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadPage(ctx, 2); err != nil {
		t.Fatal(err)
	}
	snap := e.Snapshot()
	if got := symbolsOf(snap.Stocks); !equal(got, []string{"THYAO", "GARAN", "AKBNK"}) {
		t.Errorf("after merge = %v", got)
	}
	if snap.Page != 2 {
		t.Errorf("Page = %d, want 2", snap.Page)
	}

	src.mu.Lock()
	src.pages[1] = api.StockPage{Items: stocks("ASELS")}
	src.mu.Unlock()
	if err := e.LoadPage(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if got := symbolsOf(e.Snapshot().Stocks); !equal(got, []string{"ASELS"}) {
		t.Errorf("page 1 did not replace: %v", got)
	}
}

func TestEngine_FailureLeavesStateUnchanged(t *testing.T) {
	src := &fakeSource{pages: map[int]api.StockPage{1: {Items: stocks("THYAO", "GARAN")}}}
	hub := stream.NewHub()
	defer hub.Stop()
	errs := hub.Subscribe(stream.KindError)

	e := NewEngine(src, 2, hub, zerolog.Nop())
	ctx := context.Background()
	if err := e.LoadPage(ctx, 1); err != nil {
		t.Fatal(err)
	}

	src.mu.Lock()
	src.err = apperrors.ErrConnectionFailed
	src.mu.Unlock()

	err := e.LoadPage(ctx, 2)
	if !errors.Is(err, apperrors.ErrConnectionFailed) {
		t.Fatalf("err = %v, want ErrConnectionFailed", err)
	}
	snap := e.Snapshot()
	if snap.Page != 1 || snap.Loading || len(snap.Stocks) != 2 {
		t.Errorf("state changed after failure: %+v", snap)
	}

	select {
	case ev := <-errs.C:
		if !errors.Is(ev.Err, apperrors.ErrConnectionFailed) {
			t.Errorf("error event carries %v", ev.Err)
		}
	default:
		t.Error("no error event published")
	}
}

func TestEngine_RejectsOverlappingLoads(t *testing.T) {
	src := &fakeSource{
		pages:   map[int]api.StockPage{1: {Items: stocks("THYAO")}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	e := NewEngine(src, 20, nil, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- e.LoadPage(context.Background(), 1) }()
	<-src.started

	if !e.Snapshot().Loading {
		t.Error("Loading = false while a load is in flight")
	}
	if err := e.LoadPage(context.Background(), 1); !errors.Is(err, apperrors.ErrLoadInFlight) {
		t.Errorf("second load err = %v, want ErrLoadInFlight", err)
	}

	close(src.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if n := src.callCount(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
}

func TestEngine_NoMorePagesFreezesCursor(t *testing.T) {
	src := &fakeSource{pages: map[int]api.StockPage{1: {Items: stocks("THYAO"), HasMore: boolPtr(false)}}}
	e := NewEngine(src, 20, nil, zerolog.Nop())
	ctx := context.Background()

	if err := e.LoadPage(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadNext(ctx); !errors.Is(err, apperrors.ErrNoMorePages) {
		t.Errorf("LoadNext err = %v, want ErrNoMorePages", err)
	}
	if e.Snapshot().Page != 1 {
		t.Errorf("Page advanced past the end")
	}

	e.Reset([]string{"GARAN"})
	snap := e.Snapshot()
	if snap.Page != 1 || !snap.HasMore || len(snap.Stocks) != 0 {
		t.Errorf("after Reset = %+v", snap)
	}
	if err := e.LoadNext(ctx); err != nil {
		t.Errorf("LoadNext after reset: %v", err)
	}
	src.mu.Lock()
	last := src.calls[len(src.calls)-1]
	src.mu.Unlock()
	if last.Page != 1 || !equal(last.Symbols, []string{"GARAN"}) {
		t.Errorf("query after reset = %+v", last)
	}
}

func TestEngine_ResetDiscardsInFlightPage(t *testing.T) {
	src := &fakeSource{
		pages:   map[int]api.StockPage{1: {Items: stocks("OLD1", "OLD2")}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	e := NewEngine(src, 20, nil, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- e.LoadPage(context.Background(), 1) }()
	<-src.started

	e.Reset([]string{"THYAO"})
	close(src.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	snap := e.Snapshot()
	if len(snap.Stocks) != 0 {
		t.Errorf("stale page applied after reset: %v", symbolsOf(snap.Stocks))
	}
	if snap.Loading {
		t.Error("Loading still set")
	}
}

func TestEngine_InvalidPage(t *testing.T) {
	e := NewEngine(&fakeSource{}, 20, nil, zerolog.Nop())
	if err := e.LoadPage(context.Background(), 0); !errors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestEngine_SkipsRowsWithoutSymbol(t *testing.T) {
	items := append(stocks("THYAO"), models.Stock{Name: "broken"})
	src := &fakeSource{pages: map[int]api.StockPage{1: {Items: items}}}
	e := NewEngine(src, 20, nil, zerolog.Nop())
	if err := e.LoadPage(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if got := symbolsOf(e.Snapshot().Stocks); !equal(got, []string{"THYAO"}) {
		t.Errorf("Stocks = %v", got)
	}
}

func TestTrigger_Visible(t *testing.T) {
	src := &fakeSource{pages: make(map[int]api.StockPage)}
	for p := 1; p <= 3; p++ {
		src.pages[p] = api.StockPage{Items: stocks(fmt.Sprintf("P%dA", p), fmt.Sprintf("P%dB", p))}
	}
	src.pages[3] = api.StockPage{Items: stocks("P3A")}

	e := NewEngine(src, 2, nil, zerolog.Nop())
	tr := NewTrigger(e, zerolog.Nop())
	ctx := context.Background()

	if tr.Visible(ctx, false) {
		t.Error("partially visible sentinel issued a load")
	}
	for want := 1; want <= 3; want++ {
		if !tr.Visible(ctx, true) {
			t.Fatalf("load %d not issued", want)
		}
		if got := e.Snapshot().Page; got != want {
			t.Errorf("Page = %d, want %d", got, want)
		}
	}
	if tr.Visible(ctx, true) {
		t.Error("load issued after the last page")
	}
	if n := len(e.Snapshot().Stocks); n != 5 {
		t.Errorf("len = %d, want 5", n)
	}
}

func TestTrigger_OverlappingSignalsIssueOneLoad(t *testing.T) {
	src := &fakeSource{
		pages:   map[int]api.StockPage{1: {Items: stocks("THYAO")}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 8),
	}
	e := NewEngine(src, 20, nil, zerolog.Nop())
	tr := NewTrigger(e, zerolog.Nop())

	first := make(chan bool, 1)
	go func() { first <- tr.Visible(context.Background(), true) }()
	<-src.started

	for i := 0; i < 5; i++ {
		if tr.Visible(context.Background(), true) {
			t.Errorf("overlapping signal %d issued a load", i)
		}
	}
	close(src.gate)
	if !<-first {
		t.Error("first signal did not issue a load")
	}
	if n := src.callCount(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
}

func TestStockList_FirstOccurrenceWins(t *testing.T) {
	l := NewStockList()
	a := models.Stock{Symbol: "THYAO", Name: "first"}
	b := models.Stock{Symbol: "THYAO", Name: "second"}
	if n := l.Merge([]models.Stock{a, b}); n != 1 {
		t.Errorf("Merge added %d, want 1", n)
	}
	got, ok := l.Get("THYAO")
	if !ok || got.Name != "first" {
		t.Errorf("Get = %+v, %v", got, ok)
	}
}
