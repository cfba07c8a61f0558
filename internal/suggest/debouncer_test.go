package suggest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ecos-terminal/internal/config"
	"ecos-terminal/internal/models"
	"ecos-terminal/internal/stream"
)

const testQuiet = 40 * time.Millisecond

type fakeSource struct {
	mu      sync.Mutex
	calls   []string
	block   map[string]chan struct{}
	started chan string
	err     error
}

func (f *fakeSource) Suggestions(ctx context.Context, q string) ([]models.Suggestion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	gate := f.block[q]
	err := f.err
	f.mu.Unlock()

	if f.started != nil {
		f.started <- q
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return []models.Suggestion{{Symbol: q + "-result", Name: q, Exchange: "BIST"}}, nil
}

func (f *fakeSource) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newDebouncer(src Source, hub *stream.Hub) *Debouncer {
	return NewDebouncer(src, config.SearchConfig{Debounce: testQuiet, MinQueryLength: 2}, hub, zerolog.Nop())
}

func waitEvent(t *testing.T, sub *stream.Subscriber) {
	t.Helper()
	select {
	case <-sub.C:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for suggestions event")
	}
}

func TestDebouncer_BurstIssuesOneCall(t *testing.T) {
	src := &fakeSource{}
	hub := stream.NewHub()
	defer hub.Stop()
	sub := hub.Subscribe(stream.KindSuggestions)

	d := newDebouncer(src, hub)
	d.OnQueryChange("th")
	d.OnQueryChange("thy")
	waitEvent(t, sub)

	time.Sleep(3 * testQuiet)
	if got := src.queries(); len(got) != 1 || got[0] != "thy" {
		t.Errorf("calls = %v, want [thy]", got)
	}
	if s := d.Suggestions(); len(s) != 1 || s[0].Symbol != "thy-result" {
		t.Errorf("Suggestions = %+v", s)
	}
}

func TestDebouncer_ShortQueryClearsWithoutRequest(t *testing.T) {
	src := &fakeSource{}
	hub := stream.NewHub()
	defer hub.Stop()
	sub := hub.Subscribe(stream.KindSuggestions)

	d := newDebouncer(src, hub)
	d.OnQueryChange("garan")
	waitEvent(t, sub)

	d.OnQueryChange(" g ")
	if s := d.Suggestions(); len(s) != 0 {
		t.Errorf("Suggestions after short query = %+v", s)
	}
	time.Sleep(3 * testQuiet)
	if got := src.queries(); len(got) != 1 {
		t.Errorf("calls = %v, want only the first query", got)
	}
}

func TestDebouncer_StaleResponseDiscarded(t *testing.T) {
	gate := make(chan struct{})
	src := &fakeSource{
		block:   map[string]chan struct{}{"th": gate},
		started: make(chan string, 4),
	}
	hub := stream.NewHub()
	defer hub.Stop()
	sub := hub.Subscribe(stream.KindSuggestions)

	d := newDebouncer(src, hub)
	d.OnQueryChange("th")
	if q := <-src.started; q != "th" {
		t.Fatalf("first request for %q", q)
	}

	d.OnQueryChange("thy")
	<-src.started
	waitEvent(t, sub)

	close(gate)
	time.Sleep(3 * testQuiet)

	if s := d.Suggestions(); len(s) != 1 || s[0].Symbol != "thy-result" {
		t.Errorf("Suggestions = %+v, want thy's", s)
	}
}

func TestDebouncer_FailureKeepsPrevious(t *testing.T) {
	src := &fakeSource{}
	hub := stream.NewHub()
	defer hub.Stop()
	sub := hub.Subscribe(stream.KindSuggestions)

	d := newDebouncer(src, hub)
	d.OnQueryChange("akbnk")
	waitEvent(t, sub)

	src.mu.Lock()
	src.err = errors.New("backend down")
	src.mu.Unlock()

	d.OnQueryChange("akbnk2")
	time.Sleep(4 * testQuiet)

	if s := d.Suggestions(); len(s) != 1 || s[0].Symbol != "akbnk-result" {
		t.Errorf("Suggestions = %+v, want previous result", s)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	src := &fakeSource{}
	d := newDebouncer(src, nil)

	d.OnQueryChange("thyao")
	d.Stop()
	time.Sleep(3 * testQuiet)

	if got := src.queries(); len(got) != 0 {
		t.Errorf("calls after Stop = %v", got)
	}
	if d.Query() != "" {
		t.Errorf("Query = %q after Stop", d.Query())
	}
}
