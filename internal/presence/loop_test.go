package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ecos-terminal/internal/config"
	"ecos-terminal/internal/resilience"
	"ecos-terminal/internal/stream"
)

type fakeSource struct {
	mu         sync.Mutex
	heartbeats []string
	rosterHits int
	roster     []string
	rosterErr  error
	beatErr    error
}

func (f *fakeSource) Heartbeat(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, username)
	return f.beatErr
}

func (f *fakeSource) OnlineUsers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rosterHits++
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return append([]string(nil), f.roster...), nil
}

func (f *fakeSource) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heartbeats), f.rosterHits
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoop_FiresImmediately(t *testing.T) {
	src := &fakeSource{roster: []string{"ayse", "mehmet"}}
	hub := stream.NewHub()
	defer hub.Stop()
	rosterEvents := hub.Subscribe(stream.KindRoster)

	l := NewLoop(src, config.PresenceConfig{HeartbeatInterval: time.Hour, RosterInterval: time.Hour}, nil, hub, zerolog.Nop())
	l.Start(context.Background(), "ayse")
	defer l.Stop()

	select {
	case <-rosterEvents.C:
	case <-time.After(2 * time.Second):
		t.Fatal("no roster event")
	}
	waitFor(t, func() bool { b, _ := src.counts(); return b == 1 })

	if got := l.Roster(); len(got) != 2 || got[0] != "ayse" {
		t.Errorf("Roster = %v", got)
	}
	src.mu.Lock()
	if src.heartbeats[0] != "ayse" {
		t.Errorf("heartbeat for %q", src.heartbeats[0])
	}
	src.mu.Unlock()
}

func TestLoop_NoCallsAfterStop(t *testing.T) {
	src := &fakeSource{roster: []string{"ayse"}}
	l := NewLoop(src, config.PresenceConfig{HeartbeatInterval: 10 * time.Millisecond, RosterInterval: 15 * time.Millisecond}, nil, nil, zerolog.Nop())

	l.Start(context.Background(), "ayse")
	waitFor(t, func() bool { b, r := src.counts(); return b >= 3 && r >= 3 })

	l.Stop()
	beats, hits := src.counts()
	time.Sleep(60 * time.Millisecond)

	if b, r := src.counts(); b != beats || r != hits {
		t.Errorf("calls after Stop: heartbeats %d->%d roster %d->%d", beats, b, hits, r)
	}
	if l.Running() {
		t.Error("Running after Stop")
	}
	if len(l.Roster()) != 0 {
		t.Errorf("Roster after Stop = %v", l.Roster())
	}
	l.Stop()
}

func TestLoop_RosterFailureKeepsPrevious(t *testing.T) {
	src := &fakeSource{roster: []string{"ayse", "zeynep"}}
	l := NewLoop(src, config.PresenceConfig{HeartbeatInterval: time.Hour, RosterInterval: 10 * time.Millisecond}, nil, nil, zerolog.Nop())
	l.Start(context.Background(), "ayse")
	defer l.Stop()

	waitFor(t, func() bool { return len(l.Roster()) == 2 })

	src.mu.Lock()
	src.rosterErr = errors.New("connection refused")
	src.mu.Unlock()

	_, before := src.counts()
	waitFor(t, func() bool { _, r := src.counts(); return r >= before+3 })

	if got := l.Roster(); len(got) != 2 {
		t.Errorf("Roster after failures = %v", got)
	}
}

func TestLoop_RestartSwitchesUser(t *testing.T) {
	src := &fakeSource{}
	l := NewLoop(src, config.PresenceConfig{HeartbeatInterval: time.Hour, RosterInterval: time.Hour}, nil, nil, zerolog.Nop())

	l.Start(context.Background(), "ayse")
	waitFor(t, func() bool { b, _ := src.counts(); return b == 1 })
	l.Start(context.Background(), "mehmet")
	waitFor(t, func() bool { b, _ := src.counts(); return b == 2 })
	l.Stop()

	src.mu.Lock()
	defer src.mu.Unlock()
	if src.heartbeats[1] != "mehmet" {
		t.Errorf("heartbeats = %v", src.heartbeats)
	}
}

func TestLoop_BreakerSkipsNetworkWhileOpen(t *testing.T) {
	src := &fakeSource{rosterErr: errors.New("down"), beatErr: errors.New("down")}
	cb := resilience.NewCircuitBreaker("presence", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})
	l := NewLoop(src, config.PresenceConfig{HeartbeatInterval: 5 * time.Millisecond, RosterInterval: 5 * time.Millisecond}, cb, nil, zerolog.Nop())

	l.Start(context.Background(), "ayse")
	waitFor(t, func() bool { return cb.Stats().TotalRejected >= 4 })
	l.Stop()

	// Heartbeat and roster race for the last closed slot, so one extra call
	// may pass before the circuit opens.
	beats, hits := src.counts()
	if n := beats + hits; n < 2 || n > 3 {
		t.Errorf("backend saw %d calls, want 2 or 3 before the circuit opened", n)
	}
	if cb.State() != resilience.CircuitOpen {
		t.Errorf("State = %s", cb.State())
	}
}

// blockingSource holds every call until its context is cancelled.
type blockingSource struct {
	mu    sync.Mutex
	beats int
}

func (b *blockingSource) Heartbeat(ctx context.Context, username string) error {
	b.mu.Lock()
	b.beats++
	b.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (b *blockingSource) OnlineUsers(ctx context.Context) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingSource) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.beats
}

func TestLoop_CancelledCallsDoNotOpenBreaker(t *testing.T) {
	src := &blockingSource{}
	cb := resilience.NewCircuitBreaker("presence", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})
	l := NewLoop(src, config.PresenceConfig{HeartbeatInterval: time.Hour, RosterInterval: time.Hour}, cb, nil, zerolog.Nop())

	for i := 1; i <= 3; i++ {
		l.Start(context.Background(), "ayse")
		want := i
		waitFor(t, func() bool { return src.count() == want })
		l.Stop()
	}

	if cb.State() != resilience.CircuitClosed {
		t.Errorf("State = %s after logouts with calls in flight, want CLOSED", cb.State())
	}
	if got := cb.Stats().TotalFailures; got != 0 {
		t.Errorf("TotalFailures = %d, want 0", got)
	}

	l.Start(context.Background(), "mehmet")
	waitFor(t, func() bool { return src.count() == 4 })
	l.Stop()
}

func TestLoop_StartClosesOpenBreaker(t *testing.T) {
	src := &fakeSource{}
	cb := resilience.NewCircuitBreaker("presence", resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})
	_ = cb.Execute(func() error { return errors.New("down") })
	if cb.State() != resilience.CircuitOpen {
		t.Fatalf("State = %s, want OPEN", cb.State())
	}

	l := NewLoop(src, config.PresenceConfig{HeartbeatInterval: time.Hour, RosterInterval: time.Hour}, cb, nil, zerolog.Nop())
	l.Start(context.Background(), "ayse")
	defer l.Stop()

	waitFor(t, func() bool { b, _ := src.counts(); return b == 1 })
}

func TestLoop_ConcurrentStartKeepsOnePair(t *testing.T) {
	src := &fakeSource{}
	l := NewLoop(src, config.PresenceConfig{HeartbeatInterval: 5 * time.Millisecond, RosterInterval: 5 * time.Millisecond}, nil, nil, zerolog.Nop())

	var wg sync.WaitGroup
	for _, user := range []string{"ayse", "mehmet", "zeynep", "can"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			l.Start(context.Background(), u)
		}(user)
	}
	wg.Wait()

	l.Stop()
	beats, hits := src.counts()
	time.Sleep(40 * time.Millisecond)

	if b, r := src.counts(); b != beats || r != hits {
		t.Errorf("orphaned ticker still polling: heartbeats %d->%d roster %d->%d", beats, b, hits, r)
	}
}
