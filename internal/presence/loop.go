// Package presence keeps the user listed as online and refreshes the
// online roster.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"ecos-terminal/internal/config"
	"ecos-terminal/internal/logging"
	"ecos-terminal/internal/resilience"
	"ecos-terminal/internal/stream"
)

// Default cadences.
const (
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultRosterInterval    = 5 * time.Second
)

// Source is the presence backend.
type Source interface {
	Heartbeat(ctx context.Context, username string) error
	OnlineUsers(ctx context.Context) ([]string, error)
}

// Loop runs the heartbeat and roster refresh on independent tickers while a
// user is logged in. Both fire once immediately on Start.
type Loop struct {
	source    Source
	heartbeat time.Duration
	roster    time.Duration
	breaker   *resilience.CircuitBreaker
	hub       *stream.Hub
	logger    zerolog.Logger

	startMu sync.Mutex

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       *conc.WaitGroup
	username string
	online   []string
	updated  time.Time
}

// NewLoop creates a stopped loop. breaker and hub may be nil.
func NewLoop(source Source, cfg config.PresenceConfig, breaker *resilience.CircuitBreaker, hub *stream.Hub, logger zerolog.Logger) *Loop {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.RosterInterval <= 0 {
		cfg.RosterInterval = DefaultRosterInterval
	}
	return &Loop{
		source:    source,
		heartbeat: cfg.HeartbeatInterval,
		roster:    cfg.RosterInterval,
		breaker:   breaker,
		hub:       hub,
		logger:    logging.WithComponent(logger, "presence"),
		online:    []string{},
	}
}

// Start begins polling for username. A running loop is stopped first and
// the breaker is closed so the new user's first heartbeat goes out.
func (l *Loop) Start(ctx context.Context, username string) {
	l.startMu.Lock()
	defer l.startMu.Unlock()

	l.Stop()
	if l.breaker != nil {
		l.breaker.Reset()
	}

	ctx, cancel := context.WithCancel(ctx)
	wg := conc.NewWaitGroup()

	l.mu.Lock()
	l.cancel = cancel
	l.wg = wg
	l.username = username
	l.mu.Unlock()

	logger := logging.WithUser(l.logger, username)
	logger.Info().
		Dur("heartbeat_interval", l.heartbeat).
		Dur("roster_interval", l.roster).
		Msg("Presence loop started")

	wg.Go(func() {
		every(ctx, l.heartbeat, func() { l.sendHeartbeat(ctx, username) })
	})
	wg.Go(func() {
		every(ctx, l.roster, func() { l.refreshRoster(ctx) })
	})
}

// Stop cancels both tickers and waits for them to exit. No backend call
// starts after Stop returns. The roster is cleared.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.cancel == nil {
		l.mu.Unlock()
		return
	}
	l.cancel()
	wg, username := l.wg, l.username
	l.cancel = nil
	l.wg = nil
	l.username = ""
	l.online = []string{}
	l.updated = time.Time{}
	l.mu.Unlock()

	wg.Wait()
	logger := logging.WithUser(l.logger, username)
	logger.Info().Msg("Presence loop stopped")
}

// Running reports whether the loop is polling.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Roster returns the last fetched online usernames.
func (l *Loop) Roster() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.online...)
}

// UpdatedAt returns when the roster was last replaced.
func (l *Loop) UpdatedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updated
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	if ctx.Err() != nil {
		return
	}
	fn()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			fn()
		}
	}
}

// call runs fn through the breaker. A call cut short by ctx is not a
// backend failure and is reported to the breaker as a success.
func (l *Loop) call(ctx context.Context, fn func() error) error {
	if l.breaker == nil {
		return fn()
	}
	var callErr error
	err := l.breaker.Execute(func() error {
		callErr = fn()
		if callErr != nil && ctx.Err() != nil {
			return nil
		}
		return callErr
	})
	if err != nil {
		return err
	}
	return callErr
}

// sendHeartbeat swallows failures; the next tick is the retry.
func (l *Loop) sendHeartbeat(ctx context.Context, username string) {
	err := l.call(ctx, func() error { return l.source.Heartbeat(ctx, username) })
	if err != nil && ctx.Err() == nil {
		l.logger.Debug().Err(err).Str("username", username).Msg("Heartbeat failed")
	}
}

// refreshRoster replaces the roster on success and keeps the previous one
// on failure.
func (l *Loop) refreshRoster(ctx context.Context) {
	var users []string
	err := l.call(ctx, func() error {
		var err error
		users, err = l.source.OnlineUsers(ctx)
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Debug().Err(err).Msg("Roster refresh failed")
		}
		return
	}
	if users == nil {
		users = []string{}
	}

	l.mu.Lock()
	if ctx.Err() != nil {
		l.mu.Unlock()
		return
	}
	l.online = users
	l.updated = time.Now()
	l.mu.Unlock()

	if l.hub != nil {
		l.hub.Publish(stream.Event{Kind: stream.KindRoster})
	}
}
