// Package session holds the state of one logged-in dashboard user and wires
// the list engine, tracked symbols, favorites, suggestions and presence
// together.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ecos-terminal/internal/api"
	"ecos-terminal/internal/config"
	apperrors "ecos-terminal/internal/errors"
	"ecos-terminal/internal/logging"
	"ecos-terminal/internal/models"
	"ecos-terminal/internal/paging"
	"ecos-terminal/internal/presence"
	"ecos-terminal/internal/resilience"
	"ecos-terminal/internal/store"
	"ecos-terminal/internal/stream"
	"ecos-terminal/internal/suggest"
	"ecos-terminal/internal/tracking"
)

// Backend is the remote stock source.
type Backend interface {
	Login(ctx context.Context, username, password string) (string, error)
	Heartbeat(ctx context.Context, username string) error
	OnlineUsers(ctx context.Context) ([]string, error)
	Users(ctx context.Context) ([]string, error)
	CreateUser(ctx context.Context, username, password string) error
	Stocks(ctx context.Context, q api.StockQuery) (api.StockPage, error)
	Detail(ctx context.Context, symbol string) (*models.StockDetail, error)
	Financials(ctx context.Context, symbol string) (models.Financials, error)
	Suggestions(ctx context.Context, q string) ([]models.Suggestion, error)
}

// Session is the session-scoped state object. It is safe for concurrent
// use.
type Session struct {
	backend  Backend
	prefs    *store.Preferences
	hub      *stream.Hub
	logger   zerolog.Logger
	suffixes []string

	engine    *paging.Engine
	trigger   *paging.Trigger
	tracked   *tracking.Controller
	favorites *tracking.Favorites
	debouncer *suggest.Debouncer
	presence  *presence.Loop
	breaker   *resilience.CircuitBreaker

	mu       sync.RWMutex
	username string
}

// New creates a logged-out session.
func New(cfg *config.Config, backend Backend, prefs *store.Preferences, logger zerolog.Logger) *Session {
	logger = logging.WithComponent(logger, "session")
	hub := stream.NewHub()

	breaker := resilience.NewCircuitBreaker("presence", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Timeout:          cfg.Breaker.Timeout,
	})

	engine := paging.NewEngine(backend, cfg.Paging.PageSize, hub, logger)
	return &Session{
		backend:   backend,
		prefs:     prefs,
		hub:       hub,
		logger:    logger,
		suffixes:  cfg.Tracking.ExchangeSuffixes,
		engine:    engine,
		trigger:   paging.NewTrigger(engine, logger),
		tracked:   tracking.NewController(prefs, engine, tracking.OptionsFromConfig(cfg.Tracking), hub, logger),
		favorites: tracking.NewFavorites(prefs, hub, logger),
		debouncer: suggest.NewDebouncer(backend, cfg.Search, hub, logger),
		presence:  presence.NewLoop(backend, cfg.Presence, breaker, hub, logger),
		breaker:   breaker,
	}
}

// Login authenticates and begins a session for the returned user.
func (s *Session) Login(ctx context.Context, username, password string) error {
	user, err := s.backend.Login(ctx, username, password)
	if err != nil {
		logger := logging.WithUser(s.logger, username)
		logger.Warn().Err(err).Msg("Login failed")
		return err
	}
	return s.Begin(ctx, user)
}

// Begin activates username, records it as the last user, starts presence
// and loads the first page. A failed page load is logged, not returned.
func (s *Session) Begin(ctx context.Context, username string) error {
	if err := s.activate(ctx, username); err != nil {
		return err
	}
	if err := s.prefs.SetLastUser(ctx, username); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record last user")
	}

	s.presence.Start(context.WithoutCancel(ctx), username)

	if err := s.engine.LoadPage(ctx, 1); err != nil {
		s.logger.Warn().Err(err).Msg("Initial page load failed")
	}
	logger := logging.WithUser(s.logger, username)
	logger.Info().Msg("Session started")
	return nil
}

// Resume activates the last logged-in user without contacting the backend.
// It returns ErrNotAuthenticated when nobody is remembered.
func (s *Session) Resume(ctx context.Context) (string, error) {
	user, err := s.prefs.LastUser(ctx)
	if err != nil {
		return "", err
	}
	if user == "" {
		return "", apperrors.ErrNotAuthenticated
	}
	if err := s.activate(ctx, user); err != nil {
		return "", err
	}
	return user, nil
}

// activate loads username's preferences and resets the engine to the
// stored tracked filter.
func (s *Session) activate(ctx context.Context, username string) error {
	if username == "" {
		return apperrors.NewValidationError("username", username, "must not be empty")
	}

	tracked, err := s.prefs.Tracked(ctx, username)
	if err != nil {
		return apperrors.Wrap(err, "loading tracked symbols")
	}
	favs, err := s.prefs.Favorites(ctx, username)
	if err != nil {
		return apperrors.Wrap(err, "loading favorites")
	}

	s.mu.Lock()
	s.username = username
	s.mu.Unlock()

	s.tracked.Load(username, tracked)
	s.favorites.Load(username, favs)
	s.engine.Reset(s.tracked.Symbols())
	return nil
}

// StartPresence starts the heartbeat and roster loop for the active user.
func (s *Session) StartPresence(ctx context.Context) error {
	user := s.Username()
	if user == "" {
		return apperrors.ErrNotAuthenticated
	}
	s.presence.Start(context.WithoutCancel(ctx), user)
	return nil
}

// Logout stops all periodic work, forgets the last user and clears every
// piece of in-memory state.
func (s *Session) Logout(ctx context.Context) error {
	s.presence.Stop()
	s.debouncer.Stop()

	s.mu.Lock()
	user := s.username
	s.username = ""
	s.mu.Unlock()

	s.tracked.Load("", nil)
	s.favorites.Load("", nil)
	s.engine.Reset(nil)

	err := s.prefs.ClearLastUser(ctx)
	s.hub.Publish(stream.Event{Kind: stream.KindLoggedOut})
	logger := logging.WithUser(s.logger, user)
	logger.Info().Msg("Logged out")
	return err
}

// Close stops periodic work and the event hub. Stored state is kept.
func (s *Session) Close() {
	s.presence.Stop()
	s.debouncer.Stop()

	m := s.hub.Metrics()
	s.logger.Debug().
		Uint64("published", m.Published).
		Uint64("delivered", m.Delivered).
		Uint64("dropped", m.Dropped).
		Int("subscribers", m.Subscribers).
		Msg("Closing event hub")
	s.hub.Stop()
}

// Username returns the active user, or "".
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Authenticated reports whether a user is active.
func (s *Session) Authenticated() bool {
	return s.Username() != ""
}

// Hub returns the session event hub.
func (s *Session) Hub() *stream.Hub {
	return s.hub
}

// Snapshot returns the stock list state.
func (s *Session) Snapshot() paging.Snapshot {
	return s.engine.Snapshot()
}

// Refresh reloads page 1 under the current filter.
func (s *Session) Refresh(ctx context.Context) error {
	return s.engine.LoadPage(ctx, 1)
}

// LoadNext loads the next page.
func (s *Session) LoadNext(ctx context.Context) error {
	return s.engine.LoadNext(ctx)
}

// SentinelVisible forwards an end-of-list visibility signal.
func (s *Session) SentinelVisible(ctx context.Context, fully bool) bool {
	return s.trigger.Visible(ctx, fully)
}

// LoadAll loads further pages after page 1 until the backend reports no
// more or maxPages pages are loaded in total. maxPages <= 0 means no limit.
func (s *Session) LoadAll(ctx context.Context, maxPages int) error {
	for n := 1; maxPages <= 0 || n < maxPages; n++ {
		if !s.engine.Snapshot().HasMore {
			return nil
		}
		if err := s.engine.LoadNext(ctx); err != nil {
			if apperrors.Is(err, apperrors.ErrNoMorePages) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Tracked returns the tracked symbols, most recent first.
func (s *Session) Tracked() []string {
	return s.tracked.Symbols()
}

// Track moves raw to the front of the tracked list and reloads page 1.
func (s *Session) Track(ctx context.Context, raw string) ([]string, error) {
	list, err := s.tracked.Add(ctx, raw)
	if list == nil {
		return nil, err
	}
	return list, s.reloadAfter(ctx, "track", err)
}

// Untrack removes raw from the tracked list and reloads page 1.
func (s *Session) Untrack(ctx context.Context, raw string) ([]string, error) {
	list, err := s.tracked.Remove(ctx, raw)
	if list == nil {
		return nil, err
	}
	return list, s.reloadAfter(ctx, "untrack", err)
}

// ClearTracked empties the tracked list and reloads page 1.
func (s *Session) ClearTracked(ctx context.Context) error {
	err := s.tracked.Clear(ctx)
	if apperrors.Is(err, apperrors.ErrNotAuthenticated) {
		return err
	}
	return s.reloadAfter(ctx, "clear_tracked", err)
}

// reloadAfter loads page 1 after a tracked-list mutation. A persist error
// takes precedence over a load error.
func (s *Session) reloadAfter(ctx context.Context, operation string, persistErr error) error {
	loadErr := s.engine.LoadPage(ctx, 1)

	logger := logging.WithOperation(s.logger, operation)
	if persistErr != nil {
		logger.Warn().Err(persistErr).Msg("Tracked list not persisted")
		return persistErr
	}
	if loadErr != nil {
		logger.Warn().Err(loadErr).Msg("Reload after tracked change failed")
	}
	return loadErr
}

// Favorites returns the favorite symbols.
func (s *Session) Favorites() []string {
	return s.favorites.List()
}

// IsFavorite reports whether symbol is a favorite.
func (s *Session) IsFavorite(symbol string) bool {
	return s.favorites.Contains(symbol)
}

// ToggleFavorite flips symbol in the favorites set.
func (s *Session) ToggleFavorite(ctx context.Context, symbol string) (bool, error) {
	return s.favorites.Toggle(ctx, symbol)
}

// FavoriteStocks returns the loaded stocks that are favorites, matching
// suffixed and unsuffixed forms.
func (s *Session) FavoriteStocks() []models.Stock {
	favs := make(map[string]bool)
	for _, f := range s.favorites.List() {
		favs[models.NormalizeSymbol(f, s.suffixes)] = true
	}

	var out []models.Stock
	for _, st := range s.engine.Snapshot().Stocks {
		if favs[models.NormalizeSymbol(st.Symbol, s.suffixes)] {
			out = append(out, st)
		}
	}
	return out
}

// OnQueryChange feeds search-box text to the suggestion debouncer.
func (s *Session) OnQueryChange(text string) {
	s.debouncer.OnQueryChange(text)
}

// Suggestions returns the current suggestions.
func (s *Session) Suggestions() []models.Suggestion {
	return s.debouncer.Suggestions()
}

// Roster returns the online usernames.
func (s *Session) Roster() []string {
	return s.presence.Roster()
}

// RosterUpdatedAt returns when the roster was last refreshed, or the zero
// time before the first refresh.
func (s *Session) RosterUpdatedAt() time.Time {
	return s.presence.UpdatedAt()
}

// PresenceStats returns the presence circuit breaker counters.
func (s *Session) PresenceStats() resilience.CircuitBreakerStats {
	return s.breaker.Stats()
}

// Detail fetches the extended record for symbol.
func (s *Session) Detail(ctx context.Context, symbol string) (*models.StockDetail, error) {
	logger := logging.WithSymbol(s.logger, symbol)
	detail, err := s.backend.Detail(ctx, symbol)
	if err != nil {
		logger.Debug().Err(err).Msg("Detail fetch failed")
		return nil, err
	}
	logger.Debug().Msg("Detail fetched")
	return detail, nil
}

// Financials fetches the period table for symbol.
func (s *Session) Financials(ctx context.Context, symbol string) (models.Financials, error) {
	logger := logging.WithSymbol(s.logger, symbol)
	fin, err := s.backend.Financials(ctx, symbol)
	if err != nil {
		logger.Debug().Err(err).Msg("Financials fetch failed")
		return nil, err
	}
	logger.Debug().Int("periods", len(fin.Periods())).Msg("Financials fetched")
	return fin, nil
}

// Users lists registered usernames.
func (s *Session) Users(ctx context.Context) ([]string, error) {
	return s.backend.Users(ctx)
}

// OnlineUsers fetches the roster once, outside the presence loop.
func (s *Session) OnlineUsers(ctx context.Context) ([]string, error) {
	return s.backend.OnlineUsers(ctx)
}

// CreateUser registers a new account.
func (s *Session) CreateUser(ctx context.Context, username, password string) error {
	return s.backend.CreateUser(ctx, username, password)
}
