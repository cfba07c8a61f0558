// Package tui is the interactive terminal dashboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"ecos-terminal/internal/models"
	"ecos-terminal/internal/paging"
	"ecos-terminal/internal/resilience"
	"ecos-terminal/internal/search"
	"ecos-terminal/internal/stream"
)

// Dashboard is the session surface the terminal UI drives.
type Dashboard interface {
	Username() string
	Hub() *stream.Hub
	Snapshot() paging.Snapshot
	Refresh(ctx context.Context) error
	SentinelVisible(ctx context.Context, fully bool) bool
	Tracked() []string
	Track(ctx context.Context, raw string) ([]string, error)
	Untrack(ctx context.Context, raw string) ([]string, error)
	IsFavorite(symbol string) bool
	ToggleFavorite(ctx context.Context, symbol string) (bool, error)
	FavoriteStocks() []models.Stock
	OnQueryChange(text string)
	Suggestions() []models.Suggestion
	Roster() []string
	RosterUpdatedAt() time.Time
	PresenceStats() resilience.CircuitBreakerStats
}

type inputMode int

const (
	modeNormal inputMode = iota
	modeSearch
	modeFilter
)

type listView int

const (
	viewDashboard listView = iota
	viewFavorites
)

// Messages.
type eventMsg stream.Event
type subClosedMsg struct{}

type opDoneMsg struct {
	status string
	err    error
}

type model struct {
	ctx    context.Context
	dash   Dashboard
	index  *search.Index
	sub    *stream.Subscriber
	logger zerolog.Logger

	mode     inputMode
	view     listView
	input    textinput.Model
	filter   string
	rows     []models.Stock
	cursor   int
	suggIdx  int
	status   string
	errText  string
	width    int
	height   int
	quitting bool
}

func newModel(ctx context.Context, dash Dashboard, index *search.Index, logger zerolog.Logger) model {
	ti := textinput.New()
	ti.CharLimit = 32
	ti.Width = 24

	m := model{
		ctx:    ctx,
		dash:   dash,
		index:  index,
		sub:    dash.Hub().Subscribe(),
		logger: logger,
		input:  ti,
		width:  100,
		height: 30,
	}
	m.refreshRows()
	return m
}

// waitForEvent blocks on the hub subscription and delivers one event.
func waitForEvent(sub *stream.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.C
		if !ok {
			return subClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m model) Init() tea.Cmd {
	return waitForEvent(m.sub)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		return m.handleEvent(stream.Event(msg))

	case subClosedMsg:
		return m, nil

	case opDoneMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		} else {
			m.errText = ""
			if msg.status != "" {
				m.status = msg.status
			}
		}
		m.refreshRows()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeFilter:
			return m.updateFilter(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m model) handleEvent(ev stream.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case stream.KindLoggedOut:
		m.quitting = true
		return m, tea.Quit
	case stream.KindError:
		if ev.Err != nil {
			m.errText = fmt.Sprintf("%s: %v", ev.Detail, ev.Err)
		}
	case stream.KindStocks, stream.KindFavorites, stream.KindTracked:
		m.refreshRows()
	}
	return m, waitForEvent(m.sub)
}

func (m model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.dash.Hub().Unsubscribe(m.sub)
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		if m.view == viewDashboard && m.filter == "" && len(m.rows) > 0 && m.cursor == len(m.rows)-1 {
			return m, m.sentinelCmd()
		}
		return m, nil

	case "v":
		if m.view == viewDashboard {
			m.view = viewFavorites
		} else {
			m.view = viewDashboard
		}
		m.cursor = 0
		m.refreshRows()
		return m, nil

	case "r":
		m.status = "refreshing"
		return m, m.refreshCmd()

	case "f":
		if sym, ok := m.selected(); ok {
			return m, m.toggleFavoriteCmd(sym)
		}
		return m, nil

	case "x":
		if sym, ok := m.selected(); ok {
			return m, m.untrackCmd(sym)
		}
		return m, nil

	case "s":
		m.mode = modeSearch
		m.suggIdx = 0
		m.input.Placeholder = "symbol to track"
		m.input.SetValue("")
		return m, m.input.Focus()

	case "/":
		m.mode = modeFilter
		m.input.Placeholder = "filter"
		m.input.SetValue(m.filter)
		return m, m.input.Focus()

	case "esc":
		if m.filter != "" {
			m.filter = ""
			m.refreshRows()
		}
		return m, nil
	}
	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveInput()
		m.dash.OnQueryChange("")
		return m, nil

	case "enter":
		target := strings.TrimSpace(m.input.Value())
		if suggestions := m.dash.Suggestions(); len(suggestions) > 0 && m.suggIdx < len(suggestions) {
			target = suggestions[m.suggIdx].Symbol
		}
		m.leaveInput()
		m.dash.OnQueryChange("")
		if target == "" {
			return m, nil
		}
		return m, m.trackCmd(target)

	case "up":
		if m.suggIdx > 0 {
			m.suggIdx--
		}
		return m, nil

	case "down":
		if m.suggIdx < len(m.dash.Suggestions())-1 {
			m.suggIdx++
		}
		return m, nil
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.suggIdx = 0
		m.dash.OnQueryChange(after)
	}
	return m, cmd
}

func (m model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filter = ""
		m.leaveInput()
		m.refreshRows()
		return m, nil
	case "enter":
		m.leaveInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.filter = strings.TrimSpace(m.input.Value())
	m.cursor = 0
	m.refreshRows()
	return m, cmd
}

func (m *model) leaveInput() {
	m.mode = modeNormal
	m.input.Blur()
	m.input.SetValue("")
}

// refreshRows recomputes the visible rows from the current view and
// filter.
func (m *model) refreshRows() {
	var source []models.Stock
	if m.view == viewFavorites {
		source = m.dash.FavoriteStocks()
	} else {
		source = m.dash.Snapshot().Stocks
	}

	rows := source
	if m.filter != "" && m.index != nil {
		if err := m.index.Rebuild(source); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to rebuild filter index")
		} else if filtered, err := m.index.Filter(m.filter); err != nil {
			m.logger.Warn().Err(err).Str("filter", m.filter).Msg("Filter query failed")
		} else {
			rows = filtered
		}
	}

	m.rows = rows
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) selected() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return "", false
	}
	return m.rows[m.cursor].Symbol, true
}

func (m model) sentinelCmd() tea.Cmd {
	ctx, dash := m.ctx, m.dash
	return func() tea.Msg {
		if dash.SentinelVisible(ctx, true) {
			return opDoneMsg{status: fmt.Sprintf("loaded page %d", dash.Snapshot().Page)}
		}
		return nil
	}
}

func (m model) refreshCmd() tea.Cmd {
	ctx, dash := m.ctx, m.dash
	return func() tea.Msg {
		if err := dash.Refresh(ctx); err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: "refreshed"}
	}
}

func (m model) toggleFavoriteCmd(symbol string) tea.Cmd {
	ctx, dash := m.ctx, m.dash
	return func() tea.Msg {
		on, err := dash.ToggleFavorite(ctx, symbol)
		if err != nil {
			return opDoneMsg{err: err}
		}
		if on {
			return opDoneMsg{status: symbol + " added to favorites"}
		}
		return opDoneMsg{status: symbol + " removed from favorites"}
	}
}

func (m model) trackCmd(symbol string) tea.Cmd {
	ctx, dash := m.ctx, m.dash
	return func() tea.Msg {
		tracked, err := dash.Track(ctx, symbol)
		if err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: fmt.Sprintf("tracking %d symbols", len(tracked))}
	}
}

func (m model) untrackCmd(symbol string) tea.Cmd {
	ctx, dash := m.ctx, m.dash
	return func() tea.Msg {
		tracked, err := dash.Untrack(ctx, symbol)
		if err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: fmt.Sprintf("tracking %d symbols", len(tracked))}
	}
}
