package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ecos-terminal/internal/models"
	"ecos-terminal/internal/resilience"
	"ecos-terminal/pkg/utils"
)

const (
	rosterWidth = 22
	maxSuggest  = 8
)

func (m model) View() string {
	if m.quitting {
		return ""
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderTable(), " ", m.renderSide())
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

func (m model) renderHeader() string {
	snap := m.dash.Snapshot()
	now := time.Now()

	title := " ECOS Terminal "
	if m.view == viewFavorites {
		title = " ECOS Terminal · Favoriler "
	}

	parts := []string{
		titleStyle.Render(title),
		"user " + symbolStyle.Render(m.dash.Username()),
		fmt.Sprintf("page %d", snap.Page),
		fmt.Sprintf("%d rows", len(snap.Stocks)),
		marketClock(now),
		dimStyle.Render(utils.FormatClock(now)),
	}
	if snap.Loading {
		parts = append(parts, dimStyle.Render("loading…"))
	} else if !snap.HasMore && snap.Page > 0 {
		parts = append(parts, dimStyle.Render("end of list"))
	}
	if len(snap.Filter) > 0 {
		parts = append(parts, trackedStyle.Render("tracking "+strings.Join(snap.Filter, ",")))
	}
	return strings.Join(parts, "  ")
}

// marketClock shows the BIST session and the time to its next open or
// close.
func marketClock(now time.Time) string {
	status := utils.MarketStatusAt(now)
	label := "BIST " + string(status)
	switch status {
	case utils.MarketOpen:
		return label + " · closes in " + utils.FormatDuration(utils.TimeUntilMarketClose(now))
	case utils.MarketClosed:
		return label + " · opens in " + utils.FormatDuration(utils.NextMarketOpen(now).Sub(now))
	}
	return label
}

func (m model) tableHeight() int {
	h := m.height - 4
	if h < 3 {
		h = 3
	}
	return h
}

func (m model) renderTable() string {
	var b strings.Builder
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  %-8s %-24s %12s %20s %14s", "SYMBOL", "NAME", "PRICE", "CHANGE", "VOLUME")))
	b.WriteByte('\n')

	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("  no stocks"))
		return b.String()
	}

	height := m.tableHeight()
	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := start + height
	if end > len(m.rows) {
		end = len(m.rows)
	}

	tracked := make(map[string]bool)
	for _, s := range m.dash.Tracked() {
		tracked[s] = true
	}

	for i := start; i < end; i++ {
		b.WriteString(m.renderRow(m.rows[i], i == m.cursor, tracked))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m model) renderRow(s models.Stock, hl bool, tracked map[string]bool) string {
	marker := "  "
	if m.dash.IsFavorite(s.Symbol) {
		marker = hlStyle(favoriteStyle, hl).Render("★ ")
	} else if hl {
		marker = hlStyle(dimStyle, hl).Render("▸ ")
	}

	symStyle := symbolStyle
	if tracked[s.DisplaySymbol()] {
		symStyle = trackedStyle
	}

	cs := changeStyle(s)
	cols := []string{
		marker,
		hlStyle(symStyle, hl).Render(utils.PadRight(s.DisplaySymbol(), 8)),
		hlStyle(dimStyle, hl).Render(" " + utils.PadRight(utils.TruncateString(s.Name, 24), 24)),
		hlStyle(priceStyle, hl).Render(" " + utils.PadLeft(utils.FormatPrice(s.Price), 12)),
		hlStyle(cs, hl).Render(" " + utils.PadLeft(utils.FormatChange(s.Change, s.ChangePercent), 20)),
		hlStyle(dimStyle, hl).Render(" " + utils.PadLeft(utils.FormatVolume(s.Volume), 14)),
	}
	return strings.Join(cols, "")
}

func (m model) renderSide() string {
	roster := m.dash.Roster()
	var b strings.Builder
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("Online (%d)", len(roster))))
	if line := presenceLine(m.dash.PresenceStats(), m.dash.RosterUpdatedAt(), time.Now()); line != "" {
		b.WriteByte('\n')
		b.WriteString(line)
	}
	for _, user := range roster {
		b.WriteByte('\n')
		name := utils.TruncateString(user, rosterWidth-2)
		if user == m.dash.Username() {
			b.WriteString(onlineStyle.Bold(true).Render("● " + name))
		} else {
			b.WriteString(onlineStyle.Render("● ") + name)
		}
	}

	if m.mode == modeSearch {
		b.WriteString("\n\n")
		b.WriteString(colHeaderStyle.Render("Suggestions"))
		suggestions := m.dash.Suggestions()
		if len(suggestions) > maxSuggest {
			suggestions = suggestions[:maxSuggest]
		}
		for i, sg := range suggestions {
			b.WriteByte('\n')
			line := utils.TruncateString(sg.Symbol+" "+sg.Name, rosterWidth-2)
			b.WriteString(hlStyle(symbolStyle, i == m.suggIdx).Render(line))
		}
	}

	return panelStyle.Width(rosterWidth).Render(b.String())
}

// presenceLine reports a paused presence breaker or the roster age.
func presenceLine(stats resilience.CircuitBreakerStats, updated, now time.Time) string {
	if stats.State == resilience.CircuitOpen {
		return errorStyle.Render("presence paused")
	}
	if updated.IsZero() {
		return ""
	}
	return dimStyle.Render(utils.FormatDuration(now.Sub(updated)) + " ago")
}

func (m model) renderFooter() string {
	var line string
	switch m.mode {
	case modeSearch:
		line = "track: " + m.input.View() + dimStyle.Render("  enter add · ↑↓ pick · esc cancel")
	case modeFilter:
		line = "filter: " + m.input.View() + dimStyle.Render("  enter keep · esc clear")
	default:
		line = dimStyle.Render("↑↓ move · s track · x untrack · f favorite · v view · / filter · r refresh · q quit")
		if m.filter != "" {
			line += "  " + trackedStyle.Render("filter: "+m.filter)
		}
	}

	if m.errText != "" {
		return line + "\n" + errorStyle.Render(m.errText)
	}
	if m.status != "" {
		return line + "\n" + dimStyle.Render(m.status)
	}
	return line
}
