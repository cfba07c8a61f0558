package tui

import (
	"github.com/charmbracelet/lipgloss"

	"ecos-terminal/internal/models"
)

// Styles.
var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	trackedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	favoriteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	priceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	onlineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	highlightBG    = lipgloss.Color("236")
)

// hlStyle returns a copy of s with the highlight background applied when hl is true.
func hlStyle(s lipgloss.Style, hl bool) lipgloss.Style {
	if hl {
		return s.Background(highlightBG)
	}
	return s
}

func changeStyle(s models.Stock) lipgloss.Style {
	switch {
	case s.IsUp():
		return gainStyle
	case s.Change.IsNegative():
		return lossStyle
	}
	return dimStyle
}
