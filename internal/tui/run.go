package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"ecos-terminal/internal/logging"
	"ecos-terminal/internal/search"
)

// Run shows the dashboard until the user quits, ctx is cancelled or the
// session logs out.
func Run(ctx context.Context, dash Dashboard, logger zerolog.Logger) error {
	logger = logging.WithComponent(logger, "tui")

	index, err := search.NewIndex()
	if err != nil {
		return err
	}
	defer index.Close()

	m := newModel(ctx, dash, index, logger)
	defer dash.Hub().Unsubscribe(m.sub)

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err = p.Run()
	if n := m.sub.Dropped(); n > 0 {
		logger.Debug().Int64("dropped", n).Msg("Dashboard missed hub events")
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
