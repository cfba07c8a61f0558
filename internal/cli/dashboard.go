package cli

import (
	"github.com/spf13/cobra"

	"ecos-terminal/internal/logging"
	"ecos-terminal/internal/tui"
)

func newDashboardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive dashboard",
		Long: `Open the interactive dashboard for the logged-in user.

Keys: ↑↓ move, s track a symbol, x untrack, f favorite, v switch between
all stocks and favorites, / filter, r refresh, q quit. Reaching the last
row loads the next page.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.FromContext(ctx)

			sess, err := app.resume(ctx)
			if err != nil {
				return err
			}
			if err := sess.StartPresence(ctx); err != nil {
				return err
			}
			if err := sess.Refresh(ctx); err != nil {
				logger.Warn().Err(err).Msg("Initial page load failed")
			}
			return tui.Run(ctx, sess, logger)
		},
	}
}
