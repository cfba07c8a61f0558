package cli

import (
	"github.com/spf13/cobra"
)

// addTrackingCommands adds tracked-symbol and favorites commands.
func addTrackingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newTrackCmd(app))
	rootCmd.AddCommand(newFavCmd(app))
}

func newTrackCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Manage tracked symbols",
		Long: `Manage tracked symbols.

Tracked symbols are listed first by 'ecos stocks' and the dashboard. The
most recently added symbol comes first and the oldest drops off when the
list is full.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "add SYMBOL...",
		Short:   "Track one or more symbols",
		Example: "  ecos track add thyao garan.is",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			for _, raw := range args {
				if err := app.Validator.ValidateSymbol(raw); err != nil {
					return err
				}
			}

			sess, err := app.resume(ctx)
			if err != nil {
				return err
			}
			var list []string
			for _, raw := range args {
				list, err = sess.Track(ctx, raw)
				if err != nil && list == nil {
					return err
				}
				if err != nil {
					output.Warning("%s tracked but not saved: %v", raw, err)
				}
			}
			return printTracked(output, list)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove SYMBOL...",
		Short: "Stop tracking symbols",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			sess, err := app.resume(ctx)
			if err != nil {
				return err
			}
			list := sess.Tracked()
			for _, raw := range args {
				list, err = sess.Untrack(ctx, raw)
				if err != nil && list == nil {
					return err
				}
				if err != nil {
					output.Warning("%s removed but not saved: %v", raw, err)
				}
			}
			return printTracked(output, list)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tracked symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			sess, err := app.resume(ctx)
			if err != nil {
				return err
			}
			return printTracked(NewOutput(cmd), sess.Tracked())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Stop tracking every symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			sess, err := app.resume(ctx)
			if err != nil {
				return err
			}
			if err := sess.ClearTracked(ctx); err != nil {
				return err
			}
			return printTracked(output, sess.Tracked())
		},
	})

	return cmd
}

func printTracked(output *Output, list []string) error {
	if list == nil {
		list = []string{}
	}
	if output.IsStructured() {
		return output.Data(map[string][]string{"tracked": list})
	}
	if len(list) == 0 {
		output.Dim("No tracked symbols")
		return nil
	}
	for i, s := range list {
		output.Printf("%2d. %s\n", i+1, output.Yellow(s))
	}
	return nil
}

func newFavCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fav",
		Short: "Manage favorite symbols",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "toggle SYMBOL",
		Short:   "Add or remove a favorite",
		Example: "  ecos fav toggle THYAO.IS",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if err := app.Validator.ValidateSymbol(args[0]); err != nil {
				return err
			}

			sess, err := app.resume(ctx)
			if err != nil {
				return err
			}
			on, err := sess.ToggleFavorite(ctx, args[0])
			if err != nil && !sess.Authenticated() {
				return err
			}
			if err != nil {
				output.Warning("Favorite changed but not saved: %v", err)
			}
			if output.IsStructured() {
				return output.Data(map[string]interface{}{"symbol": args[0], "favorite": on})
			}
			if on {
				output.Success("★ %s added to favorites", args[0])
			} else {
				output.Success("☆ %s removed from favorites", args[0])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List favorite symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			sess, err := app.resume(ctx)
			if err != nil {
				return err
			}
			favs := sess.Favorites()
			if favs == nil {
				favs = []string{}
			}
			if output.IsStructured() {
				return output.Data(map[string][]string{"favorites": favs})
			}
			if len(favs) == 0 {
				output.Dim("No favorites")
				return nil
			}
			for _, f := range favs {
				output.Printf("★ %s\n", f)
			}
			return nil
		},
	})

	return cmd
}
