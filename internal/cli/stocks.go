package cli

import (
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"ecos-terminal/internal/models"
	"ecos-terminal/pkg/utils"
)

// addStockCommands adds market data commands.
func addStockCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStocksCmd(app))
	rootCmd.AddCommand(newDetailCmd(app))
	rootCmd.AddCommand(newFinancialsCmd(app))
	rootCmd.AddCommand(newSuggestCmd(app))
	rootCmd.AddCommand(newOnlineCmd(app))
}

type stockListView struct {
	User    string         `json:"user" yaml:"user"`
	Page    int            `json:"page" yaml:"page"`
	HasMore bool           `json:"has_more" yaml:"has_more"`
	Tracked []string       `json:"tracked" yaml:"tracked"`
	Stocks  []models.Stock `json:"stocks" yaml:"stocks"`
}

// stockCSVRow is one CSV export line.
type stockCSVRow struct {
	Symbol        string  `csv:"symbol"`
	Name          string  `csv:"name"`
	Price         string  `csv:"price"`
	Change        string  `csv:"change"`
	ChangePercent string  `csv:"change_percent"`
	Volume        float64 `csv:"volume"`
	Sector        string  `csv:"sector"`
	Favorite      bool    `csv:"favorite"`
}

func newStocksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stocks",
		Short: "List stocks, tracked symbols first",
		Long: `List stocks from the dashboard backend.

Tracked symbols come first. Pages are loaded until --pages is reached or,
with --all, until the backend reports no more rows.`,
		Example: `  ecos stocks
  ecos stocks --pages 3
  ecos stocks --all --csv > stocks.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			sess, err := app.resume(ctx)
			if err != nil {
				return err
			}

			pages, _ := cmd.Flags().GetInt("pages")
			if all, _ := cmd.Flags().GetBool("all"); all {
				pages = 0
			}
			if err := sess.Refresh(ctx); err != nil {
				return err
			}
			if pages != 1 {
				if err := sess.LoadAll(ctx, pages); err != nil {
					output.Warning("Stopped loading: %v", err)
				}
			}

			snap := sess.Snapshot()
			if asCSV, _ := cmd.Flags().GetBool("csv"); asCSV {
				rows := make([]stockCSVRow, 0, len(snap.Stocks))
				for _, s := range snap.Stocks {
					rows = append(rows, stockCSVRow{
						Symbol:        s.Symbol,
						Name:          s.Name,
						Price:         s.Price.String(),
						Change:        s.Change.String(),
						ChangePercent: s.ChangePercent.String(),
						Volume:        s.Volume,
						Sector:        s.SectorGroup,
						Favorite:      sess.IsFavorite(s.Symbol),
					})
				}
				return gocsv.Marshal(rows, cmd.OutOrStdout())
			}

			if output.IsStructured() {
				return output.Data(stockListView{
					User:    sess.Username(),
					Page:    snap.Page,
					HasMore: snap.HasMore,
					Tracked: snap.Filter,
					Stocks:  snap.Stocks,
				})
			}

			tracked := make(map[string]bool)
			for _, s := range snap.Filter {
				tracked[s] = true
			}

			table := NewTable(output, "", "SYMBOL", "NAME", "PRICE", "CHANGE", "VOLUME")
			for _, s := range snap.Stocks {
				mark := ""
				if sess.IsFavorite(s.Symbol) {
					mark = "★"
				}
				sym := s.DisplaySymbol()
				if tracked[sym] {
					sym = output.Yellow(sym)
				}
				table.AddRow(mark, sym, utils.TruncateString(s.Name, 28), utils.FormatPrice(s.Price),
					output.Change(s.Change, s.ChangePercent), utils.FormatVolume(s.Volume))
			}
			table.Render()

			more := "end of list"
			if snap.HasMore {
				more = "more available"
			}
			output.Dim("%d stocks, %d pages loaded, %s · BIST %s", len(snap.Stocks), snap.Page, more, utils.GetMarketStatus())
			return nil
		},
	}
	cmd.Flags().Int("pages", 1, "number of pages to load")
	cmd.Flags().Bool("all", false, "load every page")
	cmd.Flags().Bool("csv", false, "output as CSV")
	return cmd
}

func newDetailCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "detail SYMBOL",
		Short:   "Show the detail record of a stock",
		Example: "  ecos detail THYAO.IS",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if err := app.Validator.ValidateSymbol(args[0]); err != nil {
				return err
			}

			sess, err := app.session()
			if err != nil {
				return err
			}
			d, err := sess.Detail(ctx, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Data(d)
			}

			output.Bold("%s  %s", d.Symbol, d.Name)
			if d.Sector != "" || d.Industry != "" {
				output.Dim("%s / %s", d.Sector, d.Industry)
			}
			output.Println()
			output.Printf("  Price:        %s  %s\n", utils.FormatPrice(d.Price), output.Change(d.Change, d.ChangePercent))
			output.Printf("  Open:         %s\n", utils.FormatPrice(d.Open))
			output.Printf("  Prev. Close:  %s\n", utils.FormatTRY(d.PreviousClose))
			output.Printf("  Day Range:    %s - %s\n", utils.FormatNumber(d.DayLow, 2), utils.FormatNumber(d.DayHigh, 2))
			output.Printf("  52W Range:    %s - %s\n", utils.FormatNumber(d.FiftyTwoWeekLow, 2), utils.FormatNumber(d.FiftyTwoWeekHigh, 2))
			output.Printf("  Volume:       %s (avg %s)\n", utils.FormatVolume(d.Volume), utils.FormatVolume(d.AverageVolume))
			output.Printf("  Market Cap:   %s\n", utils.FormatCompact(d.MarketCap))
			output.Printf("  P/E:          %s\n", utils.FormatNumber(d.PERatio, 2))
			output.Printf("  Div. Yield:   %s%%\n", utils.FormatNumber(d.DividendYield, 2))
			if d.Website != "" {
				output.Printf("  Website:      %s\n", d.Website)
			}
			if d.Description != "" {
				output.Println()
				output.Println(d.Description)
			}
			return nil
		},
	}
}

func newFinancialsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "financials SYMBOL",
		Short:   "Show quarterly financial statements",
		Example: "  ecos financials GARAN.IS --periods 4",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if err := app.Validator.ValidateSymbol(args[0]); err != nil {
				return err
			}

			sess, err := app.session()
			if err != nil {
				return err
			}
			fin, err := sess.Financials(ctx, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Data(fin)
			}

			periods := fin.Periods()
			if n, _ := cmd.Flags().GetInt("periods"); n > 0 && n < len(periods) {
				periods = periods[:n]
			}
			if len(periods) == 0 {
				output.Warning("No financial statements for %s", args[0])
				return nil
			}

			headers := append([]string{"ITEM"}, periods...)
			table := NewTable(output, headers...)
			for _, item := range fin.LineItems() {
				row := []string{utils.TruncateString(item, 40)}
				for _, p := range periods {
					if v, ok := fin.Value(p, item); ok {
						row = append(row, utils.FormatCompact(v))
					} else {
						row = append(row, "-")
					}
				}
				table.AddRow(row...)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int("periods", 4, "number of periods to show")
	return cmd
}

func newSuggestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "suggest QUERY",
		Short:   "Search symbols by prefix or name",
		Example: "  ecos suggest thy",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if _, err := app.session(); err != nil {
				return err
			}
			query := strings.TrimSpace(args[0])
			if err := app.Validator.ValidateQuery(query, app.Config.Search.MinQueryLength); err != nil {
				return err
			}
			suggestions, err := app.Client.Suggestions(ctx, query)
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Data(suggestions)
			}
			if len(suggestions) == 0 {
				output.Dim("No matches for %q", query)
				return nil
			}
			table := NewTable(output, "SYMBOL", "NAME", "EXCHANGE")
			for _, s := range suggestions {
				table.AddRow(s.Symbol, s.Name, s.Exchange)
			}
			table.Render()
			return nil
		},
	}
}

func newOnlineCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "online",
		Short: "List users seen online recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			sess, err := app.session()
			if err != nil {
				return err
			}
			users, err := sess.OnlineUsers(ctx)
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Data(users)
			}
			if len(users) == 0 {
				output.Dim("Nobody online")
				return nil
			}
			for _, u := range users {
				output.Printf("%s %s\n", output.Green("●"), u)
			}
			return nil
		},
	}
}
