// Package cli provides the command-line interface for the dashboard client.
package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ecos-terminal/internal/api"
	"ecos-terminal/internal/config"
	apperrors "ecos-terminal/internal/errors"
	"ecos-terminal/internal/logging"
	"ecos-terminal/internal/security"
	"ecos-terminal/internal/session"
	"ecos-terminal/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies. They are built on first use so
// that --config and --debug apply.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Store   *store.SQLiteStore
	Client  *api.Client
	Session *session.Session

	Validator *security.InputValidator
}

// NewApp creates an App with nothing opened yet.
func NewApp() *App {
	return &App{
		Logger:    zerolog.Nop(),
		Validator: security.NewInputValidator(true),
	}
}

// setup loads configuration and builds the logger. Console logging is
// suppressed when quiet is set.
func (a *App) setup(configDir string, debug, quiet bool) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}
	a.Config = cfg

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Console = cfg.Log.Console && !quiet
	logCfg.File = cfg.Log.File
	logCfg.FilePath = cfg.LogFilePath()
	a.Logger = logging.NewLoggerWithConfig(logCfg)
	if debug {
		logging.SetDebugLevel()
	}
	return nil
}

// commandScope tags ctx with an id correlating every backend call of one
// command, and a logger carrying it.
func (a *App) commandScope(ctx context.Context, command string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.NewString()
	logger := a.Logger.With().Str("command", command).Str("request_id", id).Logger()
	ctx = logging.WithRequestID(ctx, id)
	return logging.WithLogger(ctx, logger)
}

// session opens the store, API client and session once.
func (a *App) session() (*session.Session, error) {
	if a.Session != nil {
		return a.Session, nil
	}
	if a.Config == nil {
		return nil, apperrors.ErrConfigInvalid
	}

	st, err := store.NewSQLiteStore(a.Config.StorePath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err)
	}
	client, err := api.NewClient(a.Config.API, a.Logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	a.Store = st
	a.Client = client
	a.Session = session.New(a.Config, client, store.NewPreferences(st), a.Logger)
	a.Logger.Debug().Str("store", a.Config.StorePath()).Str("api", client.BaseURL()).Msg("Session opened")
	return a.Session, nil
}

// resume opens the session and restores the remembered user.
func (a *App) resume(ctx context.Context) (*session.Session, error) {
	sess, err := a.session()
	if err != nil {
		return nil, err
	}
	if _, err := sess.Resume(ctx); err != nil {
		if apperrors.Is(err, apperrors.ErrNotAuthenticated) {
			return nil, fmt.Errorf("%w: run 'ecos login' first", err)
		}
		return nil, err
	}
	return sess, nil
}

// Close stops the session and closes the store.
func (a *App) Close() {
	if a.Session != nil {
		a.Session.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ecos",
		Short: "ECOS Terminal - Borsa Istanbul stock dashboard client",
		Long: `ECOS Terminal is a terminal client for the stock dashboard backend.

It lists stocks page by page, tracks and favorites symbols per user,
suggests symbols while typing and shows who else is online.

Use 'ecos dashboard' for the interactive view.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			if err := app.setup(configDir, debug, cmd.Name() == "dashboard"); err != nil {
				return err
			}
			cmd.SetContext(app.commandScope(cmd.Context(), cmd.CommandPath()))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/ecos-terminal)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("yaml", false, "output in YAML format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addAuthCommands(rootCmd, app)
	addStockCommands(rootCmd, app)
	addTrackingCommands(rootCmd, app)
	addAdminCommands(rootCmd, app)
	rootCmd.AddCommand(newDashboardCmd(app))

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Data(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("ECOS Terminal v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

type configView struct {
	Dir      string                `json:"dir" yaml:"dir"`
	Store    string                `json:"store" yaml:"store"`
	API      config.APIConfig      `json:"api" yaml:"api"`
	Paging   config.PagingConfig   `json:"paging" yaml:"paging"`
	Presence config.PresenceConfig `json:"presence" yaml:"presence"`
	Search   config.SearchConfig   `json:"search" yaml:"search"`
	Tracking config.TrackingConfig `json:"tracking" yaml:"tracking"`
	Breaker  config.BreakerConfig  `json:"breaker" yaml:"breaker"`
	Log      config.LogConfig      `json:"log" yaml:"log"`
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config
			if output.IsStructured() {
				return output.Data(configView{
					Dir: cfg.Dir, Store: cfg.StorePath(),
					API: cfg.API, Paging: cfg.Paging, Presence: cfg.Presence, Search: cfg.Search,
					Tracking: cfg.Tracking, Breaker: cfg.Breaker, Log: cfg.Log,
				})
			}
			showConfig(output, cfg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Data(map[string]string{"path": app.Config.Dir})
			}
			output.Println(app.Config.Dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsStructured() {
				return output.Data(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Backend")
	output.Printf("  Base URL:        %s\n", cfg.API.BaseURL)
	output.Printf("  Timeout:         %s\n", cfg.API.Timeout)
	output.Printf("  Page Size:       %d\n", cfg.Paging.PageSize)
	output.Println()

	output.Bold("Presence")
	output.Printf("  Heartbeat:       %s\n", cfg.Presence.HeartbeatInterval)
	output.Printf("  Roster:          %s\n", cfg.Presence.RosterInterval)
	output.Printf("  Breaker:         %d failures, %s cooldown\n", cfg.Breaker.FailureThreshold, cfg.Breaker.Timeout)
	output.Println()

	output.Bold("Search & Tracking")
	output.Printf("  Debounce:        %s\n", cfg.Search.Debounce)
	output.Printf("  Min Query:       %d\n", cfg.Search.MinQueryLength)
	output.Printf("  Max Tracked:     %d\n", cfg.Tracking.MaxSymbols)
	output.Printf("  Suffixes:        %v\n", cfg.Tracking.ExchangeSuffixes)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Config Dir:      %s\n", cfg.Dir)
	output.Printf("  Database:        %s\n", cfg.StorePath())
	output.Printf("  Log File:        %s\n", cfg.LogFilePath())
}
