package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "ecos-terminal/internal/errors"
)

const commandTimeout = 30 * time.Second

// addAuthCommands adds authentication commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newLoginCmd(app))
	rootCmd.AddCommand(newLogoutCmd(app))
	rootCmd.AddCommand(newWhoamiCmd(app))
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, commandTimeout)
}

func newLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Log in to the dashboard backend",
		Long: `Log in to the dashboard backend.

The username is remembered so later commands and the dashboard resume
without logging in again. Missing username or password are prompted for.`,
		Example: `  ecos login
  ecos login ayse
  ecos login ayse --password=secret`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			in := bufio.NewReader(cmd.InOrStdin())
			username := ""
			if len(args) == 1 {
				username = args[0]
			} else {
				u, err := prompt(in, cmd.ErrOrStderr(), "Username: ")
				if err != nil {
					return err
				}
				username = u
			}
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				p, err := prompt(in, cmd.ErrOrStderr(), "Password: ")
				if err != nil {
					return err
				}
				password = p
			}
			if err := app.Validator.ValidateUsername(username); err != nil {
				return err
			}
			if err := app.Validator.ValidatePassword(password); err != nil {
				return err
			}

			sess, err := app.session()
			if err != nil {
				return err
			}
			if err := sess.Login(ctx, username, password); err != nil {
				if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
					output.Error("Invalid username or password")
				}
				return err
			}

			snap := sess.Snapshot()
			if output.IsStructured() {
				return output.Data(map[string]interface{}{
					"user":     sess.Username(),
					"tracked":  sess.Tracked(),
					"stocks":   len(snap.Stocks),
					"has_more": snap.HasMore,
				})
			}
			output.Success("✓ Logged in as %s", sess.Username())
			output.Dim("%d stocks on the first page, %d tracked symbols", len(snap.Stocks), len(sess.Tracked()))
			return nil
		},
	}
	cmd.Flags().String("password", "", "password (prompted when omitted)")
	return cmd
}

func prompt(in *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			sess, err := app.resume(ctx)
			if err != nil {
				if apperrors.Is(err, apperrors.ErrNotAuthenticated) {
					output.Warning("Not logged in")
					return nil
				}
				return err
			}
			user := sess.Username()
			if err := sess.Logout(ctx); err != nil {
				return err
			}
			output.Success("✓ Logged out %s", user)
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			user := ""
			if sess, err := app.resume(ctx); err == nil {
				user = sess.Username()
			} else if !apperrors.Is(err, apperrors.ErrNotAuthenticated) {
				return err
			}

			if output.IsStructured() {
				return output.Data(map[string]interface{}{"user": user, "authenticated": user != ""})
			}
			if user == "" {
				output.Warning("Not logged in")
				return nil
			}
			output.Println(user)
			return nil
		},
	}
}
