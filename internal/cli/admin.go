package cli

import (
	"bufio"

	"github.com/spf13/cobra"
)

// addAdminCommands adds account administration commands.
func addAdminCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Account administration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "users",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			sess, err := app.session()
			if err != nil {
				return err
			}
			users, err := sess.Users(ctx)
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Data(users)
			}
			for _, u := range users {
				output.Println(u)
			}
			output.Dim("%d users", len(users))
			return nil
		},
	})

	create := &cobra.Command{
		Use:     "create-user USERNAME",
		Short:   "Register a new user",
		Example: "  ecos admin create-user mehmet --password=secret",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				p, err := prompt(bufio.NewReader(cmd.InOrStdin()), cmd.ErrOrStderr(), "Password: ")
				if err != nil {
					return err
				}
				password = p
			}

			if err := app.Validator.ValidateUsername(args[0]); err != nil {
				return err
			}
			if err := app.Validator.ValidatePassword(password); err != nil {
				return err
			}

			sess, err := app.session()
			if err != nil {
				return err
			}
			if err := sess.CreateUser(ctx, args[0], password); err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Data(map[string]string{"created": args[0]})
			}
			output.Success("✓ User %s created", args[0])
			return nil
		},
	}
	create.Flags().String("password", "", "password (prompted when omitted)")
	cmd.AddCommand(create)

	rootCmd.AddCommand(cmd)
}
