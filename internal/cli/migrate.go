package cli

import (
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command (Postgres only).
func NewMigrateCommand(rootOpts *RootOptions, open Opener) *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres migrations",
		Long: `Applies every pending migration (carts, products tables).
With --down N, rolls back the last N migrations instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if down < 0 {
				return NewExitError(ExitCommandError, "--down must be >= 0")
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

			return withEnv(cmd.Context(), open, func(env *Env) error {
				if env.Migrate == nil {
					return NewExitError(ExitCommandError, "migrate requires CART_STORE=postgres")
				}
				if err := env.Migrate(cmd.Context(), down); err != nil {
					return WrapExitError(ExitFailure, "migrate failed", err)
				}
				if down > 0 {
					return out.Success(messageText{Message: "rolled back migrations"})
				}
				return out.Success(messageText{Message: "migrations applied"})
			})
		},
	}

	cmd.Flags().IntVar(&down, "down", 0, "roll back N migrations")
	return cmd
}
