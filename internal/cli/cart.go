package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	cartdom "petshop/internal/domain/cart"
)

// NewGetCommand creates the get command.
// It reads without writing: a missing cart is reported, not created.
func NewGetCommand(rootOpts *RootOptions, open Opener) *cobra.Command {
	var userID, sessionID string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show a cart with live prices",
		Example: `  cartctl get --user u-42
  cartctl get --session 3f2a9c --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := cartdom.ResolveOwner(userID, sessionID)
			if err != nil {
				return WrapExitError(ExitCommandError, "--user or --session is required", err)
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

			return withEnv(cmd.Context(), open, func(env *Env) error {
				c, err := env.Repo.GetByOwner(cmd.Context(), owner)
				if err != nil {
					return WrapExitError(ExitFailure, "get failed", err)
				}
				if c == nil {
					return out.Success(messageText{Message: "no cart for " + owner.Key()})
				}
				view, err := env.Views.View(cmd.Context(), c)
				if err != nil {
					return WrapExitError(ExitFailure, "view failed", err)
				}
				return out.Success(cartText{view})
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&sessionID, "session", "", "guest session id")
	cmd.MarkFlagsMutuallyExclusive("user", "session")
	return cmd
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions, open Opener) *cobra.Command {
	var userID, sessionID string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a guest cart into a user's cart",
		Long: `Folds the guest cart of --session into the cart of --user, exactly as a login does.
Safe to re-run: once the guest cart is gone the user cart is returned unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" || strings.TrimSpace(sessionID) == "" {
				return NewExitError(ExitCommandError, "--user and --session are required")
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

			return withEnv(cmd.Context(), open, func(env *Env) error {
				c, err := env.Carts.MergeOnLogin(cmd.Context(), userID, sessionID)
				if err != nil {
					return WrapExitError(ExitFailure, "merge failed", err)
				}
				view, err := env.Views.View(cmd.Context(), c)
				if err != nil {
					return WrapExitError(ExitFailure, "view failed", err)
				}
				return out.Success(cartText{view})
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&sessionID, "session", "", "guest session id (required)")
	return cmd
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete guest carts past their expiry",
		Long: `Deletes every guest cart whose expiresAt has passed. User carts never expire.
On Firestore a TTL policy on expiresAt does the same; sweep is the manual/Postgres path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

			return withEnv(cmd.Context(), open, func(env *Env) error {
				n, err := env.Carts.SweepExpired(cmd.Context())
				if err != nil {
					if errors.Is(err, cartdom.ErrStorageUnavailable) {
						return WrapExitError(ExitFailure, "storage unavailable, retry", err)
					}
					return WrapExitError(ExitFailure, "sweep failed", err)
				}
				return out.Success(sweepText{Deleted: n})
			})
		},
	}
}
