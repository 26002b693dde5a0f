package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"petshop/internal/application/query/mall/dto"
	cartdom "petshop/internal/domain/cart"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// CartService is the slice of the cart usecase the CLI drives.
type CartService interface {
	MergeOnLogin(ctx context.Context, userID, sessionID string) (*cartdom.Cart, error)
	SweepExpired(ctx context.Context) (int, error)
}

// CartViewer renders a cart with live prices.
type CartViewer interface {
	View(ctx context.Context, c *cartdom.Cart) (dto.CartDTO, error)
}

// Env is what a command needs from the wired service.
type Env struct {
	Repo  cartdom.Repository
	Carts CartService
	Views CartViewer

	// nil unless the store is Postgres
	Migrate func(ctx context.Context, down int) error

	Close func() error
}

// Opener builds an Env from configuration. Commands call it lazily so
// --help and flag errors never touch storage.
type Opener func(ctx context.Context) (*Env, error)

// NewRootCommand creates the root command for cartctl.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cartctl",
		Short: "cartctl - operate the storefront cart service",
		Long:  "Inspect carts, run guest-to-user merges, sweep expired guest carts and apply database migrations.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewGetCommand(opts, open))
	cmd.AddCommand(NewMergeCommand(opts, open))
	cmd.AddCommand(NewSweepCommand(opts, open))
	cmd.AddCommand(NewMigrateCommand(opts, open))

	return cmd
}

// withEnv opens the Env, runs fn and closes it.
func withEnv(ctx context.Context, open Opener, fn func(env *Env) error) error {
	if open == nil {
		return NewExitError(ExitCommandError, "cartctl is not configured")
	}
	env, err := open(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	if env.Close != nil {
		defer func() { _ = env.Close() }()
	}
	return fn(env)
}
