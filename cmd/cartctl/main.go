// cmd/cartctl/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"petshop/internal/cli"
	appcfg "petshop/internal/infra/config"
	"petshop/internal/infra/database"
	mallDI "petshop/internal/platform/di/mall"
	shared "petshop/internal/platform/di/shared"
	"petshop/internal/platform/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "cartctl: .env not loaded: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand(open).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cartctl: %v\n", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}

// open wires the same container the server uses. Logs go to stderr so
// --format json output stays machine-readable.
func open(ctx context.Context) (*cli.Env, error) {
	cfg, err := appcfg.Load()
	if err != nil {
		return nil, err
	}
	logging.SetupTo(os.Stderr, cfg.LogLevel, "text")

	infra, err := shared.NewInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cont, err := mallDI.NewContainer(ctx, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	env := &cli.Env{
		Repo:  cont.CartRepo,
		Carts: cont.CartUC,
		Views: cont.CartQuery,
		Close: func() error {
			return errors.Join(cont.Close(), infra.Close())
		},
	}
	if infra.DB != nil {
		db := infra.DB.DB
		env.Migrate = func(_ context.Context, down int) error {
			if down > 0 {
				return database.MigrateDown(db, down)
			}
			return database.Migrate(db)
		}
	}

	log.WithField("store", cfg.CartStore).Debug("[cartctl] environment ready")
	return env, nil
}
