// internal/platform/di/shared/infra.go
package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	appcfg "petshop/internal/infra/config"
	"petshop/internal/infra/database"
)

// Infra is shared runtime infrastructure for DI.
// - owns external clients (Firestore/FirebaseAuth/SecretManager/Postgres)
// - clients are built only when the configured store or auth mode needs them
//
// IMPORTANT:
// Infra must NOT depend on routers, handlers, or queries.
type Infra struct {
	Config    *appcfg.Config
	ProjectID string

	// Clients (owned; Close-managed)
	Firestore     *firestore.Client
	FirebaseApp   *firebase.App
	FirebaseAuth  *firebaseauth.Client
	SecretManager *secretmanager.Client
	DB            *sqlx.DB
}

// NewInfra initializes shared infra.
// The cart store (Firestore or Postgres) is strict (return error).
// Firebase Auth is best-effort (warn + continue); bearer tokens then get 503.
func NewInfra(ctx context.Context, cfg *appcfg.Config) (*Infra, error) {
	if cfg == nil {
		return nil, errors.New("shared.infra: config is nil")
	}

	inf := &Infra{
		Config:    cfg,
		ProjectID: cfg.ProjectID(),
	}

	// Credentials file (optional; mainly for local dev)
	var clientOpts []option.ClientOption
	if credFile := cfg.CredentialsFile(); credFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credFile))
		log.Infof("[shared.infra] Using credentials file for GCP clients: %s", redactPath(credFile))
	} else if cfg.NeedsGCP() {
		log.Info("[shared.infra] Using Application Default Credentials (no credentials file configured)")
	}

	// 1) Firestore (strict when it backs the cart store)
	if cfg.CartStore == appcfg.StoreFirestore {
		fsClient, err := firestore.NewClient(ctx, inf.ProjectID, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("shared.infra: firestore.NewClient failed (project=%s): %w", inf.ProjectID, err)
		}
		inf.Firestore = fsClient
		log.Infof("[shared.infra] Firestore connected project=%s", inf.ProjectID)
	}

	// 2) Postgres (strict when it backs the cart store)
	if cfg.CartStore == appcfg.StorePostgres {
		dsn := strings.TrimSpace(cfg.DatabaseURL)
		if dsn == "" {
			sm, err := secretmanager.NewClient(ctx, clientOpts...)
			if err != nil {
				_ = inf.Close()
				return nil, fmt.Errorf("shared.infra: secretmanager.NewClient failed: %w", err)
			}
			inf.SecretManager = sm

			dsn, err = NewSecretProviderSM(sm, inf.ProjectID).Access(ctx, cfg.DatabaseURLSecret)
			if err != nil {
				_ = inf.Close()
				return nil, fmt.Errorf("shared.infra: resolve DATABASE_URL_SECRET: %w", err)
			}
			log.Info("[shared.infra] DATABASE_URL resolved from Secret Manager")
		}

		db, err := database.NewConnection(ctx, dsn)
		if err != nil {
			_ = inf.Close()
			return nil, fmt.Errorf("shared.infra: %w", err)
		}
		inf.DB = db
	}

	// 3) Firebase App/Auth (best-effort)
	if cfg.AuthMode == appcfg.AuthFirebase {
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: inf.ProjectID}, clientOpts...)
		if err != nil {
			log.Warnf("[shared.infra] firebase app init failed: %v", err)
		} else {
			inf.FirebaseApp = fbApp
			authClient, err := fbApp.Auth(ctx)
			if err != nil {
				log.Warnf("[shared.infra] firebase auth init failed: %v", err)
			} else {
				inf.FirebaseAuth = authClient
				log.Info("[shared.infra] Firebase Auth initialized")
			}
		}
	}

	return inf, nil
}

func (i *Infra) Close() error {
	if i == nil {
		return nil
	}
	var errs []error
	if i.Firestore != nil {
		errs = append(errs, i.Firestore.Close())
		i.Firestore = nil
	}
	if i.SecretManager != nil {
		errs = append(errs, i.SecretManager.Close())
		i.SecretManager = nil
	}
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
		i.DB = nil
	}
	return errors.Join(errs...)
}

func redactPath(p string) string {
	// Do not log full path (Windows/Unix compatible light masking)
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	last := p[strings.LastIndex(p, "/")+1:]
	if last == "" {
		return "***"
	}
	return "***/" + last
}
