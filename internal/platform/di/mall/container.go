// internal/platform/di/mall/container.go
package mall

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"petshop/internal/adapters/in/http/middleware"
	dbout "petshop/internal/adapters/out/db"
	outfs "petshop/internal/adapters/out/firestore"
	"petshop/internal/adapters/out/memory"
	mallquery "petshop/internal/application/query/mall"
	appresolver "petshop/internal/application/resolver"
	usecase "petshop/internal/application/usecase"
	cartdom "petshop/internal/domain/cart"
	catalogdom "petshop/internal/domain/catalog"
	appcfg "petshop/internal/infra/config"
	shared "petshop/internal/platform/di/shared"
)

// Container is Mall DI container.
// Pure DI: build deps only. No routing branching.
type Container struct {
	Infra *shared.Infra

	CartRepo cartdom.Repository
	Catalog  catalogdom.Reader

	CartUC    *usecase.CartUsecase
	CartQuery *mallquery.CartQuery

	// nil when no verifier could be built; bearer tokens then get 503
	Verifier middleware.TokenVerifier
}

// NewContainer wires the cart service on top of infra.
func NewContainer(ctx context.Context, infra *shared.Infra) (*Container, error) {
	if infra == nil || infra.Config == nil {
		return nil, errors.New("di.mall: infra is nil")
	}
	cfg := infra.Config

	repo, catalog, err := buildStore(ctx, infra)
	if err != nil {
		return nil, err
	}

	// double-clicks fire identical lookups; share the in-flight call
	catalog = appresolver.NewCoalescingReader(catalog)

	verifier, err := buildVerifier(infra)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Infra:    infra,
		CartRepo: repo,
		Catalog:  catalog,
		CartUC: usecase.NewCartUsecase(repo, catalog,
			usecase.WithGuestTTL(cfg.GuestCartTTL),
			usecase.WithIDGenerator(uuid.NewString),
		),
		CartQuery: mallquery.NewCartQuery(catalog),
		Verifier:  verifier,
	}

	log.WithFields(log.Fields{
		"store":    cfg.CartStore,
		"auth":     cfg.AuthMode,
		"guestTTL": cfg.GuestCartTTL.String(),
	}).Info("[di.mall] container ready")

	return c, nil
}

// Close releases container-owned resources. Clients belong to Infra.
func (c *Container) Close() error { return nil }

func buildStore(ctx context.Context, infra *shared.Infra) (cartdom.Repository, catalogdom.Reader, error) {
	cfg := infra.Config

	switch cfg.CartStore {
	case appcfg.StoreFirestore:
		if infra.Firestore == nil {
			return nil, nil, errors.New("di.mall: firestore client is nil")
		}
		repo := outfs.NewCartRepositoryFS(infra.Firestore)
		repo.Collection = cfg.CartsCollection
		repo.Timeout = cfg.StorageTimeout

		cat := outfs.NewCatalogReaderFS(infra.Firestore)
		cat.Collection = cfg.ProductsCollection
		cat.Timeout = cfg.StorageTimeout
		return repo, cat, nil

	case appcfg.StorePostgres:
		if infra.DB == nil {
			return nil, nil, errors.New("di.mall: postgres connection is nil")
		}
		repo := dbout.NewCartRepositoryPG(infra.DB)
		repo.Timeout = cfg.StorageTimeout

		cat := dbout.NewCatalogReaderPG(infra.DB)
		cat.Timeout = cfg.StorageTimeout
		return repo, cat, nil

	case appcfg.StoreMemory:
		log.Warn("[di.mall] CART_STORE=memory: carts are lost on restart (local development only)")
		return memory.NewCartRepositoryMem(), seedDevCatalog(), nil

	default:
		return nil, nil, fmt.Errorf("di.mall: unknown cart store %q", cfg.CartStore)
	}
}

func buildVerifier(infra *shared.Infra) (middleware.TokenVerifier, error) {
	cfg := infra.Config

	switch cfg.AuthMode {
	case appcfg.AuthFirebase:
		if infra.FirebaseAuth == nil {
			log.Warn("[di.mall] AUTH_MODE=firebase but Firebase Auth is not initialized (bearer tokens will get 503)")
			return nil, nil
		}
		return &middleware.FirebaseVerifier{Client: infra.FirebaseAuth}, nil

	case appcfg.AuthJWT:
		v, err := middleware.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return nil, fmt.Errorf("di.mall: %w", err)
		}
		return v, nil

	default:
		log.Info("[di.mall] AUTH_MODE=none: guest carts only")
		return nil, nil
	}
}

// seedDevCatalog is the product set served by CART_STORE=memory.
func seedDevCatalog() *memory.CatalogMem {
	cat := memory.NewCatalogMem()
	cat.PutSimple("dog-kibble-5kg", "Dry Dog Kibble 5kg", "24.90", 40)
	cat.PutSimple("cat-litter-10l", "Clumping Cat Litter 10L", "12.50", 25)
	cat.PutSimple("squeaky-ball", "Squeaky Ball", "3.50", 100)
	cat.PutSimple("nylon-leash", "Nylon Leash 1.5m", "15.00", 8)
	cat.PutSimple("heated-bed", "Heated Pet Bed", "59.00", 0)
	return cat
}
