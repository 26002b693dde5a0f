// internal/infra/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Cart storage backends.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

// Auth modes for the bearer token verifier.
const (
	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
	AuthNone     = "none"
)

// Config holds the environment settings for the mall service and cartctl.
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	CartStore string `envconfig:"CART_STORE" default:"firestore"`

	// GCP project, first non-empty wins (see ProjectID)
	FirestoreProjectID string `envconfig:"FIRESTORE_PROJECT_ID"`
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	GoogleCloudProject string `envconfig:"GOOGLE_CLOUD_PROJECT"`

	FirestoreCredentialsFile string `envconfig:"FIRESTORE_CREDENTIALS_FILE"`
	GCPCreds                 string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`

	CartsCollection    string `envconfig:"CARTS_COLLECTION" default:"carts"`
	ProductsCollection string `envconfig:"PRODUCTS_COLLECTION" default:"products"`

	// Postgres; DATABASE_URL_SECRET is a Secret Manager secret id or full version name
	DatabaseURL       string `envconfig:"DATABASE_URL"`
	DatabaseURLSecret string `envconfig:"DATABASE_URL_SECRET"`

	AuthMode  string `envconfig:"AUTH_MODE" default:"firebase"`
	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER"`

	GuestCartTTL   time.Duration `envconfig:"GUEST_CART_TTL" default:"168h"`
	StorageTimeout time.Duration `envconfig:"STORAGE_TIMEOUT" default:"5s"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads the environment into Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.CartStore = strings.ToLower(strings.TrimSpace(c.CartStore))
	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))

	origins := c.CORSAllowedOrigins[:0]
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSAllowedOrigins = origins
}

// Validate rejects inconsistent combinations.
func (c *Config) Validate() error {
	var errs []error

	switch c.CartStore {
	case StoreFirestore:
		if c.ProjectID() == "" {
			errs = append(errs, errors.New("CART_STORE=firestore requires FIRESTORE_PROJECT_ID, GCP_PROJECT_ID or GOOGLE_CLOUD_PROJECT"))
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" && strings.TrimSpace(c.DatabaseURLSecret) == "" {
			errs = append(errs, errors.New("CART_STORE=postgres requires DATABASE_URL or DATABASE_URL_SECRET"))
		}
		if strings.TrimSpace(c.DatabaseURL) == "" && c.ProjectID() == "" {
			errs = append(errs, errors.New("DATABASE_URL_SECRET requires a GCP project id"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown CART_STORE %q", c.CartStore))
	}

	switch c.AuthMode {
	case AuthFirebase:
		if c.ProjectID() == "" {
			errs = append(errs, errors.New("AUTH_MODE=firebase requires a GCP project id"))
		}
	case AuthJWT:
		if strings.TrimSpace(c.JWTSecret) == "" {
			errs = append(errs, errors.New("AUTH_MODE=jwt requires JWT_SECRET"))
		}
	case AuthNone:
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode))
	}

	if c.GuestCartTTL <= 0 {
		errs = append(errs, errors.New("GUEST_CART_TTL must be positive"))
	}
	if c.StorageTimeout <= 0 {
		errs = append(errs, errors.New("STORAGE_TIMEOUT must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ProjectID returns the GCP project used by Firestore, Firebase Auth and Secret Manager.
func (c *Config) ProjectID() string {
	for _, v := range []string{c.FirestoreProjectID, c.GCPProjectID, c.GoogleCloudProject} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// CredentialsFile returns the explicit credentials file, if any.
func (c *Config) CredentialsFile() string {
	if v := strings.TrimSpace(c.FirestoreCredentialsFile); v != "" {
		return v
	}
	return strings.TrimSpace(c.GCPCreds)
}

// NeedsGCP reports whether any GCP client must be built.
func (c *Config) NeedsGCP() bool {
	return c.CartStore == StoreFirestore ||
		c.AuthMode == AuthFirebase ||
		(c.CartStore == StorePostgres && strings.TrimSpace(c.DatabaseURL) == "")
}
