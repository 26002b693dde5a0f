// cmd/mall/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"petshop/internal/adapters/in/http/middleware"
	appcfg "petshop/internal/infra/config"
	mallDI "petshop/internal/platform/di/mall"
	shared "petshop/internal/platform/di/shared"
	"petshop/internal/platform/logging"
)

// atomicHandler allows swapping the underlying handler at runtime safely.
type atomicHandler struct {
	v atomic.Value // stores http.Handler
}

func newAtomicHandler(initial http.Handler) *atomicHandler {
	ah := &atomicHandler{}
	if initial == nil {
		initial = http.NotFoundHandler()
	}
	ah.v.Store(initial)
	return ah
}

func (h *atomicHandler) Store(next http.Handler) {
	if next == nil {
		return
	}
	h.v.Store(next)
}

func (h *atomicHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cur := h.v.Load()
	if cur == nil {
		http.NotFound(w, r)
		return
	}
	cur.(http.Handler).ServeHTTP(w, r)
}

func main() {
	ctx := context.Background()

	// .env is optional (local dev)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("[boot] .env not loaded: %v", err)
	}

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("[boot] %v", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	port := strings.TrimSpace(cfg.Port)
	if port == "" {
		port = "8080"
	}

	// ─────────────────────────────────────────────────────────────
	// Start listening ASAP with lightweight mux (healthz only)
	// ─────────────────────────────────────────────────────────────
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", mallDI.Healthz)

	switcher := newAtomicHandler(middleware.CORS(cfg.CORSAllowedOrigins)(healthMux))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      switcher,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var infraHolder atomic.Pointer[shared.Infra]
	var mallHolder atomic.Pointer[mallDI.Container]

	shuttingDown := make(chan struct{})

	// ─────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		sig := <-c

		close(shuttingDown)
		log.Infof("[boot] received signal: %v; shutting down...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("[boot] server shutdown error: %v", err)
		}

		if cont := mallHolder.Swap(nil); cont != nil {
			if err := cont.Close(); err != nil {
				log.Warnf("[boot] mall container close error: %v", err)
			}
		}
		if infra := infraHolder.Swap(nil); infra != nil {
			log.Info("[boot] closing infra resources...")
			if err := infra.Close(); err != nil {
				log.Warnf("[boot] infra close error: %v", err)
			}
		}

		close(idleConnsClosed)
	}()

	// Start server NOW (Cloud Run startup requirement)
	go func() {
		log.Infof("[boot] listening on :%s (mall)", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[boot] server error: %v", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────
	// Heavy DI init in background; then swap handler to full router
	// ─────────────────────────────────────────────────────────────
	go func() {
		initCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		infra, err := shared.NewInfra(initCtx, cfg)
		if err != nil {
			log.Warnf("[boot] shared infra init failed: %v (serving /healthz only)", err)
			return
		}
		infraHolder.Store(infra)

		cont, err := mallDI.NewContainer(initCtx, infra)
		if err != nil {
			if infra := infraHolder.Swap(nil); infra != nil {
				_ = infra.Close()
			}
			log.Warnf("[boot] mall di init failed: %v (serving /healthz only)", err)
			return
		}
		mallHolder.Store(cont)

		select {
		case <-shuttingDown:
			// init finished after the shutdown goroutine released holders
			if cont := mallHolder.Swap(nil); cont != nil {
				_ = cont.Close()
			}
			if infra := infraHolder.Swap(nil); infra != nil {
				_ = infra.Close()
			}
			return
		default:
		}

		switcher.Store(mallDI.NewRouter(cont))
		log.Info("[boot] handler switched to mall router")
	}()

	<-idleConnsClosed
	log.Info("[boot] server stopped")
}
