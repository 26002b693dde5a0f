// internal/platform/di/mall/register.go
package mall

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	mallhttp "petshop/internal/adapters/in/http/mall"
	mallhandler "petshop/internal/adapters/in/http/mall/handler"
	"petshop/internal/adapters/in/http/middleware"
)

// Healthz answers liveness probes.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// NewRouter builds the full mall handler:
// CORS -> RequestLog -> Recover -> (cart routes: Session -> OptionalUserAuth).
func NewRouter(cont *Container) http.Handler {
	var origins []string
	if cont != nil && cont.Infra != nil && cont.Infra.Config != nil {
		origins = cont.Infra.Config.CORSAllowedOrigins
	}

	r := chi.NewRouter()
	r.Use(middleware.CORS(origins))
	r.Use(middleware.RequestLog)
	r.Use(middleware.Recover)

	r.Get("/healthz", Healthz)

	r.Group(func(r chi.Router) {
		Register(r, cont)
	})

	return r
}

// Register registers mall routes onto r.
// Pure DI: construct handlers and pass into mall router.Register.
func Register(r chi.Router, cont *Container) {
	if r == nil {
		return
	}

	deps := mallhttp.Deps{}
	if cont == nil || cont.CartUC == nil || cont.CartQuery == nil {
		log.Error("[mall.register] container is not initialized (cart routes will 404)")
		mallhttp.Register(r, deps)
		return
	}

	auth := &middleware.OptionalUserAuth{Verifier: cont.Verifier}
	r.Use(middleware.Session(uuid.NewString))
	r.Use(auth.Handler)

	deps.Cart = mallhandler.NewCartHandler(cont.CartUC, cont.CartQuery)
	mallhttp.Register(r, deps)
}
