// internal/adapters/in/http/mall/router.go
package mall

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// Deps is the buyer-facing (mall) handler set.
type Deps struct {
	// /mall/me/cart (+ /{productId}, /merge)
	Cart http.Handler
}

// handleSafe mounts h under pattern.
// If h is nil, it logs and mounts NotFoundHandler instead so the server still boots.
func handleSafe(r chi.Router, pattern string, h http.Handler, name string) {
	if h == nil {
		log.Warnf("[mall.router] nil handler: %s pattern=%s (registering NotFoundHandler)", name, pattern)
		h = http.NotFoundHandler()
	}
	r.Mount(pattern, h)
}

// Register registers buyer-facing routes onto r (mall only).
func Register(r chi.Router, deps Deps) {
	if r == nil {
		return
	}
	handleSafe(r, "/mall/me/cart", deps.Cart, "Cart")
}
