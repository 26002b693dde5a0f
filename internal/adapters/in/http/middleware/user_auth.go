package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// TokenVerifier turns a bearer token into a user id.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (uid string, err error)
}

// OptionalUserAuth verifies a bearer token when one is present.
//   - no Authorization header: the request continues as a guest
//   - a valid token: uid is stored in context
//   - a malformed or invalid token: 401 (never silently downgraded to guest)
type OptionalUserAuth struct {
	Verifier TokenVerifier
}

func (m *OptionalUserAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		if m == nil || m.Verifier == nil {
			log.Error("[user_auth] bearer token received but no verifier is configured")
			writeAuthErr(w, http.StatusServiceUnavailable, "user_auth_not_initialized")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeAuthErr(w, http.StatusUnauthorized, "invalid_authorization_header")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			writeAuthErr(w, http.StatusUnauthorized, "empty_bearer_token")
			return
		}

		uid, err := m.Verifier.VerifyToken(r.Context(), token)
		if err != nil {
			log.WithField("len", len(token)).Infof("[user_auth] token rejected err=%v", err)
			writeAuthErr(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		uid = strings.TrimSpace(uid)
		if uid == "" {
			writeAuthErr(w, http.StatusUnauthorized, "invalid_uid_in_token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserUID(r.Context(), uid)))
	})
}

// RequireUser rejects requests without a verified uid.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUserUID(r); !ok {
			writeAuthErr(w, http.StatusUnauthorized, "login_required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthErr(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
