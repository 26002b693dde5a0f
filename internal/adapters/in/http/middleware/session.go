package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// SessionHeader carries the guest session id in both directions.
// The storefront keeps it in localStorage and sends it on every cart call.
const SessionHeader = "X-Session-Id"

const maxSessionIDLen = 128

// Session attaches a guest session id to every request.
// A missing or malformed header gets a fresh id; the effective id is echoed
// back in the response header so the client can persist it.
func Session(newID func() string) func(http.Handler) http.Handler {
	if newID == nil {
		newID = uuid.NewString
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := strings.TrimSpace(r.Header.Get(SessionHeader))
			if !validSessionID(sid) {
				sid = newID()
			}

			w.Header().Set(SessionHeader, sid)
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
		})
	}
}

// validSessionID accepts letters, digits and "-_." up to maxSessionIDLen.
func validSessionID(sid string) bool {
	if sid == "" || len(sid) > maxSessionIDLen {
		return false
	}
	for i := 0; i < len(sid); i++ {
		c := sid[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}
