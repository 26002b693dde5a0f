package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey struct{ name string }

var (
	ctxKeyUID       = ctxKey{name: "uid"}
	ctxKeySessionID = ctxKey{name: "sessionId"}
	ctxKeyRequestID = ctxKey{name: "requestId"}
)

// WithUserUID stores the authenticated uid.
func WithUserUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKeyUID, strings.TrimSpace(uid))
}

// WithSessionID stores the effective guest session id.
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, strings.TrimSpace(sid))
}

// CurrentUserUID returns the verified uid, if the request carried a valid bearer token.
func CurrentUserUID(r *http.Request) (string, bool) {
	return stringFromContext(r.Context(), ctxKeyUID)
}

// CurrentSessionID returns the session id attached by Session.
func CurrentSessionID(r *http.Request) (string, bool) {
	return stringFromContext(r.Context(), ctxKeySessionID)
}

func RequestID(ctx context.Context) string {
	s, _ := stringFromContext(ctx, ctxKeyRequestID)
	return s
}

func stringFromContext(ctx context.Context, key ctxKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func maskID(s string) string {
	t := strings.TrimSpace(s)
	if len(t) <= 8 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
