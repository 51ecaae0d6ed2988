package middleware

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader carries the caller's identity, set by the upstream gateway.
const UserIDHeader = "X-User-ID"

type contextKey string

const userIDKey contextKey = "user_id"

// ContextWithUserID returns a copy of ctx carrying userID.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the caller's id, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Identity copies the gateway-provided user id into the request context.
// The service never authenticates; a missing header leaves the request anonymous.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
			r = r.WithContext(ContextWithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
