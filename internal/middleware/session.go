package middleware

import (
	"context"
	"net/http"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/google/uuid"
)

type sessionKey struct{}

// Session makes sure every request carries a session_id cookie, issuing a
// fresh random one when the client has none, and puts the id in the context.
func Session(cookies auth.CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.GetSessionIDCookie(r)
			if err != nil || uuid.Validate(id) != nil {
				id = uuid.NewString()
				auth.SetSessionIDCookie(w, id, cookies)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
		})
	}
}

// SessionIDFromContext returns the id set by Session, or "" outside it
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// WithSessionID returns a copy of ctx carrying id
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}
