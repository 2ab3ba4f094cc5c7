package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// TokenParser resolves a session token to an identity. The auth service
// satisfies this.
type TokenParser interface {
	ParseToken(token string) (domain.Identity, error)
}

type contextKey struct{}

var identityKey contextKey

// Identity returns middleware that resolves a Bearer token from the
// Authorization header into a domain.Identity and stores it in the request
// context. Requests without a token pass through anonymously; handlers that
// need an identity reject those themselves. A present but invalid token is a
// hard 401, so a caller never runs with a silently dropped session.
func Identity(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := parser.ParseToken(token)
			if err != nil {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid session token"}`))
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom extracts the caller identity from the request context.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}

// bearerToken extracts a Bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
