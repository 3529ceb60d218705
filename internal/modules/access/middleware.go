package access

import (
	"context"
	"net/http"
	"strings"

	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
)

// TokenVerifier turns a bearer token into an actor.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Actor, error)
}

// Authenticate rejects requests without a valid bearer token and stores the
// actor in the request context.
func Authenticate(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
				httpx.Error(w, apperror.Unauthenticated("authorization header required"))
				return
			}
			actor, err := verifier.VerifyToken(r.Context(), strings.TrimSpace(header[7:]))
			if err != nil || actor == nil {
				httpx.Error(w, apperror.Unauthenticated("invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole lets only the listed roles through.
func RequireRole(roles ...Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := FromContext(r.Context())
			if actor == nil {
				httpx.Error(w, apperror.Unauthenticated("authentication required"))
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Error(w, apperror.Unauthorized(string(ReasonNoAccess), "role not permitted"))
		})
	}
}
