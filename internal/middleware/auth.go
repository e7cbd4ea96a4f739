package middleware

import (
	"context"
	"net/http"

	"github.com/HammerMeetNail/kinship/internal/handlers"
	"github.com/HammerMeetNail/kinship/internal/models"
)

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*models.SessionIdentity, bool)
}

type AuthMiddleware struct {
	sessions SessionValidator
}

func NewAuthMiddleware(sessions SessionValidator) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Authenticate resolves a bearer token into the request context. Requests
// without a valid token pass through anonymously.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := handlers.BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, ok := m.sessions.ValidateSession(r.Context(), token)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := handlers.SetUserInContext(r.Context(), identity)
		ctx = handlers.SetTokenInContext(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
