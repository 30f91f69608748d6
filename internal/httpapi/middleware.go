package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/parley-chat/parley/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// requireAuth validates the `Authorization: Bearer <token>` header and
// injects the claims into the request context. The WebSocket endpoint keeps
// its own query-parameter credential and does not use this middleware.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			a.writeMessage(w, http.StatusUnauthorized, "Authorization token is missing")
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := a.validator.Validate(token)
		if err != nil {
			a.writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}
