package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/ec-checkout/internal/auth"
	"github.com/example/ec-checkout/internal/domain/cart"
)

// ExtractToken extracts JWT token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// OptionalAuth adds user claims to the context when a valid token is present.
// Requests without one, or with a bad one, continue as the guest. A nil tokens
// service disables token identity entirely.
func OptionalAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens != nil {
				if tokenString := ExtractToken(r); tokenString != "" {
					if claims, err := tokens.Verify(tokenString); err == nil {
						ctx := context.WithValue(r.Context(), UserContextKey, claims)
						r = r.WithContext(ctx)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext retrieves user claims from the request context
func GetUserFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*auth.Claims)
	return claims, ok
}

// Identity returns the cart identity for the request: the user id, or the guest sentinel.
func Identity(ctx context.Context) string {
	if claims, ok := GetUserFromContext(ctx); ok && claims.UserID != "" {
		return claims.UserID
	}
	return cart.Guest
}
