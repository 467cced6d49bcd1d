package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "refward/pkg/domain"
)

// TokenValidator validates an access token minted by the upstream identity
// gateway and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims is the subset of access-token claims the engine consumes.
type TokenClaims struct {
	UserID    id.UserID
	SessionID string
}

type contextKeyUserID struct{}
type contextKeySessionID struct{}

// GetUserID retrieves the authenticated user from the context. The zero
// UserID means the request did not pass RequireAuth.
func GetUserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(contextKeyUserID{}).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// GetSessionID retrieves the session ID from the context.
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(contextKeySessionID{}).(string); ok {
		return sessionID
	}
	return ""
}

// WithUser injects an authenticated user into a context. Handler tests use
// this instead of minting tokens.
func WithUser(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, contextKeyUserID{}, userID)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated user in the context for handlers downstream.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized request: missing bearer token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "missing or malformed Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized request: invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, contextKeyUserID{}, claims.UserID)
			ctx = context.WithValue(ctx, contextKeySessionID{}, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
