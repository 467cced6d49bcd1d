package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// RequireServiceToken guards service-to-service routes (conversion webhooks,
// payout operations) with a static bearer token shared with internal
// callers. User JWTs are not accepted on these routes.
func RequireServiceToken(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" ||
				subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logger.WarnContext(r.Context(), "unauthorized service request",
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				writeUnauthorized(w, "invalid service token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
