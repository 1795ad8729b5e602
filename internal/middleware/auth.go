package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/miryas-ai/backend/internal/auth"
	"github.com/miryas-ai/backend/pkg/utils"
)

// RequireAuth enforces bearer token auth and injects the verified claims into
// the request context. Requests are rejected before any other processing.
func RequireAuth(verifier *auth.Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				logger.Warn("auth failure: missing authorization header", zap.String("path", r.URL.Path))
				utils.RespondError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := extractBearerToken(header)
			if !ok {
				logger.Warn("auth failure: malformed authorization header", zap.String("path", r.URL.Path))
				utils.RespondError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("auth failure: token invalid", zap.String("path", r.URL.Path), zap.Error(err))
				utils.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
