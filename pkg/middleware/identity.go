package middleware

import (
	"context"
	"net/http"

	"istishara/pkg/logger"
	"istishara/pkg/model"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

const PrincipalKey contextKey = "principal"

// Identity extracts the gateway-authenticated principal from trusted
// headers. The core does no credential checks of its own: upstream
// terminates auth, we only carry who the caller is.
func Identity(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(HeaderUserID)
			if userID == "" {
				log.Warn("Missing identity headers",
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Missing authenticated identity"}`))
				return
			}

			principal := model.Principal{
				UserID: userID,
				Role:   model.Role(r.Header.Get(HeaderUserRole)),
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(PrincipalKey).(model.Principal)
	return principal, ok
}
