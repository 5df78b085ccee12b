package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/loadwise/loadwise/pkg/composables"
	"github.com/loadwise/loadwise/pkg/configuration"
)

// WithIdentity resolves the caller's tenant and user from the configured
// request headers. Requests without a tenant header run under the default
// tenant; a malformed header is rejected. The user header is optional and
// its absence leaves uuid.Nil as the anonymous user.
func WithIdentity() mux.MiddlewareFunc {
	conf := configuration.Use()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tenantID := conf.DefaultTenant()
			if raw := r.Header.Get(conf.TenantIDHeader); raw != "" {
				parsed, err := uuid.Parse(raw)
				if err != nil {
					logger := composables.UseLogger(ctx)
					logger.WithField("tenant-header", raw).WithError(err).Warn("malformed tenant id header")
					http.Error(w, "invalid tenant id", http.StatusBadRequest)
					return
				}
				tenantID = parsed
			}
			ctx = composables.WithTenantID(ctx, tenantID)

			if raw := r.Header.Get(conf.UserIDHeader); raw != "" {
				parsed, err := uuid.Parse(raw)
				if err != nil {
					logger := composables.UseLogger(ctx)
					logger.WithField("user-header", raw).WithError(err).Warn("malformed user id header")
					http.Error(w, "invalid user id", http.StatusBadRequest)
					return
				}
				ctx = composables.WithUserID(ctx, parsed)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
