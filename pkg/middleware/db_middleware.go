package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/loadwise/loadwise/pkg/composables"
)

// WithTenantTx runs each request inside a single transaction carrying the
// tenant RLS setting. Requests arriving without a pool in context, like the
// controller unit tests, pass through untouched.
func WithTenantTx() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := composables.UsePool(r.Context()); err != nil {
				next.ServeHTTP(w, r)
				return
			}
			err := composables.InTenantTx(r.Context(), func(ctx context.Context) error {
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		})
	}
}
