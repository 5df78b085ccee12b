package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/loadwise/loadwise/pkg/composables"
	"github.com/loadwise/loadwise/pkg/configuration"
)

// RequestParams packs per-request metadata into the context for composables.
func RequestParams() mux.MiddlewareFunc {
	conf := configuration.Use()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params := &composables.Params{
				IP:        getRealIP(r, conf),
				UserAgent: r.UserAgent(),
				Request:   r,
				Writer:    w,
			}
			next.ServeHTTP(w, r.WithContext(composables.WithParams(r.Context(), params)))
		})
	}
}
