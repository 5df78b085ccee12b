package controllers

import (
	"net/http"
	"strings"

	"github.com/loadwise/loadwise/pkg/routing"
)

type ErrorHandlersOptions struct {
	Entrypoint    string
	AllowlistPath string
}

func NotFound(opts ...ErrorHandlersOptions) http.HandlerFunc {
	classifier := errorClassifier(opts)

	return func(w http.ResponseWriter, r *http.Request) {
		class := classifier.ClassifyPath(r.URL.Path)
		if class == routing.RouteClassInternalAPI || class == routing.RouteClassPublicAPI || class == routing.RouteClassWebhook {
			meta := map[string]string{
				"path": r.URL.Path,
			}
			if requestID := requestIDFromResponse(w, r); requestID != "" {
				meta["request_id"] = requestID
			}
			writeJSONError(w, http.StatusNotFound, "NOT_FOUND", "not found", meta)
			return
		}
		http.NotFound(w, r)
	}
}

func MethodNotAllowed(opts ...ErrorHandlersOptions) http.HandlerFunc {
	classifier := errorClassifier(opts)

	return func(w http.ResponseWriter, r *http.Request) {
		class := classifier.ClassifyPath(r.URL.Path)
		if class == routing.RouteClassInternalAPI || class == routing.RouteClassPublicAPI || class == routing.RouteClassWebhook {
			meta := map[string]string{
				"method": r.Method,
				"path":   r.URL.Path,
			}
			if requestID := requestIDFromResponse(w, r); requestID != "" {
				meta["request_id"] = requestID
			}
			writeJSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", meta)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func errorClassifier(opts []ErrorHandlersOptions) *routing.Classifier {
	var resolvedOpts ErrorHandlersOptions
	if len(opts) > 0 {
		resolvedOpts = opts[0]
	}
	rules, err := routing.LoadAllowlist(resolvedOpts.AllowlistPath, resolvedOpts.Entrypoint)
	if err != nil {
		rules = nil
	}
	return routing.NewClassifier(rules)
}

func requestIDFromResponse(w http.ResponseWriter, r *http.Request) string {
	if w != nil {
		if requestID := strings.TrimSpace(w.Header().Get("X-Request-Id")); requestID != "" {
			return requestID
		}
		if requestID := strings.TrimSpace(w.Header().Get("X-Request-ID")); requestID != "" {
			return requestID
		}
	}
	if r != nil {
		if requestID := strings.TrimSpace(r.Header.Get("X-Request-Id")); requestID != "" {
			return requestID
		}
		return strings.TrimSpace(r.Header.Get("X-Request-ID"))
	}
	return ""
}
