package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadwise/loadwise/modules/loads/presentation/controllers/dtos"
)

func TestNotFound_APIPathsGetJSON(t *testing.T) {
	t.Parallel()

	handler := NotFound()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loads/sheets/board/nope", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rr := httptest.NewRecorder()
	handler(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	apiErr := decodeBody[dtos.APIError](t, rr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, "/api/v1/loads/sheets/board/nope", apiErr.Meta["path"])
	assert.Equal(t, "req-42", apiErr.Meta["request_id"])
}

func TestNotFound_NonAPIPathsGetPlainText(t *testing.T) {
	t.Parallel()

	handler := NotFound()

	req := httptest.NewRequest(http.MethodGet, "/some/page", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotContains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestMethodNotAllowed_APIPathsGetJSON(t *testing.T) {
	t.Parallel()

	handler := MethodNotAllowed()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/loads/runs", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	apiErr := decodeBody[dtos.APIError](t, rr)
	assert.Equal(t, "METHOD_NOT_ALLOWED", apiErr.Code)
	assert.Equal(t, http.MethodDelete, apiErr.Meta["method"])
	assert.Equal(t, "/api/v1/loads/runs", apiErr.Meta["path"])
}
