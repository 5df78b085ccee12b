package suggest_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/infrastructure/suggest"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), "unexpected path %s", r.URL.Path)
		body := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(url string) *suggest.OpenAIProvider {
	return suggest.NewOpenAIProvider(suggest.OpenAIProviderConfig{
		APIKey:  "test",
		BaseURL: url,
		Model:   "test-model",
	})
}

func TestOpenAIProvider_SuggestHeaders(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, `{"Chauffeur": "driverName", "Ref": "status", "Banana": "broker"}`)
	got, err := newProvider(srv.URL).SuggestHeaders(
		context.Background(),
		[]string{"Chauffeur", "Ref"},
		[]load.Field{load.FieldDriverName},
	)
	require.NoError(t, err)

	// "Ref" proposes a field that is not missing and "Banana" is not an
	// unmatched header; both are dropped.
	assert.Equal(t, map[string]load.Field{"Chauffeur": load.FieldDriverName}, got)
}

func TestOpenAIProvider_StripsCodeFences(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "```json\n{\"Chauffeur\": \"driverName\"}\n```")
	got, err := newProvider(srv.URL).SuggestHeaders(
		context.Background(),
		[]string{"Chauffeur"},
		[]load.Field{load.FieldDriverName},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]load.Field{"Chauffeur": load.FieldDriverName}, got)
}

func TestOpenAIProvider_RejectsNonJSONReply(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "I think Chauffeur is the driver name column.")
	_, err := newProvider(srv.URL).SuggestHeaders(
		context.Background(),
		[]string{"Chauffeur"},
		[]load.Field{load.FieldDriverName},
	)
	require.Error(t, err)
}

func TestOpenAIProvider_PropagatesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "bad request", "type": "invalid_request_error"}}`)
	}))
	t.Cleanup(srv.Close)

	_, err := newProvider(srv.URL).SuggestHeaders(
		context.Background(),
		[]string{"Chauffeur"},
		[]load.Field{load.FieldDriverName},
	)
	require.Error(t, err)
}
