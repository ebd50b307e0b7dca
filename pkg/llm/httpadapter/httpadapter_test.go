package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraphim-labs/roleforge/pkg/llm"
)

func TestCompleteRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req requestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(responseBody{Content: "world", TokensIn: 1, TokensOut: 1})
	}))
	defer server.Close()

	a := New(server.URL)
	completion, err := a.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hello"}}, llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "world", completion.Content)
}

func TestCompleteNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := New(server.URL)
	_, err := a.Complete(context.Background(), nil, llm.Options{})
	assert.ErrorIs(t, err, llm.ErrAdapter)
}
