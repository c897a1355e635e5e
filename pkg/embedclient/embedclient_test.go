package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedBatchSkipsEmptyTexts(t *testing.T) {
	var seen embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2}}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	vectors, err := c.EmbedBatch(context.Background(), []string{"", "披锋", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"披锋"}, seen.Inputs)
	assert.True(t, seen.Normalize)
	assert.Equal(t, [][]float32{{0.1, 0.2}}, vectors)
}

func TestEmbedBatchAllEmptyIsNoop(t *testing.T) {
	c := New("http://unused.invalid")
	vectors, err := c.EmbedBatch(context.Background(), []string{"", ""})
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedBatchSurfacesServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
}
