package tei

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	r := New(Config{})
	assert.Equal(t, DefaultModel, r.ModelName())
	assert.NoError(t, r.Close())
}

func TestPredict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "how to vacuum", req.Query)
		assert.Equal(t, []string{"doc a", "doc b", "doc c"}, req.Texts)
		assert.True(t, req.RawScores)

		// TEI sorts by score.
		_, _ = w.Write([]byte(`[{"index":2,"score":4.5},{"index":0,"score":1.25},{"index":1,"score":-3}]`))
	}))
	defer server.Close()

	scores, err := New(Config{BaseURL: server.URL}).Predict(context.Background(), "how to vacuum",
		[]string{"doc a", "doc b", "doc c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.25, -3, 4.5}, scores)
}

func TestPredict_Empty(t *testing.T) {
	scores, err := New(Config{BaseURL: "http://127.0.0.1:1"}).Predict(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestPredict_MissingScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"index":0,"score":1}]`))
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}).Predict(context.Background(), "q", []string{"a", "b"})
	assert.Error(t, err)
}

func TestPredict_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"model is not a re-ranker"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}).Predict(context.Background(), "q", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a re-ranker")
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.NoError(t, New(Config{BaseURL: server.URL}).Ping(context.Background()))
}
