package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"query":"cold chain","results":[
			{"title":"Cold chain 101","url":"https://a.example","content":"basics","score":0.91},
			{"title":"Reefer rates","url":"https://b.example","content":"rates","score":0.5}
		]}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "secret", srv.Client()).Search(context.Background(), Params{Query: "cold chain", Topic: "news"})
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Title: "Cold chain 101", URL: "https://a.example", Snippet: "basics", Score: 0.91},
		{Title: "Reefer rates", URL: "https://b.example", Snippet: "rates", Score: 0.5},
	}, res)
	assert.Equal(t, "cold chain", got.Query)
	assert.Equal(t, defaultMaxResults, got.MaxResults)
	assert.Equal(t, "news", got.Topic)
	assert.Equal(t, "secret", got.APIKey)
}

func TestSearchPassesRemoteErrorText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"error":"Unauthorized: missing or invalid API key."}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "bad", srv.Client()).Search(context.Background(), Params{Query: "x"})
	require.Error(t, err)
	assert.Equal(t, `search api status 401: {"detail":{"error":"Unauthorized: missing or invalid API key."}}`, err.Error())
}

func TestSearchRequiresKey(t *testing.T) {
	_, err := New("", "", nil).Search(context.Background(), Params{Query: "x"})
	assert.EqualError(t, err, "search api key missing")
}

func TestClampResults(t *testing.T) {
	assert.Equal(t, 5, clampResults(0))
	assert.Equal(t, 5, clampResults(-3))
	assert.Equal(t, 7, clampResults(7))
	assert.Equal(t, 20, clampResults(99))
}
