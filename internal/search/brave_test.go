package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthchat/internal/config"
)

func TestBraveClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "thermometer healthcare medical", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("count"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"web": {"results": [
			{"title": "Digital thermometer", "url": "https://shop.example.com/t1", "description": "Fast reading", "meta_url": {"hostname": "shop.example.com"}},
			{"title": "No url", "url": ""},
			{"title": "Ear thermometer", "url": "https://other.example.org/t2", "description": "Infrared"},
			{"title": "Over limit", "url": "https://third.example.net/t3"}
		]}}`))
	}))
	defer srv.Close()

	c := NewBraveClient(config.SearchConfig{Endpoint: srv.URL, APIKey: "key"})
	results, err := c.Search(context.Background(), "thermometer healthcare medical", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "shop.example.com", results[0].Source)
	assert.Equal(t, "other.example.org", results[1].Source)
	assert.Equal(t, "Infrared", results[1].Description)
}

func TestBraveClientUnconfiguredReturnsNothing(t *testing.T) {
	c := NewBraveClient(config.SearchConfig{Endpoint: "http://unused.invalid"})
	results, err := c.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBraveClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer srv.Close()

	c := NewBraveClient(config.SearchConfig{Endpoint: srv.URL, APIKey: "key"})
	_, err := c.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
