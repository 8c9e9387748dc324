package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiercache/internal/cache"
	"tiercache/internal/common/logging"
)

func setupHandlers(t *testing.T) (*mux.Router, *cache.Registry) {
	t.Helper()

	registry := cache.NewRegistry(logging.NewDefaultLogger(),
		cache.WithPolicy("search-results", cache.InstancePolicy{
			Memory:     cache.Policy{TTL: time.Minute, Enabled: true},
			MaxEntries: 100,
		}),
	)
	t.Cleanup(registry.Stop)

	router := mux.NewRouter()
	New(registry, logging.NewDefaultLogger()).RegisterRoutes(router)
	return router, registry
}

func doRequest(router *mux.Router, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthCheck(t *testing.T) {
	router, registry := setupHandlers(t)
	registry.Get("search-results")

	rec := doRequest(router, "GET", "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListCaches(t *testing.T) {
	router, registry := setupHandlers(t)
	registry.Get("generated-text")

	rec := doRequest(router, "GET", "/api/caches")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Caches []string `json:"caches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"search-results", "generated-text"}, body.Caches)
}

func TestGetCacheStats(t *testing.T) {
	router, registry := setupHandlers(t)
	ctx := context.Background()

	instance := registry.Get("search-results")
	require.NoError(t, instance.Set(ctx, "key1", []byte("v")))
	_, err := instance.Get(ctx, "key1")
	require.NoError(t, err)

	rec := doRequest(router, "GET", "/api/caches/search-results/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap cache.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "search-results", snap.Instance)
	assert.Equal(t, int64(1), snap.HitCount)
	assert.Equal(t, 1, snap.EntryCount)
	assert.True(t, snap.TierHealth["memory"])
}

func TestGetCacheStats_UnknownInstance(t *testing.T) {
	router, _ := setupHandlers(t)

	rec := doRequest(router, "GET", "/api/caches/nope/stats")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearCache_Full(t *testing.T) {
	router, registry := setupHandlers(t)
	ctx := context.Background()

	instance := registry.Get("search-results")
	require.NoError(t, instance.Set(ctx, "key1", []byte("v")))

	rec := doRequest(router, "DELETE", "/api/caches/search-results")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := instance.Get(ctx, "key1")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestClearCache_Pattern(t *testing.T) {
	router, registry := setupHandlers(t)
	ctx := context.Background()

	instance := registry.Get("search-results")
	require.NoError(t, instance.Set(ctx, "user:1", []byte("a")))
	require.NoError(t, instance.Set(ctx, "user:2", []byte("b")))
	require.NoError(t, instance.Set(ctx, "other:1", []byte("c")))

	rec := doRequest(router, "DELETE", "/api/caches/search-results?pattern=user:*")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Removed int `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Removed)

	_, err := instance.Get(ctx, "other:1")
	assert.NoError(t, err)
}

func TestClearCache_BadPattern(t *testing.T) {
	router, registry := setupHandlers(t)
	registry.Get("search-results")

	rec := doRequest(router, "DELETE", "/api/caches/search-results?pattern=[unclosed")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearCache_UnknownInstance(t *testing.T) {
	router, _ := setupHandlers(t)

	rec := doRequest(router, "DELETE", "/api/caches/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
