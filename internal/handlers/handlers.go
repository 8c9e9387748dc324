// Package handlers implements the administrative HTTP surface of the
// cache service: stats inspection, health, and manual invalidation. This
// is the only externally observable surface; cache consumers use the
// registry directly.
package handlers

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"tiercache/internal/cache"
	"tiercache/internal/common/logging"
)

type Handlers struct {
	registry *cache.Registry
	logger   logging.Logger
}

func New(registry *cache.Registry, logger logging.Logger) *Handlers {
	return &Handlers{
		registry: registry,
		logger:   logger,
	}
}

// RegisterRoutes attaches the admin endpoints to router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/caches", h.ListCaches).Methods("GET")
	api.HandleFunc("/caches/{name}/stats", h.GetCacheStats).Methods("GET")
	api.HandleFunc("/caches/{name}", h.ClearCache).Methods("DELETE")
}

// HealthCheck reports process liveness and per-instance tier health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"caches": map[string]map[string]bool{},
	}

	caches := health["caches"].(map[string]map[string]bool)
	for _, snap := range h.registry.StatsAll(r.Context()) {
		caches[snap.Instance] = snap.TierHealth
	}

	writeJSON(w, http.StatusOK, health)
}

// ListCaches returns the known cache instance names.
func (h *Handlers) ListCaches(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]interface{}{"caches": names})
}

// GetCacheStats returns hit/miss/eviction counters, approximate size, and
// tier health for one cache instance.
func (h *Handlers) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	instance, ok := h.registry.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown cache instance")
		return
	}

	writeJSON(w, http.StatusOK, instance.Stats(r.Context()))
}

// ClearCache removes entries from one cache instance. With a ?pattern=
// query parameter only matching keys are removed and the removed count is
// reported; without one the instance is fully cleared.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	instance, ok := h.registry.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown cache instance")
		return
	}

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		instance.Clear(r.Context())
		h.logger.Info("cache cleared", logging.String("cache", name))
		writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
		return
	}

	removed, err := instance.InvalidateByPattern(r.Context(), pattern)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pattern")
		return
	}

	h.logger.Info("cache entries invalidated",
		logging.String("cache", name),
		logging.String("pattern", pattern),
		logging.Int("removed", removed),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
