// Package cache implements a multi-tier cache that sits between expensive
// producers (remote APIs, generated content, computed search results) and
// their consumers.
//
// Three tiers are supported, consulted in priority order:
//
// 1. Remote Tier - shared Redis store, best-effort
//   - Authoritative when enabled: shared across processes
//   - Every operation bounded by a timeout and a circuit breaker
//   - Fail-open: any failure is treated as a miss, never surfaced
//
// 2. Memory Tier - bounded in-process store
//   - LRU eviction at capacity, per-entry TTL
//   - Lazy expiry on access plus a periodic sweep
//   - Backfilled automatically on a hit at any other tier
//
// 3. Client Tier - caller-owned ephemeral store (contract only)
//   - Outermost, shortest-lived layer
//   - Absence, panic, or failure is simply a miss
//
// The Orchestrator applies the get-or-set pattern across the tiers.
// Concurrent misses for one key are coalesced through singleflight so
// the producer runs at most once. Producer errors propagate to the
// caller verbatim; tier errors never do.
//
// Usage:
//
//	registry := cache.NewRegistry(logger,
//		cache.WithRemoteStore(redisClient, 2*time.Second),
//		cache.WithPolicy("search-results", cache.InstancePolicy{
//			Memory:     cache.Policy{TTL: 30 * time.Second, Enabled: true},
//			Remote:     cache.Policy{TTL: 10 * time.Minute, Enabled: true},
//			MaxEntries: 500,
//		}),
//	)
//
//	results := registry.Get("search-results")
//	value, err := results.GetOrSet(ctx, key, func(ctx context.Context) ([]byte, error) {
//		return searchBackend.Query(ctx, params)
//	})
package cache
