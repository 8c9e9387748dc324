package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by a tier when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// ErrValueTooLarge is returned when a value exceeds a tier's size limit.
// It is a per-tier write failure, never a failure of the overall lookup.
var ErrValueTooLarge = errors.New("value exceeds tier size limit")

// Tier is the capability interface every cache layer implements.
// The orchestrator holds an ordered list of tiers rather than hardcoded
// branches, so new layers can be added without touching orchestration logic.
type Tier interface {
	// Name identifies the tier in logs and stats ("memory", "remote", "client").
	Name() string

	// Get returns the stored value or ErrMiss. Any other error means the
	// tier is unusable for this operation; callers treat it as a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// MGet returns the subset of keys that are present and unexpired.
	// Absent keys are simply omitted from the result.
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set stores value under key with the given TTL, overwriting any
	// previous value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// MSet stores each entry with the given TTL. There is no atomicity
	// across keys; a failure may leave a subset written.
	MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteByPattern removes all keys matching a glob pattern and
	// returns how many were removed.
	DeleteByPattern(ctx context.Context, pattern string) (int, error)

	// Clear removes every entry owned by this tier.
	Clear(ctx context.Context) error

	// Healthy reports whether the tier is currently usable.
	Healthy(ctx context.Context) bool
}

// Policy holds the per-tier configuration for one cache instance.
// Policies are fixed once the instance is constructed.
type Policy struct {
	TTL     time.Duration
	Enabled bool
}

// InstancePolicy groups the per-tier policies for a named cache instance
// together with the memory tier's capacity bound.
type InstancePolicy struct {
	Memory Policy
	Remote Policy
	Client Policy

	// MaxEntries bounds the memory tier; insertion past this count evicts
	// the least recently used entry.
	MaxEntries int

	// MaxValueBytes rejects oversized values at write time. Zero means
	// no limit.
	MaxValueBytes int
}
