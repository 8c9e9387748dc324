package cache

import (
	"context"
	"errors"
	"path"
	"time"

	"golang.org/x/sync/singleflight"

	"tiercache/internal/common/logging"
)

// Producer is the deferred computation invoked on a total cache miss.
// Producer errors propagate to the caller unchanged; the cache never
// swallows them and writes nothing when one fails.
type Producer func(ctx context.Context) ([]byte, error)

// TierBinding pairs a tier with the policy governing it for one instance.
type TierBinding struct {
	Tier   Tier
	Policy Policy
}

// Orchestrator coordinates lookups and writes across an ordered list of
// tiers for a single named cache instance. Tier order is priority order:
// the first binding is authoritative over the ones after it. The standard
// arrangement is Remote → Memory → Client, because the remote tier is
// shared across processes and may hold a fresher value, while the client
// tier is the least durable.
//
// Tier failures never cross the orchestrator boundary; a failing tier is
// treated as a miss for that operation and counted. Only producer
// failures are surfaced.
type Orchestrator struct {
	name   string
	tiers  []TierBinding
	memory *TierBinding

	sf     singleflight.Group
	stats  counters
	logger logging.Logger
}

const asyncWriteTimeout = 5 * time.Second

// NewOrchestrator creates an orchestrator over tiers, in priority order.
// The memory tier, if present, is written synchronously on a miss; all
// other tiers are written best-effort in the background.
func NewOrchestrator(name string, tiers []TierBinding, logger logging.Logger) *Orchestrator {
	o := &Orchestrator{
		name:   name,
		tiers:  tiers,
		logger: logger.WithFields(logging.String("cache", name)),
	}
	for i := range o.tiers {
		if _, ok := o.tiers[i].Tier.(*MemoryTier); ok {
			o.memory = &o.tiers[i]
			break
		}
	}
	return o
}

// Name returns the instance name this orchestrator serves.
func (o *Orchestrator) Name() string { return o.name }

// GetOrSet returns the cached value for key, or invokes producer on a
// total miss across all tiers. Concurrent callers for the same key are
// coalesced: the producer runs once and every waiter receives its single
// result or its single error. The in-flight marker is cleared on both
// paths, so a failed production never wedges the key.
func (o *Orchestrator) GetOrSet(ctx context.Context, key string, producer Producer) ([]byte, error) {
	if value, ok := o.lookup(ctx, key); ok {
		o.stats.hit()
		return value, nil
	}
	o.stats.miss()

	result, err, _ := o.sf.Do(key, func() (interface{}, error) {
		// A caller that queued behind a finished flight re-checks the
		// tiers; the flight it waited on already populated them.
		if value, ok := o.lookup(ctx, key); ok {
			return value, nil
		}

		o.stats.producerCall()
		value, err := producer(ctx)
		if err != nil {
			return nil, err
		}

		o.populate(key, value)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Get returns the cached value for key or ErrMiss, without producing.
func (o *Orchestrator) Get(ctx context.Context, key string) ([]byte, error) {
	if value, ok := o.lookup(ctx, key); ok {
		o.stats.hit()
		return value, nil
	}
	o.stats.miss()
	return nil, ErrMiss
}

// Set writes value through every enabled tier: memory synchronously,
// the rest best-effort in the background.
func (o *Orchestrator) Set(ctx context.Context, key string, value []byte) error {
	var memErr error
	if o.memory != nil && o.memory.Policy.Enabled {
		memErr = o.memory.Tier.Set(ctx, key, value, o.memory.Policy.TTL)
		if memErr != nil {
			o.stats.tierError()
		}
	}
	for i := range o.tiers {
		binding := &o.tiers[i]
		if binding == o.memory || !binding.Policy.Enabled {
			continue
		}
		o.writeAsync(binding, key, value)
	}
	return memErr
}

// lookup scans the tiers in priority order and returns the first hit.
// A hit anywhere but the memory tier backfills memory so subsequent
// local lookups are fast. Tier errors are counted and treated as misses.
func (o *Orchestrator) lookup(ctx context.Context, key string) ([]byte, bool) {
	for i := range o.tiers {
		binding := &o.tiers[i]
		if !binding.Policy.Enabled {
			continue
		}

		value, err := binding.Tier.Get(ctx, key)
		if err == nil {
			if binding != o.memory {
				o.backfillMemory(ctx, key, value)
			}
			return value, true
		}
		if !errors.Is(err, ErrMiss) {
			o.stats.tierError()
			o.logger.Debug("tier lookup failed, treating as miss",
				logging.String("tier", binding.Tier.Name()),
				logging.String("key", key),
				logging.Err(err),
			)
		}
	}
	return nil, false
}

func (o *Orchestrator) backfillMemory(ctx context.Context, key string, value []byte) {
	if o.memory == nil || !o.memory.Policy.Enabled {
		return
	}
	if err := o.memory.Tier.Set(ctx, key, value, o.memory.Policy.TTL); err != nil {
		o.stats.tierError()
		o.logger.Warn("memory backfill failed",
			logging.String("key", key),
			logging.Err(err),
		)
	}
}

// populate writes a freshly produced value into the tiers: memory
// synchronously so the immediate return and subsequent local reads agree,
// everything else best-effort in the background. A failed write is logged
// and counted but never fails the operation; the value was produced and
// will be returned regardless.
func (o *Orchestrator) populate(key string, value []byte) {
	if o.memory != nil && o.memory.Policy.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
		if err := o.memory.Tier.Set(ctx, key, value, o.memory.Policy.TTL); err != nil {
			o.stats.tierError()
			o.logger.Warn("memory write failed",
				logging.String("key", key),
				logging.Err(err),
			)
		}
		cancel()
	}

	for i := range o.tiers {
		binding := &o.tiers[i]
		if binding == o.memory || !binding.Policy.Enabled {
			continue
		}
		o.writeAsync(binding, key, value)
	}
}

// writeAsync fires a best-effort background write. The goroutine is
// recover-protected so a panicking externally-owned store cannot crash
// the process, and it uses a fresh context because the request context
// may already be canceled by the time the write runs.
func (o *Orchestrator) writeAsync(binding *TierBinding, key string, value []byte) {
	tier, ttl := binding.Tier, binding.Policy.TTL
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.stats.asyncWriteErr()
				o.logger.Error("async tier write panicked", nil,
					logging.String("tier", tier.Name()),
					logging.String("key", key),
					logging.Any("panic", r),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
		defer cancel()

		if err := tier.Set(ctx, key, value, ttl); err != nil {
			o.stats.asyncWriteErr()
			o.logger.Warn("async tier write failed",
				logging.String("tier", tier.Name()),
				logging.String("key", key),
				logging.Err(err),
			)
		}
	}()
}

// Invalidate removes key from every enabled tier. A failure in one tier
// does not stop invalidation in the others.
func (o *Orchestrator) Invalidate(ctx context.Context, key string) {
	for i := range o.tiers {
		binding := &o.tiers[i]
		if !binding.Policy.Enabled {
			continue
		}
		if err := binding.Tier.Delete(ctx, key); err != nil {
			o.stats.tierError()
			o.logger.Warn("tier invalidation failed",
				logging.String("tier", binding.Tier.Name()),
				logging.String("key", key),
				logging.Err(err),
			)
		}
	}
}

// InvalidateByPattern removes all keys matching the glob pattern, tier by
// tier, and returns the aggregate removed count. An unreachable tier is
// skipped; a malformed pattern is reported.
func (o *Orchestrator) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	total := 0
	var badPattern error
	for i := range o.tiers {
		binding := &o.tiers[i]
		if !binding.Policy.Enabled {
			continue
		}

		removed, err := binding.Tier.DeleteByPattern(ctx, pattern)
		total += removed
		if err == nil {
			continue
		}
		if errors.Is(err, path.ErrBadPattern) {
			badPattern = err
			continue
		}
		o.stats.tierError()
		o.logger.Warn("tier pattern invalidation failed",
			logging.String("tier", binding.Tier.Name()),
			logging.String("pattern", pattern),
			logging.Err(err),
		)
	}
	return total, badPattern
}

// Clear removes every entry from every enabled tier.
func (o *Orchestrator) Clear(ctx context.Context) {
	for i := range o.tiers {
		binding := &o.tiers[i]
		if !binding.Policy.Enabled {
			continue
		}
		if err := binding.Tier.Clear(ctx); err != nil {
			o.stats.tierError()
			o.logger.Warn("tier clear failed",
				logging.String("tier", binding.Tier.Name()),
				logging.Err(err),
			)
		}
	}
}

// Stats returns the externally observable state of this instance.
func (o *Orchestrator) Stats(ctx context.Context) Snapshot {
	snap := o.stats.snapshot()
	snap.Instance = o.name
	snap.TierHealth = make(map[string]bool, len(o.tiers))

	for i := range o.tiers {
		binding := &o.tiers[i]
		if !binding.Policy.Enabled {
			continue
		}
		snap.TierHealth[binding.Tier.Name()] = binding.Tier.Healthy(ctx)
	}

	if o.memory != nil {
		if mem, ok := o.memory.Tier.(*MemoryTier); ok {
			snap.EvictionCount = mem.Evictions()
			snap.EntryCount = mem.Len()
			snap.ApproxSizeBytes = mem.SizeBytes()
		}
	}
	return snap
}

// Stop releases tier-owned resources (the memory sweep goroutine).
func (o *Orchestrator) Stop() {
	if o.memory != nil {
		if mem, ok := o.memory.Tier.(*MemoryTier); ok {
			mem.Stop()
		}
	}
}
