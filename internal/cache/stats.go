package cache

import "sync/atomic"

// counters tracks lookup outcomes for one cache instance. All fields are
// updated atomically; the orchestrator is called from many goroutines.
type counters struct {
	hits           int64
	misses         int64
	producerCalls  int64
	tierErrors     int64
	asyncWriteErrs int64
}

func (c *counters) hit()           { atomic.AddInt64(&c.hits, 1) }
func (c *counters) miss()          { atomic.AddInt64(&c.misses, 1) }
func (c *counters) producerCall()  { atomic.AddInt64(&c.producerCalls, 1) }
func (c *counters) tierError()     { atomic.AddInt64(&c.tierErrors, 1) }
func (c *counters) asyncWriteErr() { atomic.AddInt64(&c.asyncWriteErrs, 1) }

// Snapshot is the externally observable state of a cache instance,
// served by the admin stats endpoint.
type Snapshot struct {
	Instance        string          `json:"instance"`
	HitCount        int64           `json:"hit_count"`
	MissCount       int64           `json:"miss_count"`
	ProducerCalls   int64           `json:"producer_calls"`
	TierErrors      int64           `json:"tier_errors"`
	AsyncWriteErrs  int64           `json:"async_write_errors"`
	EvictionCount   int64           `json:"eviction_count"`
	EntryCount      int             `json:"entry_count"`
	ApproxSizeBytes int64           `json:"approx_size_bytes"`
	TierHealth      map[string]bool `json:"tier_health"`
}

func (c *counters) snapshot() Snapshot {
	return Snapshot{
		HitCount:       atomic.LoadInt64(&c.hits),
		MissCount:      atomic.LoadInt64(&c.misses),
		ProducerCalls:  atomic.LoadInt64(&c.producerCalls),
		TierErrors:     atomic.LoadInt64(&c.tierErrors),
		AsyncWriteErrs: atomic.LoadInt64(&c.asyncWriteErrs),
	}
}
