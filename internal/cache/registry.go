package cache

import (
	"context"
	"sync"
	"time"

	"tiercache/internal/common/logging"
)

// Registry maps named, content-specific cache instances to their tier
// policies and constructs each instance lazily on first use. Instances
// live for the process lifetime; they are never destroyed except through
// an explicit clear.
type Registry struct {
	mu        sync.Mutex
	instances map[string]*Orchestrator

	policies      map[string]InstancePolicy
	defaultPolicy InstancePolicy

	remote        RemoteStore
	remoteTimeout time.Duration
	client        ClientStore
	sweepEvery    time.Duration

	logger logging.Logger
}

// RegistryOption adjusts Registry construction.
type RegistryOption func(*Registry)

// WithRemoteStore enables the remote tier, backed by store, for every
// instance whose policy enables it.
func WithRemoteStore(store RemoteStore, timeout time.Duration) RegistryOption {
	return func(r *Registry) {
		r.remote = store
		r.remoteTimeout = timeout
	}
}

// WithClientStore enables the caller-owned client tier for every instance
// whose policy enables it.
func WithClientStore(store ClientStore) RegistryOption {
	return func(r *Registry) {
		r.client = store
	}
}

// WithMemorySweepInterval overrides how often each instance's memory tier
// reclaims expired entries.
func WithMemorySweepInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.sweepEvery = d
	}
}

// WithPolicy binds an instance name to a policy, overriding the default.
func WithPolicy(name string, policy InstancePolicy) RegistryOption {
	return func(r *Registry) {
		r.policies[name] = policy
	}
}

// WithDefaultPolicy sets the policy used for names with no explicit binding.
func WithDefaultPolicy(policy InstancePolicy) RegistryOption {
	return func(r *Registry) {
		r.defaultPolicy = policy
	}
}

// DefaultPolicy is a general-purpose profile: short memory TTL, longer
// shared TTL, bounded to a thousand entries.
func DefaultPolicy() InstancePolicy {
	return InstancePolicy{
		Memory:     Policy{TTL: 5 * time.Minute, Enabled: true},
		Remote:     Policy{TTL: 30 * time.Minute, Enabled: true},
		Client:     Policy{TTL: time.Minute, Enabled: true},
		MaxEntries: defaultMaxEntries,
	}
}

// NewRegistry creates a registry. Without WithRemoteStore the remote tier
// is absent from every instance; without WithClientStore the client tier
// is absent.
func NewRegistry(logger logging.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		instances:     make(map[string]*Orchestrator),
		policies:      make(map[string]InstancePolicy),
		defaultPolicy: DefaultPolicy(),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the cache instance for name, constructing it on first use.
func (r *Registry) Get(name string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if instance, exists := r.instances[name]; exists {
		return instance
	}

	policy, exists := r.policies[name]
	if !exists {
		policy = r.defaultPolicy
	}

	instance := r.build(name, policy)
	r.instances[name] = instance
	return instance
}

// Lookup returns the instance for name only if it is already constructed
// or has an explicit policy. Used by the admin surface, which should not
// materialize instances for arbitrary names.
func (r *Registry) Lookup(name string) (*Orchestrator, bool) {
	r.mu.Lock()
	known := false
	if _, exists := r.instances[name]; exists {
		known = true
	} else if _, exists := r.policies[name]; exists {
		known = true
	}
	r.mu.Unlock()

	if !known {
		return nil, false
	}
	return r.Get(name), true
}

// Names returns the known instance names: constructed instances plus
// every explicitly configured policy.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(r.instances)+len(r.policies))
	for name := range r.instances {
		seen[name] = struct{}{}
	}
	for name := range r.policies {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names
}

// Stop releases the resources of every constructed instance.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, instance := range r.instances {
		instance.Stop()
	}
}

// build assembles the tier stack for one instance in priority order:
// remote, then memory, then client. The remote tier is authoritative
// because it is shared across processes; the client tier comes last
// because it is the least durable.
func (r *Registry) build(name string, policy InstancePolicy) *Orchestrator {
	var tiers []TierBinding

	if r.remote != nil && policy.Remote.Enabled {
		remote, err := NewRemoteTier(r.remote, name, r.remoteTimeout, r.logger)
		if err != nil {
			r.logger.Error("failed to build remote tier, instance degrades to memory only", err,
				logging.String("cache", name),
			)
		} else {
			tiers = append(tiers, TierBinding{Tier: remote, Policy: policy.Remote})
		}
	}

	if policy.Memory.Enabled {
		var opts []MemoryOption
		if policy.MaxValueBytes > 0 {
			opts = append(opts, WithMaxValueBytes(policy.MaxValueBytes))
		}
		if r.sweepEvery > 0 {
			opts = append(opts, WithSweepInterval(r.sweepEvery))
		}
		memory := NewMemoryTier(policy.MaxEntries, opts...)
		tiers = append(tiers, TierBinding{Tier: memory, Policy: policy.Memory})
	}

	if r.client != nil && policy.Client.Enabled {
		tiers = append(tiers, TierBinding{Tier: NewClientTier(r.client), Policy: policy.Client})
	}

	return NewOrchestrator(name, tiers, r.logger)
}

// StatsAll snapshots every constructed instance.
func (r *Registry) StatsAll(ctx context.Context) []Snapshot {
	r.mu.Lock()
	instances := make([]*Orchestrator, 0, len(r.instances))
	for _, instance := range r.instances {
		instances = append(instances, instance)
	}
	r.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(instances))
	for _, instance := range instances {
		snapshots = append(snapshots, instance.Stats(ctx))
	}
	return snapshots
}
