package cache

import (
	"context"
	"errors"
	"time"

	"tiercache/internal/circuitbreaker"
	apperrors "tiercache/internal/common/errors"
	"tiercache/internal/common/logging"
	"tiercache/internal/redis"
)

// RemoteStore is the slice of the Redis client the remote tier depends on.
// Tests substitute failing implementations to exercise fail-open paths.
type RemoteStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	MSet(ctx context.Context, entries map[string][]byte, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) (int, error)
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
	Health(ctx context.Context) error
}

// RemoteTier adapts a shared Redis store into a cache tier. Every
// operation is bounded by a timeout and routed through a circuit breaker;
// the tier reports failures to its caller, which treats them as misses.
//
// Keys are namespaced with a per-instance prefix so cache instances
// sharing one Redis cannot collide.
type RemoteTier struct {
	store   RemoteStore
	breaker *circuitbreaker.Breaker
	prefix  string
	timeout time.Duration
	logger  logging.Logger
}

const defaultRemoteTimeout = 2 * time.Second

// NewRemoteTier creates a remote tier over store. Keys are stored under
// "cache:<instance>:". A zero timeout falls back to the default.
func NewRemoteTier(store RemoteStore, instance string, timeout time.Duration, logger logging.Logger) (*RemoteTier, error) {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}

	breaker, err := circuitbreaker.New("remote-cache-"+instance, circuitbreaker.DefaultConfig(), logger)
	if err != nil {
		return nil, err
	}

	return &RemoteTier{
		store:   store,
		breaker: breaker,
		prefix:  "cache:" + instance + ":",
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (t *RemoteTier) Name() string { return "remote" }

// wrapErr classifies a failed remote call so callers and logs can tell a
// slow backend from an unreachable one.
func (t *RemoteTier) wrapErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.TimeoutError("remote tier call timed out", err)
	}
	return err
}

func (t *RemoteTier) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := t.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		data, err := t.store.Get(opCtx, t.prefix+key)
		if errors.Is(err, redis.Nil) {
			// An absent key is a successful round trip, not a backend failure.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, t.wrapErr(err)
	}
	if result == nil {
		return nil, ErrMiss
	}
	return result.([]byte), nil
}

func (t *RemoteTier) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = t.prefix + key
	}

	result, err := t.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		return t.store.MGet(opCtx, prefixed)
	})
	if err != nil {
		return nil, t.wrapErr(err)
	}

	values := result.(map[string][]byte)
	unprefixed := make(map[string][]byte, len(values))
	for key, value := range values {
		unprefixed[key[len(t.prefix):]] = value
	}
	return unprefixed, nil
}

func (t *RemoteTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := t.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		return nil, t.store.Set(opCtx, t.prefix+key, value, ttl)
	})
	return t.wrapErr(err)
}

func (t *RemoteTier) MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	prefixed := make(map[string][]byte, len(entries))
	for key, value := range entries {
		prefixed[t.prefix+key] = value
	}

	_, err := t.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		return nil, t.store.MSet(opCtx, prefixed, ttl)
	})
	return t.wrapErr(err)
}

func (t *RemoteTier) Delete(ctx context.Context, key string) error {
	_, err := t.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		_, err := t.store.Delete(opCtx, t.prefix+key)
		return nil, err
	})
	return t.wrapErr(err)
}

func (t *RemoteTier) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	result, err := t.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		return t.store.DeleteByPattern(opCtx, t.prefix+pattern)
	})
	if err != nil {
		return 0, t.wrapErr(err)
	}
	return result.(int), nil
}

func (t *RemoteTier) Clear(ctx context.Context) error {
	_, err := t.DeleteByPattern(ctx, "*")
	return err
}

// Healthy reports whether the tier is currently usable: the breaker is
// not open and the backend answers a ping within the tier timeout.
func (t *RemoteTier) Healthy(ctx context.Context) bool {
	if t.breaker.Open() {
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.store.Health(opCtx) == nil
}

// BreakerState exposes the breaker state for stats reporting.
func (t *RemoteTier) BreakerState() string {
	return t.breaker.State()
}

var _ Tier = (*RemoteTier)(nil)
