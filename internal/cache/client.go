package cache

import (
	"context"
	"time"
)

// ClientStore is the contract a caller-owned ephemeral store must satisfy
// to participate as the outermost cache layer. The storage medium belongs
// to the calling environment; the orchestrator only sees this shape.
type ClientStore interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
}

// ClientDeleter is optionally implemented by stores that support
// invalidation. Stores without it simply age entries out via TTL.
type ClientDeleter interface {
	Delete(key string)
}

// ClientClearer is optionally implemented by stores that support a full
// clear.
type ClientClearer interface {
	Clear()
}

// ClientTier adapts a caller-owned store into a cache tier. The store is
// untrusted code: every call is recover-protected, and a panic or absent
// capability is reported as a miss or no-op.
type ClientTier struct {
	store ClientStore
}

// NewClientTier wraps store. A nil store yields a tier that always misses.
func NewClientTier(store ClientStore) *ClientTier {
	return &ClientTier{store: store}
}

func (t *ClientTier) Name() string { return "client" }

func (t *ClientTier) Get(ctx context.Context, key string) (value []byte, err error) {
	if t.store == nil {
		return nil, ErrMiss
	}
	defer func() {
		if recover() != nil {
			value, err = nil, ErrMiss
		}
	}()

	data, ok := t.store.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return data, nil
}

func (t *ClientTier) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if data, err := t.Get(ctx, key); err == nil {
			result[key] = data
		}
	}
	return result, nil
}

func (t *ClientTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	if t.store == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			err = nil
		}
	}()

	t.store.Set(key, value, ttl)
	return nil
}

func (t *ClientTier) MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	for key, value := range entries {
		if err := t.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (t *ClientTier) Delete(ctx context.Context, key string) (err error) {
	deleter, ok := t.store.(ClientDeleter)
	if !ok {
		return nil
	}
	defer func() {
		if recover() != nil {
			err = nil
		}
	}()

	deleter.Delete(key)
	return nil
}

// DeleteByPattern is a no-op: the contract gives no way to enumerate a
// caller-owned keyspace, so pattern invalidation relies on TTL there.
func (t *ClientTier) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	return 0, nil
}

func (t *ClientTier) Clear(ctx context.Context) (err error) {
	clearer, ok := t.store.(ClientClearer)
	if !ok {
		return nil
	}
	defer func() {
		if recover() != nil {
			err = nil
		}
	}()

	clearer.Clear()
	return nil
}

func (t *ClientTier) Healthy(ctx context.Context) bool {
	return t.store != nil
}

var _ Tier = (*ClientTier)(nil)
