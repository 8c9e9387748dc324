// Package testutil provides fakes shared by the cache service tests.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FailingRemoteStore implements cache.RemoteStore and fails every call,
// simulating an unreachable Redis.
type FailingRemoteStore struct {
	Err error

	// Calls counts operations attempted against the store.
	Calls int64
}

func (s *FailingRemoteStore) fail() error {
	atomic.AddInt64(&s.Calls, 1)
	return s.Err
}

func (s *FailingRemoteStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, s.fail()
}

func (s *FailingRemoteStore) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	return nil, s.fail()
}

func (s *FailingRemoteStore) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return s.fail()
}

func (s *FailingRemoteStore) MSet(ctx context.Context, entries map[string][]byte, expiration time.Duration) error {
	return s.fail()
}

func (s *FailingRemoteStore) Delete(ctx context.Context, keys ...string) (int, error) {
	return 0, s.fail()
}

func (s *FailingRemoteStore) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	return 0, s.fail()
}

func (s *FailingRemoteStore) Health(ctx context.Context) error {
	return s.Err
}

// MapClientStore is an in-memory cache.ClientStore for exercising the
// client tier contract. PanicOn makes calls for a given key panic, to
// verify the orchestrator contains misbehaving caller-owned stores.
type MapClientStore struct {
	mu      sync.Mutex
	items   map[string][]byte
	PanicOn string
}

func NewMapClientStore() *MapClientStore {
	return &MapClientStore{items: make(map[string][]byte)}
}

func (s *MapClientStore) Get(key string) ([]byte, bool) {
	if s.PanicOn != "" && key == s.PanicOn {
		panic("client store exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.items[key]
	return value, ok
}

func (s *MapClientStore) Set(key string, value []byte, ttl time.Duration) {
	if s.PanicOn != "" && key == s.PanicOn {
		panic("client store exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

func (s *MapClientStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

func (s *MapClientStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string][]byte)
}

// CountingProducer returns a producer that records how many times it ran
// and returns value. Use Count() to assert coalescing behavior.
type CountingProducer struct {
	count int64
	Value []byte
	Err   error

	// Delay holds the producer open, widening race windows in
	// coalescing tests.
	Delay time.Duration
}

func (p *CountingProducer) Produce(ctx context.Context) ([]byte, error) {
	atomic.AddInt64(&p.count, 1)
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Value, nil
}

func (p *CountingProducer) Count() int64 {
	return atomic.LoadInt64(&p.count)
}
