package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a TTL key/value cache. The in-memory implementation is the default;
// a Redis-backed implementation exists for deployments that want replicas to
// share resolved galleries. Values are whole-entry snapshots, never mutated in
// place, so replacement is always an atomic whole-value swap.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, value T, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
}

type entry[T any] struct {
	data      T
	timestamp time.Time
	ttl       time.Duration
}

// Memory is an in-process TTL map. Eviction is lazy on read; there is no
// background sweeper. Size stays bounded by the distinct keys seen during the
// process lifetime.
type Memory[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	now     func() time.Time
}

func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{entries: make(map[string]entry[T]), now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (m *Memory[T]) SetClock(now func() time.Time) { m.now = now }

func (m *Memory[T]) Get(_ context.Context, key string) (T, bool) {
	var zero T
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return zero, false
	}
	if m.now().Sub(e.timestamp) > e.ttl {
		delete(m.entries, key)
		return zero, false
	}
	return e.data, true
}

func (m *Memory[T]) Set(_ context.Context, key string, value T, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry[T]{data: value, timestamp: m.now(), ttl: ttl}
}

func (m *Memory[T]) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *Memory[T]) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry[T])
}

// Len reports live entry count without evicting. Test hook.
func (m *Memory[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
