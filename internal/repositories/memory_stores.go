package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// In-process counterparts of the redis stores, used when no REDIS_URL is
// configured and in tests.

type MemoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time
	now    func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{nonces: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryNonceStore) Issue(ctx context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.nonces[nonce]; ok && s.now().Before(exp) {
		return fmt.Errorf("nonce collision")
	}
	s.nonces[nonce] = s.now().Add(ttl)
	return nil
}

func (s *MemoryNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.nonces[nonce]
	delete(s.nonces, nonce)
	return ok && s.now().Before(exp), nil
}

type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{keys: make(map[string]time.Time)}
}

func (s *MemoryIdempotencyStore) Reserve(ctx context.Context, scope, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scope + ":" + key
	if exp, ok := s.keys[k]; ok && time.Now().Before(exp) {
		return false, nil
	}
	s.keys[k] = time.Now().Add(ttl)
	return true, nil
}

func (s *MemoryIdempotencyStore) Release(ctx context.Context, scope, key string) error {
	s.mu.Lock()
	delete(s.keys, scope+":"+key)
	s.mu.Unlock()
	return nil
}

type MemoryRateCounter struct {
	mu      sync.Mutex
	windows map[string]rateWindow
}

type rateWindow struct {
	count   int64
	expires time.Time
}

func NewMemoryRateCounter() *MemoryRateCounter {
	return &MemoryRateCounter{windows: make(map[string]rateWindow)}
}

func (c *MemoryRateCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	w := c.windows[key]
	if now.After(w.expires) {
		w = rateWindow{expires: now.Add(window)}
	}
	w.count++
	c.windows[key] = w
	return w.count, nil
}

type MemoryMarker struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{seen: make(map[string]time.Time)}
}

func (m *MemoryMarker) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.seen[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	m.seen[key] = time.Now().Add(ttl)
	return true, nil
}
