// Package cache memoizes embedding vectors so that re-embedding the same
// text against the same model skips the remote call.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"ragbench/internal/domain"
)

// Backend stores raw encoded vectors by key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Memory is a process-local Backend.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memItem
	now   func() time.Time
}

type memItem struct {
	value   []byte
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memItem), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !it.expires.IsZero() && m.now().After(it.expires) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return it.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	it := memItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = it
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Embedder wraps another embedder with a cache. Cache failures are logged
// and fall through to the wrapped embedder.
type Embedder struct {
	inner   domain.Embedder
	backend Backend
	prefix  string
	ttl     time.Duration
	logger  *zap.Logger

	mu         sync.Mutex
	hits, miss int
	dimension  int
}

// Wrap returns inner wrapped with backend. Keys are prefix + embedder name + sha1(text).
func Wrap(inner domain.Embedder, backend Backend, prefix string, ttl time.Duration, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{inner: inner, backend: backend, prefix: prefix, ttl: ttl, logger: logger}
}

func (e *Embedder) Name() string { return e.inner.Name() }

func (e *Embedder) Prepare(ctx context.Context, corpus []string) error {
	return e.inner.Prepare(ctx, corpus)
}

// LoadModel forwards to the wrapped embedder when it keeps a saved model.
func (e *Embedder) LoadModel() error {
	l, ok := e.inner.(domain.ModelLoader)
	if !ok {
		return errors.ErrUnsupported
	}
	return l.LoadModel()
}

func (e *Embedder) Dimension() int {
	if d := e.inner.Dimension(); d > 0 {
		return d
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := e.key(text)
	raw, ok, err := e.backend.Get(ctx, key)
	if err != nil {
		e.logger.Warn("embedding cache read failed", zap.Error(err))
	}
	if ok {
		var v []float64
		if err := json.Unmarshal(raw, &v); err == nil && len(v) > 0 {
			e.record(true, len(v))
			return v, nil
		}
	}
	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.record(false, len(v))
	data, err := json.Marshal(v)
	if err == nil {
		err = e.backend.Set(ctx, key, data, e.ttl)
	}
	if err != nil {
		e.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return v, nil
}

// Stats returns cache hits and misses so far.
func (e *Embedder) Stats() (hits, misses int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits, e.miss
}

// Close closes the backend.
func (e *Embedder) Close() error { return e.backend.Close() }

func (e *Embedder) record(hit bool, dim int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if hit {
		e.hits++
	} else {
		e.miss++
	}
	if e.dimension == 0 {
		e.dimension = dim
	}
}

func (e *Embedder) key(text string) string {
	sum := sha1.Sum([]byte(text))
	return e.prefix + e.inner.Name() + ":" + hex.EncodeToString(sum[:])
}
