package lesson

import (
	"context"
	"path"
	"sync"

	"github.com/kailas-cloud/lessontutor/internal/db"
)

// memStore implements the consumer interface for tests and records write order.
type memStore struct {
	mu     sync.Mutex
	kv     map[string][]byte
	hashes map[string]map[string]string
	writes []string

	setErr error
	getErr error
}

func newMemStore() *memStore {
	return &memStore{kv: map[string][]byte{}, hashes: map[string]map[string]string{}}
}

func (m *memStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	if h == nil {
		h = map[string]string{}
		m.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	m.writes = append(m.writes, key)
	return nil
}

func (m *memStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = m.hashes[k]
	}
	return out, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
		delete(m.hashes, k)
	}
	return nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, inKV := m.kv[key]
	_, inHash := m.hashes[key]
	return inKV || inHash, nil
}

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	for k := range m.kv {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.kv[key] = value
	m.writes = append(m.writes, key)
	return nil
}

func (m *memStore) SetMulti(_ context.Context, items []db.KVItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	for _, it := range items {
		m.kv[it.Key] = it.Value
		m.writes = append(m.writes, it.Key)
	}
	return nil
}
