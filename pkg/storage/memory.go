package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// MemoryStore is an in-process ObjectStore for development and tests.
// Presigned URLs point at BaseURL and are not actually signed.
type MemoryStore struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://objects"
	}
	return &MemoryStore{BaseURL: baseURL, objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read object %s: %w", key, err)
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{data: data, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStore) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	q := url.Values{}
	q.Set("expires", time.Now().Add(expiry).UTC().Format(time.RFC3339))
	return m.BaseURL + "/" + key + "?" + q.Encode(), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
