// Package storage holds uploaded task files and profile images.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when an object key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore is the object storage the handlers talk to. Keys are opaque.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// TaskFileKey is the key of a file attached to a task.
func TaskFileKey(taskID, fileName string) string {
	return taskID + "/" + path.Base(fileName)
}

// ImageKey is the key of a newly uploaded profile image.
func ImageKey(now time.Time, fileName string) string {
	return fmt.Sprintf("%d_%s", now.Unix(), path.Base(fileName))
}

// MemoryStore keeps objects in process memory. It backs development setups
// without a bucket and the handler tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject), baseURL: baseURL}
}

func (m *MemoryStore) Put(_ context.Context, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("reading object body: %w", err)
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{data: data, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) PresignGet(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return m.baseURL + "/" + url.PathEscape(key), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the stored object.
func (m *MemoryStore) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.Clone(obj.data), obj.contentType, true
}

// ServeHTTP serves the object named by the request path, so that the URLs
// from PresignGet resolve when the store is mounted under its base URL.
func (m *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	data, contentType, ok := m.Get(key)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeContent(w, r, path.Base(key), time.Time{}, bytes.NewReader(data))
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
