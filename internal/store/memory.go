package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/weather-imagery/internal/imagery"
)

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryStore is a concurrency-safe in-memory object store. It backs local
// development (STORAGE_BACKEND=memory) and tests.
type MemoryStore struct {
	mu sync.RWMutex

	// key: object key
	data map[string]memoryObject
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryObject),
	}
}

// Head returns metadata of key.
func (s *MemoryStore) Head(ctx context.Context, key string) (imagery.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.data[key]
	if !ok {
		return imagery.ObjectInfo{}, notFound(key)
	}
	return info(key, obj), nil
}

// Get returns a copy of the bytes stored under key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.data[key]
	if !ok {
		return nil, notFound(key)
	}
	return append([]byte(nil), obj.data...), nil
}

// Put stores a copy of data under key, replacing any previous object.
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		modified:    time.Now().UTC(),
	}
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return notFound(key)
	}
	delete(s.data, key)
	return nil
}

// List returns objects under prefix sorted by key. With a delimiter, keys
// that continue past the delimiter after prefix are left out.
func (s *MemoryStore) List(ctx context.Context, prefix, delimiter string) ([]imagery.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []imagery.ObjectInfo
	for key, obj := range s.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if delimiter != "" && strings.Contains(key[len(prefix):], delimiter) {
			continue
		}
		result = append(result, info(key, obj))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func info(key string, obj memoryObject) imagery.ObjectInfo {
	return imagery.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		LastModified: obj.modified,
	}
}

func notFound(key string) error {
	return fmt.Errorf("%w: %s", imagery.ErrObjectNotFound, key)
}
