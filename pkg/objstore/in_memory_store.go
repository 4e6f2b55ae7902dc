package objstore

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// InMemoryStore keeps objects in a map for tests.
type InMemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	// FailPuts makes every Put fail, for exercising retry paths.
	FailPuts bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (s *InMemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailPuts {
		return fmt.Errorf("put %s: storage unavailable", key)
	}

	s.objects[key] = data
	s.types[key] = contentType
	return nil
}

func (s *InMemoryStore) SignedGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("no such object: %s", key)
	}

	return fmt.Sprintf("mem://%s?expires=%d", key, int(ttl.Seconds())), nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	delete(s.types, key)
	return nil
}

func (s *InMemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	return data, ok
}

func (s *InMemoryStore) ContentType(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.types[key]
}

func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.objects)
}
