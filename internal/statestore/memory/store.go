// Package memory provides an in-memory state store for the
// single-process variant and tests.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Store implements crawler.StateStore with a mutex-guarded map.
type Store struct {
	mu   sync.Mutex
	data map[string]string
}

// New constructs an empty Store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// SetIfAbsent sets key to value only if the key is missing, reporting
// whether this call was the writer.
func (s *Store) SetIfAbsent(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = value
	return true, nil
}

// Increment adds delta to the integer stored at key, treating a missing
// key as zero, and returns the new value.
func (s *Store) Increment(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if raw, exists := s.data[key]; exists {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %q is not an integer: %w", key, err)
		}
		current = parsed
	}
	current += delta
	s.data[key] = strconv.FormatInt(current, 10)
	return current, nil
}

// Get returns the value at key and whether it exists.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, exists := s.data[key]
	return value, exists, nil
}

// Set stores value at key unconditionally.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}
