/*
Copyright The Volcano Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    interface{}
	expireAt time.Time // zero means no expiry
}

// MemoryStore is the in-process fallback store for single-process
// deployments. Values are kept as-is, without any serialization round-trip.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
}

type MemoryStoreOption func(*MemoryStore)

// WithMemoryTTL sets an expiry applied to every value written to the store.
func WithMemoryTTL(ttl time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.ttl = ttl
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]memoryItem),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) (interface{}, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !item.expireAt.IsZero() && time.Now().After(item.expireAt) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed the key.
		if current, ok := s.items[key]; ok && current.expireAt.Equal(item.expireAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, nil
	}
	return item.value, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}) error {
	item := memoryItem{value: value}
	if s.ttl > 0 {
		item.expireAt = time.Now().Add(s.ttl)
	}
	s.mu.Lock()
	s.items[key] = item
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Name() string {
	return "memory"
}
