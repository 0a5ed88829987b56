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
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultLocalTTL  = 5 * time.Second
	defaultLocalSize = 1024
)

// DualStore layers a short-lived local LRU in front of a backing store.
// Reads served from the local layer can lag writes made by other processes
// by up to the local TTL; the backing store stays authoritative.
type DualStore struct {
	local   *expirable.LRU[string, interface{}]
	backing Store
}

type DualStoreOption func(*dualStoreConfig)

type dualStoreConfig struct {
	ttl  time.Duration
	size int
}

// WithLocalTTL bounds how long the local layer may serve a key without
// consulting the backing store.
func WithLocalTTL(ttl time.Duration) DualStoreOption {
	return func(c *dualStoreConfig) {
		c.ttl = ttl
	}
}

// WithLocalSize caps the number of keys held in the local layer.
func WithLocalSize(size int) DualStoreOption {
	return func(c *dualStoreConfig) {
		c.size = size
	}
}

func NewDualStore(backing Store, opts ...DualStoreOption) *DualStore {
	cfg := &dualStoreConfig{
		ttl:  defaultLocalTTL,
		size: defaultLocalSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &DualStore{
		local:   expirable.NewLRU[string, interface{}](cfg.size, nil, cfg.ttl),
		backing: backing,
	}
}

func (s *DualStore) Get(ctx context.Context, key string) (interface{}, error) {
	if value, ok := s.local.Get(key); ok {
		return value, nil
	}
	value, err := s.backing.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if value != nil {
		s.local.Add(key, value)
	}
	return value, nil
}

func (s *DualStore) Set(ctx context.Context, key string, value interface{}) error {
	// The authoritative store is written first; the local copy is refreshed
	// only after that write succeeds.
	if err := s.backing.Set(ctx, key, value); err != nil {
		return err
	}
	s.local.Add(key, value)
	return nil
}

func (s *DualStore) Name() string {
	return "dual(" + s.backing.Name() + ")"
}
