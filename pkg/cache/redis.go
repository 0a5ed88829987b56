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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

const defaultRedisOpTimeout = 5 * time.Second

// RedisStore shares queue state across processes through Redis. Values are
// serialized as JSON, which flattens typed slices into plain arrays and
// numbers into float64 on the way back out.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

type RedisStoreOption func(*RedisStore)

// WithRedisTTL sets an expiry applied to every value written to Redis.
// Zero keeps values until they are overwritten.
func WithRedisTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithRedisOpTimeout bounds each Redis round-trip.
func WithRedisOpTimeout(timeout time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.timeout = timeout
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		timeout: defaultRedisOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Get(ctx context.Context, key string) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		// Unparseable payloads are handed back raw so the caller's decoder
		// treats them like any other corrupted value instead of failing.
		klog.Errorf("Failed to decode redis value under key %s: %v", key, err)
		return string(data), nil
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for key %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Name() string {
	return "redis"
}
