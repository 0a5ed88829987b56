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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr, client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, client := setupMiniRedis(t)
	defer mr.Close()

	store := NewRedisStore(client)
	ctx := context.Background()

	// The JSON round-trip erases Go types: ints come back as float64 and
	// nested slices as []interface{}. The queue decoder depends on exactly
	// this shape being handled.
	queued := []interface{}{[]interface{}{0, "req-a"}, []interface{}{128, "req-b"}}
	require.NoError(t, store.Set(ctx, "scheduler:queue:gpt-4", queued))

	value, err := store.Get(ctx, "scheduler:queue:gpt-4")
	require.NoError(t, err)

	decoded, ok := value.([]interface{})
	require.True(t, ok)
	require.Len(t, decoded, 2)

	first, ok := decoded[0].([]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(0), first[0])
	assert.Equal(t, "req-a", first[1])
}

func TestRedisStoreAbsentKey(t *testing.T) {
	mr, client := setupMiniRedis(t)
	defer mr.Close()

	store := NewRedisStore(client)

	value, err := store.Get(context.Background(), "scheduler:queue:unknown")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestRedisStoreCorruptValue(t *testing.T) {
	mr, client := setupMiniRedis(t)
	defer mr.Close()

	store := NewRedisStore(client)

	// A value that is not JSON at all is returned raw rather than failing.
	require.NoError(t, mr.Set("scheduler:queue:gpt-4", "{{{not json"))

	value, err := store.Get(context.Background(), "scheduler:queue:gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "{{{not json", value)
}

func TestRedisStoreTTL(t *testing.T) {
	mr, client := setupMiniRedis(t)
	defer mr.Close()

	store := NewRedisStore(client, WithRedisTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))
	assert.True(t, mr.Exists("k"))

	mr.FastForward(2 * time.Minute)

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, value)
}
