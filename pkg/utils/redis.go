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

package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

const redisConnectTimeout = 2 * time.Second

func redisOptions() *redis.Options {
	redisHost := LoadEnv("REDIS_HOST", "localhost")
	redisPort := LoadEnv("REDIS_PORT", "6379")
	redisPassword := LoadEnv("REDIS_PASSWORD", "")

	return &redis.Options{
		Addr:     redisHost + ":" + redisPort,
		Password: redisPassword,
		DB:       0,
	}
}

// GetRedisClient connects to Redis using the REDIS_HOST, REDIS_PORT and
// REDIS_PASSWORD environment variables. The process exits when the
// connection cannot be established.
func GetRedisClient() *redis.Client {
	client := redis.NewClient(redisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		klog.Fatalf("Error connecting to Redis: %v", err)
	}
	klog.Infof("Connected to Redis: %s", pong)
	return client
}

// TryGetRedisClient is like GetRedisClient but returns nil instead of
// exiting when Redis is unreachable.
func TryGetRedisClient() *redis.Client {
	client := redis.NewClient(redisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		klog.Errorf("Redis connection failed: %v", err)
		_ = client.Close()
		return nil
	}
	return client
}
