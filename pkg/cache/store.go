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

// Package cache provides the shared keyed store behind the admission
// scheduler's per-model queues. A store may be process-local (MemoryStore),
// networked and shared across processes (RedisStore), or layered
// (DualStore). Values written through a networked store round-trip through
// JSON, so readers must not assume type fidelity beyond what the decoder
// in the scheduler package tolerates.
package cache

import "context"

// Store is a keyed value store shared by every scheduler instance.
type Store interface {
	// Get returns the value stored under key, or nil when the key is absent.
	Get(ctx context.Context, key string) (interface{}, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value interface{}) error

	// Name identifies the store implementation in logs and debug output.
	Name() string
}
