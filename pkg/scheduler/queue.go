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

package scheduler

import (
	"container/heap"
	"context"
	"fmt"

	"k8s.io/klog/v2"
)

// QueueKeyPrefix namespaces every queue inside the shared store. One key
// exists per model group and queues are never merged. The format is a
// cross-process contract: schedctl and any embedding caller address the
// same queues through it.
const QueueKeyPrefix = "scheduler:queue"

// QueueKey returns the store key holding modelName's queue.
func QueueKey(modelName string) string {
	return QueueKeyPrefix + ":" + modelName
}

// entryHeap implements heap.Interface over a model group's entries. Equal
// priorities order by request ID so placement is deterministic across
// processes regardless of insertion order.
type entryHeap []Entry

func (h entryHeap) Len() int {
	return len(h)
}

func (h entryHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].RequestID < h[j].RequestID
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *entryHeap) Push(x interface{}) {
	*h = append(*h, x.(Entry))
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// GetQueue fetches and decodes the queue for modelName. Malformed store
// values never surface as errors; whatever entries survive decoding are
// re-heapified so the result is always a valid min-heap. An absent key
// reads as an empty queue.
func (s *Scheduler) GetQueue(ctx context.Context, modelName string) ([]Entry, error) {
	raw, err := s.store.Get(ctx, QueueKey(modelName))
	if err != nil {
		return nil, fmt.Errorf("fetch queue for model %s: %w", modelName, err)
	}

	entries, dropped := decodeQueue(raw)
	if dropped > 0 {
		klog.Errorf("Dropped %d malformed entries from the %s queue", dropped, modelName)
		s.metrics.RecordDecodeDropped(modelName, dropped)
	}

	// The stored slice is already heap-ordered unless it was corrupted;
	// Init keeps a valid heap untouched and repairs everything else.
	h := entryHeap(entries)
	heap.Init(&h)
	entries = []Entry(h)

	s.observeQueue(modelName, entries)
	return entries, nil
}

// saveQueue overwrites modelName's queue in the store. Last writer wins;
// there is no optimistic concurrency control around the read-modify-write
// cycle (see the package concurrency notes on Scheduler).
func (s *Scheduler) saveQueue(ctx context.Context, modelName string, entries []Entry) error {
	if err := s.store.Set(ctx, QueueKey(modelName), entries); err != nil {
		return fmt.Errorf("save queue for model %s: %w", modelName, err)
	}
	s.observeQueue(modelName, entries)
	return nil
}
