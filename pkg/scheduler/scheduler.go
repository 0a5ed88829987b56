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

// Package scheduler decides which queued request may proceed to a model
// group's backend deployments. Each model group owns one min-heap of
// (priority, request ID) pairs persisted in a shared keyed store, so any
// number of processes can run their own Scheduler against the same queues.
//
// The Scheduler holds no locks around store access and runs no background
// goroutines. Every operation is one unsynchronized read-modify-write
// cycle against the store; two processes racing on the same queue resolve
// last-write-wins, and a lost update costs at most one extra queue/poll
// cycle for the affected ticket. The internal mutex only guards the
// diagnostic snapshot and decision history.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"k8s.io/klog/v2"

	"github.com/volcano-sh/infer-scheduler/pkg/cache"
	"github.com/volcano-sh/infer-scheduler/pkg/metrics"
)

var (
	// ErrQueueEmpty reports a poll or peek against a model group with no
	// queued tickets. The caller must queue its request first.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrNoDeploymentSignal reports that no healthy deployment list was
	// supplied at all, meaning the health collaborator was unreachable.
	ErrNoDeploymentSignal = errors.New("healthy deployment list is unavailable")
)

const defaultHistorySize = 128

// Scheduler is the caller-facing admission component. All state lives in
// the shared store; the fields behind mu are diagnostics only.
type Scheduler struct {
	store   cache.Store
	metrics *metrics.Metrics

	// mu guards lastSeen and history, never store access.
	mu         sync.RWMutex
	lastSeen   map[string][]Entry
	history    deque.Deque[Decision]
	historyCap int
}

type Option func(*Scheduler)

// WithStore selects the shared keyed store backing the queues. The default
// is a process-local memory store.
func WithStore(store cache.Store) Option {
	return func(s *Scheduler) {
		s.store = store
	}
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithHistorySize bounds the diagnostic decision history.
func WithHistorySize(size int) Option {
	return func(s *Scheduler) {
		s.historyCap = size
	}
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      cache.NewMemoryStore(),
		metrics:    metrics.DefaultMetrics,
		lastSeen:   make(map[string][]Entry),
		historyCap: defaultHistorySize,
	}
	for _, opt := range opts {
		opt(s)
	}
	klog.V(4).Infof("Scheduler using %s store", s.store.Name())
	return s
}

// AddRequest pushes item into its model group's queue, making the ticket
// visible to every process sharing the store. It does not decide
// admission; the caller follows up with Poll.
func (s *Scheduler) AddRequest(ctx context.Context, item FlowItem) error {
	entries, err := s.GetQueue(ctx, item.ModelName)
	if err != nil {
		return err
	}

	h := entryHeap(entries)
	heap.Push(&h, Entry{Priority: item.Priority, RequestID: item.RequestID})
	if err := s.saveQueue(ctx, item.ModelName, []Entry(h)); err != nil {
		return err
	}

	s.metrics.RecordRequestQueued(item.ModelName)
	klog.V(4).Infof("Queued request %s for model %s with priority %d",
		item.RequestID, item.ModelName, item.Priority)
	return nil
}

// Poll answers whether the request identified by id may proceed. With at
// least one healthy deployment every caller is admitted and the ticket
// stays queued; with none, only the top-of-heap ticket is admitted, and it
// is popped in the same cycle. Denied callers retry on their own interval.
//
// An empty queue or a nil healthyDeployments slice is caller misuse: Poll
// requires the caller's own ticket to be queued and a reachable health
// signal. An empty but non-nil slice is the normal capacity-constrained
// state.
func (s *Scheduler) Poll(ctx context.Context, id, modelName string, healthyDeployments []string) (bool, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObservePollDuration(modelName, metrics.OpPoll, time.Since(start))
	}()

	entries, err := s.GetQueue(ctx, modelName)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, fmt.Errorf("poll request %s on model %s: %w", id, modelName, ErrQueueEmpty)
	}
	if healthyDeployments == nil {
		return false, fmt.Errorf("poll request %s on model %s: %w", id, modelName, ErrNoDeploymentSignal)
	}

	if len(healthyDeployments) > 0 {
		// Capacity exists; the ticket stays queued for the caller to
		// reuse or cancel.
		s.recordDecision(metrics.OpPoll, id, modelName, true, metrics.ModePassthrough)
		return true, nil
	}

	if entries[0].RequestID != id {
		s.recordDecision(metrics.OpPoll, id, modelName, false, metrics.ModeOrdered)
		return false, nil
	}

	h := entryHeap(entries)
	heap.Pop(&h)
	if err := s.saveQueue(ctx, modelName, []Entry(h)); err != nil {
		return false, err
	}
	s.recordDecision(metrics.OpPoll, id, modelName, true, metrics.ModeOrdered)
	return true, nil
}

// Peek answers "would id be admitted right now" without consuming the
// ticket. It mirrors Poll's capacity-constrained branch but never mutates
// the queue. With capacity available it reports false: Peek's contract is
// top-of-heap position, not general admission.
func (s *Scheduler) Peek(ctx context.Context, id, modelName string, healthyDeployments []string) (bool, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObservePollDuration(modelName, metrics.OpPeek, time.Since(start))
	}()

	entries, err := s.GetQueue(ctx, modelName)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, fmt.Errorf("peek request %s on model %s: %w", id, modelName, ErrQueueEmpty)
	}
	if healthyDeployments == nil {
		return false, fmt.Errorf("peek request %s on model %s: %w", id, modelName, ErrNoDeploymentSignal)
	}

	if len(healthyDeployments) > 0 {
		s.recordDecision(metrics.OpPeek, id, modelName, false, metrics.ModePassthrough)
		return false, nil
	}

	admitted := entries[0].RequestID == id
	s.recordDecision(metrics.OpPeek, id, modelName, admitted, metrics.ModeOrdered)
	return admitted, nil
}

// RemoveRequest cancels a queued ticket. Removing an id that is not queued
// is a benign no-op: the ticket may already have been admitted or
// cancelled. Callers that give up waiting must call this, otherwise an
// abandoned top-of-heap ticket starves the model group while capacity is
// constrained.
func (s *Scheduler) RemoveRequest(ctx context.Context, requestID, modelName string) error {
	entries, err := s.GetQueue(ctx, modelName)
	if err != nil {
		return err
	}

	index := -1
	for i := range entries {
		if entries[i].RequestID == requestID {
			index = i
			break
		}
	}
	if index < 0 {
		klog.V(4).Infof("Request %s is not queued for model %s, nothing to remove", requestID, modelName)
		return nil
	}

	h := entryHeap(entries)
	heap.Remove(&h, index)
	if err := s.saveQueue(ctx, modelName, []Entry(h)); err != nil {
		return err
	}

	s.metrics.RecordRequestRemoved(modelName)
	klog.V(4).Infof("Removed request %s from the %s queue", requestID, modelName)
	return nil
}

// observeQueue refreshes the diagnostic snapshot for modelName. The copy
// keeps later heap operations on the live slice from mutating the snapshot.
func (s *Scheduler) observeQueue(modelName string, entries []Entry) {
	snapshot := make([]Entry, len(entries))
	copy(snapshot, entries)

	s.mu.Lock()
	s.lastSeen[modelName] = snapshot
	s.mu.Unlock()

	s.metrics.SetQueueDepth(modelName, len(entries))
}
