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
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

const (
	// DefaultPollingInterval is the retry cadence between admission polls.
	DefaultPollingInterval = 30 * time.Millisecond

	// DefaultWaitTimeout bounds one admission wait end to end.
	DefaultWaitTimeout = 10 * time.Second

	abandonTimeout = 2 * time.Second
)

// HealthProvider supplies the healthy deployment list consulted on every
// poll. A nil list means the provider has no signal for that model group.
type HealthProvider interface {
	HealthyDeployments(modelName string) []string
}

// HealthProviderFunc adapts a function to the HealthProvider interface.
type HealthProviderFunc func(modelName string) []string

func (f HealthProviderFunc) HealthyDeployments(modelName string) []string {
	return f(modelName)
}

// Waiter runs the add-then-poll loop for callers that want to block until
// their request is admitted.
type Waiter struct {
	scheduler *Scheduler
	provider  HealthProvider
	interval  time.Duration
	timeout   time.Duration
}

type WaiterOption func(*Waiter)

// WithPollingInterval sets the retry cadence between polls.
func WithPollingInterval(interval time.Duration) WaiterOption {
	return func(w *Waiter) {
		w.interval = interval
	}
}

// WithWaitTimeout bounds how long WaitForAdmission blocks overall.
func WithWaitTimeout(timeout time.Duration) WaiterOption {
	return func(w *Waiter) {
		w.timeout = timeout
	}
}

func NewWaiter(scheduler *Scheduler, provider HealthProvider, opts ...WaiterOption) *Waiter {
	w := &Waiter{
		scheduler: scheduler,
		provider:  provider,
		interval:  DefaultPollingInterval,
		timeout:   DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WaitForAdmission queues item and polls until it is admitted, generating
// a request ID when the item carries none. The ticket is spent on every
// exit path: ordered admission pops it inside Poll, passthrough admission
// removes it here (a queued entry must correspond to a caller still
// waiting), and timeout or cancellation removes it so an abandoned ticket
// cannot starve the rest of the model group. The request ID is returned
// either way.
func (w *Waiter) WaitForAdmission(ctx context.Context, item FlowItem) (string, error) {
	if item.RequestID == "" {
		item.RequestID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.scheduler.AddRequest(ctx, item); err != nil {
		return item.RequestID, err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		admitted, err := w.scheduler.Poll(ctx, item.RequestID, item.ModelName,
			w.provider.HealthyDeployments(item.ModelName))
		switch {
		case errors.Is(err, ErrQueueEmpty):
			// The ticket vanished: a racing writer overwrote the queue or
			// the store evicted the key. Queue it again and keep polling.
			klog.V(4).Infof("Requeueing request %s for model %s after a lost update",
				item.RequestID, item.ModelName)
			if err := w.scheduler.AddRequest(ctx, item); err != nil {
				return item.RequestID, err
			}
		case err != nil:
			w.removeTicket(item)
			return item.RequestID, err
		case admitted:
			// No-op after an ordered admission, which already popped the
			// entry; after a passthrough admission this clears it.
			w.removeTicket(item)
			return item.RequestID, nil
		}

		select {
		case <-ctx.Done():
			w.removeTicket(item)
			return item.RequestID, ctx.Err()
		case <-ticker.C:
		}
	}
}

// removeTicket clears the ticket with a fresh context so cleanup still
// runs after the caller's context expired.
func (w *Waiter) removeTicket(item FlowItem) {
	ctx, cancel := context.WithTimeout(context.Background(), abandonTimeout)
	defer cancel()
	if err := w.scheduler.RemoveRequest(ctx, item.RequestID, item.ModelName); err != nil {
		klog.Errorf("Failed to remove spent request %s for model %s: %v",
			item.RequestID, item.ModelName, err)
	}
}
