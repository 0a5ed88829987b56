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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash"
	"k8s.io/klog/v2"

	"github.com/volcano-sh/infer-scheduler/pkg/metrics"
)

// Decision records one admission decision for diagnostics.
type Decision struct {
	Op        string    `json:"op"`
	RequestID string    `json:"request_id"`
	ModelName string    `json:"model_name"`
	Admitted  bool      `json:"admitted"`
	Mode      string    `json:"mode"`
	Time      time.Time `json:"time"`
}

// ModelQueueStatus is the last-known snapshot of one model group's queue.
type ModelQueueStatus struct {
	ModelName   string  `json:"model_name"`
	Depth       int     `json:"depth"`
	Entries     []Entry `json:"entries"`
	Fingerprint string  `json:"fingerprint"`
}

// QueueStatus is a diagnostic snapshot of every queue this scheduler
// instance has touched plus its recent admission decisions. It reflects
// this process's last reads and writes, not the authoritative store state.
type QueueStatus struct {
	Store     string             `json:"store"`
	Queues    []ModelQueueStatus `json:"queues"`
	Decisions []Decision         `json:"decisions"`
}

// Status returns the scheduler's diagnostic snapshot. Decisions are
// ordered oldest first.
func (s *Scheduler) Status() QueueStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	models := make([]string, 0, len(s.lastSeen))
	for model := range s.lastSeen {
		models = append(models, model)
	}
	sort.Strings(models)

	status := QueueStatus{
		Store:  s.store.Name(),
		Queues: make([]ModelQueueStatus, 0, len(models)),
	}
	for _, model := range models {
		entries := s.lastSeen[model]
		snapshot := make([]Entry, len(entries))
		copy(snapshot, entries)
		status.Queues = append(status.Queues, ModelQueueStatus{
			ModelName:   model,
			Depth:       len(snapshot),
			Entries:     snapshot,
			Fingerprint: Fingerprint(snapshot),
		})
	}

	status.Decisions = make([]Decision, 0, s.history.Len())
	for i := 0; i < s.history.Len(); i++ {
		status.Decisions = append(status.Decisions, s.history.At(i))
	}
	return status
}

// Fingerprint hashes a queue's entries so operators can compare queue
// state across processes at a glance.
func Fingerprint(entries []Entry) string {
	var sb strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&sb, "%d:%s;", entry.Priority, entry.RequestID)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64([]byte(sb.String())))
}

func (s *Scheduler) recordDecision(op, requestID, modelName string, admitted bool, mode string) {
	if admitted {
		if op == metrics.OpPoll {
			s.metrics.RecordAdmission(modelName, mode)
		}
	} else {
		s.metrics.RecordRejection(modelName, op)
	}

	s.mu.Lock()
	s.history.PushBack(Decision{
		Op:        op,
		RequestID: requestID,
		ModelName: modelName,
		Admitted:  admitted,
		Mode:      mode,
		Time:      time.Now(),
	})
	for s.history.Len() > s.historyCap {
		s.history.PopFront()
	}
	s.mu.Unlock()

	klog.V(4).Infof("%s request %s on model %s: admitted=%t mode=%s",
		op, requestID, modelName, admitted, mode)
}
