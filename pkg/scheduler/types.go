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
	"encoding/json"
	"fmt"
)

// Named priority levels. Priorities are 0-255 with lower values served
// first; callers are free to pick any value in between.
const (
	PriorityHigh   = 0
	PriorityMedium = 128
	PriorityLow    = 255
)

// FlowItem is a request's scheduling ticket. It is created by the caller
// right before requesting admission, handed to AddRequest once and never
// mutated afterwards.
type FlowItem struct {
	// Priority is 0-255, lower value means served first.
	Priority int `json:"priority"`

	// RequestID must be unique within the model group's queue. Equal
	// priorities are ordered by request ID, not by insertion order.
	RequestID string `json:"request_id"`

	// ModelName selects the model group whose queue receives the ticket.
	ModelName string `json:"model_name"`
}

// Entry is one queued ticket inside a model group's queue. On the wire it
// is a positional pair, so a stored queue serializes as
// [[priority, request_id], ...].
type Entry struct {
	Priority  int
	RequestID string
}

// MarshalJSON encodes the entry as a [priority, request_id] pair.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Priority, e.RequestID})
}

// UnmarshalJSON decodes a pair, tolerating the loose typing the queue
// decoder accepts.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var pair []interface{}
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	entry, ok := coerceEntry(pair)
	if !ok {
		return fmt.Errorf("malformed queue entry: %s", string(data))
	}
	*e = entry
	return nil
}
