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
	"reflect"
	"strconv"
	"strings"

	"k8s.io/klog/v2"
)

// DecodeQueue normalizes whatever value the store returned for a queue key
// into canonical entries. It never panics and never fails: a value that is
// not a sequence decodes as an empty queue, and each malformed element is
// dropped on its own without aborting the rest. Decoding an already
// canonical queue returns it unchanged.
func DecodeQueue(raw interface{}) []Entry {
	entries, _ := decodeQueue(raw)
	return entries
}

func decodeQueue(raw interface{}) ([]Entry, int) {
	if entries, ok := raw.([]Entry); ok {
		return entries, 0
	}
	seq, ok := asSequence(raw)
	if !ok {
		if raw != nil {
			klog.V(4).Infof("Discarding non-sequence queue value of type %T", raw)
		}
		return nil, 0
	}

	entries := make([]Entry, 0, len(seq))
	dropped := 0
	for _, elem := range seq {
		entry, ok := coerceEntry(elem)
		if !ok {
			dropped++
			klog.V(4).Infof("Dropping malformed queue entry %v", elem)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, dropped
}

// coerceEntry validates one raw element as a (priority, request ID) pair.
// Anything that is not a two-element sequence with a coercible priority and
// request ID is rejected.
func coerceEntry(elem interface{}) (Entry, bool) {
	if entry, ok := elem.(Entry); ok {
		return entry, true
	}
	pair, ok := asSequence(elem)
	if !ok || len(pair) != 2 {
		return Entry{}, false
	}
	priority, ok := coercePriority(pair[0])
	if !ok {
		return Entry{}, false
	}
	requestID, ok := coerceRequestID(pair[1])
	if !ok {
		return Entry{}, false
	}
	return Entry{Priority: priority, RequestID: requestID}, true
}

// coercePriority accepts any numeric representation of a priority,
// truncating fractions the way the store's serialization already blurs
// them. A priority that is itself a sequence is recovered through its
// first element; that shape appears when a queue value round-trips the
// serialization boundary twice.
func coercePriority(v interface{}) (int, bool) {
	switch value := v.(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return int(n), true
		}
		if f, err := value.Float64(); err == nil {
			return int(f), true
		}
		return 0, false
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	if seq, ok := asSequence(v); ok {
		if len(seq) == 0 {
			return 0, false
		}
		return coercePriority(seq[0])
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return int(rv.Float()), true
	}
	return 0, false
}

// coerceRequestID accepts the scalar shapes a request ID takes after the
// store round-trip. Containers, booleans and nil are rejected.
func coerceRequestID(v interface{}) (string, bool) {
	switch value := v.(type) {
	case string:
		return value, true
	case []byte:
		return string(value), true
	case json.Number:
		return value.String(), true
	case int:
		return strconv.Itoa(value), true
	case int64:
		return strconv.FormatInt(value, 10), true
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64), true
	}
	return "", false
}

// asSequence views v as a general sequence. Strings and byte slices are
// scalars here, not sequences, matching how queue values are stored.
func asSequence(v interface{}) ([]interface{}, bool) {
	switch seq := v.(type) {
	case nil:
		return nil, false
	case []interface{}:
		return seq, true
	case []Entry:
		out := make([]interface{}, len(seq))
		for i, entry := range seq {
			out[i] = entry
		}
		return out, true
	case string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
