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

package debug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volcano-sh/infer-scheduler/pkg/deployment"
	"github.com/volcano-sh/infer-scheduler/pkg/scheduler"
)

func newTestHandler() (*DebugHandler, *scheduler.Scheduler, *deployment.Registry) {
	sched := scheduler.NewScheduler()
	registry := deployment.NewRegistry()
	return NewDebugHandler(sched, registry), sched, registry
}

func TestListQueues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	handler, sched, registry := newTestHandler()
	registry.Register("llama-3-8b", deployment.Deployment{Name: "vllm-0"})

	require.NoError(t, sched.AddRequest(ctx, scheduler.FlowItem{Priority: 5, RequestID: "r1", ModelName: "llama-3-8b"}))
	require.NoError(t, sched.AddRequest(ctx, scheduler.FlowItem{Priority: 1, RequestID: "r2", ModelName: "llama-3-8b"}))
	// qwen-72b is known only through the scheduler, not the registry.
	require.NoError(t, sched.AddRequest(ctx, scheduler.FlowItem{Priority: 0, RequestID: "q1", ModelName: "qwen-72b"}))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest("GET", "/debug/queues", nil)
	c.Request = req

	handler.ListQueues(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string][]QueueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	queues := response["queues"]
	require.Len(t, queues, 2)
	assert.Equal(t, "llama-3-8b", queues[0].ModelName)
	assert.Equal(t, 2, queues[0].Depth)
	assert.Equal(t, []EntryResponse{{Priority: 1, RequestID: "r2"}, {Priority: 5, RequestID: "r1"}}, queues[0].Entries)
	assert.Equal(t, "qwen-72b", queues[1].ModelName)
	assert.Equal(t, 1, queues[1].Depth)
}

func TestGetQueue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	handler, sched, _ := newTestHandler()
	require.NoError(t, sched.AddRequest(ctx, scheduler.FlowItem{Priority: 5, RequestID: "r1", ModelName: "llama-3-8b"}))
	require.NoError(t, sched.AddRequest(ctx, scheduler.FlowItem{Priority: 3, RequestID: "r2", ModelName: "llama-3-8b"}))
	require.NoError(t, sched.AddRequest(ctx, scheduler.FlowItem{Priority: 1, RequestID: "r3", ModelName: "llama-3-8b"}))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest("GET", "/debug/queues/llama-3-8b", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "model", Value: "llama-3-8b"}}

	handler.GetQueue(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response QueueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	// Entries come back in admission order regardless of heap layout.
	assert.Equal(t, "llama-3-8b", response.ModelName)
	assert.Equal(t, 3, response.Depth)
	assert.Equal(t, []EntryResponse{
		{Priority: 1, RequestID: "r3"},
		{Priority: 3, RequestID: "r2"},
		{Priority: 5, RequestID: "r1"},
	}, response.Entries)
	assert.Len(t, response.Fingerprint, 16)
}

func TestGetQueueNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler, _, registry := newTestHandler()
	registry.Register("llama-3-8b", deployment.Deployment{Name: "vllm-0"})

	// Test Case 1: a model group nobody registered or queued is a 404
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest("GET", "/debug/queues/ghost-model", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "model", Value: "ghost-model"}}

	handler.GetQueue(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Test Case 2: a registered model group with an empty queue is not
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	req, _ = http.NewRequest("GET", "/debug/queues/llama-3-8b", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "model", Value: "llama-3-8b"}}

	handler.GetQueue(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var response QueueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 0, response.Depth)
}

func TestGetStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	handler, sched, _ := newTestHandler()
	require.NoError(t, sched.AddRequest(ctx, scheduler.FlowItem{Priority: 1, RequestID: "r1", ModelName: "llama-3-8b"}))

	admitted, err := sched.Poll(ctx, "r1", "llama-3-8b", []string{"vllm-0"})
	require.NoError(t, err)
	require.True(t, admitted)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest("GET", "/debug/status", nil)
	c.Request = req

	handler.GetStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var status scheduler.QueueStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "memory", status.Store)
	require.Len(t, status.Queues, 1)
	assert.Equal(t, "llama-3-8b", status.Queues[0].ModelName)
	require.NotEmpty(t, status.Decisions)
	assert.True(t, status.Decisions[len(status.Decisions)-1].Admitted)
}

func TestListDeployments(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler, _, registry := newTestHandler()
	registry.Register("llama-3-8b",
		deployment.Deployment{Name: "vllm-0", MetricsURL: "http://vllm-0:8000/metrics"},
		deployment.Deployment{Name: "vllm-1", MetricsURL: "http://vllm-1:8000/metrics"},
	)
	registry.SetHealthy("llama-3-8b", "vllm-1", true)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest("GET", "/debug/deployments", nil)
	c.Request = req

	handler.ListDeployments(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]map[string][]deployment.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	statuses := response["deployments"]["llama-3-8b"]
	require.Len(t, statuses, 2)
	assert.False(t, statuses[0].Healthy)
	assert.True(t, statuses[1].Healthy)
}

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	handler, sched, registry := newTestHandler()
	registry.Register("llama-3-8b", deployment.Deployment{Name: "vllm-0"})
	require.NoError(t, sched.AddRequest(ctx, scheduler.FlowItem{Priority: 1, RequestID: "r1", ModelName: "llama-3-8b"}))

	engine := gin.New()
	handler.Register(engine)

	tests := []struct {
		path string
		want int
	}{
		{"/debug/queues", http.StatusOK},
		{"/debug/queues/llama-3-8b", http.StatusOK},
		{"/debug/queues/ghost-model", http.StatusNotFound},
		{"/debug/status", http.StatusOK},
		{"/debug/deployments", http.StatusOK},
		{"/debug/decisions", http.StatusOK},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", tt.path, nil)
		engine.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Code, "GET %s", tt.path)
	}
}
