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
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"istio.io/istio/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/volcano-sh/infer-scheduler/pkg/deployment"
	"github.com/volcano-sh/infer-scheduler/pkg/scheduler"
)

// DebugHandler provides debug endpoints for the scheduler
type DebugHandler struct {
	scheduler *scheduler.Scheduler
	registry  *deployment.Registry
}

// NewDebugHandler creates a new debug handler
func NewDebugHandler(sched *scheduler.Scheduler, registry *deployment.Registry) *DebugHandler {
	return &DebugHandler{
		scheduler: sched,
		registry:  registry,
	}
}

// Register mounts the debug endpoints on the given engine
func (h *DebugHandler) Register(engine *gin.Engine) {
	group := engine.Group("/debug")
	group.GET("/queues", h.ListQueues)
	group.GET("/queues/:model", h.GetQueue)
	group.GET("/status", h.GetStatus)
	group.GET("/deployments", h.ListDeployments)
	group.GET("/decisions", h.ListDecisions)
}

// Response structures

type QueueResponse struct {
	ModelName   string          `json:"modelName"`
	Depth       int             `json:"depth"`
	Entries     []EntryResponse `json:"entries"`
	Fingerprint string          `json:"fingerprint"`
}

type EntryResponse struct {
	Priority  int    `json:"priority"`
	RequestID string `json:"requestId"`
}

// ListQueues handles GET /debug/queues. It reads every model group the
// registry or this scheduler instance knows about live from the store.
func (h *DebugHandler) ListQueues(c *gin.Context) {
	ctx := c.Request.Context()

	models := sets.New[string]()
	for _, model := range h.registry.Models() {
		models.Insert(model)
	}
	for _, queue := range h.scheduler.Status().Queues {
		models.Insert(queue.ModelName)
	}

	var responses []QueueResponse
	for _, model := range sets.SortedList(models) {
		entries, err := h.scheduler.GetQueue(ctx, model)
		if err != nil {
			klog.Errorf("Failed to read queue for model %s: %v", model, err)
			continue
		}
		responses = append(responses, queueResponse(model, entries))
	}

	c.JSON(http.StatusOK, gin.H{"queues": responses})
}

// GetQueue handles GET /debug/queues/{model}
func (h *DebugHandler) GetQueue(c *gin.Context) {
	model := c.Param("model")
	if model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model parameter is required"})
		return
	}

	entries, err := h.scheduler.GetQueue(c.Request.Context(), model)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(entries) == 0 && h.registry.HealthyDeployments(model) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "model group not found"})
		return
	}

	c.JSON(http.StatusOK, queueResponse(model, entries))
}

// GetStatus handles GET /debug/status. The snapshot reflects this
// process's own last reads, not an authoritative store view.
func (h *DebugHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Status())
}

// ListDeployments handles GET /debug/deployments
func (h *DebugHandler) ListDeployments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"deployments": h.registry.Snapshot()})
}

// ListDecisions handles GET /debug/decisions
func (h *DebugHandler) ListDecisions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"decisions": h.scheduler.Status().Decisions})
}

// Helper methods

// queueResponse renders entries in admission order. The fingerprint is
// computed over the stored order so it matches the /debug/status view.
func queueResponse(model string, entries []scheduler.Entry) QueueResponse {
	fingerprint := scheduler.Fingerprint(entries)

	ordered := make([]scheduler.Entry, len(entries))
	copy(ordered, entries)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].RequestID < ordered[j].RequestID
	})

	out := make([]EntryResponse, 0, len(ordered))
	for _, entry := range ordered {
		out = append(out, EntryResponse{
			Priority:  entry.Priority,
			RequestID: entry.RequestID,
		})
	}
	return QueueResponse{
		ModelName:   model,
		Depth:       len(entries),
		Entries:     out,
		Fingerprint: fingerprint,
	}
}
