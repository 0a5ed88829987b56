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

// Package deployment tracks the serving deployments behind each model group
// and probes their metrics endpoints to decide which ones have capacity.
package deployment

import (
	"sort"
	"sync"

	"istio.io/istio/pkg/util/sets"
)

// Deployment is one serving endpoint registered under a model group.
type Deployment struct {
	// Name identifies the deployment within its model group.
	Name string `json:"name"`

	// MetricsURL is the Prometheus text endpoint the prober scrapes,
	// e.g. http://vllm-0:8000/metrics.
	MetricsURL string `json:"metricsUrl"`
}

// Status reports one deployment together with its current health verdict.
type Status struct {
	Name       string `json:"name"`
	MetricsURL string `json:"metricsUrl"`
	Healthy    bool   `json:"healthy"`
}

// Registry holds the deployments known per model group and which of them
// are currently healthy. HealthyDeployments distinguishes a model group the
// registry has never seen (nil) from one whose deployments are all out of
// capacity (empty, non-nil); the scheduler relies on that distinction.
type Registry struct {
	mutex sync.RWMutex

	// deployments keeps registration order per model group.
	deployments map[string][]Deployment
	healthy     map[string]sets.Set[string]
}

func NewRegistry() *Registry {
	return &Registry{
		deployments: make(map[string][]Deployment),
		healthy:     make(map[string]sets.Set[string]),
	}
}

// Register adds deployments under a model group, replacing any existing
// deployment with the same name. Newly registered deployments start
// unhealthy until a probe marks them otherwise.
func (r *Registry) Register(modelName string, deps ...Deployment) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.healthy[modelName]; !exists {
		r.healthy[modelName] = sets.New[string]()
	}
	for _, dep := range deps {
		replaced := false
		for i, existing := range r.deployments[modelName] {
			if existing.Name == dep.Name {
				r.deployments[modelName][i] = dep
				replaced = true
				break
			}
		}
		if !replaced {
			r.deployments[modelName] = append(r.deployments[modelName], dep)
		}
	}
}

// SetHealthy records the probe verdict for one deployment. Verdicts for
// deployments that were never registered are dropped.
func (r *Registry) SetHealthy(modelName, name string, isHealthy bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	set, exists := r.healthy[modelName]
	if !exists {
		return
	}
	if !r.isRegistered(modelName, name) {
		return
	}
	if isHealthy {
		set.Insert(name)
	} else {
		set.Delete(name)
	}
}

// HealthyDeployments returns the healthy deployment names for a model
// group in registration order. It returns nil when the model group is
// unknown, which callers treat as having no health signal at all.
func (r *Registry) HealthyDeployments(modelName string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	set, exists := r.healthy[modelName]
	if !exists {
		return nil
	}
	names := make([]string, 0, set.Len())
	for _, dep := range r.deployments[modelName] {
		if set.Contains(dep.Name) {
			names = append(names, dep.Name)
		}
	}
	return names
}

// Deployments returns a copy of the deployments registered under a model
// group.
func (r *Registry) Deployments(modelName string) []Deployment {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	deps := r.deployments[modelName]
	if deps == nil {
		return nil
	}
	out := make([]Deployment, len(deps))
	copy(out, deps)
	return out
}

// Models returns the registered model group names sorted alphabetically.
// A model group counts as registered from its first Register call even if
// it carries no deployments yet.
func (r *Registry) Models() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	models := make([]string, 0, len(r.healthy))
	for model := range r.healthy {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// Snapshot returns every registered deployment with its health verdict,
// keyed by model group, for diagnostics.
func (r *Registry) Snapshot() map[string][]Status {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	snapshot := make(map[string][]Status, len(r.healthy))
	for model := range r.healthy {
		deps := r.deployments[model]
		statuses := make([]Status, 0, len(deps))
		for _, dep := range deps {
			statuses = append(statuses, Status{
				Name:       dep.Name,
				MetricsURL: dep.MetricsURL,
				Healthy:    r.healthy[model].Contains(dep.Name),
			})
		}
		snapshot[model] = statuses
	}
	return snapshot
}

// isRegistered must be called with the mutex held.
func (r *Registry) isRegistered(modelName, name string) bool {
	for _, dep := range r.deployments[modelName] {
		if dep.Name == name {
			return true
		}
	}
	return false
}
