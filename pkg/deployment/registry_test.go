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

package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volcano-sh/infer-scheduler/pkg/scheduler"
)

var _ scheduler.HealthProvider = (*Registry)(nil)

func TestRegistryHealthSignal(t *testing.T) {
	registry := NewRegistry()

	// Test Case 1: unknown model group carries no signal at all
	assert.Nil(t, registry.HealthyDeployments("unknown-model"))

	// Test Case 2: a registered model group with no healthy deployments
	// reports empty, not nil
	registry.Register("llama-3-8b",
		Deployment{Name: "vllm-0", MetricsURL: "http://vllm-0:8000/metrics"},
		Deployment{Name: "vllm-1", MetricsURL: "http://vllm-1:8000/metrics"},
	)
	healthy := registry.HealthyDeployments("llama-3-8b")
	require.NotNil(t, healthy)
	assert.Empty(t, healthy)

	// Test Case 3: verdicts surface in registration order
	registry.SetHealthy("llama-3-8b", "vllm-1", true)
	registry.SetHealthy("llama-3-8b", "vllm-0", true)
	assert.Equal(t, []string{"vllm-0", "vllm-1"}, registry.HealthyDeployments("llama-3-8b"))

	// Test Case 4: marking unhealthy removes the deployment again
	registry.SetHealthy("llama-3-8b", "vllm-0", false)
	assert.Equal(t, []string{"vllm-1"}, registry.HealthyDeployments("llama-3-8b"))

	// Test Case 5: verdicts for unregistered deployments are dropped
	registry.SetHealthy("llama-3-8b", "ghost", true)
	registry.SetHealthy("other-model", "vllm-0", true)
	assert.Equal(t, []string{"vllm-1"}, registry.HealthyDeployments("llama-3-8b"))
	assert.Nil(t, registry.HealthyDeployments("other-model"))
}

func TestRegistryRegisterReplaces(t *testing.T) {
	registry := NewRegistry()
	registry.Register("qwen-72b", Deployment{Name: "vllm-0", MetricsURL: "http://old:8000/metrics"})
	registry.Register("qwen-72b", Deployment{Name: "vllm-0", MetricsURL: "http://new:8000/metrics"})

	deps := registry.Deployments("qwen-72b")
	require.Len(t, deps, 1)
	assert.Equal(t, "http://new:8000/metrics", deps[0].MetricsURL)
}

func TestRegistrySnapshot(t *testing.T) {
	registry := NewRegistry()
	registry.Register("llama-3-8b", Deployment{Name: "vllm-0", MetricsURL: "http://vllm-0:8000/metrics"})
	registry.Register("deepseek-v3", Deployment{Name: "sglang-0", MetricsURL: "http://sglang-0:30000/metrics"})
	registry.SetHealthy("llama-3-8b", "vllm-0", true)

	assert.Equal(t, []string{"deepseek-v3", "llama-3-8b"}, registry.Models())

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, []Status{{
		Name:       "vllm-0",
		MetricsURL: "http://vllm-0:8000/metrics",
		Healthy:    true,
	}}, snapshot["llama-3-8b"])
	assert.Equal(t, []Status{{
		Name:       "sglang-0",
		MetricsURL: "http://sglang-0:30000/metrics",
		Healthy:    false,
	}}, snapshot["deepseek-v3"])
}

func TestRegistryDeploymentsCopy(t *testing.T) {
	registry := NewRegistry()
	registry.Register("llama-3-8b", Deployment{Name: "vllm-0", MetricsURL: "http://vllm-0:8000/metrics"})

	deps := registry.Deployments("llama-3-8b")
	deps[0].MetricsURL = "http://mutated:8000/metrics"
	assert.Equal(t, "http://vllm-0:8000/metrics", registry.Deployments("llama-3-8b")[0].MetricsURL)

	assert.Nil(t, registry.Deployments("unknown-model"))
}
