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

package config

import (
	"os"
	"strings"
	"testing"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	testData, err := os.ReadFile("testdata/config.yaml")
	if err != nil {
		t.Fatalf("Failed to read Yaml:%v", err)
	}

	testCases := []struct {
		name       string
		fn         func(patches *gomonkey.Patches) *gomonkey.Patches
		expectErrs string
	}{
		{
			name: "Load success",
			fn: func(patches *gomonkey.Patches) *gomonkey.Patches {
				return patches.ApplyFunc(os.ReadFile, func(string) ([]byte, error) {
					return testData, nil
				})
			},
			expectErrs: "",
		}, {
			name: "unreadable config file",
			fn: func(patches *gomonkey.Patches) *gomonkey.Patches {
				return patches.ApplyFunc(os.ReadFile, func(string) ([]byte, error) {
					return nil, os.ErrNotExist
				})
			},
			expectErrs: "failed to read config file",
		}, {
			name: "invalid YAML syntax",
			fn: func(patches *gomonkey.Patches) *gomonkey.Patches {
				return patches.ApplyFunc(os.ReadFile, func(string) ([]byte, error) {
					return []byte("models: {not: [a, list"), nil
				})
			},
			expectErrs: "failed to unmarshal config file",
		}, {
			name: "unknown store mode",
			fn: func(patches *gomonkey.Patches) *gomonkey.Patches {
				return patches.ApplyFunc(os.ReadFile, func(string) ([]byte, error) {
					return []byte("store:\n  mode: etcd\n"), nil
				})
			},
			expectErrs: "unknown store mode",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			patches := gomonkey.NewPatches()
			defer patches.Reset()
			patches = tc.fn(patches)

			_, errs := Load(DefaultConfigPath)
			if errs == nil && tc.expectErrs != "" {
				t.Errorf("expected error containing %q, got nil", tc.expectErrs)
			} else if errs != nil && !strings.Contains(errs.Error(), tc.expectErrs) {
				t.Errorf("unexpected error, got %v, want %q", errs, tc.expectErrs)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("testdata/config.yaml")
	require.NoError(t, err)

	// Values from the file survive defaulting.
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, StoreModeDual, cfg.Store.Mode)
	assert.Equal(t, 3, *cfg.Store.LocalTTLSeconds)
	assert.Equal(t, 10, *cfg.Probe.IntervalSeconds)
	assert.Equal(t, float64(32), *cfg.Probe.WaitingThreshold)

	// Omitted values get filled in.
	assert.Equal(t, 1024, *cfg.Store.LocalSize)
	assert.Equal(t, "vllm:num_requests_waiting", cfg.Probe.WaitingMetric)

	require.Len(t, cfg.Models, 2)
	assert.Equal(t, "llama-3-8b", cfg.Models[0].Name)
	require.Len(t, cfg.Models[0].Deployments, 2)
	assert.Equal(t, "http://vllm-0:8000/metrics", cfg.Models[0].Deployments[0].MetricsURL)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name       string
		mutate     func(cfg *Config)
		expectErrs string
	}{
		{
			name:       "default config is valid",
			mutate:     func(cfg *Config) {},
			expectErrs: "",
		}, {
			name: "empty model name",
			mutate: func(cfg *Config) {
				cfg.Models = []ModelConfig{{Name: ""}}
			},
			expectErrs: "model name must not be empty",
		}, {
			name: "duplicate model",
			mutate: func(cfg *Config) {
				cfg.Models = []ModelConfig{{Name: "llama-3-8b"}, {Name: "llama-3-8b"}}
			},
			expectErrs: "duplicate model",
		}, {
			name: "deployment without metrics url",
			mutate: func(cfg *Config) {
				cfg.Models = []ModelConfig{{
					Name:        "llama-3-8b",
					Deployments: []DeploymentConfig{{Name: "vllm-0"}},
				}}
			},
			expectErrs: "deployments need both name and metricsUrl",
		}, {
			name: "non-positive probe interval",
			mutate: func(cfg *Config) {
				cfg.Probe.IntervalSeconds = new(int)
			},
			expectErrs: "probe.intervalSeconds must be positive",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.expectErrs == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectErrs)
			}
		})
	}
}
