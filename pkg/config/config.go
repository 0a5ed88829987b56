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

// Package config loads the scheduler server configuration from a YAML
// file. Redis connection settings are not part of the file; they come
// from REDIS_HOST, REDIS_PORT and REDIS_PASSWORD like every other
// component.
package config

import (
	"fmt"
	"os"
	"time"

	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"

	"github.com/volcano-sh/infer-scheduler/pkg/deployment"
)

// DefaultConfigPath is where the config map is mounted in a deployment.
const DefaultConfigPath = "/etc/infer-scheduler/config.yaml"

// Store modes
const (
	StoreModeMemory = "memory"
	StoreModeRedis  = "redis"
	StoreModeDual   = "dual"
)

type Config struct {
	// Addr is the listen address of the HTTP server.
	Addr string `json:"addr,omitempty"`

	Store  StoreConfig   `json:"store,omitempty"`
	Probe  ProbeConfig   `json:"probe,omitempty"`
	Models []ModelConfig `json:"models,omitempty"`
}

type StoreConfig struct {
	// Mode selects the queue store: memory, redis or dual.
	Mode string `json:"mode,omitempty"`

	// LocalTTLSeconds and LocalSize size the in-process cache in front
	// of redis. Only used in dual mode.
	LocalTTLSeconds *int `json:"localTTLSeconds,omitempty"`
	LocalSize       *int `json:"localSize,omitempty"`
}

type ProbeConfig struct {
	IntervalSeconds  *int     `json:"intervalSeconds,omitempty"`
	WaitingMetric    string   `json:"waitingMetric,omitempty"`
	WaitingThreshold *float64 `json:"waitingThreshold,omitempty"`
}

type ModelConfig struct {
	Name        string             `json:"name"`
	Deployments []DeploymentConfig `json:"deployments,omitempty"`
}

type DeploymentConfig struct {
	Name       string `json:"name"`
	MetricsURL string `json:"metricsUrl"`
}

// Load reads, defaults and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no config file is given:
// an in-memory store and no model groups.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Store.Mode == "" {
		c.Store.Mode = StoreModeMemory
	}
	if c.Store.LocalTTLSeconds == nil {
		c.Store.LocalTTLSeconds = ptr.To(5)
	}
	if c.Store.LocalSize == nil {
		c.Store.LocalSize = ptr.To(1024)
	}
	if c.Probe.IntervalSeconds == nil {
		c.Probe.IntervalSeconds = ptr.To(int(deployment.DefaultProbeInterval / time.Second))
	}
	if c.Probe.WaitingMetric == "" {
		c.Probe.WaitingMetric = deployment.DefaultWaitingMetric
	}
	if c.Probe.WaitingThreshold == nil {
		c.Probe.WaitingThreshold = ptr.To(float64(deployment.DefaultWaitingThreshold))
	}
}

func (c *Config) Validate() error {
	switch c.Store.Mode {
	case StoreModeMemory, StoreModeRedis, StoreModeDual:
	default:
		return fmt.Errorf("unknown store mode %q, want memory, redis or dual", c.Store.Mode)
	}
	if *c.Store.LocalTTLSeconds <= 0 {
		return fmt.Errorf("store.localTTLSeconds must be positive, got %d", *c.Store.LocalTTLSeconds)
	}
	if *c.Store.LocalSize <= 0 {
		return fmt.Errorf("store.localSize must be positive, got %d", *c.Store.LocalSize)
	}
	if *c.Probe.IntervalSeconds <= 0 {
		return fmt.Errorf("probe.intervalSeconds must be positive, got %d", *c.Probe.IntervalSeconds)
	}

	seen := make(map[string]bool)
	for _, model := range c.Models {
		if model.Name == "" {
			return fmt.Errorf("model name must not be empty")
		}
		if seen[model.Name] {
			return fmt.Errorf("duplicate model %q", model.Name)
		}
		seen[model.Name] = true
		for _, dep := range model.Deployments {
			if dep.Name == "" || dep.MetricsURL == "" {
				return fmt.Errorf("model %q: deployments need both name and metricsUrl", model.Name)
			}
		}
	}
	return nil
}
