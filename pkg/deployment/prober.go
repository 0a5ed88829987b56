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
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"github.com/volcano-sh/infer-scheduler/pkg/metrics"
)

const (
	// DefaultProbeInterval is how often every registered deployment is
	// scraped.
	DefaultProbeInterval = 5 * time.Second

	// DefaultWaitingMetric is the engine gauge consulted for capacity.
	// vLLM exports its internal queue depth under this name.
	DefaultWaitingMetric = "vllm:num_requests_waiting"

	// DefaultWaitingThreshold is the queue depth at which a deployment
	// stops counting as having capacity.
	DefaultWaitingThreshold = 16

	probeTimeout      = 2 * time.Second
	probeRetryMax     = 2
	probeRetryWaitMin = 100 * time.Millisecond
	probeRetryWaitMax = time.Second
	probeScrapeRate   = rate.Limit(50)
	probeScrapeBurst  = 10
)

// Prober periodically scrapes each registered deployment's metrics endpoint
// and marks the deployment healthy when the scrape succeeds and the waiting
// gauge stays under the threshold. Run owns the probe state; the methods are
// not safe to call from multiple goroutines.
type Prober struct {
	registry *Registry
	metrics  *metrics.Metrics
	client   *retryablehttp.Client
	limiter  *rate.Limiter

	interval         time.Duration
	waitingMetric    string
	waitingThreshold float64

	// lastVerdict keyed by model/deployment, used to log transitions once.
	lastVerdict map[string]bool
}

type ProberOption func(*Prober)

// WithProbeInterval sets the scrape cadence.
func WithProbeInterval(interval time.Duration) ProberOption {
	return func(p *Prober) {
		p.interval = interval
	}
}

// WithWaitingMetric overrides the engine gauge consulted for capacity.
func WithWaitingMetric(name string) ProberOption {
	return func(p *Prober) {
		p.waitingMetric = name
	}
}

// WithWaitingThreshold overrides the queue depth above which a deployment
// is considered out of capacity.
func WithWaitingThreshold(threshold float64) ProberOption {
	return func(p *Prober) {
		p.waitingThreshold = threshold
	}
}

func NewProber(registry *Registry, opts ...ProberOption) *Prober {
	client := retryablehttp.NewClient()
	client.RetryMax = probeRetryMax
	client.RetryWaitMin = probeRetryWaitMin
	client.RetryWaitMax = probeRetryWaitMax
	client.HTTPClient.Timeout = probeTimeout
	client.Logger = nil

	p := &Prober{
		registry:         registry,
		metrics:          metrics.DefaultMetrics,
		client:           client,
		limiter:          rate.NewLimiter(probeScrapeRate, probeScrapeBurst),
		interval:         DefaultProbeInterval,
		waitingMetric:    DefaultWaitingMetric,
		waitingThreshold: DefaultWaitingThreshold,
		lastVerdict:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run probes all deployments once immediately and then on every interval
// tick until the context is cancelled.
func (p *Prober) Run(ctx context.Context) {
	p.ProbeAll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.ProbeAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProbeAll runs one probe cycle over every registered deployment and
// refreshes the healthy-deployment gauges.
func (p *Prober) ProbeAll(ctx context.Context) {
	for _, model := range p.registry.Models() {
		for _, dep := range p.registry.Deployments(model) {
			healthy := p.probe(ctx, model, dep)
			p.registry.SetHealthy(model, dep.Name, healthy)
		}
		p.metrics.SetHealthyDeployments(model, len(p.registry.HealthyDeployments(model)))
	}
}

func (p *Prober) probe(ctx context.Context, model string, dep Deployment) bool {
	if err := p.limiter.Wait(ctx); err != nil {
		return false
	}

	waiting, err := p.scrape(ctx, dep.MetricsURL)
	if err != nil {
		p.reportVerdict(model, dep.Name, false, err.Error())
		return false
	}
	if waiting >= p.waitingThreshold {
		p.reportVerdict(model, dep.Name, false,
			fmt.Sprintf("%.0f requests waiting, threshold %.0f", waiting, p.waitingThreshold))
		return false
	}
	p.reportVerdict(model, dep.Name, true,
		fmt.Sprintf("%.0f requests waiting", waiting))
	return true
}

// scrape fetches one metrics endpoint and returns the waiting gauge value.
// A missing gauge counts as zero waiting requests.
func (p *Prober) scrape(ctx context.Context, url string) (float64, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build probe request for %s: %w", url, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch metrics from %s: %w", url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			klog.Errorf("Failed to close probe response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("error parsing metric families from %s: %w", url, err)
	}
	return waitingValue(families, p.waitingMetric), nil
}

func waitingValue(families map[string]*dto.MetricFamily, name string) float64 {
	family, exists := families[name]
	if !exists {
		return 0
	}
	var value float64
	for _, metric := range family.Metric {
		if gauge := metric.GetGauge(); gauge != nil {
			value += gauge.GetValue()
			continue
		}
		value += metric.GetUntyped().GetValue()
	}
	return value
}

// reportVerdict logs only when the verdict flips, so a deployment that
// stays down does not flood the log.
func (p *Prober) reportVerdict(model, name string, healthy bool, reason string) {
	key := model + "/" + name
	previous, seen := p.lastVerdict[key]
	p.lastVerdict[key] = healthy
	if seen && previous == healthy {
		klog.V(4).Infof("Deployment %s verdict unchanged (healthy=%t): %s", key, healthy, reason)
		return
	}
	if healthy {
		klog.Infof("Deployment %s is healthy: %s", key, reason)
	} else {
		klog.Warningf("Deployment %s is unhealthy: %s", key, reason)
	}
}
