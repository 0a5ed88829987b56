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

package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"

	"github.com/volcano-sh/infer-scheduler/pkg/cache"
	"github.com/volcano-sh/infer-scheduler/pkg/config"
	"github.com/volcano-sh/infer-scheduler/pkg/debug"
	"github.com/volcano-sh/infer-scheduler/pkg/deployment"
	"github.com/volcano-sh/infer-scheduler/pkg/scheduler"
	"github.com/volcano-sh/infer-scheduler/pkg/utils"
)

const gracefulShutdownTimeout = 15 * time.Second

// Server wires the scheduler, the deployment prober and the HTTP surface
// (healthz, readyz, /metrics and the /debug endpoints) together.
type Server struct {
	cfg       *config.Config
	scheduler *scheduler.Scheduler
	registry  *deployment.Registry
	prober    *deployment.Prober

	// redisClient is nil in memory mode; readyz pings it when present.
	redisClient *redis.Client
}

func NewServer(cfg *config.Config) *Server {
	store, redisClient := buildStore(cfg)
	klog.Infof("Using %s queue store", store.Name())

	registry := deployment.NewRegistry()
	for _, model := range cfg.Models {
		deps := make([]deployment.Deployment, 0, len(model.Deployments))
		for _, dep := range model.Deployments {
			deps = append(deps, deployment.Deployment{
				Name:       dep.Name,
				MetricsURL: dep.MetricsURL,
			})
		}
		registry.Register(model.Name, deps...)
		klog.Infof("Registered model group %s with %d deployments", model.Name, len(deps))
	}

	return &Server{
		cfg:       cfg,
		scheduler: scheduler.NewScheduler(scheduler.WithStore(store)),
		registry:  registry,
		prober: deployment.NewProber(registry,
			deployment.WithProbeInterval(time.Duration(*cfg.Probe.IntervalSeconds)*time.Second),
			deployment.WithWaitingMetric(cfg.Probe.WaitingMetric),
			deployment.WithWaitingThreshold(*cfg.Probe.WaitingThreshold),
		),
		redisClient: redisClient,
	}
}

func buildStore(cfg *config.Config) (cache.Store, *redis.Client) {
	switch cfg.Store.Mode {
	case config.StoreModeRedis:
		client := utils.GetRedisClient()
		return cache.NewRedisStore(client), client
	case config.StoreModeDual:
		client := utils.GetRedisClient()
		store := cache.NewDualStore(cache.NewRedisStore(client),
			cache.WithLocalTTL(time.Duration(*cfg.Store.LocalTTLSeconds)*time.Second),
			cache.WithLocalSize(*cfg.Store.LocalSize),
		)
		return store, client
	default:
		return cache.NewMemoryStore(), nil
	}
}

// Scheduler exposes the scheduler instance for embedding callers.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// Registry exposes the deployment registry for embedding callers.
func (s *Server) Registry() *deployment.Registry {
	return s.registry
}

// Run starts the prober and serves HTTP until the context is cancelled.
func (s *Server) Run(ctx context.Context) {
	go s.prober.Run(ctx)
	s.startHTTP(ctx)
}

func (s *Server) startHTTP(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/healthz", "/readyz"), gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})

	engine.GET("/readyz", func(c *gin.Context) {
		if err := s.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "scheduler is ready",
		})
	})

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	debug.NewDebugHandler(s.scheduler, s.registry).Register(engine)

	server := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: engine.Handler(),
	}
	go func() {
		klog.Infof("Serving on %s", s.cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Fatalf("listen failed: %v", err)
		}
	}()

	<-ctx.Done()
	// graceful shutdown
	klog.Info("Shutting down HTTP server ...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		klog.Errorf("Server shutdown failed: %v", err)
	}
	klog.Info("HTTP server exited")
}

// ready reports whether the queue store is reachable. The in-memory store
// always is.
func (s *Server) ready(ctx context.Context) error {
	if s.redisClient == nil {
		return nil
	}
	return s.redisClient.Ping(ctx).Err()
}
