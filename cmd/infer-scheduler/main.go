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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/volcano-sh/infer-scheduler/cmd/infer-scheduler/app"
	"github.com/volcano-sh/infer-scheduler/pkg/config"
)

func main() {
	var (
		configPath string
		addr       string
	)

	// Initialize klog flags
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.StringVar(&configPath, "config", "", "Path to the scheduler config file, empty runs with built-in defaults")
	pflag.StringVar(&addr, "addr", "", "Listen address, overrides the config file")
	defer klog.Flush()
	pflag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			klog.Fatalf("Failed to load config: %v", err)
		}
	} else {
		klog.Infof("No config file given, starting with defaults and no model groups")
	}
	if addr != "" {
		cfg.Addr = addr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		klog.Info("Received termination, signaling shutdown")
		cancel()
	}()

	app.NewServer(cfg).Run(ctx)
}
