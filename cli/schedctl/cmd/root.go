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

package cmd

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/volcano-sh/infer-scheduler/pkg/cache"
	"github.com/volcano-sh/infer-scheduler/pkg/scheduler"
	"github.com/volcano-sh/infer-scheduler/pkg/utils"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "schedctl",
	Short: "CLI for inspecting and editing admission scheduler queues",
	Long: `schedctl works directly against the Redis store the scheduler
instances share, so it sees exactly the queues they see.

The Redis connection is taken from the REDIS_HOST, REDIS_PORT and
REDIS_PASSWORD environment variables, like the scheduler server itself.

Examples:
  schedctl status
  schedctl status llama-3-8b
  schedctl add --model llama-3-8b --priority 0
  schedctl remove --model llama-3-8b --id 9f2c41ce`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// newRedisScheduler builds a scheduler over the shared Redis store. The
// raw client is returned as well for key scans.
func newRedisScheduler() (*scheduler.Scheduler, *redis.Client, error) {
	client := utils.TryGetRedisClient()
	if client == nil {
		return nil, nil, fmt.Errorf("cannot connect to Redis, check REDIS_HOST and REDIS_PORT")
	}
	store := cache.NewRedisStore(client)
	return scheduler.NewScheduler(scheduler.WithStore(store)), client, nil
}
