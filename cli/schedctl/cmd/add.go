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
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/volcano-sh/infer-scheduler/pkg/scheduler"
)

var (
	addModel    string
	addPriority int
	addID       string
)

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Queue a scheduling ticket",
	Long: `Queue a scheduling ticket for a model group. This is mainly useful
for smoke-testing a deployment: the ticket competes with real requests.

Examples:
  schedctl add --model llama-3-8b
  schedctl add --model llama-3-8b --priority 0 --id smoke-test-1`,
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().StringVar(&addModel, "model", "", "Model group to queue the ticket for (required)")
	addCmd.Flags().IntVar(&addPriority, "priority", scheduler.PriorityMedium, "Priority 0-255, lower is served first")
	addCmd.Flags().StringVar(&addID, "id", "", "Request ID, generated when omitted")
	_ = addCmd.MarkFlagRequired("model")
}

func runAdd(cmd *cobra.Command, args []string) error {
	if addPriority < scheduler.PriorityHigh || addPriority > scheduler.PriorityLow {
		return fmt.Errorf("priority must be between %d and %d", scheduler.PriorityHigh, scheduler.PriorityLow)
	}
	if addID == "" {
		addID = uuid.NewString()
	}

	sched, _, err := newRedisScheduler()
	if err != nil {
		return err
	}

	item := scheduler.FlowItem{
		Priority:  addPriority,
		RequestID: addID,
		ModelName: addModel,
	}
	if err := sched.AddRequest(context.Background(), item); err != nil {
		return fmt.Errorf("failed to queue ticket: %v", err)
	}

	fmt.Printf("Queued request %s for model %s with priority %d.\n", addID, addModel, addPriority)
	return nil
}
