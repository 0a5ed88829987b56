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

	"github.com/spf13/cobra"
)

var (
	removeModel string
	removeID    string
)

// removeCmd represents the remove command
var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Cancel a queued scheduling ticket",
	Long: `Cancel a queued scheduling ticket. Removing a ticket that is not
queued is not an error; the queue is simply left as it is.

Examples:
  schedctl remove --model llama-3-8b --id smoke-test-1`,
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)

	removeCmd.Flags().StringVar(&removeModel, "model", "", "Model group the ticket was queued for (required)")
	removeCmd.Flags().StringVar(&removeID, "id", "", "Request ID of the ticket (required)")
	_ = removeCmd.MarkFlagRequired("model")
	_ = removeCmd.MarkFlagRequired("id")
}

func runRemove(cmd *cobra.Command, args []string) error {
	sched, _, err := newRedisScheduler()
	if err != nil {
		return err
	}

	if err := sched.RemoveRequest(context.Background(), removeID, removeModel); err != nil {
		return fmt.Errorf("failed to remove ticket: %v", err)
	}

	fmt.Printf("Removed request %s from model %s.\n", removeID, removeModel)
	return nil
}
