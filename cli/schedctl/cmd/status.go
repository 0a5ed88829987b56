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
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/volcano-sh/infer-scheduler/pkg/scheduler"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [model]",
	Short: "Show queue state from the shared store",
	Long: `Show every model group's queue, or the full queue of one model group.

Examples:
  schedctl status
  schedctl status llama-3-8b`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	sched, client, err := newRedisScheduler()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if len(args) == 1 {
		return printQueue(ctx, sched, args[0])
	}

	keys, err := client.Keys(ctx, scheduler.QueueKeyPrefix+":*").Result()
	if err != nil {
		return fmt.Errorf("failed to scan queue keys: %v", err)
	}
	if len(keys) == 0 {
		fmt.Println("No queues found.")
		return nil
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "MODEL\tDEPTH\tNEXT\tFINGERPRINT")
	for _, key := range keys {
		model := strings.TrimPrefix(key, scheduler.QueueKeyPrefix+":")
		entries, err := sched.GetQueue(ctx, model)
		if err != nil {
			return fmt.Errorf("failed to read queue for model %s: %v", model, err)
		}

		next := "-"
		if len(entries) > 0 {
			next = fmt.Sprintf("%s (priority %d)", entries[0].RequestID, entries[0].Priority)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", model, len(entries), next, scheduler.Fingerprint(entries))
	}
	return w.Flush()
}

func printQueue(ctx context.Context, sched *scheduler.Scheduler, model string) error {
	entries, err := sched.GetQueue(ctx, model)
	if err != nil {
		return fmt.Errorf("failed to read queue for model %s: %v", model, err)
	}
	if len(entries) == 0 {
		fmt.Printf("Queue for model %s is empty.\n", model)
		return nil
	}

	ordered := make([]scheduler.Entry, len(entries))
	copy(ordered, entries)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].RequestID < ordered[j].RequestID
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "POSITION\tPRIORITY\tREQUEST ID")
	for i, entry := range ordered {
		fmt.Fprintf(w, "%d\t%d\t%s\n", i+1, entry.Priority, entry.RequestID)
	}
	return w.Flush()
}
