// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newEstimateCostCommand returns the "estimate-cost" subcommand: sums
// every step's token estimate without executing the workflow.
func newEstimateCostCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate-cost <workflow.yaml>",
		Short: "Estimate a workflow's token cost without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return newConfigError("loading configuration", err)
			}

			coord, err := buildCoordinator(cfg, "", true)
			if err != nil {
				return err
			}

			estimate, err := coord.EstimateWorkflowCost(args[0])
			if err != nil {
				return newInvalidWorkflowError(fmt.Sprintf("reading %s", args[0]), err)
			}

			if flags.jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(estimate)
			}

			fmt.Printf("%s: %d steps, %d estimated tokens\n", estimate.WorkflowName, estimate.TotalSteps, estimate.TotalEstimatedTokens)
			for _, s := range estimate.StepEstimates {
				fmt.Printf("  %s (%s): %d tokens\n", s.StepID, s.Actor, s.EstimatedTokens)
			}
			return nil
		},
	}

	return cmd
}
