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

// newValidateCommand returns the "validate" subcommand: structural and
// adapter-availability validation without executing anything.
func newValidateCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Validate a workflow document without running it",
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

			report := coord.ValidateWorkflowFile(args[0])

			if flags.jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return newExecutionError("encoding report", err)
				}
			} else {
				fmt.Printf("valid: %v (%d steps)\n", report.Valid, report.TotalSteps)
				for _, e := range report.Errors {
					fmt.Printf("  error: step %s: %s\n", e.StepID, e.Error)
				}
				for _, w := range report.Warnings {
					fmt.Printf("  warning: step %s: %s\n", w.StepID, w.Warning)
				}
			}

			if !report.Valid {
				return newInvalidWorkflowError(fmt.Sprintf("%s failed validation", args[0]), nil)
			}
			return nil
		},
	}

	return cmd
}
