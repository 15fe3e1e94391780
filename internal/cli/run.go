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
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	orchlog "github.com/flowctl/orchestrator/internal/log"
)

// newRunCommand returns the "run" subcommand: executes a workflow
// document to completion.
func newRunCommand(flags *globalFlags) *cobra.Command {
	var (
		files        string
		artifactsDir string
		dryRun       bool
		setVars      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Execute a workflow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := orchlog.New(loggerConfig(flags.verbose))

			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return newConfigError("loading configuration", err)
			}

			coord, err := buildCoordinator(cfg, files, dryRun)
			if err != nil {
				return err
			}

			extra := map[string]interface{}{}
			if artifactsDir != "" {
				extra["artifacts_dir"] = artifactsDir
			}
			for k, v := range setVars {
				extra[k] = v
			}

			logger.Info("running workflow", orchlog.WorkflowKey, args[0])
			result := coord.ExecuteWorkflow(context.Background(), args[0], files, extra)

			if flags.jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return newExecutionError("encoding result", err)
				}
			} else {
				printRunSummary(result)
			}

			if !result.Success {
				if !result.GatesPassed {
					return &ExitError{Code: ExitGatesFailed, Message: "one or more verification gates failed"}
				}
				return newExecutionError(result.WorkflowName+" failed", fmt.Errorf("%s", result.Error))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&files, "files", "f", "", "file glob or path passed through to each step's adapter")
	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "", "directory verification gates read artifacts from (default: ./artifacts)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and validate every step without executing adapters")
	cmd.Flags().StringToStringVarP(&setVars, "set", "s", nil, "override extra context values as key=value pairs")

	return cmd
}
