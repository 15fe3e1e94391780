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
	"fmt"

	"github.com/flowctl/orchestrator/internal/config"
	orchlog "github.com/flowctl/orchestrator/internal/log"
	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
)

// loadConfig loads settings from path, falling back to environment-driven
// defaults when path is empty and no settings file exists yet.
func loadConfig(path string) (*config.Config, error) {
	return config.LoadSettings(path)
}

// loggerConfig builds the logging configuration for a CLI invocation:
// ORCHESTRATOR_DEBUG/ORCHESTRATOR_LOG_LEVEL still take precedence, but
// --verbose on the command line forces debug level regardless.
func loggerConfig(verbose bool) *orchlog.Config {
	cfg := orchlog.FromEnv()
	if verbose {
		cfg.Level = "debug"
	}
	return cfg
}

// printRunSummary renders a WorkflowResult as a short human-readable
// report.
func printRunSummary(result workflow.WorkflowResult) {
	status := "SUCCESS"
	if !result.Success {
		status = "FAILURE"
	}
	fmt.Printf("%s: %s (run %s)\n", status, result.WorkflowName, result.RunID)
	fmt.Printf("  steps: %d executed, %d succeeded, %d failed\n", result.StepsExecuted, result.StepsSucceeded, result.StepsFailed)
	fmt.Printf("  tokens: %d, time: %s\n", result.TotalTokens, result.TotalTime)
	if len(result.GateResults) > 0 {
		fmt.Printf("  gates: %v passed=%v\n", gateNames(result), result.GatesPassed)
	}
	if result.Error != "" {
		fmt.Printf("  error: %s\n", result.Error)
	}
	for _, step := range result.StepResults {
		if step.Success {
			continue
		}
		fmt.Printf("  step %s failed: %s\n", step.StepID, step.Error)
	}
}

func gateNames(result workflow.WorkflowResult) []string {
	names := make([]string, 0, len(result.GateResults))
	for _, g := range result.GateResults {
		names = append(names, g.GateName)
	}
	return names
}
