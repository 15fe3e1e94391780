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
	"gopkg.in/yaml.v3"

	"github.com/flowctl/orchestrator/internal/orchestrator/gate"
	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
)

// newVerifyCommand returns the "verify" command group: ad-hoc gate
// checks run outside of a full workflow execution, against artifacts a
// previous run (or some other process) already produced on disk.
func newVerifyCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run verification gates against existing artifacts",
	}
	cmd.AddCommand(newVerifyArtifactCommand(flags))
	cmd.AddCommand(newVerifyGatesCommand(flags))
	return cmd
}

// newVerifyArtifactCommand returns "verify artifact": a single
// artifact_gate check, optionally against an explicit schema file.
func newVerifyArtifactCommand(flags *globalFlags) *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "artifact <path>",
		Short: "Check a single artifact, optionally against a JSON schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := gate.NewEngine()
			cfg := gate.Config{
				Type: "artifact_gate",
				Name: "artifact",
				Extra: map[string]interface{}{
					"path":   args[0],
					"schema": schemaPath,
				},
			}
			result := engine.CheckGates([]gate.Config{cfg}, ".")[0]

			if err := printGateResults(flags, []gate.Result{result}); err != nil {
				return err
			}
			if !result.Passed {
				return &ExitError{Code: ExitGatesFailed, Message: result.Message}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON schema file to validate the artifact against")
	return cmd
}

// newVerifyGatesCommand returns "verify gates": every gate declared in a
// standalone gates document, checked against an artifacts directory.
func newVerifyGatesCommand(flags *globalFlags) *cobra.Command {
	var (
		artifactsDir string
		gatesPath    string
	)

	cmd := &cobra.Command{
		Use:   "gates",
		Short: "Run a standalone set of declared gates against an artifacts directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := loadGateDocument(gatesPath)
			if err != nil {
				return newInvalidWorkflowError(fmt.Sprintf("reading %s", gatesPath), err)
			}

			configs := make([]gate.Config, len(specs))
			for i, g := range specs {
				configs[i] = gate.Config{Type: g.Type, Name: g.Name, Extra: g.With}
			}

			engine := gate.NewEngine()
			results := engine.CheckGates(configs, artifactsDir)

			if err := printGateResults(flags, results); err != nil {
				return err
			}
			if !gate.AllPassed(results) {
				return &ExitError{Code: ExitGatesFailed, Message: "one or more gates failed"}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactsDir, "artifacts", "artifacts", "directory gates read artifacts from")
	cmd.Flags().StringVar(&gatesPath, "gates", "gates.yaml", "path to a standalone gates document")
	return cmd
}

// gateDocument is the top-level shape of a standalone gates file: a bare
// list of gate specs under a "gates" key, using the same GateSpec shape
// a workflow document's verify.gates uses.
type gateDocument struct {
	Gates []workflow.GateSpec `yaml:"gates"`
}

func loadGateDocument(path string) ([]workflow.GateSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc gateDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Gates, nil
}

// printGateResults renders gate results either as JSON or as a short
// human-readable report, matching the --json convention every other
// subcommand follows.
func printGateResults(flags *globalFlags, results []gate.Result) error {
	if flags.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Printf("%s: %s — %s\n", status, r.GateName, r.Message)
	}
	return nil
}
