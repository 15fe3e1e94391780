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
	"github.com/spf13/cobra"
)

// globalFlags carries the persistent flags every subcommand reads.
type globalFlags struct {
	verbose    bool
	jsonOutput bool
	configPath string
}

// NewRootCommand builds the orchestrator root command and its
// subcommands (run, validate, estimate-cost, verify, flags).
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Deterministic, schema-driven workflow orchestration",
		Long: `orchestrator runs declarative workflow documents: a named, ordered (or
file-scope-parallel) list of steps, each dispatched to a deterministic
tool or an AI-backed actor, with verification gates checked against the
artifacts a run produces.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose logging")
	cmd.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "emit machine-readable JSON output")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to settings.yaml (default: XDG config dir)")

	cmd.AddCommand(newRunCommand(flags))
	cmd.AddCommand(newValidateCommand(flags))
	cmd.AddCommand(newEstimateCostCommand(flags))
	cmd.AddCommand(newVerifyCommand(flags))
	cmd.AddCommand(newFlagsCommand(cmd))

	return cmd
}

// Execute runs the root command and maps any returned error to a process
// exit code, never returning on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		handleExitError(err)
	}
}
