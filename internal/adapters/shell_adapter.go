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

// Package adapters provides the reference adapter implementations shipped
// with the orchestrator: a handful of deterministic, shell-backed tools
// and a pair of AI-backed actors. The core treats these as ordinary
// registrants of internal/orchestrator/adapter.Registry; nothing outside
// this package is special-cased.
package adapters

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/flowctl/orchestrator/internal/action/shell"
	"github.com/flowctl/orchestrator/internal/orchestrator/adapter"
	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
	"github.com/flowctl/orchestrator/pkg/errors"
)

// ShellAdapter runs a step's command through the shell action, wrapping
// its stdout/stderr into an AdapterResult. It never reports tokens used:
// shell-backed tools are deterministic.
type ShellAdapter struct {
	name        string
	description string
	profile     adapter.PerformanceProfile
	binary      string
	connector   *shell.ShellConnector
	commandFor  func(step workflow.Step, files string) ([]string, error)
}

// newShellAdapter builds a ShellAdapter whose availability depends on
// binary being resolvable on PATH.
func newShellAdapter(name, description, binary string, profile adapter.PerformanceProfile, commandFor func(workflow.Step, string) ([]string, error)) (*ShellAdapter, error) {
	connector, err := shell.New(&shell.Config{Timeout: 2 * time.Minute})
	if err != nil {
		return nil, err
	}
	return &ShellAdapter{
		name:        name,
		description: description,
		profile:     profile,
		binary:      binary,
		connector:   connector,
		commandFor:  commandFor,
	}, nil
}

func (a *ShellAdapter) Name() string                              { return a.name }
func (a *ShellAdapter) Kind() adapter.Kind                         { return adapter.KindDeterministic }
func (a *ShellAdapter) Description() string                       { return a.description }
func (a *ShellAdapter) PerformanceProfile() adapter.PerformanceProfile { return a.profile }
func (a *ShellAdapter) EstimateCost(step workflow.Step) int        { return 0 }

func (a *ShellAdapter) IsAvailable() bool {
	_, err := exec.LookPath(a.binary)
	return err == nil
}

func (a *ShellAdapter) ValidateStep(step workflow.Step) bool {
	_, err := a.commandFor(step, "")
	return err == nil
}

// Execute builds the concrete command for step and runs it through the
// shell action, translating its error/result shape into an AdapterResult.
func (a *ShellAdapter) Execute(ctx context.Context, step workflow.Step, wfctx *workflow.ExecutionContext, files string) workflow.AdapterResult {
	cmd, err := a.commandFor(step, files)
	if err != nil {
		return workflow.AdapterResult{Success: false, Error: err.Error()}
	}

	result, err := a.connector.Execute(ctx, "run", map[string]interface{}{"command": cmd})
	if err != nil {
		adapterErr := &errors.AdapterError{AdapterKey: a.name, Message: "command execution failed", Cause: err}
		return workflow.AdapterResult{Success: false, Error: adapterErr.Error()}
	}

	output := ""
	if response, ok := result.Response.(map[string]interface{}); ok {
		if stdout, ok := response["stdout"].(string); ok {
			output = stdout
		}
	}
	return workflow.AdapterResult{
		Success:  true,
		Output:   output,
		Metadata: result.Metadata,
	}
}

// commandArgs extracts "args" from step.With as a []string, defaulting
// to files (split on whitespace) when absent.
func commandArgs(step workflow.Step, files string) []string {
	if raw, ok := step.With["args"]; ok {
		switch v := raw.(type) {
		case []interface{}:
			args := make([]string, 0, len(v))
			for _, a := range v {
				args = append(args, fmt.Sprintf("%v", a))
			}
			return args
		case []string:
			return v
		}
	}
	if files != "" {
		return strings.Fields(files)
	}
	return nil
}

// NewCodeFixers returns the deterministic "code_fixers" adapter: it
// shells out to gofmt against the step's file scope.
func NewCodeFixers() (*ShellAdapter, error) {
	return newShellAdapter(
		"code_fixers",
		"Deterministic formatting and simple lint-fixes via gofmt",
		"gofmt",
		adapter.PerformanceProfile{
			ComplexityThreshold: 0.4,
			PreferredFileTypes:  []string{".go"},
			MaxFiles:            200,
			MaxFileSize:         5_000_000,
			AvgExecutionTime:    2 * time.Second,
			SuccessRate:         0.95,
			CostEfficiency:      1.0,
			ParallelCapable:     true,
		},
		func(step workflow.Step, files string) ([]string, error) {
			args := append([]string{"-l"}, commandArgs(step, files)...)
			if len(args) == 1 {
				return nil, fmt.Errorf("code_fixers requires files to format")
			}
			return append([]string{"gofmt"}, args...), nil
		},
	)
}

// NewVSCodeDiagnostics returns the deterministic "vscode_diagnostics"
// adapter: it shells out to `go vet`, which is the closest analogue in
// this ecosystem to a static-diagnostics pass.
func NewVSCodeDiagnostics() (*ShellAdapter, error) {
	return newShellAdapter(
		"vscode_diagnostics",
		"Deterministic static diagnostics via go vet",
		"go",
		adapter.PerformanceProfile{
			ComplexityThreshold: 0.4,
			PreferredFileTypes:  []string{".go"},
			MaxFiles:            200,
			MaxFileSize:         5_000_000,
			AvgExecutionTime:    3 * time.Second,
			SuccessRate:         0.9,
			CostEfficiency:      1.0,
			ParallelCapable:     true,
		},
		func(step workflow.Step, files string) ([]string, error) {
			pkg := "./..."
			if v, ok := step.With["package"].(string); ok && v != "" {
				pkg = v
			}
			return []string{"go", "vet", pkg}, nil
		},
	)
}

// NewPytestRunner returns the deterministic "pytest_runner" adapter. The
// binary name is retained from the source corpus; it shells out to `go
// test` in this module's ecosystem, the test-runner analogue.
func NewPytestRunner() (*ShellAdapter, error) {
	return newShellAdapter(
		"pytest_runner",
		"Deterministic test execution via go test",
		"go",
		adapter.PerformanceProfile{
			ComplexityThreshold: 0.5,
			PreferredFileTypes:  []string{".go"},
			MaxFiles:            500,
			MaxFileSize:         10_000_000,
			AvgExecutionTime:    10 * time.Second,
			SuccessRate:         0.92,
			CostEfficiency:      1.0,
			ParallelCapable:     true,
		},
		func(step workflow.Step, files string) ([]string, error) {
			pkg := "./..."
			if v, ok := step.With["package"].(string); ok && v != "" {
				pkg = v
			}
			return []string{"go", "test", pkg}, nil
		},
	)
}

// NewGitOps returns the deterministic "git_ops" adapter, supporting the
// subset of operations the core's gates and coordination features
// actually consume: status, create_branch, and commit. Anything beyond
// that (GitHub API integration, merge queues) is adapter-internal detail
// this core does not specify.
func NewGitOps() (*ShellAdapter, error) {
	return newShellAdapter(
		"git_ops",
		"Deterministic git operations: status, branch, commit",
		"git",
		adapter.PerformanceProfile{
			ComplexityThreshold: 0.3,
			PreferredFileTypes:  []string{"*"},
			MaxFiles:            1000,
			MaxFileSize:         0,
			AvgExecutionTime:    1 * time.Second,
			SuccessRate:         0.98,
			CostEfficiency:      1.0,
			ParallelCapable:     false,
		},
		gitCommandFor,
	)
}

func gitCommandFor(step workflow.Step, files string) ([]string, error) {
	op, _ := step.With["operation"].(string)
	if op == "" {
		op = "status"
	}
	switch op {
	case "status":
		return []string{"git", "status", "--porcelain=v1"}, nil
	case "create_branch":
		name, _ := step.With["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("git_ops create_branch requires 'name'")
		}
		return []string{"git", "checkout", "-B", name}, nil
	case "commit":
		message, _ := step.With["message"].(string)
		if message == "" {
			message = "chore: automated commit"
		}
		return []string{"git", "commit", "-am", message}, nil
	default:
		return nil, fmt.Errorf("git_ops: unsupported operation %q", op)
	}
}
