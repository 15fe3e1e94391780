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

// Package workflow holds the shared data model consumed by every
// orchestrator subsystem: the workflow document, its steps, and the
// results produced as a workflow executes.
package workflow

import (
	"time"

	"github.com/flowctl/orchestrator/internal/orchestrator/gate"
)

// Policy controls routing and failure-handling defaults for a workflow.
type Policy struct {
	MaxTokens           int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	PreferDeterministic bool    `yaml:"prefer_deterministic" json:"prefer_deterministic"`
	ComplexityThreshold float64 `yaml:"complexity_threshold" json:"complexity_threshold"`
	FailFast            bool    `yaml:"fail_fast" json:"fail_fast"`
}

// Retry describes step-level retry configuration.
type Retry struct {
	MaxAttempts int `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
}

// Timeouts holds step-level timeout configuration.
type Timeouts struct {
	PerStepSeconds int `yaml:"per_step_seconds,omitempty" json:"per_step_seconds,omitempty"`
}

// ScopeMode controls whether a step's file claim excludes other claims.
type ScopeMode string

const (
	ScopeExclusive ScopeMode = "exclusive"
	ScopeShared    ScopeMode = "shared"
)

// Step is one unit of work in a workflow.
type Step struct {
	ID        string                 `yaml:"id" json:"id"`
	Name      string                 `yaml:"name" json:"name"`
	Actor     string                 `yaml:"actor" json:"actor"`
	With      map[string]interface{} `yaml:"with,omitempty" json:"with,omitempty"`
	Files     FileGlobs              `yaml:"files,omitempty" json:"files,omitempty"`
	Emits     []string               `yaml:"emits,omitempty" json:"emits,omitempty"`
	ScopeMode ScopeMode              `yaml:"scope_mode,omitempty" json:"scope_mode,omitempty"`
	Retry     *Retry                 `yaml:"retry,omitempty" json:"retry,omitempty"`
	When      string                 `yaml:"when,omitempty" json:"when,omitempty"`
	Timeouts  *Timeouts              `yaml:"timeouts,omitempty" json:"timeouts,omitempty"`
}

// GateSpec is one declarative post-condition checked against a workflow's
// artifacts once its steps finish.
type GateSpec struct {
	Type string                 `yaml:"type" json:"type"`
	Name string                 `yaml:"name,omitempty" json:"name,omitempty"`
	With map[string]interface{} `yaml:"with,omitempty" json:"with,omitempty"`
}

// Verify declares the gates a workflow must pass after execution.
type Verify struct {
	Gates []GateSpec `yaml:"gates,omitempty" json:"gates,omitempty"`
}

// Coordination carries allocation hints attached to a workflow's metadata.
type Coordination struct {
	Priority  int      `yaml:"priority,omitempty" json:"priority,omitempty"`
	FileScope []string `yaml:"file_scope,omitempty" json:"file_scope,omitempty"`
}

// Metadata is the free-form, typed subset of workflow metadata the core
// understands; unrecognized keys are preserved in Extra.
type Metadata struct {
	Coordination *Coordination          `yaml:"coordination,omitempty" json:"coordination,omitempty"`
	Extra        map[string]interface{} `yaml:"-" json:"-"`
}

// Workflow is a declarative automation document: a name, optional inputs,
// a policy, and an ordered list of steps.
type Workflow struct {
	Name        string                 `yaml:"name" json:"name"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Inputs      map[string]interface{} `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Policy      Policy                 `yaml:"policy,omitempty" json:"policy,omitempty"`
	Steps       []Step                 `yaml:"steps" json:"steps"`
	Verify      *Verify                `yaml:"verify,omitempty" json:"verify,omitempty"`
	Metadata    *Metadata              `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// AdapterResult is what an adapter's Execute returns.
type AdapterResult struct {
	Success    bool                   `json:"success"`
	TokensUsed int                    `json:"tokens_used"`
	Artifacts  []string               `json:"artifacts,omitempty"`
	Output     string                 `json:"output,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// StepExecutionResult is produced once per executed step.
type StepExecutionResult struct {
	StepID        string                 `json:"step_id"`
	Success       bool                   `json:"success"`
	Output        string                 `json:"output,omitempty"`
	Artifacts     []string               `json:"artifacts,omitempty"`
	TokensUsed    int                    `json:"tokens_used"`
	ExecutionTime time.Duration          `json:"execution_time"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// WorkflowResult is produced once per workflow run.
type WorkflowResult struct {
	WorkflowName   string                 `json:"workflow_name"`
	RunID          string                 `json:"run_id,omitempty"`
	Success        bool                   `json:"success"`
	StepsExecuted  int                    `json:"steps_executed"`
	StepsSucceeded int                    `json:"steps_succeeded"`
	StepsFailed    int                    `json:"steps_failed"`
	TotalTokens    int                    `json:"total_tokens"`
	TotalTime      time.Duration          `json:"total_time"`
	StepResults    []StepExecutionResult  `json:"step_results"`
	Artifacts      []string               `json:"artifacts,omitempty"`
	GateResults    []gate.Result          `json:"gate_results,omitempty"`
	GatesPassed    bool                   `json:"gates_passed"`
	Error          string                 `json:"error,omitempty"`
}

// ExecutionContext is threaded between steps during a run. The Coordinator
// owns it; the Executor writes one StepResults entry per step.
type ExecutionContext struct {
	WorkflowName string                         `json:"workflow_name"`
	Inputs       map[string]interface{}         `json:"inputs,omitempty"`
	Policy       Policy                         `json:"policy"`
	StepResults  map[string]StepExecutionResult `json:"step_results"`
	Extra        map[string]interface{}         `json:"extra,omitempty"`
}

// NewExecutionContext builds the initial context for a workflow run,
// merging in any caller-supplied extra context.
func NewExecutionContext(wf *Workflow, extra map[string]interface{}) *ExecutionContext {
	ctx := &ExecutionContext{
		WorkflowName: wf.Name,
		Inputs:       wf.Inputs,
		Policy:       wf.Policy,
		StepResults:  make(map[string]StepExecutionResult),
		Extra:        make(map[string]interface{}),
	}
	for k, v := range extra {
		ctx.Extra[k] = v
	}
	return ctx
}
