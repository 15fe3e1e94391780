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

// Package coordinator orchestrates a complete workflow run: it loads and
// validates the document, builds the initial execution context, drives the
// Executor step by step honoring fail_fast, and aggregates the outcome.
// Nothing here ever panics past its own boundary; every failure mode,
// including a missing or malformed workflow file, becomes a
// WorkflowResult{Success:false}.
package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/flowctl/orchestrator/internal/metrics"
	"github.com/flowctl/orchestrator/internal/orchestrator/executor"
	"github.com/flowctl/orchestrator/internal/orchestrator/gate"
	"github.com/flowctl/orchestrator/internal/orchestrator/router"
	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
)

// Coordinator drives one workflow document through the Executor.
type Coordinator struct {
	executor        *executor.Executor
	gates           *gate.Engine
	router          *router.Router
	schemaValidator workflow.SchemaValidator
}

// New returns a Coordinator backed by exec. engine may be nil, in which
// case a workflow's verify.gates (if any) are never checked. rtr may be
// nil, in which case steps always run one at a time in declared order;
// with one, steps run in the Router's execution groups, concurrently
// within a group.
func New(exec *executor.Executor, engine *gate.Engine, rtr *router.Router) *Coordinator {
	return &Coordinator{executor: exec, gates: engine, router: rtr}
}

// WithSchemaValidator attaches a schema validator the Coordinator
// consults before decoding every workflow document it loads from disk. A
// Coordinator with none configured (the default from New) falls back to
// the structural checks workflow.Validate performs on its own, per the
// specification's "if a schema validator is configured" load step.
func (c *Coordinator) WithSchemaValidator(v workflow.SchemaValidator) *Coordinator {
	c.schemaValidator = v
	return c
}

// ExecuteWorkflow loads workflowPath, validates it, and runs it to
// completion.
func (c *Coordinator) ExecuteWorkflow(ctx context.Context, workflowPath, files string, extraContext map[string]interface{}) workflow.WorkflowResult {
	start := time.Now()

	wf, err := c.loadWorkflow(workflowPath)
	if err != nil {
		return workflow.WorkflowResult{
			WorkflowName: stem(workflowPath),
			Success:      false,
			TotalTime:    time.Since(start),
			Error:        err.Error(),
		}
	}
	return c.run(ctx, wf, files, extraContext, start)
}

// ExecuteWorkflowFromDocument runs an already-parsed workflow document,
// skipping the file load step.
func (c *Coordinator) ExecuteWorkflowFromDocument(ctx context.Context, wf *workflow.Workflow, files string, extraContext map[string]interface{}) workflow.WorkflowResult {
	start := time.Now()
	if wf == nil {
		return workflow.WorkflowResult{
			WorkflowName: "unnamed_workflow",
			Success:      false,
			TotalTime:    time.Since(start),
			Error:        "workflow document is nil",
		}
	}
	if err := workflow.Validate(wf); err != nil {
		return workflow.WorkflowResult{
			WorkflowName: nameOr(wf.Name, "unnamed_workflow"),
			Success:      false,
			TotalTime:    time.Since(start),
			Error:        err.Error(),
		}
	}
	return c.run(ctx, wf, files, extraContext, start)
}

// run executes wf's steps, honoring fail_fast, and aggregates the result.
// wf is assumed already validated.
func (c *Coordinator) run(ctx context.Context, wf *workflow.Workflow, files string, extraContext map[string]interface{}, start time.Time) workflow.WorkflowResult {
	wfctx := buildInitialContext(wf, extraContext)

	var results []workflow.StepExecutionResult
	if c.router != nil {
		results = c.runParallel(ctx, wf, wfctx, files)
	} else {
		results = c.runSequential(ctx, wf, wfctx, files)
	}

	wfResult := aggregateResults(wf.Name, results, time.Since(start))
	wfResult.RunID = uuid.NewString()
	c.runGates(wf, wfctx, &wfResult)
	metrics.ObserveWorkflow(wfResult.Success)
	return wfResult
}

// runSequential executes wf's steps one at a time, in declared order.
func (c *Coordinator) runSequential(ctx context.Context, wf *workflow.Workflow, wfctx *workflow.ExecutionContext, files string) []workflow.StepExecutionResult {
	results := make([]workflow.StepExecutionResult, 0, len(wf.Steps))
	for _, step := range wf.Steps {
		result := c.executor.ExecuteStep(ctx, step, wfctx, files)
		results = append(results, result)
		wfctx.StepResults[result.StepID] = result

		if !result.Success && wf.Policy.FailFast {
			break
		}
	}
	return results
}

// runParallel executes wf's steps in the Router's execution groups:
// groups run one after another, but every step within a group runs
// concurrently on its own goroutine. File-scope conflicts isolate a step
// into its own singleton group; AI steps batch at most a handful
// together; the Router decides the grouping. A group's results are only
// merged into wfctx.StepResults once every member has finished, so no
// step ever observes a sibling's in-flight result, and fail_fast is
// evaluated at that same group boundary.
func (c *Coordinator) runParallel(ctx context.Context, wf *workflow.Workflow, wfctx *workflow.ExecutionContext, files string) []workflow.StepExecutionResult {
	plan := c.router.PlanParallel(wf.Steps, wf.Policy)

	byID := make(map[string]workflow.Step, len(wf.Steps))
	for _, step := range wf.Steps {
		byID[step.ID] = step
	}

	order := make(map[string]int, len(wf.Steps))
	for i, step := range wf.Steps {
		order[step.ID] = i
	}

	var results []workflow.StepExecutionResult
	halt := false
	for _, group := range plan.ExecutionGroups {
		if halt {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		groupResults := make([]workflow.StepExecutionResult, len(group))
		for i, stepID := range group {
			i, step := i, byID[stepID]
			g.Go(func() error {
				groupResults[i] = c.executor.ExecuteStep(gctx, step, wfctx, files)
				return nil
			})
		}
		_ = g.Wait()

		for _, result := range groupResults {
			results = append(results, result)
			wfctx.StepResults[result.StepID] = result
			if !result.Success && wf.Policy.FailFast {
				halt = true
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return order[results[i].StepID] < order[results[j].StepID]
	})
	return results
}

// runGates checks wf's declared verification gates, if any, against the
// artifacts directory and folds the outcome into result. A workflow with
// no gates declared, or a Coordinator with no gate engine wired in,
// reports gates_passed=true: there was nothing to fail.
func (c *Coordinator) runGates(wf *workflow.Workflow, wfctx *workflow.ExecutionContext, result *workflow.WorkflowResult) {
	if wf.Verify == nil || len(wf.Verify.Gates) == 0 || c.gates == nil {
		result.GatesPassed = true
		return
	}

	configs := make([]gate.Config, len(wf.Verify.Gates))
	for i, g := range wf.Verify.Gates {
		configs[i] = gate.Config{Type: g.Type, Name: g.Name, Extra: g.With}
	}

	result.GateResults = c.gates.CheckGates(configs, artifactsDirFor(wfctx))
	result.GatesPassed = gate.AllPassed(result.GateResults)
	for i, g := range wf.Verify.Gates {
		metrics.ObserveGate(g.Type, result.GateResults[i].Passed)
	}
	if !result.GatesPassed {
		result.Success = false
	}
}

// artifactsDirFor resolves where a workflow's gates should look for
// artifacts: extra_context["artifacts_dir"] if the caller supplied one,
// else a relative "artifacts" directory.
func artifactsDirFor(wfctx *workflow.ExecutionContext) string {
	if wfctx != nil {
		if v, ok := wfctx.Extra["artifacts_dir"]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return "artifacts"
}

// buildInitialContext seeds an ExecutionContext from wf, merging in any
// caller-supplied extra context.
func buildInitialContext(wf *workflow.Workflow, extraContext map[string]interface{}) *workflow.ExecutionContext {
	return workflow.NewExecutionContext(wf, extraContext)
}

// aggregateResults folds step results into one WorkflowResult.
func aggregateResults(workflowName string, results []workflow.StepExecutionResult, totalTime time.Duration) workflow.WorkflowResult {
	succeeded, failed, totalTokens := 0, 0, 0
	var artifacts []string
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
		totalTokens += r.TokensUsed
		artifacts = append(artifacts, r.Artifacts...)
	}

	return workflow.WorkflowResult{
		WorkflowName:   workflowName,
		Success:        failed == 0,
		StepsExecuted:  len(results),
		StepsSucceeded: succeeded,
		StepsFailed:    failed,
		TotalTokens:    totalTokens,
		TotalTime:      totalTime,
		StepResults:    results,
		Artifacts:      artifacts,
	}
}

// EstimateWorkflowCost sums the Executor's per-step token estimates for
// every step in workflowPath without executing anything.
func (c *Coordinator) EstimateWorkflowCost(workflowPath string) (CostEstimate, error) {
	wf, err := c.loadWorkflow(workflowPath)
	if err != nil {
		return CostEstimate{}, err
	}

	estimate := CostEstimate{
		WorkflowName: wf.Name,
		TotalSteps:   len(wf.Steps),
	}
	for _, step := range wf.Steps {
		tokens := c.executor.EstimateStepCost(step)
		estimate.TotalEstimatedTokens += tokens
		estimate.StepEstimates = append(estimate.StepEstimates, StepCostEstimate{
			StepID:          step.ID,
			Actor:           step.Actor,
			EstimatedTokens: tokens,
		})
	}
	return estimate, nil
}

// ValidateWorkflowFile loads and structurally validates workflowPath,
// then delegates per-step checks to the Executor, without running anything.
func (c *Coordinator) ValidateWorkflowFile(workflowPath string) executor.ValidationReport {
	wf, err := c.loadWorkflow(workflowPath)
	if err != nil {
		return executor.ValidationReport{
			Valid:  false,
			Errors: []executor.StepValidation{{StepID: stem(workflowPath), Error: err.Error()}},
		}
	}
	return c.executor.ValidateSteps(wf.Steps)
}

// CostEstimate reports the Executor's estimated cost for every step in a
// workflow document.
type CostEstimate struct {
	WorkflowName         string
	TotalSteps           int
	TotalEstimatedTokens int
	StepEstimates        []StepCostEstimate
}

// StepCostEstimate is one step's estimated token cost.
type StepCostEstimate struct {
	StepID          string
	Actor           string
	EstimatedTokens int
}

// loadWorkflow reads and parses workflowPath, running it through c's
// schema validator first when one is configured.
func (c *Coordinator) loadWorkflow(workflowPath string) (*workflow.Workflow, error) {
	data, err := os.ReadFile(workflowPath)
	if err != nil {
		return nil, err
	}
	return workflow.ParseDocumentWithSchema(data, c.schemaValidator)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
