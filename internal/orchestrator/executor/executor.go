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

// Package executor implements the Step Executor: it validates one step,
// resolves its adapter, honors dry-run and when-condition short circuits,
// executes with a per-step timeout, and records token usage. Every
// failure mode converts to a StepExecutionResult rather than an error;
// the Executor never aborts a batch on its own.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/flowctl/orchestrator/internal/metrics"
	"github.com/flowctl/orchestrator/internal/orchestrator/adapter"
	"github.com/flowctl/orchestrator/internal/orchestrator/cost"
	"github.com/flowctl/orchestrator/internal/orchestrator/router"
	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
	"github.com/flowctl/orchestrator/pkg/workflow/expression"
)

// defaultStepTimeout applies when a step declares no explicit timeout.
const defaultStepTimeout = 5 * time.Minute

// Executor runs individual steps through the adapter Registry.
type Executor struct {
	registry *adapter.Registry
	tracker  *cost.Tracker
	router   *router.Router
	eval     *expression.Evaluator
	dryRun   bool
}

// New returns an Executor. tracker may be nil to skip cost recording, and
// rtr may be nil to resolve a step's adapter directly by its actor name
// rather than through routing/fallback logic.
func New(registry *adapter.Registry, tracker *cost.Tracker, rtr *router.Router, dryRun bool) *Executor {
	return &Executor{
		registry: registry,
		tracker:  tracker,
		router:   rtr,
		eval:     expression.New(),
		dryRun:   dryRun,
	}
}

// ExecuteStep runs one step against wfctx and returns its result. It never
// panics or returns a Go error: every failure is reported through
// StepExecutionResult.Error.
func (e *Executor) ExecuteStep(ctx context.Context, step workflow.Step, wfctx *workflow.ExecutionContext, files string) workflow.StepExecutionResult {
	start := time.Now()
	stepID := step.ID
	if stepID == "" {
		stepID = "unknown"
	}

	fail := func(errMsg string) workflow.StepExecutionResult {
		return workflow.StepExecutionResult{
			StepID:        stepID,
			Success:       false,
			ExecutionTime: time.Since(start),
			Error:         errMsg,
		}
	}

	if err := validateStep(step); err != nil {
		return fail(err.Error())
	}

	shouldRun, err := e.evaluateWhen(step, wfctx)
	if err != nil {
		return fail(err.Error())
	}
	if !shouldRun {
		return workflow.StepExecutionResult{
			StepID:        stepID,
			Success:       true,
			Output:        fmt.Sprintf("skipped: condition %q was false", step.When),
			ExecutionTime: time.Since(start),
			Metadata:      map[string]interface{}{"skipped": true},
		}
	}

	actorName, decision := e.resolveActor(step, wfctx)

	a, err := e.registry.Get(adapter.Key(actorName))
	if err != nil {
		return fail(fmt.Sprintf("adapter %q not found: %v", actorName, err))
	}
	if !a.IsAvailable() {
		return fail(fmt.Sprintf("adapter %q is not available", actorName))
	}

	if e.dryRun {
		return workflow.StepExecutionResult{
			StepID:        stepID,
			Success:       true,
			Output:        fmt.Sprintf("[DRY RUN] would execute %s", actorName),
			Artifacts:     step.Emits,
			ExecutionTime: time.Since(start),
			Metadata:      map[string]interface{}{"dry_run": true},
		}
	}

	timeout := defaultStepTimeout
	if step.Timeouts != nil && step.Timeouts.PerStepSeconds > 0 {
		timeout = time.Duration(step.Timeouts.PerStepSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	renderedStep := e.renderWith(step, wfctx)
	result := a.Execute(runCtx, renderedStep, wfctx, files)
	execTime := time.Since(start)

	metrics.ObserveStep(actorName, execTime.Seconds(), result.TokensUsed, result.Success)
	if actorName != step.Actor {
		metrics.RoutingFallbacksTotal.Inc()
	}

	if e.router != nil {
		e.router.RecordExecution(actorName, execTime, result.Success, result.TokensUsed)
	}

	if e.tracker != nil && result.TokensUsed > 0 {
		workflowID := ""
		if wfctx != nil {
			workflowID = wfctx.WorkflowName
		}
		_, _ = e.tracker.RecordUsage(actorName, result.TokensUsed, "unknown", result.Success, workflowID, "", "", actorName)
	}

	metadata := result.Metadata
	if decision != nil {
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		metadata["routing_reasoning"] = decision.Reasoning
		metadata["routed_adapter"] = decision.AdapterName
	}

	return workflow.StepExecutionResult{
		StepID:        stepID,
		Success:       result.Success,
		Output:        result.Output,
		Artifacts:     result.Artifacts,
		TokensUsed:    result.TokensUsed,
		ExecutionTime: execTime,
		Error:         result.Error,
		Metadata:      metadata,
	}
}

// resolveActor decides which adapter key actually runs step. Without a
// Router, a step always runs under its declared actor. With one, the
// Router's decision takes over: this is how an unavailable or missing
// actor can still fall through to a deterministic or AI substitute.
func (e *Executor) resolveActor(step workflow.Step, wfctx *workflow.ExecutionContext) (string, *router.Decision) {
	if e.router == nil {
		return step.Actor, nil
	}
	policy := workflow.Policy{}
	if wfctx != nil {
		policy = wfctx.Policy
	}
	decision := e.router.Route(step, policy)
	return decision.AdapterName, &decision
}

// evaluateWhen evaluates step.When against wfctx's inputs and step
// results. An empty condition always runs.
func (e *Executor) evaluateWhen(step workflow.Step, wfctx *workflow.ExecutionContext) (bool, error) {
	if step.When == "" {
		return true, nil
	}
	return e.eval.Evaluate(step.When, e.expressionContext(wfctx))
}

// expressionContext builds the {inputs, steps} map both the when-condition
// evaluator and the with-template renderer resolve references against.
func (e *Executor) expressionContext(wfctx *workflow.ExecutionContext) map[string]interface{} {
	workflowContext := map[string]interface{}{}
	if wfctx != nil {
		workflowContext["inputs"] = wfctx.Inputs
		steps := make(map[string]interface{}, len(wfctx.StepResults))
		for id, r := range wfctx.StepResults {
			steps[id] = map[string]interface{}{
				"success": r.Success,
				"output":  r.Output,
			}
		}
		workflowContext["steps"] = steps
	}
	return expression.BuildContext(workflowContext)
}

// fullTemplatePattern matches a `with` value that is entirely one
// {{...}} token, as opposed to a token embedded in a larger string.
var fullTemplatePattern = regexp.MustCompile(`^\{\{[^}]+\}\}$`)

// templateToken matches one {{...}} occurrence within a larger string.
var templateToken = regexp.MustCompile(`\{\{[^}]+\}\}`)

// renderWith resolves {{...}} templates in step.With against wfctx's
// inputs and prior step results before the adapter sees them, using the
// same path-resolution expression.PreprocessTemplate already implements.
// A value that is wholly one template token comes back as its resolved
// type (string, number, bool); a value with a template embedded in
// surrounding text has each token replaced by its resolved value inline.
// A template that fails to resolve (e.g. referencing a step that hasn't
// run yet) is left untouched rather than failing the step.
func (e *Executor) renderWith(step workflow.Step, wfctx *workflow.ExecutionContext) workflow.Step {
	if len(step.With) == 0 {
		return step
	}
	evalCtx := e.expressionContext(wfctx)

	rendered := make(map[string]interface{}, len(step.With))
	for k, v := range step.With {
		s, ok := v.(string)
		if !ok || !strings.Contains(s, "{{") {
			rendered[k] = v
			continue
		}
		if fullTemplatePattern.MatchString(strings.TrimSpace(s)) {
			processed, err := expression.PreprocessTemplate(s, evalCtx)
			if err != nil {
				rendered[k] = v
				continue
			}
			rendered[k] = literalToValue(processed)
			continue
		}
		rendered[k] = templateToken.ReplaceAllStringFunc(s, func(token string) string {
			literal, err := expression.PreprocessTemplate(token, evalCtx)
			if err != nil {
				return token
			}
			return fmt.Sprintf("%v", literalToValue(literal))
		})
	}
	step.With = rendered
	return step
}

// literalToValue parses an expr-lang literal produced by
// expression.PreprocessTemplate (a quoted string, a number, a boolean, or
// "nil") back into the Go value it represents.
func literalToValue(literal string) interface{} {
	switch literal {
	case "nil":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if unquoted, err := strconv.Unquote(literal); err == nil {
		return unquoted
	}
	if f, err := strconv.ParseFloat(literal, 64); err == nil {
		return f
	}
	return literal
}

// validateStep enforces the fields every step must carry before it can be
// routed to an adapter.
func validateStep(step workflow.Step) error {
	if step.ID == "" {
		return fmt.Errorf("step missing required field: id")
	}
	if step.Name == "" {
		return fmt.Errorf("step missing required field: name")
	}
	if step.Actor == "" {
		return fmt.Errorf("step missing required field: actor")
	}
	return nil
}

// EstimateStepCost asks step's adapter for a token estimate; an
// unregistered actor estimates zero rather than raising.
func (e *Executor) EstimateStepCost(step workflow.Step) int {
	if step.Actor == "" {
		return 0
	}
	a, err := e.registry.Get(adapter.Key(step.Actor))
	if err != nil {
		return 0
	}
	return a.EstimateCost(step)
}

// ExecuteBatch runs steps sequentially against a shared wfctx, recording
// each step's result into wfctx.StepResults before the next step runs.
func (e *Executor) ExecuteBatch(ctx context.Context, steps []workflow.Step, wfctx *workflow.ExecutionContext, files string) []workflow.StepExecutionResult {
	results := make([]workflow.StepExecutionResult, 0, len(steps))
	for _, step := range steps {
		result := e.ExecuteStep(ctx, step, wfctx, files)
		results = append(results, result)
		if wfctx != nil {
			wfctx.StepResults[result.StepID] = result
		}
	}
	return results
}

// StepValidation is one step's validation outcome.
type StepValidation struct {
	StepID string
	Error  string
}

// StepWarning is one step's validation warning (adapter registered but
// not currently available).
type StepWarning struct {
	StepID  string
	Warning string
}

// ValidationReport is the result of validating a batch of steps without
// executing them.
type ValidationReport struct {
	Valid      bool
	TotalSteps int
	Errors     []StepValidation
	Warnings   []StepWarning
}

// ValidateSteps checks every step's structure and adapter availability
// without executing anything.
func (e *Executor) ValidateSteps(steps []workflow.Step) ValidationReport {
	report := ValidationReport{TotalSteps: len(steps)}
	for i, step := range steps {
		stepID := step.ID
		if stepID == "" {
			stepID = fmt.Sprintf("step_%d", i)
		}

		if err := validateStep(step); err != nil {
			report.Errors = append(report.Errors, StepValidation{StepID: stepID, Error: err.Error()})
			continue
		}

		if step.Actor == "" {
			continue
		}
		a, err := e.registry.Get(adapter.Key(step.Actor))
		if err != nil {
			report.Errors = append(report.Errors, StepValidation{
				StepID: stepID,
				Error:  fmt.Sprintf("adapter %q not found", step.Actor),
			})
			continue
		}
		if !a.IsAvailable() {
			report.Warnings = append(report.Warnings, StepWarning{
				StepID:  stepID,
				Warning: fmt.Sprintf("adapter %q is not currently available", step.Actor),
			})
		}
	}
	report.Valid = len(report.Errors) == 0
	return report
}
