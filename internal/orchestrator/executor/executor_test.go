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

package executor

import (
	"context"
	"testing"

	"github.com/flowctl/orchestrator/internal/orchestrator/adapter"
	"github.com/flowctl/orchestrator/internal/orchestrator/complexity"
	"github.com/flowctl/orchestrator/internal/orchestrator/cost"
	"github.com/flowctl/orchestrator/internal/orchestrator/router"
	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
)

type stubAdapter struct {
	name      string
	available bool
	result    workflow.AdapterResult
	calls     int
	lastWith  map[string]interface{}
}

func (s *stubAdapter) Name() string        { return s.name }
func (s *stubAdapter) Kind() adapter.Kind  { return adapter.KindDeterministic }
func (s *stubAdapter) Description() string { return s.name }
func (s *stubAdapter) PerformanceProfile() adapter.PerformanceProfile {
	return adapter.PerformanceProfile{}
}
func (s *stubAdapter) Execute(ctx context.Context, step workflow.Step, wfctx *workflow.ExecutionContext, files string) workflow.AdapterResult {
	s.calls++
	s.lastWith = step.With
	return s.result
}
func (s *stubAdapter) ValidateStep(step workflow.Step) bool { return true }
func (s *stubAdapter) EstimateCost(step workflow.Step) int  { return 42 }
func (s *stubAdapter) IsAvailable() bool                    { return s.available }

func newRegistryWith(a *stubAdapter) *adapter.Registry {
	reg := adapter.NewRegistry()
	reg.RegisterInstance(adapter.Key(a.name), a)
	return reg
}

func TestExecuteStep_MissingFieldFails(t *testing.T) {
	reg := adapter.NewRegistry()
	exec := New(reg, nil, nil, false)

	result := exec.ExecuteStep(context.Background(), workflow.Step{ID: "s1"}, nil, "")
	if result.Success {
		t.Fatal("expected failure for a step missing required fields")
	}
}

func TestExecuteStep_DryRunNeverInvokesAdapter(t *testing.T) {
	stub := &stubAdapter{name: "code_fixers", available: true, result: workflow.AdapterResult{Success: true, TokensUsed: 999}}
	exec := New(newRegistryWith(stub), nil, nil, true)

	result := exec.ExecuteStep(context.Background(), workflow.Step{ID: "s1", Name: "format", Actor: "code_fixers"}, nil, "")
	if !result.Success {
		t.Fatalf("expected dry-run success, got %+v", result)
	}
	if stub.calls != 0 {
		t.Fatalf("expected the adapter never to be invoked in dry-run, got %d calls", stub.calls)
	}
	if result.TokensUsed != 0 {
		t.Fatalf("expected zero tokens in dry-run, got %d", result.TokensUsed)
	}
}

func TestExecuteStep_SkipsWhenConditionFalse(t *testing.T) {
	stub := &stubAdapter{name: "code_fixers", available: true, result: workflow.AdapterResult{Success: true}}
	exec := New(newRegistryWith(stub), nil, nil, false)

	step := workflow.Step{ID: "s1", Name: "format", Actor: "code_fixers", When: "inputs.enabled == true"}
	wfctx := workflow.NewExecutionContext(&workflow.Workflow{Name: "wf", Inputs: map[string]interface{}{"enabled": false}}, nil)

	result := exec.ExecuteStep(context.Background(), step, wfctx, "")
	if !result.Success {
		t.Fatalf("expected a skipped step to report success, got %+v", result)
	}
	if stub.calls != 0 {
		t.Fatalf("expected adapter not invoked when condition is false, got %d calls", stub.calls)
	}
}

func TestExecuteStep_RecordsCostOnSuccess(t *testing.T) {
	stub := &stubAdapter{name: "ai_editor", available: true, result: workflow.AdapterResult{Success: true, TokensUsed: 500}}
	tracker := cost.New(cost.NewMemoryStore(), nil)
	exec := New(newRegistryWith(stub), tracker, nil, false)

	wfctx := workflow.NewExecutionContext(&workflow.Workflow{Name: "wf"}, nil)
	result := exec.ExecuteStep(context.Background(), workflow.Step{ID: "s1", Name: "edit", Actor: "ai_editor"}, wfctx, "")
	if !result.Success || result.TokensUsed != 500 {
		t.Fatalf("unexpected result: %+v", result)
	}

	summary, err := tracker.GetWorkflowCostSummary("wf", "")
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalTokens != 500 {
		t.Fatalf("expected cost tracker to record 500 tokens, got %d", summary.TotalTokens)
	}
}

func TestExecuteBatch_ThreadsContextBetweenSteps(t *testing.T) {
	stub := &stubAdapter{name: "code_fixers", available: true, result: workflow.AdapterResult{Success: true, Output: "done"}}
	exec := New(newRegistryWith(stub), nil, nil, false)

	wfctx := workflow.NewExecutionContext(&workflow.Workflow{Name: "wf"}, nil)
	steps := []workflow.Step{
		{ID: "s1", Name: "format", Actor: "code_fixers"},
		{ID: "s2", Name: "format again", Actor: "code_fixers"},
	}
	results := exec.ExecuteBatch(context.Background(), steps, wfctx, "")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if _, ok := wfctx.StepResults["s1"]; !ok {
		t.Fatal("expected step s1's result threaded into the execution context")
	}
	if _, ok := wfctx.StepResults["s2"]; !ok {
		t.Fatal("expected step s2's result threaded into the execution context")
	}
}

func TestValidateSteps_ReportsMissingAdapterAsError(t *testing.T) {
	reg := adapter.NewRegistry()
	exec := New(reg, nil, nil, false)

	report := exec.ValidateSteps([]workflow.Step{{ID: "s1", Name: "x", Actor: "nonexistent"}})
	if report.Valid {
		t.Fatal("expected invalid report for a missing adapter")
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected one error, got %+v", report.Errors)
	}
}

func TestValidateSteps_UnavailableAdapterIsWarningNotError(t *testing.T) {
	stub := &stubAdapter{name: "code_fixers", available: false}
	exec := New(newRegistryWith(stub), nil, nil, false)

	report := exec.ValidateSteps([]workflow.Step{{ID: "s1", Name: "x", Actor: "code_fixers"}})
	if !report.Valid {
		t.Fatalf("expected valid=true with only a warning, got %+v", report)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", report.Warnings)
	}
}

func TestEstimateStepCost_DelegatesToAdapter(t *testing.T) {
	stub := &stubAdapter{name: "ai_editor", available: true}
	exec := New(newRegistryWith(stub), nil, nil, false)

	cost := exec.EstimateStepCost(workflow.Step{ID: "s1", Actor: "ai_editor"})
	if cost != 42 {
		t.Fatalf("expected the adapter's estimate (42), got %d", cost)
	}
}

type emptyResolver struct{}

func (emptyResolver) Resolve(patterns []string) []complexity.FileInfo { return nil }

func TestExecuteStep_RouterFallsBackToAvailableDeterministicAdapter(t *testing.T) {
	fixers := &stubAdapter{name: "code_fixers", available: true, result: workflow.AdapterResult{Success: true, Output: "fixed"}}
	reg := newRegistryWith(fixers)

	rtr := router.New(reg, complexity.New(emptyResolver{}), nil)
	exec := New(reg, nil, rtr, false)

	step := workflow.Step{ID: "s1", Name: "format", Actor: "nonexistent_actor"}
	result := exec.ExecuteStep(context.Background(), step, nil, "")
	if !result.Success {
		t.Fatalf("expected the router to fall back to an available adapter, got %+v", result)
	}
	if fixers.calls != 1 {
		t.Fatalf("expected the fallback adapter to be invoked once, got %d", fixers.calls)
	}
	if result.Metadata["routed_adapter"] != "code_fixers" {
		t.Fatalf("expected routing metadata to record the fallback adapter, got %+v", result.Metadata)
	}
}

func TestExecuteStep_RendersTemplatedWithFromPriorStepOutput(t *testing.T) {
	stub := &stubAdapter{name: "code_fixers", available: true, result: workflow.AdapterResult{Success: true}}
	exec := New(newRegistryWith(stub), nil, nil, false)

	wfctx := workflow.NewExecutionContext(&workflow.Workflow{Name: "wf"}, nil)
	wfctx.StepResults["fetch"] = workflow.StepExecutionResult{StepID: "fetch", Success: true, Output: "v1.2.3"}

	step := workflow.Step{
		ID:     "s2",
		Name:   "tag",
		Actor:  "code_fixers",
		With:   map[string]interface{}{"version": "{{.steps.fetch.output}}", "message": "releasing {{.steps.fetch.output}}"},
	}

	result := exec.ExecuteStep(context.Background(), step, wfctx, "")
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if stub.lastWith["version"] != "v1.2.3" {
		t.Fatalf("expected a whole-token template to resolve to its native value, got %+v", stub.lastWith["version"])
	}
	if stub.lastWith["message"] != "releasing v1.2.3" {
		t.Fatalf("expected an embedded template to resolve within its surrounding text, got %+v", stub.lastWith["message"])
	}
}

func TestExecuteStep_LeavesUnresolvableTemplateUntouched(t *testing.T) {
	stub := &stubAdapter{name: "code_fixers", available: true, result: workflow.AdapterResult{Success: true}}
	exec := New(newRegistryWith(stub), nil, nil, false)

	step := workflow.Step{
		ID:    "s1",
		Name:  "tag",
		Actor: "code_fixers",
		With:  map[string]interface{}{"version": "{{.steps.missing.output}}"},
	}

	result := exec.ExecuteStep(context.Background(), step, nil, "")
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if stub.lastWith["version"] != "{{.steps.missing.output}}" {
		t.Fatalf("expected an unresolvable template to be left untouched, got %+v", stub.lastWith["version"])
	}
}
