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

package router

import (
	"context"
	"testing"

	"github.com/flowctl/orchestrator/internal/orchestrator/adapter"
	"github.com/flowctl/orchestrator/internal/orchestrator/complexity"
	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
)

// fakeAdapter is a minimal stand-in used only by this package's tests.
type fakeAdapter struct {
	name         string
	kind         adapter.Kind
	available    bool
	estimateCost int
}

func (f *fakeAdapter) Name() string        { return f.name }
func (f *fakeAdapter) Kind() adapter.Kind  { return f.kind }
func (f *fakeAdapter) Description() string { return f.name }
func (f *fakeAdapter) PerformanceProfile() adapter.PerformanceProfile {
	return adapter.PerformanceProfile{}
}
func (f *fakeAdapter) Execute(ctx context.Context, step workflow.Step, wfctx *workflow.ExecutionContext, files string) workflow.AdapterResult {
	return workflow.AdapterResult{Success: true}
}
func (f *fakeAdapter) ValidateStep(step workflow.Step) bool { return true }
func (f *fakeAdapter) EstimateCost(step workflow.Step) int  { return f.estimateCost }
func (f *fakeAdapter) IsAvailable() bool                    { return f.available }

// emptyResolver resolves no files for any glob, giving every step the
// lowest file_count/file_size complexity factors.
type emptyResolver struct{}

func (emptyResolver) Resolve(patterns []string) []complexity.FileInfo { return nil }

func newTestRegistry() *adapter.Registry {
	reg := adapter.NewRegistry()
	reg.RegisterInstance("ai_editor", &fakeAdapter{name: "ai_editor", kind: adapter.KindAI, available: true})
	reg.RegisterInstance("ai_analyst", &fakeAdapter{name: "ai_analyst", kind: adapter.KindAI, available: true})
	reg.RegisterInstance("code_fixers", &fakeAdapter{name: "code_fixers", kind: adapter.KindDeterministic, available: true})
	reg.RegisterInstance("vscode_diagnostics", &fakeAdapter{name: "vscode_diagnostics", kind: adapter.KindDeterministic, available: true})
	reg.RegisterInstance("pytest_runner", &fakeAdapter{name: "pytest_runner", kind: adapter.KindDeterministic, available: true})
	return reg
}

func defaultPolicy() workflow.Policy {
	return workflow.Policy{PreferDeterministic: true, ComplexityThreshold: 0.7, FailFast: true}
}

func TestRoute_DowngradesSimpleAIStepToDeterministic(t *testing.T) {
	reg := newTestRegistry()
	r := New(reg, complexity.New(emptyResolver{}), nil)

	step := workflow.Step{ID: "s1", Name: "format the file", Actor: "ai_editor"}
	decision := r.Route(step, defaultPolicy())

	if decision.AdapterName != "code_fixers" {
		t.Fatalf("expected downgrade to code_fixers, got %q (reasoning: %s)", decision.AdapterName, decision.Reasoning)
	}
	if decision.AdapterKind != adapter.KindDeterministic {
		t.Fatalf("expected deterministic kind, got %s", decision.AdapterKind)
	}
	if decision.EstimatedTokens != 0 {
		t.Fatalf("expected zero token estimate for deterministic route, got %d", decision.EstimatedTokens)
	}
}

func TestRoute_KeepsAIWhenPreferDeterministicIsFalse(t *testing.T) {
	reg := newTestRegistry()
	r := New(reg, complexity.New(emptyResolver{}), nil)

	step := workflow.Step{ID: "s1", Name: "format the file", Actor: "ai_editor"}
	policy := workflow.Policy{PreferDeterministic: false, ComplexityThreshold: 0.7}
	decision := r.Route(step, policy)

	if decision.AdapterName != "ai_editor" {
		t.Fatalf("expected direct route to ai_editor, got %q", decision.AdapterName)
	}
	if decision.EstimatedTokens <= 0 {
		t.Fatalf("expected a positive token estimate for an AI route, got %d", decision.EstimatedTokens)
	}
}

func TestRoute_FallsBackWhenActorUnavailable(t *testing.T) {
	reg := adapter.NewRegistry()
	reg.RegisterInstance("code_fixers", &fakeAdapter{name: "code_fixers", kind: adapter.KindDeterministic, available: true})
	r := New(reg, complexity.New(emptyResolver{}), nil)

	step := workflow.Step{ID: "s1", Name: "format", Actor: "unregistered_actor"}
	decision := r.Route(step, defaultPolicy())

	if decision.AdapterName != "code_fixers" {
		t.Fatalf("expected fallback to code_fixers, got %q", decision.AdapterName)
	}
}

func TestRoute_FallsBackToAIForComplexUnavailableActor(t *testing.T) {
	reg := adapter.NewRegistry()
	r := New(reg, complexity.New(emptyResolver{}), nil)

	step := workflow.Step{
		ID: "s1", Name: "refactor and generate a large module", Actor: "unregistered_actor",
		With: map[string]interface{}{
			"a": 1, "b": 2, "c": 3, "d": 4, "e": 5, "f": map[string]interface{}{"nested": true},
		},
	}
	decision := r.Route(step, defaultPolicy())

	if decision.AdapterName != "ai_editor" {
		t.Fatalf("expected AI fallback, got %q", decision.AdapterName)
	}
	if decision.AdapterKind != adapter.KindAI {
		t.Fatalf("expected AI kind, got %s", decision.AdapterKind)
	}
}

// manyLargeFilesResolver resolves every pattern to a fixed set of large
// files, driving the file_count and file_size factors to their maximums so
// tests can force a high complexity score deterministically.
type manyLargeFilesResolver struct{}

func (manyLargeFilesResolver) Resolve(patterns []string) []complexity.FileInfo {
	files := make([]complexity.FileInfo, 0, 20)
	for i := 0; i < 20; i++ {
		files = append(files, complexity.FileInfo{Path: "big.go", Size: 50 * 1024})
	}
	return files
}

func TestRoute_UpgradesComplexDeterministicStepToAI(t *testing.T) {
	reg := newTestRegistry()
	r := New(reg, complexity.New(manyLargeFilesResolver{}), nil)

	step := workflow.Step{
		ID:     "s1",
		Name:   "refactor and generate the module",
		Actor:  "code_fixers",
		Files:  workflow.FileGlobs{"src/**/*.go"},
		Retry:  &workflow.Retry{MaxAttempts: 3},
		When:   "inputs.enabled",
		With: map[string]interface{}{
			"a": 1, "b": 2, "c": 3, "d": 4, "e": 5, "f": 6,
			"nested": map[string]interface{}{"deep": true},
			"list":   []interface{}{1, 2, 3},
		},
	}
	decision := r.Route(step, defaultPolicy())

	if decision.AdapterName != "ai_editor" {
		t.Fatalf("expected upgrade to ai_editor, got %q (reasoning: %s)", decision.AdapterName, decision.Reasoning)
	}
	if decision.AdapterKind != adapter.KindAI {
		t.Fatalf("expected AI kind, got %s", decision.AdapterKind)
	}
	if decision.EstimatedTokens <= 0 {
		t.Fatalf("expected a positive token estimate for an upgraded route, got %d", decision.EstimatedTokens)
	}
}

func TestRouteWithBudget_PrefersIPTRoleAdaptersWithinBudget(t *testing.T) {
	reg := adapter.NewRegistry()
	reg.RegisterInstance("ai_analyst", &fakeAdapter{name: "ai_analyst", kind: adapter.KindAI, available: true, estimateCost: 800})
	reg.RegisterInstance("ai_editor", &fakeAdapter{name: "ai_editor", kind: adapter.KindAI, available: true, estimateCost: 200})
	r := New(reg, complexity.New(emptyResolver{}), nil)

	step := workflow.Step{ID: "s1", Name: "plan the change", Actor: "ai_analyst"}
	decision := r.RouteWithBudget(step, "ipt", 500)

	if decision.AdapterName != "ai_editor" {
		t.Fatalf("expected ai_editor (cheaper, within budget), got %q", decision.AdapterName)
	}
}

func TestRouteWithBudget_FallsBackToCheapestDeterministicWhenOverBudget(t *testing.T) {
	reg := adapter.NewRegistry()
	reg.RegisterInstance("code_fixers", &fakeAdapter{name: "code_fixers", kind: adapter.KindDeterministic, available: true, estimateCost: 50})
	reg.RegisterInstance("pytest_runner", &fakeAdapter{name: "pytest_runner", kind: adapter.KindDeterministic, available: true, estimateCost: 5000})
	r := New(reg, complexity.New(emptyResolver{}), nil)

	step := workflow.Step{ID: "s1", Name: "format", Actor: "code_fixers"}
	decision := r.RouteWithBudget(step, "wt", 10)

	if decision.AdapterName != "code_fixers" {
		t.Fatalf("expected cheapest deterministic fallback code_fixers, got %q", decision.AdapterName)
	}
	if decision.AdapterKind != adapter.KindDeterministic {
		t.Fatalf("expected deterministic kind, got %s", decision.AdapterKind)
	}
}

func TestPlanParallel_ResourceAllocationGroupsStepsByAdapter(t *testing.T) {
	reg := newTestRegistry()
	r := New(reg, complexity.New(emptyResolver{}), nil)

	steps := []workflow.Step{
		{ID: "a", Name: "lint", Actor: "code_fixers"},
		{ID: "b", Name: "lint", Actor: "code_fixers"},
		{ID: "c", Name: "lint", Actor: "vscode_diagnostics"},
	}
	plan := r.PlanParallel(steps, defaultPolicy())

	if got := plan.ResourceAllocation["code_fixers"]; len(got) != 2 {
		t.Fatalf("expected 2 steps allocated to code_fixers, got %v", got)
	}
	if got := plan.ResourceAllocation["vscode_diagnostics"]; len(got) != 1 {
		t.Fatalf("expected 1 step allocated to vscode_diagnostics, got %v", got)
	}
}

func TestPlanParallel_GroupsConflictingExclusiveStepsSeparately(t *testing.T) {
	reg := newTestRegistry()
	r := New(reg, complexity.New(emptyResolver{}), nil)

	steps := []workflow.Step{
		{ID: "a", Name: "lint", Actor: "code_fixers", Files: workflow.FileGlobs{"src/**/*.go"}, ScopeMode: workflow.ScopeExclusive},
		{ID: "b", Name: "lint", Actor: "vscode_diagnostics", Files: workflow.FileGlobs{"src/app/main.go"}, ScopeMode: workflow.ScopeExclusive},
		{ID: "c", Name: "lint", Actor: "pytest_runner", Files: workflow.FileGlobs{"docs/**/*.md"}, ScopeMode: workflow.ScopeExclusive},
	}
	plan := r.PlanParallel(steps, defaultPolicy())

	if len(plan.Conflicts) != 1 {
		t.Fatalf("expected exactly one conflict, got %d: %v", len(plan.Conflicts), plan.Conflicts)
	}
	foundSingletons := 0
	for _, g := range plan.ExecutionGroups {
		if len(g) == 1 {
			foundSingletons++
		}
	}
	if foundSingletons != 2 {
		t.Fatalf("expected the two conflicting steps each in their own group, got groups: %v", plan.ExecutionGroups)
	}
}

func TestPlanParallel_BatchesAISteps(t *testing.T) {
	reg := newTestRegistry()
	r := New(reg, complexity.New(emptyResolver{}), nil)

	policy := workflow.Policy{PreferDeterministic: false, ComplexityThreshold: 0.7}
	steps := make([]workflow.Step, 0, 5)
	for i := 0; i < 5; i++ {
		steps = append(steps, workflow.Step{ID: string(rune('a' + i)), Name: "analyze deeply", Actor: "ai_editor"})
	}
	plan := r.PlanParallel(steps, policy)

	var aiGroupSizes []int
	for _, g := range plan.ExecutionGroups {
		aiGroupSizes = append(aiGroupSizes, len(g))
	}
	if len(aiGroupSizes) != 2 || aiGroupSizes[0] != 3 || aiGroupSizes[1] != 2 {
		t.Fatalf("expected AI steps batched into groups of at most 3, got %v", aiGroupSizes)
	}
}

func TestCreateAllocationPlan_OrdersWorkflowsByPriorityDescending(t *testing.T) {
	reg := newTestRegistry()
	r := New(reg, complexity.New(emptyResolver{}), nil)

	low := &workflow.Workflow{
		Name:   "low",
		Policy: defaultPolicy(),
		Steps:  []workflow.Step{{ID: "s1", Actor: "code_fixers"}},
		Metadata: &workflow.Metadata{Coordination: &workflow.Coordination{Priority: 1}},
	}
	high := &workflow.Workflow{
		Name:   "high",
		Policy: defaultPolicy(),
		Steps:  []workflow.Step{{ID: "s1", Actor: "code_fixers"}},
		Metadata: &workflow.Metadata{Coordination: &workflow.Coordination{Priority: 5}},
	}
	plan := r.CreateAllocationPlan([]*workflow.Workflow{low, high}, nil)

	if len(plan.ParallelGroups) != 2 {
		t.Fatalf("expected two priority groups, got %d: %v", len(plan.ParallelGroups), plan.ParallelGroups)
	}
	if plan.ParallelGroups[0][0] != "high" {
		t.Fatalf("expected highest priority workflow first, got %v", plan.ParallelGroups)
	}
	if !plan.WithinBudget {
		t.Fatalf("expected within-budget to default true with no budget set")
	}
}

func TestRecordExecution_ImprovesDeterministicConfidenceOverTime(t *testing.T) {
	reg := newTestRegistry()
	perf := NewMemoryPerformanceStore()
	r := New(reg, complexity.New(emptyResolver{}), perf)

	for i := 0; i < 5; i++ {
		r.RecordExecution("code_fixers", 0, true, 0)
	}
	rec, ok := perf.Get("code_fixers")
	if !ok {
		t.Fatal("expected a performance record after RecordExecution")
	}
	if rec.SuccessRate != 1.0 {
		t.Fatalf("expected success rate 1.0 after all-success history, got %v", rec.SuccessRate)
	}
	if rec.TotalExecutions != 5 {
		t.Fatalf("expected 5 total executions, got %d", rec.TotalExecutions)
	}
}

// TestRoute_IsDeterministic exercises the specification's §8 property:
// routing the same (step, policy) twice against the same registry state
// yields the same routing Decision. Route is pure with respect to its
// inputs — no randomness, no wall-clock dependence — so two calls with
// nothing in between must agree on every field.
func TestRoute_IsDeterministic(t *testing.T) {
	reg := newTestRegistry()
	r := New(reg, complexity.New(emptyResolver{}), nil)

	step := workflow.Step{
		ID:    "s1",
		Name:  "refactor the module",
		Actor: "code_fixers",
		Files: workflow.FileGlobs{"src/**/*.go", "lib/**/*.go"},
		Emits: []string{"artifacts/refactor.json"},
		Retry: &workflow.Retry{MaxAttempts: 2},
		When:  `inputs.run_refactor == true`,
	}
	policy := defaultPolicy()

	first := r.Route(step, policy)
	second := r.Route(step, policy)

	if first != second {
		t.Fatalf("expected identical routing decisions, got %+v and %+v", first, second)
	}
}
