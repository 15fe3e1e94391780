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

package cost

import (
	"strings"
	"time"

	"github.com/flowctl/orchestrator/internal/orchestrator/costcalc"
	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
)

// aiActorNames lists bare actor names treated as AI-backed even without
// the ai_ prefix, matching the original estimator's allowance for direct
// provider actors.
var aiActorNames = map[string]bool{"claude": true, "gemini": true, "aider": true}

// Tracker is the Cost Tracker: it prices and records token usage through
// Store, and evaluates budgets against the accumulated history. Unlike
// the teacher's package-level singleton, a Tracker is always constructed
// explicitly and passed to whatever needs it.
type Tracker struct {
	store   Store
	pricing *costcalc.Registry
	now     func() time.Time
}

// New returns a Tracker backed by store, pricing usage with registry (nil
// is fine: every lookup falls through to costcalc's fixed fallback table).
func New(store Store, registry *costcalc.Registry) *Tracker {
	if registry == nil {
		registry = costcalc.NewRegistry()
	}
	return &Tracker{store: store, pricing: registry, now: time.Now}
}

// RecordUsage prices tokensUsed at model's per-token rate, persists the
// record, and returns the estimated cost.
func (t *Tracker) RecordUsage(operation string, tokensUsed int, model string, success bool, workflowID, coordinationID, phaseID, adapterName string) (float64, error) {
	if model == "" {
		model = "unknown"
	}
	cost := float64(tokensUsed) * t.pricing.PerToken(model)
	rec := Record{
		Timestamp:      t.now(),
		Operation:      operation,
		TokensUsed:     tokensUsed,
		EstimatedCost:  cost,
		Model:          model,
		Success:        success,
		WorkflowID:     workflowID,
		CoordinationID: coordinationID,
		PhaseID:        phaseID,
		AdapterName:    adapterName,
	}
	if err := t.store.Save(rec); err != nil {
		return cost, err
	}
	return cost, nil
}

// GetDailyUsage aggregates every record from day (today if zero).
func (t *Tracker) GetDailyUsage(day time.Time) (DailyUsage, error) {
	if day.IsZero() {
		day = t.now()
	}
	records, err := t.store.IterByDate(day)
	if err != nil {
		return DailyUsage{}, err
	}
	usage := DailyUsage{Date: day, Operations: records, OperationCount: len(records)}
	for _, r := range records {
		usage.TotalTokens += r.TokensUsed
		usage.TotalCost += r.EstimatedCost
	}
	return usage, nil
}

// CheckBudgetLimits projects tokensToSpend onto today's usage and reports
// whether the result stays within limit. A nil limit uses BudgetLimit{}'s
// zero values, meaning any nonzero spend exceeds the daily limits.
func (t *Tracker) CheckBudgetLimits(limit *BudgetLimit, tokensToSpend int) (BudgetCheckResult, error) {
	if limit == nil {
		limit = &BudgetLimit{}
	}
	daily, err := t.GetDailyUsage(time.Time{})
	if err != nil {
		return BudgetCheckResult{}, err
	}

	projectedTokens := daily.TotalTokens + tokensToSpend
	projectedCost := daily.TotalCost + float64(tokensToSpend)*0.00001

	return BudgetCheckResult{
		WithinDailyTokenLimit: projectedTokens <= limit.DailyTokenLimit,
		WithinDailyCostLimit:  projectedCost <= limit.DailyCostLimit,
		WithinWorkflowLimit:   tokensToSpend <= limit.PerWorkflowLimit,
		WarnIfOver:            projectedCost >= limit.DailyCostLimit*limit.WarnThreshold,
	}, nil
}

// AllocateBudget splits a CoordinationBudget across workflows, weighting
// each by priority_multiplier * complexity_factor and capping every share
// at PerWorkflowBudget. When every workflow scores zero the remaining
// budget is split evenly instead.
func (t *Tracker) AllocateBudget(workflows []*workflow.Workflow, budget CoordinationBudget) map[string]float64 {
	remaining := budget.TotalBudget - budget.EmergencyReserve

	scores := make(map[string]float64, len(workflows))
	total := 0.0
	for _, wf := range workflows {
		priority := 2
		if wf.Metadata != nil && wf.Metadata.Coordination != nil && wf.Metadata.Coordination.Priority != 0 {
			priority = wf.Metadata.Coordination.Priority
		}
		score := budget.multiplierFor(priority) * estimateWorkflowComplexity(wf)
		scores[wf.Name] = score
		total += score
	}

	allocations := make(map[string]float64, len(workflows))
	if total <= 0 {
		per := remaining / float64(max(len(workflows), 1))
		for _, wf := range workflows {
			allocations[wf.Name] = per
		}
		return allocations
	}
	for name, score := range scores {
		share := (score / total) * remaining
		if share > budget.PerWorkflowBudget {
			share = budget.PerWorkflowBudget
		}
		allocations[name] = share
	}
	return allocations
}

// estimateWorkflowComplexity mirrors the AllocationInput.complexityFactor
// formula but is derived directly from a workflow.Workflow so callers
// don't have to hand-build an AllocationInput for every allocation pass.
func estimateWorkflowComplexity(wf *workflow.Workflow) float64 {
	complexity := 1.0
	complexity += float64(len(wf.Steps)) * 0.1

	aiSteps := 0
	for _, step := range wf.Steps {
		if isAIActor(step.Actor) {
			aiSteps++
		}
	}
	complexity += float64(aiSteps) * 0.3

	if wf.Metadata != nil && wf.Metadata.Coordination != nil && len(wf.Metadata.Coordination.FileScope) > 10 {
		complexity += 0.4
	}
	return complexity
}

func isAIActor(actor string) bool {
	if strings.HasPrefix(actor, "ai_") {
		return true
	}
	return aiActorNames[actor]
}

// GetCoordinationSummary aggregates every record tagged with
// coordinationID, grouped by workflow and, within each workflow, by phase.
func (t *Tracker) GetCoordinationSummary(coordinationID string) (CoordinationSummary, error) {
	records, err := t.store.IterByCoordination(coordinationID)
	if err != nil {
		return CoordinationSummary{}, err
	}

	summary := CoordinationSummary{
		CoordinationID: coordinationID,
		Workflows:      make(map[string]WorkflowUsage),
		Timestamp:      t.now(),
	}
	for _, rec := range records {
		workflowID := rec.WorkflowID
		if workflowID == "" {
			workflowID = "unknown"
		}
		wf, ok := summary.Workflows[workflowID]
		if !ok {
			wf = WorkflowUsage{Phases: make(map[string]PhaseUsage)}
		}
		wf.TotalTokens += rec.TokensUsed
		wf.TotalCost += rec.EstimatedCost
		wf.OperationsCount++
		if rec.PhaseID != "" {
			phase := wf.Phases[rec.PhaseID]
			phase.Tokens += rec.TokensUsed
			phase.Cost += rec.EstimatedCost
			phase.Operations++
			wf.Phases[rec.PhaseID] = phase
		}
		summary.Workflows[workflowID] = wf

		summary.TotalCost += rec.EstimatedCost
		summary.TotalTokens += rec.TokensUsed
		summary.TotalOperations++
	}
	summary.AverageCostPerWorkflow = summary.TotalCost / float64(max(len(summary.Workflows), 1))
	return summary, nil
}

// GetWorkflowCostSummary aggregates every record for workflowID, optionally
// narrowed to a single coordinationID.
func (t *Tracker) GetWorkflowCostSummary(workflowID, coordinationID string) (WorkflowCostSummary, error) {
	records, err := t.store.IterAll()
	if err != nil {
		return WorkflowCostSummary{}, err
	}

	summary := WorkflowCostSummary{WorkflowID: workflowID, Phases: make(map[string]PhaseUsage)}
	successfulOps := 0
	totalOps := 0
	for _, rec := range records {
		if rec.WorkflowID != workflowID {
			continue
		}
		if coordinationID != "" && rec.CoordinationID != coordinationID {
			continue
		}
		summary.TotalTokens += rec.TokensUsed
		summary.TotalCost += rec.EstimatedCost
		totalOps++
		if rec.Success {
			successfulOps++
		}
		if rec.PhaseID != "" {
			phase := summary.Phases[rec.PhaseID]
			phase.Tokens += rec.TokensUsed
			phase.Cost += rec.EstimatedCost
			phase.Operations++
			summary.Phases[rec.PhaseID] = phase
		}
	}
	summary.OperationsCount = totalOps
	summary.SuccessRate = float64(successfulOps) / float64(max(totalOps, 1))
	return summary, nil
}

// CheckCoordinationBudget evaluates a coordination run's accumulated spend
// against its CoordinationBudget, per-workflow.
func (t *Tracker) CheckCoordinationBudget(coordinationID string, budget CoordinationBudget, workflowAllocations map[string]float64) (CoordinationBudgetStatus, error) {
	summary, err := t.GetCoordinationSummary(coordinationID)
	if err != nil {
		return CoordinationBudgetStatus{}, err
	}

	const epsilon = 1e-9
	status := CoordinationBudgetStatus{
		CoordinationID:     coordinationID,
		TotalBudget:        budget.TotalBudget,
		EmergencyReserve:   budget.EmergencyReserve,
		AvailableBudget:    budget.TotalBudget - budget.EmergencyReserve,
		UsedBudget:         summary.TotalCost,
		RemainingBudget:    budget.TotalBudget - summary.TotalCost,
		BudgetUtilization:  summary.TotalCost / max(budget.TotalBudget, epsilon),
		WithinBudget:       summary.TotalCost <= budget.TotalBudget,
		EmergencyTriggered: summary.TotalCost > (budget.TotalBudget - budget.EmergencyReserve),
		Workflows:          make(map[string]WorkflowBudgetStatus, len(summary.Workflows)),
	}
	for wfID, usage := range summary.Workflows {
		allocated := budget.PerWorkflowBudget
		if a, ok := workflowAllocations[wfID]; ok {
			allocated = a
		}
		utilization := 0.0
		if allocated > 0 {
			utilization = usage.TotalCost / allocated
		}
		status.Workflows[wfID] = WorkflowBudgetStatus{
			Allocated:    allocated,
			Used:         usage.TotalCost,
			Remaining:    allocated - usage.TotalCost,
			Utilization:  utilization,
			WithinBudget: usage.TotalCost <= allocated,
		}
	}
	return status, nil
}

// OptimizeRemainingAllocation splits whatever budget remains in a
// coordination run evenly across remainingWorkflows, falling back to an
// even split of the emergency reserve once the normal remaining budget is
// exhausted.
func (t *Tracker) OptimizeRemainingAllocation(coordinationID string, remainingWorkflows []string, budget CoordinationBudget) (map[string]float64, error) {
	summary, err := t.GetCoordinationSummary(coordinationID)
	if err != nil {
		return nil, err
	}
	remaining := budget.TotalBudget - summary.TotalCost
	count := float64(max(len(remainingWorkflows), 1))

	allocations := make(map[string]float64, len(remainingWorkflows))
	if remaining <= budget.EmergencyReserve {
		per := budget.EmergencyReserve / count
		for _, id := range remainingWorkflows {
			allocations[id] = per
		}
		return allocations, nil
	}
	available := remaining - budget.EmergencyReserve
	per := available / count
	if per > budget.PerWorkflowBudget {
		per = budget.PerWorkflowBudget
	}
	for _, id := range remainingWorkflows {
		allocations[id] = per
	}
	return allocations, nil
}

