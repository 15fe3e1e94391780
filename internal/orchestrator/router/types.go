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

// Package router selects which adapter runs a step. It consumes the
// adapter Registry, the Complexity Analyzer, and the File-Scope Manager,
// and produces either a single Decision or a parallel execution plan for
// a batch of steps. Routing never raises: unknown or unavailable actors
// fall back to a decision with explicit reasoning attached.
package router

import (
	"time"

	"github.com/flowctl/orchestrator/internal/orchestrator/adapter"
	"github.com/flowctl/orchestrator/internal/orchestrator/scope"
)

// Decision is the outcome of routing one step.
type Decision struct {
	StepID          string
	AdapterName     string
	AdapterKind     adapter.Kind
	Reasoning       string
	EstimatedTokens int
	ComplexityScore float64
	Confidence      float64
}

// PerformanceRecord is the rolling per-adapter execution history consulted
// by the Router to weight confidence and blend token estimates.
type PerformanceRecord struct {
	TotalExecutions      int
	SuccessfulExecutions int
	AverageTime          time.Duration
	AverageTokens        float64
	SuccessRate          float64
}

// PerformanceStore is the injectable persistence port behind the Router's
// performance-history map. Losing it never changes correctness: a missing
// or empty store simply means no history is available yet.
type PerformanceStore interface {
	Get(adapterName string) (PerformanceRecord, bool)
	Update(adapterName string, rec PerformanceRecord) error
	All() map[string]PerformanceRecord
}

// ParallelPlan is the result of routing a batch of steps for concurrent
// execution.
type ParallelPlan struct {
	Decisions          map[string]Decision
	ExecutionGroups    [][]string
	Conflicts          []scope.Conflict
	TotalEstimatedCost int
	// ResourceAllocation maps an adapter name to the ids of every step
	// routed to it, mirroring the original planner's "adapter_name -> step
	// indices" view of the same batch.
	ResourceAllocation map[string][]string
}

// Assignment is what the cross-workflow allocator records for one task:
// a workflow step or phase task routed to an adapter.
type Assignment struct {
	Adapter       string
	AdapterKind   adapter.Kind
	EstimatedCost int
	Priority      int
	Workflow      string
}

// AllocationPlan is the cross-workflow allocation result, keyed by a
// synthetic "workflow_stepID" task id so callers can trace a cost back to
// its source step without ambiguity across workflows.
type AllocationPlan struct {
	Assignments        map[string]Assignment
	TotalEstimatedCost int
	EstimatedUSDCost    float64
	WithinBudget        bool
	ParallelGroups      [][]string
}
