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

import "time"

// DailyUsage aggregates one day's recorded operations.
type DailyUsage struct {
	Date           time.Time
	TotalTokens    int
	TotalCost      float64
	Operations     []Record
	OperationCount int
}

// PhaseUsage aggregates the records tagged with one phase id.
type PhaseUsage struct {
	Tokens     int
	Cost       float64
	Operations int
}

// WorkflowUsage aggregates the records belonging to one workflow within a
// coordination summary.
type WorkflowUsage struct {
	TotalTokens     int
	TotalCost       float64
	OperationsCount int
	Phases          map[string]PhaseUsage
}

// CoordinationSummary aggregates every workflow's usage within one
// coordination run.
type CoordinationSummary struct {
	CoordinationID         string
	TotalCost              float64
	TotalTokens            int
	TotalOperations        int
	Workflows              map[string]WorkflowUsage
	AverageCostPerWorkflow float64
	Timestamp              time.Time
}

// WorkflowCostSummary aggregates one workflow's usage, optionally scoped
// to a single coordination run.
type WorkflowCostSummary struct {
	WorkflowID      string
	TotalTokens     int
	TotalCost       float64
	OperationsCount int
	SuccessRate     float64
	Phases          map[string]PhaseUsage
}

// WorkflowBudgetStatus is one workflow's standing within a
// CoordinationBudgetStatus.
type WorkflowBudgetStatus struct {
	Allocated   float64
	Used        float64
	Remaining   float64
	Utilization float64
	WithinBudget bool
}

// CoordinationBudgetStatus is the result of checking a coordination run's
// spend against its CoordinationBudget.
type CoordinationBudgetStatus struct {
	CoordinationID     string
	TotalBudget        float64
	EmergencyReserve   float64
	AvailableBudget    float64
	UsedBudget         float64
	RemainingBudget    float64
	BudgetUtilization  float64
	WithinBudget       bool
	EmergencyTriggered bool
	Workflows          map[string]WorkflowBudgetStatus
}
