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
	"fmt"
	"sort"

	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
)

// usdPerToken is the rough conversion the original allocator uses: $0.50
// per 1,000 tokens, i.e. $0.0005 per token.
const usdPerToken = 0.0005

// CreateAllocationPlan routes every step across workflows and produces a
// combined cost estimate, optionally checked against budget (nil means no
// limit). Workflows are also grouped by coordination priority, descending,
// for callers that want to schedule higher-priority workflows first.
func (r *Router) CreateAllocationPlan(workflows []*workflow.Workflow, budget *float64) AllocationPlan {
	assignments := make(map[string]Assignment)
	total := 0

	for _, wf := range workflows {
		priority := 1
		if wf.Metadata != nil && wf.Metadata.Coordination != nil && wf.Metadata.Coordination.Priority != 0 {
			priority = wf.Metadata.Coordination.Priority
		}
		for _, step := range wf.Steps {
			decision := r.Route(step, wf.Policy)
			taskID := fmt.Sprintf("%s_%s", wf.Name, step.ID)
			assignments[taskID] = Assignment{
				Adapter:       decision.AdapterName,
				AdapterKind:   decision.AdapterKind,
				EstimatedCost: decision.EstimatedTokens,
				Priority:      priority,
				Workflow:      wf.Name,
			}
			total += decision.EstimatedTokens
		}
	}

	usdCost := float64(total) * usdPerToken
	withinBudget := true
	if budget != nil {
		withinBudget = usdCost <= *budget
	}

	return AllocationPlan{
		Assignments:         assignments,
		TotalEstimatedCost:  total,
		EstimatedUSDCost:    usdCost,
		WithinBudget:        withinBudget,
		ParallelGroups:      workflowParallelGroups(workflows),
	}
}

// workflowParallelGroups buckets workflows by coordination priority and
// returns the buckets ordered from highest priority to lowest.
func workflowParallelGroups(workflows []*workflow.Workflow) [][]string {
	byPriority := make(map[int][]string)
	for _, wf := range workflows {
		priority := 1
		if wf.Metadata != nil && wf.Metadata.Coordination != nil && wf.Metadata.Coordination.Priority != 0 {
			priority = wf.Metadata.Coordination.Priority
		}
		byPriority[priority] = append(byPriority[priority], wf.Name)
	}
	priorities := make([]int, 0, len(byPriority))
	for p := range byPriority {
		priorities = append(priorities, p)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(priorities)))

	groups := make([][]string, 0, len(priorities))
	for _, p := range priorities {
		groups = append(groups, byPriority[p])
	}
	return groups
}
