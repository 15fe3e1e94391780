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
	"github.com/flowctl/orchestrator/internal/orchestrator/adapter"
	"github.com/flowctl/orchestrator/internal/orchestrator/scope"
	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
)

// aiBatchSize caps how many AI-routed steps share one execution group, so
// a single workflow never saturates the AI provider's rate limits.
const aiBatchSize = 3

// PlanParallel routes every step in steps and groups them for concurrent
// execution: file-scope conflicts split conflicting steps into their own
// singleton groups, while a conflict-free batch groups all deterministic
// steps together and chunks AI steps into batches of aiBatchSize.
func (r *Router) PlanParallel(steps []workflow.Step, policy workflow.Policy) ParallelPlan {
	decisions := make(map[string]Decision, len(steps))
	order := make([]string, 0, len(steps))
	var claims []scope.Claim
	total := 0

	for _, step := range steps {
		decision := r.Route(step, policy)
		decisions[step.ID] = decision
		order = append(order, step.ID)
		total += decision.EstimatedTokens

		if len(step.Files) == 0 {
			continue
		}
		mode := scope.Shared
		if step.ScopeMode == workflow.ScopeExclusive {
			mode = scope.Exclusive
		}
		claims = append(claims, scope.Claim{
			OwnerID:  step.ID,
			Patterns: []string(step.Files),
			Mode:     mode,
		})
	}

	conflicts := scope.DetectConflicts(claims)
	groups := executionGroups(order, decisions, conflicts)

	return ParallelPlan{
		Decisions:          decisions,
		ExecutionGroups:    groups,
		Conflicts:          conflicts,
		TotalEstimatedCost: total,
		ResourceAllocation: resourceAllocation(order, decisions),
	}
}

// resourceAllocation inverts the per-step routing decisions into a
// per-adapter view: which steps ended up assigned to each adapter.
func resourceAllocation(order []string, decisions map[string]Decision) map[string][]string {
	alloc := make(map[string][]string)
	for _, id := range order {
		name := decisions[id].AdapterName
		alloc[name] = append(alloc[name], id)
	}
	return alloc
}

func executionGroups(order []string, decisions map[string]Decision, conflicts []scope.Conflict) [][]string {
	if len(conflicts) == 0 {
		var deterministic, ai []string
		for _, id := range order {
			if decisions[id].AdapterKind == adapter.KindDeterministic {
				deterministic = append(deterministic, id)
			} else {
				ai = append(ai, id)
			}
		}
		var groups [][]string
		if len(deterministic) > 0 {
			groups = append(groups, deterministic)
		}
		for len(ai) > 0 {
			end := aiBatchSize
			if end > len(ai) {
				end = len(ai)
			}
			groups = append(groups, ai[:end])
			ai = ai[end:]
		}
		return groups
	}

	conflicted := make(map[string]bool)
	for _, c := range conflicts {
		for _, id := range c.OwnerIDs {
			conflicted[id] = true
		}
	}

	var groups [][]string
	var clean []string
	for _, id := range order {
		if !conflicted[id] {
			clean = append(clean, id)
		}
	}
	if len(clean) > 0 {
		groups = append(groups, clean)
	}
	for _, id := range order {
		if conflicted[id] {
			groups = append(groups, []string{id})
		}
	}
	return groups
}
