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
	"strings"
	"time"

	"github.com/flowctl/orchestrator/internal/orchestrator/adapter"
	"github.com/flowctl/orchestrator/internal/orchestrator/complexity"
	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
)

// Router picks an adapter for a step given the registry's availability,
// the step's complexity, and the workflow's routing policy. It never
// raises: an unregistered or unavailable actor is routed through a
// complexity-based fallback instead of failing the caller.
type Router struct {
	registry   *adapter.Registry
	analyzer   *complexity.Analyzer
	perfStore  PerformanceStore
}

// New returns a Router. perf may be nil, in which case a MemoryPerformanceStore
// is used so confidence boosts from history are simply absent until one is
// supplied.
func New(registry *adapter.Registry, analyzer *complexity.Analyzer, perf PerformanceStore) *Router {
	if perf == nil {
		perf = NewMemoryPerformanceStore()
	}
	return &Router{registry: registry, analyzer: analyzer, perfStore: perf}
}

// RecordExecution feeds one completed step's outcome back into the
// performance history the Router consults for confidence boosts.
func (r *Router) RecordExecution(adapterName string, execTime time.Duration, success bool, tokensUsed int) {
	updatePerformance(r.perfStore, adapterName, execTime, success, tokensUsed)
}

// Route decides which adapter should execute step under policy.
func (r *Router) Route(step workflow.Step, policy workflow.Policy) Decision {
	analysis := r.analyzer.Analyze(step)

	actor := step.Actor
	if actor == "" {
		actor = "unknown"
	}

	if !r.registry.Has(adapter.Key(actor)) || !r.registry.Available(adapter.Key(actor)) {
		return r.routeWithComplexityFallback(step.ID, analysis, policy)
	}

	a, err := r.registry.Get(adapter.Key(actor))
	if err != nil {
		return r.routeWithComplexityFallback(step.ID, analysis, policy)
	}
	kind := a.Kind()

	preferDeterministic := policy.PreferDeterministic
	threshold := policy.ComplexityThreshold
	if threshold == 0 {
		threshold = 0.7
	}

	if kind == adapter.KindAI && preferDeterministic {
		lowRisk := analysis.Score <= threshold
		if alt, ok := deterministicAlternative[actor]; ok && lowRisk && r.registry.Available(adapter.Key(alt)) {
			detConf := r.calculateDeterministicConfidence(analysis, alt)
			if detConf > 0.6 && analysis.Score <= threshold {
				return Decision{
					StepID:      step.ID,
					AdapterName: alt,
					AdapterKind: adapter.KindDeterministic,
					Reasoning: fmt.Sprintf(
						"prefer deterministic: routed %s -> %s; complexity: %.2f",
						actor, alt, analysis.Score,
					),
					EstimatedTokens: 0,
					ComplexityScore: analysis.Score,
					Confidence:      detConf,
				}
			}
		}
	}

	if kind == adapter.KindDeterministic && analysis.Score > threshold {
		detConf := r.calculateDeterministicConfidence(analysis, actor)
		if alt, ok := aiAlternative[actor]; ok && detConf < 0.5 && r.registry.Available(adapter.Key(alt)) {
			tokens := r.upgradeTokenEstimate(analysis, alt)
			return Decision{
				StepID:      step.ID,
				AdapterName: alt,
				AdapterKind: adapter.KindAI,
				Reasoning: fmt.Sprintf(
					"upgrade on complexity: routed %s -> %s; complexity: %.2f, confidence: %.2f",
					actor, alt, analysis.Score, detConf,
				),
				EstimatedTokens: tokens,
				ComplexityScore: analysis.Score,
				Confidence:      0.7,
			}
		}
	}

	estimatedTokens := 0
	if kind == adapter.KindAI {
		estimatedTokens = r.upgradeTokenEstimate(analysis, actor)
	}
	return Decision{
		StepID:          step.ID,
		AdapterName:     actor,
		AdapterKind:     kind,
		Reasoning:       fmt.Sprintf("direct route to %s", actor),
		EstimatedTokens: estimatedTokens,
		ComplexityScore: analysis.Score,
		Confidence:      1.0,
	}
}

// iptPreferredOrder is tried, in order, when RouteWithBudget is asked to
// route a step tagged with the "ipt" role (interactive-planning-tool:
// prefer an AI analyst/editor over a deterministic tool).
var iptPreferredOrder = []string{"ai_analyst", "ai_editor"}

// wtPreferredOrder is the default ("wt", work-tool) preference order: the
// deterministic trio, cheapest-first in the common case.
var wtPreferredOrder = []string{"code_fixers", "pytest_runner", "vscode_diagnostics"}

// RouteWithBudget routes step under a hard remaining-token budget rather
// than the usual policy-driven path: it walks role's preferred adapter
// list in order and returns the first whose EstimateCost fits within
// budgetRemaining. If nothing in the preferred list fits, it falls back to
// the cheapest available deterministic adapter in the registry; if the
// registry has no deterministic adapter available either, it falls back
// to ordinary policy-based routing via Route.
func (r *Router) RouteWithBudget(step workflow.Step, role string, budgetRemaining int) Decision {
	preferred := wtPreferredOrder
	roleLower := strings.ToLower(role)
	if roleLower == "ipt" {
		preferred = iptPreferredOrder
	}

	for _, name := range preferred {
		if !r.registry.Available(adapter.Key(name)) {
			continue
		}
		a, err := r.registry.Get(adapter.Key(name))
		if err != nil {
			continue
		}
		est := a.EstimateCost(step)
		if est <= budgetRemaining {
			return Decision{
				StepID:      step.ID,
				AdapterName: name,
				AdapterKind: a.Kind(),
				Reasoning:   fmt.Sprintf("selected %s for role=%s within budget", name, roleLower),
				EstimatedTokens: est,
				ComplexityScore: 0,
				Confidence:      1.0,
			}
		}
	}

	if name, cost, ok := r.cheapestAvailableDeterministic(step); ok {
		return Decision{
			StepID:          step.ID,
			AdapterName:     name,
			AdapterKind:     adapter.KindDeterministic,
			Reasoning:       fmt.Sprintf("budget exceeded; using cheapest deterministic: %s", name),
			EstimatedTokens: cost,
			Confidence:      1.0,
		}
	}

	return r.Route(step, workflow.Policy{})
}

// cheapestAvailableDeterministic scans every registered deterministic
// adapter and returns the one with the lowest EstimateCost for step.
func (r *Router) cheapestAvailableDeterministic(step workflow.Step) (string, int, bool) {
	var bestName string
	var bestCost int
	found := false
	for _, d := range r.registry.List() {
		if d.Kind != adapter.KindDeterministic {
			continue
		}
		if !r.registry.Available(d.Key) {
			continue
		}
		a, err := r.registry.Get(d.Key)
		if err != nil {
			continue
		}
		cost := a.EstimateCost(step)
		if !found || cost < bestCost {
			bestName = string(d.Key)
			bestCost = cost
			found = true
		}
	}
	return bestName, bestCost, found
}

// upgradeTokenEstimate is the richer token projection used once an AI
// adapter is actually chosen to run a step: base(1000) scaled by
// complexity score, resolved file count, and estimated byte volume, then
// blended 50/50 with adapterName's rolling historical average when one
// exists.
func (r *Router) upgradeTokenEstimate(analysis complexity.Analysis, adapterName string) int {
	const base = 1000.0
	estimate := base * (1 + analysis.Score) * (1 + float64(analysis.FileCount)*0.1) *
		(1 + float64(analysis.EstimatedBytes)/(100*1024))

	if rec, ok := r.perfStore.Get(adapterName); ok && rec.AverageTokens > 0 {
		estimate = 0.5*estimate + 0.5*rec.AverageTokens
	}
	return int(estimate)
}

// routeWithComplexityFallback is used when the requested actor is
// unregistered or unavailable: simple steps fall through to the first
// available deterministic adapter in fallbackSimpleOrder, everything else
// falls through to ai_editor.
func (r *Router) routeWithComplexityFallback(stepID string, analysis complexity.Analysis, policy workflow.Policy) Decision {
	if analysis.Score < 0.4 {
		for _, name := range fallbackSimpleOrder {
			if r.registry.Available(adapter.Key(name)) {
				return Decision{
					StepID:      stepID,
					AdapterName: name,
					AdapterKind: adapter.KindDeterministic,
					Reasoning: fmt.Sprintf(
						"fallback to %s for simple task (complexity: %.2f)", name, analysis.Score,
					),
					ComplexityScore: analysis.Score,
					Confidence:      0.6,
				}
			}
		}
	}
	tokens := aiTokenEstimate(analysis.Score)
	return Decision{
		StepID:      stepID,
		AdapterName: "ai_editor",
		AdapterKind: adapter.KindAI,
		Reasoning: fmt.Sprintf(
			"AI fallback for complex task (complexity: %.2f)", analysis.Score,
		),
		EstimatedTokens: tokens,
		ComplexityScore: analysis.Score,
		Confidence:      0.7,
	}
}

// calculateDeterministicConfidence blends the analyzer's base confidence
// with an operation-type boost specific to the candidate adapter and a
// penalty drawn from that adapter's historical success rate.
func (r *Router) calculateDeterministicConfidence(analysis complexity.Analysis, adapterName string) float64 {
	confidence := analysis.DeterministicConfidence
	if boosts, ok := adapterBoosts[adapterName]; ok {
		confidence += boosts[analysis.OperationType]
	}
	if rec, ok := r.perfStore.Get(adapterName); ok {
		confidence *= rec.SuccessRate
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// aiTokenEstimate is the coarse pre-execution estimate used for routing
// decisions only: a 500-token base plus up to 1500 more scaled by
// complexity score. The adapter's own EstimateCost is authoritative.
func aiTokenEstimate(score float64) int {
	return int(500 + score*1500)
}
