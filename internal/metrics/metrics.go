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

// Package metrics registers the orchestrator core's Prometheus
// instrumentation against the default registry, following the same
// promauto package-var pattern the teacher uses throughout its own
// action/controller packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StepDuration observes how long a step took to execute, labeled by
	// the adapter that actually ran it and whether it succeeded.
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_step_duration_seconds",
			Help:    "Duration of workflow step execution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"adapter", "status"},
	)

	// StepTokens observes tokens consumed per step, labeled by adapter.
	StepTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_step_tokens",
			Help:    "Tokens consumed per workflow step",
			Buckets: prometheus.ExponentialBuckets(16, 4, 8),
		},
		[]string{"adapter"},
	)

	// WorkflowsTotal counts completed workflow runs by outcome.
	WorkflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_workflows_total",
			Help: "Total workflow runs by outcome",
		},
		[]string{"outcome"},
	)

	// GateChecksTotal counts verification gate checks by type and outcome.
	GateChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_gate_checks_total",
			Help: "Total verification gate checks by gate type and outcome",
		},
		[]string{"gate_type", "outcome"},
	)

	// RoutingFallbacksTotal counts every time the Router substituted an
	// adapter other than the step's declared actor.
	RoutingFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_routing_fallbacks_total",
		Help: "Total step executions routed to a fallback adapter",
	})
)

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// ObserveStep records one step execution's duration and token usage.
func ObserveStep(adapterName string, seconds float64, tokensUsed int, success bool) {
	StepDuration.WithLabelValues(adapterName, outcome(success)).Observe(seconds)
	if tokensUsed > 0 {
		StepTokens.WithLabelValues(adapterName).Observe(float64(tokensUsed))
	}
}

// ObserveWorkflow records one completed workflow run.
func ObserveWorkflow(success bool) {
	WorkflowsTotal.WithLabelValues(outcome(success)).Inc()
}

// ObserveGate records one gate check's outcome.
func ObserveGate(gateType string, passed bool) {
	GateChecksTotal.WithLabelValues(gateType, outcome(passed)).Inc()
}
