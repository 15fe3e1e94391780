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

// Package adapter defines the contract every unit of pluggable work
// (linter, test runner, git operation, LLM editor, ...) must satisfy, and
// the lazily-constructing Registry/Factory that resolves an AdapterKey to
// a live instance.
package adapter

import (
	"context"
	"time"

	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
)

// Key identifies an adapter, e.g. "code_fixers" or "ai_editor".
type Key string

// Kind distinguishes deterministic tools from AI-backed actors.
type Kind string

const (
	KindDeterministic Kind = "deterministic"
	KindAI            Kind = "ai"
)

// PerformanceProfile is read-only metadata describing how an adapter
// behaves, consulted by the Router and Complexity Analyzer.
type PerformanceProfile struct {
	ComplexityThreshold float64
	PreferredFileTypes  []string
	MaxFiles            int
	MaxFileSize         int64
	AvgExecutionTime    time.Duration
	SuccessRate         float64
	CostEfficiency      float64
	ParallelCapable     bool
	RequiresNetwork     bool
	RequiresAPIKey      bool
}

// Adapter is the uniform execution contract every unit of work exposes.
// Execute must never panic past its own boundary: internal failures are
// reported as AdapterResult{Success:false, Error:...}.
type Adapter interface {
	Name() string
	Kind() Kind
	Description() string
	PerformanceProfile() PerformanceProfile

	// Execute performs the work described by step, given the accumulated
	// execution context and a resolved file-glob string (may be empty).
	Execute(ctx context.Context, step workflow.Step, wfctx *workflow.ExecutionContext, files string) workflow.AdapterResult

	// ValidateStep is a structural pre-flight check on step.With.
	ValidateStep(step workflow.Step) bool

	// EstimateCost is a conservative upper-bound token estimate; zero for
	// deterministic adapters.
	EstimateCost(step workflow.Step) int

	// IsAvailable must be fast and side-effect free; it may consult the
	// environment (binaries on PATH, API keys, network reachability).
	IsAvailable() bool
}
