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

// Package complexity implements the pure scoring function that estimates
// how much work a step represents, used by the Router to decide between
// deterministic and AI-backed adapters.
package complexity

import (
	"strings"

	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
)

// samplePerPattern sets the cap scoreFileSize applies when estimating
// total size: the sizes of at most samplePerPattern*4 (20) resolved files
// are summed. The cap applies to the resolver's combined output, not to
// each glob pattern, and the sum is not scaled up to the full file count.
const samplePerPattern = 5

// FileResolver expands a step's file globs into concrete files. The
// default implementation walks the local filesystem with doublestar;
// tests substitute an in-memory resolver.
type FileResolver interface {
	Resolve(patterns []string) []FileInfo
}

// FileInfo is the minimal shape the analyzer needs about a resolved file.
type FileInfo struct {
	Path string
	Size int64
}

// Factors is the per-factor breakdown behind the overall score.
type Factors struct {
	FileCount     float64
	FileSize      float64
	OperationType float64
	Configuration float64
	ContextDeps   float64
}

// Analysis is the result of analyzing one step.
type Analysis struct {
	Score                  float64
	Factors                Factors
	FileCount              int
	EstimatedBytes          int64
	OperationType          string
	DeterministicConfidence float64
}

// Analyzer is a pure function over a step; it holds no mutable state of
// its own beyond the injected FileResolver.
type Analyzer struct {
	resolver FileResolver
}

// New returns an Analyzer that resolves globs with resolver.
func New(resolver FileResolver) *Analyzer {
	return &Analyzer{resolver: resolver}
}

// Analyze scores step and reports the factor breakdown.
func (a *Analyzer) Analyze(step workflow.Step) Analysis {
	files := a.resolver.Resolve([]string(step.Files))

	fileCountFactor, fileCount := scoreFileCount(files)
	fileSizeFactor, totalBytes := scoreFileSize(files)
	opType, opFactor := scoreOperationType(step)
	configFactor := scoreConfiguration(step)
	contextFactor := scoreContextDeps(step)

	score := fileCountFactor + fileSizeFactor + opFactor + configFactor + contextFactor
	if score > 1.0 {
		score = 1.0
	}

	confidence := 1.0 - score
	if confidence < 0 {
		confidence = 0
	}
	if opType == "read" || opType == "format" || opType == "lint" {
		confidence += 0.2
	}
	if fileCount <= 5 && totalBytes < 50*1024 {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Analysis{
		Score: score,
		Factors: Factors{
			FileCount:     fileCountFactor,
			FileSize:      fileSizeFactor,
			OperationType: opFactor,
			Configuration: configFactor,
			ContextDeps:   contextFactor,
		},
		FileCount:               fileCount,
		EstimatedBytes:          totalBytes,
		OperationType:           opType,
		DeterministicConfidence: confidence,
	}
}

func scoreFileCount(files []FileInfo) (factor float64, count int) {
	count = len(files)
	switch {
	case count == 0:
		return 0.1, count
	case count <= 3:
		return 0.2, count
	case count <= 10:
		return 0.3, count
	default:
		return 0.4, count
	}
}

func scoreFileSize(files []FileInfo) (factor float64, totalBytes int64) {
	// Sum the sizes of at most samplePerPattern*4 files from the
	// resolver's output; files past that cap are not counted.
	limit := len(files)
	if limit > samplePerPattern*4 {
		limit = samplePerPattern * 4
	}
	for _, f := range files[:limit] {
		totalBytes += f.Size
	}
	switch {
	case totalBytes < 10*1024:
		return 0.1, totalBytes
	case totalBytes < 100*1024:
		return 0.2, totalBytes
	default:
		return 0.3, totalBytes
	}
}

func scoreOperationType(step workflow.Step) (opType string, factor float64) {
	haystack := strings.ToLower(step.Actor + " " + step.Name)
	switch {
	case containsAny(haystack, "refactor", "generate"):
		return "refactor", 0.3
	case containsAny(haystack, "edit", "analyze", "analysis"):
		return "edit", 0.25
	case containsAny(haystack, "test"):
		return "test", 0.2
	case containsAny(haystack, "lint"):
		return "lint", 0.15
	case containsAny(haystack, "read", "format"):
		return "read", 0.1
	default:
		return "unknown", 0.2
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func scoreConfiguration(step workflow.Step) float64 {
	if len(step.With) == 0 {
		return 0.05
	}
	nested := 0
	for _, v := range step.With {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			nested++
		}
	}
	switch {
	case len(step.With) > 5 || nested > 1:
		return 0.2
	case len(step.With) > 2 || nested > 0:
		return 0.12
	default:
		return 0.08
	}
}

func scoreContextDeps(step workflow.Step) float64 {
	factor := 0.0
	if step.Retry != nil {
		factor += 0.1
	}
	if step.When != "" {
		factor += 0.1
	}
	if factor > 0.2 {
		factor = 0.2
	}
	return factor
}
