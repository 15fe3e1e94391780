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

// Package gate implements the Verification Gate Engine: declarative,
// isolated checks run against a workflow's artifacts after execution.
// Every gate type is isolated from the others' failures; a panicking or
// erroring gate produces a failed Result rather than aborting the run.
package gate

import (
	"fmt"
)

// Config is one gate's declarative configuration, taken directly from a
// workflow document's verify.gates entries. Extra carries gate-specific
// keys (max_lines, test_report, schema, ...) the engine doesn't need to
// know about structurally.
type Config struct {
	Type  string
	Name  string
	Extra map[string]interface{}
}

// Result is the outcome of one gate check.
type Result struct {
	GateName string
	Passed   bool
	Message  string
	Details  map[string]interface{}
}

// Handler checks one gate configuration against artifactsDir and returns a
// Result. Handlers must never panic; the Engine recovers regardless, but
// a Handler that returns a clear failure Result is easier to diagnose.
type Handler interface {
	Check(cfg Config, artifactsDir string) Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(cfg Config, artifactsDir string) Result

func (f HandlerFunc) Check(cfg Config, artifactsDir string) Result { return f(cfg, artifactsDir) }

// Engine dispatches gate configs to registered Handlers by type.
type Engine struct {
	handlers map[string]Handler
}

// NewEngine returns an Engine preloaded with the five built-in gate types:
// tests_pass, diff_limits, schema_valid, yaml_schema_valid, artifact_gate.
// Callers may RegisterHandler additional "custom" gate types.
func NewEngine() *Engine {
	e := &Engine{handlers: make(map[string]Handler)}
	e.RegisterHandler("tests_pass", HandlerFunc(checkTestsPass))
	e.RegisterHandler("diff_limits", HandlerFunc(checkDiffLimits))
	e.RegisterHandler("schema_valid", HandlerFunc(checkSchemaValid))
	e.RegisterHandler("yaml_schema_valid", HandlerFunc(checkYAMLSchemaValid))
	e.RegisterHandler("artifact_gate", HandlerFunc(checkArtifactGate))
	return e
}

// RegisterHandler installs or replaces the handler for gateType, letting
// callers add "custom" gate types without modifying this package.
func (e *Engine) RegisterHandler(gateType string, h Handler) {
	e.handlers[gateType] = h
}

// CheckGates runs every config in order, isolating each from the others'
// panics and errors. The engine itself never returns an error: an unknown
// gate type or handler panic becomes a failed Result.
func (e *Engine) CheckGates(configs []Config, artifactsDir string) []Result {
	results := make([]Result, 0, len(configs))
	for _, cfg := range configs {
		results = append(results, e.checkOne(cfg, artifactsDir))
	}
	return results
}

func (e *Engine) checkOne(cfg Config, artifactsDir string) (result Result) {
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}
	handler, ok := e.handlers[cfg.Type]
	if !ok {
		return Result{GateName: name, Passed: false, Message: fmt.Sprintf("unknown gate type: %s", cfg.Type)}
	}

	defer func() {
		if r := recover(); r != nil {
			result = Result{GateName: name, Passed: false, Message: fmt.Sprintf("gate check panicked: %v", r)}
		}
	}()
	result = handler.Check(cfg, artifactsDir)
	if result.GateName == "" {
		result.GateName = name
	}
	return result
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func extraString(cfg Config, key, def string) string {
	if cfg.Extra == nil {
		return def
	}
	if v, ok := cfg.Extra[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func extraInt(cfg Config, key string, def int) int {
	if cfg.Extra == nil {
		return def
	}
	v, ok := cfg.Extra[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func extraStringSlice(cfg Config, key string) []string {
	if cfg.Extra == nil {
		return nil
	}
	v, ok := cfg.Extra[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func extraStringMap(cfg Config, key string) map[string]string {
	if cfg.Extra == nil {
		return nil
	}
	v, ok := cfg.Extra[key]
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}
