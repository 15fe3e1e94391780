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

// deterministicAlternative is the fixed, one-way mapping consulted when an
// AI actor is preferred-deterministic and a cheaper equivalent exists.
// pytest_runner has no AI counterpart so it never appears as a key.
var deterministicAlternative = map[string]string{
	"ai_editor":  "code_fixers",
	"ai_analyst": "vscode_diagnostics",
}

// aiAlternative is the reverse direction: the AI actor consulted when a
// deterministic step turns out more complex than its adapter handles well.
// pytest_runner maps to ai_editor for complex test generation, matching the
// original's "pytest_runner -> ai_editor" special case rather than a
// dedicated test-writing actor.
var aiAlternative = map[string]string{
	"code_fixers":        "ai_editor",
	"vscode_diagnostics": "ai_analyst",
	"pytest_runner":      "ai_editor",
}

// adapterBoosts nudges deterministic-confidence upward when the candidate
// adapter specializes in the step's operation type.
var adapterBoosts = map[string]map[string]float64{
	"code_fixers":         {"format": 0.2, "lint": 0.1},
	"vscode_diagnostics":  {"lint": 0.2, "edit": 0.1},
	"pytest_runner":       {"test": 0.2},
	"git_ops":             {"read": 0.2},
}

// fallbackSimpleOrder is tried in order when an unregistered or unavailable
// actor is routed and the step looks simple.
var fallbackSimpleOrder = []string{"code_fixers", "vscode_diagnostics", "pytest_runner"}
