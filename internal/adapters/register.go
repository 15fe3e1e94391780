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

package adapters

import "github.com/flowctl/orchestrator/internal/orchestrator/adapter"

// RegisterDefaults wires every reference adapter into registry under its
// conventional AdapterKey. Shell-backed adapters are registered as lazy
// constructors so a missing binary only surfaces as "unavailable", never
// as a startup failure.
func RegisterDefaults(registry *adapter.Registry) {
	registry.RegisterConstructor("code_fixers", adapter.Descriptor{Kind: adapter.KindDeterministic}, func() (adapter.Adapter, error) {
		return NewCodeFixers()
	})
	registry.RegisterConstructor("vscode_diagnostics", adapter.Descriptor{Kind: adapter.KindDeterministic}, func() (adapter.Adapter, error) {
		return NewVSCodeDiagnostics()
	})
	registry.RegisterConstructor("pytest_runner", adapter.Descriptor{Kind: adapter.KindDeterministic}, func() (adapter.Adapter, error) {
		return NewPytestRunner()
	})
	registry.RegisterConstructor("git_ops", adapter.Descriptor{Kind: adapter.KindDeterministic}, func() (adapter.Adapter, error) {
		return NewGitOps()
	})
	registry.RegisterInstance("ai_editor", NewAIEditor())
	registry.RegisterInstance("ai_analyst", NewAIAnalyst())
}
