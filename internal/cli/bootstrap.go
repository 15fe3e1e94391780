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

package cli

import (
	"path/filepath"

	"github.com/flowctl/orchestrator/internal/adapters"
	"github.com/flowctl/orchestrator/internal/config"
	"github.com/flowctl/orchestrator/internal/orchestrator/adapter"
	"github.com/flowctl/orchestrator/internal/orchestrator/complexity"
	"github.com/flowctl/orchestrator/internal/orchestrator/coordinator"
	"github.com/flowctl/orchestrator/internal/orchestrator/cost"
	"github.com/flowctl/orchestrator/internal/orchestrator/costcalc"
	"github.com/flowctl/orchestrator/internal/orchestrator/executor"
	"github.com/flowctl/orchestrator/internal/orchestrator/gate"
	"github.com/flowctl/orchestrator/internal/orchestrator/router"
	"github.com/flowctl/orchestrator/internal/orchestrator/workflow/docschema"
)

// registerBuiltinAdapters constructs every reference adapter this module
// ships with and registers each instance on factory under its own name,
// returning the first constructor error it meets.
func registerBuiltinAdapters(factory *adapter.Factory) error {
	codeFixers, err := adapters.NewCodeFixers()
	if err != nil {
		return err
	}
	factory.WithInstance(adapter.Key(codeFixers.Name()), codeFixers)

	vscodeDiagnostics, err := adapters.NewVSCodeDiagnostics()
	if err != nil {
		return err
	}
	factory.WithInstance(adapter.Key(vscodeDiagnostics.Name()), vscodeDiagnostics)

	pytestRunner, err := adapters.NewPytestRunner()
	if err != nil {
		return err
	}
	factory.WithInstance(adapter.Key(pytestRunner.Name()), pytestRunner)

	gitOps, err := adapters.NewGitOps()
	if err != nil {
		return err
	}
	factory.WithInstance(adapter.Key(gitOps.Name()), gitOps)

	aiEditor := adapters.NewAIEditor()
	factory.WithInstance(adapter.Key(aiEditor.Name()), aiEditor)

	aiAnalyst := adapters.NewAIAnalyst()
	factory.WithInstance(adapter.Key(aiAnalyst.Name()), aiAnalyst)

	return nil
}

// buildCoordinator assembles a production Coordinator: the built-in
// adapters plus any plugin manifest entries found alongside cfg's
// registries, a complexity-aware Router backed by persisted performance
// history, the full verification gate engine, and a Cost Tracker backed
// by cfg's pricing registry and cost log.
func buildCoordinator(cfg *config.Config, filesRoot string, dryRun bool) (*coordinator.Coordinator, error) {
	registry := adapter.NewRegistry()
	factory := adapter.NewFactory(registry)

	if err := registerBuiltinAdapters(factory); err != nil {
		return nil, newConfigError("registering built-in adapters", err)
	}

	manifestPath := filepath.Join(filepath.Dir(cfg.CostLogPath), "adapters.yaml")
	if err := factory.LoadManifest(manifestPath); err != nil {
		return nil, newConfigError("loading adapter plugin manifest", err)
	}

	if filesRoot == "" {
		filesRoot = "."
	}
	analyzer := complexity.New(complexity.NewFSResolver(filesRoot))
	perfStore := router.NewFilePerformanceStore(cfg.PerformanceHistoryPath)
	rtr := router.New(registry, analyzer, perfStore)

	pricing, err := costcalc.LoadRegistry(cfg.PricingRegistryPath)
	if err != nil {
		return nil, newConfigError("loading pricing registry", err)
	}
	tracker := cost.New(cost.NewFileStore(cfg.CostLogPath), pricing)

	exec := executor.New(registry, tracker, rtr, dryRun)
	gates := gate.NewEngine()

	coord := coordinator.New(exec, gates, rtr)
	if schemaValidator, err := docschema.New(); err == nil {
		coord = coord.WithSchemaValidator(schemaValidator)
	}

	return coord, nil
}
