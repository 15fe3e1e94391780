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

// Package costcalc is the model-to-price-per-token function consulted by
// the Cost Tracker. PerToken performs no I/O; LoadRegistry and Reload
// read the pricing registry YAML file from disk.
package costcalc

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flowctl/orchestrator/pkg/errors"
)

// fallbackRate is the conservative per-token rate used when a model has
// no registry entry and no fallback table entry.
const fallbackRate = 1e-5

// ModelRate holds per-1k-token pricing for one model, matching the
// pricing registry's wire format byte-for-byte.
type ModelRate struct {
	InputPer1k  float64 `yaml:"input_per_1k,omitempty"`
	OutputPer1k float64 `yaml:"output_per_1k,omitempty"`
	Per1k       float64 `yaml:"per_1k,omitempty"`
}

// registryDoc mirrors the on-disk YAML shape: vendors -> models -> rate.
type registryDoc struct {
	Vendors map[string]struct {
		Models map[string]ModelRate `yaml:"models"`
	} `yaml:"vendors"`
}

// fallbackTable is the fixed table of common-model rates consulted when
// no pricing registry entry matches.
var fallbackTable = map[string]float64{
	"claude-3-opus":     75.0 / 1000,
	"claude-3-sonnet":   15.0 / 1000,
	"claude-3-haiku":    1.25 / 1000,
	"gpt-4":             30.0 / 1000,
	"gpt-4o":            5.0 / 1000,
	"gpt-3.5-turbo":     1.5 / 1000,
}

// Registry is an optional, cached pricing table: vendor -> model -> rate.
// It is loaded once and only ever replaced wholesale on an explicit
// Reload; a missing or invalid file never prevents operation.
type Registry struct {
	models map[string]ModelRate
}

// NewRegistry returns an empty registry (per_token falls back for every
// model until Load succeeds).
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]ModelRate)}
}

// LoadRegistry reads a pricing registry YAML file. A missing file is not
// an error: the returned registry is simply empty.
func LoadRegistry(path string) (*Registry, error) {
	r := NewRegistry()
	if path == "" {
		return r, nil
	}
	if err := r.Reload(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return r, nil
}

// Reload replaces the registry's contents from path. Errors are
// returned to the caller but never panicked; a missing file is
// reported via os.IsNotExist so LoadRegistry can treat it as "no
// registry configured".
func (r *Registry) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc registryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrapf(err, "parsing pricing registry %s", path)
	}
	models := make(map[string]ModelRate)
	for _, vendor := range doc.Vendors {
		for model, rate := range vendor.Models {
			models[model] = rate
		}
	}
	r.models = models
	return nil
}

// PerToken returns the effective per-token USD rate for model. Registry
// entries with both input and output rates are averaged; a flat Per1k
// entry is used directly. A miss falls through the fixed fallback table
// and finally to the conservative 1e-5 constant.
func (r *Registry) PerToken(model string) float64 {
	if r != nil {
		if rate, ok := r.models[model]; ok {
			return rateToPerToken(rate)
		}
	}
	if rate, ok := fallbackTable[model]; ok {
		return rate
	}
	return fallbackRate
}

func rateToPerToken(rate ModelRate) float64 {
	if rate.Per1k > 0 {
		return rate.Per1k / 1000
	}
	switch {
	case rate.InputPer1k > 0 && rate.OutputPer1k > 0:
		return (rate.InputPer1k + rate.OutputPer1k) / 2 / 1000
	case rate.InputPer1k > 0:
		return rate.InputPer1k / 1000
	case rate.OutputPer1k > 0:
		return rate.OutputPer1k / 1000
	default:
		return 0
	}
}
