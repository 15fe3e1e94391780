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

package adapter

import (
	"fmt"
	"os"
	"sync"

	"github.com/flowctl/orchestrator/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Factory wires AdapterKeys to the Registry using one of three
// registration modes: a prebuilt instance, a constructor reference, or a
// builder name resolved through a plugin manifest for deferred loading.
// Go has no dynamic module loader, so "module/class reference" is modeled
// as a named entry in this Factory's own builder table, populated via
// RegisterBuilder.
type Factory struct {
	registry *Registry
	builders map[string]Constructor
	mu       sync.Mutex
}

// NewFactory returns a Factory bound to registry.
func NewFactory(registry *Registry) *Factory {
	return &Factory{
		registry: registry,
		builders: make(map[string]Constructor),
	}
}

// RegisterBuilder makes a named constructor available for later resolution
// by a plugin manifest entry. The built-in adapters do not use it; they
// are registered as prebuilt instances through WithInstance.
func (f *Factory) RegisterBuilder(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[name] = ctor
}

// WithInstance registers key using a prebuilt instance (mode a).
func (f *Factory) WithInstance(key Key, a Adapter) {
	f.registry.RegisterInstance(key, a)
}

// WithConstructor registers key using a constructor reference (mode b).
func (f *Factory) WithConstructor(key Key, descriptor Descriptor, ctor Constructor) {
	f.registry.RegisterConstructor(key, descriptor, ctor)
}

// ManifestEntry is one line of a plugin manifest: an AdapterKey mapped to
// the name of a builder registered via RegisterBuilder.
type ManifestEntry struct {
	Key     string `yaml:"key"`
	Builder string `yaml:"builder"`
	Kind    Kind   `yaml:"kind,omitempty"`
}

// Manifest is the well-known plugin manifest format: a flat list of
// key/builder pairs. The core does not require a manifest to function;
// a missing file is not an error.
type Manifest struct {
	Adapters []ManifestEntry `yaml:"adapters"`
}

// LoadManifest reads a plugin manifest from path and registers a lazy
// constructor (mode c) for each entry. An entry whose builder name was
// never registered makes LoadManifest return a ConfigError. A missing
// manifest file is not an error — plugin discovery is optional.
func (f *Factory) LoadManifest(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading plugin manifest %s", path)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return errors.Wrapf(err, "parsing plugin manifest %s", path)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range manifest.Adapters {
		ctor, ok := f.builders[e.Builder]
		if !ok {
			return &errors.ConfigError{
				Key:    fmt.Sprintf("adapters.%s.builder", e.Key),
				Reason: fmt.Sprintf("unknown builder %q", e.Builder),
			}
		}
		kind := e.Kind
		if kind == "" {
			kind = KindDeterministic
		}
		f.registry.RegisterConstructor(Key(e.Key), Descriptor{Kind: kind, Available: true}, ctor)
	}
	return nil
}
