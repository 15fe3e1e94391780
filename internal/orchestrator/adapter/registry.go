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
	"sync"

	"github.com/flowctl/orchestrator/pkg/errors"
)

// Constructor builds an adapter instance on demand. Returned errors are
// remembered by the Registry so later Get calls short-circuit.
type Constructor func() (Adapter, error)

// entry is one registration: either a prebuilt instance or a constructor
// to run (and memoize) on first use.
type entry struct {
	instance    Adapter
	constructor Constructor
	// descriptor is returned by List for lazy entries without forcing
	// construction.
	descriptor Descriptor
}

// Descriptor is the lightweight, non-constructing view of an adapter used
// when enumerating "available adapters" without paying construction cost.
type Descriptor struct {
	Key       Key
	Kind      Kind
	Available bool
}

// Registry resolves an AdapterKey to a live Adapter, constructing lazily
// and remembering failed constructions so later lookups fail fast with a
// clear diagnostic instead of repeating expensive work.
type Registry struct {
	mu      sync.Mutex
	entries map[Key]*entry
	failed  map[Key]error
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Key]*entry),
		failed:  make(map[Key]error),
	}
}

// RegisterInstance registers a prebuilt, already-constructed adapter.
func (r *Registry) RegisterInstance(key Key, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = &entry{instance: a}
	delete(r.failed, key)
}

// RegisterConstructor registers a constructor to be invoked (and
// memoized) the first time key is requested. descriptor is what List
// reports before construction happens.
func (r *Registry) RegisterConstructor(key Key, descriptor Descriptor, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = &entry{constructor: ctor, descriptor: descriptor}
	delete(r.failed, key)
}

// Get returns the adapter for key, constructing it on first use. A
// previously failed construction is remembered and returned immediately
// without retrying.
func (r *Registry) Get(key Key) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err, failedBefore := r.failed[key]; failedBefore {
		return nil, err
	}

	e, ok := r.entries[key]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "adapter", ID: string(key)}
	}

	if e.instance != nil {
		return e.instance, nil
	}

	a, err := e.constructor()
	if err != nil {
		wrapped := errors.Wrapf(err, "constructing adapter %q", key)
		r.failed[key] = wrapped
		return nil, wrapped
	}
	e.instance = a
	return a, nil
}

// Has reports whether key is registered, without constructing anything.
func (r *Registry) Has(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// List enumerates registered keys. Entries that have not yet been
// constructed are reported via their declared Descriptor rather than by
// forcing construction.
func (r *Registry) List() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Descriptor, 0, len(r.entries))
	for key, e := range r.entries {
		if e.instance != nil {
			out = append(out, Descriptor{
				Key:       key,
				Kind:      e.instance.Kind(),
				Available: e.instance.IsAvailable(),
			})
			continue
		}
		d := e.descriptor
		d.Key = key
		if d.Kind == "" {
			// Lazy entries default to "deterministic, available" so the
			// Router may still consider them without paying construction
			// cost.
			d.Kind = KindDeterministic
			d.Available = true
		}
		out = append(out, d)
	}
	return out
}

// Available reports whether key both resolves and reports itself
// available, without raising.
func (r *Registry) Available(key Key) bool {
	a, err := r.Get(key)
	if err != nil {
		return false
	}
	return a.IsAvailable()
}

// String renders a Descriptor for diagnostics.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s(%s available=%v)", d.Key, d.Kind, d.Available)
}
