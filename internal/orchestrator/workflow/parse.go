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

package workflow

import (
	"fmt"

	"github.com/flowctl/orchestrator/pkg/errors"
	"github.com/flowctl/orchestrator/pkg/workflow/expression"
	"gopkg.in/yaml.v3"
)

const defaultComplexityThreshold = 0.7

// SchemaValidator checks a workflow document's raw bytes against a JSON
// Schema before the document is even decoded into a Workflow. Coordinator
// wires in internal/orchestrator/workflow/docschema.Validator for this;
// the interface lives here, not there, so this package doesn't depend on
// a concrete schema implementation.
type SchemaValidator interface {
	ValidateYAML(data []byte) error
}

// ParseDocument decodes a workflow document, applies defaults, and runs
// structural validation. It never panics; malformed input is always
// reported as an error.
func ParseDocument(data []byte) (*Workflow, error) {
	return ParseDocumentWithSchema(data, nil)
}

// ParseDocumentWithSchema is ParseDocument with an optional schema-validation
// pre-pass. A nil validator makes this identical to ParseDocument: only the
// structural checks in Validate run. With one, the raw document must also
// satisfy the workflow JSON Schema before decoding proceeds.
func ParseDocumentWithSchema(data []byte, validator SchemaValidator) (*Workflow, error) {
	if validator != nil {
		if err := validator.ValidateYAML(data); err != nil {
			return nil, &errors.ValidationError{
				Field:   "document",
				Message: err.Error(),
			}
		}
	}

	var wf Workflow
	wf.Policy.PreferDeterministic = true
	wf.Policy.ComplexityThreshold = defaultComplexityThreshold
	wf.Policy.FailFast = true

	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, errors.Wrap(err, "parsing workflow document")
	}

	ApplyDefaults(&wf)

	if err := Validate(&wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ApplyDefaults fills in step-level defaults the document omitted.
func ApplyDefaults(wf *Workflow) {
	if wf.Policy.ComplexityThreshold == 0 {
		wf.Policy.ComplexityThreshold = defaultComplexityThreshold
	}
	for i := range wf.Steps {
		if wf.Steps[i].ScopeMode == "" {
			wf.Steps[i].ScopeMode = ScopeExclusive
		}
	}
}

// Validate runs the structural checks the Coordinator requires before a
// workflow is eligible to run: a name, a non-empty step list, unique step
// ids, and an actor on every step.
func Validate(wf *Workflow) error {
	if wf.Name == "" {
		return &errors.ValidationError{
			Field:   "name",
			Message: "workflow name is required",
		}
	}
	if wf.Steps == nil {
		return &errors.ValidationError{
			Field:   "steps",
			Message: "steps is required and must be a list",
		}
	}
	if len(wf.Steps) == 0 {
		return &errors.ValidationError{
			Field:   "steps",
			Message: "steps must not be empty",
		}
	}

	seen := make(map[string]bool, len(wf.Steps))
	ids := make([]string, 0, len(wf.Steps))
	for i, step := range wf.Steps {
		if step.ID == "" {
			return &errors.ValidationError{
				Field:   fmt.Sprintf("steps[%d].id", i),
				Message: "step id is required",
			}
		}
		if seen[step.ID] {
			return &errors.ValidationError{
				Field:   "steps",
				Message: fmt.Sprintf("duplicate step id %q", step.ID),
			}
		}
		seen[step.ID] = true
		ids = append(ids, step.ID)

		if step.Actor == "" {
			return &errors.ValidationError{
				Field:   fmt.Sprintf("steps[%d].actor", i),
				Message: "step actor is required",
			}
		}
	}

	for i, step := range wf.Steps {
		if step.When == "" {
			continue
		}
		if err := expression.ValidateStepReferences(step.When, ids); err != nil {
			return &errors.ValidationError{
				Field:   fmt.Sprintf("steps[%d].when", i),
				Message: err.Error(),
			}
		}
	}
	return nil
}
