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

// Package docschema validates a workflow document's raw YAML against the
// embedded JSON Schema, satisfying the Coordinator's optional "if a
// schema validator is configured" load step. A Coordinator built without
// one falls back to the structural checks workflow.Validate already
// performs; this package only adds a stricter, earlier check in front of
// that one.
package docschema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/flowctl/orchestrator/schemas"
)

const resourceURL = "mem://workflow.schema.json"

// Validator checks raw workflow document bytes against the embedded
// workflow JSON Schema.
type Validator struct {
	schema *jsonschema.Schema
}

// New compiles the embedded workflow schema once. The compiled schema is
// reused for every ValidateYAML call; compilation failure here would be a
// programming error in the embedded schema itself, not a per-document one.
func New() (*Validator, error) {
	var schemaDoc interface{}
	if err := json.Unmarshal(schemas.GetWorkflowSchema(), &schemaDoc); err != nil {
		return nil, fmt.Errorf("decoding embedded workflow schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("loading embedded workflow schema: %w", err)
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("compiling embedded workflow schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateYAML decodes data as YAML and validates the result against the
// workflow schema. Decode failures are reported the same way schema
// violations are: a non-nil error describing what's wrong.
func (v *Validator) ValidateYAML(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing workflow document: %w", err)
	}
	doc = normalize(doc)
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("workflow document failed schema validation: %w", err)
	}
	return nil
}

// normalize converts yaml.v3's decode result into the shape
// jsonschema/v6 expects. yaml.v3 itself already decodes mappings as
// map[string]interface{}, but this guards against any map[interface{}]
// interface{} reaching here from a differently configured decoder.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
