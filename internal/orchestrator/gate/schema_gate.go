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

package gate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// requiredArtifactFields is consulted by basicValidation when no JSON
// schema is available for an artifact.
var requiredArtifactFields = []string{"timestamp", "type"}

// basicValidation is the fallback check used when no schema file is
// configured or found: every artifact must at least carry a timestamp
// and a type.
func basicValidation(artifact map[string]interface{}) bool {
	for _, field := range requiredArtifactFields {
		if _, ok := artifact[field]; !ok {
			return false
		}
	}
	return true
}

// validateAgainstSchema compiles schemaPath with jsonschema/v6 and
// validates artifact against it. Any compile or validation error reports
// invalid rather than raising, matching the gate engine's isolate-and-
// report-false style.
func validateAgainstSchema(artifact interface{}, schemaPath string) bool {
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return false
	}
	var schemaDoc interface{}
	if err := json.Unmarshal(data, &schemaDoc); err != nil {
		return false
	}

	const resourceURL = "mem://schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, schemaDoc); err != nil {
		return false
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return false
	}
	return schema.Validate(artifact) == nil
}

// verifyArtifact loads artifactPath as JSON and checks it against
// schemaPath when given, falling back to basicValidation otherwise.
func verifyArtifact(artifactPath, schemaPath string) bool {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return false
	}
	var artifact map[string]interface{}
	if err := json.Unmarshal(data, &artifact); err != nil {
		return false
	}
	if schemaPath != "" {
		if _, err := os.Stat(schemaPath); err == nil {
			return validateAgainstSchema(artifact, schemaPath)
		}
	}
	return basicValidation(artifact)
}

// schemaForArtifactName maps a conventional artifact filename to its
// expected schema file under schemaDir, mirroring the naming convention
// established artifact types use.
func schemaForArtifactName(name, schemaDir string) string {
	switch {
	case strings.Contains(name, "code-review"):
		return filepath.Join(schemaDir, "ai_code_review.schema.json")
	case strings.Contains(name, "architecture"):
		return filepath.Join(schemaDir, "ai_architecture_analysis.schema.json")
	case strings.Contains(name, "refactor-plan"):
		return filepath.Join(schemaDir, "ai_refactor_plan.schema.json")
	case strings.Contains(name, "test-plan"):
		return filepath.Join(schemaDir, "ai_test_plan.schema.json")
	case strings.Contains(name, "improvements"):
		return filepath.Join(schemaDir, "ai_improvements.schema.json")
	default:
		return ""
	}
}

func resolveArtifactPath(artifactsDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(artifactsDir, path)
}

// checkSchemaValid validates one or more artifacts against JSON schemas,
// resolved either from an explicit schema_map or by filename convention.
func checkSchemaValid(cfg Config, artifactsDir string) Result {
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}
	artifacts := extraStringSlice(cfg, "artifacts")
	if len(artifacts) == 0 {
		return Result{GateName: name, Passed: true, Message: "no artifacts specified"}
	}
	schemaDir := extraString(cfg, "schema_dir", ".ai/schemas")
	mapping := extraStringMap(cfg, "schema_map")

	allOK := true
	details := make(map[string]interface{}, len(artifacts))
	for _, art := range artifacts {
		artPath := resolveArtifactPath(artifactsDir, art)

		schemaPath := mapping[art]
		if schemaPath == "" {
			schemaPath = schemaForArtifactName(filepath.Base(art), schemaDir)
		}

		ok := verifyArtifact(artPath, schemaPath)
		details[artPath] = ok
		allOK = allOK && ok
	}

	message := "all artifacts valid"
	if !allOK {
		message = "one or more artifacts invalid"
	}
	return Result{GateName: name, Passed: allOK, Message: message, Details: details}
}

// checkYAMLSchemaValid validates one YAML document against one JSON
// schema file.
func checkYAMLSchemaValid(cfg Config, artifactsDir string) Result {
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}
	yamlPath := extraString(cfg, "file", "")
	schemaPath := extraString(cfg, "schema", "")

	if _, err := os.Stat(yamlPath); err != nil {
		return Result{GateName: name, Passed: false, Message: fmt.Sprintf("YAML file not found: %s", yamlPath)}
	}
	if _, err := os.Stat(schemaPath); err != nil {
		return Result{GateName: name, Passed: false, Message: fmt.Sprintf("schema file not found: %s", schemaPath)}
	}

	yamlData, err := os.ReadFile(yamlPath)
	if err != nil {
		return Result{GateName: name, Passed: false, Message: fmt.Sprintf("YAML schema validation failed: %v", err)}
	}
	var doc interface{}
	if err := yaml.Unmarshal(yamlData, &doc); err != nil {
		return Result{GateName: name, Passed: false, Message: fmt.Sprintf("YAML schema validation failed: %v", err)}
	}
	doc = normalizeYAMLValue(doc)

	if !validateAgainstSchema(doc, schemaPath) {
		return Result{GateName: name, Passed: false, Message: "YAML schema validation failed"}
	}
	return Result{GateName: name, Passed: true, Message: "YAML schema validation passed"}
}

// normalizeYAMLValue converts yaml.v3's map[string]interface{} decode
// result (which may nest map[interface{}]interface{} from older styles,
// though yaml.v3 itself emits map[string]interface{}) into a shape the
// JSON schema validator accepts; it is a no-op for yaml.v3's native
// output but guards against callers feeding in yaml.v2-shaped data.
func normalizeYAMLValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAMLValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeYAMLValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeYAMLValue(item)
		}
		return out
	default:
		return v
	}
}

// checkArtifactGate is a generic presence/validity check on a single
// artifact path, with optional schema validation.
func checkArtifactGate(cfg Config, artifactsDir string) Result {
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}
	path := extraString(cfg, "path", "")
	if path == "" {
		return Result{GateName: name, Passed: true, Message: "no artifact specified"}
	}
	artPath := resolveArtifactPath(artifactsDir, path)
	if _, err := os.Stat(artPath); err != nil {
		return Result{GateName: name, Passed: false, Message: fmt.Sprintf("artifact not found: %s", artPath)}
	}

	schema := extraString(cfg, "schema", "")
	passed := true
	if schema != "" {
		passed = verifyArtifact(artPath, schema)
	}
	message := "artifact valid"
	if !passed {
		message = "artifact invalid"
	}
	return Result{
		GateName: name,
		Passed:   passed,
		Message:  message,
		Details:  map[string]interface{}{"path": artPath},
	}
}
