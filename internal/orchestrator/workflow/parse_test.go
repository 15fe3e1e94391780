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

package workflow_test

import (
	"testing"

	"github.com/flowctl/orchestrator/internal/orchestrator/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument_Minimal(t *testing.T) {
	doc := []byte(`
name: demo
steps:
  - id: "1.001"
    name: x
    actor: code_fixers
`)
	wf, err := workflow.ParseDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, "demo", wf.Name)
	assert.True(t, wf.Policy.PreferDeterministic)
	assert.Equal(t, 0.7, wf.Policy.ComplexityThreshold)
	assert.True(t, wf.Policy.FailFast)
	assert.Equal(t, workflow.ScopeExclusive, wf.Steps[0].ScopeMode)
}

func TestParseDocument_EmptySteps(t *testing.T) {
	_, err := workflow.ParseDocument([]byte("name: demo\nsteps: []\n"))
	require.Error(t, err)
}

func TestParseDocument_MissingSteps(t *testing.T) {
	_, err := workflow.ParseDocument([]byte("name: demo\n"))
	require.Error(t, err)
}

func TestParseDocument_DuplicateStepID(t *testing.T) {
	doc := []byte(`
name: demo
steps:
  - id: a
    name: x
    actor: code_fixers
  - id: a
    name: y
    actor: pytest_runner
`)
	_, err := workflow.ParseDocument(doc)
	require.Error(t, err)
}

// stubValidator is a minimal workflow.SchemaValidator for exercising
// ParseDocumentWithSchema without depending on docschema, so each test
// decides the validator's verdict directly.
type stubValidator struct {
	err error
}

func (s stubValidator) ValidateYAML(data []byte) error { return s.err }

func TestParseDocumentWithSchema_NilValidatorMatchesParseDocument(t *testing.T) {
	doc := []byte("name: demo\nsteps:\n  - id: a\n    name: x\n    actor: code_fixers\n")
	wf, err := workflow.ParseDocumentWithSchema(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "demo", wf.Name)
}

func TestParseDocumentWithSchema_ValidatorRejectsDocument(t *testing.T) {
	doc := []byte("name: demo\nsteps:\n  - id: a\n    name: x\n    actor: code_fixers\n")
	_, err := workflow.ParseDocumentWithSchema(doc, stubValidator{err: assertErr("schema says no")})
	require.Error(t, err)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestFileGlobs_ScalarAndList(t *testing.T) {
	doc := []byte(`
name: demo
steps:
  - id: a
    name: x
    actor: code_fixers
    files: "src/**/*.py"
  - id: b
    name: y
    actor: code_fixers
    files:
      - "a.py"
      - "b.py"
`)
	wf, err := workflow.ParseDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, workflow.FileGlobs{"src/**/*.py"}, wf.Steps[0].Files)
	assert.Equal(t, workflow.FileGlobs{"a.py", "b.py"}, wf.Steps[1].Files)
}

func TestParseDocument_WhenReferencingKnownStepPasses(t *testing.T) {
	doc := []byte(`
name: demo
steps:
  - id: fetch
    name: fetch
    actor: code_fixers
  - id: tag
    name: tag
    actor: code_fixers
    when: "steps.fetch.success == true"
`)
	_, err := workflow.ParseDocument(doc)
	require.NoError(t, err)
}

func TestParseDocument_WhenReferencingUnknownStepFails(t *testing.T) {
	doc := []byte(`
name: demo
steps:
  - id: tag
    name: tag
    actor: code_fixers
    when: "steps.missing.success == true"
`)
	_, err := workflow.ParseDocument(doc)
	require.Error(t, err)
}
