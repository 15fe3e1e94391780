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

import "gopkg.in/yaml.v3"

// FileGlobs accepts either a single glob string or a list of globs in the
// workflow document, normalizing both to a slice.
type FileGlobs []string

// UnmarshalYAML accepts a scalar string or a sequence of strings.
func (g *FileGlobs) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s == "" {
			*g = nil
			return nil
		}
		*g = FileGlobs{s}
		return nil
	default:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*g = FileGlobs(list)
		return nil
	}
}

// MarshalYAML renders a single-element list as a bare scalar.
func (g FileGlobs) MarshalYAML() (interface{}, error) {
	if len(g) == 1 {
		return g[0], nil
	}
	return []string(g), nil
}
