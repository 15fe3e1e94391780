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

package complexity

import (
	"os"

	"github.com/bmatcuk/doublestar/v4"
)

// FSResolver resolves glob patterns against a real filesystem rooted at
// Root (defaults to the working directory). It never returns an error:
// a bad pattern or missing file simply contributes nothing to the score,
// matching the Analyzer's pure-function contract.
type FSResolver struct {
	Root string
}

// NewFSResolver returns a resolver rooted at root, or the current
// directory when root is empty.
func NewFSResolver(root string) *FSResolver {
	if root == "" {
		root = "."
	}
	return &FSResolver{Root: root}
}

// Resolve implements FileResolver.
func (r *FSResolver) Resolve(patterns []string) []FileInfo {
	fsys := os.DirFS(r.Root)
	var out []FileInfo
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			info, err := os.Stat(r.Root + "/" + m)
			if err != nil {
				continue
			}
			if info.IsDir() {
				continue
			}
			out = append(out, FileInfo{Path: m, Size: info.Size()})
		}
	}
	return out
}
