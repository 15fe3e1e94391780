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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// checkDiffLimits caps the size of a unified diff artifact. A missing diff
// file passes vacuously: no diff means no changes to limit.
func checkDiffLimits(cfg Config, artifactsDir string) Result {
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}
	maxLines := extraInt(cfg, "max_lines", 1000)
	diffPath := filepath.Join(artifactsDir, extraString(cfg, "diff_file", "changes.diff"))

	data, err := os.ReadFile(diffPath)
	if err != nil {
		return Result{GateName: name, Passed: true, Message: "no diff file found - assuming no changes"}
	}

	lineCount := bytes.Count(data, []byte("\n"))
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		lineCount++
	}

	if lineCount > maxLines {
		return Result{
			GateName: name,
			Passed:   false,
			Message:  fmt.Sprintf("diff too large: %d lines (max: %d)", lineCount, maxLines),
			Details:  map[string]interface{}{"line_count": lineCount, "max_lines": maxLines},
		}
	}
	return Result{
		GateName: name,
		Passed:   true,
		Message:  fmt.Sprintf("diff size acceptable: %d lines", lineCount),
		Details:  map[string]interface{}{"line_count": lineCount, "max_lines": maxLines},
	}
}
