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
)

// checkTestsPass reads a JSON test report (default test_results.json) and
// fails when it reports any failing test.
func checkTestsPass(cfg Config, artifactsDir string) Result {
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}
	reportPath := filepath.Join(artifactsDir, extraString(cfg, "test_report", "test_results.json"))

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return Result{GateName: name, Passed: false, Message: fmt.Sprintf("test report not found: %s", reportPath)}
	}

	var report struct {
		TestsPassed int `json:"tests_passed"`
		TestsFailed int `json:"tests_failed"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return Result{GateName: name, Passed: false, Message: fmt.Sprintf("could not read test report: %v", err)}
	}

	total := report.TestsPassed + report.TestsFailed
	if report.TestsFailed > 0 {
		return Result{
			GateName: name,
			Passed:   false,
			Message:  fmt.Sprintf("%d tests failed out of %d", report.TestsFailed, total),
			Details: map[string]interface{}{
				"tests_passed": report.TestsPassed,
				"tests_failed": report.TestsFailed,
				"total_tests":  total,
			},
		}
	}
	return Result{
		GateName: name,
		Passed:   true,
		Message:  fmt.Sprintf("all %d tests passed", report.TestsPassed),
		Details: map[string]interface{}{
			"tests_passed": report.TestsPassed,
			"tests_failed": report.TestsFailed,
			"total_tests":  total,
		},
	}
}
