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

package scope

import "testing"

func TestDetectConflicts_NoExclusiveClaimsNeverConflict(t *testing.T) {
	claims := []Claim{
		{OwnerID: "a", Patterns: []string{"src/**/*.py"}, Mode: Shared},
		{OwnerID: "b", Patterns: []string{"src/**/*.py"}, Mode: Shared},
	}
	if got := DetectConflicts(claims); len(got) != 0 {
		t.Fatalf("expected no conflicts among shared claims, got %v", got)
	}
}

func TestDetectConflicts_OverlappingExclusiveClaimsConflict(t *testing.T) {
	claims := []Claim{
		{OwnerID: "step-1", Patterns: []string{"src/**/*.py"}, Mode: Exclusive},
		{OwnerID: "step-2", Patterns: []string{"src/app/main.py"}, Mode: Exclusive},
	}
	conflicts := DetectConflicts(claims)
	if len(conflicts) != 1 {
		t.Fatalf("expected exactly one conflict, got %d: %v", len(conflicts), conflicts)
	}
	c := conflicts[0]
	if len(c.OwnerIDs) != 2 {
		t.Fatalf("expected two owners in conflict, got %v", c.OwnerIDs)
	}
	if c.Reason == "" {
		t.Fatal("expected a non-empty reason")
	}
}

func TestDetectConflicts_ExclusiveVsSharedConflicts(t *testing.T) {
	claims := []Claim{
		{OwnerID: "a", Patterns: []string{"docs/*.md"}, Mode: Exclusive},
		{OwnerID: "b", Patterns: []string{"docs/*.md"}, Mode: Shared},
	}
	if got := DetectConflicts(claims); len(got) != 1 {
		t.Fatalf("expected one conflict between exclusive and shared, got %d", len(got))
	}
}

func TestDetectConflicts_DisjointPatternsNeverConflict(t *testing.T) {
	claims := []Claim{
		{OwnerID: "a", Patterns: []string{"src/**/*.go"}, Mode: Exclusive},
		{OwnerID: "b", Patterns: []string{"docs/**/*.md"}, Mode: Exclusive},
	}
	if got := DetectConflicts(claims); len(got) != 0 {
		t.Fatalf("expected no conflicts for disjoint trees, got %v", got)
	}
}
