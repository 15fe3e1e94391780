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

// Package scope implements the File-Scope Manager: pure conflict detection
// over file-pattern claims, consumed by the Router's parallel planner. It
// takes no locks and performs no I/O beyond glob matching; it operates on
// an immutable snapshot of claims.
package scope

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Mode controls whether a claim excludes other claims over overlapping
// patterns.
type Mode string

const (
	Exclusive Mode = "exclusive"
	Shared    Mode = "shared"
)

// Claim is a claim by one owner (a step or workflow id) over a set of file
// glob patterns.
type Claim struct {
	OwnerID  string
	Patterns []string
	Mode     Mode
}

// Conflict names the claims that conflict, the patterns they overlap on,
// and a human-readable reason.
type Conflict struct {
	OwnerIDs []string
	Patterns []string
	Reason   string
}

// DetectConflicts reports every pair of claims that overlap on at least
// one concrete pattern where at least one of the pair is Exclusive. Two
// Shared claims never conflict. Claims are compared pairwise; an owner
// with multiple claims can appear in more than one Conflict.
func DetectConflicts(claims []Claim) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(claims); i++ {
		for j := i + 1; j < len(claims); j++ {
			a, b := claims[i], claims[j]
			if a.Mode == Shared && b.Mode == Shared {
				continue
			}
			overlap := overlappingPatterns(a.Patterns, b.Patterns)
			if len(overlap) == 0 {
				continue
			}
			conflicts = append(conflicts, Conflict{
				OwnerIDs: []string{a.OwnerID, b.OwnerID},
				Patterns: overlap,
				Reason: fmt.Sprintf(
					"%s and %s both claim overlapping paths with exclusive scope",
					a.OwnerID, b.OwnerID,
				),
			})
		}
	}
	return conflicts
}

// overlappingPatterns reports every pattern pair from left/right that
// could match at least one common concrete path. Two patterns overlap
// when one matches the other treated as a literal path, or when they
// share an identical prefix up to the first wildcard component (a cheap,
// conservative approximation that never misses a real collision).
func overlappingPatterns(left, right []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range left {
		for _, r := range right {
			if !patternsOverlap(l, r) {
				continue
			}
			for _, p := range []string{l, r} {
				if !seen[p] {
					seen[p] = true
					out = append(out, p)
				}
			}
		}
	}
	return out
}

func patternsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	if matched, err := doublestar.Match(a, b); err == nil && matched {
		return true
	}
	if matched, err := doublestar.Match(b, a); err == nil && matched {
		return true
	}
	return staticPrefix(a) == staticPrefix(b) && (hasWildcard(a) || hasWildcard(b))
}

// staticPrefix returns the directory portion of pattern up to (not
// including) its first wildcard component.
func staticPrefix(pattern string) string {
	parts := strings.Split(pattern, "/")
	var static []string
	for _, p := range parts {
		if hasWildcard(p) {
			break
		}
		static = append(static, p)
	}
	return strings.Join(static, "/")
}

func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
