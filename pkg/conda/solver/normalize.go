// Copyright 2025 Mamba Contributors
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

package solver

import (
	"regexp"
	"strings"
)

// sentinelName is prepended to specs that consist of a bare constraint with
// no package name, e.g. ">=2.0".
const sentinelName = "NONE"

// pythonSelectors are the python-version selector suffixes that some
// channels embed in dependency strings; everything from the selector on is
// dropped.
var pythonSelectors = []string{"=py", "<py", ">py", ">=py", "<=py", "!=py"}

// operators in replacement order; two-character operators come first so
// that ">= 1.0" is not mangled by the ">" rule.
var operators = []string{">=", "<=", "==", ">", "<", "!=", "="}

var operatorSpaceRes = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(operators))
	for i, op := range operators {
		res[i] = regexp.MustCompile(regexp.QuoteMeta(op) + `\s+`)
	}
	return res
}()

// normalizeSpec applies the historical conda fixups to an irregular match
// spec string. The second result is false when the spec is vacuous and
// should not be interned at all.
//
// The fixups are part of the compatibility contract with repodata found in
// the wild; their order matters.
func normalizeSpec(s string) (string, bool) {
	// stray "v" prefixes in versions, e.g. "mingw-w64 v12.0.0"
	s = strings.ReplaceAll(s, " v", " ")

	// python-version selectors terminate the spec
	if idx := earliestIndex(s, pythonSelectors); idx >= 0 {
		s = s[:idx]
	}

	// whitespace inside version unions
	s = strings.ReplaceAll(s, ", ", ",")

	// "*.*" constraints match everything; do not intern them
	if strings.Contains(s, "*.*") {
		return "", false
	}

	// spaces between a relational operator and its operand
	for _, re := range operatorSpaceRes {
		s = re.ReplaceAllStringFunc(s, func(match string) string {
			return strings.TrimRight(match, " \t")
		})
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	// a spec starting with a bare operator gets the sentinel name
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			s = sentinelName + " " + s
			break
		}
	}
	return s, true
}

func earliestIndex(s string, subs []string) int {
	idx := -1
	for _, sub := range subs {
		if i := strings.Index(s, sub); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}
	return idx
}
