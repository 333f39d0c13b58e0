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

package version

import (
	"fmt"
	"regexp"
	"strings"
)

// Spec is a boolean constraint over versions, e.g. ">=1.0,<2.0" or
// "1.5.*|1.6.*". Commas bind tighter than pipes: the spec is a disjunction
// of conjunctions of single terms.
type Spec struct {
	raw    string
	groups [][]term
}

type operator int

const (
	opEqual operator = iota
	opNotEqual
	opGreater
	opGreaterEqual
	opLess
	opLessEqual
	opStartsWith
	opNotStartsWith
	opCompatible
	opGlob
	opNotGlob
	opAny
)

type term struct {
	op      operator
	version Version
	// glob terms match against the raw version string
	glob *regexp.Regexp
	raw  string
}

// ParseSpec parses a conda version constraint expression.
func ParseSpec(s string) (Spec, error) {
	spec := Spec{raw: s}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == "*" {
		spec.groups = [][]term{{{op: opAny, raw: "*"}}}
		return spec, nil
	}
	for _, alternative := range strings.Split(trimmed, "|") {
		var group []term
		for _, part := range strings.Split(alternative, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				return Spec{}, fmt.Errorf("invalid version spec %q: empty term", s)
			}
			t, err := parseTerm(part)
			if err != nil {
				return Spec{}, fmt.Errorf("invalid version spec %q: %w", s, err)
			}
			group = append(group, t)
		}
		spec.groups = append(spec.groups, group)
	}
	return spec, nil
}

// MustParseSpec is ParseSpec for statically known constraints.
func MustParseSpec(s string) Spec {
	spec, err := ParseSpec(s)
	if err != nil {
		panic(err)
	}
	return spec
}

func parseTerm(s string) (term, error) {
	op := opEqual
	rest := s
	switch {
	case strings.HasPrefix(s, ">="):
		op, rest = opGreaterEqual, s[2:]
	case strings.HasPrefix(s, "<="):
		op, rest = opLessEqual, s[2:]
	case strings.HasPrefix(s, "=="):
		op, rest = opEqual, s[2:]
	case strings.HasPrefix(s, "!="):
		op, rest = opNotEqual, s[2:]
	case strings.HasPrefix(s, "~="):
		op, rest = opCompatible, s[2:]
	case strings.HasPrefix(s, ">"):
		op, rest = opGreater, s[1:]
	case strings.HasPrefix(s, "<"):
		op, rest = opLess, s[1:]
	case strings.HasPrefix(s, "="):
		op, rest = opStartsWith, s[1:]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return term{}, fmt.Errorf("missing operand in term %q", s)
	}
	if rest == "*" {
		return term{op: opAny, raw: s}, nil
	}

	if strings.Contains(rest, "*") {
		if trimmed, ok := trailingGlob(rest); ok {
			// trailing ".*" (or bare "*") is component-prefix matching
			switch op {
			case opEqual, opStartsWith:
				op = opStartsWith
			case opNotEqual:
				op = opNotStartsWith
			default:
				return term{}, fmt.Errorf("operator and wildcard conflict in term %q", s)
			}
			v, err := Parse(trimmed)
			if err != nil {
				return term{}, err
			}
			return term{op: op, version: v, raw: s}, nil
		}
		// inner wildcards match against the spelled version
		switch op {
		case opEqual, opStartsWith:
			op = opGlob
		case opNotEqual:
			op = opNotGlob
		default:
			return term{}, fmt.Errorf("operator and wildcard conflict in term %q", s)
		}
		re, err := globRegexp(rest)
		if err != nil {
			return term{}, err
		}
		return term{op: op, glob: re, raw: s}, nil
	}

	v, err := Parse(rest)
	if err != nil {
		return term{}, err
	}
	return term{op: op, version: v, raw: s}, nil
}

// trailingGlob strips a trailing ".*" or "*" and reports whether the
// remainder is wildcard-free.
func trailingGlob(s string) (string, bool) {
	trimmed := strings.TrimSuffix(s, "*")
	trimmed = strings.TrimSuffix(trimmed, ".")
	if strings.Contains(trimmed, "*") {
		return "", false
	}
	return trimmed, true
}

func globRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, part := range strings.Split(pattern, "*") {
		if part != "" {
			sb.WriteString(regexp.QuoteMeta(part))
		}
		sb.WriteString(".*")
	}
	expr := strings.TrimSuffix(sb.String(), ".*") + "$"
	return regexp.Compile(expr)
}

func (s Spec) String() string {
	return s.raw
}

// Match reports whether v satisfies the constraint.
func (s Spec) Match(v Version) bool {
	for _, group := range s.groups {
		matched := true
		for _, t := range group {
			if !t.match(v) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// MatchString parses raw and matches it; unparsable versions never match.
func (s Spec) MatchString(raw string) bool {
	v, err := Parse(raw)
	if err != nil {
		return false
	}
	return s.Match(v)
}

func (t term) match(v Version) bool {
	switch t.op {
	case opAny:
		return true
	case opEqual:
		return v.Equal(t.version)
	case opNotEqual:
		return !v.Equal(t.version)
	case opGreater:
		return v.Compare(t.version) == greater
	case opGreaterEqual:
		return v.Compare(t.version) != less
	case opLess:
		return v.Compare(t.version) == less
	case opLessEqual:
		return v.Compare(t.version) != greater
	case opStartsWith:
		return v.StartsWith(t.version)
	case opNotStartsWith:
		return !v.StartsWith(t.version)
	case opCompatible:
		// ~=x.y.z is >=x.y.z together with x.y.*
		if v.Compare(t.version) == less {
			return false
		}
		return v.StartsWith(truncate(t.version))
	case opGlob:
		return t.glob.MatchString(strings.ToLower(v.raw))
	case opNotGlob:
		return !t.glob.MatchString(strings.ToLower(v.raw))
	}
	return false
}

// truncate drops the last release component, for compatible-release matching.
func truncate(v Version) Version {
	if len(v.release) <= 1 {
		return v
	}
	out := v
	out.release = v.release[:len(v.release)-1]
	out.local = nil
	return out
}
