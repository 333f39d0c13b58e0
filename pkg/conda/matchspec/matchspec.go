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

// Package matchspec implements conda match specifications: textual
// predicates of the form "name [version] [build] [attrs]" that select
// package records.
package matchspec

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/jjerphan/mamba/pkg/conda/version"
)

// BuildNumberOp is a relational operator over build numbers.
type BuildNumberOp int

const (
	BuildNumberEqual BuildNumberOp = iota
	BuildNumberNotEqual
	BuildNumberGreater
	BuildNumberGreaterEqual
	BuildNumberLess
	BuildNumberLessEqual
)

// BuildNumberSpec constrains a record's build number.
type BuildNumberSpec struct {
	Op     BuildNumberOp
	Number uint64
}

// Matches reports whether n satisfies the relation.
func (b BuildNumberSpec) Matches(n uint64) bool {
	switch b.Op {
	case BuildNumberEqual:
		return n == b.Number
	case BuildNumberNotEqual:
		return n != b.Number
	case BuildNumberGreater:
		return n > b.Number
	case BuildNumberGreaterEqual:
		return n >= b.Number
	case BuildNumberLess:
		return n < b.Number
	case BuildNumberLessEqual:
		return n <= b.Number
	}
	return false
}

func (b BuildNumberSpec) String() string {
	ops := map[BuildNumberOp]string{
		BuildNumberEqual:        "=",
		BuildNumberNotEqual:     "!=",
		BuildNumberGreater:      ">",
		BuildNumberGreaterEqual: ">=",
		BuildNumberLess:         "<",
		BuildNumberLessEqual:    "<=",
	}
	return ops[b.Op] + strconv.FormatUint(b.Number, 10)
}

// MatchSpec is a parsed conda match specification. Name is always present;
// every other field is optional.
type MatchSpec struct {
	Name        string
	Version     *version.Spec
	Build       string // glob over the build string; "" means unconstrained
	BuildNumber *BuildNumberSpec
	Channel     string
	Subdir      string
	MD5         string
	SHA256      string
}

// Record is the view of a package record a MatchSpec is tested against.
// The solver's solvable type satisfies it.
type Record interface {
	RecordName() string
	RecordVersion() version.Version
	RecordBuildString() string
	RecordBuildNumber() uint64
	RecordMD5() string
	RecordSHA256() string
}

// Parse parses a match specification string. Supported forms include plain
// names ("numpy"), inline constraints ("numpy>=1.19,<2"), space separated
// version and build fields ("numpy 1.21.* *_openblas"), channel prefixes
// ("conda-forge::numpy") and bracket attributes ("numpy[build_number=1]").
func Parse(s string) (MatchSpec, error) {
	var m MatchSpec
	rest := strings.TrimSpace(s)
	if rest == "" {
		return MatchSpec{}, fmt.Errorf("invalid match spec %q: empty string", s)
	}

	// channel[/subdir]::rest
	if idx := strings.Index(rest, "::"); idx >= 0 {
		channel := rest[:idx]
		rest = rest[idx+2:]
		if slash := strings.IndexByte(channel, '/'); slash >= 0 {
			m.Channel, m.Subdir = channel[:slash], channel[slash+1:]
		} else {
			m.Channel = channel
		}
	}

	// bracket attributes
	if open := strings.IndexByte(rest, '['); open >= 0 {
		if !strings.HasSuffix(rest, "]") {
			return MatchSpec{}, fmt.Errorf("invalid match spec %q: unterminated bracket", s)
		}
		attrs := rest[open+1 : len(rest)-1]
		rest = rest[:open]
		if err := m.parseBrackets(attrs); err != nil {
			return MatchSpec{}, fmt.Errorf("invalid match spec %q: %w", s, err)
		}
	}

	rest = strings.TrimSpace(rest)
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return MatchSpec{}, fmt.Errorf("invalid match spec %q: missing package name", s)
	}
	if len(fields) > 3 {
		return MatchSpec{}, fmt.Errorf("invalid match spec %q: too many fields", s)
	}

	name, inline := splitNameConstraint(fields[0])
	if name == "" {
		return MatchSpec{}, fmt.Errorf("invalid match spec %q: missing package name", s)
	}
	m.Name = name

	versionField := inline
	if len(fields) >= 2 {
		if versionField != "" {
			return MatchSpec{}, fmt.Errorf("invalid match spec %q: duplicate version constraint", s)
		}
		versionField = fields[1]
	}
	if versionField != "" {
		spec, err := version.ParseSpec(versionField)
		if err != nil {
			return MatchSpec{}, fmt.Errorf("invalid match spec %q: %w", s, err)
		}
		m.Version = &spec
	}
	if len(fields) == 3 {
		if m.Build != "" {
			return MatchSpec{}, fmt.Errorf("invalid match spec %q: duplicate build constraint", s)
		}
		m.Build = fields[2]
	}
	return m, nil
}

// MustParse is Parse for statically known specs.
func MustParse(s string) MatchSpec {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// splitNameConstraint cuts "numpy>=1.19" into name and inline constraint.
func splitNameConstraint(field string) (string, string) {
	if idx := strings.IndexAny(field, "<>=!~"); idx >= 0 {
		return field[:idx], field[idx:]
	}
	return field, ""
}

func (m *MatchSpec) parseBrackets(attrs string) error {
	for _, attr := range splitBracketAttrs(attrs) {
		key, value, found := strings.Cut(attr, "=")
		if key = strings.TrimSpace(key); key == "" {
			return fmt.Errorf("empty bracket attribute")
		}
		// build_number carries its operator inside the key ("build_number>=2")
		if op, rest, ok := cutBuildNumber(attr); ok {
			num, err := strconv.ParseUint(rest, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid build_number %q", rest)
			}
			m.BuildNumber = &BuildNumberSpec{Op: op, Number: num}
			continue
		}
		if !found {
			return fmt.Errorf("bracket attribute %q has no value", attr)
		}
		value = strings.Trim(strings.TrimSpace(value), `'"`)
		switch key {
		case "version":
			spec, err := version.ParseSpec(value)
			if err != nil {
				return err
			}
			m.Version = &spec
		case "build":
			m.Build = value
		case "channel":
			m.Channel = value
		case "subdir":
			m.Subdir = value
		case "md5":
			m.MD5 = strings.ToLower(value)
		case "sha256":
			m.SHA256 = strings.ToLower(value)
		default:
			// unknown attributes are tolerated, matching conda's parser
		}
	}
	return nil
}

// splitBracketAttrs splits on commas outside quotes, so that
// version='>=1.0,<2.0' survives intact.
func splitBracketAttrs(attrs string) []string {
	var (
		out     []string
		start   int
		quote   byte
		inQuote bool
	)
	for i := 0; i < len(attrs); i++ {
		c := attrs[i]
		switch {
		case inQuote:
			if c == quote {
				inQuote = false
			}
		case c == '\'' || c == '"':
			inQuote, quote = true, c
		case c == ',':
			out = append(out, strings.TrimSpace(attrs[start:i]))
			start = i + 1
		}
	}
	out = append(out, strings.TrimSpace(attrs[start:]))
	return out
}

func cutBuildNumber(attr string) (BuildNumberOp, string, bool) {
	if !strings.HasPrefix(attr, "build_number") {
		return 0, "", false
	}
	rest := strings.TrimSpace(attr[len("build_number"):])
	for _, candidate := range []struct {
		prefix string
		op     BuildNumberOp
	}{
		{">=", BuildNumberGreaterEqual},
		{"<=", BuildNumberLessEqual},
		{"==", BuildNumberEqual},
		{"!=", BuildNumberNotEqual},
		{">", BuildNumberGreater},
		{"<", BuildNumberLess},
		{"=", BuildNumberEqual},
	} {
		if strings.HasPrefix(rest, candidate.prefix) {
			value := strings.Trim(strings.TrimSpace(rest[len(candidate.prefix):]), `'"`)
			return candidate.op, value, true
		}
	}
	return 0, "", false
}

// String renders the canonical form of the spec. Equivalent specs with
// different input spellings render identically, which is what makes the
// string usable as an interning key.
func (m MatchSpec) String() string {
	var sb strings.Builder
	if m.Channel != "" {
		sb.WriteString(m.Channel)
		if m.Subdir != "" {
			sb.WriteByte('/')
			sb.WriteString(m.Subdir)
		}
		sb.WriteString("::")
	}
	sb.WriteString(m.Name)
	if c := m.ConstraintString(); c != "" {
		sb.WriteByte('[')
		sb.WriteString(c)
		sb.WriteByte(']')
	}
	return sb.String()
}

// ConstraintString renders every constraint except the package name and
// channel, e.g. `version=">=1.0,<2.0",build="py310*"`. It is empty for a
// bare name spec.
func (m MatchSpec) ConstraintString() string {
	var parts []string
	if m.Version != nil {
		parts = append(parts, fmt.Sprintf("version=%q", strings.ReplaceAll(m.Version.String(), " ", "")))
	}
	if m.Build != "" {
		parts = append(parts, fmt.Sprintf("build=%q", m.Build))
	}
	if m.BuildNumber != nil {
		parts = append(parts, "build_number"+m.BuildNumber.String())
	}
	if m.MD5 != "" {
		parts = append(parts, "md5="+m.MD5)
	}
	if m.SHA256 != "" {
		parts = append(parts, "sha256="+m.SHA256)
	}
	return strings.Join(parts, ",")
}

// Contains tests r against the spec under contains-except-channel
// semantics: channel and subdir are never compared, so records from any
// channel can satisfy the spec during a solve.
func (m MatchSpec) Contains(r Record) bool {
	if r.RecordName() != m.Name {
		return false
	}
	if m.Version != nil && !m.Version.Match(r.RecordVersion()) {
		return false
	}
	if m.Build != "" && !matchBuildGlob(m.Build, r.RecordBuildString()) {
		return false
	}
	if m.BuildNumber != nil && !m.BuildNumber.Matches(r.RecordBuildNumber()) {
		return false
	}
	if m.MD5 != "" && !strings.EqualFold(m.MD5, r.RecordMD5()) {
		return false
	}
	if m.SHA256 != "" && !strings.EqualFold(m.SHA256, r.RecordSHA256()) {
		return false
	}
	return true
}

func matchBuildGlob(pattern, build string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.ContainsAny(pattern, "*?") {
		return pattern == build
	}
	// build strings never contain separators, so path matching is a plain glob
	ok, err := path.Match(pattern, build)
	return err == nil && ok
}
