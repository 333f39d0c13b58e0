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
	"strconv"
	"strings"
)

// tokenRegex splits one version component into runs of digits and runs of
// letters, e.g. "0a1" -> ["0", "a", "1"].
var tokenRegex = regexp.MustCompile(`[0-9]+|[^0-9._\-+!]+`)

// Version is a parsed conda version string. Versions are totally ordered:
// epoch first, then release components, then the local version. Within a
// component, "dev" sorts below everything, "post" above everything, plain
// strings below numbers.
type Version struct {
	raw     string
	epoch   int
	release [][]token
	local   [][]token
}

type token struct {
	num     int
	str     string
	isNum   bool
	isDev   bool
	isPost  bool
	isInfin bool // "post" sorts as positive infinity
}

const (
	greater = 1
	equal   = 0
	less    = -1
)

// Parse parses a conda version string such as "1.5.1", "2!1.0.post1" or
// "1.0.0rc1+build.2". Parsing is case-insensitive; the original spelling is
// preserved for String.
func Parse(version string) (Version, error) {
	v := Version{raw: version}
	s := strings.ToLower(strings.TrimSpace(version))
	if s == "" {
		return Version{}, fmt.Errorf("invalid version %q: empty string", version)
	}

	// epoch
	if bang := strings.IndexByte(s, '!'); bang >= 0 {
		epoch, err := strconv.Atoi(s[:bang])
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: epoch is not a number", version)
		}
		v.epoch = epoch
		s = s[bang+1:]
	}

	// local version
	if plus := strings.IndexByte(s, '+'); plus >= 0 {
		local, err := parseComponents(s[plus+1:])
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", version, err)
		}
		v.local = local
		s = s[:plus]
	}

	release, err := parseComponents(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", version, err)
	}
	v.release = release
	return v, nil
}

// MustParse is Parse for statically known versions, panicking on error.
func MustParse(version string) Version {
	v, err := Parse(version)
	if err != nil {
		panic(err)
	}
	return v
}

func parseComponents(s string) ([][]token, error) {
	if s == "" {
		return nil, fmt.Errorf("empty version segment")
	}
	// "_" and "-" act as component separators, like ".".
	s = strings.NewReplacer("_", ".", "-", ".").Replace(s)
	parts := strings.Split(s, ".")
	components := make([][]token, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("empty version component in %q", s)
		}
		runs := tokenRegex.FindAllString(part, -1)
		if len(runs) == 0 || strings.Join(runs, "") != part {
			return nil, fmt.Errorf("unparsable version component %q", part)
		}
		component := make([]token, 0, len(runs)+1)
		// a component starting with letters gets an implicit leading zero,
		// so "alpha" compares like "0alpha"
		if !isDigit(runs[0][0]) {
			component = append(component, token{isNum: true})
		}
		for _, run := range runs {
			component = append(component, makeToken(run))
		}
		components = append(components, component)
	}
	return components, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func makeToken(run string) token {
	if isDigit(run[0]) {
		// numeric runs are bounded in practice; saturate on overflow
		n, err := strconv.Atoi(run)
		if err != nil {
			n = int(^uint(0) >> 1)
		}
		return token{num: n, isNum: true}
	}
	switch run {
	case "post":
		return token{str: run, isPost: true, isInfin: true}
	case "dev":
		return token{str: run, isDev: true}
	default:
		return token{str: run}
	}
}

func (v Version) String() string {
	return v.raw
}

// Epoch returns the version epoch, zero when absent.
func (v Version) Epoch() int {
	return v.epoch
}

// Compare returns -1, 0 or 1 depending on whether v sorts before, equal to
// or after other.
func (v Version) Compare(other Version) int {
	if v.epoch != other.epoch {
		if v.epoch > other.epoch {
			return greater
		}
		return less
	}
	if c := compareComponents(v.release, other.release); c != equal {
		return c
	}
	return compareComponents(v.local, other.local)
}

// Equal reports whether v and other occupy the same point in the order;
// "1.0" and "1.0.0" are equal.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == equal
}

// LessThan reports v < other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) == less
}

func compareComponents(a, b [][]token) int {
	n := max(len(a), len(b))
	zero := []token{{isNum: true}}
	for i := 0; i < n; i++ {
		ca, cb := zero, zero
		if i < len(a) {
			ca = a[i]
		}
		if i < len(b) {
			cb = b[i]
		}
		if c := compareComponent(ca, cb); c != equal {
			return c
		}
	}
	return equal
}

func compareComponent(a, b []token) int {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		ta, tb := token{isNum: true}, token{isNum: true}
		if i < len(a) {
			ta = a[i]
		}
		if i < len(b) {
			tb = b[i]
		}
		if c := compareToken(ta, tb); c != equal {
			return c
		}
	}
	return equal
}

func compareToken(a, b token) int {
	switch {
	case a.isInfin || b.isInfin:
		if a.isInfin && b.isInfin {
			return equal
		}
		if a.isInfin {
			return greater
		}
		return less
	case a.isDev || b.isDev:
		if a.isDev && b.isDev {
			return equal
		}
		if a.isDev {
			return less
		}
		return greater
	case a.isNum && b.isNum:
		switch {
		case a.num > b.num:
			return greater
		case a.num < b.num:
			return less
		}
		return equal
	case a.isNum != b.isNum:
		// strings are pre-releases relative to numbers: "1.0a" < "1.0"
		if a.isNum {
			return greater
		}
		return less
	default:
		return strings.Compare(a.str, b.str)
	}
}

// StartsWith reports whether v matches prefix component-wise, the semantics
// of a "1.7.*" or "=1.7" constraint. Comparison stops at the shape of the
// prefix, so 1.7, 1.7.0 and 1.7rc1 all start with 1.7.
func (v Version) StartsWith(prefix Version) bool {
	if v.epoch != prefix.epoch {
		return false
	}
	if !componentsStartWith(v.release, prefix.release) {
		return false
	}
	if len(prefix.local) == 0 {
		return true
	}
	return componentsStartWith(v.local, prefix.local)
}

func componentsStartWith(full, prefix [][]token) bool {
	zero := []token{{isNum: true}}
	for i, pc := range prefix {
		fc := zero
		if i < len(full) {
			fc = full[i]
		}
		last := i == len(prefix)-1
		if last {
			if !componentStartsWith(fc, pc) {
				return false
			}
			continue
		}
		if compareComponent(fc, pc) != equal {
			return false
		}
	}
	return true
}

func componentStartsWith(full, prefix []token) bool {
	for i, pt := range prefix {
		if i >= len(full) {
			// an implicit zero still matches a numeric 0 prefix token
			if pt.isNum && pt.num == 0 {
				continue
			}
			return false
		}
		if compareToken(full[i], pt) != equal {
			return false
		}
	}
	return true
}
