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
	"slices"
	"strings"
)

// Candidates is the result of a GetCandidates query. Favored and Locked are
// hints for the engine; the base provider never sets them.
type Candidates struct {
	Candidates []SolvableID
	Favored    *SolvableID
	Locked     *SolvableID
}

// Dependencies lists the interned requirement and constraint specs of a
// solvable, in record order.
type Dependencies struct {
	Requirements []VersionSetID
	Constrains   []VersionSetID
}

// DependencyProvider is the callback surface a solve engine works against.
// All operations are pure for a fixed database and safe for concurrent use.
type DependencyProvider interface {
	DisplayName(NameID) string
	DisplaySolvable(SolvableID) string
	DisplayVersionSet(VersionSetID) string
	DisplayMergedSolvables([]SolvableID) string
	VersionSetName(VersionSetID) NameID
	SolvableName(SolvableID) NameID
	GetCandidates(NameID) Candidates
	SortCandidates([]SolvableID)
	FilterCandidates(ids []SolvableID, vs VersionSetID, inverse bool) []SolvableID
	GetDependencies(SolvableID) Dependencies
}

var _ DependencyProvider = (*Database)(nil)

// DisplayName returns the package name behind a NameID.
func (db *Database) DisplayName(id NameID) string {
	return db.names.lookup(uint32(id))
}

// DisplaySolvable renders a record as name-version-build.
func (db *Database) DisplaySolvable(id SolvableID) string {
	return db.Record(id).String()
}

// DisplayVersionSet renders the constraints of a spec. The package name is
// never part of the result.
func (db *Database) DisplayVersionSet(id VersionSetID) string {
	c := db.VersionSet(id).ConstraintString()
	if c == "" {
		return "*"
	}
	return c
}

// DisplayMergedSolvables renders several records of one package as
// "name 1.0|1.1|...", versions in input order.
func (db *Database) DisplayMergedSolvables(ids []SolvableID) string {
	if len(ids) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(db.Record(ids[0]).Name)
	sb.WriteByte(' ')
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(db.Record(id).Version)
	}
	return sb.String()
}

// VersionSetName returns the name a spec constrains.
func (db *Database) VersionSetName(id VersionSetID) NameID {
	return db.specNames[int(id)]
}

// SolvableName returns the interned name of a record. The name was
// allocated when the record was, so this is a pure lookup.
func (db *Database) SolvableName(id SolvableID) NameID {
	name, _ := db.names.id(db.Record(id).Name)
	return NameID(name)
}

// GetCandidates returns the candidate-index list for a name, in allocation
// order.
func (db *Database) GetCandidates(id NameID) Candidates {
	return Candidates{Candidates: slices.Clone(db.candidates[id])}
}

// FilterCandidates retains the solvables matching the spec under
// contains-except-channel semantics, or with inverse set, exactly the ones
// that do not. Input order is preserved and the input slice is untouched.
func (db *Database) FilterCandidates(ids []SolvableID, vs VersionSetID, inverse bool) []SolvableID {
	m := db.VersionSet(vs)
	out := make([]SolvableID, 0, len(ids))
	for _, id := range ids {
		if m.Contains(db.Record(id)) != inverse {
			out = append(out, id)
		}
	}
	return out
}

// GetDependencies returns the interned requirement and constraint specs of
// a solvable, one id per parsed spec, in record order.
func (db *Database) GetDependencies(id SolvableID) Dependencies {
	return Dependencies{
		Requirements: slices.Clone(db.requirements[int(id)]),
		Constrains:   slices.Clone(db.constrains[int(id)]),
	}
}
