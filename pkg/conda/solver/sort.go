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
	"cmp"
	"slices"

	"github.com/jjerphan/mamba/pkg/conda/version"
)

// bestVersion is the cached summary of a version set: the highest matching
// version among the candidates of the constrained name, and the number of
// track features on that representative record.
type bestVersion struct {
	version       version.Version
	trackFeatures int
	found         bool
}

// SortCandidates orders a candidate slice in place, most preferred first.
// The order is a strict weak order over: fewer track features, higher
// version, higher build number, better dependencies, higher timestamp.
func (db *Database) SortCandidates(ids []SolvableID) {
	slices.SortFunc(ids, db.compareCandidates)
}

// compareCandidates returns a negative value when a is preferred over b.
func (db *Database) compareCandidates(a, b SolvableID) int {
	ra, rb := db.Record(a), db.Record(b)

	// track features are anti-preferences, regardless of version
	if c := cmp.Compare(len(ra.TrackFeatures), len(rb.TrackFeatures)); c != 0 {
		return c
	}
	if c := ra.ParsedVersion.Compare(rb.ParsedVersion); c != 0 {
		return -c
	}
	if c := cmp.Compare(ra.BuildNumber, rb.BuildNumber); c != 0 {
		return -c
	}
	// variants of the same version and build: compare what they pull in
	if score := db.compareDependencies(a, b); score != 0 {
		return -score
	}
	if c := cmp.Compare(ra.Timestamp, rb.Timestamp); c != 0 {
		return -c
	}
	// stable fallback keeps the order deterministic
	return cmp.Compare(a, b)
}

// compareDependencies scores candidate a against candidate b by the
// dependencies they share by name: a dependency asking for a higher best
// version earns a point, one dragging in extra track features costs a
// hundred. Positive means a is preferred.
func (db *Database) compareDependencies(a, b SolvableID) int {
	depsA := db.dependencyNameMap(a)
	depsB := db.dependencyNameMap(b)

	score := 0
	for name, vsA := range depsA {
		vsB, ok := depsB[name]
		if !ok {
			continue
		}
		bestA := db.bestVersionFor(vsA)
		bestB := db.bestVersionFor(vsB)
		if !bestA.found || !bestB.found {
			continue
		}
		switch {
		case bestA.trackFeatures > bestB.trackFeatures:
			score -= 100
		case bestA.trackFeatures < bestB.trackFeatures:
			score += 100
		}
		switch bestA.version.Compare(bestB.version) {
		case 1:
			score++
		case -1:
			score--
		}
	}
	return score
}

func (db *Database) dependencyNameMap(id SolvableID) map[NameID]VersionSetID {
	reqs := db.requirements[int(id)]
	out := make(map[NameID]VersionSetID, len(reqs))
	for _, vs := range reqs {
		// on duplicate names the first spec wins, mirroring record order
		name := db.VersionSetName(vs)
		if _, ok := out[name]; !ok {
			out[name] = vs
		}
	}
	return out
}

// bestVersionFor returns the memoized summary for a version set. Concurrent
// callers may race to compute the same entry; the computation is
// deterministic, so whichever write lands is correct.
func (db *Database) bestVersionFor(vs VersionSetID) bestVersion {
	if cached, ok := db.bestVersions.Load(vs); ok {
		return cached.(bestVersion)
	}
	computed := db.computeBestVersion(vs)
	db.bestVersions.Store(vs, computed)
	return computed
}

func (db *Database) computeBestVersion(vs VersionSetID) bestVersion {
	name := db.VersionSetName(vs)
	matching := db.FilterCandidates(db.candidates[name], vs, false)
	var best bestVersion
	for _, id := range matching {
		record := db.Record(id)
		if !best.found || best.version.LessThan(record.ParsedVersion) {
			best = bestVersion{
				version:       record.ParsedVersion,
				trackFeatures: len(record.TrackFeatures),
				found:         true,
			}
		}
	}
	return best
}

// WarmBestVersionCache precomputes every best-version summary. Calling it
// at the end of the build phase makes the solve phase write-free.
func (db *Database) WarmBestVersionCache() {
	for id := range db.specs {
		db.bestVersionFor(VersionSetID(id))
	}
}
