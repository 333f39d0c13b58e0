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
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jjerphan/mamba/pkg/conda/version"
)

func addTestRecord(t *testing.T, db *Database, r *PackageRecord) SolvableID {
	t.Helper()
	r.ParsedVersion = version.MustParse(r.Version)
	id, fresh := db.addRecord(context.Background(), r)
	require.True(t, fresh)
	return id
}

func sortedBuilds(db *Database, ids []SolvableID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = db.Record(id).BuildString
	}
	return out
}

func TestSortCandidatesVersionBuildTimestamp(t *testing.T) {
	db := NewDatabase()
	addTestRecord(t, db, &PackageRecord{Name: "pkg", Version: "1.0", BuildString: "old", Timestamp: 100})
	addTestRecord(t, db, &PackageRecord{Name: "pkg", Version: "1.0", BuildString: "rebuild", BuildNumber: 1, Timestamp: 50})
	addTestRecord(t, db, &PackageRecord{Name: "pkg", Version: "1.1", BuildString: "next", Timestamp: 10})
	addTestRecord(t, db, &PackageRecord{Name: "pkg", Version: "1.0", BuildString: "fresh", Timestamp: 200})

	ids := db.GetCandidates(db.AllocName("pkg")).Candidates
	db.SortCandidates(ids)

	// version beats build number beats timestamp
	require.Equal(t, []string{"next", "rebuild", "fresh", "old"}, sortedBuilds(db, ids))
}

func TestSortCandidatesBuildNumbers(t *testing.T) {
	db := NewDatabase()
	builds := []struct {
		buildNumber uint64
		timestamp   int64
	}{
		{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 42}, {5, 1337}, {5, 2000},
	}
	for i, b := range builds {
		addTestRecord(t, db, &PackageRecord{
			Name:        "pkg",
			Version:     "1.0",
			BuildString: fmt.Sprintf("b%d", i),
			BuildNumber: b.buildNumber,
			Timestamp:   b.timestamp,
		})
	}

	ids := db.GetCandidates(db.AllocName("pkg")).Candidates
	db.SortCandidates(ids)

	var got []string
	for _, id := range ids {
		r := db.Record(id)
		got = append(got, fmt.Sprintf("%d/%d", r.BuildNumber, r.Timestamp))
	}
	require.Equal(t, []string{
		"5/2000", "5/1337", "5/42", "4/0", "3/0", "2/0", "1/0", "0/0",
	}, got)
}

func TestSortCandidatesTrackFeatures(t *testing.T) {
	db := NewDatabase()
	addTestRecord(t, db, &PackageRecord{Name: "blas", Version: "2.0", BuildString: "mkl", TrackFeatures: []string{"mkl"}})
	addTestRecord(t, db, &PackageRecord{Name: "blas", Version: "1.0", BuildString: "openblas"})

	ids := db.GetCandidates(db.AllocName("blas")).Candidates
	db.SortCandidates(ids)

	// a lower version without track features wins over a higher one with them
	require.Equal(t, []string{"openblas", "mkl"}, sortedBuilds(db, ids))
}

func TestSortCandidatesDependencyVersions(t *testing.T) {
	db := NewDatabase()
	addTestRecord(t, db, &PackageRecord{Name: "dep", Version: "1.0", BuildString: "0"})
	addTestRecord(t, db, &PackageRecord{Name: "dep", Version: "2.0", BuildString: "0"})
	addTestRecord(t, db, &PackageRecord{Name: "app", Version: "1.0", BuildString: "hb", Depends: []string{"dep <2"}})
	addTestRecord(t, db, &PackageRecord{Name: "app", Version: "1.0", BuildString: "ha", Depends: []string{"dep >=2"}})

	ids := db.GetCandidates(db.AllocName("app")).Candidates
	db.SortCandidates(ids)

	// same version and build number: the variant pulling the higher dep wins
	require.Equal(t, []string{"ha", "hb"}, sortedBuilds(db, ids))
}

func TestSortCandidatesDependencyTrackFeatures(t *testing.T) {
	db := NewDatabase()
	addTestRecord(t, db, &PackageRecord{Name: "feat", Version: "1.0", BuildString: "0"})
	addTestRecord(t, db, &PackageRecord{Name: "feat", Version: "2.0", BuildString: "0", TrackFeatures: []string{"beta"}})
	addTestRecord(t, db, &PackageRecord{Name: "app", Version: "1.0", BuildString: "ha", Depends: []string{"feat >=2"}})
	addTestRecord(t, db, &PackageRecord{Name: "app", Version: "1.0", BuildString: "hb", Depends: []string{"feat <2"}})

	ids := db.GetCandidates(db.AllocName("app")).Candidates
	db.SortCandidates(ids)

	// track features on the best dependency outweigh its higher version
	require.Equal(t, []string{"hb", "ha"}, sortedBuilds(db, ids))
}

func TestSortCandidatesDeterministic(t *testing.T) {
	db := testDatabase(t)
	ids := db.GetCandidates(db.AllocName("python")).Candidates

	db.SortCandidates(ids)
	want := slices.Clone(ids)
	require.Equal(t, []string{"3.12.4", "3.11.9", "3.10.14"}, func() []string {
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = db.Record(id).Version
		}
		return out
	}())

	// sorting again, or sorting any permutation, yields the same order
	db.SortCandidates(ids)
	require.Equal(t, want, ids)

	reversed := slices.Clone(want)
	slices.Reverse(reversed)
	db.SortCandidates(reversed)
	require.Equal(t, want, reversed)
}

func TestWarmBestVersionCache(t *testing.T) {
	db := testDatabase(t)
	db.WarmBestVersionCache()

	vs, _, err := db.ParseVersionSet("numpy >=1.19")
	require.NoError(t, err)
	best := db.bestVersionFor(vs)
	require.True(t, best.found)
	require.Equal(t, version.MustParse("2.0.1"), best.version)
}
