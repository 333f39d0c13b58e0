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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterCandidatesPartition(t *testing.T) {
	db := testDatabase(t)

	vs, ok, err := db.ParseVersionSet("numpy >=2.0")
	require.NoError(t, err)
	require.True(t, ok)

	all := db.GetCandidates(db.VersionSetName(vs)).Candidates
	require.Len(t, all, 2)
	input := slices.Clone(all)

	matching := db.FilterCandidates(all, vs, false)
	rejected := db.FilterCandidates(all, vs, true)

	// the two filters partition the input and preserve its order
	require.Len(t, matching, 1)
	require.Len(t, rejected, 1)
	require.Equal(t, "2.0.1", db.Record(matching[0]).Version)
	require.Equal(t, "1.26.4", db.Record(rejected[0]).Version)
	require.Equal(t, input, all)
}

func TestFilterCandidatesExactVersion(t *testing.T) {
	db := NewDatabase()
	for _, r := range []struct {
		version string
		build   string
	}{
		{"1.4.0", "py310_0"},
		{"1.5.0", "py310_1"},
		{"1.5.1", "py310_0"},
		{"1.5.1", "py310_2"},
	} {
		addTestRecord(t, db, &PackageRecord{Name: "scikit-learn", Version: r.version, BuildString: r.build})
	}

	vs, ok, err := db.ParseVersionSet("scikit-learn==1.5.1")
	require.NoError(t, err)
	require.True(t, ok)

	all := db.GetCandidates(db.VersionSetName(vs)).Candidates
	matching := db.FilterCandidates(all, vs, false)
	rejected := db.FilterCandidates(all, vs, true)
	require.Equal(t, all[2:], matching)
	require.Equal(t, all[:2], rejected)
}

func TestFilterCandidatesBareName(t *testing.T) {
	db := testDatabase(t)

	vs, ok, err := db.ParseVersionSet("python")
	require.NoError(t, err)
	require.True(t, ok)

	all := db.GetCandidates(db.VersionSetName(vs)).Candidates
	require.Equal(t, all, db.FilterCandidates(all, vs, false))
	require.Empty(t, db.FilterCandidates(all, vs, true))
}

func TestGetCandidatesIsolated(t *testing.T) {
	db := testDatabase(t)
	name := db.AllocName("python")

	first := db.GetCandidates(name)
	first.Candidates[0] = SolvableID(999)

	// a caller mutating its copy must not corrupt the index
	second := db.GetCandidates(name)
	require.NotEqual(t, SolvableID(999), second.Candidates[0])
}

func TestGetDependenciesOrder(t *testing.T) {
	db := testDatabase(t)

	vs, _, err := db.ParseVersionSet("scikit-learn ==1.5.1")
	require.NoError(t, err)
	ids := db.FilterCandidates(db.GetCandidates(db.VersionSetName(vs)).Candidates, vs, false)
	require.Len(t, ids, 1)

	deps := db.GetDependencies(ids[0])
	require.Empty(t, deps.Constrains)

	var names []string
	for _, req := range deps.Requirements {
		names = append(names, db.DisplayName(db.VersionSetName(req)))
	}
	// requirement order follows the depends list of the record
	require.Equal(t, []string{"python", "joblib", "numpy", "scipy", "threadpoolctl"}, names)
}

func TestDisplayOperations(t *testing.T) {
	db := testDatabase(t)

	numpy := db.AllocName("numpy")
	require.Equal(t, "numpy", db.DisplayName(numpy))

	ids := db.GetCandidates(numpy).Candidates
	require.Equal(t, "numpy-1.26.4-py312heda63a1_0", db.DisplaySolvable(ids[0]))
	require.Equal(t, "numpy 1.26.4|2.0.1", db.DisplayMergedSolvables(ids))
	require.Empty(t, db.DisplayMergedSolvables(nil))

	constrained, _, err := db.ParseVersionSet("numpy >=2.0")
	require.NoError(t, err)
	require.Equal(t, `version=">=2.0"`, db.DisplayVersionSet(constrained))

	bare, _, err := db.ParseVersionSet("numpy")
	require.NoError(t, err)
	// a bare name constrains nothing; the name itself is never rendered
	require.Equal(t, "*", db.DisplayVersionSet(bare))
}
