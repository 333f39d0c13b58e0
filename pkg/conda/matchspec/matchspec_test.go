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

package matchspec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jjerphan/mamba/pkg/conda/version"
)

type fakeRecord struct {
	name        string
	version     string
	buildString string
	buildNumber uint64
	md5         string
	sha256      string
}

func (f fakeRecord) RecordName() string            { return f.name }
func (f fakeRecord) RecordVersion() version.Version { return version.MustParse(f.version) }
func (f fakeRecord) RecordBuildString() string     { return f.buildString }
func (f fakeRecord) RecordBuildNumber() uint64     { return f.buildNumber }
func (f fakeRecord) RecordMD5() string             { return f.md5 }
func (f fakeRecord) RecordSHA256() string          { return f.sha256 }

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		version string
		build   string
		channel string
		subdir  string
	}{
		{in: "numpy", name: "numpy"},
		{in: "numpy>=1.19,<2", name: "numpy", version: ">=1.19,<2"},
		{in: "numpy 1.21.*", name: "numpy", version: "1.21.*"},
		{in: "numpy 1.21.* *_openblas", name: "numpy", version: "1.21.*", build: "*_openblas"},
		{in: "conda-forge::numpy", name: "numpy", channel: "conda-forge"},
		{in: "conda-forge/linux-64::numpy>=1.19", name: "numpy", version: ">=1.19", channel: "conda-forge", subdir: "linux-64"},
		{in: `numpy[version=">=1.19,<2",build=py310*]`, name: "numpy", version: ">=1.19,<2", build: "py310*"},
		{in: "python_abi 3.10.* *_cp310", name: "python_abi", version: "3.10.*", build: "*_cp310"},
	}
	for _, tt := range tests {
		m, err := Parse(tt.in)
		require.NoErrorf(t, err, "parsing %q", tt.in)
		require.Equal(t, tt.name, m.Name)
		require.Equal(t, tt.build, m.Build)
		require.Equal(t, tt.channel, m.Channel)
		require.Equal(t, tt.subdir, m.Subdir)
		if tt.version == "" {
			require.Nil(t, m.Version)
		} else {
			require.NotNil(t, m.Version)
			require.Equal(t, tt.version, m.Version.String())
		}
	}
}

func TestParseBuildNumber(t *testing.T) {
	m, err := Parse("numpy[build_number>=2]")
	require.NoError(t, err)
	require.NotNil(t, m.BuildNumber)
	require.True(t, m.BuildNumber.Matches(2))
	require.True(t, m.BuildNumber.Matches(7))
	require.False(t, m.BuildNumber.Matches(1))

	m, err = Parse("numpy[build_number=0]")
	require.NoError(t, err)
	require.True(t, m.BuildNumber.Matches(0))
	require.False(t, m.BuildNumber.Matches(1))
}

func TestParseHashes(t *testing.T) {
	m, err := Parse("numpy[md5=ABCDEF0123456789abcdef0123456789]")
	require.NoError(t, err)
	require.Equal(t, "abcdef0123456789abcdef0123456789", m.MD5)
}

func TestParseErrors(t *testing.T) {
	for _, bad := range []string{"", "   ", ">=1.0", "numpy[build=py310", "a b c d", "numpy>=,<"} {
		_, err := Parse(bad)
		require.Errorf(t, err, "expected %q to fail", bad)
	}
}

func TestCanonicalString(t *testing.T) {
	// equivalent spellings intern to the same canonical key
	a := MustParse("numpy >=1.19,<2")
	b := MustParse(`numpy[version=">=1.19,<2"]`)
	require.Equal(t, a.String(), b.String())

	bare := MustParse("numpy")
	require.Equal(t, "numpy", bare.String())
	require.Equal(t, "", bare.ConstraintString())

	// the constraint string never contains the package name
	require.NotContains(t, a.ConstraintString(), "numpy")
}

func TestContains(t *testing.T) {
	record := fakeRecord{
		name:        "scikit-learn",
		version:     "1.5.0",
		buildString: "py310h981052a_0",
		buildNumber: 0,
		md5:         "9f59355eb80bed47bb0eb0b2e3e37b2c",
	}
	tests := []struct {
		spec string
		want bool
	}{
		{"scikit-learn", true},
		{"scikit-learn==1.5.0", true},
		{"scikit-learn>=1.0,<1.5.1", true},
		{"scikit-learn>=1.5.1", false},
		{"scipy", false},
		{"scikit-learn 1.5.* py310*", true},
		{"scikit-learn 1.5.* py39*", false},
		{"scikit-learn[build_number=0]", true},
		{"scikit-learn[build_number>=1]", false},
		{"scikit-learn[md5=9f59355eb80bed47bb0eb0b2e3e37b2c]", true},
		{"scikit-learn[md5=00000000000000000000000000000000]", false},
		// channel and subdir are ignored during containment
		{"conda-forge/linux-64::scikit-learn==1.5.0", true},
		{"some-other-channel::scikit-learn==1.5.0", true},
	}
	for _, tt := range tests {
		m := MustParse(tt.spec)
		require.Equalf(t, tt.want, m.Contains(record), "%q contains record", tt.spec)
	}
}
