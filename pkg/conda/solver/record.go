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
	"fmt"
	"strings"

	"github.com/jjerphan/mamba/pkg/conda/repodata"
	"github.com/jjerphan/mamba/pkg/conda/version"
)

// VirtualPrefix marks virtual packages, synthetic records that stand in for
// host capabilities such as __linux or __glibc.
const VirtualPrefix = "__"

// PackageRecord is an interned package record. Records are immutable once
// allocated into the solvable pool.
type PackageRecord struct {
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	ParsedVersion version.Version `json:"-"`
	BuildString   string          `json:"build"`
	BuildNumber   uint64          `json:"build_number"`
	Subdir        string          `json:"subdir"`
	Size          uint64          `json:"size,omitempty"`
	MD5           string          `json:"md5,omitempty"`
	SHA256        string          `json:"sha256,omitempty"`
	License       string          `json:"license,omitempty"`
	NoArch        repodata.NoArch `json:"noarch,omitempty"`
	Timestamp     int64           `json:"timestamp,omitempty"`
	Depends       []string        `json:"depends,omitempty"`
	Constrains    []string        `json:"constrains,omitempty"`
	TrackFeatures []string        `json:"track_features,omitempty"`
	Channel       string          `json:"channel"`
	PackageURL    string          `json:"url,omitempty"`
	Filename      string          `json:"fn,omitempty"`
}

// IsVirtual reports whether the record is a virtual package.
func (r *PackageRecord) IsVirtual() bool {
	return strings.HasPrefix(r.Name, VirtualPrefix)
}

func (r *PackageRecord) String() string {
	return r.Name + "-" + r.Version + "-" + r.BuildString
}

// key is the interning key for the solvable pool. Records differing in any
// field map to different keys, so equality is by full record rather than by
// the name/version/build triple.
func (r *PackageRecord) key() string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%d\x00%s\x00%d\x00%s\x00%s\x00%s\x00%s\x00%d\x00%s\x00%s\x00%s\x00%s\x00%s\x00%s",
		r.Name, r.Version, r.BuildString, r.BuildNumber, r.Subdir, r.Size,
		r.MD5, r.SHA256, r.License, r.NoArch, r.Timestamp,
		strings.Join(r.Depends, "\x01"), strings.Join(r.Constrains, "\x01"),
		strings.Join(r.TrackFeatures, "\x01"), r.Channel, r.PackageURL, r.Filename)
}

// matchspec.Record implementation, so a MatchSpec can be tested directly
// against an interned record.

func (r *PackageRecord) RecordName() string             { return r.Name }
func (r *PackageRecord) RecordVersion() version.Version { return r.ParsedVersion }
func (r *PackageRecord) RecordBuildString() string      { return r.BuildString }
func (r *PackageRecord) RecordBuildNumber() uint64      { return r.BuildNumber }
func (r *PackageRecord) RecordMD5() string              { return r.MD5 }
func (r *PackageRecord) RecordSHA256() string           { return r.SHA256 }
