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

// Package repodata reads conda repository index files (repodata.json,
// optionally zstd-compressed) into normalized package records.
package repodata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// PackageTypes selects which of the two package dictionaries are ingested.
type PackageTypes int

const (
	// CondaOrElseTarBz2 ingests every .conda artifact, then every .tar.bz2
	// artifact whose filename stem is not already covered.
	CondaOrElseTarBz2 PackageTypes = iota
	// CondaOnly ingests only the "packages.conda" dictionary.
	CondaOnly
	// TarBz2Only ingests only the legacy "packages" dictionary.
	TarBz2Only
)

// maxTimestampSeconds is 9999-12-31T23:59:59Z. Conda repodata mixes second
// and millisecond timestamps; anything larger than this is milliseconds.
const maxTimestampSeconds = 253402300799

// ErrNotFound reports a missing or unreadable index file.
var ErrNotFound = errors.New("repodata not found")

// ParseError reports an index file that exists but cannot be understood.
type ParseError struct {
	Path    string
	Wrapped error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing repodata %q: %s", e.Path, e.Wrapped.Error())
}

func (e *ParseError) Unwrap() error { return e.Wrapped }

// Repodata is a parsed repository index document.
type Repodata struct {
	Info            *Info                      `json:"info"`
	RepodataVersion int                        `json:"repodata_version"`
	Packages        map[string]Record          `json:"packages"`
	CondaPackages   map[string]Record          `json:"packages.conda"`
	Signatures      map[string]json.RawMessage `json:"signatures"`
	Removed         []string                   `json:"removed"`
}

// Info is the repodata "info" section.
type Info struct {
	Subdir  string `json:"subdir"`
	BaseURL string `json:"base_url"`
}

// Record is one package entry of a repodata dictionary. Name, Version,
// Build and BuildNumber are mandatory; a record missing any of them fails
// Validate and is skipped by the ingester.
type Record struct {
	Name          string        `json:"name"`
	Version       string        `json:"version"`
	Build         string        `json:"build"`
	BuildNumber   *uint64       `json:"build_number"`
	Subdir        string        `json:"subdir"`
	Size          uint64        `json:"size"`
	MD5           string        `json:"md5"`
	SHA256        string        `json:"sha256"`
	License       string        `json:"license"`
	NoArch        NoArch        `json:"noarch"`
	Timestamp     int64         `json:"timestamp"`
	Depends       []string      `json:"depends"`
	Constrains    []string      `json:"constrains"`
	TrackFeatures TrackFeatures `json:"track_features"`
}

// Validate reports whether the record carries every mandatory field.
func (r *Record) Validate() error {
	switch {
	case r.Name == "":
		return errors.New("missing name")
	case r.Version == "":
		return errors.New("missing version")
	case r.Build == "":
		return errors.New("missing build")
	case r.BuildNumber == nil:
		return errors.New("missing build_number")
	}
	return nil
}

// TimestampSeconds returns the record timestamp normalized to seconds.
func (r *Record) TimestampSeconds() int64 {
	if r.Timestamp > maxTimestampSeconds {
		return r.Timestamp / 1000
	}
	return r.Timestamp
}

// NoArch is the record "noarch" field, which appears in the wild as a bool
// or as a string ("python", "generic").
type NoArch string

// IsNoArch reports whether the noarch flag is set at all.
func (n NoArch) IsNoArch() bool { return n != "" }

func (n *NoArch) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*n = "generic"
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("noarch must be a bool or a string: %w", err)
	}
	*n = NoArch(s)
	return nil
}

// TrackFeatures is the record "track_features" field: an array, or a
// comma/whitespace delimited string. Both normalize into an ordered list.
type TrackFeatures []string

func (t *TrackFeatures) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("track_features must be an array or a string: %w", err)
	}
	*t = TrackFeatures(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}))
	if len(*t) == 0 {
		*t = nil
	}
	return nil
}

// Load reads a repodata file from disk. Files ending in ".zst" are
// decompressed transparently.
func Load(path string) (*Repodata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrNotFound, path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, &ParseError{Path: path, Wrapped: err}
		}
		defer zr.Close()
		r = zr
	}
	return Parse(r, path)
}

// Parse decodes a repodata document. The path is used for error reporting
// only.
func Parse(r io.Reader, path string) (*Repodata, error) {
	var rd Repodata
	dec := json.NewDecoder(r)
	if err := dec.Decode(&rd); err != nil {
		return nil, &ParseError{Path: path, Wrapped: err}
	}
	if rd.Info == nil {
		return nil, &ParseError{Path: path, Wrapped: errors.New(`missing "info" section`)}
	}
	return &rd, nil
}

// Entry is one (filename, record) pair selected for ingestion.
type Entry struct {
	Filename string
	Record   Record
}

// Select returns the entries to ingest for the given selector. Within each
// dictionary entries are ordered by filename so that ingestion, and with it
// solvable allocation order, is deterministic.
func (rd *Repodata) Select(types PackageTypes) []Entry {
	var out []Entry
	switch types {
	case CondaOnly:
		out = appendSorted(out, rd.CondaPackages)
	case TarBz2Only:
		out = appendSorted(out, rd.Packages)
	case CondaOrElseTarBz2:
		out = appendSorted(out, rd.CondaPackages)
		seen := make(map[string]bool, len(out))
		for _, e := range out {
			seen[stem(e.Filename)] = true
		}
		for _, e := range sortedEntries(rd.Packages) {
			if !seen[stem(e.Filename)] {
				out = append(out, e)
			}
		}
	}
	return out
}

func appendSorted(out []Entry, pkgs map[string]Record) []Entry {
	return append(out, sortedEntries(pkgs)...)
}

func sortedEntries(pkgs map[string]Record) []Entry {
	names := make([]string, 0, len(pkgs))
	for name := range pkgs {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Filename: name, Record: pkgs[name]})
	}
	return entries
}

// stem strips the archive extension from a package filename, so that
// "zlib-1.2.13-h5eee18b_0.conda" and "zlib-1.2.13-h5eee18b_0.tar.bz2"
// collide.
func stem(filename string) string {
	for _, ext := range []string{".conda", ".tar.bz2", ".tar.gz", ".tar.zst"} {
		if strings.HasSuffix(filename, ext) {
			return strings.TrimSuffix(filename, ext)
		}
	}
	return filename
}

// PackageURL joins the repository URL prefix with a package filename.
// With repodata_version >= 2, info.base_url overrides the prefix (CEP-15).
func (rd *Repodata) PackageURL(repoURL, filename string) string {
	base := repoURL
	if rd.RepodataVersion >= 2 && rd.Info.BaseURL != "" {
		base = rd.Info.BaseURL
	}
	return strings.TrimSuffix(base, "/") + "/" + filename
}
