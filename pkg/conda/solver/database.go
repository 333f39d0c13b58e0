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

// Package solver hosts the interned package database, the dependency
// provider surface consumed by the SAT engine, and the solve driver.
package solver

import (
	"context"
	"fmt"
	"sync"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"

	"github.com/jjerphan/mamba/pkg/conda/matchspec"
	"github.com/jjerphan/mamba/pkg/conda/repodata"
	"github.com/jjerphan/mamba/pkg/conda/version"
)

// MatchSpecError reports a spec string that cannot be parsed even after
// normalization.
type MatchSpecError struct {
	Spec    string
	Wrapped error
}

func (e *MatchSpecError) Error() string {
	return fmt.Sprintf("parsing match spec %q: %s", e.Spec, e.Wrapped.Error())
}

func (e *MatchSpecError) Unwrap() error { return e.Wrapped }

// Database interns package records, names, strings and match specs, and
// serves the dependency-provider queries the engine issues during a solve.
//
// A Database is populated single-threaded during the build phase and is
// read-only afterwards; the best-version cache is the only state written
// during a solve and is safe for concurrent use.
type Database struct {
	names        *pool[string]
	strs         *pool[string]
	versionSets  *pool[string]
	specs        []matchspec.MatchSpec // indexed by VersionSetID
	specNames    []NameID              // indexed by VersionSetID
	solvableKeys *pool[string]
	solvables    []*PackageRecord // indexed by SolvableID
	requirements [][]VersionSetID // indexed by SolvableID, record order
	constrains   [][]VersionSetID // indexed by SolvableID, record order

	// candidate index: per name, solvables in allocation order
	candidates map[NameID][]SolvableID

	// best-version summaries per VersionSetID, populated lazily during
	// sorting; insert-only and idempotent, so racing writers are harmless
	bestVersions sync.Map // VersionSetID -> bestVersion

	platforms    []string
	channelAlias string
}

// DatabaseOption configures a Database.
type DatabaseOption func(*Database)

// WithPlatforms sets the platform list (e.g. linux-64, noarch) consulted
// for human-readable output.
func WithPlatforms(platforms ...string) DatabaseOption {
	return func(db *Database) {
		db.platforms = platforms
	}
}

// WithChannelAlias sets the channel alias URL used when rendering channels.
func WithChannelAlias(alias string) DatabaseOption {
	return func(db *Database) {
		db.channelAlias = alias
	}
}

// NewDatabase returns an empty database.
func NewDatabase(opts ...DatabaseOption) *Database {
	db := &Database{
		names:        newPool[string](),
		strs:         newPool[string](),
		versionSets:  newPool[string](),
		solvableKeys: newPool[string](),
		candidates:   map[NameID][]SolvableID{},
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Platforms returns the configured platform list.
func (db *Database) Platforms() []string { return db.platforms }

// ChannelAlias returns the configured channel alias URL.
func (db *Database) ChannelAlias() string { return db.channelAlias }

// SolvableCount returns the number of interned records.
func (db *Database) SolvableCount() int { return len(db.solvables) }

// Record returns the record behind a SolvableID.
func (db *Database) Record(id SolvableID) *PackageRecord {
	return db.solvables[int(id)]
}

// AllocName interns a package name.
func (db *Database) AllocName(name string) NameID {
	id, _ := db.names.alloc(name)
	return NameID(id)
}

// AllocString interns an arbitrary string.
func (db *Database) AllocString(s string) StringID {
	id, _ := db.strs.alloc(s)
	return StringID(id)
}

// LookupString returns the string behind a StringID.
func (db *Database) LookupString(id StringID) string {
	return db.strs.lookup(uint32(id))
}

// AllocVersionSet interns a parsed match spec, keyed by its canonical
// string so that equivalent spellings share an id.
func (db *Database) AllocVersionSet(m matchspec.MatchSpec) VersionSetID {
	id, fresh := db.versionSets.alloc(m.String())
	if fresh {
		db.specs = append(db.specs, m)
		db.specNames = append(db.specNames, db.AllocName(m.Name))
	}
	return VersionSetID(id)
}

// VersionSet returns the spec behind a VersionSetID.
func (db *Database) VersionSet(id VersionSetID) matchspec.MatchSpec {
	return db.specs[int(id)]
}

// ParseVersionSet normalizes, parses and interns a match spec string. This
// is the path both repodata dependency strings and user requirements take.
// The second result is false for vacuous specs, which match everything and
// are not interned.
func (db *Database) ParseVersionSet(s string) (VersionSetID, bool, error) {
	normalized, ok := normalizeSpec(s)
	if !ok {
		return 0, false, nil
	}
	m, err := matchspec.Parse(normalized)
	if err != nil {
		return 0, false, &MatchSpecError{Spec: s, Wrapped: err}
	}
	return db.AllocVersionSet(m), true, nil
}

// AddRepodata ingests a parsed repodata document. Records missing mandatory
// fields, or carrying a spec that does not parse even after normalization,
// are skipped with a warning; everything else is allocated into the pools
// and the candidate index. It returns the number of records added.
func (db *Database) AddRepodata(ctx context.Context, rd *repodata.Repodata, channelID, repoURL string, types repodata.PackageTypes) (int, error) {
	ctx, span := otel.Tracer("mamba").Start(ctx, "AddRepodata")
	defer span.End()
	log := clog.FromContext(ctx)

	added := 0
	for _, entry := range rd.Select(types) {
		if err := entry.Record.Validate(); err != nil {
			log.Warnf("skipping record %q: %v", entry.Filename, err)
			continue
		}
		record, err := db.buildRecord(entry, rd, channelID, repoURL)
		if err != nil {
			log.Warnf("skipping record %q: %v", entry.Filename, err)
			continue
		}
		if _, fresh := db.addRecord(ctx, record); fresh {
			added++
		}
	}
	log.Debugf("ingested %d records from channel %q", added, channelID)
	return added, nil
}

func (db *Database) buildRecord(entry repodata.Entry, rd *repodata.Repodata, channelID, repoURL string) (*PackageRecord, error) {
	raw := entry.Record
	parsed, err := version.Parse(raw.Version)
	if err != nil {
		return nil, err
	}
	subdir := raw.Subdir
	if subdir == "" {
		subdir = rd.Info.Subdir
	}
	return &PackageRecord{
		Name:          raw.Name,
		Version:       raw.Version,
		ParsedVersion: parsed,
		BuildString:   raw.Build,
		BuildNumber:   *raw.BuildNumber,
		Subdir:        subdir,
		Size:          raw.Size,
		MD5:           raw.MD5,
		SHA256:        raw.SHA256,
		License:       raw.License,
		NoArch:        raw.NoArch,
		Timestamp:     raw.TimestampSeconds(),
		Depends:       raw.Depends,
		Constrains:    raw.Constrains,
		TrackFeatures: raw.TrackFeatures,
		Channel:       channelID,
		PackageURL:    rd.PackageURL(repoURL, entry.Filename),
		Filename:      entry.Filename,
	}, nil
}

// addRecord interns a fully built record. All of its dependency and
// constraint specs are parsed up front so that a malformed spec leaves no
// trace of the record in the pools.
func (db *Database) addRecord(ctx context.Context, record *PackageRecord) (SolvableID, bool) {
	log := clog.FromContext(ctx)

	type parsedSpecs struct {
		requirements []matchspec.MatchSpec
		constrains   []matchspec.MatchSpec
	}
	var parsed parsedSpecs
	for _, group := range []struct {
		raw  []string
		into *[]matchspec.MatchSpec
	}{
		{record.Depends, &parsed.requirements},
		{record.Constrains, &parsed.constrains},
	} {
		for _, raw := range group.raw {
			normalized, ok := normalizeSpec(raw)
			if !ok {
				continue
			}
			m, err := matchspec.Parse(normalized)
			if err != nil {
				log.Warnf("skipping record %q: spec %q: %v", record.Filename, raw, err)
				return 0, false
			}
			*group.into = append(*group.into, m)
		}
	}

	id, fresh := db.solvableKeys.alloc(record.key())
	if !fresh {
		return SolvableID(id), false
	}

	requirements := make([]VersionSetID, 0, len(parsed.requirements))
	for _, m := range parsed.requirements {
		requirements = append(requirements, db.AllocVersionSet(m))
	}
	constrains := make([]VersionSetID, 0, len(parsed.constrains))
	for _, m := range parsed.constrains {
		constrains = append(constrains, db.AllocVersionSet(m))
	}

	nameID := db.AllocName(record.Name)
	db.AllocString(record.Channel)
	db.AllocString(record.Subdir)
	for _, feature := range record.TrackFeatures {
		db.AllocString(feature)
	}

	db.solvables = append(db.solvables, record)
	db.requirements = append(db.requirements, requirements)
	db.constrains = append(db.constrains, constrains)
	db.candidates[nameID] = append(db.candidates[nameID], SolvableID(id))
	return SolvableID(id), true
}

// AddVirtualPackage injects a synthetic record describing a host
// capability, e.g. AddVirtualPackage(ctx, "__glibc", "2.35", "0"). Virtual
// packages participate in the solve but are filtered from install plans.
func (db *Database) AddVirtualPackage(ctx context.Context, name, ver, buildString string) (SolvableID, error) {
	parsed, err := version.Parse(ver)
	if err != nil {
		return 0, fmt.Errorf("virtual package %q: %w", name, err)
	}
	record := &PackageRecord{
		Name:          name,
		Version:       ver,
		ParsedVersion: parsed,
		BuildString:   buildString,
		Channel:       "@virtual",
	}
	id, _ := db.addRecord(ctx, record)
	return id, nil
}
