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
	"slices"
	"strings"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
)

// Request is a solve request in string form. Specs must be installed;
// Constrains restrict what may be installed without requiring anything.
type Request struct {
	Specs      []string
	Constrains []string
}

// Solver drives a solve end to end: it interns the request, runs the
// engine against the database, and projects the result back to records.
type Solver struct {
	db     *Database
	engine Engine
}

// SolverOption configures a Solver.
type SolverOption func(*Solver)

// WithEngine swaps the solve engine.
func WithEngine(e Engine) SolverOption {
	return func(s *Solver) {
		s.engine = e
	}
}

// NewSolver returns a solver over db, using the SAT engine unless an
// option overrides it.
func NewSolver(db *Database, opts ...SolverOption) *Solver {
	s := &Solver{db: db, engine: SATEngine{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve resolves the request into an install plan: one record per package,
// sorted by name, with virtual packages filtered out. An unparsable spec
// in the request is fatal; an unsatisfiable request yields NoSolutionError.
func (s *Solver) Solve(ctx context.Context, req Request) ([]*PackageRecord, error) {
	ctx, span := otel.Tracer("mamba").Start(ctx, "Solve")
	defer span.End()
	log := clog.FromContext(ctx)

	var problem Problem
	for _, group := range []struct {
		raw  []string
		into *[]VersionSetID
	}{
		{req.Specs, &problem.Requirements},
		{req.Constrains, &problem.Constrains},
	} {
		for _, raw := range group.raw {
			vs, ok, err := s.db.ParseVersionSet(raw)
			if err != nil {
				return nil, err
			}
			if !ok {
				log.Debugf("ignoring vacuous spec %q", raw)
				continue
			}
			*group.into = append(*group.into, vs)
		}
	}

	ids, err := s.engine.Solve(ctx, s.db, problem)
	if err != nil {
		return nil, err
	}

	plan := make([]*PackageRecord, 0, len(ids))
	for _, id := range ids {
		record := s.db.Record(id)
		if record.IsVirtual() {
			continue
		}
		plan = append(plan, record)
	}
	slices.SortFunc(plan, func(a, b *PackageRecord) int {
		return strings.Compare(a.Name, b.Name)
	})
	log.Infof("solved %d specs into %d packages", len(req.Specs), len(plan))
	return plan, nil
}
