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
	"strconv"
	"strings"

	"github.com/crillab/gophersat/bf"
)

// Problem is a solve request in interned form.
type Problem struct {
	Requirements []VersionSetID
	Constrains   []VersionSetID
}

// Engine is a solve engine. It reaches the interned data exclusively
// through the DependencyProvider callbacks, so any engine honoring this
// contract can be swapped in.
type Engine interface {
	Solve(ctx context.Context, provider DependencyProvider, problem Problem) ([]SolvableID, error)
}

// NoSolutionError reports an unsatisfiable problem with a human-readable
// reason. No partial plan accompanies it.
type NoSolutionError struct {
	Reason string
}

func (e *NoSolutionError) Error() string {
	return "no solution: " + e.Reason
}

// SATEngine is the default engine. It expands the dependency closure of
// the requirements into a boolean formula via gophersat and then fixes one
// candidate per package greedily, in the provider's preference order,
// keeping the formula satisfiable at every step.
type SATEngine struct{}

func (SATEngine) Solve(ctx context.Context, provider DependencyProvider, problem Problem) ([]SolvableID, error) {
	enc := &encoder{
		provider: provider,
		expanded: map[SolvableID]bool{},
		positive: map[NameID][]SolvableID{},
		seen:     map[SolvableID]bool{},
	}
	if err := enc.encode(ctx, problem); err != nil {
		return nil, err
	}
	if len(enc.clauses) == 0 {
		return nil, nil
	}

	formula := bf.And(enc.clauses...)
	if model := bf.Solve(formula); model == nil {
		return nil, &NoSolutionError{Reason: enc.unsatReason(problem)}
	}
	return enc.selectPlan(ctx, formula, problem)
}

type encoder struct {
	provider DependencyProvider
	clauses  []bf.Formula

	expanded map[SolvableID]bool
	queue    []SolvableID

	names    []NameID               // discovery order
	positive map[NameID][]SolvableID // candidates appearing positively, per name
	seen     map[SolvableID]bool

	// dead-end notes collected during encoding, for the unsat explanation
	notes []string
}

func solvableVar(id SolvableID) bf.Formula {
	return bf.Var("s" + strconv.FormatUint(uint64(id), 10))
}

// encode builds the clause set: the root requirements, the dependency
// closure of every reachable candidate, the root constraints, and
// at-most-one clauses per package name.
func (enc *encoder) encode(ctx context.Context, problem Problem) error {
	for _, vs := range problem.Requirements {
		matching := enc.matching(vs)
		if len(matching) == 0 {
			return &NoSolutionError{Reason: enc.nothingProvides(vs)}
		}
		enc.clauses = append(enc.clauses, orSolvables(matching))
		enc.markPositive(matching)
	}

	for len(enc.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := enc.queue[0]
		enc.queue = enc.queue[1:]
		if enc.expanded[id] {
			continue
		}
		enc.expanded[id] = true
		enc.expand(id)
	}

	for _, vs := range problem.Constrains {
		for _, violating := range enc.violating(vs) {
			enc.clauses = append(enc.clauses, bf.Not(solvableVar(violating)))
		}
	}

	for _, name := range enc.names {
		candidates := enc.positive[name]
		for i := 0; i < len(candidates); i++ {
			for j := i + 1; j < len(candidates); j++ {
				enc.clauses = append(enc.clauses,
					bf.Or(bf.Not(solvableVar(candidates[i])), bf.Not(solvableVar(candidates[j]))))
			}
		}
	}
	return nil
}

func (enc *encoder) expand(id SolvableID) {
	deps := enc.provider.GetDependencies(id)
	self := solvableVar(id)
	for _, vs := range deps.Requirements {
		matching := enc.matching(vs)
		if len(matching) == 0 {
			// the candidate is a dead end; forbid it and remember why
			enc.clauses = append(enc.clauses, bf.Not(self))
			enc.notes = append(enc.notes,
				enc.provider.DisplaySolvable(id)+" requires "+enc.requirementString(vs)+", which "+enc.nothingProvides(vs))
			continue
		}
		enc.clauses = append(enc.clauses, bf.Or(bf.Not(self), orSolvables(matching)))
		enc.markPositive(matching)
	}
	for _, vs := range deps.Constrains {
		for _, violating := range enc.violating(vs) {
			enc.clauses = append(enc.clauses, bf.Or(bf.Not(self), bf.Not(solvableVar(violating))))
		}
	}
}

func (enc *encoder) matching(vs VersionSetID) []SolvableID {
	name := enc.provider.VersionSetName(vs)
	candidates := enc.provider.GetCandidates(name)
	return enc.provider.FilterCandidates(candidates.Candidates, vs, false)
}

func (enc *encoder) violating(vs VersionSetID) []SolvableID {
	name := enc.provider.VersionSetName(vs)
	candidates := enc.provider.GetCandidates(name)
	return enc.provider.FilterCandidates(candidates.Candidates, vs, true)
}

func (enc *encoder) markPositive(ids []SolvableID) {
	for _, id := range ids {
		if enc.seen[id] {
			continue
		}
		enc.seen[id] = true
		name := enc.provider.SolvableName(id)
		if _, ok := enc.positive[name]; !ok {
			enc.names = append(enc.names, name)
		}
		enc.positive[name] = append(enc.positive[name], id)
		enc.queue = append(enc.queue, id)
	}
}

func orSolvables(ids []SolvableID) bf.Formula {
	vars := make([]bf.Formula, len(ids))
	for i, id := range ids {
		vars[i] = solvableVar(id)
	}
	return bf.Or(vars...)
}

func (enc *encoder) requirementString(vs VersionSetID) string {
	name := enc.provider.DisplayName(enc.provider.VersionSetName(vs))
	return name + " " + enc.provider.DisplayVersionSet(vs)
}

func (enc *encoder) nothingProvides(vs VersionSetID) string {
	return "nothing provides " + enc.requirementString(vs)
}

func (enc *encoder) unsatReason(problem Problem) string {
	reqs := make([]string, len(problem.Requirements))
	for i, vs := range problem.Requirements {
		reqs[i] = enc.requirementString(vs)
	}
	reason := "the following requirements are in conflict: " + strings.Join(reqs, ", ")
	if len(enc.notes) > 0 {
		reason += " (" + strings.Join(enc.notes, "; ") + ")"
	}
	return reason
}

// selectPlan fixes one candidate per required package, walking requirements
// breadth-first and preferring candidates in the provider's sort order. The
// formula stays satisfiable after every fixed choice, so the walk cannot
// dead-end.
func (enc *encoder) selectPlan(ctx context.Context, formula bf.Formula, problem Problem) ([]SolvableID, error) {
	var (
		fixed      []bf.Formula
		plan       []SolvableID
		planByName = map[NameID]SolvableID{}
		worklist   = append([]VersionSetID{}, problem.Requirements...)
	)
	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vs := worklist[0]
		worklist = worklist[1:]

		name := enc.provider.VersionSetName(vs)
		if chosen, ok := planByName[name]; ok {
			// at-most-one per name means the chosen candidate must satisfy
			// every further requirement on it
			if len(enc.provider.FilterCandidates([]SolvableID{chosen}, vs, false)) == 0 {
				return nil, &NoSolutionError{Reason: enc.unsatReason(problem)}
			}
			continue
		}

		matching := enc.matching(vs)
		enc.provider.SortCandidates(matching)

		var picked *SolvableID
		for _, candidate := range matching {
			trial := bf.And(append(append([]bf.Formula{formula}, fixed...), solvableVar(candidate))...)
			if bf.Solve(trial) != nil {
				c := candidate
				picked = &c
				break
			}
		}
		if picked == nil {
			return nil, &NoSolutionError{Reason: enc.unsatReason(problem)}
		}

		fixed = append(fixed, solvableVar(*picked))
		planByName[name] = *picked
		plan = append(plan, *picked)
		worklist = append(worklist, enc.provider.GetDependencies(*picked).Requirements...)
	}
	return plan, nil
}
