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

// NameID identifies an interned package name.
type NameID uint32

// StringID identifies an interned arbitrary string.
type StringID uint32

// VersionSetID identifies an interned match specification.
type VersionSetID uint32

// SolvableID identifies an interned package record.
type SolvableID uint32

// pool is a monotonically growing, insertion-order preserving bijection
// between values and dense 32-bit ids. Ids are never reused and the same
// value always maps back to the same id.
type pool[V comparable] struct {
	ids    map[V]uint32
	values []V
}

func newPool[V comparable]() *pool[V] {
	return &pool[V]{ids: make(map[V]uint32)}
}

// alloc returns the id for v, allocating a fresh one on first sight.
// The second result reports whether the id was newly allocated.
func (p *pool[V]) alloc(v V) (uint32, bool) {
	if id, ok := p.ids[v]; ok {
		return id, false
	}
	id := uint32(len(p.values))
	p.ids[v] = id
	p.values = append(p.values, v)
	return id, true
}

// id returns the id already allocated for v, without allocating. It is the
// read-only path used during the solve phase.
func (p *pool[V]) id(v V) (uint32, bool) {
	id, ok := p.ids[v]
	return id, ok
}

// lookup returns the value behind id. The id must have been allocated by
// this pool.
func (p *pool[V]) lookup(id uint32) V {
	return p.values[id]
}

func (p *pool[V]) len() int {
	return len(p.values)
}
