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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolAllocIdempotent(t *testing.T) {
	p := newPool[string]()

	zlib, fresh := p.alloc("zlib")
	require.True(t, fresh)
	python, fresh := p.alloc("python")
	require.True(t, fresh)
	require.NotEqual(t, zlib, python)

	again, fresh := p.alloc("zlib")
	require.False(t, fresh)
	require.Equal(t, zlib, again)

	require.Equal(t, "zlib", p.lookup(zlib))
	require.Equal(t, "python", p.lookup(python))
	require.Equal(t, 2, p.len())
}

func TestPoolIDReadOnly(t *testing.T) {
	p := newPool[string]()
	numpy, _ := p.alloc("numpy")

	id, ok := p.id("numpy")
	require.True(t, ok)
	require.Equal(t, numpy, id)

	_, ok = p.id("scipy")
	require.False(t, ok)
	require.Equal(t, 1, p.len())
}

func TestPoolDenseIDs(t *testing.T) {
	p := newPool[int]()
	for i := 0; i < 100; i++ {
		id, fresh := p.alloc(i * 7)
		require.True(t, fresh)
		require.Equal(t, uint32(i), id)
	}
}
