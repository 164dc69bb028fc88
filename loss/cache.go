// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package loss

import (
	"sync"

	"github.com/gorse-io/clusterloss/common/floats"
	"go.uber.org/atomic"
	"golang.org/x/exp/constraints"
)

// DotCache memoizes dot products between rows of a feature matrix. Cells of the
// symmetric matrix are kept as a packed lower triangle, so (i, j) and (j, i) share
// storage. Each cell is computed at most once and is safe for concurrent readers.
type DotCache[T constraints.Float] struct {
	data     []T
	dim      int
	values   []T
	once     []sync.Once
	computed atomic.Int64
}

// NewDotCache creates an empty cache over n rows of length dim stored in data.
func NewDotCache[T constraints.Float](data []T, n, dim int) *DotCache[T] {
	size := n * (n + 1) / 2
	return &DotCache[T]{
		data:   data,
		dim:    dim,
		values: make([]T, size),
		once:   make([]sync.Once, size),
	}
}

// Get returns the dot product of rows i and j.
func (c *DotCache[T]) Get(i, j int) T {
	if i < j {
		i, j = j, i
	}
	k := i*(i+1)/2 + j
	c.once[k].Do(func() {
		c.values[k] = floats.Dot(c.row(i), c.row(j))
		c.computed.Inc()
	})
	return c.values[k]
}

// Computed returns the number of dot products evaluated so far.
func (c *DotCache[T]) Computed() int64 {
	return c.computed.Load()
}

func (c *DotCache[T]) row(i int) []T {
	return c.data[i*c.dim : (i+1)*c.dim]
}
