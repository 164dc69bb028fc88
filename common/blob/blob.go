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

// Package blob defines the minimal shaped buffer consumed by loss kernels.
package blob

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Blob is a shaped, contiguous, row-major buffer. The first axis indexes samples.
type Blob[T constraints.Float] interface {
	Shape() []int
	Data() []T
}

// Count returns the number of elements described by a shape.
func Count(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Num returns the number of samples of a blob, i.e. the size of its first axis.
func Num[T constraints.Float](b Blob[T]) int {
	shape := b.Shape()
	if len(shape) == 0 {
		return 0
	}
	return shape[0]
}

// Dim returns the number of elements per sample, i.e. the product of all axes but the first.
func Dim[T constraints.Float](b Blob[T]) int {
	shape := b.Shape()
	if len(shape) == 0 {
		return 0
	}
	return Count(shape[1:])
}

// Row returns the contiguous view of sample i.
func Row[T constraints.Float](b Blob[T], i int) []T {
	d := Dim(b)
	return b.Data()[i*d : (i+1)*d]
}

// Dense is the default Blob implementation.
type Dense[T constraints.Float] struct {
	shape []int
	data  []T
}

// NewDense wraps data with a shape. It panics if the shape does not match the data length.
func NewDense[T constraints.Float](data []T, shape ...int) *Dense[T] {
	if Count(shape) != len(data) {
		panic(fmt.Sprintf("blob: shape %v does not match %d elements", shape, len(data)))
	}
	return &Dense[T]{shape: shape, data: data}
}

// Zeros creates a dense blob filled with zeros.
func Zeros[T constraints.Float](shape ...int) *Dense[T] {
	return &Dense[T]{shape: shape, data: make([]T, Count(shape))}
}

// Matrix creates an n-by-d dense blob from rows.
func Matrix[T constraints.Float](rows [][]T) *Dense[T] {
	if len(rows) == 0 {
		return Zeros[T](0, 0)
	}
	d := len(rows[0])
	data := make([]T, 0, len(rows)*d)
	for i, row := range rows {
		if len(row) != d {
			panic(fmt.Sprintf("blob: row %d has %d elements, expected %d", i, len(row), d))
		}
		data = append(data, row...)
	}
	return NewDense(data, len(rows), d)
}

func (d *Dense[T]) Shape() []int {
	return d.shape
}

func (d *Dense[T]) Data() []T {
	return d.data
}

// At returns element j of sample i.
func (d *Dense[T]) At(i, j int) T {
	return Row[T](d, i)[j]
}

// Clone returns a deep copy.
func (d *Dense[T]) Clone() *Dense[T] {
	shape := make([]int, len(d.shape))
	copy(shape, d.shape)
	data := make([]T, len(d.data))
	copy(data, d.data)
	return &Dense[T]{shape: shape, data: data}
}
