// Copyright 2024 gorse Project Authors
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

package nn

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorse-io/clusterloss/base"
	"github.com/gorse-io/clusterloss/common/blob"
	"github.com/gorse-io/clusterloss/common/floats"
	"github.com/gorse-io/clusterloss/common/parallel"
	"github.com/samber/lo"
)

var _ blob.Blob[float32] = &Tensor{}

type Tensor struct {
	data  []float32
	shape []int
	grad  *Tensor
	op    op
}

func NewTensor(data []float32, shape ...int) *Tensor {
	if len(shape) == 0 && len(data) != 1 {
		shape = []int{len(data)}
	}
	if blob.Count(shape) != len(data) {
		panic(fmt.Sprintf("nn: %d elements do not fit shape %v", len(data), shape))
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

func NewScalar(data float32) *Tensor {
	return &Tensor{
		data:  []float32{data},
		shape: []int{},
	}
}

// FromBlob copies a blob into a new tensor.
func FromBlob(b blob.Blob[float32]) *Tensor {
	return NewTensor(append([]float32(nil), b.Data()...), append([]int(nil), b.Shape()...)...)
}

// Normal creates a tensor filled with values drawn from N(mean, std²).
func Normal(rng base.RandomGenerator, mean, std float32, shape ...int) *Tensor {
	return &Tensor{
		data:  base.NormalVector[float32](rng, blob.Count(shape), float64(mean), float64(std)),
		shape: shape,
	}
}

// Ones creates a tensor filled with ones.
func Ones(shape ...int) *Tensor {
	data := make([]float32, blob.Count(shape))
	for i := range data {
		data[i] = 1
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor {
	return &Tensor{
		data:  make([]float32, blob.Count(shape)),
		shape: shape,
	}
}

func (t *Tensor) Shape() []int {
	return t.shape
}

func (t *Tensor) Data() []float32 {
	return t.data
}

func (t *Tensor) String() string {
	// Print scalar value
	if len(t.shape) == 0 {
		return fmt.Sprint(t.data[0])
	}

	builder := strings.Builder{}
	builder.WriteString("[")
	if len(t.data) <= 10 {
		for i := 0; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	} else {
		for i := 0; i < 5; i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			builder.WriteString(", ")
		}
		builder.WriteString("..., ")
		for i := len(t.data) - 5; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	}
	builder.WriteString("]")
	return builder.String()
}

// Backward computes gradients of every tensor the receiver depends on. Gradients of
// leaf tensors accumulate until they are reset.
func (t *Tensor) Backward() {
	t.grad = Ones(t.shape...)
	// topological order, outputs first
	var ops []op
	visited := make(map[op]struct{})
	var visit func(f op)
	visit = func(f op) {
		if _, ok := visited[f]; ok {
			return
		}
		visited[f] = struct{}{}
		inputs, _ := f.inputsAndOutput()
		for _, x := range inputs {
			if x.op != nil {
				visit(x.op)
			}
		}
		ops = append(ops, f)
	}
	if t.op != nil {
		visit(t.op)
	}
	for _, f := range lo.Reverse(ops) {
		inputs, output := f.inputsAndOutput()
		grads := f.backward(output.grad)
		for i := range grads {
			if inputs[i].grad == nil {
				inputs[i].grad = grads[i]
			} else {
				inputs[i].grad.add(grads[i])
			}
		}
	}
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

func (t *Tensor) clone() *Tensor {
	newData := make([]float32, len(t.data))
	copy(newData, t.data)
	return &Tensor{
		data:  newData,
		shape: t.shape,
	}
}

func (t *Tensor) add(other *Tensor) *Tensor {
	wSize := blob.Count(other.shape)
	for i := range t.data {
		t.data[i] += other.data[i%wSize]
	}
	return t
}

func (t *Tensor) transpose() *Tensor {
	rows, cols := t.shape[0], t.shape[1]
	y := Zeros(cols, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			y.data[j*rows+i] = t.data[i*cols+j]
		}
	}
	return y
}

// matMul multiplies two matrices, optionally transposed. Rows of the result are
// computed by jobs workers.
func (t *Tensor) matMul(other *Tensor, transpose1, transpose2 bool, jobs int) *Tensor {
	if len(t.shape) != 2 || len(other.shape) != 2 {
		panic("matMul requires 2D tensors")
	}
	x, y := t, other
	if transpose1 {
		x = x.transpose()
	}
	if !transpose2 {
		// rows of y become columns of the product
		y = y.transpose()
	}
	m, k, n := x.shape[0], x.shape[1], y.shape[0]
	if y.shape[1] != k {
		panic(fmt.Sprintf("matMul: shapes %v and %v are not aligned", x.shape, y.shape))
	}
	z := Zeros(m, n)
	_ = parallel.Parallel(context.Background(), m, jobs, func(_, i int) error {
		row := x.data[i*k : (i+1)*k]
		for j := 0; j < n; j++ {
			z.data[i*n+j] = floats.Dot(row, y.data[j*k:(j+1)*k])
		}
		return nil
	})
	return z
}
