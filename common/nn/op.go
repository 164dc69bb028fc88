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

type op interface {
	String() string
	forward(inputs ...*Tensor) *Tensor
	backward(dy *Tensor) []*Tensor
	inputsAndOutput() ([]*Tensor, *Tensor)
	setInputs(inputs ...*Tensor)
	setOutput(y *Tensor)
}

type base struct {
	inputs []*Tensor
	output *Tensor
}

func (b *base) inputsAndOutput() ([]*Tensor, *Tensor) {
	return b.inputs, b.output
}

func (b *base) setInputs(inputs ...*Tensor) {
	b.inputs = inputs
}

func (b *base) setOutput(y *Tensor) {
	b.output = y
}

func apply[T op](f T, inputs ...*Tensor) *Tensor {
	return attach(f, f.forward(inputs...), inputs...)
}

// attach records y as the output of f applied to inputs.
func attach[T op](f T, y *Tensor, inputs ...*Tensor) *Tensor {
	f.setInputs(inputs...)
	f.setOutput(y)
	y.op = f
	return y
}

type add struct {
	base
}

func (a *add) String() string {
	return "Add"
}

func (a *add) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.add(inputs[1])
	return y
}

func (a *add) backward(dy *Tensor) []*Tensor {
	gx0 := dy.clone()
	gx1 := Zeros(a.inputs[1].shape...)
	wSize := len(gx1.data)
	for i := range dy.data {
		gx1.data[i%wSize] += dy.data[i]
	}
	return []*Tensor{gx0, gx1}
}

type matMul struct {
	base
	transpose1 bool
	transpose2 bool
	jobs       int
}

func (m *matMul) String() string {
	return "MatMul"
}

func (m *matMul) forward(inputs ...*Tensor) *Tensor {
	return inputs[0].matMul(inputs[1], m.transpose1, m.transpose2, m.jobs)
}

func (m *matMul) backward(dy *Tensor) []*Tensor {
	var dx0, dx1 *Tensor
	if !m.transpose1 {
		dx0 = dy.matMul(m.inputs[1], false, !m.transpose2, m.jobs)
	} else {
		dx0 = m.inputs[1].matMul(dy, m.transpose2, true, m.jobs)
	}
	if !m.transpose2 {
		dx1 = m.inputs[0].matMul(dy, !m.transpose1, false, m.jobs)
	} else {
		dx1 = dy.matMul(m.inputs[0], true, m.transpose1, m.jobs)
	}
	return []*Tensor{dx0, dx1}
}

func checkSuffix(x0, x1 *Tensor) (*Tensor, *Tensor) {
	if len(x0.shape) < len(x1.shape) {
		x0, x1 = x1, x0
	}
	for i := 0; i < len(x1.shape); i++ {
		if x0.shape[len(x0.shape)-len(x1.shape)+i] != x1.shape[i] {
			panic("the shape of the second tensor must be a suffix sequence of the shape of the first tensor")
		}
	}
	return x0, x1
}

// Add returns the element-wise sum of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Add(x0, x1 *Tensor) *Tensor {
	x0, x1 = checkSuffix(x0, x1)
	return apply(&add{}, x0, x1)
}

// MatMul multiplies two matrices. Rows of the product are split among jobs workers.
func MatMul(x, y *Tensor, transpose1, transpose2 bool, jobs int) *Tensor {
	return apply(&matMul{transpose1: transpose1, transpose2: transpose2, jobs: jobs}, x, y)
}
