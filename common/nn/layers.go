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
	"github.com/chewxy/math32"
	"github.com/gorse-io/clusterloss/base"
)

type Layer interface {
	Parameters() []*Tensor
	Forward(x *Tensor) *Tensor
}

type Model Layer

// LinearLayer computes x·W + B. Rows of x are samples.
type LinearLayer struct {
	W    *Tensor
	B    *Tensor
	jobs int
}

// NewLinear creates a linear layer with weights drawn from N(0, 1/in).
func NewLinear(rng base.RandomGenerator, in, out int) *LinearLayer {
	return &LinearLayer{
		W:    Normal(rng, 0, 1.0/math32.Sqrt(float32(in)), in, out),
		B:    Zeros(out),
		jobs: 1,
	}
}

// SetJobs sets the number of workers used by matrix products.
func (l *LinearLayer) SetJobs(jobs int) *LinearLayer {
	l.jobs = jobs
	return l
}

func (l *LinearLayer) Forward(x *Tensor) *Tensor {
	return Add(MatMul(x, l.W, false, false, l.jobs), l.B)
}

func (l *LinearLayer) Parameters() []*Tensor {
	return []*Tensor{l.W, l.B}
}

type Sequential struct {
	Layers []Layer
}

func NewSequential(layers ...Layer) Model {
	return &Sequential{Layers: layers}
}

func (s *Sequential) Parameters() []*Tensor {
	var params []*Tensor
	for _, l := range s.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

func (s *Sequential) Forward(x *Tensor) *Tensor {
	for _, l := range s.Layers {
		x = l.Forward(x)
	}
	return x
}
