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

package nn

import (
	"context"

	"github.com/gorse-io/clusterloss/common/floats"
	"github.com/gorse-io/clusterloss/loss"
	"github.com/juju/errors"
)

type clusterLoss struct {
	base
	loss *loss.ClusterLoss[float32]
}

func (c *clusterLoss) String() string {
	return "ClusterLoss"
}

func (c *clusterLoss) eval(inputs ...*Tensor) (*Tensor, error) {
	l, err := c.loss.Forward(context.Background(), inputs[0], inputs[1])
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewScalar(l), nil
}

func (c *clusterLoss) forward(inputs ...*Tensor) *Tensor {
	y, err := c.eval(inputs...)
	if err != nil {
		panic(err)
	}
	return y
}

func (c *clusterLoss) backward(dy *Tensor) []*Tensor {
	grad, err := c.loss.Backward(context.Background(), c.inputs[0], c.inputs[1], loss.Features)
	if err != nil {
		panic(err)
	}
	dx := NewTensor(grad.Data(), c.inputs[0].shape...)
	floats.MulConst(dx.data, dy.data[0])
	// labels receive no gradient
	return []*Tensor{dx, Zeros(c.inputs[1].shape...)}
}

// ClusterLoss returns the cluster loss of features x (N×D) grouped by labels (N). It
// panics if the labels do not form pairs. Use TryClusterLoss to handle invalid input.
func ClusterLoss(x, labels *Tensor, opts ...loss.Option) *Tensor {
	return apply(&clusterLoss{loss: loss.NewClusterLoss[float32](opts...)}, x, labels)
}

// TryClusterLoss is like ClusterLoss but returns an error on invalid input.
func TryClusterLoss(x, labels *Tensor, opts ...loss.Option) (*Tensor, error) {
	f := &clusterLoss{loss: loss.NewClusterLoss[float32](opts...)}
	y, err := f.eval(x, labels)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return attach(f, y, x, labels), nil
}
