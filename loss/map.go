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
	"slices"

	"github.com/gorse-io/clusterloss/common/blob"
	"github.com/juju/errors"
	"golang.org/x/exp/constraints"
)

// MapLoss is an elementwise loss between a map of predictions x and a binary map of
// targets y:
//
//	loss = Σ x^(1-y) (1-x)^y + λ/2 x²
//
// With y ∈ {0, 1} the first term is x when y = 0 and 1 - x when y = 1, so the gradient
// is 1 - 2y + λx. The closed form is used instead of the power rule because the
// power rule divides by zero at x = 0, y = 1 and at x = 1, y = 0.
type MapLoss[T constraints.Float] struct {
	lambda T
}

// NewMapLoss creates a map loss. Only WithLambda is meaningful.
func NewMapLoss[T constraints.Float](opts ...Option) *MapLoss[T] {
	o := NewOptions(opts...)
	return &MapLoss[T]{lambda: T(o.Lambda)}
}

func (l *MapLoss[T]) check(x, y blob.Blob[T]) error {
	data, target := x.Data(), y.Data()
	if len(data) != len(target) {
		return errors.Annotatef(ErrShapeMismatch, "%d predictions for %d targets", len(data), len(target))
	}
	for i, v := range target {
		if v != 0 && v != 1 {
			return errors.Annotatef(ErrLabelFormat, "element %d has target %v, expected 0 or 1", i, v)
		}
	}
	return nil
}

// Forward evaluates the loss.
func (l *MapLoss[T]) Forward(x, y blob.Blob[T]) (T, error) {
	if err := l.check(x, y); err != nil {
		return 0, errors.Trace(err)
	}
	data, target := x.Data(), y.Data()
	var loss T
	for i, v := range data {
		if target[i] == 0 {
			loss += v
		} else {
			loss += 1 - v
		}
		loss += 0.5 * l.lambda * v * v
	}
	return loss, nil
}

// Backward evaluates the gradient with respect to x.
func (l *MapLoss[T]) Backward(x, y blob.Blob[T], wrt ...Input) (*blob.Dense[T], error) {
	if slices.Contains(wrt, Labels) {
		return nil, errors.Annotate(ErrNonDifferentiableInput, "map loss")
	}
	if err := l.check(x, y); err != nil {
		return nil, errors.Trace(err)
	}
	data, target := x.Data(), y.Data()
	grad := blob.Zeros[T](slices.Clone(x.Shape())...)
	diff := grad.Data()
	for i, v := range data {
		diff[i] = 1 - 2*target[i] + l.lambda*v
	}
	return grad, nil
}
