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
	"context"
	"slices"
	"time"

	"github.com/gorse-io/clusterloss/base/log"
	"github.com/gorse-io/clusterloss/common/blob"
	"github.com/gorse-io/clusterloss/common/floats"
	"github.com/gorse-io/clusterloss/common/parallel"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/constraints"
)

// ClusterLoss is a lifted, all-pairs hinge loss over minibatches in which every label
// occurs in exactly two samples. For every anchor pair (a, b) and every other sample j
// it penalizes dot(j, a) and dot(j, b) exceeding dot(a, b) by less than the margin:
//
//	loss = Σ_(a,b) Σ_j [max(0, x_j·x_a - x_a·x_b + δ) + max(0, x_j·x_b - x_a·x_b + δ)] / (P(P-1))
//	     + λ/(2ND) Σ x²
//
// where P is the number of pairs, N the number of samples and D the feature dimension.
// ClusterLoss holds no state between calls and is safe for concurrent use.
type ClusterLoss[T constraints.Float] struct {
	margin T
	lambda T
	jobs   int
}

// NewClusterLoss creates a cluster loss. Margin defaults to 1 and lambda to 0.001.
func NewClusterLoss[T constraints.Float](opts ...Option) *ClusterLoss[T] {
	o := NewOptions(opts...)
	return &ClusterLoss[T]{
		margin: T(o.Margin),
		lambda: T(o.Lambda),
		jobs:   o.Jobs,
	}
}

// minibatch is the per-call view of the inputs. It is never shared between calls.
type minibatch[T constraints.Float] struct {
	data  []T
	n     int
	dim   int
	pairs *PairIndex
	dots  *DotCache[T]
}

func (l *ClusterLoss[T]) prepare(features, labels blob.Blob[T]) (*minibatch[T], error) {
	n, dim := blob.Num(features), blob.Dim(features)
	data := features.Data()
	if len(data) != n*dim {
		return nil, errors.Annotatef(ErrShapeMismatch, "features shape %v holds %d elements", features.Shape(), len(data))
	}
	if len(labels.Data()) != n {
		return nil, errors.Annotatef(ErrShapeMismatch, "%d labels for %d samples", len(labels.Data()), n)
	}
	pairs, err := NewPairIndex(labels.Data())
	if err != nil {
		return nil, errors.Trace(err)
	}
	if pairs.Len() <= 1 {
		return nil, errors.Annotatef(ErrDegenerateInput, "at least 2 label pairs are required, got %d", pairs.Len())
	}
	if dim == 0 {
		return nil, errors.Annotate(ErrDegenerateInput, "feature dimension must be positive")
	}
	return &minibatch[T]{
		data:  data,
		n:     n,
		dim:   dim,
		pairs: pairs,
		dots:  NewDotCache(data, n, dim),
	}, nil
}

// Forward evaluates the loss.
func (l *ClusterLoss[T]) Forward(ctx context.Context, features, labels blob.Blob[T]) (T, error) {
	start := time.Now()
	b, err := l.prepare(features, labels)
	if err != nil {
		return 0, errors.Trace(err)
	}
	loss, err := l.forward(ctx, b)
	if err != nil {
		return 0, errors.Trace(err)
	}
	log.Logger().Debug("cluster loss forward",
		zap.Int("pairs", b.pairs.Len()),
		zap.Int64("dot_products", b.dots.Computed()),
		zap.Float64("loss", float64(loss)),
		zap.Duration("elapsed", time.Since(start)))
	return loss, nil
}

func (l *ClusterLoss[T]) forward(ctx context.Context, b *minibatch[T]) (T, error) {
	// Pairs are processed in ascending label order. Per-pair sums are combined in the
	// same order whatever the number of jobs, so results are reproducible.
	pairs := b.pairs.Pairs()
	partials := make([]T, len(pairs))
	err := parallel.Parallel(ctx, len(pairs), l.jobs, func(_, k int) error {
		a, c := pairs[k].First, pairs[k].Second
		dotAC := b.dots.Get(a, c)
		var sum T
		for j := 0; j < b.n; j++ {
			if j == a || j == c {
				continue
			}
			sum += floats.Hinge(b.dots.Get(j, a)-dotAC+l.margin) +
				floats.Hinge(b.dots.Get(j, c)-dotAC+l.margin)
		}
		partials[k] = sum
		return nil
	})
	if err != nil {
		return 0, errors.Trace(err)
	}
	var total T
	for _, sum := range partials {
		total += sum
	}
	p := T(len(pairs))
	return total/(p*(p-1)) + l.lambda/(2*T(b.n)*T(b.dim))*floats.SumSquares(b.data), nil
}

// Backward evaluates the gradient of the loss with respect to features. Gradients with
// respect to labels cannot be requested.
func (l *ClusterLoss[T]) Backward(ctx context.Context, features, labels blob.Blob[T], wrt ...Input) (*blob.Dense[T], error) {
	if slices.Contains(wrt, Labels) {
		return nil, errors.Annotate(ErrNonDifferentiableInput, "cluster loss")
	}
	start := time.Now()
	b, err := l.prepare(features, labels)
	if err != nil {
		return nil, errors.Trace(err)
	}
	grad := blob.Zeros[T](slices.Clone(features.Shape())...)
	if err = l.backward(ctx, b, grad.Data()); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Debug("cluster loss backward",
		zap.Int("pairs", b.pairs.Len()),
		zap.Int64("dot_products", b.dots.Computed()),
		zap.Duration("elapsed", time.Since(start)))
	return grad, nil
}

func (l *ClusterLoss[T]) backward(ctx context.Context, b *minibatch[T], grad []T) error {
	p := T(b.pairs.Len())
	norm := p * (p - 1)
	count := T(b.n) * T(b.dim)
	// Every anchor owns one gradient row, so anchors run independently.
	return parallel.Parallel(ctx, b.n, l.jobs, func(_, a int) error {
		c, err := b.pairs.Partner(a)
		if err != nil {
			return errors.Trace(err)
		}
		diff := grad[a*b.dim : (a+1)*b.dim]
		xa, xc := b.row(a), b.row(c)
		for i := 0; i < b.n; i++ {
			if i == a || i == c {
				continue
			}
			j, err := b.pairs.Partner(i)
			if err != nil {
				return errors.Trace(err)
			}
			dotAC := b.dots.Get(a, c)
			dotAI := b.dots.Get(a, i)
			dotCI := b.dots.Get(c, i)
			dotIJ := b.dots.Get(i, j)
			// subgradients of the hinge terms touching a
			delAI := floats.Indicator(dotAI - dotAC + l.margin)
			delIA := floats.Indicator(dotAI - dotIJ + l.margin)
			delCI := floats.Indicator(dotCI - dotAC + l.margin)
			xi := b.row(i)
			for k := range diff {
				diff[k] += xi[k]*(delAI+delIA) - xc[k]*(delAI+delCI)
			}
		}
		for k := range diff {
			diff[k] /= norm
			diff[k] += l.lambda * xa[k] / count
		}
		return nil
	})
}

func (b *minibatch[T]) row(i int) []T {
	return b.data[i*b.dim : (i+1)*b.dim]
}

// Forward evaluates the cluster loss with default options.
func Forward[T constraints.Float](features, labels blob.Blob[T]) (T, error) {
	return NewClusterLoss[T]().Forward(context.Background(), features, labels)
}

// Backward evaluates the cluster loss gradient with default options.
func Backward[T constraints.Float](features, labels blob.Blob[T]) (*blob.Dense[T], error) {
	return NewClusterLoss[T]().Backward(context.Background(), features, labels)
}
