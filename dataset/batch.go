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

// Package dataset builds paired minibatches, where every subject contributes two samples,
// and binary target maps for elementwise losses.
package dataset

import (
	"github.com/gorse-io/clusterloss/base"
	"github.com/gorse-io/clusterloss/common/blob"
	"golang.org/x/exp/constraints"
)

type Batch[T constraints.Float] struct {
	Features *blob.Dense[T]
	Labels   *blob.Dense[T]
}

// Len returns the number of samples.
func (b *Batch[T]) Len() int {
	return blob.Num[T](b.Features)
}

// Dim returns the feature dimension.
func (b *Batch[T]) Dim() int {
	return blob.Dim[T](b.Features)
}

// PairedLabels returns labels 0..subjects-1 followed by 0..subjects-1 again.
func PairedLabels[T constraints.Float](subjects int) []T {
	labels := make([]T, 2*subjects)
	for i := range labels {
		labels[i] = T(i % subjects)
	}
	return labels
}

// Ramp creates 2*subjects samples with feature k of sample i equal to k*i.
func Ramp[T constraints.Float](subjects, dim int) *Batch[T] {
	n := 2 * subjects
	data := make([]T, n*dim)
	for i := 0; i < n; i++ {
		for k := 0; k < dim; k++ {
			data[i*dim+k] = T(k * i)
		}
	}
	return &Batch[T]{
		Features: blob.NewDense(data, n, dim),
		Labels:   blob.NewDense(PairedLabels[T](subjects), n),
	}
}

// Gaussian creates 2*subjects samples with features drawn from N(mean, std²).
func Gaussian[T constraints.Float](rng base.RandomGenerator, subjects, dim int, mean, std float64) *Batch[T] {
	n := 2 * subjects
	return &Batch[T]{
		Features: blob.NewDense(base.NormalVector[T](rng, n*dim, mean, std), n, dim),
		Labels:   blob.NewDense(PairedLabels[T](subjects), n),
	}
}

// Clustered creates 2*subjects samples scattered around per-subject centers. Centers are
// drawn from N(0, 1) and samples from N(center, spread²).
func Clustered[T constraints.Float](rng base.RandomGenerator, subjects, dim int, spread float64) *Batch[T] {
	n := 2 * subjects
	centers := rng.NormalVector64(subjects*dim, 0, 1)
	noise := rng.NormalVector64(n*dim, 0, spread)
	data := make([]T, n*dim)
	for i := 0; i < n; i++ {
		c := i % subjects
		for k := 0; k < dim; k++ {
			data[i*dim+k] = T(centers[c*dim+k] + noise[i*dim+k])
		}
	}
	return &Batch[T]{
		Features: blob.NewDense(data, n, dim),
		Labels:   blob.NewDense(PairedLabels[T](subjects), n),
	}
}

// BinaryMap creates an n×dim map of predictions drawn from [0, 1] and a map of the same
// shape holding 0/1 targets.
func BinaryMap[T constraints.Float](rng base.RandomGenerator, n, dim int) *Batch[T] {
	predictions := rng.UniformVector64(n*dim, 0, 1)
	coins := rng.UniformVector64(n*dim, 0, 1)
	data := make([]T, n*dim)
	targets := make([]T, n*dim)
	for i := range data {
		data[i] = T(predictions[i])
		if coins[i] < 0.5 {
			targets[i] = 1
		}
	}
	return &Batch[T]{
		Features: blob.NewDense(data, n, dim),
		Labels:   blob.NewDense(targets, n, dim),
	}
}

// Shuffle permutes samples, moving feature rows together with their labels.
func Shuffle[T constraints.Float](rng base.RandomGenerator, b *Batch[T]) *Batch[T] {
	n, dim := b.Len(), b.Dim()
	perm := rng.Permutation(n)
	data := make([]T, n*dim)
	labels := make([]T, n)
	for to, from := range perm {
		copy(data[to*dim:(to+1)*dim], blob.Row[T](b.Features, from))
		labels[to] = b.Labels.Data()[from]
	}
	return &Batch[T]{
		Features: blob.NewDense(data, n, dim),
		Labels:   blob.NewDense(labels, n),
	}
}
