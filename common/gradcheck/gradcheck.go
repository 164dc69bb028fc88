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

// Package gradcheck compares analytic gradients with central finite differences.
package gradcheck

import (
	"fmt"
	"math"

	"github.com/gorse-io/clusterloss/common/heap"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"golang.org/x/exp/constraints"
)

const ErrGradientMismatch = errors.ConstError("gradient mismatch")

// Objective evaluates a scalar function at x. It must not retain x.
type Objective[T constraints.Float] func(x []T) (T, error)

// Checker estimates gradients by perturbing one coordinate at a time by ±Step.
// A coordinate passes when |analytic - numeric| <= Threshold * max(|analytic|, |numeric|, 1).
type Checker[T constraints.Float] struct {
	Step       T
	Threshold  float64
	OnProgress func(done, total int)
}

func NewChecker[T constraints.Float](step T, threshold float64) *Checker[T] {
	return &Checker[T]{Step: step, Threshold: threshold}
}

// Mismatch is a coordinate failing the check.
type Mismatch struct {
	Index    int
	Analytic float64
	Numeric  float64
	Error    float64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("x[%d]: analytic %g, numeric %g", m.Index, m.Analytic, m.Numeric)
}

type Report struct {
	Checked    int
	MaxError   float64 // largest scaled error over all coordinates
	Mismatches []Mismatch
}

// Worst returns the mismatch with the largest scaled error.
func (r *Report) Worst() (Mismatch, bool) {
	if len(r.Mismatches) == 0 {
		return Mismatch{}, false
	}
	return lo.MaxBy(r.Mismatches, func(a, b Mismatch) bool {
		return a.Error > b.Error
	}), true
}

// Top returns at most k mismatches in decreasing order of scaled error.
func (r *Report) Top(k int) []Mismatch {
	filter := heap.NewTopKFilter[Mismatch, float64](k)
	for _, m := range r.Mismatches {
		filter.Push(m, m.Error)
	}
	return filter.PopAllValues()
}

// Numeric returns the central difference estimate of the gradient of f at x. x is
// restored before returning.
func (c *Checker[T]) Numeric(f Objective[T], x []T) ([]T, error) {
	grad := make([]T, len(x))
	for i := range x {
		v := x[i]
		x[i] = v + c.Step
		positive, err := f(x)
		if err != nil {
			x[i] = v
			return nil, errors.Trace(err)
		}
		x[i] = v - c.Step
		negative, err := f(x)
		x[i] = v
		if err != nil {
			return nil, errors.Trace(err)
		}
		grad[i] = (positive - negative) / (2 * c.Step)
		if c.OnProgress != nil {
			c.OnProgress(i+1, len(x))
		}
	}
	return grad, nil
}

// CheckExhaustive compares analytic with the numeric gradient on every coordinate of x.
// It returns ErrGradientMismatch along with the report if any coordinate fails.
func (c *Checker[T]) CheckExhaustive(f Objective[T], x, analytic []T) (*Report, error) {
	if len(x) != len(analytic) {
		return nil, errors.Errorf("gradcheck: %d coordinates but %d gradients", len(x), len(analytic))
	}
	numeric, err := c.Numeric(f, x)
	if err != nil {
		return nil, errors.Trace(err)
	}
	report := &Report{Checked: len(x)}
	for i := range x {
		a, n := float64(analytic[i]), float64(numeric[i])
		scale := math.Max(math.Max(math.Abs(a), math.Abs(n)), 1)
		scaled := math.Abs(a-n) / scale
		report.MaxError = math.Max(report.MaxError, scaled)
		if scaled > c.Threshold || math.IsNaN(scaled) {
			report.Mismatches = append(report.Mismatches, Mismatch{Index: i, Analytic: a, Numeric: n, Error: scaled})
		}
	}
	if worst, ok := report.Worst(); ok {
		return report, errors.Annotatef(ErrGradientMismatch, "%d of %d coordinates, worst %v",
			len(report.Mismatches), report.Checked, worst)
	}
	return report, nil
}
