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
	"testing"

	"github.com/gorse-io/clusterloss/base"
	"github.com/gorse-io/clusterloss/common/blob"
	"github.com/gorse-io/clusterloss/common/gradcheck"
	"github.com/gorse-io/clusterloss/dataset"
	"github.com/stretchr/testify/assert"
)

func TestMapLoss(t *testing.T) {
	x := blob.NewDense([]float64{0.2, 0.9, -0.5, 3}, 2, 2)
	y := blob.NewDense([]float64{0, 1, 1, 0}, 2, 2)
	l := NewMapLoss[float64](WithLambda(0.1))

	loss, err := l.Forward(x, y)
	assert.NoError(t, err)
	// 0.2 + 0.1 + 1.5 + 3 plus 0.05 * (0.04 + 0.81 + 0.25 + 9)
	assert.InDelta(t, 4.8+0.05*10.1, loss, 1e-12)

	grad, err := l.Backward(x, y)
	assert.NoError(t, err)
	assert.Equal(t, []int{2, 2}, grad.Shape())
	assert.InDeltaSlice(t, []float64{1.02, -0.91, -1.05, 1.3}, grad.Data(), 1e-12)

	// gradient at a boundary prediction stays finite
	grad, err = l.Backward(blob.NewDense([]float64{0, 1}, 2), blob.NewDense([]float64{0, 1}, 2))
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, -0.9}, grad.Data(), 1e-12)
}

func TestMapLossGradient(t *testing.T) {
	x := []float64{0.3, -1.2, 2.5, 0.7, 0.1, -0.4}
	y := blob.NewDense([]float64{1, 0, 0, 1, 1, 0}, 6)
	l := NewMapLoss[float64]()
	grad, err := l.Backward(blob.NewDense(x, 6), y)
	assert.NoError(t, err)
	f := func(x []float64) (float64, error) {
		return l.Forward(blob.NewDense(x, 6), y)
	}
	report, err := gradcheck.NewChecker(1e-4, 1e-6).CheckExhaustive(f, x, grad.Data())
	assert.NoError(t, err)
	assert.Empty(t, report.Mismatches)

	// random binary targets
	batch := dataset.BinaryMap[float64](base.NewRandomGenerator(1701), 20, 8)
	l = NewMapLoss[float64](WithLambda(0.001))
	grad, err = l.Backward(batch.Features, batch.Labels)
	assert.NoError(t, err)
	f = func(x []float64) (float64, error) {
		return l.Forward(blob.NewDense(x, 20, 8), batch.Labels)
	}
	report, err = gradcheck.NewChecker(1e-5, 1e-2).CheckExhaustive(f, batch.Features.Clone().Data(), grad.Data())
	assert.NoError(t, err)
	assert.Equal(t, 160, report.Checked)
}

func TestMapLossErrors(t *testing.T) {
	l := NewMapLoss[float32]()
	_, err := l.Forward(blob.Zeros[float32](3), blob.Zeros[float32](4))
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = l.Forward(blob.Zeros[float32](2), blob.NewDense([]float32{0, 0.5}, 2))
	assert.ErrorIs(t, err, ErrLabelFormat)
	_, err = l.Backward(blob.Zeros[float32](2), blob.NewDense([]float32{0, 2}, 2))
	assert.ErrorIs(t, err, ErrLabelFormat)
	_, err = l.Backward(blob.Zeros[float32](2), blob.Zeros[float32](2), Labels)
	assert.ErrorIs(t, err, ErrNonDifferentiableInput)
}
