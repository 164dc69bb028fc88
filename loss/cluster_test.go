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
	"math"
	"testing"

	"github.com/gorse-io/clusterloss/base"
	"github.com/gorse-io/clusterloss/common/blob"
	"github.com/gorse-io/clusterloss/common/gradcheck"
	"github.com/gorse-io/clusterloss/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// naiveDot, naiveForward and naiveBackward evaluate the loss with plain loops and
// without caching.
func naiveDot(x []float64, dim, i, j int) float64 {
	var sum float64
	for k := 0; k < dim; k++ {
		sum += x[i*dim+k] * x[j*dim+k]
	}
	return sum
}

func naivePartner(labels []float64, i int) int {
	for j, label := range labels {
		if j != i && label == labels[i] {
			return j
		}
	}
	panic("no partner")
}

func naiveForward(x, labels []float64, dim int, margin, lambda float64) float64 {
	n := len(labels)
	p := float64(n / 2)
	var total float64
	for a := 0; a < n; a++ {
		b := naivePartner(labels, a)
		if b < a {
			continue
		}
		for j := 0; j < n; j++ {
			if j == a || j == b {
				continue
			}
			total += math.Max(0, naiveDot(x, dim, j, a)-naiveDot(x, dim, a, b)+margin)
			total += math.Max(0, naiveDot(x, dim, j, b)-naiveDot(x, dim, a, b)+margin)
		}
	}
	var squares float64
	for _, v := range x {
		squares += v * v
	}
	return total/(p*(p-1)) + lambda/(2*float64(n)*float64(dim))*squares
}

func naiveBackward(x, labels []float64, dim int, margin, lambda float64) []float64 {
	n := len(labels)
	p := float64(n / 2)
	indicator := func(v float64) float64 {
		if v > 0 {
			return 1
		}
		return 0
	}
	grad := make([]float64, len(x))
	for a := 0; a < n; a++ {
		b := naivePartner(labels, a)
		for i := 0; i < n; i++ {
			if i == a || i == b {
				continue
			}
			j := naivePartner(labels, i)
			indAI := indicator(naiveDot(x, dim, a, i) - naiveDot(x, dim, a, b) + margin)
			indIA := indicator(naiveDot(x, dim, a, i) - naiveDot(x, dim, i, j) + margin)
			indBI := indicator(naiveDot(x, dim, b, i) - naiveDot(x, dim, a, b) + margin)
			for k := 0; k < dim; k++ {
				grad[a*dim+k] += x[i*dim+k]*(indAI+indIA) - x[b*dim+k]*(indAI+indBI)
			}
		}
		for k := 0; k < dim; k++ {
			grad[a*dim+k] = grad[a*dim+k]/(p*(p-1)) + lambda*x[a*dim+k]/(float64(n)*float64(dim))
		}
	}
	return grad
}

type ClusterLossTestSuite struct {
	suite.Suite
	ctx context.Context
}

func (suite *ClusterLossTestSuite) SetupTest() {
	suite.ctx = context.Background()
}

func (suite *ClusterLossTestSuite) TestRamp() {
	b := dataset.Ramp[float64](8, 10)
	l := NewClusterLoss[float64]()
	loss, err := l.Forward(suite.ctx, b.Features, b.Labels)
	suite.NoError(err)
	expected := naiveForward(b.Features.Data(), b.Labels.Data(), 10, DefaultMargin, DefaultLambda)
	suite.InEpsilon(expected, loss, 1e-12)

	grad, err := l.Backward(suite.ctx, b.Features, b.Labels)
	suite.NoError(err)
	suite.Equal([]int{16, 10}, grad.Shape())
	expectedGrad := naiveBackward(b.Features.Data(), b.Labels.Data(), 10, DefaultMargin, DefaultLambda)
	suite.InDeltaSlice(expectedGrad, grad.Data(), 1e-9)
}

func (suite *ClusterLossTestSuite) TestGaussian() {
	b := dataset.Gaussian[float64](base.NewRandomGenerator(1701), 10, 8, 0, 10)
	l := NewClusterLoss[float64]()
	loss, err := l.Forward(suite.ctx, b.Features, b.Labels)
	suite.NoError(err)
	suite.InEpsilon(naiveForward(b.Features.Data(), b.Labels.Data(), 8, DefaultMargin, DefaultLambda), loss, 1e-9)

	grad, err := l.Backward(suite.ctx, b.Features, b.Labels)
	suite.NoError(err)
	expectedGrad := naiveBackward(b.Features.Data(), b.Labels.Data(), 8, DefaultMargin, DefaultLambda)
	suite.InDeltaSlice(expectedGrad, grad.Data(), 1e-9)
}

func (suite *ClusterLossTestSuite) TestSeparatedClusters() {
	// identical vectors within a pair, orthogonal across pairs: no hinge term is active
	features := blob.Matrix([][]float64{
		{10, 0, 0}, {0, 10, 0}, {0, 0, 10},
		{10, 0, 0}, {0, 10, 0}, {0, 0, 10},
	})
	labels := blob.NewDense([]float64{0, 1, 2, 0, 1, 2}, 6)
	loss, err := Forward[float64](features, labels)
	suite.NoError(err)
	// λ/(2ND) * Σx² = 0.001 / 36 * 600
	suite.InDelta(0.001*600/36, loss, 1e-15)

	grad, err := Backward[float64](features, labels)
	suite.NoError(err)
	for i, v := range features.Data() {
		suite.InDelta(0.001*v/18, grad.Data()[i], 1e-15)
	}
}

func (suite *ClusterLossTestSuite) TestMargin() {
	features := blob.Matrix([][]float64{
		{10, 0, 0}, {0, 10, 0}, {0, 0, 10},
		{10, 0, 0}, {0, 10, 0}, {0, 0, 10},
	})
	labels := blob.NewDense([]float64{0, 1, 2, 0, 1, 2}, 6)
	// every other sample violates a margin of 101 by 1
	l := NewClusterLoss[float64](WithMargin(101), WithLambda(0))
	loss, err := l.Forward(suite.ctx, features, labels)
	suite.NoError(err)
	// 3 pairs * 4 other samples * 2 terms / (3 * 2)
	suite.InDelta(4.0, loss, 1e-12)
}

func (suite *ClusterLossTestSuite) TestNonNegative() {
	rng := base.NewRandomGenerator(0)
	for i := 0; i < 10; i++ {
		b := dataset.Gaussian[float64](rng, 2+i, 4, 0, 3)
		loss, err := Forward[float64](b.Features, b.Labels)
		suite.NoError(err)
		suite.GreaterOrEqual(loss, 0.0)
	}
}

func (suite *ClusterLossTestSuite) TestGradient() {
	b := dataset.Gaussian[float64](base.NewRandomGenerator(1701), 10, 8, 0, 10)
	l := NewClusterLoss[float64]()
	grad, err := l.Backward(suite.ctx, b.Features, b.Labels)
	suite.NoError(err)
	x := b.Features.Clone().Data()
	f := func(x []float64) (float64, error) {
		return l.Forward(suite.ctx, blob.NewDense(x, 20, 8), b.Labels)
	}
	report, err := gradcheck.NewChecker(1e-7, 1e-2).CheckExhaustive(f, x, grad.Data())
	suite.NoError(err)
	suite.Equal(160, report.Checked)
	suite.Empty(report.Mismatches)
	// the input is restored
	suite.Equal(b.Features.Data(), x)
}

func (suite *ClusterLossTestSuite) TestRampGradient() {
	b := dataset.Ramp[float64](8, 10)
	l := NewClusterLoss[float64]()
	grad, err := l.Backward(suite.ctx, b.Features, b.Labels)
	suite.NoError(err)
	f := func(x []float64) (float64, error) {
		return l.Forward(suite.ctx, blob.NewDense(x, 16, 10), b.Labels)
	}
	report, err := gradcheck.NewChecker(1e-2, 1e-2).CheckExhaustive(f, b.Features.Clone().Data(), grad.Data())
	suite.NoError(err)
	suite.Empty(report.Mismatches)
}

func (suite *ClusterLossTestSuite) TestTwoPairs() {
	features := blob.Matrix([][]float64{{1, 2}, {3, -1}, {0.5, 2}, {2, -2}})
	labels := blob.NewDense([]float64{7, 4, 7, 4}, 4)
	loss, err := Forward[float64](features, labels)
	suite.NoError(err)
	suite.InEpsilon(naiveForward(features.Data(), labels.Data(), 2, DefaultMargin, DefaultLambda), loss, 1e-12)
	grad, err := Backward[float64](features, labels)
	suite.NoError(err)
	suite.InDeltaSlice(naiveBackward(features.Data(), labels.Data(), 2, DefaultMargin, DefaultLambda), grad.Data(), 1e-12)
}

func (suite *ClusterLossTestSuite) TestDegenerate() {
	// a single pair
	features := blob.Matrix([][]float64{{1, 2}, {3, 4}})
	labels := blob.NewDense([]float64{0, 0}, 2)
	_, err := Forward[float64](features, labels)
	suite.ErrorIs(err, ErrDegenerateInput)
	_, err = Backward[float64](features, labels)
	suite.ErrorIs(err, ErrDegenerateInput)
	// no features
	_, err = Forward[float64](blob.Zeros[float64](4, 0), blob.NewDense([]float64{0, 1, 0, 1}, 4))
	suite.ErrorIs(err, ErrDegenerateInput)
	// no samples
	_, err = Forward[float64](blob.Zeros[float64](0, 3), blob.Zeros[float64](0))
	suite.ErrorIs(err, ErrDegenerateInput)
}

func (suite *ClusterLossTestSuite) TestLabelCardinality() {
	b := dataset.Gaussian[float64](base.NewRandomGenerator(0), 4, 3, 0, 1)
	features := blob.NewDense(append(b.Features.Clone().Data(), 1, 2, 3), 9, 3)
	labels := blob.NewDense(append(b.Labels.Clone().Data(), 0), 9)
	_, err := Forward[float64](features, labels)
	suite.ErrorIs(err, ErrLabelCardinality)
	_, err = Backward[float64](features, labels)
	suite.ErrorIs(err, ErrLabelCardinality)

	// odd one out
	_, err = Forward[float64](blob.Zeros[float64](5, 2), blob.NewDense([]float64{0, 1, 2, 0, 1}, 5))
	suite.ErrorIs(err, ErrLabelCardinality)
}

func (suite *ClusterLossTestSuite) TestLabelFormat() {
	features := blob.Zeros[float64](4, 2)
	labels := blob.NewDense([]float64{0, 1.5, 0, 1.5}, 4)
	_, err := Forward[float64](features, labels)
	suite.ErrorIs(err, ErrLabelFormat)
	_, err = Backward[float64](features, labels)
	suite.ErrorIs(err, ErrLabelFormat)
}

func (suite *ClusterLossTestSuite) TestShapeMismatch() {
	_, err := Forward[float64](blob.Zeros[float64](4, 2), blob.NewDense([]float64{0, 1, 0}, 3))
	suite.ErrorIs(err, ErrShapeMismatch)
	_, err = Backward[float64](blob.Zeros[float64](4, 2), blob.NewDense([]float64{0, 1, 0, 1, 2, 2}, 6))
	suite.ErrorIs(err, ErrShapeMismatch)
}

func (suite *ClusterLossTestSuite) TestBackwardLabels() {
	b := dataset.Ramp[float64](3, 2)
	_, err := NewClusterLoss[float64]().Backward(suite.ctx, b.Features, b.Labels, Features, Labels)
	suite.ErrorIs(err, ErrNonDifferentiableInput)
	grad, err := NewClusterLoss[float64]().Backward(suite.ctx, b.Features, b.Labels, Features)
	suite.NoError(err)
	suite.Equal([]int{6, 2}, grad.Shape())
}

func (suite *ClusterLossTestSuite) TestJobs() {
	b := dataset.Gaussian[float64](base.NewRandomGenerator(42), 16, 6, 0, 5)
	serial := NewClusterLoss[float64](WithJobs(1))
	concurrent := NewClusterLoss[float64](WithJobs(4))
	lossSerial, err := serial.Forward(suite.ctx, b.Features, b.Labels)
	suite.NoError(err)
	lossConcurrent, err := concurrent.Forward(suite.ctx, b.Features, b.Labels)
	suite.NoError(err)
	suite.Equal(lossSerial, lossConcurrent)
	gradSerial, err := serial.Backward(suite.ctx, b.Features, b.Labels)
	suite.NoError(err)
	gradConcurrent, err := concurrent.Backward(suite.ctx, b.Features, b.Labels)
	suite.NoError(err)
	suite.Equal(gradSerial.Data(), gradConcurrent.Data())
}

func (suite *ClusterLossTestSuite) TestShuffle() {
	rng := base.NewRandomGenerator(7)
	b := dataset.Gaussian[float64](rng, 6, 4, 0, 10)
	s := dataset.Shuffle(rng, b)
	expected, err := Forward[float64](b.Features, b.Labels)
	suite.NoError(err)
	actual, err := Forward[float64](s.Features, s.Labels)
	suite.NoError(err)
	suite.InEpsilon(expected, actual, 1e-12)

	// gradient rows follow their samples, matched by content
	grad, err := Backward[float64](b.Features, b.Labels)
	suite.NoError(err)
	shuffled, err := Backward[float64](s.Features, s.Labels)
	suite.NoError(err)
	for i := 0; i < s.Len(); i++ {
		for j := 0; j < b.Len(); j++ {
			if blob.Row[float64](s.Features, i)[0] == blob.Row[float64](b.Features, j)[0] {
				suite.InDeltaSlice(blob.Row[float64](grad, j), blob.Row[float64](shuffled, i), 1e-12)
			}
		}
	}
}

func (suite *ClusterLossTestSuite) TestPrecision() {
	b64 := dataset.Ramp[float64](8, 10)
	b32 := dataset.Ramp[float32](8, 10)
	loss64, err := Forward[float64](b64.Features, b64.Labels)
	suite.NoError(err)
	loss32, err := Forward[float32](b32.Features, b32.Labels)
	suite.NoError(err)
	suite.InEpsilon(loss64, float64(loss32), 1e-5)
}

func (suite *ClusterLossTestSuite) TestCancel() {
	b := dataset.Ramp[float64](4, 2)
	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()
	_, err := NewClusterLoss[float64]().Forward(ctx, b.Features, b.Labels)
	suite.ErrorIs(err, context.Canceled)
	_, err = NewClusterLoss[float64](WithJobs(2)).Backward(ctx, b.Features, b.Labels)
	suite.ErrorIs(err, context.Canceled)
}

func TestClusterLoss(t *testing.T) {
	suite.Run(t, new(ClusterLossTestSuite))
}

func TestDotProductsComputedOnce(t *testing.T) {
	b := dataset.Gaussian[float64](base.NewRandomGenerator(3), 9, 5, 0, 1)
	n := b.Len()
	l := NewClusterLoss[float64](WithJobs(3))

	batch, err := l.prepare(b.Features, b.Labels)
	assert.NoError(t, err)
	_, err = l.forward(context.Background(), batch)
	assert.NoError(t, err)
	assert.Equal(t, int64(n*(n-1)/2), batch.dots.Computed())

	batch, err = l.prepare(b.Features, b.Labels)
	assert.NoError(t, err)
	assert.NoError(t, l.backward(context.Background(), batch, make([]float64, n*b.Dim())))
	assert.Equal(t, int64(n*(n-1)/2), batch.dots.Computed())
}
