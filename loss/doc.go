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

/*
Package loss provides loss kernels for metric learning.

ClusterLoss pulls samples sharing a label together relative to every other sample of
the minibatch. Minibatches must contain every label exactly twice. Both passes build a
PairIndex and a DotCache of their own, so nothing is kept between Forward and Backward.

	l := loss.NewClusterLoss[float64](loss.WithMargin(1), loss.WithLambda(0.001))
	value, err := l.Forward(ctx, features, labels)
	grad, err := l.Backward(ctx, features, labels)

MapLoss is an elementwise loss over binary target maps.

All errors are fatal for the call and can be matched with errors.Is against
ErrLabelFormat, ErrLabelCardinality, ErrDegenerateInput, ErrNonDifferentiableInput and
ErrShapeMismatch.
*/
package loss
