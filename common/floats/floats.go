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

package floats

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Dot two vectors. Products are summed from left to right so that results are
// reproducible on every platform.
func Dot[T constraints.Float](a, b []T) (ret T) {
	if len(a) != len(b) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		ret += a[i] * b[i]
	}
	return
}

// SumSquares returns the sum of squared elements.
func SumSquares[T constraints.Float](a []T) (ret T) {
	for i := range a {
		ret += a[i] * a[i]
	}
	return
}

// Zero fills zeros in a slice of floats.
func Zero[T constraints.Float](a []T) {
	for i := range a {
		a[i] = 0
	}
}

// Add two vectors: dst = dst + s
func Add[T constraints.Float](dst, s []T) {
	if len(dst) != len(s) {
		panic("floats: slice lengths do not match")
	}
	for i := range dst {
		dst[i] += s[i]
	}
}

// Sub one vector by another: dst = dst - s
func Sub[T constraints.Float](dst, s []T) {
	if len(dst) != len(s) {
		panic("floats: slice lengths do not match")
	}
	for i := range dst {
		dst[i] -= s[i]
	}
}

// MulConst multiplies a vector with a const: dst = dst * c
func MulConst[T constraints.Float](dst []T, c T) {
	for i := range dst {
		dst[i] *= c
	}
}

// DivConst divides a vector by a const: dst = dst / c
func DivConst[T constraints.Float](dst []T, c T) {
	for i := range dst {
		dst[i] /= c
	}
}

// MulConstAdd multiplies a vector and a const, then adds to dst: dst = dst + a * c
func MulConstAdd[T constraints.Float](a []T, c T, dst []T) {
	if len(a) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		dst[i] += a[i] * c
	}
}

// MulConstTo multiplies a vector and a const, then saves the result in dst: dst = a * c
func MulConstTo[T constraints.Float](a []T, c T, dst []T) {
	if len(a) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		dst[i] = a[i] * c
	}
}

// Norm returns the Euclidean norm of a vector, accumulated in float64.
func Norm[T constraints.Float](a []T) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(a[i])
	}
	return math.Sqrt(sum)
}

// IsIntegral reports whether v is finite and holds an integer value.
func IsIntegral[T constraints.Float](v T) bool {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f == math.Round(f)
}

// Hinge returns max(0, x).
func Hinge[T constraints.Float](x T) T {
	if x > 0 {
		return x
	}
	return 0
}

// Indicator returns 1 if x is strictly positive, otherwise 0. It is the
// subgradient of Hinge.
func Indicator[T constraints.Float](x T) T {
	if x > 0 {
		return 1
	}
	return 0
}
