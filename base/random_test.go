// Copyright 2020 gorse Project Authors
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

package base

import (
	"math"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const randomEpsilon = 0.1

func TestRandomGenerator_NormalVector64(t *testing.T) {
	rng := NewRandomGenerator(0)
	vec := rng.NormalVector64(1000, 1, 2)
	assert.False(t, math.Abs(stat.Mean(vec, nil)-1) > randomEpsilon)
	assert.False(t, math.Abs(stat.StdDev(vec, nil)-2) > randomEpsilon)
}

func TestRandomGenerator_UniformVector64(t *testing.T) {
	rng := NewRandomGenerator(0)
	vec := rng.UniformVector64(1000, 1, 2)
	assert.False(t, floats.Min(vec) < 1)
	assert.False(t, floats.Max(vec) > 2)
}

func TestNormalVector(t *testing.T) {
	a := NormalVector[float64](NewRandomGenerator(1701), 100, 0, 10)
	b := NormalVector[float32](NewRandomGenerator(1701), 100, 0, 10)
	for i := range a {
		assert.Equal(t, float32(a[i]), b[i])
	}
	// same seed, same sequence
	assert.Equal(t, a, NormalVector[float64](NewRandomGenerator(1701), 100, 0, 10))
}

func TestRandomGenerator_Permutation(t *testing.T) {
	perm := NewRandomGenerator(0).Permutation(100)
	assert.Len(t, perm, 100)
	assert.Equal(t, 100, mapset.NewSet(perm...).Cardinality())
}
