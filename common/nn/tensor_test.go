// Copyright 2024 gorse Project Authors
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
	"testing"

	"github.com/gorse-io/clusterloss/base"
	"github.com/gorse-io/clusterloss/common/blob"
	"github.com/stretchr/testify/assert"
)

func TestTensor_String(t *testing.T) {
	assert.Equal(t, "3", NewScalar(3).String())
	assert.Equal(t, "[1, 2, 3]", NewTensor([]float32{1, 2, 3}, 3).String())
	assert.Equal(t, "[0, 0, 0, 0, 0, ..., 0, 0, 0, 0, 0]", Zeros(3, 4).String())
}

func TestTensor_Blob(t *testing.T) {
	x := FromBlob(blob.Matrix([][]float32{{1, 2}, {3, 4}, {5, 6}}))
	assert.Equal(t, []int{3, 2}, x.Shape())
	assert.Equal(t, 3, blob.Num[float32](x))
	assert.Equal(t, 2, blob.Dim[float32](x))
	assert.Equal(t, []float32{5, 6}, blob.Row[float32](x, 2))
	assert.Panics(t, func() { NewTensor([]float32{1, 2, 3}, 2, 2) })
}

func TestNormal(t *testing.T) {
	a := Normal(base.NewRandomGenerator(1), 0, 2, 3, 4)
	b := Normal(base.NewRandomGenerator(1), 0, 2, 3, 4)
	assert.Equal(t, []int{3, 4}, a.Shape())
	assert.Equal(t, a.Data(), b.Data())
}
