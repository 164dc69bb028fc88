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
	"math"
	"slices"

	"github.com/gorse-io/clusterloss/common/floats"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"golang.org/x/exp/constraints"
)

const unset = -1

// maxLabel bounds label magnitudes so that every accepted label converts to a
// distinct int64.
const maxLabel = 1 << 53

// Pair holds the two sample indices sharing a label, with First < Second.
type Pair struct {
	First  int
	Second int
}

// PairIndex maps every label in a minibatch to the pair of samples carrying it.
type PairIndex struct {
	labels  []int64
	keys    []int64
	pairs   map[int64]Pair
	partner []int
}

// NewPairIndex scans labels in sample order. Every label must be integral, no larger
// than 2^53 in magnitude, and occur exactly twice.
func NewPairIndex[T constraints.Float](labels []T) (*PairIndex, error) {
	idx := &PairIndex{
		labels: make([]int64, len(labels)),
		pairs:  make(map[int64]Pair, len(labels)/2),
	}
	for i, v := range labels {
		if !floats.IsIntegral(v) || math.Abs(float64(v)) > maxLabel {
			return nil, errors.Annotatef(ErrLabelFormat, "sample %d has label %v", i, v)
		}
		label := int64(v)
		idx.labels[i] = label
		pair, exist := idx.pairs[label]
		switch {
		case !exist:
			// haven't seen this label before
			idx.pairs[label] = Pair{First: i, Second: unset}
		case pair.Second == unset:
			// saw one sample before, insert the second one
			pair.Second = i
			idx.pairs[label] = pair
		default:
			return nil, errors.Annotatef(ErrLabelCardinality,
				"label %d occurs at samples %d, %d and %d", label, pair.First, pair.Second, i)
		}
	}
	idx.keys = lo.Keys(idx.pairs)
	slices.Sort(idx.keys)
	idx.partner = make([]int, len(labels))
	for _, label := range idx.keys {
		pair := idx.pairs[label]
		if pair.Second == unset {
			return nil, errors.Annotatef(ErrLabelCardinality,
				"label %d only occurs at sample %d", label, pair.First)
		}
		idx.partner[pair.First] = pair.Second
		idx.partner[pair.Second] = pair.First
	}
	return idx, nil
}

// Len returns the number of pairs.
func (idx *PairIndex) Len() int {
	return len(idx.keys)
}

// Labels returns distinct labels in ascending order.
func (idx *PairIndex) Labels() []int64 {
	return idx.keys
}

// Pairs returns all pairs in ascending label order.
func (idx *PairIndex) Pairs() []Pair {
	return lo.Map(idx.keys, func(label int64, _ int) Pair {
		return idx.pairs[label]
	})
}

// Partner returns the other sample sharing the label of sample i.
func (idx *PairIndex) Partner(i int) (int, error) {
	if i < 0 || i >= len(idx.partner) {
		return unset, errors.Annotatef(ErrLabelCardinality, "sample %d out of range", i)
	}
	j := idx.partner[i]
	if j == unset || j == i || idx.labels[i] != idx.labels[j] {
		return unset, errors.Annotatef(ErrLabelCardinality, "invalid pair %d, %d", i, j)
	}
	return j, nil
}
