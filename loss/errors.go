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

import "github.com/juju/errors"

const (
	// ErrLabelFormat indicates a label that is not an integer.
	ErrLabelFormat = errors.ConstError("non-integer label")
	// ErrLabelCardinality indicates a label that does not occur exactly twice in a minibatch.
	ErrLabelCardinality = errors.ConstError("label must occur exactly twice")
	// ErrDegenerateInput indicates a minibatch too small to normalize the loss.
	ErrDegenerateInput = errors.ConstError("degenerate input")
	// ErrNonDifferentiableInput indicates a gradient request with respect to labels.
	ErrNonDifferentiableInput = errors.ConstError("cannot backpropagate to label inputs")
	// ErrShapeMismatch indicates inputs whose sizes disagree.
	ErrShapeMismatch = errors.ConstError("shape mismatch")
)
