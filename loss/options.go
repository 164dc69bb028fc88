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

const (
	DefaultMargin = 1.0
	DefaultLambda = 0.001
)

type Options struct {
	Margin float64 // minimum similarity gap between an anchor pair and other samples
	Lambda float64 // L2 regularization weight
	Jobs   int     // number of workers
}

type Option func(*Options)

func WithMargin(margin float64) Option {
	return func(o *Options) {
		o.Margin = margin
	}
}

func WithLambda(lambda float64) Option {
	return func(o *Options) {
		o.Lambda = lambda
	}
}

func WithJobs(jobs int) Option {
	return func(o *Options) {
		o.Jobs = jobs
	}
}

func NewOptions(opts ...Option) Options {
	opt := Options{
		Margin: DefaultMargin,
		Lambda: DefaultLambda,
		Jobs:   1,
	}
	for _, o := range opts {
		o(&opt)
	}
	if opt.Jobs < 1 {
		opt.Jobs = 1
	}
	return opt
}

// Input identifies a bottom input of a loss layer.
type Input int

const (
	Features Input = iota
	Labels
)

func (i Input) String() string {
	switch i {
	case Features:
		return "features"
	case Labels:
		return "labels"
	default:
		return "unknown"
	}
}
