/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package algorithm

import "github.com/mroda88/trigger/pkg/isb"

// Identity passes every input through unchanged. It is used to exercise
// the stage's windowing behavior in isolation from any real trigger
// logic (see spec round-trip property: identity algorithm + window_time W
// over a span W*k yields exactly k windows).
type Identity[T isb.Element] struct{}

// NewIdentityMaker returns a Maker for Identity, ignoring config.
func NewIdentityMaker[T isb.Element]() Maker[T, T] {
	return func(_ map[string]any) (Algorithm[T, T], error) {
		return Identity[T]{}, nil
	}
}

func (Identity[T]) Apply(in T) ([]T, error)       { return []T{in}, nil }
func (Identity[T]) Flush(_ isb.Tick) ([]T, error) { return nil, nil }

// Accumulator buffers every input it sees and only releases them on
// Flush. It exercises the heartbeat-triggers-flush path (spec scenario
// S4): Apply never emits, Flush drains and clears the buffer.
type Accumulator[T isb.Element] struct {
	pending []T
}

// NewAccumulatorMaker returns a Maker for Accumulator.
func NewAccumulatorMaker[T isb.Element]() Maker[T, T] {
	return func(_ map[string]any) (Algorithm[T, T], error) {
		return &Accumulator[T]{}, nil
	}
}

func (a *Accumulator[T]) Apply(in T) ([]T, error) {
	a.pending = append(a.pending, in)
	return nil, nil
}

func (a *Accumulator[T]) Flush(_ isb.Tick) ([]T, error) {
	out := a.pending
	a.pending = nil
	return out, nil
}
