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

// Package algorithm defines the pluggable trigger-algorithm capability
// and the adapter the stage driver uses to invoke it safely.
package algorithm

import (
	"fmt"

	"github.com/mroda88/trigger/pkg/isb"
)

// Algorithm maps input elements to output elements. Apply is called once
// per input element in time order; Flush is called on a heartbeat to
// release any state the algorithm has accumulated internally. Both may
// return zero, one, or many outputs, or an error.
type Algorithm[A isb.Element, B isb.Element] interface {
	Apply(in A) ([]B, error)
	Flush(endTime isb.Tick) ([]B, error)
}

// Maker builds a fresh Algorithm instance from an opaque configuration
// blob. A fresh instance is built on every stage start so no state leaks
// across runs.
type Maker[A isb.Element, B isb.Element] func(config map[string]any) (Algorithm[A, B], error)

// FatalError wraps any error raised by Apply or Flush. The stage
// classifies it as AlgorithmFatalError: logged, the current invocation is
// discarded, and processing continues with the next input.
type FatalError struct {
	Op  string // "apply" or "flush"
	Err error
}

func (e FatalError) Error() string {
	return fmt.Sprintf("AlgorithmFatalError: %s failed: %s", e.Op, e.Err)
}

func (e FatalError) Unwrap() error { return e.Err }

// Apply invokes alg.Apply, wrapping any returned error as a FatalError.
func Apply[A isb.Element, B isb.Element](alg Algorithm[A, B], in A) (out []B, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FatalError{Op: "apply", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	out, err = alg.Apply(in)
	if err != nil {
		err = FatalError{Op: "apply", Err: err}
	}
	return out, err
}

// Flush invokes alg.Flush, wrapping any returned error as a FatalError.
func Flush[A isb.Element, B isb.Element](alg Algorithm[A, B], endTime isb.Tick) (out []B, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FatalError{Op: "flush", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	out, err = alg.Flush(endTime)
	if err != nil {
		err = FatalError{Op: "flush", Err: err}
	}
	return out, err
}

// FailedToSendError is raised when the stage cannot deliver an output
// element downstream within the send timeout. The offending output is
// dropped, never retried indefinitely.
type FailedToSendError struct {
	Reason string
}

func (e FailedToSendError) Error() string {
	return fmt.Sprintf("AlgorithmFailedToSend: %s", e.Reason)
}
