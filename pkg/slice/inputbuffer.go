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

// Package slice implements TimeSliceInputBuffer: it reassembles the
// fragmentary payload Sets that share one [start_time, end_time) key,
// sent by possibly many producers, into a single time-ordered slice.
package slice

import (
	"go.uber.org/zap"

	"github.com/mroda88/trigger/pkg/isb"
)

// key is the (start_time, end_time) pair that identifies a time slice
// across all of its producers.
type key struct {
	start, end isb.Tick
}

// InputBuffer accumulates Set[A] fragments that share a slice key until a
// new key is observed, at which point the buffered slice is considered
// complete and is handed back sorted by TimeStart. It is not safe for
// concurrent use; the stage driver is its sole caller.
type InputBuffer[A isb.Element] struct {
	log *zap.SugaredLogger

	haveSlice bool
	current   key
	objects   []A

	havePrevPayload bool
	prevStart       isb.Tick
}

// NewInputBuffer returns an empty InputBuffer.
func NewInputBuffer[A isb.Element](log *zap.SugaredLogger) *InputBuffer[A] {
	return &InputBuffer[A]{log: log}
}

// Buffer absorbs one payload Set. It returns complete=true together with
// the previously buffered slice once the incoming set's key differs from
// the one in progress; the incoming set becomes the new in-progress slice.
// It returns complete=false while the set is merely absorbed.
//
// warn is non-nil when the incoming set's start_time regresses relative
// to the previous payload observed by Buffer; the set is absorbed anyway.
func (b *InputBuffer[A]) Buffer(in isb.Set[A]) (objects []A, start, end isb.Tick, complete bool, warn error) {
	if b.havePrevPayload && in.StartTime < b.prevStart {
		warn = isb.OutOfOrderSetsErr{
			Fatal:     false,
			PrevStart: b.prevStart,
			CurrStart: in.StartTime,
			Message:   "payload start_time regressed",
		}
		b.log.Warnw("out-of-order payload set, absorbing anyway", "prevStart", b.prevStart, "currStart", in.StartTime)
	}
	b.havePrevPayload = true
	b.prevStart = in.StartTime

	k := key{start: in.StartTime, end: in.EndTime}

	if !b.haveSlice {
		b.haveSlice = true
		b.current = k
		b.objects = append(b.objects, in.Objects...)
		return nil, 0, 0, false, warn
	}

	if k == b.current {
		b.objects = append(b.objects, in.Objects...)
		return nil, 0, 0, false, warn
	}

	// key changed: the in-progress slice is complete.
	isb.SortByTimeStart(b.objects)
	objects, start, end = b.objects, b.current.start, b.current.end

	b.current = k
	b.objects = append([]A(nil), in.Objects...)

	return objects, start, end, true, warn
}

// Flush forcibly emits whatever is buffered, sorted by TimeStart. ok is
// false when nothing was buffered.
func (b *InputBuffer[A]) Flush() (objects []A, start, end isb.Tick, ok bool) {
	if !b.haveSlice {
		return nil, 0, 0, false
	}
	isb.SortByTimeStart(b.objects)
	objects, start, end = b.objects, b.current.start, b.current.end

	b.haveSlice = false
	b.objects = nil

	return objects, start, end, true
}
