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

// Package window implements TimeSliceOutputBuffer: it groups outgoing
// elements into fixed-width windows aligned to a global grid and releases
// each window once the watermark has advanced far enough past its end.
// Heartbeat markers are interleaved with payload windows in time order.
package window

import (
	"github.com/mroda88/trigger/pkg/isb"
)

// bucket holds one window's worth of buffered elements.
type bucket[B isb.Element] struct {
	idx     uint64 // k, where the window is [k*windowTime, (k+1)*windowTime)
	objects []B
}

// heartbeatMarker is a queued heartbeat, kept separate from payload
// buckets so it can be released in time order relative to them.
type heartbeatMarker[B isb.Element] struct {
	set isb.Set[B]
}

// OutputBuffer groups B elements into fixed windowTime-wide windows on the
// grid {k*windowTime}, releasing a window only once the watermark has
// reached at least the window's end plus bufferTime. It is
// not safe for concurrent use; the stage driver is its sole caller.
type OutputBuffer[B isb.Element] struct {
	windowTime isb.Tick
	bufferTime isb.Tick

	watermark isb.Tick

	// buckets is ordered by idx ascending; buckets are appended to and
	// removed from the front, so a slice (not a map) keeps release order
	// trivial to compute.
	buckets []bucket[B]

	heartbeats []heartbeatMarker[B]

	origin isb.Origin
	seqno  uint64

	suppressed uint64
}

// NewOutputBuffer returns an empty OutputBuffer. origin is stamped onto
// every Set this buffer releases; seqno starts at 1 and increases
// strictly with every Set produced by Flush.
func NewOutputBuffer[B isb.Element](windowTime, bufferTime isb.Tick, origin isb.Origin) *OutputBuffer[B] {
	return &OutputBuffer[B]{
		windowTime: windowTime,
		bufferTime: bufferTime,
		origin:     origin,
	}
}

func (o *OutputBuffer[B]) windowIndex(t isb.Tick) uint64 {
	return uint64(t / o.windowTime)
}

func (o *OutputBuffer[B]) windowEnd(idx uint64) isb.Tick {
	return isb.Tick(idx+1) * o.windowTime
}

func (o *OutputBuffer[B]) advanceWatermark(t isb.Tick) {
	if t > o.watermark {
		o.watermark = t
	}
}

// Buffer inserts elements into the bucket their TimeStart maps to on the
// window grid, creating the bucket if needed. It advances the watermark
// to the maximum TimeStart observed.
func (o *OutputBuffer[B]) Buffer(elems []B) {
	for _, e := range elems {
		o.advanceWatermark(e.TimeStart())
		idx := o.windowIndex(e.TimeStart())
		o.insertInto(idx, e)
	}
}

func (o *OutputBuffer[B]) insertInto(idx uint64, e B) {
	// buckets is small and append-mostly ordered; linear scan is fine.
	for i := range o.buckets {
		if o.buckets[i].idx == idx {
			o.buckets[i].objects = append(o.buckets[i].objects, e)
			return
		}
		if o.buckets[i].idx > idx {
			nb := bucket[B]{idx: idx, objects: []B{e}}
			o.buckets = append(o.buckets[:i], append([]bucket[B]{nb}, o.buckets[i:]...)...)
			return
		}
	}
	o.buckets = append(o.buckets, bucket[B]{idx: idx, objects: []B{e}})
}

// BufferHeartbeat enqueues a heartbeat marker and advances the watermark
// to its start_time.
func (o *OutputBuffer[B]) BufferHeartbeat(hb isb.Set[B]) {
	o.advanceWatermark(hb.StartTime)
	o.heartbeats = append(o.heartbeats, heartbeatMarker[B]{set: hb})
}

// closedBucketIdx returns the index of the earliest bucket whose window
// is closed (watermark >= window end + bufferTime), and whether one exists.
func (o *OutputBuffer[B]) closedBucketIdx() (int, bool) {
	for i := range o.buckets {
		if o.watermark >= o.windowEnd(o.buckets[i].idx)+o.bufferTime {
			return i, true
		}
	}
	return 0, false
}

// Ready reports whether at least one payload window is closed or a
// heartbeat marker is queued, i.e. Flush would return something.
func (o *OutputBuffer[B]) Ready() bool {
	if len(o.heartbeats) > 0 {
		return true
	}
	_, ok := o.closedBucketIdx()
	return ok
}

// Flush pops the earliest releasable item — a closed payload window or a
// queued heartbeat, whichever comes first in ascending start_time, with a
// payload window winning a tie against a heartbeat at the same
// start_time. It returns ok=false when nothing is releasable yet.
//
// Windows with zero elements are silently dropped (never returned);
// Flush keeps advancing past them until it finds a non-empty window, a
// heartbeat, or runs out of releasable items.
func (o *OutputBuffer[B]) Flush() (out isb.Set[B], ok bool) {
	return o.flushNext(false)
}

// DrainAll force-releases every window and heartbeat regardless of
// whether the watermark has closed it, in ascending start_time, used by
// the stage driver's non-dropping drain path to get clean EOS semantics
// at shutdown. It leaves the buffer empty.
func (o *OutputBuffer[B]) DrainAll() []isb.Set[B] {
	var out []isb.Set[B]
	for {
		s, ok := o.flushNext(true)
		if !ok {
			return out
		}
		out = append(out, s)
	}
}

func (o *OutputBuffer[B]) flushNext(forceAll bool) (out isb.Set[B], ok bool) {
	for {
		var bi int
		var haveBucket bool
		if forceAll {
			haveBucket = len(o.buckets) > 0
		} else {
			bi, haveBucket = o.closedBucketIdx()
		}
		var bucketStart isb.Tick
		if haveBucket {
			bucketStart = isb.Tick(o.buckets[bi].idx) * o.windowTime
		}

		haveHB := len(o.heartbeats) > 0
		var hbStart isb.Tick
		if haveHB {
			hbStart = o.heartbeats[0].set.StartTime
		}

		switch {
		case !haveBucket && !haveHB:
			return isb.Set[B]{}, false

		case haveBucket && (!haveHB || bucketStart <= hbStart):
			b := o.buckets[bi]
			o.buckets = append(o.buckets[:bi], o.buckets[bi+1:]...)
			if len(b.objects) == 0 {
				o.suppressed++
				continue
			}
			isb.SortByTimeStart(b.objects)
			o.seqno++
			out, _ = isb.NewPayloadSet[B](bucketStart, o.windowEnd(b.idx), o.origin, b.objects)
			out.Seqno = o.seqno
			return out, true

		default:
			hb := o.heartbeats[0]
			o.heartbeats = o.heartbeats[1:]
			o.seqno++
			hb.set.Origin = o.origin
			hb.set.Seqno = o.seqno
			return hb.set, true
		}
	}
}

// TakeSuppressed returns the number of empty windows dropped by Flush or
// DrainAll since the last call, and resets the count to zero. The buffer
// has no metrics dependency of its own; the stage driver polls this to
// know how much to add to its own suppressed-window counter.
func (o *OutputBuffer[B]) TakeSuppressed() uint64 {
	n := o.suppressed
	o.suppressed = 0
	return n
}

// Empty reports whether there is no buffered payload data and no queued
// heartbeat left, closed or not.
func (o *OutputBuffer[B]) Empty() bool {
	return len(o.buckets) == 0 && len(o.heartbeats) == 0
}

// Reset discards all buffered windows and heartbeats and rewinds the
// watermark. seqno is left untouched: sequence numbers keep increasing
// across a reset, matching the "strictly increasing in emission order"
// invariant which spans the life of the buffer, not any one window.
func (o *OutputBuffer[B]) Reset() {
	o.buckets = nil
	o.heartbeats = nil
	o.watermark = 0
}

// SetWindowTime updates the window width used for future Buffer calls.
func (o *OutputBuffer[B]) SetWindowTime(w isb.Tick) { o.windowTime = w }

// SetBufferTime updates the release lag used for future Flush calls.
func (o *OutputBuffer[B]) SetBufferTime(b isb.Tick) { o.bufferTime = b }
