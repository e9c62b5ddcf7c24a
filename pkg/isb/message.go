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

/*
Package isb defines the in-memory data model shared by every stage: a
logical Tick clock, the generic time-tagged Set envelope that carries
either a slice of elements or a heartbeat, and the Origin that identifies
who produced a Set.
*/
package isb

import (
	"fmt"
	"sort"
)

// Tick is a 64-bit logical timestamp. Its unit and any relation to wall
// clock time is defined entirely by upstream producers.
type Tick uint64

// Element is satisfied by any type carried inside a payload Set. TimeStart
// positions the element on the logical timeline.
type Element interface {
	TimeStart() Tick
}

// SetType discriminates the three kinds of envelope a stage can receive.
type SetType int

const (
	// Payload sets carry elements in Objects. NewPayloadSet checks that
	// each lies in [StartTime, EndTime) but neither sorts them nor
	// requires at least one.
	Payload SetType = iota
	// Heartbeat sets carry no objects; they exist only to advance the watermark.
	Heartbeat
	// Unknown sets are rejected by the stage driver.
	Unknown
)

func (t SetType) String() string {
	switch t {
	case Payload:
		return "payload"
	case Heartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Origin identifies the subsystem and element that produced a Set.
type Origin struct {
	Subsystem string
	ElementID uint32
}

// Set is the time-tagged envelope every stage reads and writes. It covers
// the half-open interval [StartTime, EndTime) and carries either Objects
// (for Payload) or nothing (for Heartbeat).
type Set[T Element] struct {
	Type      SetType
	StartTime Tick
	EndTime   Tick
	Origin    Origin
	Seqno     uint64
	Objects   []T
}

// NewPayloadSet validates and builds a payload Set: start must not exceed
// end, and every object's TimeStart must fall in [start, end).
func NewPayloadSet[T Element](start, end Tick, origin Origin, objects []T) (Set[T], error) {
	if start > end {
		return Set[T]{}, fmt.Errorf("isb: invalid slice key [%d,%d): start after end", start, end)
	}
	for _, o := range objects {
		if o.TimeStart() < start || o.TimeStart() >= end {
			return Set[T]{}, fmt.Errorf("isb: element time_start=%d outside slice [%d,%d)", o.TimeStart(), start, end)
		}
	}
	return Set[T]{
		Type:      Payload,
		StartTime: start,
		EndTime:   end,
		Origin:    origin,
		Objects:   objects,
	}, nil
}

// NewHeartbeatSet builds a heartbeat marker covering [start, end).
func NewHeartbeatSet[T Element](start, end Tick, origin Origin) (Set[T], error) {
	if start > end {
		return Set[T]{}, fmt.Errorf("isb: invalid slice key [%d,%d): start after end", start, end)
	}
	return Set[T]{
		Type:      Heartbeat,
		StartTime: start,
		EndTime:   end,
		Origin:    origin,
	}, nil
}

// SortByTimeStart sorts objects in place by TimeStart, stable so that
// elements sharing a tick preserve their arrival order.
func SortByTimeStart[T Element](objects []T) {
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].TimeStart() < objects[j].TimeStart()
	})
}
