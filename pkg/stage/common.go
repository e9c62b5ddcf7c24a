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

// Package stage implements the stage driver: the outer loop that pulls
// time-tagged input off a Receiver, dispatches it through a pluggable
// Algorithm, re-windows the output, and pushes it to a Sender. Three
// concrete driver types (Mode1Stage, Mode2Stage, Mode3Stage) cover the
// three input/output envelope combinations spec.md §2 describes as used;
// Mode 4 is declared unused and deliberately not implemented.
package stage

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/mroda88/trigger/pkg/isb"
)

// Config carries the lifecycle-independent settings every mode shares.
type Config struct {
	// Name identifies this stage in logs and metrics labels.
	Name string
	// WindowTime is the output window width in ticks (default 625000).
	WindowTime isb.Tick
	// BufferTime is the extra release lag in ticks (default 0).
	BufferTime isb.Tick
	// SourceID is written to every emitted Set's Origin.ElementID.
	SourceID uint32
	// QueueTimeout bounds every receive and send (default 100ms).
	QueueTimeout time.Duration
	// DropOnDrain selects drain(drop=true) on stop, the spec default.
	// Set false to flush partial state instead of discarding it.
	DropOnDrain bool
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		WindowTime:   625000,
		BufferTime:   0,
		QueueTimeout: 100 * time.Millisecond,
		DropOnDrain:  true,
	}
}

// Counters are the observability surface exported at worker exit
// (spec.md §6): received_count and sent_count.
type Counters struct {
	Received atomic.Int64
	Sent     atomic.Int64
}

// Snapshot returns a point-in-time copy of the counters.
func (c *Counters) Snapshot() (received, sent int64) {
	return c.Received.Load(), c.Sent.Load()
}

// Shutdown tracks and enforces the shutdown activity, mirroring the
// teacher's forward.Shutdown: a cheap, lock-protected flag pair checked
// from the worker loop and mutated from Stop/ForceStop.
type Shutdown struct {
	rwlock         sync.RWMutex
	startShutdown  bool
	forceShutdown  bool
	initiateTime   time.Time
	shutdownReqCtr int
	cancelFn       func()
}

func (s *Shutdown) isShuttingDown() bool {
	s.rwlock.RLock()
	defer s.rwlock.RUnlock()
	return s.startShutdown || s.forceShutdown
}

func (s *Shutdown) stop() {
	s.rwlock.Lock()
	defer s.rwlock.Unlock()
	if s.initiateTime.IsZero() {
		s.initiateTime = time.Now()
	}
	s.startShutdown = true
	s.shutdownReqCtr++
	if s.cancelFn != nil {
		s.cancelFn()
	}
}

func (s *Shutdown) forceStop() {
	s.stop()
	s.rwlock.Lock()
	defer s.rwlock.Unlock()
	s.forceShutdown = true
}

func (s *Shutdown) String() string {
	s.rwlock.RLock()
	defer s.rwlock.RUnlock()
	return fmt.Sprintf("startShutdown:%t forceShutdown:%t requests:%d initiated:%s",
		s.startShutdown, s.forceShutdown, s.shutdownReqCtr, s.initiateTime)
}

// Runner is the common lifecycle capability every mode-specialized stage
// implements (spec.md §4.3, §6). init has no method here: each
// NewModeNStage constructor binds the receiver/sender. Configure
// stashes algorithm configuration, start builds the algorithm and
// launches the worker, stop signals and joins it.
type Runner interface {
	Configure(config map[string]any) error
	Start() error
	Stop()
	ForceStop()
	Counters() *Counters
}
