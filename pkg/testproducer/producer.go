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

package testproducer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mroda88/trigger/pkg/isb"
	"github.com/mroda88/trigger/pkg/shared/logging"
	"github.com/mroda88/trigger/pkg/transport"
)

// Config controls how the producer replays its fixture.
type Config struct {
	// Interval is the wall-clock gap between emissions (default 1s, per
	// spec.md §4.5's "once per second").
	Interval time.Duration
	// Iterations is how many times the assembled Set is (re-)sent. Zero
	// means run until Stop.
	Iterations int
	// QueueTimeout bounds each retried send.
	QueueTimeout time.Duration
	StartTime    isb.Tick
	EndTime      isb.Tick
	Origin       isb.Origin
}

func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = time.Second
	}
	if c.QueueTimeout == 0 {
		c.QueueTimeout = 100 * time.Millisecond
	}
	return c
}

// Producer reads a fixture file at Configure, then at Start replays it
// as a single Set[TPRecord] once per Config.Interval. It has no
// windowing of its own: the fixture is sent unchanged, iteration after
// iteration.
type Producer struct {
	cfg     Config
	send    transport.Sender[isb.Set[TPRecord]]
	set     isb.Set[TPRecord]
	hasSet  bool
	log     *zap.SugaredLogger
	ctx     context.Context
	cancel  func()
	wg      sync.WaitGroup
	emitted int
}

// New binds the producer to a sender. Call Configure before Start.
func New(ctx context.Context, cfg Config, send transport.Sender[isb.Set[TPRecord]]) *Producer {
	ctx, cancel := context.WithCancel(ctx)
	return &Producer{
		cfg:    cfg.withDefaults(),
		send:   send,
		log:    logging.FromContext(ctx),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Configure reads and parses the fixture, assembling it into the one
// Set[TPRecord] that every emission will resend. When Config.StartTime
// and Config.EndTime are both left at their zero value, the slice's
// [start,end) is derived from the fixture itself (min TimeStart ..
// max TimeStart+1) so the §3 in-range validation always has a window
// the parsed records actually fit in.
func (p *Producer) Configure(r io.Reader) error {
	records, err := ParseRecords(r)
	if err != nil {
		return fmt.Errorf("failed to configure test producer: %w", err)
	}
	start, end := p.cfg.StartTime, p.cfg.EndTime
	if start == 0 && end == 0 {
		start, end = recordBounds(records)
	}
	set, err := isb.NewPayloadSet(start, end, p.cfg.Origin, records)
	if err != nil {
		return fmt.Errorf("failed to assemble fixture set: %w", err)
	}
	p.set = set
	p.hasSet = true
	return nil
}

// recordBounds returns the tightest [start,end) slice that contains
// every record's TimeStart. An empty fixture yields [0,0).
func recordBounds(records []TPRecord) (isb.Tick, isb.Tick) {
	if len(records) == 0 {
		return 0, 0
	}
	min, max := records[0].TimeStart(), records[0].TimeStart()
	for _, r := range records[1:] {
		if t := r.TimeStart(); t < min {
			min = t
		} else if t > max {
			max = t
		}
	}
	return min, max + 1
}

// Start launches the replay worker. Configure must have been called
// first.
func (p *Producer) Start() error {
	if !p.hasSet {
		return errors.New("test producer: Configure was not called")
	}
	p.wg.Add(1)
	go p.run()
	return nil
}

// Stop signals the worker to exit and joins it.
func (p *Producer) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Producer) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.emitOnce()
			p.emitted++
			if p.cfg.Iterations > 0 && p.emitted >= p.cfg.Iterations {
				return
			}
		}
	}
}

// emitOnce retries the send until it succeeds or the producer is
// stopped; each attempt is bounded by the queue timeout, and a timed-out
// attempt is simply retried — mirroring the teacher's
// send-retry idiom: a blocked downstream is retried, not silently
// dropped, because this collaborator exists only to feed the stage
// under test.
func (p *Producer) emitOnce() {
	for {
		err := p.send.Send(p.ctx, p.set, p.cfg.QueueTimeout)
		if err == nil {
			return
		}
		if p.ctx.Err() != nil {
			return
		}
		p.log.Warnw("test producer send blocked, retrying", "err", err)
	}
}
