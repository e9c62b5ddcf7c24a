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

// Package heartbeat implements the heartbeat-injector collaborator
// (spec.md §4.5/§9): it periodically emits a degenerate Set<B> timing
// marker so a stage's logical time keeps advancing during a lull in
// payload traffic, the same role the teacher's idlehandler plays for
// watermark propagation on an idle buffer.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mroda88/trigger/pkg/isb"
	"github.com/mroda88/trigger/pkg/shared/logging"
	"github.com/mroda88/trigger/pkg/transport"
)

// Config carries the heartbeat-related keys from spec.md §6.
type Config struct {
	// IntervalTicks is the cadence between markers. New applies no
	// default; the heartbeat_interval config key and the run-file flag
	// default to 5000.
	IntervalTicks isb.Tick
	// ClockFrequencyHz converts ticks to wall-clock seconds; 0 disables
	// conversion and IntervalTicks is treated as milliseconds instead.
	ClockFrequencyHz float64
	// SendOffsetMs is how far behind the estimated current tick each
	// marker's timestamp lags.
	SendOffsetMs uint64
	// CadenceSpec, if set, is a cron expression giving a wall-clock
	// cadence instead of a fixed tick interval.
	CadenceSpec string
	QueueTimeout time.Duration
}

func (c Config) tickInterval() time.Duration {
	if c.ClockFrequencyHz > 0 {
		return time.Duration(float64(c.IntervalTicks) / c.ClockFrequencyHz * float64(time.Second))
	}
	return time.Duration(c.IntervalTicks) * time.Millisecond
}

func (c Config) offsetTicks() isb.Tick {
	if c.ClockFrequencyHz <= 0 {
		return isb.Tick(c.SendOffsetMs)
	}
	return isb.Tick(float64(c.SendOffsetMs) / 1000 * c.ClockFrequencyHz)
}

// Injector periodically sends a heartbeat Set<B> downstream. It owns no
// state the stage depends on for correctness; losing a heartbeat merely
// delays a window's release.
type Injector[B isb.Element] struct {
	cfg      Config
	send     transport.Sender[isb.Set[B]]
	origin   isb.Origin
	schedule cron.Schedule

	currentTick isb.Tick

	log    *zap.SugaredLogger
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup
}

// New returns an Injector bound to send. If cfg.CadenceSpec is non-empty
// it is parsed as a standard cron expression (wall-clock aligned);
// otherwise the injector fires every cfg.tickInterval().
func New[B isb.Element](ctx context.Context, cfg Config, send transport.Sender[isb.Set[B]], origin isb.Origin) (*Injector[B], error) {
	var schedule cron.Schedule
	if cfg.CadenceSpec != "" {
		s, err := cron.ParseStandard(cfg.CadenceSpec)
		if err != nil {
			return nil, err
		}
		schedule = s
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Injector[B]{
		cfg:      cfg,
		send:     send,
		origin:   origin,
		schedule: schedule,
		log:      logging.FromContext(ctx),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start launches the injector's worker goroutine.
func (h *Injector[B]) Start() {
	h.wg.Add(1)
	go h.run()
}

// Stop signals the worker to exit and joins it.
func (h *Injector[B]) Stop() {
	h.cancel()
	h.wg.Wait()
}

func (h *Injector[B]) run() {
	defer h.wg.Done()
	for {
		wait := h.nextWait()
		timer := time.NewTimer(wait)
		select {
		case <-h.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			h.fire()
		}
	}
}

func (h *Injector[B]) nextWait() time.Duration {
	if h.schedule != nil {
		now := time.Now()
		return h.schedule.Next(now).Sub(now)
	}
	return h.cfg.tickInterval()
}

func (h *Injector[B]) fire() {
	h.currentTick += h.cfg.IntervalTicks
	at := h.currentTick
	if off := h.cfg.offsetTicks(); off < at {
		at -= off
	} else {
		at = 0
	}
	hb, err := isb.NewHeartbeatSet[B](at, at, h.origin)
	if err != nil {
		h.log.Errorw("failed to build heartbeat set", "err", err)
		return
	}
	if err := h.send.Send(h.ctx, hb, h.cfg.QueueTimeout); err != nil {
		h.log.Warnw("heartbeat send failed, dropping marker", "err", err)
	}
}
