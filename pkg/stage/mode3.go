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

package stage

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mroda88/trigger/pkg/algorithm"
	"github.com/mroda88/trigger/pkg/isb"
	"github.com/mroda88/trigger/pkg/metrics"
	"github.com/mroda88/trigger/pkg/shared/logging"
	"github.com/mroda88/trigger/pkg/slice"
	"github.com/mroda88/trigger/pkg/transport"
	"github.com/mroda88/trigger/pkg/window"
)

// Mode3Stage is IN=Set<A>, OUT=Set<B>, the full case (spec.md §4.3): it
// reassembles input slices, drives the algorithm, re-windows the output
// on a fixed grid, and emits each closed window (or forwarded heartbeat)
// as its own Set<B> with a freshly assigned seqno.
type Mode3Stage[A isb.Element, B isb.Element] struct {
	Shutdown
	cfg    Config
	recv   transport.Receiver[isb.Set[A]]
	send   transport.Sender[isb.Set[B]]
	maker  algorithm.Maker[A, B]
	config map[string]any

	input  *slice.InputBuffer[A]
	output *window.OutputBuffer[B]
	alg    algorithm.Algorithm[A, B]

	counters Counters
	log      *zap.SugaredLogger
	ctx      context.Context

	wg       sync.WaitGroup
	drainErr error
}

// NewMode3Stage binds the receiver/sender and returns a Mode3Stage ready
// for Configure/Start.
func NewMode3Stage[A isb.Element, B isb.Element](ctx context.Context, cfg Config, recv transport.Receiver[isb.Set[A]], send transport.Sender[isb.Set[B]], maker algorithm.Maker[A, B]) *Mode3Stage[A, B] {
	ctx, cancel := context.WithCancel(ctx)
	m := &Mode3Stage[A, B]{
		cfg:   cfg,
		recv:  recv,
		send:  send,
		maker: maker,
		log:   logging.FromContext(ctx),
		ctx:   ctx,
	}
	m.Shutdown.cancelFn = cancel
	return m
}

func (m *Mode3Stage[A, B]) Configure(config map[string]any) error {
	m.config = config
	return nil
}

func (m *Mode3Stage[A, B]) Start() error {
	alg, err := m.maker(m.config)
	if err != nil {
		return err
	}
	m.alg = alg
	m.input = slice.NewInputBuffer[A](m.log)
	m.output = window.NewOutputBuffer[B](m.cfg.WindowTime, m.cfg.BufferTime, isb.Origin{ElementID: m.cfg.SourceID})
	m.counters = Counters{}

	m.wg.Add(1)
	go m.run()
	return nil
}

func (m *Mode3Stage[A, B]) run() {
	defer m.wg.Done()
	for {
		if m.isShuttingDown() {
			m.drainErr = m.drain(context.Background(), m.cfg.DropOnDrain)
			if m.drainErr != nil {
				m.log.Warnw("mode3 stage drain finished with errors", "err", m.drainErr)
			}
			m.log.Infow("mode3 stage shutting down", "counters", m.counters)
			return
		}
		in, err := m.recv.Recv(m.ctx, m.cfg.QueueTimeout)
		if err != nil {
			// TimeoutExpired on receive: data may simply be absent, retry.
			continue
		}
		m.counters.Received.Inc()
		metrics.ReceivedCount.WithLabelValues(m.cfg.Name, "3").Inc()

		switch in.Type {
		case isb.Payload:
			m.handlePayload(in)
		case isb.Heartbeat:
			m.handleHeartbeat(in)
		default:
			m.log.Errorw("dropping set", zap.Error(isb.UnknownSetErr{Origin: in.Origin}))
			metrics.UnknownSetErrors.WithLabelValues(m.cfg.Name).Inc()
		}
		m.drainClosedWindows()
	}
}

// handlePayload implements spec.md §4.3.1.
func (m *Mode3Stage[A, B]) handlePayload(in isb.Set[A]) {
	// input.Buffer implements the start_time >= previous_payload_start_time
	// check (spec.md §4.1 and §4.3.1.a are the same rule; the InputBuffer
	// is the single source of truth for it).
	objects, _, _, complete, warn := m.input.Buffer(in)
	if warn != nil {
		m.log.Warnw("absorbing out-of-order payload", zap.Error(warn))
		metrics.OutOfOrderWarnings.WithLabelValues(m.cfg.Name).Inc()
	}
	if !complete {
		return
	}
	out := m.applyInOrder(objects)
	m.output.Buffer(out)
}

// handleHeartbeat implements spec.md §4.3.2.
func (m *Mode3Stage[A, B]) handleHeartbeat(hb isb.Set[A]) {
	objects, _, flushedEnd, ok := m.input.Flush()
	if ok {
		if flushedEnd > hb.StartTime {
			m.log.Errorw("absorbing out-of-order heartbeat, continuing anyway", zap.Error(isb.OutOfOrderSetsErr{
				Fatal:     true,
				PrevStart: flushedEnd,
				CurrStart: hb.StartTime,
				Message:   "flushed slice end_time exceeds heartbeat start_time",
			}))
		}
		out := m.applyInOrder(objects)
		m.output.Buffer(out)
	}

	hbOut, _ := isb.NewHeartbeatSet[B](hb.StartTime, hb.EndTime, hb.Origin)
	m.output.BufferHeartbeat(hbOut)

	flushed, err := algorithm.Flush[A, B](m.alg, hb.EndTime)
	if err != nil {
		m.log.Errorw("algorithm flush failed", "err", err)
		metrics.AlgorithmFatalErrors.WithLabelValues(m.cfg.Name, "flush").Inc()
		return
	}
	m.output.Buffer(flushed)
}

func (m *Mode3Stage[A, B]) applyInOrder(objects []A) []B {
	var out []B
	for _, a := range objects {
		produced, err := algorithm.Apply[A, B](m.alg, a)
		if err != nil {
			m.log.Errorw("algorithm failed", "err", err)
			metrics.AlgorithmFatalErrors.WithLabelValues(m.cfg.Name, "apply").Inc()
			continue
		}
		out = append(out, produced...)
	}
	return out
}

// drainClosedWindows implements spec.md §4.3.1.d/§4.3.2.e: every newly
// closed window (or queued heartbeat) is sent downstream, in ascending
// start_time, empty payload windows skipped.
func (m *Mode3Stage[A, B]) drainClosedWindows() {
	for m.output.Ready() {
		out, ok := m.output.Flush()
		if n := m.output.TakeSuppressed(); n > 0 {
			metrics.EmptyWindowsSuppressed.WithLabelValues(m.cfg.Name).Add(float64(n))
		}
		if !ok {
			return
		}
		if err := m.send.Send(m.ctx, out, m.cfg.QueueTimeout); err != nil {
			m.log.Warnw("dropping output set", zap.Error(algorithm.FailedToSendError{Reason: err.Error()}))
			metrics.AlgorithmFailedToSend.WithLabelValues(m.cfg.Name, "send_timeout").Inc()
			continue
		}
		m.counters.Sent.Inc()
		metrics.SentCount.WithLabelValues(m.cfg.Name, "3").Inc()
		if out.Type == isb.Heartbeat {
			metrics.HeartbeatsForwarded.WithLabelValues(m.cfg.Name).Inc()
		}
	}
}

// drain is the terminal phase at stop (spec.md §5, §9): when drop is
// true (the default) the algorithm's buffered state and the output
// buffer's partial windows are released but not forwarded, since they
// are stale relative to a downstream that has already begun its own
// stop. When drop is false, the caller gets clean EOS semantics: the
// input buffer is flushed through the algorithm, the algorithm is
// flushed, and every resulting window (complete or not) is sent using
// ctx rather than m.ctx, which Stop has already cancelled by the time
// the worker loop observes isShuttingDown and reaches here — sending
// with the cancelled context would race the cancellation and drop the
// flush close to half the time.
func (m *Mode3Stage[A, B]) drain(ctx context.Context, drop bool) error {
	if drop {
		m.input.Flush()
		_, _ = algorithm.Flush[A, B](m.alg, 0)
		m.output.Reset()
		return nil
	}

	var errs error
	objects, _, _, ok := m.input.Flush()
	if ok {
		out := m.applyInOrder(objects)
		m.output.Buffer(out)
	}
	flushed, err := algorithm.Flush[A, B](m.alg, 0)
	if err == nil {
		m.output.Buffer(flushed)
	} else {
		errs = multierr.Append(errs, err)
	}
	drained := m.output.DrainAll()
	if n := m.output.TakeSuppressed(); n > 0 {
		metrics.EmptyWindowsSuppressed.WithLabelValues(m.cfg.Name).Add(float64(n))
	}
	for _, out := range drained {
		if err := m.send.Send(ctx, out, m.cfg.QueueTimeout); err != nil {
			m.log.Warnw("dropping output set during drain", zap.Error(algorithm.FailedToSendError{Reason: err.Error()}))
			metrics.AlgorithmFailedToSend.WithLabelValues(m.cfg.Name, "send_timeout").Inc()
			errs = multierr.Append(errs, err)
			continue
		}
		m.counters.Sent.Inc()
		metrics.SentCount.WithLabelValues(m.cfg.Name, "3").Inc()
	}
	return errs
}

// DrainErr returns the aggregated error from the most recent drain, or
// nil if every buffered window was sent (or drop discarded them all
// cleanly). Only meaningful after Stop/ForceStop returns.
func (m *Mode3Stage[A, B]) DrainErr() error {
	return m.drainErr
}

func (m *Mode3Stage[A, B]) Stop() {
	m.Shutdown.stop()
	m.wg.Wait()
}

func (m *Mode3Stage[A, B]) ForceStop() {
	m.Shutdown.forceStop()
	m.wg.Wait()
}

func (m *Mode3Stage[A, B]) Counters() *Counters { return &m.counters }
