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

	"go.uber.org/zap"

	"github.com/mroda88/trigger/pkg/algorithm"
	"github.com/mroda88/trigger/pkg/isb"
	"github.com/mroda88/trigger/pkg/metrics"
	"github.com/mroda88/trigger/pkg/shared/logging"
	"github.com/mroda88/trigger/pkg/slice"
	"github.com/mroda88/trigger/pkg/transport"
)

// Mode2Stage is IN=Set<A>, OUT=B: payloads are reassembled into complete
// time slices before the algorithm runs; heartbeats flush the algorithm's
// pent-up state. Output is not re-windowed — each B is sent as it is
// produced.
type Mode2Stage[A isb.Element, B isb.Element] struct {
	Shutdown
	cfg    Config
	recv   transport.Receiver[isb.Set[A]]
	send   transport.Sender[B]
	maker  algorithm.Maker[A, B]
	config map[string]any

	input *slice.InputBuffer[A]
	alg   algorithm.Algorithm[A, B]

	counters Counters
	log      *zap.SugaredLogger
	ctx      context.Context

	wg sync.WaitGroup
}

// NewMode2Stage binds the receiver/sender and returns a Mode2Stage ready
// for Configure/Start.
func NewMode2Stage[A isb.Element, B isb.Element](ctx context.Context, cfg Config, recv transport.Receiver[isb.Set[A]], send transport.Sender[B], maker algorithm.Maker[A, B]) *Mode2Stage[A, B] {
	ctx, cancel := context.WithCancel(ctx)
	m := &Mode2Stage[A, B]{
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

func (m *Mode2Stage[A, B]) Configure(config map[string]any) error {
	m.config = config
	return nil
}

func (m *Mode2Stage[A, B]) Start() error {
	alg, err := m.maker(m.config)
	if err != nil {
		return err
	}
	m.alg = alg
	m.input = slice.NewInputBuffer[A](m.log)
	m.counters = Counters{}

	m.wg.Add(1)
	go m.run()
	return nil
}

func (m *Mode2Stage[A, B]) run() {
	defer m.wg.Done()
	for {
		if m.isShuttingDown() {
			m.drain(context.Background(), m.cfg.DropOnDrain)
			m.log.Infow("mode2 stage shutting down", "counters", m.counters)
			return
		}
		in, err := m.recv.Recv(m.ctx, m.cfg.QueueTimeout)
		if err != nil {
			continue
		}
		m.counters.Received.Inc()
		metrics.ReceivedCount.WithLabelValues(m.cfg.Name, "2").Inc()

		switch in.Type {
		case isb.Payload:
			objects, _, _, complete, warn := m.input.Buffer(in)
			if warn != nil {
				m.log.Warnw("out-of-order payload set", zap.Error(warn))
				metrics.OutOfOrderWarnings.WithLabelValues(m.cfg.Name).Inc()
			}
			if complete {
				m.applyInOrder(m.ctx, objects)
			}
		case isb.Heartbeat:
			objects, _, _, ok := m.input.Flush()
			if ok {
				m.applyInOrder(m.ctx, objects)
			}
			out, err := algorithm.Flush[A, B](m.alg, in.EndTime)
			if err != nil {
				m.log.Errorw("algorithm flush failed", "err", err)
				metrics.AlgorithmFatalErrors.WithLabelValues(m.cfg.Name, "flush").Inc()
				continue
			}
			// Mode 2's output is bare B, not Set<B>: the heartbeat itself is
			// never forwarded downstream, only used to flush algorithm state,
			// so HeartbeatsForwarded (a count of heartbeat Sets sent) does
			// not apply here.
			m.sendAll(m.ctx, out)
		default:
			m.log.Errorw("dropping set", zap.Error(isb.UnknownSetErr{Origin: in.Origin}))
			metrics.UnknownSetErrors.WithLabelValues(m.cfg.Name).Inc()
		}
	}
}

func (m *Mode2Stage[A, B]) applyInOrder(ctx context.Context, objects []A) {
	for _, a := range objects {
		out, err := algorithm.Apply[A, B](m.alg, a)
		if err != nil {
			m.log.Errorw("algorithm failed", "err", err)
			metrics.AlgorithmFatalErrors.WithLabelValues(m.cfg.Name, "apply").Inc()
			continue
		}
		m.sendAll(ctx, out)
	}
}

func (m *Mode2Stage[A, B]) sendAll(ctx context.Context, out []B) {
	for _, b := range out {
		if err := m.send.Send(ctx, b, m.cfg.QueueTimeout); err != nil {
			m.log.Warnw("dropping output", zap.Error(algorithm.FailedToSendError{Reason: err.Error()}))
			metrics.AlgorithmFailedToSend.WithLabelValues(m.cfg.Name, "send_timeout").Inc()
			continue
		}
		m.counters.Sent.Inc()
		metrics.SentCount.WithLabelValues(m.cfg.Name, "2").Inc()
	}
}

// drain releases the input buffer's state at shutdown. When drop is
// true (the spec.md default on a user stop) the flushed slice is
// discarded rather than run through the algorithm, since downstream has
// already begun its own stop and the output would be stale. When drop
// is false, the flush is sent with ctx rather than m.ctx: the worker's
// own context is already cancelled by the time drain runs (Stop calls
// cancelFn before the loop observes isShuttingDown), so sending with it
// would race the cancellation and drop the flush about half the time.
func (m *Mode2Stage[A, B]) drain(ctx context.Context, drop bool) {
	objects, _, _, ok := m.input.Flush()
	if !ok || drop {
		return
	}
	m.applyInOrder(ctx, objects)
}

func (m *Mode2Stage[A, B]) Stop() {
	m.Shutdown.stop()
	m.wg.Wait()
}

func (m *Mode2Stage[A, B]) ForceStop() {
	m.Shutdown.forceStop()
	m.wg.Wait()
}

func (m *Mode2Stage[A, B]) Counters() *Counters { return &m.counters }
