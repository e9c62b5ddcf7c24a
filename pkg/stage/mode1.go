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
	"github.com/mroda88/trigger/pkg/transport"
)

// Mode1Stage is IN=A, OUT=B with no envelopes: every input element is run
// through the algorithm and every produced output is sent individually.
// There is no buffering, no windowing, and no heartbeat handling.
type Mode1Stage[A isb.Element, B isb.Element] struct {
	Shutdown
	cfg    Config
	recv   transport.Receiver[A]
	send   transport.Sender[B]
	maker  algorithm.Maker[A, B]
	config map[string]any

	alg algorithm.Algorithm[A, B]

	counters Counters
	log      *zap.SugaredLogger
	ctx      context.Context

	wg sync.WaitGroup
}

// NewMode1Stage binds the receiver/sender and returns a Mode1Stage ready
// for Configure/Start.
func NewMode1Stage[A isb.Element, B isb.Element](ctx context.Context, cfg Config, recv transport.Receiver[A], send transport.Sender[B], maker algorithm.Maker[A, B]) *Mode1Stage[A, B] {
	ctx, cancel := context.WithCancel(ctx)
	m := &Mode1Stage[A, B]{
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

func (m *Mode1Stage[A, B]) Configure(config map[string]any) error {
	m.config = config
	return nil
}

// Start constructs a fresh algorithm instance (no state leaks across
// runs) and launches the single worker goroutine.
func (m *Mode1Stage[A, B]) Start() error {
	alg, err := m.maker(m.config)
	if err != nil {
		return err
	}
	m.alg = alg
	m.counters = Counters{}

	m.wg.Add(1)
	go m.run()
	return nil
}

func (m *Mode1Stage[A, B]) run() {
	defer m.wg.Done()
	for {
		if m.isShuttingDown() {
			m.log.Infow("mode1 stage shutting down", "counters", m.counters)
			return
		}
		in, err := m.recv.Recv(m.ctx, m.cfg.QueueTimeout)
		if err != nil {
			// TimeoutExpired on receive: data may simply be absent, retry.
			continue
		}
		m.counters.Received.Inc()
		metrics.ReceivedCount.WithLabelValues(m.cfg.Name, "1").Inc()

		out, err := algorithm.Apply[A, B](m.alg, in)
		if err != nil {
			m.log.Errorw("algorithm failed", "err", err)
			metrics.AlgorithmFatalErrors.WithLabelValues(m.cfg.Name, "apply").Inc()
			continue
		}
		for _, b := range out {
			if sendErr := m.send.Send(m.ctx, b, m.cfg.QueueTimeout); sendErr != nil {
				m.log.Warnw("dropping output", zap.Error(algorithm.FailedToSendError{Reason: sendErr.Error()}))
				metrics.AlgorithmFailedToSend.WithLabelValues(m.cfg.Name, "send_timeout").Inc()
				continue
			}
			m.counters.Sent.Inc()
			metrics.SentCount.WithLabelValues(m.cfg.Name, "1").Inc()
		}
	}
}

// Stop signals the worker to exit and joins it. Mode 1 has no buffered
// state to drain.
func (m *Mode1Stage[A, B]) Stop() {
	m.Shutdown.stop()
	m.wg.Wait()
}

// ForceStop behaves like Stop for mode 1: there is nothing buffered that
// a forced stop needs to discard more aggressively.
func (m *Mode1Stage[A, B]) ForceStop() {
	m.Shutdown.forceStop()
	m.wg.Wait()
}

func (m *Mode1Stage[A, B]) Counters() *Counters { return &m.counters }
