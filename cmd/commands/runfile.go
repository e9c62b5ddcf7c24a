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

package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mroda88/trigger/pkg/heartbeat"
	"github.com/mroda88/trigger/pkg/isb"
	"github.com/mroda88/trigger/pkg/shared/logging"
	"github.com/mroda88/trigger/pkg/stage"
	"github.com/mroda88/trigger/pkg/testproducer"
	"github.com/mroda88/trigger/pkg/transport/memchan"
)

// NewRunFileCommand wires a file-driven test producer, a heartbeat
// injector, and a chosen built-in algorithm into a Mode 3 stage
// entirely in memory, for exercising a stage locally without a broker.
func NewRunFileCommand() *cobra.Command {
	var (
		inputPath        string
		algorithmStr     string
		windowTime       uint64
		bufferTime       uint64
		iterations       int
		interval         time.Duration
		heartbeatTicks   uint64
		heartbeatOffset  uint64
		clockFrequencyHz float64
	)

	command := &cobra.Command{
		Use:   "run-file",
		Short: "Drive a trigger stage from a file-backed test fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.FromContext(cmd.Context()).With("run_id", uuid.New().String())

			f, err := os.Open(inputPath)
			if err != nil {
				return fmt.Errorf("failed to open input file: %w", err)
			}
			defer f.Close()

			maker, err := buildMaker(algorithmStr)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			producerOut := memchan.New[isb.Set[testproducer.TPRecord]](16)
			stageOut := memchan.New[isb.Set[testproducer.TPRecord]](16)

			origin := isb.Origin{Subsystem: "run-file", ElementID: 1}
			producer := testproducer.New(ctx, testproducer.Config{
				Interval:     interval,
				Iterations:   iterations,
				QueueTimeout: time.Second,
				Origin:       origin,
			}, producerOut)
			if err := producer.Configure(f); err != nil {
				return fmt.Errorf("failed to configure test producer: %w", err)
			}

			hb, err := heartbeat.New[testproducer.TPRecord](ctx, heartbeat.Config{
				IntervalTicks:    isb.Tick(heartbeatTicks),
				SendOffsetMs:     heartbeatOffset,
				ClockFrequencyHz: clockFrequencyHz,
				QueueTimeout:     time.Second,
			}, producerOut, isb.Origin{Subsystem: "heartbeat", ElementID: 2})
			if err != nil {
				return fmt.Errorf("failed to build heartbeat injector: %w", err)
			}

			scfg := stage.Config{
				Name:         "run-file",
				WindowTime:   isb.Tick(windowTime),
				BufferTime:   isb.Tick(bufferTime),
				QueueTimeout: 100 * time.Millisecond,
				DropOnDrain:  true,
			}
			s := stage.NewMode3Stage[testproducer.TPRecord, testproducer.TPRecord](ctx, scfg, producerOut, stageOut, maker)
			if err := s.Configure(nil); err != nil {
				return fmt.Errorf("failed to configure stage: %w", err)
			}
			if err := s.Start(); err != nil {
				return fmt.Errorf("failed to start stage: %w", err)
			}

			producer.Start()
			hb.Start()

			go func() {
				for {
					out, err := stageOut.Recv(ctx, time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						continue
					}
					log.Infow("output set", "type", out.Type, "start", out.StartTime, "end", out.EndTime, "seqno", out.Seqno, "objects", len(out.Objects))
				}
			}()

			<-cmd.Context().Done()
			producer.Stop()
			hb.Stop()
			s.Stop()
			received, sent := s.Counters().Snapshot()
			log.Infow("run-file finished", "received", received, "sent", sent, "drain_err", s.DrainErr())
			return nil
		},
	}

	command.Flags().StringVar(&inputPath, "input", "", "path to the tab/space-separated fixture file")
	command.Flags().StringVar(&algorithmStr, "algorithm", "identity", "built-in algorithm to run: identity or accumulator")
	command.Flags().Uint64Var(&windowTime, "window-time", 625000, "output window width, in ticks")
	command.Flags().Uint64Var(&bufferTime, "buffer-time", 0, "extra window release lag, in ticks")
	command.Flags().IntVar(&iterations, "iterations", 0, "number of times to resend the fixture; 0 runs until stopped")
	command.Flags().DurationVar(&interval, "interval", time.Second, "wall-clock gap between fixture emissions")
	command.Flags().Uint64Var(&heartbeatTicks, "heartbeat-interval", 5000, "heartbeat cadence, in ticks")
	command.Flags().Uint64Var(&heartbeatOffset, "heartbeat-send-offset-ms", 0, "heartbeat timestamp lag behind the estimated current tick, in ms")
	command.Flags().Float64Var(&clockFrequencyHz, "clock-frequency-hz", 1, "ticks per second, used to convert the heartbeat send offset and schedule markers")
	_ = command.MarkFlagRequired("input")
	return command
}
