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
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/mroda88/trigger/pkg/config"
	"github.com/mroda88/trigger/pkg/isb"
	"github.com/mroda88/trigger/pkg/shared/logging"
	"github.com/mroda88/trigger/pkg/stage"
	"github.com/mroda88/trigger/pkg/testproducer"
	"github.com/mroda88/trigger/pkg/transport/natschan"
)

// NewStartCommand wires a single Mode 3 stage (the full reassemble +
// window + algorithm + re-window case) between two NATS subjects and
// runs it until the process receives a shutdown signal.
func NewStartCommand() *cobra.Command {
	var (
		configPath   string
		configName   string
		natsURL      string
		inSubject    string
		outSubject   string
		algorithmStr string
		sourceID     uint32
	)

	command := &cobra.Command{
		Use:   "start",
		Short: "Start a trigger stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := uuid.New()
			log := logging.FromContext(cmd.Context()).With("run_id", runID.String())

			gcfg, err := config.LoadConfig(configPath, configName, func(err error) {
				log.Errorw("failed to reload configuration", "err", err)
			})
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if sourceID != 0 {
				gcfg.SourceID = sourceID
			}

			conn, err := nats.Connect(natsURL)
			if err != nil {
				return fmt.Errorf("failed to connect to nats: %w", err)
			}
			defer conn.Close()

			codec := natschan.Codec[isb.Set[testproducer.TPRecord]]{
				Marshal:   func(s isb.Set[testproducer.TPRecord]) ([]byte, error) { return json.Marshal(s) },
				Unmarshal: decodeSet,
			}

			ctx := cmd.Context()
			in, err := natschan.NewSubject(ctx, conn, inSubject, codec)
			if err != nil {
				return fmt.Errorf("failed to subscribe to %q: %w", inSubject, err)
			}
			defer in.Close()
			out, err := natschan.NewSubject(ctx, conn, outSubject, codec)
			if err != nil {
				return fmt.Errorf("failed to subscribe to %q: %w", outSubject, err)
			}
			defer out.Close()

			maker, err := buildMaker(algorithmStr)
			if err != nil {
				return err
			}

			scfg := stage.Config{
				Name:         "trigger",
				WindowTime:   isb.Tick(gcfg.WindowTimeTicks),
				BufferTime:   isb.Tick(gcfg.BufferTimeTicks),
				SourceID:     gcfg.SourceID,
				QueueTimeout: 100 * time.Millisecond,
				DropOnDrain:  true,
			}

			s := stage.NewMode3Stage[testproducer.TPRecord, testproducer.TPRecord](ctx, scfg, in, out, maker)
			if err := s.Configure(nil); err != nil {
				return fmt.Errorf("failed to configure stage: %w", err)
			}
			if err := s.Start(); err != nil {
				return fmt.Errorf("failed to start stage: %w", err)
			}
			log.Infow("stage started", "in", inSubject, "out", outSubject, "algorithm", algorithmStr)

			<-ctx.Done()
			log.Infow("shutdown signal received, stopping")
			s.Stop()
			received, sent := s.Counters().Snapshot()
			if drainErr := s.DrainErr(); drainErr != nil {
				log.Warnw("stage stopped with drain errors", "received", received, "sent", sent, "err", drainErr)
				return nil
			}
			log.Infow("stage stopped", "received", received, "sent", sent)
			return nil
		},
	}

	command.Flags().StringVar(&configPath, "config-path", "/etc/trigger", "directory containing the stage config file")
	command.Flags().StringVar(&configName, "config-name", "stage-config", "stage config file name, without extension")
	command.Flags().StringVar(&natsURL, "nats-url", nats.DefaultURL, "NATS server URL")
	command.Flags().StringVar(&inSubject, "in-subject", "trigger.in", "NATS subject to receive input Sets on")
	command.Flags().StringVar(&outSubject, "out-subject", "trigger.out", "NATS subject to publish output Sets on")
	command.Flags().StringVar(&algorithmStr, "algorithm", "identity", "built-in algorithm to run: identity or accumulator")
	command.Flags().Uint32Var(&sourceID, "source-id", 0, "overrides the configured source_id, written to every output Set's origin")
	return command
}

func decodeSet(b []byte) (isb.Set[testproducer.TPRecord], error) {
	var s isb.Set[testproducer.TPRecord]
	if err := json.Unmarshal(b, &s); err != nil {
		return isb.Set[testproducer.TPRecord]{}, err
	}
	return s, nil
}
