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

// Package metrics carries the prometheus counters shared by every stage,
// labeled by the stage that produced the sample.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelStage  = "stage"
	LabelMode   = "mode"
	LabelOp     = "op"
	LabelReason = "reason"
)

// Generic stage metrics.
var (
	ReceivedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "stage",
		Name:      "received_total",
		Help:      "Total number of inputs received (bare elements in mode 1, Sets otherwise)",
	}, []string{LabelStage, LabelMode})

	SentCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "stage",
		Name:      "sent_total",
		Help:      "Total number of outputs sent downstream (bare elements in modes 1 and 2, Sets in mode 3)",
	}, []string{LabelStage, LabelMode})

	OutOfOrderWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "stage",
		Name:      "out_of_order_total",
		Help:      "Total number of OutOfOrderSets warnings",
	}, []string{LabelStage})

	UnknownSetErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "stage",
		Name:      "unknown_set_total",
		Help:      "Total number of Sets with an unrecognized type",
	}, []string{LabelStage})

	AlgorithmFatalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "stage",
		Name:      "algorithm_fatal_total",
		Help:      "Total number of algorithm invocations that panicked or returned a fatal error",
	}, []string{LabelStage, LabelOp})

	AlgorithmFailedToSend = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "stage",
		Name:      "failed_to_send_total",
		Help:      "Total number of outputs (elements or Sets) dropped because the send timed out or the transport closed",
	}, []string{LabelStage, LabelReason})

	EmptyWindowsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "stage",
		Name:      "empty_windows_suppressed_total",
		Help:      "Total number of closed output windows dropped for having no elements",
	}, []string{LabelStage})

	HeartbeatsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "stage",
		Name:      "heartbeats_forwarded_total",
		Help:      "Total number of heartbeat Sets forwarded downstream",
	}, []string{LabelStage})
)
