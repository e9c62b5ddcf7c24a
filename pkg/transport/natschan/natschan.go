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

// Package natschan is the concrete stand-in for the inter-stage transport
// that spec.md places out of scope (§1): a Receiver/Sender pair backed by
// a NATS subject, for the CLI and integration tests that need a stage to
// talk to a real broker rather than an in-process channel.
package natschan

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/mroda88/trigger/pkg/shared/logging"
	"github.com/mroda88/trigger/pkg/transport"
)

// Codec marshals/unmarshals the transported value to/from wire bytes.
// The stage's in-memory contract (spec.md §3) is the generic Set[T]
// struct; wire format is left to whatever Codec the caller supplies.
type Codec[T any] struct {
	Marshal   func(T) ([]byte, error)
	Unmarshal func([]byte) (T, error)
}

// Subject is a NATS-backed transport.Receiver and transport.Sender for
// one subject on one connection.
type Subject[T any] struct {
	conn    *nats.Conn
	subject string
	codec   Codec[T]
	log     *zap.SugaredLogger

	sub *nats.Subscription
}

var _ transport.Receiver[struct{}] = (*Subject[struct{}])(nil)
var _ transport.Sender[struct{}] = (*Subject[struct{}])(nil)

// NewSubject subscribes to subject on conn and returns a Subject ready to
// Recv/Send. Closing the returned Subject unsubscribes but does not close
// conn, which may be shared across stages.
func NewSubject[T any](ctx context.Context, conn *nats.Conn, subject string, codec Codec[T]) (*Subject[T], error) {
	s := &Subject[T]{
		conn:    conn,
		subject: subject,
		codec:   codec,
		log:     logging.FromContext(ctx).With("subject", subject),
	}
	sub, err := conn.SubscribeSync(subject)
	if err != nil {
		return nil, fmt.Errorf("natschan: subscribe to %q: %w", subject, err)
	}
	s.sub = sub
	return s, nil
}

// Recv blocks for the next message on the subject.
func (s *Subject[T]) Recv(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	recvCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	msg, err := s.sub.NextMsgWithContext(recvCtx)
	if err != nil {
		if err == nats.ErrTimeout || err == context.DeadlineExceeded {
			return zero, transport.ErrTimeout
		}
		return zero, err
	}
	v, err := s.codec.Unmarshal(msg.Data)
	if err != nil {
		return zero, fmt.Errorf("natschan: decode message on %q: %w", s.subject, err)
	}
	return v, nil
}

// Send publishes value to the subject. NATS core publish does not block
// on slow consumers, and timeout is not used: neither marshaling, the
// publish call, nor delivery is bounded by it.
func (s *Subject[T]) Send(ctx context.Context, value T, timeout time.Duration) error {
	data, err := s.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("natschan: encode message for %q: %w", s.subject, err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		s.log.Warnw("publish failed", "err", err)
		return transport.ErrTimeout
	}
	return nil
}

// Close unsubscribes from the subject.
func (s *Subject[T]) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}
