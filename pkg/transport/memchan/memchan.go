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

// Package memchan is an in-memory Receiver/Sender pair over a buffered Go
// channel, used by unit tests and the test-producer/heartbeat-injector
// collaborators to drive a stage without a real broker.
package memchan

import (
	"context"
	"sync"
	"time"

	"github.com/mroda88/trigger/pkg/transport"
)

// Channel is a bounded queue implementing both transport.Receiver and
// transport.Sender over the same underlying Go channel.
type Channel[T any] struct {
	ch        chan T
	closeOnce sync.Once
	closed    chan struct{}
}

// New returns a Channel with the given buffer capacity.
func New[T any](capacity int) *Channel[T] {
	return &Channel[T]{
		ch:     make(chan T, capacity),
		closed: make(chan struct{}),
	}
}

var _ transport.Receiver[struct{}] = (*Channel[struct{}])(nil)
var _ transport.Sender[struct{}] = (*Channel[struct{}])(nil)

// Recv blocks until a value is available, timeout elapses, ctx is done,
// or the channel is closed.
func (c *Channel[T]) Recv(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	select {
	case <-c.closed:
		return zero, transport.ErrClosed
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v, ok := <-c.ch:
		if !ok {
			return zero, transport.ErrClosed
		}
		return v, nil
	case <-timer.C:
		return zero, transport.ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-c.closed:
		return zero, transport.ErrClosed
	}
}

// Send blocks until the value is accepted, timeout elapses, ctx is done,
// or the channel is closed.
func (c *Channel[T]) Send(ctx context.Context, value T, timeout time.Duration) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.ch <- value:
		return nil
	case <-timer.C:
		return transport.ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return transport.ErrClosed
	}
}

// Close marks the channel closed; further Recv/Send return ErrClosed.
func (c *Channel[T]) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
