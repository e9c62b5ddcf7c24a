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

// Package transport defines the Receiver/Sender boundary the stage driver
// blocks on. Wire serialization and the concrete queue are out of scope
// for the stage itself (spec.md §1); this package gives that boundary a
// concrete shape so the driver and its collaborators are testable.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Recv/Send when the operation could not
// complete within the given timeout. The stage driver treats a Recv
// timeout as "no data yet, retry" and a Send timeout as a dropped output.
var ErrTimeout = errors.New("transport: timeout expired")

// ErrClosed is returned once the underlying channel has been closed.
var ErrClosed = errors.New("transport: closed")

// Receiver is the inbound side the stage worker blocks on.
type Receiver[T any] interface {
	// Recv blocks until a value is available, the timeout elapses
	// (ErrTimeout), or ctx is done.
	Recv(ctx context.Context, timeout time.Duration) (T, error)
	Close() error
}

// Sender is the outbound side the stage worker blocks on.
type Sender[T any] interface {
	// Send blocks until the value is accepted, the timeout elapses
	// (ErrTimeout), or ctx is done.
	Send(ctx context.Context, value T, timeout time.Duration) error
	Close() error
}
