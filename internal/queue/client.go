package queue

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a consumer whose backend has been shut down.
var ErrClosed = errors.New("queue closed")

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Consumer pulls messages off a queue backend. Receive blocks for at most
// wait and reports ok=false when nothing arrived in time.
type Consumer interface {
	Receive(ctx context.Context, wait time.Duration) (msg Message, ok bool, err error)
}
