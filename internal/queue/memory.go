package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process FIFO used in dev and tests.
type MemoryQueue struct {
	mu     sync.Mutex
	items  []Message
	notify chan struct{}
	closed bool
}

// NewMemoryQueue constructs an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{notify: make(chan struct{}, 1)}
}

// Send appends msg to the queue.
func (q *MemoryQueue) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Receive pops the oldest message, waiting up to wait for one to arrive.
func (q *MemoryQueue) Receive(ctx context.Context, wait time.Duration) (Message, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return msg, true, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Message{}, false, ErrClosed
		}

		select {
		case <-ctx.Done():
			return Message{}, false, ctx.Err()
		case <-timer.C:
			return Message{}, false, nil
		case <-q.notify:
		}
	}
}

// Len reports the number of queued messages.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes blocked receivers; queued messages are dropped.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

var (
	_ Client   = (*MemoryQueue)(nil)
	_ Consumer = (*MemoryQueue)(nil)
)
