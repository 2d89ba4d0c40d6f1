package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Frame is one serialized push, tagged with the tracking event it carries.
type Frame struct {
	EventID int64
	Data    []byte
}

// Subscriber is one live connection's view of an order's stream. Frames are queued
// without blocking the publisher; a subscriber that cannot keep up is closed.
type Subscriber struct {
	ID      string
	OrderID int64

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

// NewSubscriber creates a subscriber with a bounded outbound queue.
func NewSubscriber(orderID int64, queueSize int) *Subscriber {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Subscriber{
		ID:      uuid.NewString(),
		OrderID: orderID,
		send:    make(chan Frame, queueSize),
		done:    make(chan struct{}),
	}
}

// Frames is the outbound queue. It is never closed; watch Done instead.
func (s *Subscriber) Frames() <-chan Frame { return s.send }

// Done is closed once the subscriber is closed.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Close marks the subscriber closed. Safe to call more than once.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Closed reports whether Close has been called.
func (s *Subscriber) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// offer queues f without blocking. It reports false when the subscriber is closed or full.
func (s *Subscriber) offer(f Frame) bool {
	if s.Closed() {
		return false
	}
	select {
	case s.send <- f:
		return true
	default:
		return false
	}
}
