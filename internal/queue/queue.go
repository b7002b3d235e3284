// Package queue is the unbounded command FIFO between the host and the worker.
package queue

import (
	"sync"

	"github.com/mattjoyce/enginehost/internal/command"
)

// Queue is an unbounded blocking FIFO of envelopes. Any number of goroutines
// may Push; a single logical consumer calls Pop.
//
// There is no backpressure. A producer that floods the queue grows it without
// bound.
type Queue struct {
	mu    sync.Mutex
	ready *sync.Cond
	items []command.Envelope
	head  int
}

// New creates an empty queue.
func New() *Queue {
	q := &Queue{items: make([]command.Envelope, 0, 64)}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// Push appends env to the tail and wakes one waiting consumer.
// It never blocks beyond the internal lock and never fails.
func (q *Queue) Push(env command.Envelope) {
	q.mu.Lock()
	q.items = append(q.items, env)
	q.mu.Unlock()
	q.ready.Signal()
}

// Pop blocks until the queue is non-empty, then removes and returns the oldest
// envelope.
func (q *Queue) Pop() command.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) {
		q.ready.Wait()
	}

	env := q.items[q.head]
	// Release the slot so the envelope (and any weights buffer) can be collected.
	q.items[q.head] = nil
	q.head++

	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head >= 1024 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return env
}

// Len returns the number of queued envelopes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
