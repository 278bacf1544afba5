package core

import (
	"sync"

	"pkt.systems/avorun/schema"
)

// Queue is the message channel between a worker process and its orchestrator:
// unbounded, strict FIFO, one producer and one consumer. Put never blocks and
// the consumer polls with TryGet, so neither side can stall the other.
type Queue struct {
	mu    sync.Mutex
	items []schema.Message
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue { return &Queue{} }

// Put appends a message to the tail.
func (q *Queue) Put(msg schema.Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
}

// TryGet removes and returns the oldest message. It never blocks; the second
// return is false when the queue is empty.
func (q *Queue) TryGet() (schema.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return schema.Message{}, false
	}
	msg := q.items[0]
	q.items[0] = schema.Message{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return msg, true
}

// Empty reports whether the queue holds no messages.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len reports the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
