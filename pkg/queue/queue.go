package queue

import "errors"

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = errors.New("queue is full")

// Queue is a FIFO handoff between producers and a single consumer.
type Queue interface {
	// Enqueue appends an item, returning ErrQueueFull when at capacity.
	Enqueue(item interface{}) error
	// ReadAllMessages removes and returns every pending item in order.
	ReadAllMessages() ([]interface{}, error)
	// Size returns the number of pending items.
	Size() int
}
