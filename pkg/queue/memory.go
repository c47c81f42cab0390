package queue

import "sync"

// InMemoryQueue is a bounded, mutex guarded Queue.
type InMemoryQueue struct {
	lock     sync.Mutex
	items    []interface{}
	capacity int
}

// NewInMemoryQueue creates a queue holding at most capacity items.
func NewInMemoryQueue(capacity int) *InMemoryQueue {
	return &InMemoryQueue{
		items:    make([]interface{}, 0, capacity),
		capacity: capacity,
	}
}

func (q *InMemoryQueue) Enqueue(item interface{}) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.items) >= q.capacity {
		return ErrQueueFull
	}
	q.items = append(q.items, item)
	return nil
}

func (q *InMemoryQueue) ReadAllMessages() ([]interface{}, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	pending := q.items
	q.items = make([]interface{}, 0, q.capacity)
	return pending, nil
}

func (q *InMemoryQueue) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}
