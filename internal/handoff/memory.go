package handoff

import (
	"sync"

	"github.com/rickgao/pushchannel/internal/model"
)

// Memory is a thread-safe ring buffer that doubles its capacity when it
// reaches 70% full.
type Memory struct {
	mu       sync.Mutex
	buf      []model.Message
	head     int // read position
	tail     int // write position
	count    int
	capacity int

	// Stats
	totalEnqueued int64
	totalDequeued int64
	resizeCount   int
}

// MemoryStats contains buffer statistics.
type MemoryStats struct {
	Count         int
	Capacity      int
	TotalEnqueued int64
	TotalDequeued int64
	ResizeCount   int
}

// NewMemory creates a queue with the given initial capacity.
func NewMemory(initialCapacity int) *Memory {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &Memory{
		buf:      make([]model.Message, initialCapacity),
		capacity: initialCapacity,
	}
}

// Enqueue appends msg, growing the buffer if needed.
func (q *Memory) Enqueue(msg model.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = msg
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.totalEnqueued++
}

// Dequeue pops the oldest message without blocking.
func (q *Memory) Dequeue() (model.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return model.Message{}, false
	}

	msg := q.buf[q.head]
	q.buf[q.head] = model.Message{} // Clear reference for GC
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.totalDequeued++

	return msg, true
}

// Len returns the number of pending messages.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns buffer statistics.
func (q *Memory) Stats() MemoryStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return MemoryStats{
		Count:         q.count,
		Capacity:      q.capacity,
		TotalEnqueued: q.totalEnqueued,
		TotalDequeued: q.totalDequeued,
		ResizeCount:   q.resizeCount,
	}
}

// grow doubles the capacity. Must be called with lock held.
func (q *Memory) grow() {
	newCapacity := q.capacity * 2
	newBuf := make([]model.Message, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizeCount++
}
