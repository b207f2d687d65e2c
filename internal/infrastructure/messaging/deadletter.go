package messaging

import (
	"errors"
	"sync"
	"time"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

// DeadLetterEntry is an event whose handler failed.
type DeadLetterEntry struct {
	Event    shared.Event
	Error    error
	Attempts int
	FailedAt time.Time
}

// DeadLetterQueue is a fixed-capacity ring of failed deliveries. When full,
// the oldest entry is overwritten.
type DeadLetterQueue struct {
	mu    sync.Mutex
	ring  []DeadLetterEntry
	head  int // index of the oldest entry
	count int
}

// NewDeadLetterQueue allocates a queue holding up to capacity entries.
func NewDeadLetterQueue(capacity int) *DeadLetterQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &DeadLetterQueue{ring: make([]DeadLetterEntry, capacity)}
}

func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tail := (q.head + q.count) % len(q.ring)
	q.ring[tail] = entry
	if q.count < len(q.ring) {
		q.count++
		return
	}
	q.head = (q.head + 1) % len(q.ring)
}

// Entries returns a copy, oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DeadLetterEntry, q.count)
	for i := range out {
		out[i] = q.ring[(q.head+i)%len(q.ring)]
	}
	return out
}

func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Pop removes the oldest entry.
func (q *DeadLetterQueue) Pop() (DeadLetterEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return DeadLetterEntry{}, false
	}
	entry := q.ring[q.head]
	q.ring[q.head] = DeadLetterEntry{}
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	return entry, true
}

// Redeliver drains the queue through handler. Entries that fail again are
// re-queued with Attempts incremented; their errors are joined and returned.
func (q *DeadLetterQueue) Redeliver(handler shared.EventHandler) (delivered int, err error) {
	var failed []DeadLetterEntry
	var errs []error
	for {
		entry, ok := q.Pop()
		if !ok {
			break
		}
		if herr := handler(entry.Event); herr != nil {
			entry.Error = herr
			entry.Attempts++
			entry.FailedAt = time.Now().UTC()
			failed = append(failed, entry)
			errs = append(errs, herr)
			continue
		}
		delivered++
	}
	for _, entry := range failed {
		q.Add(entry)
	}
	return delivered, errors.Join(errs...)
}
