package trigger

import (
	"sync"
	"time"

	"github.com/mcf-go/mcf/value"
)

// pollInterval is the abort-predicate polling period used by
// ValueQueue.WaitBlocked, matching spec.md §4.1 step 3 and §5's
// "suspension points" table (~10ms).
const pollInterval = 10 * time.Millisecond

// ValueQueue is a bounded FIFO Receiver with optional blocking behavior
// when full (spec.md §4.2 QueuedReceiverPort, §GLOSSARY). When blocking is
// false, Receive on a full queue drops the oldest entry to make room
// (never refuses); when blocking is true, IsBlocked reports true while
// full so the store's write protocol can make the publisher wait.
type ValueQueue struct {
	TriggerSource

	mu       sync.Mutex
	cond     *sync.Cond
	items    []value.Value
	maxLen   int
	blocking bool
}

// NewValueQueue returns a ValueQueue bounded to maxLen entries with the
// given blocking mode. maxLen <= 0 means unbounded.
func NewValueQueue(maxLen int, blocking bool) *ValueQueue {
	q := &ValueQueue{maxLen: maxLen, blocking: blocking}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Receive implements Receiver: it appends v, dropping the oldest entry
// first if non-blocking and full, then notifies subscribed Triggers.
func (q *ValueQueue) Receive(_ string, v value.Value) {
	q.mu.Lock()
	if q.maxLen > 0 && len(q.items) >= q.maxLen {
		if !q.blocking {
			// Drop the oldest to make room (spec.md E2E scenario #2).
			q.items = append(q.items[1:], v)
			q.mu.Unlock()
			q.Notify()
			return
		}
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.cond.Broadcast()
	q.Notify()
}

// IsBlocked implements Receiver: true only when blocking mode is on and
// the queue is at capacity.
func (q *ValueQueue) IsBlocked(string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.blocking && q.maxLen > 0 && len(q.items) >= q.maxLen
}

// WaitBlocked implements Receiver's cancellable-wait contract: it blocks
// until the queue has room or abort returns true, polling abort every
// pollInterval via a timed condition wait rather than an untimed one,
// because abort's underlying state may change without notifying this
// queue's condvar (spec.md §9 DESIGN NOTES).
func (q *ValueQueue) WaitBlocked(_ string, abort func() bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.blocking && q.maxLen > 0 && len(q.items) >= q.maxLen {
		if abort != nil && abort() {
			return
		}
		q.waitTimeout(pollInterval)
	}
}

// waitTimeout waits on q.cond for at most d, re-acquiring q.mu before
// returning (sync.Cond has no native timed wait, so this spins a helper
// goroutine that wakes the cond after d).
func (q *ValueQueue) waitTimeout(d time.Duration) {
	done := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		close(done)
		q.cond.Broadcast()
	})
	defer timer.Stop()
	q.cond.Wait()
	select {
	case <-done:
	default:
	}
}

// Peek returns the head of the queue without removing it.
func (q *ValueQueue) Peek() (value.Value, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Pop removes and returns the head of the queue.
func (q *ValueQueue) Pop() (value.Value, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	q.cond.Broadcast()
	return v, true
}

// Len returns the number of buffered values.
func (q *ValueQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// SetBlocking mutates blocking mode at runtime (spec.md §4.2).
func (q *ValueQueue) SetBlocking(b bool) {
	q.mu.Lock()
	q.blocking = b
	q.mu.Unlock()
	q.cond.Broadcast()
}

// SetMaxLength mutates the capacity at runtime, dropping the oldest
// entries until the queue fits when shrinking (spec.md §4.2).
func (q *ValueQueue) SetMaxLength(n int) {
	q.mu.Lock()
	q.maxLen = n
	if n > 0 {
		for len(q.items) > n {
			q.items = q.items[1:]
		}
	}
	q.mu.Unlock()
	q.cond.Broadcast()
}
