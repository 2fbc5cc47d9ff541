package recorder

import (
	"sync"
	"time"

	"github.com/mcf-go/mcf/value"
)

// entry is one publication captured by the recorder's all-topics receiver,
// queued for the background writer (spec.md §4.4).
type entry struct {
	publishedAt time.Time
	topic       string
	val         value.Value
}

// recordQueue is an unbounded FIFO the recorder's receiver pushes into
// without ever blocking the publisher (spec.md §4.4: "without
// backpressuring producers"). The soft queue-size limit that governs
// whether the writer drops an entry is evaluated at dequeue time, not
// enqueue time — see Recorder.handle.
type recordQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []entry
	closed bool
}

func newRecordQueue() *recordQueue {
	q := &recordQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends e. Never blocks.
func (q *recordQueue) push(e entry) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until an entry is available or the queue is closed, returning
// the entry and the queue's size immediately after the pop (the "deque
// size at dequeue time" spec.md §4.4 step 2 refers to).
func (q *recordQueue) pop() (e entry, sizeAfter int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return entry{}, 0, false
	}
	e = q.items[0]
	q.items = q.items[1:]
	return e, len(q.items), true
}

// len returns the current queue depth.
func (q *recordQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close marks the queue closed and wakes any blocked pop, which then
// drains remaining items before returning ok=false.
func (q *recordQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// receiver is the trigger.Receiver the recorder registers as an
// all-topics receiver (spec.md §3 "AllTopicsReceiver"). It never blocks a
// publisher: IsBlocked is always false.
type receiver struct {
	q *recordQueue
}

func (r *receiver) Receive(topic string, v value.Value) {
	r.q.push(entry{publishedAt: time.Now(), topic: topic, val: v})
}
func (r *receiver) IsBlocked(string) bool                { return false }
func (r *receiver) WaitBlocked(string, func() bool)      {}
