package trigger

import (
	"sync"

	"github.com/mcf-go/mcf/value"
)

// EventQueue is a Receiver that records only topic names, not payloads
// (spec.md §3 "Receiver (capability set)"); useful for components that
// only need to know *that* a topic changed, not its value (they re-read
// through GetValue when convenient).
type EventQueue struct {
	TriggerSource

	mu     sync.Mutex
	topics []string
	maxLen int
}

// NewEventQueue returns an EventQueue bounded to maxLen topic names.
// maxLen <= 0 means unbounded.
func NewEventQueue(maxLen int) *EventQueue {
	return &EventQueue{maxLen: maxLen}
}

// Receive implements Receiver, recording only the topic name.
func (q *EventQueue) Receive(topic string, _ value.Value) {
	q.mu.Lock()
	q.topics = append(q.topics, topic)
	if q.maxLen > 0 && len(q.topics) > q.maxLen {
		q.topics = q.topics[len(q.topics)-q.maxLen:]
	}
	q.mu.Unlock()
	q.Notify()
}

// IsBlocked implements Receiver: an EventQueue never blocks a publisher.
func (q *EventQueue) IsBlocked(string) bool { return false }

// WaitBlocked implements Receiver as a no-op.
func (q *EventQueue) WaitBlocked(string, func() bool) {}

// Pop removes and returns the oldest recorded topic name.
func (q *EventQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.topics) == 0 {
		return "", false
	}
	t := q.topics[0]
	q.topics = q.topics[1:]
	return t, true
}

// Len returns the number of buffered topic names.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.topics)
}
