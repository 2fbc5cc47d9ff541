package trigger

import "github.com/mcf-go/mcf/value"

// Receiver is the small, stable capability every value store subscriber
// implements (spec.md §3 "Receiver (capability set)", §9 DESIGN NOTES
// "receiver polymorphism"). Concrete variants: EventFlag, ValueQueue,
// EventQueue, and an all-topics receiver such as the recorder or remote
// sender.
type Receiver interface {
	// Receive delivers v published on topic. Implementations must not
	// panic; a panicking receiver is treated by the store as expired and
	// removed (spec.md §4.1 "Failure semantics").
	Receive(topic string, v value.Value)
	// IsBlocked reports whether the receiver cannot currently accept
	// another value on topic (e.g. a full non-blocking-drop queue is never
	// "blocked"; a full blocking queue is).
	IsBlocked(topic string) bool
	// WaitBlocked blocks until the receiver is no longer blocked on topic
	// or abort returns true, polling abort at roughly a 10ms interval
	// (spec.md §4.1 step 3, §9 DESIGN NOTES on cancellation).
	WaitBlocked(topic string, abort func() bool)
}

// Tracer receives a notification each time an EventFlag activates. It
// models spec.md §4.3's optional TriggerTracer / trace-events-topic sink;
// the concrete trace backend (kernel trace-marker file, in-process
// recorder, etc.) is an external collaborator per spec.md §1.
type Tracer interface {
	TraceActivation(topic string, timeNs int64)
}
