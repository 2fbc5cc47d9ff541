package trigger

import (
	"sync"
	"time"

	"github.com/mcf-go/mcf/value"
)

// EventFlag is a single-slot latest-only Receiver: it tracks whether it is
// "active" since the last Reset, plus the topic and timestamp of the most
// recent activation, and wakes every subscribed Trigger (spec.md §4.3).
type EventFlag struct {
	TriggerSource

	mu        sync.Mutex
	active    bool
	lastTopic string
	lastTime  time.Time
	tracer    Tracer
}

// NewEventFlag returns a ready-to-use EventFlag.
func NewEventFlag() *EventFlag { return &EventFlag{} }

// SetTracer attaches a Tracer; pass nil to detach. Safe to call
// concurrently with Receive: a Receive already past its locked section
// still reports to the previous tracer.
func (f *EventFlag) SetTracer(t Tracer) {
	f.mu.Lock()
	f.tracer = t
	f.mu.Unlock()
}

// Receive implements Receiver: it marks the flag active, records topic and
// time, and notifies every subscribed Trigger.
func (f *EventFlag) Receive(topic string, _ value.Value) {
	now := time.Now()
	f.mu.Lock()
	f.active = true
	f.lastTopic = topic
	f.lastTime = now
	tracer := f.tracer
	f.mu.Unlock()
	if tracer != nil {
		tracer.TraceActivation(topic, now.UnixNano())
	}
	f.Notify()
}

// IsBlocked implements Receiver. An EventFlag never blocks a publisher: it
// simply overwrites its latest-activation record.
func (f *EventFlag) IsBlocked(string) bool { return false }

// WaitBlocked implements Receiver as a no-op, since IsBlocked is always
// false.
func (f *EventFlag) WaitBlocked(string, func() bool) {}

// Active reports and clears (if reset is true) the activation flag,
// matching ReceiverPort.HasValue's "set since last reset" semantics
// (spec.md §4.2).
func (f *EventFlag) Active(reset bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.active
	if reset {
		f.active = false
	}
	return v
}

// Last returns the topic and time of the most recent activation.
func (f *EventFlag) Last() (topic string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTopic, f.lastTime
}

// Reset clears the activation flag without reporting it.
func (f *EventFlag) Reset() {
	f.mu.Lock()
	f.active = false
	f.mu.Unlock()
}
