// Package trigger provides the condition-variable-based wakeup primitives
// MCF's value store and component runtime use to move work from publishers
// to subscriber threads: Trigger, EventFlag, ValueQueue, EventQueue and the
// TriggerSource fan-out embedded by EventFlag, ValueQueue and EventQueue
// (spec.md §4.3, §GLOSSARY).
package trigger

import "sync"

// Trigger is a (mutex, condvar, flag) unit. Wait blocks until Fire has
// been called at least once since the last Wait returned, then clears the
// flag. Fire may be called from any number of goroutines; Wait is meant
// to be called by exactly one (the owning component's worker).
type Trigger struct {
	mu   sync.Mutex
	cond *sync.Cond
	flag bool
}

// New returns a ready-to-use Trigger.
func New() *Trigger {
	t := &Trigger{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Fire sets the flag and wakes any goroutine blocked in Wait.
func (t *Trigger) Fire() {
	t.mu.Lock()
	t.flag = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

// Wait blocks until Fire has been called, then clears the flag and
// returns. Per spec.md DESIGN NOTES §9 this is an untimed wait: Trigger
// carries no abort predicate, so any caller requiring cancellation must
// wrap Wait with its own signal (see Component's stop-request handling,
// which calls Fire from Stop to unblock Wait rather than relying on Wait
// itself to observe a stop flag).
func (t *Trigger) Wait() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.flag {
		t.cond.Wait()
	}
	t.flag = false
}

// TriggerSource is embedded by receivers (EventFlag, ValueQueue, EventQueue) that fan
// out wakeups to any number of weakly-held Trigger subscribers. Go has no
// weak references, so TriggerSource instead requires explicit
// Subscribe/Unsubscribe, matching the spec's "idempotent add/remove"
// receiver registration style (spec.md §4.1).
type TriggerSource struct {
	mu   sync.Mutex
	subs map[*Trigger]struct{}
}

// Subscribe registers t to be fired on every future Notify call.
// Idempotent.
func (s *TriggerSource) Subscribe(t *Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[*Trigger]struct{})
	}
	s.subs[t] = struct{}{}
}

// Unsubscribe removes t. Idempotent.
func (s *TriggerSource) Unsubscribe(t *Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, t)
}

// Notify fires every subscribed Trigger.
func (s *TriggerSource) Notify() {
	s.mu.Lock()
	subs := make([]*Trigger, 0, len(s.subs))
	for t := range s.subs {
		subs = append(subs, t)
	}
	s.mu.Unlock()
	for _, t := range subs {
		t.Fire()
	}
}
