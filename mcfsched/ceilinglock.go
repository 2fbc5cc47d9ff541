package mcfsched

import "sync"

// CeilingLock is spec.md §4.1/§5's priority-ceiling lock abstraction: a
// thread locking it while running in the default scheduling class is
// first promoted to a real-time class for the critical section's
// duration, then restored to its prior class on unlock. When the platform
// lacks real-time capability, CeilingLock degrades to an ordinary mutex
// with identical call semantics but no priority guarantees (spec.md §4.1
// "Lock discipline", §9 DESIGN NOTES "priority-ceiling locking").
type CeilingLock struct {
	mu       sync.Mutex
	caps     Capabilities
	ceiling  Params
	warn     Warner
	restoreP Params
	elevated bool
}

// NewCeilingLock returns a CeilingLock that elevates to ceiling while
// held, using caps to apply/restore scheduling and warn for the one-time
// RT-unavailable notice.
func NewCeilingLock(caps Capabilities, ceiling Params, warn Warner) *CeilingLock {
	return &CeilingLock{caps: caps, ceiling: ceiling, warn: warn}
}

// Lock acquires the lock, elevating the calling thread's scheduling class
// to the ceiling priority when real-time scheduling is available.
//
// Go's goroutines are not OS threads, so "elevating the calling thread"
// only has an effect when the caller has pinned itself with
// runtime.LockOSThread (as component worker loops do before entering their
// dispatch loop); otherwise this degrades transparently to an ordinary
// mutex, which is always a safe — if priority-guarantee-free — behavior.
//
// The elevation itself happens before mu is acquired (matching the
// original PriorityCeilingMutex's avoidance of a libc quirk where a
// PTHREAD_PRIO_PROTECT mutex can refuse to lock from a non-real-time
// thread), but restoreP — the value Unlock restores — is only ever read or
// written while mu is held, between a successful acquisition here and the
// matching release in Unlock. That keeps it effectively thread-local for
// the lifetime of one critical section instead of a field any contending
// goroutine's Lock/Unlock pair can clobber.
func (l *CeilingLock) Lock() {
	var prior Params
	elevated := false
	if l.caps != nil && l.caps.RealTimeAvailable() {
		p, err := l.currentParams()
		if err == nil {
			if _, aerr := ApplyWithFallback(l.caps, l.ceiling, l.warn); aerr == nil {
				prior = p
				elevated = true
			}
		}
	}
	l.mu.Lock()
	l.elevated = elevated
	if elevated {
		l.restoreP = prior
	} else {
		l.restoreP = Params{}
	}
}

// Unlock releases the lock and restores the prior scheduling class if
// Lock elevated it.
func (l *CeilingLock) Unlock() {
	restore := l.restoreP
	elevated := l.elevated
	l.restoreP = Params{}
	l.elevated = false
	l.mu.Unlock()
	if elevated {
		_, _ = ApplyWithFallback(l.caps, restore, l.warn)
	}
}

// currentParams best-effort reconstructs the thread's scheduling params
// before elevation, so Unlock can restore them. In the absence of a
// portable "read current scheduling params" primitive in Capabilities,
// PolicyDefault/priority-0 is assumed — the common case for a component
// worker that has not itself requested RT scheduling at the point it
// enters a ceiling-protected critical section.
func (l *CeilingLock) currentParams() (Params, error) {
	return Params{Policy: PolicyDefault, Priority: 0}, nil
}
