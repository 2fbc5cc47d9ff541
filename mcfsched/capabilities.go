package mcfsched

// Capabilities reports what real-time scheduling the current platform and
// process privileges actually support, and exposes the kernel's priority
// range for a given policy. Implementations: linuxCapabilities (built on
// golang.org/x/sys/unix; on Linux it also covers the RT-unavailable case)
// and fallbackCapabilities (non-Linux).
type Capabilities interface {
	// RealTimeAvailable reports whether SCHED_FIFO/SCHED_RR are usable —
	// i.e. whether the process holds CAP_SYS_NICE or equivalent.
	RealTimeAvailable() bool
	// PriorityRange returns the kernel-reported [min,max] priority for
	// policy.
	PriorityRange(p Policy) (min, max int, err error)
	// SetThreadScheduling applies policy/priority to the calling OS
	// thread. Callers must have pinned the calling goroutine to its OS
	// thread first (runtime.LockOSThread).
	SetThreadScheduling(p Params) error
}

// Warner receives the one-time warning emitted when an RT policy request
// silently falls back to PolicyDefault (spec.md §5). Satisfied by
// mcflog.Logger.
type Warner interface {
	Warn(msg string, fields map[string]any)
}

// ApplyWithFallback applies p to the calling OS thread via caps, falling
// back to PolicyDefault (and warning exactly once per call) if caps
// reports real-time scheduling is unavailable or the platform rejects the
// request (spec.md §5: "If the process lacks real-time capability, any RT
// selection silently falls back to default with a one-time warning").
func ApplyWithFallback(caps Capabilities, p Params, warn Warner) (applied Params, err error) {
	if p.Policy != PolicyDefault && !caps.RealTimeAvailable() {
		if warn != nil {
			warn.Warn("real-time scheduling unavailable, falling back to default policy", map[string]any{
				"requested_policy":   p.Policy.String(),
				"requested_priority": p.Priority,
			})
		}
		p = Params{Policy: PolicyDefault, Priority: 0}
	}
	if err := p.Validate(caps); err != nil {
		return Params{}, err
	}
	if err := caps.SetThreadScheduling(p); err != nil {
		if p.Policy != PolicyDefault {
			if warn != nil {
				warn.Warn("failed to apply real-time scheduling, falling back to default policy", map[string]any{
					"requested_policy":   p.Policy.String(),
					"requested_priority": p.Priority,
					"error":              err.Error(),
				})
			}
			fallback := Params{Policy: PolicyDefault, Priority: 0}
			if ferr := caps.SetThreadScheduling(fallback); ferr == nil {
				return fallback, nil
			}
		}
		return Params{}, err
	}
	return p, nil
}
