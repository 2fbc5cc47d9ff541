// Package mcfsched implements spec.md §5's scheduling model: the three
// scheduling classes (default, FIFO real-time, round-robin real-time),
// priority validation and graceful RT fallback, and the priority-ceiling
// lock primitive the value store and remote bridge build on.
package mcfsched

import "fmt"

// Policy is one of MCF's three supported scheduling classes (spec.md §5).
type Policy int

const (
	// PolicyDefault is the platform's normal time-shared scheduling class.
	PolicyDefault Policy = iota
	// PolicyFIFO is real-time first-in-first-out scheduling.
	PolicyFIFO
	// PolicyRoundRobin is real-time round-robin scheduling.
	PolicyRoundRobin
)

func (p Policy) String() string {
	switch p {
	case PolicyDefault:
		return "default"
	case PolicyFIFO:
		return "fifo"
	case PolicyRoundRobin:
		return "round_robin"
	default:
		return "unknown"
	}
}

// Params is a scheduling class plus a priority, to be validated and
// applied to a component's worker thread.
type Params struct {
	Policy   Policy
	Priority int
}

// Validate checks priority against the given policy's kernel-reported
// min/max (spec.md §5: "priorities are validated against the kernel's
// min/max for the chosen policy at set-time; 'default' with non-zero
// priority is rejected").
func (p Params) Validate(caps Capabilities) error {
	if p.Policy == PolicyDefault {
		if p.Priority != 0 {
			return fmt.Errorf("mcfsched: policy %s requires priority 0, got %d", p.Policy, p.Priority)
		}
		return nil
	}
	if !caps.RealTimeAvailable() {
		// Real policies are only meaningfully validated when RT is
		// available; ApplyWithFallback degrades to PolicyDefault before
		// this would ever be used to schedule a thread.
		return nil
	}
	min, max, err := caps.PriorityRange(p.Policy)
	if err != nil {
		return err
	}
	if p.Priority < min || p.Priority > max {
		return fmt.Errorf("mcfsched: priority %d out of range [%d,%d] for policy %s", p.Priority, min, max, p.Policy)
	}
	return nil
}
