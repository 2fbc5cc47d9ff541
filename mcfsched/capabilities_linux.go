//go:build linux

package mcfsched

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// linuxCapabilities implements Capabilities with real sched_setscheduler
// syscalls via golang.org/x/sys/unix, probing availability once at
// construction.
type linuxCapabilities struct {
	realTime bool
}

// NewCapabilities probes the current process for real-time scheduling
// availability (CAP_SYS_NICE or running as root) by switching the calling
// thread to SCHED_FIFO at the policy's minimum priority: success means RT
// is available (the thread is then reset to SCHED_OTHER), any error means
// it is not.
func NewCapabilities() Capabilities {
	c := &linuxCapabilities{}
	min, err := unix.SchedGetPriorityMin(unix.SCHED_FIFO)
	if err == nil {
		param := &unix.SchedParam{Priority: min}
		if serr := unix.SchedSetscheduler(0, unix.SCHED_FIFO, param); serr == nil {
			c.realTime = true
			// Restore the normal scheduling class immediately; this probe
			// must not leave the calling thread running real-time.
			_ = unix.SchedSetscheduler(0, unix.SCHED_OTHER, &unix.SchedParam{Priority: 0})
		}
	}
	return c
}

func toUnixPolicy(p Policy) (int, error) {
	switch p {
	case PolicyDefault:
		return unix.SCHED_OTHER, nil
	case PolicyFIFO:
		return unix.SCHED_FIFO, nil
	case PolicyRoundRobin:
		return unix.SCHED_RR, nil
	default:
		return 0, fmt.Errorf("mcfsched: unknown policy %v", p)
	}
}

var _ Capabilities = (*linuxCapabilities)(nil)

func (c *linuxCapabilities) RealTimeAvailable() bool { return c.realTime }

func (c *linuxCapabilities) PriorityRange(p Policy) (min, max int, err error) {
	pol, err := toUnixPolicy(p)
	if err != nil {
		return 0, 0, err
	}
	minP, err := unix.SchedGetPriorityMin(pol)
	if err != nil {
		return 0, 0, fmt.Errorf("mcfsched: SchedGetPriorityMin: %w", err)
	}
	maxP, err := unix.SchedGetPriorityMax(pol)
	if err != nil {
		return 0, 0, fmt.Errorf("mcfsched: SchedGetPriorityMax: %w", err)
	}
	return minP, maxP, nil
}

func (c *linuxCapabilities) SetThreadScheduling(p Params) error {
	pol, err := toUnixPolicy(p.Policy)
	if err != nil {
		return err
	}
	param := &unix.SchedParam{Priority: p.Priority}
	if err := unix.SchedSetscheduler(0, pol, param); err != nil {
		return fmt.Errorf("mcfsched: SchedSetscheduler(%s, %d): %w", p.Policy, p.Priority, err)
	}
	return nil
}
