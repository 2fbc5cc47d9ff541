//go:build !linux

package mcfsched

import "fmt"

// fallbackCapabilities is used on platforms with no SCHED_FIFO/SCHED_RR
// support in this implementation (anything but Linux). Real-time
// scheduling is always reported unavailable; ApplyWithFallback degrades
// every request to PolicyDefault, matching spec.md §5's "if the platform
// lacks real-time capability, all locks/scheduling degrade to ordinary
// semantics with no priority guarantees".
type fallbackCapabilities struct{}

// NewCapabilities returns a Capabilities that always reports no real-time
// support on non-Linux platforms.
func NewCapabilities() Capabilities { return fallbackCapabilities{} }

func (fallbackCapabilities) RealTimeAvailable() bool { return false }

func (fallbackCapabilities) PriorityRange(p Policy) (min, max int, err error) {
	if p == PolicyDefault {
		return 0, 0, nil
	}
	return 0, 0, fmt.Errorf("mcfsched: real-time scheduling unsupported on this platform")
}

func (fallbackCapabilities) SetThreadScheduling(p Params) error {
	if p.Policy != PolicyDefault {
		return fmt.Errorf("mcfsched: real-time scheduling unsupported on this platform")
	}
	return nil
}
