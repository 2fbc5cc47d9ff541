package value

import "sync/atomic"

// ID is a 64-bit value identity. By convention the upper 32 bits encode the
// process that created the value and the lower 32 bits a per-process
// monotonic counter, matching spec.md §3.
type ID uint64

// ProcessID returns the upper 32 bits of the id.
func (id ID) ProcessID() uint32 { return uint32(id >> 32) }

// Counter returns the lower 32 bits of the id.
func (id ID) Counter() uint32 { return uint32(id) }

// IDGenerator assigns process-local, monotonically increasing ids. The zero
// value is not usable; construct with NewIDGenerator.
type IDGenerator struct {
	processID uint32
	counter   atomic.Uint32
}

// NewIDGenerator returns an IDGenerator stamping every id with processID in
// the upper 32 bits.
func NewIDGenerator(processID uint32) *IDGenerator {
	return &IDGenerator{processID: processID}
}

// Next returns the next id for this generator. Safe for concurrent use.
func (g *IDGenerator) Next() ID {
	c := g.counter.Add(1)
	return ID(uint64(g.processID)<<32 | uint64(c))
}
