package ports

import (
	"syscall"

	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

// Stampable is implemented by a Value type usable with SenderPort[T]: it
// must be able to return a copy of itself carrying a freshly assigned id.
// Concrete value types implement it trivially by replacing their embedded
// value.Base:
//
//	func (v Reading) WithID(id value.ID) value.Value {
//	        v.Base = value.NewBase(id)
//	        return v
//	}
type Stampable interface {
	value.Value
	WithID(id value.ID) value.Value
}

// SenderPort is spec.md §4.2's sender port. SetValue injects a fresh id
// via the owning component's IDGenerator, then publishes through the
// Value Store.
type SenderPort[T Stampable] struct {
	base
	ids IDSource
}

// NewSenderPort returns an unmapped SenderPort named name, publishing
// through store and minting ids from ids.
func NewSenderPort[T Stampable](name string, store *valuestore.Store, ids IDSource) *SenderPort[T] {
	return &SenderPort[T]{base: base{name: name, direction: Sender, store: store}, ids: ids}
}

// SetValue publishes v on the port's bound topic. blocking selects whether
// a full blocking-mode receiver causes SetValue to wait (true) or return
// EAGAIN immediately (false). The abort predicate is "the port is no
// longer connected": disconnecting the port cancels an in-progress
// blocking write within one polling interval (spec.md §4.2).
//
// Forbidding publication of a still-mutable shared reference — spec.md
// §4.2's "a shared mutable payload must not enter the store" — is
// enforced by Go's value semantics here: v is passed by value and T's
// WithID returns a fresh copy, so no caller-held mutable alias of the
// published value ever exists.
func (p *SenderPort[T]) SetValue(v T, blocking bool) error {
	if !p.IsConnected() {
		return syscall.ENOTCONN
	}
	topic := p.Topic()
	var id value.ID
	if p.ids != nil {
		id = p.ids.Next()
	}
	stamped := v.WithID(id)
	abort := func() bool { return !p.IsConnected() }
	switch p.store.SetValue(topic, stamped, blocking, abort) {
	case valuestore.Ok:
		return nil
	case valuestore.Again:
		return syscall.EAGAIN
	case valuestore.Cancelled:
		return syscall.ECANCELED
	default:
		return nil
	}
}
