package ports

import (
	"github.com/mcf-go/mcf/trigger"
	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

// ReceiverPort is spec.md §4.2's latest-only receiver port: it holds an
// EventFlag and always reads through to the store's current value, so
// GetValue never returns a stale copy even if the caller misses an
// activation.
type ReceiverPort[T value.Value] struct {
	base
	flag *trigger.EventFlag
}

// NewReceiverPort returns an unmapped ReceiverPort named name, reading
// from store.
func NewReceiverPort[T value.Value](name string, store *valuestore.Store) *ReceiverPort[T] {
	p := &ReceiverPort[T]{base: base{name: name, direction: Receiver, store: store}, flag: trigger.NewEventFlag()}
	p.addReceiver(p.flag)
	return p
}

// HasValue reports whether a publication has arrived since the last call
// to HasValue (spec.md §4.2: "flag is set since last reset").
func (p *ReceiverPort[T]) HasValue() bool { return p.flag.Active(true) }

// GetValue returns the store's current value on the port's topic downcast
// to T, or the zero T if unmapped, absent, or of a different concrete
// type (spec.md §4.2, §4.1 get_value<T>).
func (p *ReceiverPort[T]) GetValue() T {
	var zero T
	if !p.IsConnected() {
		return zero
	}
	v, ok := valuestore.GetValue[T](p.store, p.Topic())
	if !ok {
		return zero
	}
	return v
}

// RegisterHandler attaches h to this port: h's EventFlag is registered
// with the Value Store under the port's current (and every future)
// topic mapping, so the owning Component wakes and dispatches h whenever
// this port's topic is published (spec.md §4.3 "Handler registration").
// The same handler may be shared across several ports.
func (p *ReceiverPort[T]) RegisterHandler(h *PortTriggerHandler) {
	p.addReceiver(h.Flag())
}
