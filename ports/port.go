// Package ports implements spec.md §4.2: the typed, component-owned
// endpoints bound to at most one topic — SenderPort, ReceiverPort,
// QueuedReceiverPort and PortTriggerHandler. Grounded on
// original_source/mcf_core/include/mcf_core/Port.h for the capability
// contract and on the teacher's ConnectionPool/SubscriptionIndex
// registration pattern (ws/internal/shared/connection.go) for the Go
// rendering of "register/deregister against a shared registry".
package ports

import (
	"sync"
	"sync/atomic"

	"github.com/mcf-go/mcf/trigger"
	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

// Direction is a Port's data-flow direction (spec.md §3 "Port").
type Direction int

const (
	Sender Direction = iota
	Receiver
)

func (d Direction) String() string {
	if d == Sender {
		return "sender"
	}
	return "receiver"
}

// IDSource supplies fresh value ids at publication time. Satisfied by
// *value.IDGenerator; a Component hands its own generator to every
// SenderPort it owns (spec.md §4.2: "inject an id via the owning
// component's IdGenerator").
type IDSource interface {
	Next() value.ID
}

// base is embedded by every concrete port type. It tracks the port's
// current topic binding and the set of trigger.Receiver objects that must
// move with it across a remap: the port's own underlying receiver (an
// EventFlag for ReceiverPort, a ValueQueue for QueuedReceiverPort, none
// for SenderPort) plus any PortTriggerHandler flags attached via
// RegisterHandler. Remapping atomically disconnects every tracked
// receiver from the old topic and reconnects it to the new one (spec.md
// §4.2 "Ports may be mapped/remapped while the component is running;
// remapping atomically disconnects and reconnects the underlying receiver
// registration").
type base struct {
	name      string
	direction Direction
	store     *valuestore.Store

	mu        sync.RWMutex
	topic     string
	receivers []trigger.Receiver

	connected atomic.Bool
}

// Name returns the port's stable name.
func (b *base) Name() string { return b.name }

// Direction returns Sender or Receiver.
func (b *base) Direction() Direction { return b.direction }

// Topic returns the port's current topic binding, or "" if unmapped.
func (b *base) Topic() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.topic
}

// IsConnected reports whether the port is currently bound to a topic.
// Read with an atomic so a concurrent blocking SenderPort.SetValue can
// poll it as an abort predicate without taking b.mu (spec.md §5: "Port
// disconnect sets the port's connected flag atomically; in-flight
// blocking writes poll this flag").
func (b *base) IsConnected() bool { return b.connected.Load() }

// addReceiver registers r to move with every future remap, and
// immediately registers it against the current topic if already bound.
func (b *base) addReceiver(r trigger.Receiver) {
	b.mu.Lock()
	b.receivers = append(b.receivers, r)
	topic := b.topic
	b.mu.Unlock()
	if topic != "" {
		b.store.AddReceiver(topic, r)
	}
}

// Map binds the port to topic, moving every tracked receiver from the
// prior topic (if any) to the new one.
func (b *base) Map(topic string) {
	b.mu.Lock()
	old := b.topic
	recv := append([]trigger.Receiver(nil), b.receivers...)
	b.topic = topic
	b.mu.Unlock()
	for _, r := range recv {
		if old != "" {
			b.store.RemoveReceiver(old, r)
		}
		if topic != "" {
			b.store.AddReceiver(topic, r)
		}
	}
	b.connected.Store(topic != "")
}

// Unmap disconnects the port from its current topic, removing every
// tracked receiver. Safe to call on an already-unmapped port.
func (b *base) Unmap() {
	b.mu.Lock()
	old := b.topic
	recv := append([]trigger.Receiver(nil), b.receivers...)
	b.topic = ""
	b.mu.Unlock()
	b.connected.Store(false)
	for _, r := range recv {
		if old != "" {
			b.store.RemoveReceiver(old, r)
		}
	}
}
