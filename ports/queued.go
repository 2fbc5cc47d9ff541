package ports

import (
	"github.com/mcf-go/mcf/trigger"
	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

// QueuedReceiverPort is spec.md §4.2's queued receiver port: it holds a
// bounded trigger.ValueQueue and hands out queued values in publication
// order via GetValue/PeekValue.
type QueuedReceiverPort[T value.Value] struct {
	base
	queue *trigger.ValueQueue
}

// NewQueuedReceiverPort returns an unmapped QueuedReceiverPort named name,
// bounded to maxLen entries with the given blocking mode (maxLen <= 0
// means unbounded).
func NewQueuedReceiverPort[T value.Value](name string, store *valuestore.Store, maxLen int, blocking bool) *QueuedReceiverPort[T] {
	p := &QueuedReceiverPort[T]{
		base:  base{name: name, direction: Receiver, store: store},
		queue: trigger.NewValueQueue(maxLen, blocking),
	}
	p.addReceiver(p.queue)
	return p
}

// PeekValue returns the head of the queue without removing it.
func (p *QueuedReceiverPort[T]) PeekValue() (T, bool) {
	var zero T
	v, ok := p.queue.Peek()
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// GetValue pops and returns the head of the queue.
func (p *QueuedReceiverPort[T]) GetValue() (T, bool) {
	var zero T
	v, ok := p.queue.Pop()
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Len returns the number of buffered values.
func (p *QueuedReceiverPort[T]) Len() int { return p.queue.Len() }

// SetBlocking mutates blocking mode at runtime (spec.md §4.2).
func (p *QueuedReceiverPort[T]) SetBlocking(b bool) { p.queue.SetBlocking(b) }

// SetMaxLength mutates capacity at runtime, dropping the oldest entries
// until the queue fits when shrinking (spec.md §4.2).
func (p *QueuedReceiverPort[T]) SetMaxLength(n int) { p.queue.SetMaxLength(n) }

// RegisterHandler attaches h to this port (see ReceiverPort.RegisterHandler).
func (p *QueuedReceiverPort[T]) RegisterHandler(h *PortTriggerHandler) {
	p.addReceiver(h.Flag())
}
