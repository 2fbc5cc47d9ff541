package ports_test

import (
	"syscall"
	"testing"
	"time"

	"github.com/mcf-go/mcf/ports"
	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

type reading struct {
	value.Base
	n int
}

func (reading) TypeID() string { return "reading" }

func (r reading) WithID(id value.ID) value.Value {
	r.Base = value.NewBase(id)
	return r
}

func TestSenderPortNotConnectedBeforeMap(t *testing.T) {
	s := valuestore.New()
	ids := value.NewIDGenerator(1)
	p := ports.NewSenderPort[reading]("out", s, ids)

	err := p.SetValue(reading{n: 1}, true)
	if err != syscall.ENOTCONN {
		t.Fatalf("expected ENOTCONN, got %v", err)
	}
}

func TestSenderPortPublishesStampedValue(t *testing.T) {
	s := valuestore.New()
	ids := value.NewIDGenerator(1)
	p := ports.NewSenderPort[reading]("out", s, ids)
	p.Map("/t")

	if err := p.SetValue(reading{n: 5}, true); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	v, ok := valuestore.GetValue[reading](s, "/t")
	if !ok {
		t.Fatal("expected value present on topic")
	}
	if v.n != 5 {
		t.Fatalf("expected n=5, got %d", v.n)
	}
	if v.ID() == 0 {
		t.Fatal("expected a non-zero stamped id")
	}
}

func TestReceiverPortGetValueAndHasValue(t *testing.T) {
	s := valuestore.New()
	ids := value.NewIDGenerator(1)
	sender := ports.NewSenderPort[reading]("out", s, ids)
	recv := ports.NewReceiverPort[reading]("in", s)

	sender.Map("/t")
	recv.Map("/t")

	if recv.HasValue() {
		t.Fatal("expected no value before any publish")
	}
	sender.SetValue(reading{n: 7}, true)

	if !recv.HasValue() {
		t.Fatal("expected HasValue true after publish")
	}
	if recv.HasValue() {
		t.Fatal("expected HasValue to reset after being read")
	}
	if v := recv.GetValue(); v.n != 7 {
		t.Fatalf("expected n=7, got %d", v.n)
	}
}

func TestReceiverPortGetValueUnmappedReturnsZero(t *testing.T) {
	s := valuestore.New()
	recv := ports.NewReceiverPort[reading]("in", s)
	if v := recv.GetValue(); v.n != 0 {
		t.Fatalf("expected zero value, got %+v", v)
	}
}

func TestQueuedReceiverPortOverflowAndDrain(t *testing.T) {
	s := valuestore.New()
	ids := value.NewIDGenerator(1)
	sender := ports.NewSenderPort[reading]("out", s, ids)
	q := ports.NewQueuedReceiverPort[reading]("q", s, 2, false)

	sender.Map("/t")
	q.Map("/t")

	for i := 1; i <= 4; i++ {
		sender.SetValue(reading{n: i}, true)
	}

	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	v1, ok := q.GetValue()
	if !ok || v1.n != 3 {
		t.Fatalf("expected 3, got %+v ok=%v", v1, ok)
	}
	v2, ok := q.GetValue()
	if !ok || v2.n != 4 {
		t.Fatalf("expected 4, got %+v ok=%v", v2, ok)
	}
}

func TestQueuedReceiverPortPeekDoesNotRemove(t *testing.T) {
	s := valuestore.New()
	ids := value.NewIDGenerator(1)
	sender := ports.NewSenderPort[reading]("out", s, ids)
	q := ports.NewQueuedReceiverPort[reading]("q", s, 0, false)
	sender.Map("/t")
	q.Map("/t")

	sender.SetValue(reading{n: 1}, true)
	v, ok := q.PeekValue()
	if !ok || v.n != 1 {
		t.Fatalf("unexpected peek %+v ok=%v", v, ok)
	}
	if q.Len() != 1 {
		t.Fatal("Peek must not consume the value")
	}
}

func TestSenderPortBlockingWriteCancelledOnDisconnect(t *testing.T) {
	s := valuestore.New()
	ids := value.NewIDGenerator(1)
	sender := ports.NewSenderPort[reading]("out", s, ids)
	q := ports.NewQueuedReceiverPort[reading]("q", s, 1, true)

	sender.Map("/t")
	q.Map("/t")
	sender.SetValue(reading{n: 1}, true) // fills the queue

	errCh := make(chan error, 1)
	go func() {
		errCh <- sender.SetValue(reading{n: 2}, true)
	}()

	time.Sleep(20 * time.Millisecond)
	sender.Unmap()

	select {
	case err := <-errCh:
		if err != syscall.ECANCELED {
			t.Fatalf("expected ECANCELED after disconnect, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocking write did not observe port disconnect")
	}
}

func TestPortRemapMovesReceiverRegistration(t *testing.T) {
	s := valuestore.New()
	ids := value.NewIDGenerator(1)
	sender := ports.NewSenderPort[reading]("out", s, ids)
	recv := ports.NewReceiverPort[reading]("in", s)

	sender.Map("/a")
	recv.Map("/a")
	sender.SetValue(reading{n: 1}, true)
	recv.HasValue() // consume

	recv.Map("/b") // remap away from /a
	sender.SetValue(reading{n: 2}, true)
	if recv.HasValue() {
		t.Fatal("expected remapped receiver port to stop observing the old topic")
	}

	sender.Map("/b")
	sender.SetValue(reading{n: 3}, true)
	if !recv.HasValue() {
		t.Fatal("expected remapped receiver port to observe the new topic")
	}
}

func TestPortTriggerHandlerDispatchesOnActivation(t *testing.T) {
	s := valuestore.New()
	ids := value.NewIDGenerator(1)
	sender := ports.NewSenderPort[reading]("out", s, ids)
	recv := ports.NewReceiverPort[reading]("in", s)
	sender.Map("/t")
	recv.Map("/t")

	calls := 0
	h := ports.NewPortTriggerHandler(func() { calls++ })
	recv.RegisterHandler(h)

	h.Dispatch() // no activation yet
	if calls != 0 {
		t.Fatalf("expected 0 calls before activation, got %d", calls)
	}

	sender.SetValue(reading{n: 1}, true)
	h.Dispatch()
	if calls != 1 {
		t.Fatalf("expected 1 call after activation, got %d", calls)
	}
	h.Dispatch() // flag cleared, should not re-fire
	if calls != 1 {
		t.Fatalf("expected dispatch to not re-trigger without a new publication, got %d calls", calls)
	}
}
