package valuestore_test

import (
	"sync"
	"testing"
	"time"

	"github.com/mcf-go/mcf/trigger"
	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

type intValue struct {
	value.Base
	n int
}

func (intValue) TypeID() string { return "int" }

func TestSetValueGetValueRoundTrip(t *testing.T) {
	s := valuestore.New()
	s.SetValue("/t", intValue{Base: value.NewBase(1), n: 5}, true, nil)
	s.SetValue("/t", intValue{Base: value.NewBase(2), n: 6}, true, nil)

	v, ok := valuestore.GetValue[intValue](s, "/t")
	if !ok || v.n != 6 {
		t.Fatalf("expected latest value 6, got %+v ok=%v", v, ok)
	}
}

func TestGetValueAbsentReturnsZero(t *testing.T) {
	s := valuestore.New()
	v, ok := valuestore.GetValue[intValue](s, "/missing")
	if ok {
		t.Fatal("expected ok=false for absent topic")
	}
	if v.n != 0 {
		t.Fatalf("expected zero value, got %+v", v)
	}
}

type otherValue struct {
	value.Base
}

func (otherValue) TypeID() string { return "other" }

func TestGetValueTypeMismatchReturnsZero(t *testing.T) {
	s := valuestore.New()
	s.SetValue("/t", otherValue{Base: value.NewBase(1)}, true, nil)
	v, ok := valuestore.GetValue[intValue](s, "/t")
	if ok {
		t.Fatal("expected ok=false on type mismatch")
	}
	if v.n != 0 {
		t.Fatalf("expected zero value on type mismatch, got %+v", v)
	}
}

func TestHasValue(t *testing.T) {
	s := valuestore.New()
	if s.HasValue("/t") {
		t.Fatal("expected no value before any write")
	}
	s.SetValue("/t", intValue{Base: value.NewBase(1), n: 1}, true, nil)
	if !s.HasValue("/t") {
		t.Fatal("expected HasValue true after write")
	}
}

func TestKeysReflectsLazyTopicCreation(t *testing.T) {
	s := valuestore.New()
	s.SetValue("/a", intValue{Base: value.NewBase(1), n: 1}, true, nil)
	s.AddReceiver("/b", trigger.NewEventFlag())

	keys := s.Keys()
	found := map[string]bool{}
	for _, k := range keys {
		found[k] = true
	}
	if !found["/a"] || !found["/b"] {
		t.Fatalf("expected both /a and /b in keys, got %v", keys)
	}
}

func TestOrderPreservationForSubscribedReceiver(t *testing.T) {
	s := valuestore.New()
	q := trigger.NewValueQueue(0, false)
	s.AddReceiver("/t", q)

	for i := 1; i <= 5; i++ {
		s.SetValue("/t", intValue{Base: value.NewBase(value.ID(i)), n: i}, true, nil)
	}

	for i := 1; i <= 5; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("expected value %d, queue drained early", i)
		}
		if v.(intValue).n != i {
			t.Fatalf("order violated: expected %d got %d", i, v.(intValue).n)
		}
	}
}

func TestAllTopicsReceiverObservesEveryTopic(t *testing.T) {
	s := valuestore.New()
	q := trigger.NewEventQueue(0)
	s.AddAllTopicReceiver(q)

	s.SetValue("/a", intValue{Base: value.NewBase(1), n: 1}, true, nil)
	s.SetValue("/b", intValue{Base: value.NewBase(2), n: 2}, true, nil)

	if q.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", q.Len())
	}
	t1, _ := q.Pop()
	t2, _ := q.Pop()
	if t1 != "/a" || t2 != "/b" {
		t.Fatalf("expected /a then /b, got %q then %q", t1, t2)
	}
}

func TestRemoveReceiverStopsDelivery(t *testing.T) {
	s := valuestore.New()
	q := trigger.NewEventQueue(0)
	s.AddReceiver("/t", q)
	s.SetValue("/t", intValue{Base: value.NewBase(1), n: 1}, true, nil)
	s.RemoveReceiver("/t", q)
	s.SetValue("/t", intValue{Base: value.NewBase(2), n: 2}, true, nil)

	if q.Len() != 1 {
		t.Fatalf("expected exactly 1 delivered event before removal, got %d", q.Len())
	}
}

func TestSetValueNonBlockingReturnsAgainWhenReceiverBlocked(t *testing.T) {
	s := valuestore.New()
	q := trigger.NewValueQueue(1, true)
	s.AddReceiver("/t", q)
	s.SetValue("/t", intValue{Base: value.NewBase(1), n: 1}, true, nil) // fills queue to capacity 1

	res := s.SetValue("/t", intValue{Base: value.NewBase(2), n: 2}, false, nil)
	if res != valuestore.Again {
		t.Fatalf("expected Again, got %s", res)
	}
}

func TestSetValueBlockingCompletesAfterDrain(t *testing.T) {
	s := valuestore.New()
	q := trigger.NewValueQueue(1, true)
	s.AddReceiver("/t", q)
	s.SetValue("/t", intValue{Base: value.NewBase(1), n: 1}, true, nil)

	resultCh := make(chan valuestore.WriteResult, 1)
	start := time.Now()
	go func() {
		resultCh <- s.SetValue("/t", intValue{Base: value.NewBase(2), n: 2}, true, nil)
	}()

	select {
	case <-resultCh:
		t.Fatal("blocking write completed before receiver drained")
	case <-time.After(100 * time.Millisecond):
	}

	q.Pop() // drain: unblocks the pending write

	select {
	case res := <-resultCh:
		if res != valuestore.Ok {
			t.Fatalf("expected Ok after drain, got %s", res)
		}
		if time.Since(start) < 90*time.Millisecond {
			t.Fatal("write returned suspiciously fast; expected to have actually blocked")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocking write never completed after drain")
	}

	v, ok := q.Pop()
	if !ok || v.(intValue).n != 2 {
		t.Fatalf("expected queue to hold newly published value 2, got %+v ok=%v", v, ok)
	}
}

func TestSetValueCancelledOnAbort(t *testing.T) {
	s := valuestore.New()
	q := trigger.NewValueQueue(1, true)
	s.AddReceiver("/t", q)
	s.SetValue("/t", intValue{Base: value.NewBase(1), n: 1}, true, nil)

	var aborted bool
	var mu sync.Mutex
	abort := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return aborted
	}

	resultCh := make(chan valuestore.WriteResult, 1)
	go func() {
		resultCh <- s.SetValue("/t", intValue{Base: value.NewBase(2), n: 2}, true, abort)
	}()

	time.Sleep(15 * time.Millisecond)
	mu.Lock()
	aborted = true
	mu.Unlock()

	select {
	case res := <-resultCh:
		if res != valuestore.Cancelled {
			t.Fatalf("expected Cancelled, got %s", res)
		}
	case <-time.After(time.Second):
		t.Fatal("SetValue did not observe abort within expected polling window")
	}
}

func TestPanickingReceiverIsRemoved(t *testing.T) {
	s := valuestore.New()
	p := &panicReceiver{}
	s.AddReceiver("/t", p)

	s.SetValue("/t", intValue{Base: value.NewBase(1), n: 1}, true, nil)
	if p.calls != 1 {
		t.Fatalf("expected exactly one call before removal, got %d", p.calls)
	}

	s.SetValue("/t", intValue{Base: value.NewBase(2), n: 2}, true, nil)
	if p.calls != 1 {
		t.Fatalf("expected panicking receiver to be purged, got %d calls", p.calls)
	}
}

type panicReceiver struct {
	calls int
}

func (p *panicReceiver) Receive(string, value.Value) { p.calls++; panic("boom") }
func (p *panicReceiver) IsBlocked(string) bool        { return false }
func (p *panicReceiver) WaitBlocked(string, func() bool) {}

func TestGetValueDoesNotBlockOnWriterContention(t *testing.T) {
	s := valuestore.New()
	q := trigger.NewValueQueue(1, true)
	s.AddReceiver("/t", q)
	s.SetValue("/t", intValue{Base: value.NewBase(1), n: 1}, true, nil)

	go func() {
		s.SetValue("/t", intValue{Base: value.NewBase(2), n: 2}, true, nil) // will block until drained
	}()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		valuestore.GetValue[intValue](s, "/t")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("GetValue blocked on a contended writer")
	}
	q.Pop()
}

var _ trigger.Receiver = (*panicReceiver)(nil)
