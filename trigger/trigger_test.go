package trigger_test

import (
	"sync"
	"testing"
	"time"

	"github.com/mcf-go/mcf/trigger"
	"github.com/mcf-go/mcf/value"
)

type intValue struct {
	value.Base
	n int
}

func (intValue) TypeID() string { return "int" }

func TestTriggerWaitBlocksUntilFire(t *testing.T) {
	tr := trigger.New()
	done := make(chan struct{})
	go func() {
		tr.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Fire was called")
	case <-time.After(20 * time.Millisecond):
	}

	tr.Fire()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Fire")
	}
}

func TestTriggerWaitClearsFlag(t *testing.T) {
	tr := trigger.New()
	tr.Fire()
	tr.Wait() // consumes the flag

	done := make(chan struct{})
	go func() {
		tr.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second Wait returned without a second Fire")
	case <-time.After(20 * time.Millisecond):
	}
	tr.Fire()
	<-done
}

func TestTriggerSourceFansOutToAllSubscribers(t *testing.T) {
	var src trigger.TriggerSource
	a, b := trigger.New(), trigger.New()
	src.Subscribe(a)
	src.Subscribe(b)

	src.Notify()

	for _, tr := range []*trigger.Trigger{a, b} {
		done := make(chan struct{})
		go func(tr *trigger.Trigger) {
			tr.Wait()
			close(done)
		}(tr)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("subscriber not notified")
		}
	}
}

func TestTriggerSourceUnsubscribeIdempotent(t *testing.T) {
	var src trigger.TriggerSource
	a := trigger.New()
	src.Subscribe(a)
	src.Unsubscribe(a)
	src.Unsubscribe(a) // must not panic

	src.Notify() // must not deliver to a anymore
	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("unsubscribed trigger was still notified")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEventFlagActiveAndReset(t *testing.T) {
	f := trigger.NewEventFlag()
	if f.Active(false) {
		t.Fatal("expected inactive before any Receive")
	}
	f.Receive("/t", intValue{n: 1})
	if !f.Active(false) {
		t.Fatal("expected active after Receive")
	}
	if !f.Active(true) {
		t.Fatal("expected active to still read true on reset call")
	}
	if f.Active(false) {
		t.Fatal("expected reset to clear the flag")
	}
}

func TestEventFlagNeverBlocks(t *testing.T) {
	f := trigger.NewEventFlag()
	if f.IsBlocked("/t") {
		t.Fatal("EventFlag must never report blocked")
	}
	f.WaitBlocked("/t", func() bool { return true }) // must return immediately, no panic
}

func TestEventFlagNotifiesSubscribers(t *testing.T) {
	f := trigger.NewEventFlag()
	tr := trigger.New()
	f.Subscribe(tr)

	done := make(chan struct{})
	go func() {
		tr.Wait()
		close(done)
	}()
	f.Receive("/t", intValue{n: 1})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EventFlag.Receive did not notify subscribed trigger")
	}
}

func TestEventFlagLastRecordsTopicAndTime(t *testing.T) {
	f := trigger.NewEventFlag()
	before := time.Now()
	f.Receive("/topic-a", intValue{n: 1})
	topic, at := f.Last()
	if topic != "/topic-a" {
		t.Fatalf("expected topic /topic-a, got %q", topic)
	}
	if at.Before(before) {
		t.Fatal("expected recorded time to be at or after Receive call")
	}
}

func TestValueQueueOverflowDropsOldestNonBlocking(t *testing.T) {
	q := trigger.NewValueQueue(2, false)
	q.Receive("/t", intValue{n: 1})
	q.Receive("/t", intValue{n: 2})
	q.Receive("/t", intValue{n: 3})
	q.Receive("/t", intValue{n: 4})

	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	v1, ok := q.Pop()
	if !ok || v1.(intValue).n != 3 {
		t.Fatalf("expected first remaining value 3, got %+v ok=%v", v1, ok)
	}
	v2, ok := q.Pop()
	if !ok || v2.(intValue).n != 4 {
		t.Fatalf("expected second remaining value 4, got %+v ok=%v", v2, ok)
	}
}

func TestValueQueuePeekDoesNotRemove(t *testing.T) {
	q := trigger.NewValueQueue(0, false)
	q.Receive("/t", intValue{n: 1})
	v, ok := q.Peek()
	if !ok || v.(intValue).n != 1 {
		t.Fatalf("unexpected peek result %+v ok=%v", v, ok)
	}
	if q.Len() != 1 {
		t.Fatal("Peek must not remove the element")
	}
}

func TestValueQueueBlockingReportsBlockedWhenFull(t *testing.T) {
	q := trigger.NewValueQueue(1, true)
	if q.IsBlocked("/t") {
		t.Fatal("empty queue must not report blocked")
	}
	q.Receive("/t", intValue{n: 1})
	if !q.IsBlocked("/t") {
		t.Fatal("full blocking queue must report blocked")
	}
}

func TestValueQueueWaitBlockedUnblocksOnDrain(t *testing.T) {
	q := trigger.NewValueQueue(1, true)
	q.Receive("/t", intValue{n: 1})

	unblocked := make(chan struct{})
	go func() {
		q.WaitBlocked("/t", func() bool { return false })
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("WaitBlocked returned before queue drained")
	case <-time.After(30 * time.Millisecond):
	}

	q.Pop()

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("WaitBlocked did not return after drain")
	}
}

func TestValueQueueWaitBlockedRespectsAbort(t *testing.T) {
	q := trigger.NewValueQueue(1, true)
	q.Receive("/t", intValue{n: 1})

	var aborted bool
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		q.WaitBlocked("/t", func() bool {
			mu.Lock()
			defer mu.Unlock()
			return aborted
		})
		close(done)
	}()

	time.Sleep(15 * time.Millisecond)
	mu.Lock()
	aborted = true
	mu.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitBlocked did not honor abort predicate within a couple of polling intervals")
	}
}

func TestValueQueueSetMaxLengthShrinksDroppingOldest(t *testing.T) {
	q := trigger.NewValueQueue(0, false)
	for i := 1; i <= 5; i++ {
		q.Receive("/t", intValue{n: i})
	}
	q.SetMaxLength(2)
	if q.Len() != 2 {
		t.Fatalf("expected len 2 after shrink, got %d", q.Len())
	}
	v, _ := q.Pop()
	if v.(intValue).n != 4 {
		t.Fatalf("expected oldest-dropped remainder to start at 4, got %d", v.(intValue).n)
	}
}

func TestValueQueueSetBlockingTakesEffectImmediately(t *testing.T) {
	q := trigger.NewValueQueue(1, false)
	q.Receive("/t", intValue{n: 1})
	if q.IsBlocked("/t") {
		t.Fatal("non-blocking full queue must not report blocked")
	}
	q.SetBlocking(true)
	if !q.IsBlocked("/t") {
		t.Fatal("expected blocked after switching to blocking mode while full")
	}
}

func TestEventQueueRecordsTopicsOnly(t *testing.T) {
	q := trigger.NewEventQueue(0)
	q.Receive("/a", intValue{n: 1})
	q.Receive("/b", intValue{n: 2})

	topic, ok := q.Pop()
	if !ok || topic != "/a" {
		t.Fatalf("expected /a first, got %q ok=%v", topic, ok)
	}
	topic, ok = q.Pop()
	if !ok || topic != "/b" {
		t.Fatalf("expected /b second, got %q ok=%v", topic, ok)
	}
	if q.IsBlocked("/a") {
		t.Fatal("EventQueue must never block")
	}
}

func TestEventQueueBoundedDropsOldest(t *testing.T) {
	q := trigger.NewEventQueue(2)
	q.Receive("/a", intValue{n: 1})
	q.Receive("/b", intValue{n: 2})
	q.Receive("/c", intValue{n: 3})
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	topic, _ := q.Pop()
	if topic != "/b" {
		t.Fatalf("expected oldest surviving topic /b, got %q", topic)
	}
}
