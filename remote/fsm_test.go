package remote

import (
	"testing"
	"time"
)

func TestLivenessFSMInitialStateIsUnsure(t *testing.T) {
	f := newLivenessFSM(10*time.Millisecond, 100*time.Millisecond, nil)
	if f.State() != StateUnsure {
		t.Fatalf("expected initial state UNSURE, got %s", f.State())
	}
}

func TestLivenessFSMMatchingPongReachesUp(t *testing.T) {
	var entered int
	f := newLivenessFSM(10*time.Millisecond, 100*time.Millisecond, func() { entered++ })

	fresh := f.nextPing()
	f.onPong(fresh)

	if f.State() != StateUp {
		t.Fatalf("expected UP after matching pong, got %s", f.State())
	}
	if entered != 1 {
		t.Fatalf("expected onEnterUp to fire exactly once, got %d", entered)
	}
}

func TestLivenessFSMStalePongIgnored(t *testing.T) {
	f := newLivenessFSM(10*time.Millisecond, 100*time.Millisecond, nil)
	f.nextPing()
	f.onPong(9999) // does not match outstanding freshness
	if f.State() != StateUnsure {
		t.Fatalf("expected state to remain UNSURE on a stale pong, got %s", f.State())
	}
}

func TestLivenessFSMOnEnterUpFiresOnceAcrossRepeatedPongs(t *testing.T) {
	var entered int
	f := newLivenessFSM(10*time.Millisecond, 100*time.Millisecond, func() { entered++ })
	fresh := f.nextPing()
	f.onPong(fresh)
	f.onPong(fresh) // still matches lastFreshness, state already UP
	if entered != 1 {
		t.Fatalf("expected onEnterUp to fire only on the UNSURE->UP transition, got %d calls", entered)
	}
}

func TestLivenessFSMUnsureDoublesToDown(t *testing.T) {
	f := newLivenessFSM(10*time.Millisecond, 30*time.Millisecond, nil)
	// min=10ms: 10 -> 20 -> 40 (>max=30) => DOWN
	f.onPingTimeout()
	if f.State() != StateUnsure {
		t.Fatalf("expected still UNSURE after first timeout, got %s", f.State())
	}
	f.onPingTimeout()
	if f.State() != StateDown {
		t.Fatalf("expected DOWN after interval exceeds max, got %s", f.State())
	}
}

func TestLivenessFSMAnyMessageRecoversFromDown(t *testing.T) {
	f := newLivenessFSM(10*time.Millisecond, 20*time.Millisecond, nil)
	f.onPingTimeout()
	f.onPingTimeout()
	if f.State() != StateDown {
		t.Fatalf("expected DOWN, got %s", f.State())
	}
	f.onAnyMessage()
	if f.State() != StateUnsure {
		t.Fatalf("expected UNSURE after receiving any message while DOWN, got %s", f.State())
	}
}

func TestLivenessFSMSendTimeoutDropsUpToUnsure(t *testing.T) {
	f := newLivenessFSM(10*time.Millisecond, 100*time.Millisecond, nil)
	fresh := f.nextPing()
	f.onPong(fresh)
	if f.State() != StateUp {
		t.Fatalf("expected UP, got %s", f.State())
	}
	f.onSendTimeout()
	if f.State() != StateUnsure {
		t.Fatalf("expected UNSURE after send timeout, got %s", f.State())
	}
}

func TestLivenessFSMPingTimeoutFromUpGoesToUnsure(t *testing.T) {
	f := newLivenessFSM(10*time.Millisecond, 100*time.Millisecond, nil)
	fresh := f.nextPing()
	f.onPong(fresh)
	f.onPingTimeout()
	if f.State() != StateUnsure {
		t.Fatalf("expected UNSURE after pong timeout while UP, got %s", f.State())
	}
}

func TestLivenessFSMCurrentPingIntervalMaxWhileUp(t *testing.T) {
	f := newLivenessFSM(10*time.Millisecond, 50*time.Millisecond, nil)
	fresh := f.nextPing()
	f.onPong(fresh)
	if got := f.currentPingInterval(); got != 50*time.Millisecond {
		t.Fatalf("expected ping interval pinned to max (50ms) while UP, got %s", got)
	}
}
