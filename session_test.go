package sonicwave

import (
	"testing"
	"time"
)

func TestReceiveTimeoutBounds(t *testing.T) {
	// P8: timeout must land between MIN_TIMEOUT and BASE+total*PER_PACKET*mult+eps.
	got := receiveTimeout(0, "")
	if got != minSessionTimeout {
		t.Fatalf("receiveTimeout(0,...) = %v, want the floor %v", got, minSessionTimeout)
	}

	total := 1000
	got = receiveTimeout(total, "")
	want := baseTimeout + time.Duration(total)*perPacketTimeout*time.Duration(speedMult(""))
	if got != want {
		t.Fatalf("receiveTimeout(%d,...) = %v, want %v", total, got, want)
	}
	if got < minSessionTimeout {
		t.Fatalf("receiveTimeout must never go below the floor, got %v", got)
	}
}

func TestSpeedMultUnknownDefaultsToOne(t *testing.T) {
	if speedMult("SOMETHING_ELSE") != 1 {
		t.Error("unknown protocol tag should behave like speed_mult=1")
	}
	if speedMult("NORMAL") != 3 || speedMult("FAST") != 2 || speedMult("FASTEST") != 1 {
		t.Error("speedMult must map NORMAL/FAST/FASTEST to 3/2/1")
	}
}

func TestRecvSessionTransitionIsSingleShot(t *testing.T) {
	sess := newRecvSession("sid", 3, "hash", "", fecSchemeNone, false)

	if !sess.transitionTo(recvDelivered) {
		t.Fatal("first transition out of OPEN must succeed")
	}
	if sess.transitionTo(recvAborted) {
		t.Fatal("a second transition out of a terminal state must be rejected (I5)")
	}
}

func TestRecvSessionTimerCancelledBeforeSecondTransition(t *testing.T) {
	sess := newRecvSession("sid", 3, "hash", "", fecSchemeNone, false)
	timer := NewTimer(1)
	defer timer.Close()

	fired := make(chan struct{}, 1)
	sess.armTimer(timer, time.Now().Add(20*time.Millisecond), func() { fired <- struct{}{} })

	if !sess.transitionTo(recvDelivered) {
		t.Fatal("transition should succeed while OPEN")
	}

	select {
	case <-fired:
		t.Fatal("timer should have been cancelled by transitionTo before it could fire")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDedupSeenBefore(t *testing.T) {
	sess := newRecvSession("sid", 3, "hash", "", fecSchemeNone, false)
	if sess.seenBefore("D:sid:1") {
		t.Error("first sighting must not report seen")
	}
	if !sess.seenBefore("D:sid:1") {
		t.Error("duplicate packet_id must report seen")
	}
}
