package sonicwave

import (
	"context"
	"testing"
	"time"
)

func fixtureSendSession(sid string, createdAt time.Time) *sendSession {
	sess := newSendSession(sid, map[int][]byte{1: []byte("a"), 2: []byte("b")},
		map[string][]byte{"1-2-0": padChunk([]byte("p"))}, "FAST", "hash", "FBASIC_2", fecSchemeBasic2, false)
	sess.createdAt = createdAt
	return sess
}

func TestListSendSessionsNewestFirst(t *testing.T) {
	store := newRetransmitStore()
	now := time.Now()
	store.retain(fixtureSendSession("old", now.Add(-2*time.Hour)))
	store.retain(fixtureSendSession("new", now))
	store.retain(fixtureSendSession("middle", now.Add(-1*time.Hour)))

	infos := store.listSendSessions()
	if len(infos) != 3 {
		t.Fatalf("got %d sessions, want 3", len(infos))
	}
	order := []string{infos[0].SID, infos[1].SID, infos[2].SID}
	want := []string{"new", "middle", "old"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestResendChunksReplaysAndTracksStats(t *testing.T) {
	store := newRetransmitStore()
	sess := fixtureSendSession("sid1", time.Now())
	store.retain(sess)

	ct := &captureTransport{}
	stats := NewStats()
	if err := store.resendChunks(context.Background(), ct, "sid1", []int{2, 1}, stats); err != nil {
		t.Fatal(err)
	}
	if len(ct.frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(ct.frames))
	}
	if dp, ok := parseData(ct.frames[0]); !ok || dp.seq != 2 {
		t.Fatalf("first replayed frame should be seq 2, got %+v ok=%v", dp, ok)
	}
	if stats.Copy().RetransmitRequests != 2 {
		t.Fatalf("RetransmitRequests = %d, want 2", stats.Copy().RetransmitRequests)
	}
}

func TestResendChunksUnknownSessionWrapsError(t *testing.T) {
	store := newRetransmitStore()
	ct := &captureTransport{}
	err := store.resendChunks(context.Background(), ct, "nope", []int{1}, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown sid")
	}
}

func TestResendChunksUnknownSeqWrapsError(t *testing.T) {
	store := newRetransmitStore()
	store.retain(fixtureSendSession("sid1", time.Now()))
	ct := &captureTransport{}
	err := store.resendChunks(context.Background(), ct, "sid1", []int{99}, nil)
	if err == nil {
		t.Fatal("expected an error for a seq the session never sent")
	}
}

func TestResendParityNormalizesShorthandID(t *testing.T) {
	store := newRetransmitStore()
	store.retain(fixtureSendSession("sid1", time.Now()))
	ct := &captureTransport{}
	if err := store.resendParity(context.Background(), ct, "sid1", []string{"1-2"}, nil); err != nil {
		t.Fatalf("resendParity with shorthand id failed: %v", err)
	}
	if len(ct.frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(ct.frames))
	}
	pp, ok := parseParity(ct.frames[0])
	if !ok || pp.parityID != "1-2-0" {
		t.Fatalf("replayed parity frame = %+v ok=%v", pp, ok)
	}
}

func TestClearOldRemovesOnlyOldSessions(t *testing.T) {
	store := newRetransmitStore()
	now := time.Now()
	store.retain(fixtureSendSession("fresh", now))
	store.retain(fixtureSendSession("stale", now.Add(-90*time.Minute)))

	removed := store.clearOld(60)
	if removed != 1 {
		t.Fatalf("clearOld removed %d, want 1", removed)
	}
	if _, err := store.get("stale"); err == nil {
		t.Fatal("stale session should have been removed")
	}
	if _, err := store.get("fresh"); err != nil {
		t.Fatal("fresh session should still be retained")
	}
}

func TestDeleteAndClearAll(t *testing.T) {
	store := newRetransmitStore()
	store.retain(fixtureSendSession("a", time.Now()))
	store.retain(fixtureSendSession("b", time.Now()))

	if err := store.delete("a"); err != nil {
		t.Fatal(err)
	}
	if err := store.delete("a"); err == nil {
		t.Fatal("deleting an already-deleted sid should error")
	}
	if len(store.listSendSessions()) != 1 {
		t.Fatal("expected exactly one session left after delete")
	}

	store.clearAll()
	if len(store.listSendSessions()) != 0 {
		t.Fatal("clearAll should empty the store")
	}
}
