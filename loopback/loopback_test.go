package loopback

import (
	"context"
	"strconv"
	"testing"
)

func drain(t *Transport, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, <-t.Frames())
	}
	return out
}

func TestTransmitAndFramesRoundTrip(t *testing.T) {
	tr := New()
	if err := tr.Transmit(context.Background(), "hello", "NORMAL"); err != nil {
		t.Fatal(err)
	}
	got := <-tr.Frames()
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestLossFuncDropsSelectedIndices(t *testing.T) {
	tr := New()
	tr.Loss = func(index int) bool { return index == 1 }
	for i := 0; i < 3; i++ {
		if err := tr.Transmit(context.Background(), strconv.Itoa(i), ""); err != nil {
			t.Fatal(err)
		}
	}
	got := drain(tr, 2)
	want := []string{"0", "2"}
	if got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCorruptTransformsFrame(t *testing.T) {
	tr := New()
	tr.Corrupt = func(frame string) string { return frame + "!" }
	if err := tr.Transmit(context.Background(), "x", ""); err != nil {
		t.Fatal(err)
	}
	if got := <-tr.Frames(); got != "x!" {
		t.Fatalf("got %q, want %q", got, "x!")
	}
}

func TestReorderBuffersAndFlushesReversed(t *testing.T) {
	tr := New()
	tr.Reorder = 3
	for i := 0; i < 3; i++ {
		if err := tr.Transmit(context.Background(), strconv.Itoa(i), ""); err != nil {
			t.Fatal(err)
		}
	}
	got := drain(tr, 3)
	want := []string{"2", "1", "0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFlushReleasesPartialBuffer(t *testing.T) {
	tr := New()
	tr.Reorder = 5
	if err := tr.Transmit(context.Background(), "a", ""); err != nil {
		t.Fatal(err)
	}
	if err := tr.Transmit(context.Background(), "b", ""); err != nil {
		t.Fatal(err)
	}
	if err := tr.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := drain(tr, 2)
	want := []string{"b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestListProtocolsDefaultsAndCustom(t *testing.T) {
	tr := New()
	if len(tr.ListProtocols()) != 3 {
		t.Fatalf("default protocol list = %v, want 3 entries", tr.ListProtocols())
	}
	custom := New("ONLY_ONE")
	if got := custom.ListProtocols(); len(got) != 1 || got[0] != "ONLY_ONE" {
		t.Fatalf("custom protocol list = %v", got)
	}
}
