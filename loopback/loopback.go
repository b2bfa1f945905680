/*
@Description: In-process loopback acoustic transport, for tests and the CLI demo
*/

package loopback

import (
	"context"
	"sync"
)

// LossFunc decides whether a frame at a given 0-based emission index should
// be dropped before it ever reaches the peer side. Returning true drops it.
type LossFunc func(index int) bool

// Corrupt transforms a frame's bytes after it is accepted for delivery but
// before the peer decodes it, for exercising P2's hash-gate behaviour.
type Corrupt func(frame string) string

// Transport is a minimal in-process AcousticTransport: Transmit enqueues a
// frame onto an internal channel (optionally lossy, corrupting, and
// reordering), and Frames drains it. It stands in for "the acoustic modem
// itself" (explicitly out of scope per spec §1) so tests and the demo CLI
// have something concrete to exercise the core against.
type Transport struct {
	mu    sync.Mutex
	index int

	Loss     LossFunc
	Corrupt  Corrupt
	Reorder  int // buffer this many frames before flushing, to exercise P7
	protocol []string

	out     chan string
	pending []string
}

// New creates a loopback transport with the given recognised protocol tags
// and a reasonably large internal buffer.
func New(protocols ...string) *Transport {
	if len(protocols) == 0 {
		protocols = []string{"NORMAL", "FAST", "FASTEST"}
	}
	return &Transport{
		protocol: protocols,
		out:      make(chan string, 4096),
	}
}

// Transmit implements sonicwave.AcousticTransport. It never blocks on the
// peer (the buffered channel resolves "playback completion" immediately,
// matching a loopback's zero propagation delay), applying loss/corruption/
// reorder hooks before frames become visible on Frames().
func (t *Transport) Transmit(ctx context.Context, frame string, protocolTag string) error {
	t.mu.Lock()
	idx := t.index
	t.index++
	t.mu.Unlock()

	if t.Loss != nil && t.Loss(idx) {
		return nil
	}
	if t.Corrupt != nil {
		frame = t.Corrupt(frame)
	}

	if t.Reorder <= 1 {
		select {
		case t.out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	t.mu.Lock()
	t.pending = append(t.pending, frame)
	flush := len(t.pending) >= t.Reorder
	var batch []string
	if flush {
		batch = t.pending
		t.pending = nil
	}
	t.mu.Unlock()

	for i := len(batch) - 1; i >= 0; i-- {
		select {
		case t.out <- batch[i]:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Frames implements sonicwave.AcousticTransport.
func (t *Transport) Frames() <-chan string { return t.out }

// ListProtocols implements sonicwave.AcousticTransport.
func (t *Transport) ListProtocols() []string { return t.protocol }

// Flush releases any frames still buffered for reordering, in reverse
// arrival order; a caller that sets Reorder uses this at the end of a send
// to make sure nothing is left stranded in the reorder buffer.
func (t *Transport) Flush(ctx context.Context) error {
	t.mu.Lock()
	batch := t.pending
	t.pending = nil
	t.mu.Unlock()

	for i := len(batch) - 1; i >= 0; i-- {
		select {
		case t.out <- batch[i]:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
