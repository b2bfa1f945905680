/*
@Description: Acoustic transport contract (C1) - the framed, unidirectional, lossy adapter the core depends on
*/

package sonicwave

import "context"

// MaxFrameLen is the hard ceiling on one ASCII frame's length (§1, §6): the
// acoustic layer can only carry short, printable bursts.
const MaxFrameLen = 140

// AcousticTransport is the small capability set §9's design notes ask the
// core to depend on instead of an ad-hoc "any" typed library: encode a
// protocol tag, transmit a frame and await completion, and decode inbound
// audio into frames (or silently drop what doesn't decode). The core never
// touches modulation, tone mapping, or device I/O; those live entirely on
// the implementation of this interface.
type AcousticTransport interface {
	// Transmit sends one ASCII frame (already ≤ MaxFrameLen) tagged with a
	// protocol speed tag, and blocks until the acoustic layer reports
	// playback completion.
	Transmit(ctx context.Context, frame string, protocolTag string) error

	// Frames returns a channel of decoded ASCII frames. Audio that fails to
	// decode is dropped silently by the transport and never appears here.
	Frames() <-chan string

	// ListProtocols returns the protocol tags this transport recognises
	// (e.g. "NORMAL", "FAST", "FASTEST"), per §9's capability-set note.
	ListProtocols() []string
}

// BatchTransmitter is an optional capability a transport may implement: a
// single call that emits several frames back-to-back, for transports whose
// underlying medium has per-call overhead worth amortising (mirrors the
// teacher's dual-path tx: a small fast path alongside a generic one).
// transmitFrames probes for it and falls back to sequential Transmit calls
// when a transport does not implement it; the sender does not go through
// transmitFrames and emits every frame with Transmit.
type BatchTransmitter interface {
	TransmitBatch(ctx context.Context, frames []string, protocolTag string) error
}

// transmitFrames sends frames one by one via t, preferring TransmitBatch
// when the transport supports it.
func transmitFrames(ctx context.Context, t AcousticTransport, frames []string, protocolTag string) error {
	if bt, ok := t.(BatchTransmitter); ok {
		return bt.TransmitBatch(ctx, frames, protocolTag)
	}
	for _, f := range frames {
		if err := t.Transmit(ctx, f, protocolTag); err != nil {
			return err
		}
	}
	return nil
}
