/*
@Description: Sender (C5) - drives a single transmission end to end
*/

package sonicwave

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ProgressEventType enumerates the four progress events a send() emits
// (§4.3 step 8).
type ProgressEventType string

const (
	ProgressStart  ProgressEventType = "start"
	ProgressData   ProgressEventType = "data"
	ProgressParity ProgressEventType = "parity"
	ProgressEnd    ProgressEventType = "end"
)

// ProgressEvent is published once per emitted packet, in the same order as
// the underlying packet events (§5 "progress callbacks ... invoked in the
// same order as the corresponding packet events").
type ProgressEvent struct {
	Type    ProgressEventType
	Current int
	Total   int
	SID     string
	Packet  string
	FECInfo string // non-empty only for Type == ProgressParity
}

// ProgressFunc is the caller-supplied sink for ProgressEvent.
type ProgressFunc func(ProgressEvent)

// interPacketDelay implements §4.3 step 7's pause schedule.
func interPacketDelay(protocolTag string) time.Duration {
	switch protocolTag {
	case "NORMAL":
		return 1000 * time.Millisecond
	case "FAST":
		return 500 * time.Millisecond
	case "FASTEST":
		return 200 * time.Millisecond
	default:
		return 0
	}
}

// nextSID allocates a session id of the form "{unix-seconds}-{6-digit
// nonce}" (§3). The nonce counter is owned by the Engine so ids stay unique
// even for sessions started within the same second.
func nextSID(now time.Time, nonce int) string {
	return fmt.Sprintf("%d-%06d", now.Unix(), nonce%1_000_000)
}

// send drives operation C5 end to end for the caller-allocated sid:
// optionally compress, hash, chunk, compute the FEC plan and all parity
// eagerly, then emit START/DATA*/PARITY*/END in order, pausing per
// protocolTag between frames and reporting progress after each. The
// sendSession is returned so the caller (Engine) can retain it in the
// retransmit store; when an emission fails, the partially-sent session is
// returned together with the error.
func send(
	ctx context.Context,
	transport AcousticTransport,
	sid string,
	message []byte,
	protocolTag string,
	compress bool,
	scheme FECScheme,
	progress ProgressFunc,
	stats *Stats,
) (*sendSession, error) {
	payload := message
	flagCompress := false
	if compress {
		gz, err := gzipBytes(message)
		if err != nil {
			return nil, errors.Wrap(err, "sonicwave: compress payload")
		}
		payload = gz
		flagCompress = true
	}

	hash := hashB64(payload)
	chunkSlices := splitChunks(payload)
	total := len(chunkSlices)

	chunks := make(map[int][]byte, total)
	for i, c := range chunkSlices {
		chunks[i+1] = c
	}

	parity, err := computeAllParity(total, scheme, chunks)
	if err != nil {
		return nil, errors.Wrap(err, "sonicwave: compute FEC parity")
	}

	flags := buildFlags(flagCompress, scheme.Name)
	sess := newSendSession(sid, chunks, parity, protocolTag, hash, flags, scheme, flagCompress)

	emit := func(frame string) error {
		if len(frame) > MaxFrameLen {
			return errors.Wrapf(errPayloadTooLarge, "frame length %d exceeds MTU", len(frame))
		}
		if err := transport.Transmit(ctx, frame, protocolTag); err != nil {
			return errors.Wrap(err, "sonicwave: transmit frame")
		}
		if d := interPacketDelay(protocolTag); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	startFrame := serializeStart(sid, hash, total, flags)
	if err := emit(startFrame); err != nil {
		return sess, err
	}
	if stats != nil {
		addUint64(&stats.PacketsSentStart, 1)
		addUint64(&stats.BytesSent, uint64(len(startFrame)))
	}
	if progress != nil {
		progress(ProgressEvent{Type: ProgressStart, Current: 0, Total: total, SID: sid, Packet: startFrame})
	}

	for seq := 1; seq <= total; seq++ {
		frame := serializeData(sid, seq, chunks[seq])
		if err := emit(frame); err != nil {
			return sess, err
		}
		sess.markChunkSent(seq)
		if stats != nil {
			addUint64(&stats.PacketsSentData, 1)
			addUint64(&stats.BytesSent, uint64(len(frame)))
		}
		if progress != nil {
			progress(ProgressEvent{Type: ProgressData, Current: seq, Total: total, SID: sid, Packet: frame})
		}
	}

	for _, rec := range computeGroupPlan(total, scheme) {
		id := canonicalParityID(rec.start, rec.end, rec.kind)
		sym, ok := parity[id]
		if !ok {
			continue
		}
		frame := serializeParity(sid, id, sym)
		if err := emit(frame); err != nil {
			return sess, err
		}
		sess.markParitySent(id)
		if stats != nil {
			addUint64(&stats.PacketsSentParity, 1)
			addUint64(&stats.BytesSent, uint64(len(frame)))
		}
		if progress != nil {
			progress(ProgressEvent{Type: ProgressParity, Current: 0, Total: total, SID: sid, Packet: frame, FECInfo: id})
		}
	}

	endFrame := serializeEnd(sid)
	if err := emit(endFrame); err != nil {
		return sess, err
	}
	if stats != nil {
		addUint64(&stats.PacketsSentEnd, 1)
		addUint64(&stats.BytesSent, uint64(len(endFrame)))
	}
	if progress != nil {
		progress(ProgressEvent{Type: ProgressEnd, Current: total, Total: total, SID: sid, Packet: endFrame})
	}

	return sess, nil
}
