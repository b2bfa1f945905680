/*
@Description: Session state - sender-side retention and the receiver's per-message state machine
*/

package sonicwave

import (
	"sync"
	"time"
)

// Timeout constants (§6 normative defaults).
const (
	minSessionTimeout = 60 * time.Second
	baseTimeout       = 30 * time.Second
	perPacketTimeout  = 5 * time.Second
)

// speedMult maps a protocol tag to the timeout multiplier of §4.4.
// Unknown tags behave like FASTEST (multiplier 1).
func speedMult(protocolTag string) int {
	switch protocolTag {
	case "NORMAL":
		return 3
	case "FAST":
		return 2
	case "FASTEST":
		return 1
	default:
		return 1
	}
}

// receiveTimeout computes max(MIN_TIMEOUT, BASE + total*PER_PKT*speed_mult).
func receiveTimeout(total int, protocolTag string) time.Duration {
	d := baseTimeout + time.Duration(total)*perPacketTimeout*time.Duration(speedMult(protocolTag))
	if d < minSessionTimeout {
		return minSessionTimeout
	}
	return d
}

// sendSession is the sender-side retention record kept by the retransmit
// store (C7) after send() completes, per §3's "send session" data model.
type sendSession struct {
	sid         string
	chunks      map[int][]byte
	parity      map[string][]byte
	total       int
	sentChunks  map[int]bool
	sentParity  map[string]bool
	protocolTag string
	fecScheme   FECScheme
	fullHash    string
	flags       string
	compress    bool
	createdAt   time.Time

	mu sync.Mutex
}

func newSendSession(sid string, chunks map[int][]byte, parity map[string][]byte, protocolTag, fullHash, flags string, scheme FECScheme, compress bool) *sendSession {
	return &sendSession{
		sid:         sid,
		chunks:      chunks,
		parity:      parity,
		total:       len(chunks),
		sentChunks:  make(map[int]bool, len(chunks)),
		sentParity:  make(map[string]bool, len(parity)),
		protocolTag: protocolTag,
		fecScheme:   scheme,
		fullHash:    fullHash,
		flags:       flags,
		compress:    compress,
		createdAt:   time.Now(),
	}
}

func (s *sendSession) markChunkSent(seq int) {
	s.mu.Lock()
	s.sentChunks[seq] = true
	s.mu.Unlock()
}

func (s *sendSession) markParitySent(id string) {
	s.mu.Lock()
	s.sentParity[id] = true
	s.mu.Unlock()
}

func (s *sendSession) age() time.Duration {
	return time.Since(s.createdAt)
}

// recvState enumerates a receive session's position in the state machine of
// §4.4. DELIVERED and ABORTED are terminal; a session occupies exactly one
// state at a time.
type recvState int

const (
	recvOpen recvState = iota
	recvDelivered
	recvAborted
)

// recvSession is the receiver-side per-message record of §3's "receive
// session" data model: created by the first valid START for its sid,
// destroyed on delivery, hash mismatch, or timeout (invariant I5: a receive
// session is deleted at most once, its timer cancelled before deletion).
type recvSession struct {
	sid          string
	total        int
	expectedHash string
	flags        string
	compress     bool
	fecScheme    FECScheme

	chunks map[int][]byte
	parity map[string][]byte
	dedup  *dedupCache

	timeoutDeadline time.Time
	timer           TimerHandle
	timerSet        bool

	state recvState
	mu    sync.Mutex
}

// dedupCapacity bounds how many packet ids one receive session remembers
// for duplicate suppression (§4.4 step 2); a session never legitimately
// needs more entries than total DATA + parity + START/END packets.
const dedupCapacity = 4096

func newRecvSession(sid string, total int, expectedHash, flags string, scheme FECScheme, compress bool) *recvSession {
	return &recvSession{
		sid:          sid,
		total:        total,
		expectedHash: expectedHash,
		flags:        flags,
		compress:     compress,
		fecScheme:    scheme,
		chunks:       make(map[int][]byte),
		parity:       make(map[string][]byte),
		dedup:        newDedupCache(dedupCapacity),
		state:        recvOpen,
	}
}

// isOpen reports whether the session is still accepting packets.
func (r *recvSession) isOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == recvOpen
}

// seenBefore records packet_id for duplicate suppression, returning true if
// it was already recorded (§4.4 step 2, §7 "duplicate packet -> drop").
func (r *recvSession) seenBefore(packetID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dedup.seenOrAdd(packetID)
}

// complete reports whether every chunk 1..total has arrived or been
// recovered.
func (r *recvSession) complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks) >= r.total
}

// transitionTo moves the session out of OPEN exactly once, cancelling its
// timer first (I5). Returns false if the session had already left OPEN.
func (r *recvSession) transitionTo(next recvState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != recvOpen {
		return false
	}
	if r.timerSet {
		r.timer.Cancel()
	}
	r.state = next
	return true
}

// armTimer schedules deadline via the shared SystemTimer, replacing any
// previously armed timer for this session first (the no-overlapping-timers
// rule of §5, relevant when a replacement START re-arms an existing sid).
func (r *recvSession) armTimer(timer *Timer, deadline time.Time, onExpire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timerSet {
		r.timer.Cancel()
	}
	r.timeoutDeadline = deadline
	r.timer = timer.Put(onExpire, deadline)
	r.timerSet = true
}
