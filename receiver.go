/*
@Description: Receiver / session manager (C6) - per-session reassembly and the on_frame dispatcher
*/

package sonicwave

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// TextDeliveryFunc receives a fully reassembled (or directly-received)
// plaintext message. Not invoked for payloads rerouted to the FileAdapter.
type TextDeliveryFunc func(sid string, message []byte)

// receiver owns every in-flight receive session (§5: "the receive-session
// map... owned by the receiver task"; mutation requires exclusive access,
// readers may snapshot).
type receiver struct {
	mu       sync.Mutex
	sessions map[string]*recvSession

	timer   *Timer
	stats   *Stats
	logger  Logger
	onText  TextDeliveryFunc
	onFile  FileAdapter
	nowFunc func() time.Time
}

func newReceiver(timer *Timer, stats *Stats, logger Logger, onText TextDeliveryFunc, onFile FileAdapter) *receiver {
	if onFile == nil {
		onFile = NullFileAdapter{}
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &receiver{
		sessions: make(map[string]*recvSession),
		timer:    timer,
		stats:    stats,
		logger:   logger,
		onText:   onText,
		onFile:   onFile,
		nowFunc:  time.Now,
	}
}

// onFrame is the C6 entry point: classify, dedup, dispatch, recover,
// possibly deliver (§4.4).
func (r *receiver) onFrame(raw string) {
	if strings.HasPrefix(raw, filePrefix) {
		r.deliverPayload("", []byte(raw))
		return
	}

	kind, ok := classifyFrame(raw)
	if !ok {
		// Not a structured packet: deliver as plaintext and stop (§4.4 step 1).
		r.onText("", []byte(raw))
		return
	}

	sid, ok := parseSID(raw)
	if !ok {
		r.bumpMalformed()
		return
	}

	switch kind {
	case kindStart:
		r.handleStart(sid, raw)
	case kindData:
		r.handleData(sid, raw)
	case kindParity:
		r.handleParity(sid, raw)
	case kindEnd:
		r.handleEnd(sid, raw)
	}
}

func (r *receiver) bumpMalformed() {
	if r.stats != nil {
		addUint64(&r.stats.MalformedDropped, 1)
	}
}

func (r *receiver) bumpDuplicate() {
	if r.stats != nil {
		addUint64(&r.stats.DuplicatesDropped, 1)
	}
}

// handleStart implements §4.4's START handling, including "last START
// wins": a pre-existing session for the same sid is cancelled and replaced.
func (r *receiver) handleStart(sid, raw string) {
	sp, ok := parseStart(raw)
	if !ok {
		r.bumpMalformed()
		return
	}

	compress, schemeToken := parseStartFlags(sp.flags)
	scheme := resolveFECScheme(schemeToken)

	r.mu.Lock()
	if old, exists := r.sessions[sid]; exists {
		old.transitionTo(recvAborted)
		delete(r.sessions, sid)
	}
	sess := newRecvSession(sid, sp.total, sp.hash, sp.flags, scheme, compress)
	r.sessions[sid] = sess
	r.mu.Unlock()

	if r.stats != nil {
		addUint64(&r.stats.PacketsRecvStart, 1)
		addUint64(&r.stats.SessionsOpened, 1)
	}

	// The wire START carries no protocol_tag field, so the receiver always
	// falls into the "unknown -> speed_mult 1" branch of the timeout
	// formula (§4.4).
	deadline := r.nowFunc().Add(receiveTimeout(sp.total, ""))
	sess.armTimer(r.timer, deadline, func() {
		r.expireSession(sid)
	})
}

// parseStartFlags scans a START's comma-separated flags for "C" and the
// first "F{SCHEME}" token (§4.4 step "parse flags"). Unknown tokens are
// ignored per §4.1.
func parseStartFlags(flags string) (compress bool, scheme string) {
	if flags == "" {
		return false, ""
	}
	for _, tok := range strings.Split(flags, ",") {
		switch {
		case tok == "C":
			compress = true
		case strings.HasPrefix(tok, "F") && len(tok) > 1:
			if scheme == "" {
				scheme = tok[1:]
			}
		}
	}
	return compress, scheme
}

func (r *receiver) handleData(sid, raw string) {
	sess := r.lookup(sid)
	if sess == nil || !sess.isOpen() {
		return // "DATA after no matching session" -> drop, wait for future START
	}
	dp, ok := parseData(raw)
	if !ok {
		r.bumpMalformed()
		return
	}
	if dp.seq > sess.total {
		r.bumpMalformed()
		return
	}
	pid := packetID(kindData, sid, strconv.Itoa(dp.seq))
	if sess.seenBefore(pid) {
		r.bumpDuplicate()
		return
	}

	sess.mu.Lock()
	sess.chunks[dp.seq] = dp.chunk
	sess.mu.Unlock()

	if r.stats != nil {
		addUint64(&r.stats.PacketsRecvData, 1)
		addUint64(&r.stats.BytesReceived, uint64(len(raw)))
	}
	r.afterPacket(sess)
}

func (r *receiver) handleParity(sid, raw string) {
	sess := r.lookup(sid)
	if sess == nil || !sess.isOpen() {
		return
	}
	pp, ok := parseParity(raw)
	if !ok {
		r.bumpMalformed()
		return
	}
	if len(pp.data) != ChunkSize {
		r.bumpMalformed()
		return
	}
	pid := packetID(kindParity, sid, pp.parityID)
	if sess.seenBefore(pid) {
		r.bumpDuplicate()
		return
	}

	sess.mu.Lock()
	sess.parity[pp.parityID] = pp.data
	sess.mu.Unlock()

	if r.stats != nil {
		addUint64(&r.stats.PacketsRecvParity, 1)
		addUint64(&r.stats.BytesReceived, uint64(len(raw)))
	}
	r.afterPacket(sess)
}

func (r *receiver) handleEnd(sid, raw string) {
	sess := r.lookup(sid)
	if sess == nil || !sess.isOpen() {
		return
	}
	if r.stats != nil {
		addUint64(&r.stats.PacketsRecvEnd, 1)
	}
	// Advisory only (§4.1): still worth a recovery pass in case END arrives
	// after the last parity needed to complete the message.
	r.afterPacket(sess)
}

func (r *receiver) lookup(sid string) *recvSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sid]
}

// afterPacket runs the FEC recovery passes and, once complete, the
// integrity/delivery pipeline (§4.4 "after every packet").
func (r *receiver) afterPacket(sess *recvSession) {
	r.runRecoveryPasses(sess)

	if sess.complete() {
		r.finish(sess)
	}
}

// runRecoveryPasses re-runs every group's recovery, then the aggressive
// fallback if the message is still incomplete; both are idempotent and
// safe to call on every new packet (§4.2).
func (r *receiver) runRecoveryPasses(sess *recvSession) {
	sess.mu.Lock()
	scheme := sess.fecScheme
	total := sess.total
	sess.mu.Unlock()

	if scheme.GroupSize <= 0 || scheme.ParityCount <= 0 {
		return
	}

	for _, gi := range groupInfos(total, scheme) {
		sess.mu.Lock()
		recovered := recoverGroup(scheme, gi, sess.chunks, sess.parity)
		for seq, chunk := range recovered {
			sess.chunks[seq] = chunk
		}
		sess.mu.Unlock()
		if len(recovered) > 0 && r.stats != nil {
			addUint64(&r.stats.FECRecovered, uint64(len(recovered)))
		}
	}

	if sess.complete() {
		return
	}

	sess.mu.Lock()
	aggressive := aggressiveRecover(sess.chunks, sess.parity)
	for seq, chunk := range aggressive {
		sess.chunks[seq] = chunk
	}
	sess.mu.Unlock()
	if len(aggressive) > 0 && r.stats != nil {
		addUint64(&r.stats.FECAggressiveRecovered, uint64(len(aggressive)))
	}
}

// finish runs the completion pipeline: concatenate, hash-check, optionally
// gunzip, then deliver or drop (§4.4 final paragraph).
func (r *receiver) finish(sess *recvSession) {
	sess.mu.Lock()
	total := sess.total
	chunks := sess.chunks
	expectedHash := sess.expectedHash
	compress := sess.compress
	sid := sess.sid
	sess.mu.Unlock()

	var payload []byte
	for seq := 1; seq <= total; seq++ {
		payload = append(payload, chunks[seq]...)
	}

	actualHash := hashB64(payload)
	if actualHash != expectedHash {
		r.logger.Printf("sonicwave: session %s hash mismatch: expected %s got %s", sid, expectedHash, actualHash)
		if sess.transitionTo(recvAborted) {
			r.removeSession(sid)
			if r.stats != nil {
				addUint64(&r.stats.SessionsAborted, 1)
			}
		}
		return
	}

	message := payload
	if compress {
		if gunzipped, err := gunzipBytes(payload); err == nil {
			message = gunzipped
		} else {
			r.logger.Printf("sonicwave: session %s gunzip failed, delivering raw: %v", sid, err)
		}
	}

	if !sess.transitionTo(recvDelivered) {
		return
	}
	r.removeSession(sid)
	if r.stats != nil {
		addUint64(&r.stats.SessionsDelivered, 1)
	}

	r.deliverPayload(sid, message)
}

// deliverPayload reroutes FILE: payloads to the FileAdapter, otherwise
// invokes the text-delivery callback (§6 "Non-core side channel").
func (r *receiver) deliverPayload(sid string, message []byte) {
	if strings.HasPrefix(string(message), filePrefix) {
		batchID, filename, zipBytes, ok := parseFileBatch(string(message))
		if ok {
			if err := r.onFile.Receive(batchID, filename, zipBytes); err != nil {
				r.logger.Printf("sonicwave: file adapter error for batch %s: %v", batchID, err)
			}
			return
		}
	}
	if r.onText != nil {
		r.onText(sid, message)
	}
}

func (r *receiver) expireSession(sid string) {
	sess := r.lookup(sid)
	if sess == nil {
		return
	}
	if !sess.transitionTo(recvAborted) {
		return
	}
	r.removeSession(sid)
	if r.stats != nil {
		addUint64(&r.stats.SessionsTimedOut, 1)
	}
	r.logger.Printf("sonicwave: session %s timed out with %d/%d chunks, %d parity symbols", sid, len(sessChunksSnapshot(sess)), sess.total, len(sess.parity))
}

func (r *receiver) removeSession(sid string) {
	r.mu.Lock()
	delete(r.sessions, sid)
	r.mu.Unlock()
}

// sessChunksSnapshot takes a length-safe read of a session's chunk map for
// diagnostic logging (called after the session has already left OPEN, but
// the map itself is still guarded defensively).
func sessChunksSnapshot(sess *recvSession) map[int][]byte {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make(map[int][]byte, len(sess.chunks))
	for k, v := range sess.chunks {
		out[k] = v
	}
	return out
}
