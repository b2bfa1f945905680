/*
@Description: Retransmit store (C7) - sender-side session retention and caller-driven replay
*/

package sonicwave

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// retransmitStore retains completed send sessions keyed by sid so specific
// fragments or parity can be replayed on request (§4.5). It is owned by the
// sender side of an Engine; mutation requires exclusive access, readers may
// snapshot for listing (§5).
type retransmitStore struct {
	mu       sync.Mutex
	sessions map[string]*sendSession
}

// SendSessionInfo is a read-only snapshot of one retained send session, for
// list_send_sessions().
type SendSessionInfo struct {
	SID         string
	Total       int
	ProtocolTag string
	FECScheme   string
	CreatedAt   time.Time
	SentChunks  int
	SentParity  int
}

func newRetransmitStore() *retransmitStore {
	return &retransmitStore{sessions: make(map[string]*sendSession)}
}

func (s *retransmitStore) retain(sess *sendSession) {
	s.mu.Lock()
	s.sessions[sess.sid] = sess
	s.mu.Unlock()
}

// listSendSessions returns a snapshot of every retained session, ordered
// newest-first (§4.5).
func (s *retransmitStore) listSendSessions() []SendSessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SendSessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sess.mu.Lock()
		out = append(out, SendSessionInfo{
			SID:         sess.sid,
			Total:       sess.total,
			ProtocolTag: sess.protocolTag,
			FECScheme:   sess.fecScheme.Name,
			CreatedAt:   sess.createdAt,
			SentChunks:  len(sess.sentChunks),
			SentParity:  len(sess.sentParity),
		})
		sess.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *retransmitStore) get(sid string) (*sendSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return nil, errors.Wrapf(errUnknownSession, "sid %q", sid)
	}
	return sess, nil
}

// resendChunks replays the given DATA packets, in the given order, using
// the session's original protocol_tag (§4.5).
func (s *retransmitStore) resendChunks(ctx context.Context, transport AcousticTransport, sid string, seqs []int, stats *Stats) error {
	sess, err := s.get(sid)
	if err != nil {
		return err
	}
	for _, seq := range seqs {
		sess.mu.Lock()
		chunk, ok := sess.chunks[seq]
		tag := sess.protocolTag
		sess.mu.Unlock()
		if !ok {
			return errors.Wrapf(errUnknownSession, "sid %q has no chunk seq=%d", sid, seq)
		}
		frame := serializeData(sid, seq, chunk)
		if err := transport.Transmit(ctx, frame, tag); err != nil {
			return errors.Wrapf(err, "sonicwave: resend chunk seq=%d", seq)
		}
		sess.markChunkSent(seq)
		if stats != nil {
			addUint64(&stats.RetransmitRequests, 1)
		}
	}
	return nil
}

// resendParity is resendChunks' analogue for PARITY packets (§4.5).
func (s *retransmitStore) resendParity(ctx context.Context, transport AcousticTransport, sid string, parityIDs []string, stats *Stats) error {
	sess, err := s.get(sid)
	if err != nil {
		return err
	}
	for _, id := range parityIDs {
		canon := normalizeParityID(id)
		sess.mu.Lock()
		sym, ok := sess.parity[canon]
		tag := sess.protocolTag
		sess.mu.Unlock()
		if !ok {
			return errors.Wrapf(errUnknownSession, "sid %q has no parity %q", sid, canon)
		}
		frame := serializeParity(sid, canon, sym)
		if err := transport.Transmit(ctx, frame, tag); err != nil {
			return errors.Wrapf(err, "sonicwave: resend parity %q", canon)
		}
		sess.markParitySent(canon)
		if stats != nil {
			addUint64(&stats.RetransmitRequests, 1)
		}
	}
	return nil
}

// clearOld deletes every retained session older than ageMinutes (§4.5).
func (s *retransmitStore) clearOld(ageMinutes int) int {
	cutoff := time.Duration(ageMinutes) * time.Minute
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for sid, sess := range s.sessions {
		if sess.age() > cutoff {
			delete(s.sessions, sid)
			n++
		}
	}
	return n
}

func (s *retransmitStore) delete(sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sid]; !ok {
		return errors.Wrapf(errUnknownSession, "sid %q", sid)
	}
	delete(s.sessions, sid)
	return nil
}

func (s *retransmitStore) clearAll() {
	s.mu.Lock()
	s.sessions = make(map[string]*sendSession)
	s.mu.Unlock()
}
