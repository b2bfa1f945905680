/*
@Description: Engine facade - wires transport, sender, receiver and retransmit store together
*/

package sonicwave

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Config configures a new Engine. Transport is the only required field;
// every other field has a sonicwave-idiomatic default.
type Config struct {
	Transport AcousticTransport

	// Logger receives diagnostic messages; defaults to a no-op sink.
	Logger Logger

	// Stats receives protocol counters; defaults to a fresh *Stats.
	Stats *Stats

	// OnText is invoked for every delivered plaintext message.
	OnText TextDeliveryFunc

	// OnFile is invoked for every delivered FILE: batch; defaults to
	// NullFileAdapter.
	OnFile FileAdapter

	// DefaultFECScheme is used by Send when the caller passes a nil
	// *FECScheme; defaults to defaultFECScheme (STRONG_OVERLAPPING_3).
	DefaultFECScheme *FECScheme

	// TimerParallelism sizes the shared per-session timeout scheduler;
	// defaults to runtime.NumCPU() via SystemTimer if zero.
	TimerParallelism int
}

// Engine is the public facade over C1-C7: one Engine drives all sending and
// receiving for one acoustic transport, owning two independently-locked
// maps (send sessions in the retransmit store, receive sessions in the
// receiver) as described in §5.
type Engine struct {
	transport AcousticTransport
	logger    Logger
	stats     *Stats

	store *retransmitStore
	recv  *receiver
	timer *Timer

	defaultScheme FECScheme

	nonceMu sync.Mutex
	nonce   int
}

// NewEngine wires together an Engine from Config, adapting the teacher's
// Dial/Listen factory idiom into a single constructor since sonicwave has
// no duplex connection to dial - only a transmit/receive pair bound to one
// transport.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Transport == nil {
		return nil, errors.New("sonicwave: Config.Transport is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	stats := cfg.Stats
	if stats == nil {
		stats = NewStats()
	}
	scheme := defaultFECScheme
	if cfg.DefaultFECScheme != nil {
		scheme = *cfg.DefaultFECScheme
	}

	var timer *Timer
	if cfg.TimerParallelism > 0 {
		timer = NewTimer(cfg.TimerParallelism)
	} else {
		timer = SystemTimer
	}

	e := &Engine{
		transport:     cfg.Transport,
		logger:        logger,
		stats:         stats,
		store:         newRetransmitStore(),
		timer:         timer,
		defaultScheme: scheme,
		nonce:         int(time.Now().UnixNano() % 1_000_000),
	}
	e.recv = newReceiver(timer, stats, logger, cfg.OnText, cfg.OnFile)
	return e, nil
}

// Stats returns the Engine's live counters. Callers should Copy() before
// reading multiple fields together.
func (e *Engine) Stats() *Stats { return e.stats }

// allocateSID produces the next session id (§3), guarding the shared nonce
// counter against concurrent Send calls.
func (e *Engine) allocateSID() string {
	e.nonceMu.Lock()
	e.nonce = (e.nonce + 1) % 1_000_000
	n := e.nonce
	e.nonceMu.Unlock()
	return nextSID(time.Now(), n)
}

// Send drives a single transmission end to end (C5) and retains the result
// in the retransmit store for later replay.
func (e *Engine) Send(ctx context.Context, message []byte, protocolTag string, compress bool, scheme *FECScheme, progress ProgressFunc) (string, error) {
	s := e.defaultScheme
	if scheme != nil {
		s = *scheme
	}
	sid := e.allocateSID()
	sess, err := send(ctx, e.transport, sid, message, protocolTag, compress, s, progress, e.stats)
	if sess != nil {
		e.store.retain(sess)
	}
	if err != nil {
		return sid, err
	}
	return sid, nil
}

// StartReceive launches a goroutine that drains the transport's decoded
// frame channel and dispatches each through the receiver, until ctx is
// cancelled or the transport's channel closes. It is the adapter-facing
// analogue of spec.md §6's start_receive.
func (e *Engine) StartReceive(ctx context.Context) {
	go func() {
		frames := e.transport.Frames()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-frames:
				if !ok {
					return
				}
				e.recv.onFrame(raw)
			}
		}
	}()
}

// ListSendSessions returns a newest-first snapshot of retained send
// sessions (§4.5).
func (e *Engine) ListSendSessions() []SendSessionInfo {
	return e.store.listSendSessions()
}

// ResendChunks replays the given DATA packets for sid, in order (§4.5).
func (e *Engine) ResendChunks(ctx context.Context, sid string, seqs []int) error {
	return e.store.resendChunks(ctx, e.transport, sid, seqs, e.stats)
}

// ResendParity replays the given PARITY packets for sid, in order (§4.5).
func (e *Engine) ResendParity(ctx context.Context, sid string, parityIDs []string) error {
	return e.store.resendParity(ctx, e.transport, sid, parityIDs, e.stats)
}

// ClearOld deletes every retained send session older than ageMinutes,
// returning the count removed (§4.5).
func (e *Engine) ClearOld(ageMinutes int) int {
	return e.store.clearOld(ageMinutes)
}

// Delete removes a single retained send session (§4.5).
func (e *Engine) Delete(sid string) error {
	return e.store.delete(sid)
}

// ClearAll empties the retransmit store (§4.5).
func (e *Engine) ClearAll() {
	e.store.clearAll()
}

// randomNonce returns a random nonce in [0, 1_000_000), independent of any
// Engine's nonce counter. No code in this module calls it.
func randomNonce() int {
	return rand.Intn(1_000_000)
}
