/*
@Description: Sentinel errors and logging contract for sonicwave
*/

package sonicwave

import "github.com/pkg/errors"

var (
	// errUnknownSession is returned by retransmit operations on an unrecognised sid.
	errUnknownSession = errors.New("sonicwave: unknown session id")

	// errNoFEC names a FEC operation against the NONE scheme; no code path
	// in this package returns it (FEC passes simply skip NONE sessions).
	errNoFEC = errors.New("sonicwave: fec disabled for this scheme")

	// errSessionClosed names an operation on a session past its single
	// deletion; no code path in this package returns it (packets for a
	// closed session are dropped silently).
	errSessionClosed = errors.New("sonicwave: session already closed")

	// errPayloadTooLarge is returned when a session id or chunk would violate a wire bound.
	errPayloadTooLarge = errors.New("sonicwave: payload exceeds protocol limits")
)

// Logger is the minimal diagnostic sink the engine writes to. *log.Logger
// satisfies it; callers that want structured logging can adapt their own
// logger to this single method.
type Logger interface {
	Printf(format string, v ...any)
}

// nopLogger discards everything; used when Config.Logger is nil.
type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
