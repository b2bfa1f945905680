/*
@Description: Statistics collection for the sonicwave protocol
*/

package sonicwave

import (
	"fmt"
	"sync/atomic"
)

// Stats contains every statistical counter exposed by an Engine.
// All fields are uint64 and are accessed using atomic operations for
// thread safety; take a Copy() before reading multiple fields together.
type Stats struct {
	// Traffic
	BytesSent     uint64
	BytesReceived uint64

	// Packets sent, broken down by wire kind
	PacketsSentStart  uint64
	PacketsSentData   uint64
	PacketsSentParity uint64
	PacketsSentEnd    uint64

	// Packets received, broken down by wire kind
	PacketsRecvStart  uint64
	PacketsRecvData   uint64
	PacketsRecvParity uint64
	PacketsRecvEnd    uint64

	// Session lifecycle (receiver side state machine of C6)
	SessionsOpened    uint64
	SessionsDelivered uint64
	SessionsAborted   uint64
	SessionsTimedOut  uint64

	// Ingress filtering
	DuplicatesDropped uint64
	MalformedDropped  uint64

	// FEC outcomes
	FECRecovered           uint64 // chunks recovered on the normal per-group pass
	FECErrs                uint64 // reserved for failed recovery attempts; no code path increments it
	FECAggressiveRecovered uint64 // chunks recovered only by the aggressive fallback pass (run after any packet that leaves the session incomplete)

	// C7 retransmit store activity
	RetransmitRequests uint64
}

// NewStats creates and initializes a new Stats structure, all counters zero.
func NewStats() *Stats {
	return new(Stats)
}

// Header returns the column headers for Stats display. The order matches
// ToSlice()'s output for consistent reporting.
func (s *Stats) Header() []string {
	return []string{
		"BytesSent",
		"BytesReceived",
		"PacketsSentStart",
		"PacketsSentData",
		"PacketsSentParity",
		"PacketsSentEnd",
		"PacketsRecvStart",
		"PacketsRecvData",
		"PacketsRecvParity",
		"PacketsRecvEnd",
		"SessionsOpened",
		"SessionsDelivered",
		"SessionsAborted",
		"SessionsTimedOut",
		"DuplicatesDropped",
		"MalformedDropped",
		"FECRecovered",
		"FECErrs",
		"FECAggressiveRecovered",
		"RetransmitRequests",
	}
}

// ToSlice converts a consistent snapshot of the statistics to a string
// slice for display purposes.
func (s *Stats) ToSlice() []string {
	d := s.Copy()
	return []string{
		fmt.Sprint(d.BytesSent),
		fmt.Sprint(d.BytesReceived),
		fmt.Sprint(d.PacketsSentStart),
		fmt.Sprint(d.PacketsSentData),
		fmt.Sprint(d.PacketsSentParity),
		fmt.Sprint(d.PacketsSentEnd),
		fmt.Sprint(d.PacketsRecvStart),
		fmt.Sprint(d.PacketsRecvData),
		fmt.Sprint(d.PacketsRecvParity),
		fmt.Sprint(d.PacketsRecvEnd),
		fmt.Sprint(d.SessionsOpened),
		fmt.Sprint(d.SessionsDelivered),
		fmt.Sprint(d.SessionsAborted),
		fmt.Sprint(d.SessionsTimedOut),
		fmt.Sprint(d.DuplicatesDropped),
		fmt.Sprint(d.MalformedDropped),
		fmt.Sprint(d.FECRecovered),
		fmt.Sprint(d.FECErrs),
		fmt.Sprint(d.FECAggressiveRecovered),
		fmt.Sprint(d.RetransmitRequests),
	}
}

// Copy creates a thread-safe snapshot of all statistics using atomic loads.
func (s *Stats) Copy() *Stats {
	d := NewStats()
	d.BytesSent = atomic.LoadUint64(&s.BytesSent)
	d.BytesReceived = atomic.LoadUint64(&s.BytesReceived)
	d.PacketsSentStart = atomic.LoadUint64(&s.PacketsSentStart)
	d.PacketsSentData = atomic.LoadUint64(&s.PacketsSentData)
	d.PacketsSentParity = atomic.LoadUint64(&s.PacketsSentParity)
	d.PacketsSentEnd = atomic.LoadUint64(&s.PacketsSentEnd)
	d.PacketsRecvStart = atomic.LoadUint64(&s.PacketsRecvStart)
	d.PacketsRecvData = atomic.LoadUint64(&s.PacketsRecvData)
	d.PacketsRecvParity = atomic.LoadUint64(&s.PacketsRecvParity)
	d.PacketsRecvEnd = atomic.LoadUint64(&s.PacketsRecvEnd)
	d.SessionsOpened = atomic.LoadUint64(&s.SessionsOpened)
	d.SessionsDelivered = atomic.LoadUint64(&s.SessionsDelivered)
	d.SessionsAborted = atomic.LoadUint64(&s.SessionsAborted)
	d.SessionsTimedOut = atomic.LoadUint64(&s.SessionsTimedOut)
	d.DuplicatesDropped = atomic.LoadUint64(&s.DuplicatesDropped)
	d.MalformedDropped = atomic.LoadUint64(&s.MalformedDropped)
	d.FECRecovered = atomic.LoadUint64(&s.FECRecovered)
	d.FECErrs = atomic.LoadUint64(&s.FECErrs)
	d.FECAggressiveRecovered = atomic.LoadUint64(&s.FECAggressiveRecovered)
	d.RetransmitRequests = atomic.LoadUint64(&s.RetransmitRequests)
	return d
}

// Reset atomically sets all statistics counters to zero.
func (s *Stats) Reset() {
	atomic.StoreUint64(&s.BytesSent, 0)
	atomic.StoreUint64(&s.BytesReceived, 0)
	atomic.StoreUint64(&s.PacketsSentStart, 0)
	atomic.StoreUint64(&s.PacketsSentData, 0)
	atomic.StoreUint64(&s.PacketsSentParity, 0)
	atomic.StoreUint64(&s.PacketsSentEnd, 0)
	atomic.StoreUint64(&s.PacketsRecvStart, 0)
	atomic.StoreUint64(&s.PacketsRecvData, 0)
	atomic.StoreUint64(&s.PacketsRecvParity, 0)
	atomic.StoreUint64(&s.PacketsRecvEnd, 0)
	atomic.StoreUint64(&s.SessionsOpened, 0)
	atomic.StoreUint64(&s.SessionsDelivered, 0)
	atomic.StoreUint64(&s.SessionsAborted, 0)
	atomic.StoreUint64(&s.SessionsTimedOut, 0)
	atomic.StoreUint64(&s.DuplicatesDropped, 0)
	atomic.StoreUint64(&s.MalformedDropped, 0)
	atomic.StoreUint64(&s.FECRecovered, 0)
	atomic.StoreUint64(&s.FECErrs, 0)
	atomic.StoreUint64(&s.FECAggressiveRecovered, 0)
	atomic.StoreUint64(&s.RetransmitRequests, 0)
}

// DefaultStats is a package-level statistics instance. NewEngine does not
// use it: an Engine built without Config.Stats gets its own fresh *Stats.
var DefaultStats *Stats

func init() {
	DefaultStats = NewStats()
}

// addUint64 is a small wrapper around atomic.AddUint64 used throughout the
// sender/receiver hot paths, which all accept a possibly-nil *Stats.
func addUint64(counter *uint64, delta uint64) {
	atomic.AddUint64(counter, delta)
}
