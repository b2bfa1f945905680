/*
@Description: Wire packet grammar - START/DATA/PARITY/END serialisation and parsing
*/

package sonicwave

import (
	"fmt"
	"strconv"
	"strings"
)

// packetKind enumerates the four wire packet forms of §4.1.
type packetKind byte

const (
	kindStart packetKind = 'S'
	kindData  packetKind = 'D'
	kindParity packetKind = 'P'
	kindEnd    packetKind = 'E'
)

// startPacket is the decoded form of "S:{sid}::{hash}:{total}[:{flags}]".
type startPacket struct {
	sid   string
	hash  string
	total int
	flags string
}

// dataPacket is the decoded form of "D:{sid}:{seq}:{b64(chunk)}".
type dataPacket struct {
	sid   string
	seq   int
	chunk []byte
}

// parityPacket is the decoded form of "P:{sid}:{parity-id}:{b64(parity)}".
type parityPacket struct {
	sid      string
	parityID string
	data     []byte
}

// endPacket is the decoded form of "E:{sid}::".
type endPacket struct {
	sid string
}

// ---- serialisation ----

// serializeStart renders a START packet. flags may be empty, in which case
// neither the flags field nor its preceding ':' is emitted.
func serializeStart(sid, hash string, total int, flags string) string {
	s := fmt.Sprintf("S:%s::%s:%d", sid, hash, total)
	if flags != "" {
		s += ":" + flags
	}
	return s
}

func serializeData(sid string, seq int, chunk []byte) string {
	return fmt.Sprintf("D:%s:%d:%s", sid, seq, encodeB64(chunk))
}

func serializeParity(sid, parityID string, data []byte) string {
	return fmt.Sprintf("P:%s:%s:%s", sid, parityID, encodeB64(data))
}

func serializeEnd(sid string) string {
	return fmt.Sprintf("E:%s::", sid)
}

// buildFlags joins flag tokens with ',' in the canonical order the sender
// emits them: compression first, then the FEC scheme token.
func buildFlags(compress bool, schemeName string) string {
	var toks []string
	if compress {
		toks = append(toks, "C")
	}
	if schemeName != "" && schemeName != fecSchemeNone.Name {
		toks = append(toks, "F"+schemeName)
	}
	return strings.Join(toks, ",")
}

// ---- parsing ----

// splitFields splits s on ':' into exactly n fields, rejoining any overflow
// into the final field as §4.1 requires ("the parser MUST rejoin the tail
// after the nth colon").
func splitFields(s string, n int) ([]string, bool) {
	fields := make([]string, 0, n)
	rest := s
	for i := 0; i < n-1; i++ {
		idx := strings.IndexByte(rest, ':')
		if idx < 0 {
			return nil, false
		}
		fields = append(fields, rest[:idx])
		rest = rest[idx+1:]
	}
	fields = append(fields, rest)
	return fields, true
}

// classifyFrame returns the packet kind for a raw frame, or false if the
// frame does not match any recognised prefix (plaintext / FILE: passthrough).
func classifyFrame(raw string) (packetKind, bool) {
	if len(raw) < 2 || raw[1] != ':' {
		return 0, false
	}
	switch raw[0] {
	case 'S', 'D', 'P', 'E':
		return packetKind(raw[0]), true
	default:
		return 0, false
	}
}

// parseStart parses "S:{sid}::{hash}:{total}[:{flags}]". The doubled ':'
// after sid is a deliberate empty field kept for wire-format stability.
func parseStart(raw string) (startPacket, bool) {
	// Fields: 0=S 1=sid 2="" 3=hash 4=total 5=flags(optional)
	fields, ok := splitFields(raw, 6)
	if !ok {
		fields, ok = splitFields(raw, 5)
		if !ok {
			return startPacket{}, false
		}
		fields = append(fields, "")
	}
	if fields[0] != "S" || fields[2] != "" {
		return startPacket{}, false
	}
	hash := fields[3]
	if len(hash) != MD5LenB64 || !validateB64(hash) {
		return startPacket{}, false
	}
	total, err := strconv.Atoi(fields[4])
	if err != nil || total < 0 || total > MaxSeq {
		return startPacket{}, false
	}
	return startPacket{sid: fields[1], hash: hash, total: total, flags: fields[5]}, true
}

// parseSID extracts just the sid from a "{kind}:{sid}:..." frame without
// fully decoding it, used to compute packet_id cheaply for duplicate checks.
func parseSID(raw string) (string, bool) {
	fields, ok := splitFields(raw, 2)
	if !ok || len(fields[1]) == 0 {
		return "", false
	}
	idx := strings.IndexByte(fields[1], ':')
	if idx < 0 {
		return fields[1], true
	}
	return fields[1][:idx], true
}

func parseData(raw string) (dataPacket, bool) {
	fields, ok := splitFields(raw, 4)
	if !ok || fields[0] != "D" {
		return dataPacket{}, false
	}
	seq, err := strconv.Atoi(fields[2])
	if err != nil || seq < 1 || seq > MaxSeq {
		return dataPacket{}, false
	}
	if !validateB64(fields[3]) {
		return dataPacket{}, false
	}
	chunk, err := decodeB64(fields[3])
	if err != nil {
		return dataPacket{}, false
	}
	return dataPacket{sid: fields[1], seq: seq, chunk: chunk}, true
}

func parseParity(raw string) (parityPacket, bool) {
	fields, ok := splitFields(raw, 4)
	if !ok || fields[0] != "P" {
		return parityPacket{}, false
	}
	if fields[2] == "" || !validateB64(fields[3]) {
		return parityPacket{}, false
	}
	data, err := decodeB64(fields[3])
	if err != nil {
		return parityPacket{}, false
	}
	return parityPacket{sid: fields[1], parityID: normalizeParityID(fields[2]), data: data}, true
}

func parseEnd(raw string) (endPacket, bool) {
	fields, ok := splitFields(raw, 3)
	if !ok || fields[0] != "E" {
		return endPacket{}, false
	}
	return endPacket{sid: fields[1]}, true
}

// packetID computes the duplicate-suppression key for a parsed frame, per
// §4.4 step 2: "{type}:{sid}:{field3}".
func packetID(kind packetKind, sid, field3 string) string {
	return fmt.Sprintf("%c:%s:%s", kind, sid, field3)
}

// MaxSeq is the largest permitted sequence number / chunk total (§6).
const MaxSeq = 9_999_999
