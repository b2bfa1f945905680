/*
@Description: FILE batch side channel - rerouting reassembled FILE: payloads away from text delivery
*/

package sonicwave

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// filePrefix marks a reassembled (or directly received) payload as a file
// batch rather than plain text (§6 "Non-core side channel: FILE packets").
const filePrefix = "FILE:"

// FileAdapter receives a decoded file batch instead of the text-delivery
// callback. batchID and filename come from the FILE: frame's fields;
// zipBytes is the frame's final base64 field, decoded.
type FileAdapter interface {
	Receive(batchID, filename string, zipBytes []byte) error
}

// NullFileAdapter discards every batch; used by callers with no interest in
// the file side channel.
type NullFileAdapter struct{}

func (NullFileAdapter) Receive(string, string, []byte) error { return nil }

// DirFileAdapter writes each batch's raw zip bytes to Dir/{batchId}_{filename}.
// Unzipping is left to the caller; this adapter's only job is placing bytes
// on disk, matching spec.md §1's "persistent file storage... belongs to the
// file adapter" framing.
type DirFileAdapter struct {
	Dir string
}

func (a DirFileAdapter) Receive(batchID, filename string, zipBytes []byte) error {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return errors.Wrap(err, "sonicwave: create file adapter directory")
	}
	name := filepath.Join(a.Dir, batchID+"_"+filepath.Base(filename))
	if err := os.WriteFile(name, zipBytes, 0o644); err != nil {
		return errors.Wrap(err, "sonicwave: write file batch")
	}
	return nil
}

// parseFileBatch splits a "FILE:{batchId}:{filename}:{b64(zip)}" payload.
// Everything after the 3rd colon is rejoined into the base64 field,
// matching the packet grammar's tail-rejoin rule; a batchId or filename
// containing ':' therefore shifts text into that field, which then fails
// base64 validation, and the payload is rejected.
func parseFileBatch(payload string) (batchID, filename string, zipBytes []byte, ok bool) {
	rest := strings.TrimPrefix(payload, filePrefix)
	fields, split := splitFields(rest, 3)
	if !split {
		return "", "", nil, false
	}
	if !validateB64(fields[2]) {
		return "", "", nil, false
	}
	data, err := decodeB64(fields[2])
	if err != nil {
		return "", "", nil, false
	}
	return fields[0], fields[1], data, true
}
