/*
@Description: Codec utilities - MD5/base64 hashing, gzip compression, byte chunking
*/

package sonicwave

import (
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"encoding/base64"
	"io"
	"regexp"

	"github.com/pkg/errors"
)

// ChunkSize (CHUNK_SIZE) is the maximum number of payload bytes carried by one DATA or
// PARITY packet (§6 normative constant).
const ChunkSize = 75

// MD5LenB64 is the length, in characters, of a base64-encoded MD5 digest
// (16 bytes -> 24 chars including '=' padding).
const MD5LenB64 = 24

var base64CharsetRe = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

// hashB64 returns the base64 (standard alphabet, padded) encoding of the
// MD5 digest of b.
func hashB64(b []byte) string {
	sum := md5.Sum(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// encodeB64 encodes b with the traditional base64 alphabet and '=' padding.
func encodeB64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// validateB64 checks the character set and length%4==0 constraint the
// packet grammar requires before a decode is attempted (§4.1).
func validateB64(s string) bool {
	if len(s)%4 != 0 {
		return false
	}
	return base64CharsetRe.MatchString(s)
}

// decodeB64 validates then decodes s. Callers MUST call validateB64 first
// if they need to distinguish "malformed" from "decode error" for logging;
// decodeB64 re-validates defensively.
func decodeB64(s string) ([]byte, error) {
	if !validateB64(s) {
		return nil, errors.New("sonicwave: invalid base64 payload")
	}
	return base64.StdEncoding.DecodeString(s)
}

// gzipBytes compresses b with gzip's default compression level.
func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		_ = w.Close()
		return nil, errors.Wrap(err, "sonicwave: gzip write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "sonicwave: gzip close")
	}
	return buf.Bytes(), nil
}

// gunzipBytes decompresses a gzip stream. On failure the caller (receiver)
// falls back to delivering the raw concatenation per §7's recover policy.
func gunzipBytes(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "sonicwave: gzip reader")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "sonicwave: gzip read")
	}
	return out, nil
}

// splitChunks slices payload into ceil(len/ChunkSize) pieces, each at most
// ChunkSize bytes; the last piece may be shorter. An empty payload still
// yields exactly one (empty) chunk, matching "total >= 1" elsewhere in the
// protocol (a zero-chunk message has no meaningful seq space).
func splitChunks(payload []byte) [][]byte {
	if len(payload) == 0 {
		return [][]byte{{}}
	}
	n := (len(payload) + ChunkSize - 1) / ChunkSize
	chunks := make([][]byte, 0, n)
	for start := 0; start < len(payload); start += ChunkSize {
		end := start + ChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[start:end])
	}
	return chunks
}

// padChunk right-pads b with zero bytes to ChunkSize, per invariant I2. The
// returned slice is always freshly allocated so callers may mutate it.
func padChunk(b []byte) []byte {
	out := make([]byte, ChunkSize)
	copy(out, b)
	return out
}

// stripTrailingZeros removes zero bytes from the end of b, reversing
// padChunk for a recovered fragment. Genuine trailing zero bytes in the
// original message are indistinguishable from padding; this is a known,
// accepted lossiness of the padding scheme (mirrors the source behaviour).
func stripTrailingZeros(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}
