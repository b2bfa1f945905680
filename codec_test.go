package sonicwave

import (
	"bytes"
	"testing"
)

func TestHashB64(t *testing.T) {
	h := hashB64([]byte("hello"))
	if len(h) != MD5LenB64 {
		t.Fatalf("hash length = %d, want %d", len(h), MD5LenB64)
	}
	if !validateB64(h) {
		t.Fatalf("hash %q failed base64 validation", h)
	}
}

func TestValidateB64(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"", true},
		{"QQ==", true},
		{"QQ=", false},  // len%4 != 0
		{"Q Q=", false}, // space not in alphabet
		{"////", true},
		{"++++", true},
	}
	for _, c := range cases {
		if got := validateB64(c.in); got != c.ok {
			t.Errorf("validateB64(%q) = %v, want %v", c.in, got, c.ok)
		}
	}
}

func TestGzipRoundTrip(t *testing.T) {
	orig := bytes.Repeat([]byte("sonicwave "), 50)
	gz, err := gzipBytes(orig)
	if err != nil {
		t.Fatal(err)
	}
	back, err := gunzipBytes(gz)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(orig, back) {
		t.Fatal("gzip round trip mismatch")
	}
}

func TestGunzipFailureOnGarbage(t *testing.T) {
	if _, err := gunzipBytes([]byte("not gzip")); err == nil {
		t.Fatal("expected an error decompressing garbage")
	}
}

func TestSplitChunks(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), ChunkSize*2+10)
	chunks := splitChunks(payload)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(chunks[0]) != ChunkSize || len(chunks[1]) != ChunkSize {
		t.Fatalf("full chunks should be %d bytes", ChunkSize)
	}
	if len(chunks[2]) != 10 {
		t.Fatalf("last chunk = %d bytes, want 10", len(chunks[2]))
	}

	empty := splitChunks(nil)
	if len(empty) != 1 || len(empty[0]) != 0 {
		t.Fatalf("empty payload should yield one empty chunk, got %v", empty)
	}
}

func TestPadAndStripRoundTrip(t *testing.T) {
	b := []byte("abc")
	padded := padChunk(b)
	if len(padded) != ChunkSize {
		t.Fatalf("padded length = %d, want %d", len(padded), ChunkSize)
	}
	stripped := stripTrailingZeros(padded)
	if !bytes.Equal(stripped, b) {
		t.Fatalf("stripTrailingZeros(padChunk(b)) = %v, want %v", stripped, b)
	}
}
