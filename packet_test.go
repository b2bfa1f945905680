package sonicwave

import "testing"

func TestStartSerializeParseRoundTrip(t *testing.T) {
	hash := hashB64([]byte("payload"))
	frame := serializeStart("1734567890-000123", hash, 5, "C,FBASIC_4")

	sp, ok := parseStart(frame)
	if !ok {
		t.Fatalf("parseStart(%q) failed", frame)
	}
	if sp.sid != "1734567890-000123" || sp.hash != hash || sp.total != 5 || sp.flags != "C,FBASIC_4" {
		t.Fatalf("parseStart = %+v, unexpected", sp)
	}
}

func TestStartNoFlagsOmitsTrailingColon(t *testing.T) {
	hash := hashB64([]byte("x"))
	frame := serializeStart("sid", hash, 1, "")
	if frame[len(frame)-1] == ':' {
		t.Fatalf("frame %q must not end with a trailing ':'", frame)
	}
	sp, ok := parseStart(frame)
	if !ok || sp.flags != "" {
		t.Fatalf("parseStart(%q) = %+v, ok=%v", frame, sp, ok)
	}
}

func TestDataSerializeParseRoundTrip(t *testing.T) {
	chunk := []byte("hello chunk")
	frame := serializeData("sid1", 3, chunk)
	dp, ok := parseData(frame)
	if !ok {
		t.Fatalf("parseData(%q) failed", frame)
	}
	if dp.sid != "sid1" || dp.seq != 3 || string(dp.chunk) != string(chunk) {
		t.Fatalf("parseData = %+v, unexpected", dp)
	}
}

func TestParityNormalization(t *testing.T) {
	sym := padChunk([]byte("parity"))
	frame := serializeParity("sid1", "1-3", sym)
	pp, ok := parseParity(frame)
	if !ok {
		t.Fatalf("parseParity(%q) failed", frame)
	}
	if pp.parityID != "1-3-0" {
		t.Fatalf("parityID = %q, want normalized 1-3-0", pp.parityID)
	}
}

func TestEndRoundTrip(t *testing.T) {
	frame := serializeEnd("sid1")
	ep, ok := parseEnd(frame)
	if !ok || ep.sid != "sid1" {
		t.Fatalf("parseEnd(%q) = %+v, ok=%v", frame, ep, ok)
	}
}

func TestClassifyFrame(t *testing.T) {
	cases := map[string]packetKind{
		"S:a::b:1": kindStart,
		"D:a:1:b":  kindData,
		"P:a:1-1-0:b": kindParity,
		"E:a::":    kindEnd,
	}
	for frame, want := range cases {
		got, ok := classifyFrame(frame)
		if !ok || got != want {
			t.Errorf("classifyFrame(%q) = %v,%v want %v", frame, got, ok, want)
		}
	}
	if _, ok := classifyFrame("FILE:b:a.zip:AAAA"); ok {
		t.Error("FILE: frames must not classify as a structured packet kind")
	}
	if _, ok := classifyFrame("plain text"); ok {
		t.Error("plaintext must not classify as a structured packet kind")
	}
}

func TestBuildFlagsOrderAndOmission(t *testing.T) {
	if got := buildFlags(false, fecSchemeNone.Name); got != "" {
		t.Errorf("buildFlags(false, NONE) = %q, want empty", got)
	}
	if got := buildFlags(true, fecSchemeBasic4.Name); got != "C,FBASIC_4" {
		t.Errorf("buildFlags(true, BASIC_4) = %q, want C,FBASIC_4", got)
	}
}

func TestSplitFieldsRejoinsTail(t *testing.T) {
	fields, ok := splitFields("a:b:c:d:e", 3)
	if !ok {
		t.Fatal("splitFields failed")
	}
	if fields[2] != "c:d:e" {
		t.Fatalf("tail field = %q, want rejoined c:d:e", fields[2])
	}
}

func TestMalformedPacketsRejected(t *testing.T) {
	if _, ok := parseStart("S:sid:x:" + hashB64([]byte("x")) + ":5"); ok {
		t.Error("parseStart should reject a non-empty second field")
	}
	if _, ok := parseData("D:sid:0:QQ=="); ok {
		t.Error("parseData should reject seq < 1")
	}
	if _, ok := parseParity("P:sid::QQ=="); ok {
		t.Error("parseParity should reject an empty parity id")
	}
}
