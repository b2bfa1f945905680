package sonicwave

import "testing"

func TestRSCleanEncodeRecoverTwoMissing(t *testing.T) {
	total := 8
	chunks := buildChunks(total)
	scheme := fecSchemeRSClean

	parity, err := computeAllParity(total, scheme, chunks)
	if err != nil {
		t.Fatal(err)
	}
	if len(parity) != scheme.ParityCount {
		t.Fatalf("got %d parity symbols, want %d", len(parity), scheme.ParityCount)
	}

	partial := make(map[int][]byte, total-2)
	for seq, c := range chunks {
		if seq != 2 && seq != 5 {
			partial[seq] = c
		}
	}

	for _, gi := range groupInfos(total, scheme) {
		recovered := recoverGroup(scheme, gi, partial, parity)
		for seq, c := range recovered {
			partial[seq] = c
		}
	}

	if string(partial[2]) != string(chunks[2]) || string(partial[5]) != string(chunks[5]) {
		t.Fatalf("RS_CLEAN recovery mismatch: got seq2=%v seq5=%v", partial[2], partial[5])
	}
}

func TestRSCleanRecoverGivesUpWhenTooManyMissing(t *testing.T) {
	total := 8
	chunks := buildChunks(total)
	scheme := fecSchemeRSClean

	parity, err := computeAllParity(total, scheme, chunks)
	if err != nil {
		t.Fatal(err)
	}

	partial := map[int][]byte{1: chunks[1]} // 7 of 8 missing, only 3 parity symbols available

	for _, gi := range groupInfos(total, scheme) {
		recovered := recoverGroup(scheme, gi, partial, parity)
		for seq, c := range recovered {
			partial[seq] = c
		}
	}

	if len(partial) >= total {
		t.Fatal("recovery should not succeed when missing count exceeds available parity shards")
	}
}

func TestRSCleanEndToEndThroughEngine(t *testing.T) {
	message := make([]byte, 560) // >= 8 chunks of 75 bytes under RS_CLEAN's group size
	for i := range message {
		message[i] = byte(i % 200)
	}
	ct, _ := sendForTest(t, message, "", false, fecSchemeRSClean)

	withheld := map[int]bool{}
	dropped := 0
	for i, f := range ct.frames {
		if dp, ok := parseData(f); ok && (dp.seq == 3 || dp.seq == 4) {
			withheld[i] = true
			dropped++
		}
	}
	if dropped != 2 {
		t.Fatalf("expected to withhold exactly 2 DATA frames, withheld %d", dropped)
	}

	var delivered []byte
	recv := newTestReceiver(func(sid string, m []byte) { delivered = m })
	deliverAll(recv, ct.frames, withheld)

	if string(delivered) != string(message) {
		t.Fatalf("RS_CLEAN end-to-end mismatch (len got=%d want=%d)", len(delivered), len(message))
	}
}
