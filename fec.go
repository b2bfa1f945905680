/*
@Description: FEC engine - deterministic group layout, parity algebra, and the recovery solver
*/

package sonicwave

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parityRecord is one entry of a group plan: a group range plus the parity
// type it carries. Order within the slice IS the wire transmission order
// (§4.2) and MUST match bit-for-bit between sender and receiver (I3).
type parityRecord struct {
	start, end int
	kind       string // "0", "1", "2", or "O{i}"
}

func canonicalParityID(start, end int, kind string) string {
	return fmt.Sprintf("%d-%d-%s", start, end, kind)
}

// normalizeParityID folds the shorthand "{start}-{end}" into the canonical
// "{start}-{end}-0" form (§3, invariant I4).
func normalizeParityID(id string) string {
	if strings.Count(id, "-") == 1 {
		return id + "-0"
	}
	return id
}

// parseParityID is the inverse of canonicalParityID, used by the aggressive
// fallback pass which must work from ids alone.
func parseParityID(id string) (start, end int, kind string, ok bool) {
	id = normalizeParityID(id)
	parts := strings.SplitN(id, "-", 3)
	if len(parts) != 3 {
		return 0, 0, "", false
	}
	start, err1 := strconv.Atoi(parts[0])
	end, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, "", false
	}
	return start, end, parts[2], true
}

// computeGroupPlan is the pure function of (total, scheme) required by I3.
func computeGroupPlan(total int, scheme FECScheme) []parityRecord {
	if scheme.GroupSize <= 0 || scheme.ParityCount <= 0 || total <= 0 {
		return nil
	}
	if scheme.Overlap {
		return computeOverlapPlan(total, scheme)
	}
	return computeStandardPlan(total, scheme)
}

func computeStandardPlan(total int, scheme FECScheme) []parityRecord {
	var plan []parityRecord
	for i := 0; i < total; i += scheme.GroupSize {
		start := i + 1
		end := i + scheme.GroupSize
		if end > total {
			end = total
		}
		for p := 0; p < scheme.ParityCount; p++ {
			plan = append(plan, parityRecord{start, end, strconv.Itoa(p)})
		}
	}
	return plan
}

type groupKey struct{ start, end int }

// computeOverlapPlan implements the two-phase overlapping layout of §4.2,
// including the oIndex-always-increments quirk that MUST be reproduced
// byte-for-byte between sender and receiver (P3).
func computeOverlapPlan(total int, scheme FECScheme) []parityRecord {
	var plan []parityRecord
	seen := make(map[groupKey]bool)
	var mainGroups []groupKey

	for start := 1; start <= total; start += 3 {
		end := start + 2
		if end > total {
			end = total
		}
		key := groupKey{start, end}
		seen[key] = true
		mainGroups = append(mainGroups, key)
	}

	for _, g := range mainGroups {
		for p := 0; p < scheme.ParityCount; p++ {
			plan = append(plan, parityRecord{g.start, g.end, strconv.Itoa(p)})
		}
	}

	oIndex := 0
	for i := 2; i+2 <= total; i++ {
		key := groupKey{i, i + 2}
		if !seen[key] {
			plan = append(plan, parityRecord{i, i + 2, fmt.Sprintf("O%d", oIndex)})
		}
		oIndex++
	}

	return plan
}

// groupInfo tracks, for one unique (start,end) range, which canonical
// parity ids carry its primary/secondary/tertiary symbols. For overlap
// groups the "primary" lives under an "O{i}" id rather than literal "0".
type groupInfo struct {
	start, end             int
	primaryID              string
	secondaryID, tertiaryID string
}

// groupInfos replays a scheme's plan into one groupInfo per unique range,
// in first-seen (== transmission) order. Used by both the sender (to know
// what to compute) and the receiver (to know what to look for).
func groupInfos(total int, scheme FECScheme) []groupInfo {
	plan := computeGroupPlan(total, scheme)
	index := make(map[groupKey]int)
	var infos []groupInfo

	for _, rec := range plan {
		key := groupKey{rec.start, rec.end}
		idx, ok := index[key]
		if !ok {
			idx = len(infos)
			index[key] = idx
			infos = append(infos, groupInfo{start: rec.start, end: rec.end})
		}
		switch {
		case rec.kind == "0":
			infos[idx].primaryID = canonicalParityID(rec.start, rec.end, "0")
		case rec.kind == "1":
			infos[idx].secondaryID = canonicalParityID(rec.start, rec.end, "1")
		case rec.kind == "2":
			infos[idx].tertiaryID = canonicalParityID(rec.start, rec.end, "2")
		case strings.HasPrefix(rec.kind, "O"):
			infos[idx].primaryID = canonicalParityID(rec.start, rec.end, rec.kind)
		}
	}
	return infos
}

// ---- parity generation (sender side, all chunks present) ----

// computeParitySymbol computes the parity bytes for one plan record, given
// every chunk of the session. Per I2, chunks are zero-padded to ChunkSize
// before any arithmetic.
func computeParitySymbol(rec parityRecord, chunks map[int][]byte) []byte {
	switch rec.kind {
	case "1":
		return weightedParity(rec.start, rec.end, chunks, 1)
	case "2":
		return weightedParity(rec.start, rec.end, chunks, 2)
	default: // "0" or "O{i}": primary XOR
		return xorParity(rec.start, rec.end, chunks)
	}
}

func xorParity(start, end int, chunks map[int][]byte) []byte {
	acc := make([]byte, ChunkSize)
	for seq := start; seq <= end; seq++ {
		padded := padChunk(chunks[seq])
		for j := range acc {
			acc[j] ^= padded[j]
		}
	}
	return acc
}

// weightedParity implements §4.2's secondary (power=1) and tertiary
// (power=2) schemes: acc[j] ^= (chunk_i[j] * w_i^power) & 0xFF, where
// w_i = i - start + 1 is the 1-based positional weight.
func weightedParity(start, end int, chunks map[int][]byte, power int) []byte {
	acc := make([]byte, ChunkSize)
	for seq := start; seq <= end; seq++ {
		w := seq - start + 1
		weight := w
		if power == 2 {
			weight = w * w
		}
		padded := padChunk(chunks[seq])
		for j := range acc {
			acc[j] ^= byte((int(padded[j]) * weight) & 0xFF)
		}
	}
	return acc
}

// computeAllParity eagerly computes every parity symbol a scheme's plan
// calls for (§4.3 step 5, "eagerly, for retransmit"), keyed by canonical
// parity id. RS_CLEAN groups are batched through one reedsolomon.Encode
// call per group instead of one call per type.
func computeAllParity(total int, scheme FECScheme, chunks map[int][]byte) (map[string][]byte, error) {
	out := make(map[string][]byte)
	if scheme.GroupSize <= 0 || scheme.ParityCount <= 0 {
		return out, nil
	}

	if scheme.rsClean {
		enc := newRSCleanEncoder()
		for _, gi := range groupInfos(total, scheme) {
			shards, err := enc.rsCleanParitySymbols(gi.start, gi.end, scheme.ParityCount, chunks)
			if err != nil {
				return nil, err
			}
			for p, sym := range shards {
				out[canonicalParityID(gi.start, gi.end, itoa(p))] = sym
			}
		}
		return out, nil
	}

	for _, rec := range computeGroupPlan(total, scheme) {
		id := canonicalParityID(rec.start, rec.end, rec.kind)
		if _, ok := out[id]; ok {
			continue
		}
		out[id] = computeParitySymbol(rec, chunks)
	}
	return out, nil
}

// ---- recovery (receiver side, partial chunks) ----

func missingSeqs(start, end int, chunks map[int][]byte) []int {
	var missing []int
	for seq := start; seq <= end; seq++ {
		if _, ok := chunks[seq]; !ok {
			missing = append(missing, seq)
		}
	}
	return missing
}

// recoverGroup attempts to fill in every missing chunk of one group using
// whatever parity is available, per the policy table of §4.2. It returns
// newly recovered chunks (trailing zero bytes already stripped, I2/I5-
// adjacent cleanup) or nil if recovery isn't yet possible.
func recoverGroup(scheme FECScheme, gi groupInfo, chunks map[int][]byte, parity map[string][]byte) map[int][]byte {
	missing := missingSeqs(gi.start, gi.end, chunks)
	if len(missing) == 0 || len(missing) > 3 {
		return nil
	}
	if scheme.rsClean {
		return rsCleanRecoverGroup(scheme, gi, chunks, parity, missing)
	}

	primary, hasPrimary := parity[gi.primaryID]
	if !hasPrimary {
		return nil
	}

	switch len(missing) {
	case 1:
		return map[int][]byte{missing[0]: stripTrailingZeros(recoverOne(gi.start, gi.end, missing[0], chunks, primary))}
	case 2:
		if gi.secondaryID == "" {
			return nil
		}
		secondary, ok := parity[gi.secondaryID]
		if !ok {
			return nil
		}
		a, b := recoverTwo(gi.start, gi.end, missing, chunks, primary, secondary)
		return map[int][]byte{missing[0]: stripTrailingZeros(a), missing[1]: stripTrailingZeros(b)}
	case 3:
		if gi.secondaryID == "" || gi.tertiaryID == "" {
			return nil
		}
		secondary, ok1 := parity[gi.secondaryID]
		tertiary, ok2 := parity[gi.tertiaryID]
		if !ok1 || !ok2 {
			return nil
		}
		a, b, c := recoverThree(gi.start, gi.end, missing, chunks, primary, secondary, tertiary)
		return map[int][]byte{
			missing[0]: stripTrailingZeros(a),
			missing[1]: stripTrailingZeros(b),
			missing[2]: stripTrailingZeros(c),
		}
	default:
		return nil
	}
}

// recoverOne is the exact-field case: XOR is invertible, so the missing
// chunk equals the primary XORed with every present (padded) chunk.
func recoverOne(start, end, missingSeq int, chunks map[int][]byte, primary []byte) []byte {
	out := make([]byte, ChunkSize)
	copy(out, primary)
	for seq := start; seq <= end; seq++ {
		if seq == missingSeq {
			continue
		}
		padded := padChunk(chunks[seq])
		for j := range out {
			out[j] ^= padded[j]
		}
	}
	return out
}

// knownXORAdjust removes the contribution of every present chunk from a
// parity value via XOR (self-inverse), leaving only the unknown chunks'
// combined contribution for that parity equation.
func knownXORAdjust(start, end int, chunks map[int][]byte, parityVal []byte, weight func(seq int) int) []byte {
	out := make([]byte, ChunkSize)
	copy(out, parityVal)
	for seq := start; seq <= end; seq++ {
		chunk, ok := chunks[seq]
		if !ok {
			continue
		}
		padded := padChunk(chunk)
		w := weight(seq)
		for j := range out {
			out[j] ^= byte((int(padded[j]) * w) & 0xFF)
		}
	}
	return out
}

// recoverTwo solves the 2x2 system described in §4.2: equation 1 is the
// (adjusted) primary XOR value treated as a real-number sum of the two
// unknown bytes; equation 2 is the adjusted secondary value treated as a
// real-number weighted sum. This is deliberately not a GF(256) operation;
// see DESIGN.md for the literal recipe this implementation commits to.
func recoverTwo(start, end int, missing []int, chunks map[int][]byte, primary, secondary []byte) ([]byte, []byte) {
	a, b := missing[0], missing[1]
	wa := float64(a - start + 1)
	wb := float64(b - start + 1)

	adj1 := adjustPrimaryFor(start, end, chunks, primary)
	adj2 := adjustSecondaryFor(start, end, chunks, secondary, 1)

	outA := make([]byte, ChunkSize)
	outB := make([]byte, ChunkSize)
	det := wb - wa
	for j := 0; j < ChunkSize; j++ {
		s1j := float64(adj1[j])
		s2j := float64(adj2[j])
		xa := (s1j*wb - s2j) / det
		xb := (s2j - s1j*wa) / det
		outA[j] = roundToByte(xa)
		outB[j] = roundToByte(xb)
	}
	return outA, outB
}

// recoverThree solves the analogous 3x3 Vandermonde-shaped system using
// primary/secondary/tertiary, falling back to the raw per-byte parity
// values (primary, secondary, tertiary as received) when the system is
// (numerically) singular.
func recoverThree(start, end int, missing []int, chunks map[int][]byte, primary, secondary, tertiary []byte) ([]byte, []byte, []byte) {
	a, b, c := missing[0], missing[1], missing[2]
	wa := float64(a - start + 1)
	wb := float64(b - start + 1)
	wc := float64(c - start + 1)

	adj1 := adjustPrimaryFor(start, end, chunks, primary)
	adj2 := adjustSecondaryFor(start, end, chunks, secondary, 1)
	adj3 := adjustSecondaryFor(start, end, chunks, tertiary, 2)

	outA := make([]byte, ChunkSize)
	outB := make([]byte, ChunkSize)
	outC := make([]byte, ChunkSize)

	m := [3][3]float64{
		{1, 1, 1},
		{wa, wb, wc},
		{wa * wa, wb * wb, wc * wc},
	}

	for j := 0; j < ChunkSize; j++ {
		rhs := [3]float64{float64(adj1[j]), float64(adj2[j]), float64(adj3[j])}
		x, ok := solveLinear3(m, rhs)
		if !ok {
			outA[j] = primary[j]
			outB[j] = secondary[j]
			outC[j] = tertiary[j]
			continue
		}
		outA[j] = roundToByte(x[0])
		outB[j] = roundToByte(x[1])
		outC[j] = roundToByte(x[2])
	}
	return outA, outB, outC
}

// solveLinear3 solves Ax=b via Gaussian elimination with partial pivoting.
// ok is false when A is numerically singular, in which case the §4.2
// fallback (raw per-byte parity values) applies.
func solveLinear3(a [3][3]float64, b [3]float64) (x [3]float64, ok bool) {
	const eps = 1e-9
	// Augmented matrix, worked on in-place.
	var m [3][4]float64
	for i := 0; i < 3; i++ {
		m[i][0], m[i][1], m[i][2], m[i][3] = a[i][0], a[i][1], a[i][2], b[i]
	}

	for col := 0; col < 3; col++ {
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < eps {
			return x, false
		}
		m[col], m[pivot] = m[pivot], m[col]

		for row := 0; row < 3; row++ {
			if row == col {
				continue
			}
			factor := m[row][col] / m[col][col]
			for k := col; k < 4; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}

	for i := 0; i < 3; i++ {
		x[i] = m[i][3] / m[i][i]
	}
	return x, true
}

func roundToByte(v float64) byte {
	r := int64(math.Round(v))
	r %= 256
	if r < 0 {
		r += 256
	}
	return byte(r)
}

// adjustPrimaryFor removes the XOR contribution of every known chunk in
// the group from the primary parity value, leaving only the missing
// chunks' (unknown) combined contribution.
func adjustPrimaryFor(start, end int, chunks map[int][]byte, primary []byte) []byte {
	return knownXORAdjust(start, end, chunks, primary, func(int) int { return 1 })
}

// adjustSecondaryFor is adjustPrimaryFor's analogue for the weighted
// secondary/tertiary parities (power 1 or 2).
func adjustSecondaryFor(start, end int, chunks map[int][]byte, parityVal []byte, power int) []byte {
	return knownXORAdjust(start, end, chunks, parityVal, func(seq int) int {
		w := seq - start + 1
		if power == 2 {
			return w * w
		}
		return w
	})
}

// aggressiveRecover is the §4.2 fallback: scan every parity id actually
// held (regardless of the declared scheme's plan) and try a primary-only
// XOR recovery wherever exactly one chunk in that range is missing.
func aggressiveRecover(chunks map[int][]byte, parity map[string][]byte) map[int][]byte {
	recovered := make(map[int][]byte)
	for id, sym := range parity {
		start, end, kind, ok := parseParityID(id)
		if !ok {
			continue
		}
		if kind != "0" && !strings.HasPrefix(kind, "O") {
			continue
		}
		if start < 1 || end < start {
			continue
		}
		missing := missingSeqs(start, end, chunks)
		if len(missing) != 1 {
			continue
		}
		seq := missing[0]
		if _, already := recovered[seq]; already {
			continue
		}
		recovered[seq] = stripTrailingZeros(recoverOne(start, end, seq, chunks, sym))
	}
	return recovered
}
