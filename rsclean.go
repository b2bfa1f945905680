/*
@Description: RS_CLEAN - an optional Reed-Solomon backed FEC scheme (open variant, §4.6)
*/

package sonicwave

import (
	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// rsCleanEncoder memoises one reedsolomon.Encoder per (dataShards,
// parityShards) pair seen during a session; group sizes only change at the
// tail group, so in practice there are at most two distinct shapes.
type rsCleanEncoder struct {
	cache map[[2]int]reedsolomon.Encoder
}

func newRSCleanEncoder() *rsCleanEncoder {
	return &rsCleanEncoder{cache: make(map[[2]int]reedsolomon.Encoder)}
}

func (e *rsCleanEncoder) codec(dataShards, parityShards int) (reedsolomon.Encoder, error) {
	key := [2]int{dataShards, parityShards}
	if enc, ok := e.cache[key]; ok {
		return enc, nil
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, errors.Wrap(err, "sonicwave: reedsolomon.New")
	}
	e.cache[key] = enc
	return enc, nil
}

// rsCleanParitySymbols computes every parity shard for one RS_CLEAN group in
// one call (the reedsolomon API produces all parity shards together, unlike
// the XOR schemes' independent per-type computation).
func (e *rsCleanEncoder) rsCleanParitySymbols(start, end int, parityCount int, chunks map[int][]byte) ([][]byte, error) {
	dataShards := end - start + 1
	codec, err := e.codec(dataShards, parityCount)
	if err != nil {
		return nil, err
	}
	shards := make([][]byte, dataShards+parityCount)
	for i := 0; i < dataShards; i++ {
		shards[i] = padChunk(chunks[start+i])
	}
	for i := dataShards; i < len(shards); i++ {
		shards[i] = make([]byte, ChunkSize)
	}
	if err := codec.Encode(shards); err != nil {
		return nil, errors.Wrap(err, "sonicwave: reedsolomon encode")
	}
	return shards[dataShards:], nil
}

// rsCleanRecoverGroup reconstructs missing chunks of an RS_CLEAN group using
// whatever data/parity shards the receiver currently holds.
func rsCleanRecoverGroup(scheme FECScheme, gi groupInfo, chunks map[int][]byte, parity map[string][]byte, missing []int) map[int][]byte {
	dataShards := gi.end - gi.start + 1
	parityCount := scheme.ParityCount

	have := 0
	for p := 0; p < parityCount; p++ {
		if _, ok := parity[canonicalParityID(gi.start, gi.end, itoa(p))]; ok {
			have++
		}
	}
	if len(missing) > have {
		return nil
	}

	codec, err := reedsolomon.New(dataShards, parityCount)
	if err != nil {
		return nil
	}

	shards := make([][]byte, dataShards+parityCount)
	present := make([]bool, len(shards))
	for i := 0; i < dataShards; i++ {
		if c, ok := chunks[gi.start+i]; ok {
			shards[i] = padChunk(c)
			present[i] = true
		}
	}
	for p := 0; p < parityCount; p++ {
		if sym, ok := parity[canonicalParityID(gi.start, gi.end, itoa(p))]; ok {
			shards[dataShards+p] = sym
			present[dataShards+p] = true
		}
	}

	if err := codec.ReconstructData(shards); err != nil {
		return nil
	}

	out := make(map[int][]byte)
	for i := 0; i < dataShards; i++ {
		if !present[i] {
			out[gi.start+i] = stripTrailingZeros(shards[i])
		}
	}
	return out
}

func itoa(n int) string {
	// small, allocation-free helper for the 0..2 parity-type range used here.
	return string(rune('0' + n))
}
