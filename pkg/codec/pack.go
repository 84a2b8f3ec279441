// Copyright 2025 Certen Protocol
//
// Field-element packing: converts an arbitrary byte string into a
// sequence of 63-bit limbs (each stored in a uint64, high bit always
// zero) interpreted as field elements below 2^63, preserving the
// original byte length so the prover can reconstruct the exact original
// bytes. Required because the prover operates over a prime field (see
// gnark-crypto's stark-curve scalar field) and cannot ingest raw bytes
// directly. Limbs are cut from a continuous little-endian bitstream
// rather than from byte-aligned chunks, so they may straddle byte
// boundaries — the standard Cairo felt-packing scheme.

package codec

import (
	"fmt"
)

// maxFelt63 is the largest value a packed chunk may take, plus one: 2^63.
// Every limb Pack produces carries at most 63 bits and is therefore
// always strictly below this bound; the check in Unpack guards against
// a tampered or hand-built Felts rather than anything Pack itself emits.
const maxFelt63 = uint64(1) << 63

// bitsPerLimb is the width of one packed field element. 63, not 64, so
// every limb is provably below 2^63 (spec.md section 4.1's field-element
// bound) by construction rather than by masking off the top bit after
// the fact.
const bitsPerLimb = 63

// Felts is the result of packing a byte string: the field elements plus
// the original byte length, so unpacking is lossless even when the last
// limb's high bits are past the end of the input.
type Felts struct {
	Elements []uint64
	ByteLen  int
}

// Pack splits b into a little-endian bitstream and cuts it into
// bitsPerLimb-bit limbs, each returned as a uint64 field element.
// len(Elements) == ceil(len(b)*8/63).
func Pack(b []byte) Felts {
	totalBits := len(b) * 8
	numLimbs := (totalBits + bitsPerLimb - 1) / bitsPerLimb
	elements := make([]uint64, numLimbs)

	for limb := 0; limb < numLimbs; limb++ {
		startBit := limb * bitsPerLimb
		var v uint64
		for i := 0; i < bitsPerLimb; i++ {
			bitIdx := startBit + i
			if bitIdx >= totalBits {
				break
			}
			byteVal := b[bitIdx/8]
			bit := (byteVal >> uint(bitIdx%8)) & 1
			v |= uint64(bit) << uint(i)
		}
		elements[limb] = v
	}

	return Felts{Elements: elements, ByteLen: len(b)}
}

// Unpack reverses Pack, returning exactly ByteLen original bytes.
func Unpack(f Felts) ([]byte, error) {
	for i, e := range f.Elements {
		if e >= maxFelt63 {
			return nil, fmt.Errorf("codec: packed element %d out of range: %d >= 2^63", i, e)
		}
	}

	if f.ByteLen < 0 || f.ByteLen*8 > len(f.Elements)*bitsPerLimb {
		return nil, fmt.Errorf("codec: invalid byte_len %d for %d packed elements", f.ByteLen, len(f.Elements))
	}

	totalBits := f.ByteLen * 8
	out := make([]byte, f.ByteLen)
	bitPos := 0
	for _, e := range f.Elements {
		for i := 0; i < bitsPerLimb && bitPos < totalBits; i++ {
			bit := (e >> uint(i)) & 1
			out[bitPos/8] |= byte(bit) << uint(bitPos%8)
			bitPos++
		}
	}

	return out, nil
}
