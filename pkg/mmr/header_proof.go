// Copyright 2025 Certen Protocol
//
// ProcessedHeader is the per-header inclusion proof against an MMRMeta:
// the header's RLP bytes, its element index in the MMR, and the sibling
// authentication path up to one of the MMR's peaks. Adapted from the
// teacher's pkg/merkle.Receipt (Start/Anchor/Entries walked with
// SHA256(left||right)) into an MMR authentication path walked with
// keccak256, since the peak it authenticates to is public (MMRMeta.Peaks)
// rather than a single anchor.

package mmr

import (
	"bytes"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
)

// Sibling is one step of a header's authentication path: the sibling
// hash and whether it sits to the right of the running hash.
type Sibling struct {
	Hash  [32]byte
	Right bool
}

// ProcessedHeader is {rlp_bytes, element_index, siblings[]} per spec.md
// section 3. PeakIndex names which entry of the owning MMRMeta.Peaks this
// header's path terminates at.
type ProcessedHeader struct {
	RLPBytes     []byte
	ElementIndex uint64
	Siblings     []Sibling
	PeakIndex    int
}

// LeafHash is the MMR leaf committed for this header: keccak256 of its
// RLP bytes.
func (p ProcessedHeader) LeafHash() [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(p.RLPBytes))
	return out
}

// VerifyAgainst walks Siblings from LeafHash and checks the result equals
// meta.Peaks[PeakIndex]. Fails InvalidMMR on a bad path or an out-of-range
// PeakIndex.
func (p ProcessedHeader) VerifyAgainst(meta MMRMeta) error {
	if p.PeakIndex < 0 || p.PeakIndex >= len(meta.Peaks) {
		return hdperrors.New(hdperrors.InvalidMMR, "peak index out of range")
	}

	current := p.LeafHash()
	for _, s := range p.Siblings {
		if s.Right {
			current = hashPair(current, s.Hash)
		} else {
			current = hashPair(s.Hash, current)
		}
	}

	if !bytes.Equal(current[:], meta.Peaks[p.PeakIndex][:]) {
		return hdperrors.New(hdperrors.InvalidMMR, "header authentication path does not reach its peak")
	}
	return nil
}
