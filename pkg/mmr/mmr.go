// Copyright 2025 Certen Protocol
//
// MMRMeta identifies one accumulator snapshot (the Merkle Mountain Range
// of block headers for a chain at a point in time); MMRWithHeader pairs a
// snapshot with the set of headers proven against it. Grounded on the
// teacher's pkg/merkle receipt/tree pair, generalized from a single SHA256
// binary tree to the peak-bagged MMR shape spec.md section 3 describes,
// and switched to keccak256 since these roots are later checked on-chain.

package mmr

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hdp-xyz/preprocessor/pkg/chainid"
	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
)

// MMRMeta identifies a specific accumulator snapshot. Two MMRMetas are
// equal iff all fields are equal (spec.md section 3).
type MMRMeta struct {
	ID      string
	Root    [32]byte
	Size    uint64
	Peaks   [][32]byte
	ChainId chainid.ChainId
}

// Equal reports whether m and other name the same accumulator snapshot.
func (m MMRMeta) Equal(other MMRMeta) bool {
	if m.ID != other.ID || m.Root != other.Root || m.Size != other.Size || m.ChainId != other.ChainId {
		return false
	}
	if len(m.Peaks) != len(other.Peaks) {
		return false
	}
	for i := range m.Peaks {
		if m.Peaks[i] != other.Peaks[i] {
			return false
		}
	}
	return true
}

// BagPeaks folds a left-to-right ordered peak list into a single root by
// repeated keccak256(acc || peak), the lowest peak first. This is the
// convention this pre-processor uses consistently between indexer
// responses and proof verification; nothing downstream depends on it
// matching any other implementation's bagging order as long as it is
// applied identically everywhere a root is derived from peaks.
func BagPeaks(peaks [][32]byte) [32]byte {
	if len(peaks) == 0 {
		return [32]byte{}
	}
	acc := peaks[0]
	for _, p := range peaks[1:] {
		acc = hashPair(acc, p)
	}
	return acc
}

func hashPair(left, right [32]byte) [32]byte {
	var out [32]byte
	h := crypto.Keccak256(left[:], right[:])
	copy(out[:], h)
	return out
}

// VerifyMeta checks that m.Root is consistent with m.Peaks under BagPeaks.
// MMRWithHeader.VerifyAll calls it; the indexer client does not.
func (m MMRMeta) VerifyMeta() error {
	if len(m.Peaks) == 0 {
		return hdperrors.New(hdperrors.InvalidMMR, "mmr meta has no peaks")
	}
	if BagPeaks(m.Peaks) != m.Root {
		return hdperrors.New(hdperrors.InvalidMMR, fmt.Sprintf("mmr %s: root does not match bagged peaks", m.ID))
	}
	return nil
}

// MMRWithHeader pairs one MMRMeta with the ProcessedHeaders proven against
// it. Invariant: every header in Headers has an inclusion proof valid
// under Meta (spec.md section 3) — enforced by VerifyAll, not by
// construction, since headers normally arrive from an untrusted indexer.
type MMRWithHeader struct {
	Meta    MMRMeta
	Headers []ProcessedHeader
}

// VerifyAll checks MMRWithHeader's invariant: Meta is internally
// consistent and every header in Headers verifies against it.
func (mh MMRWithHeader) VerifyAll() error {
	if err := mh.Meta.VerifyMeta(); err != nil {
		return err
	}
	for i, h := range mh.Headers {
		if err := h.VerifyAgainst(mh.Meta); err != nil {
			return fmt.Errorf("header[%d] (element_index=%d): %w", i, h.ElementIndex, err)
		}
	}
	return nil
}
