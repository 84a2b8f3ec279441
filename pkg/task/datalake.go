// Copyright 2025 Certen Protocol
//
// Datalake is the envelope over the two sampling shapes spec.md section 3
// defines: BlockSampled (one value per block in a range) and
// TransactionsInBlock (one value per transaction index in a single
// block). Each carries its own ABI-encoded commitment payload, laid out
// exactly as spec.md section 6's table.

package task

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hdp-xyz/preprocessor/pkg/chainid"
	"github.com/hdp-xyz/preprocessor/pkg/codec"
)

// BlockSampledDatalake samples one property per block b in
// [Start, End] with (b-Start) mod Increment == 0. End is inclusive.
type BlockSampledDatalake struct {
	ChainId   chainid.ChainId
	Start     uint64
	End       uint64
	Increment uint64
	Property  SampledProperty
}

// Blocks returns the block set this datalake samples, ascending.
func (d BlockSampledDatalake) Blocks() []uint64 {
	if d.Increment == 0 || d.Start > d.End {
		return nil
	}
	var out []uint64
	for b := d.Start; b <= d.End; b++ {
		if (b-d.Start)%d.Increment == 0 {
			out = append(out, b)
		}
	}
	return out
}

// Encode returns the ABI payload committed for this datalake (spec.md
// section 6, row "BlockSampled datalake").
func (d BlockSampledDatalake) Encode() ([]byte, error) {
	chainNum, err := d.ChainId.Numeric()
	if err != nil {
		return nil, err
	}
	prop, err := d.Property.Encode()
	if err != nil {
		return nil, err
	}
	return codec.EncodeBlockSampledDatalake(chainNum, d.Start, d.End, d.Increment, prop)
}

// Commit returns keccak256(Encode()), the BlockSampled datalake's
// commitment.
func (d BlockSampledDatalake) Commit() ([32]byte, error) {
	payload, err := d.Encode()
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], crypto.Keccak256(payload))
	return out, nil
}

// TransactionsInBlockDatalake samples one property per transaction index i
// in [StartIndex, EndIndex) with (i-StartIndex) mod Increment == 0.
// EndIndex is exclusive — the asymmetry with BlockSampledDatalake.End is
// intentional (spec.md section 9, "preserve the asymmetry exactly").
type TransactionsInBlockDatalake struct {
	ChainId       chainid.ChainId
	Target        uint64
	StartIndex    uint64
	EndIndex      uint64
	Increment     uint64
	IncludedTypes codec.IncludedTypesMask
	Property      SampledProperty
}

// Indices returns the transaction-index set this datalake samples,
// ascending, before the included_types filter is applied.
func (d TransactionsInBlockDatalake) Indices() []uint64 {
	if d.Increment == 0 || d.StartIndex > d.EndIndex {
		return nil
	}
	var out []uint64
	for i := d.StartIndex; i < d.EndIndex; i++ {
		if (i-d.StartIndex)%d.Increment == 0 {
			out = append(out, i)
		}
	}
	return out
}

// Encode returns the ABI payload committed for this datalake (spec.md
// section 6, row "TxInBlock datalake").
func (d TransactionsInBlockDatalake) Encode() ([]byte, error) {
	chainNum, err := d.ChainId.Numeric()
	if err != nil {
		return nil, err
	}
	prop, err := d.Property.Encode()
	if err != nil {
		return nil, err
	}
	return codec.EncodeTransactionsInBlockDatalake(chainNum, d.Target, d.StartIndex, d.EndIndex, d.Increment, d.IncludedTypes, prop)
}

// Commit returns keccak256(Encode()), the TransactionsInBlock datalake's
// commitment.
func (d TransactionsInBlockDatalake) Commit() ([32]byte, error) {
	payload, err := d.Encode()
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], crypto.Keccak256(payload))
	return out, nil
}

// Datalake is the BlockSampled | TransactionsInBlock envelope. Exactly one
// of BlockSampled or TransactionsInBlock must be non-nil.
type Datalake struct {
	BlockSampled        *BlockSampledDatalake
	TransactionsInBlock *TransactionsInBlockDatalake
}

// Encode dispatches to whichever variant is populated.
func (d Datalake) Encode() ([]byte, error) {
	switch {
	case d.BlockSampled != nil && d.TransactionsInBlock == nil:
		return d.BlockSampled.Encode()
	case d.TransactionsInBlock != nil && d.BlockSampled == nil:
		return d.TransactionsInBlock.Encode()
	default:
		return nil, UnknownDatalakeVariant()
	}
}

// Commit dispatches to whichever variant is populated.
func (d Datalake) Commit() ([32]byte, error) {
	switch {
	case d.BlockSampled != nil && d.TransactionsInBlock == nil:
		return d.BlockSampled.Commit()
	case d.TransactionsInBlock != nil && d.BlockSampled == nil:
		return d.TransactionsInBlock.Commit()
	default:
		return [32]byte{}, UnknownDatalakeVariant()
	}
}

// ChainIdOf returns the originating chain of whichever variant is populated.
func (d Datalake) ChainIdOf() (chainid.ChainId, error) {
	switch {
	case d.BlockSampled != nil && d.TransactionsInBlock == nil:
		return d.BlockSampled.ChainId, nil
	case d.TransactionsInBlock != nil && d.BlockSampled == nil:
		return d.TransactionsInBlock.ChainId, nil
	default:
		return "", UnknownDatalakeVariant()
	}
}
