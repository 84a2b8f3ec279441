// Copyright 2025 Certen Protocol
//
// Solidity ABI encoding of the task commitment payloads from spec.md
// section 6, built on go-ethereum's accounts/abi package the same way
// pkg/ethereum's contract-call helpers in the teacher repo pack method
// arguments.

package codec

import (
	"math/big"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
)

func mustType(t string) gethabi.Type {
	typ, err := gethabi.NewType(t, "", nil)
	if err != nil {
		panic("codec: bad abi type " + t + ": " + err.Error())
	}
	return typ
}

var (
	typUint256   = mustType("uint256")
	typUint8     = mustType("uint8")
	typUint32    = mustType("uint32")
	typBytes     = mustType("bytes")
	typBytes32   = mustType("bytes32")
	typBytes32Sl = mustType("bytes32[]")
)

func args(types ...gethabi.Type) gethabi.Arguments {
	out := make(gethabi.Arguments, len(types))
	for i, t := range types {
		out[i] = gethabi.Argument{Type: t}
	}
	return out
}

// EncodeBlockSampledDatalake encodes a BlockSampled datalake payload:
// abi(uint256 type=0, uint256 chain_id, uint256 start, uint256 end,
// uint256 increment, bytes sampled_property).
func EncodeBlockSampledDatalake(chainID uint64, start, end, increment uint64, sampledProperty []byte) ([]byte, error) {
	a := args(typUint256, typUint256, typUint256, typUint256, typUint256, typBytes)
	packed, err := a.Pack(
		big.NewInt(0),
		new(big.Int).SetUint64(chainID),
		new(big.Int).SetUint64(start),
		new(big.Int).SetUint64(end),
		new(big.Int).SetUint64(increment),
		sampledProperty,
	)
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "block-sampled datalake", err)
	}
	return packed, nil
}

// EncodeTransactionsInBlockDatalake encodes a TransactionsInBlock
// datalake payload: abi(uint256 type=1, uint256 chain_id, uint256 target,
// uint256 start_idx, uint256 end_idx, uint256 increment, uint256
// included_types, bytes sampled_property).
func EncodeTransactionsInBlockDatalake(chainID, target, startIdx, endIdx, increment uint64, includedTypes IncludedTypesMask, sampledProperty []byte) ([]byte, error) {
	a := args(typUint256, typUint256, typUint256, typUint256, typUint256, typUint256, typUint256, typBytes)
	packed, err := a.Pack(
		big.NewInt(1),
		new(big.Int).SetUint64(chainID),
		new(big.Int).SetUint64(target),
		new(big.Int).SetUint64(startIdx),
		new(big.Int).SetUint64(endIdx),
		new(big.Int).SetUint64(increment),
		new(big.Int).SetUint64(uint64(includedTypes)),
		sampledProperty,
	)
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "tx-in-block datalake", err)
	}
	return packed, nil
}

// EncodeDatalakeCompute encodes a DatalakeCompute task payload:
// abi(bytes32 datalake_commit, uint8 agg_fn, uint8 operator, uint32
// value_to_compare).
func EncodeDatalakeCompute(datalakeCommit [32]byte, aggFn, operator uint8, valueToCompare uint32) ([]byte, error) {
	a := args(typBytes32, typUint8, typUint8, typUint32)
	packed, err := a.Pack(datalakeCommit, aggFn, operator, valueToCompare)
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "datalake-compute task", err)
	}
	return packed, nil
}

// EncodeModuleTask encodes a Module task payload: abi(bytes32
// program_hash, uint256 offset=64, uint256 inputs_len, bytes32[]
// public_inputs).
func EncodeModuleTask(programHash [32]byte, publicInputs [][32]byte) ([]byte, error) {
	a := args(typBytes32, typUint256, typUint256, typBytes32Sl)
	packed, err := a.Pack(
		programHash,
		big.NewInt(64),
		new(big.Int).SetUint64(uint64(len(publicInputs))),
		publicInputs,
	)
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "module task", err)
	}
	return packed, nil
}

// EncodeSampledPropertyHeader encodes a Header(field) sampled property as
// abi(uint256 property_type=0, uint256 field).
func EncodeSampledPropertyHeader(field DatalakeField) ([]byte, error) {
	a := args(typUint256, typUint256)
	packed, err := a.Pack(big.NewInt(0), new(big.Int).SetInt64(int64(field)))
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "sampled property (header)", err)
	}
	return packed, nil
}

// EncodeSampledPropertyAccount encodes an Account(addr, field) sampled
// property as abi(uint256 property_type=1, address addr, uint256 field).
func EncodeSampledPropertyAccount(addr [20]byte, field DatalakeField) ([]byte, error) {
	typAddress := mustType("address")
	a := args(typUint256, typAddress, typUint256)
	packed, err := a.Pack(big.NewInt(1), common.Address(addr), new(big.Int).SetInt64(int64(field)))
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "sampled property (account)", err)
	}
	return packed, nil
}

// EncodeSampledPropertyStorage encodes a Storage(addr, slot) sampled
// property as abi(uint256 property_type=2, address addr, bytes32 slot).
func EncodeSampledPropertyStorage(addr [20]byte, slot [32]byte) ([]byte, error) {
	typAddress := mustType("address")
	a := args(typUint256, typAddress, typBytes32)
	packed, err := a.Pack(big.NewInt(2), common.Address(addr), slot)
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "sampled property (storage)", err)
	}
	return packed, nil
}
