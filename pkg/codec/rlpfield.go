// Copyright 2025 Certen Protocol
//
// RLP decoding of headers, accounts and transactions, addressed by a
// stable DatalakeField index so decode_field_from_rlp is total over the
// fields a BlockSampled or TransactionsInBlock datalake can sample.

package codec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
)

// DatalakeField identifies one decodable field of a header, account or
// transaction/receipt. The numeric values are part of the wire format
// (they appear inside sampled_property's ABI-encoded bytes), so existing
// values must never be renumbered.
type DatalakeField int

const (
	// Header fields.
	FieldHeaderParentHash DatalakeField = iota
	FieldHeaderUncleHash
	FieldHeaderCoinbase
	FieldHeaderStateRoot
	FieldHeaderTransactionsRoot
	FieldHeaderReceiptsRoot
	FieldHeaderLogsBloom
	FieldHeaderDifficulty
	FieldHeaderNumber
	FieldHeaderGasLimit
	FieldHeaderGasUsed
	FieldHeaderTimestamp
	FieldHeaderExtraData
	FieldHeaderMixHash
	FieldHeaderNonce
	FieldHeaderBaseFeePerGas
	FieldHeaderWithdrawalsRoot
	FieldHeaderBlobGasUsed
	FieldHeaderExcessBlobGas
	FieldHeaderParentBeaconBlockRoot

	// Account fields.
	FieldAccountNonce
	FieldAccountBalance
	FieldAccountStorageRoot
	FieldAccountCodeHash

	// Transaction fields.
	FieldTxNonce
	FieldTxGasPrice
	FieldTxGasLimit
	FieldTxTo
	FieldTxValue
	FieldTxInput
	FieldTxV
	FieldTxR
	FieldTxS
	FieldTxChainID
	FieldTxType

	// Receipt fields.
	FieldReceiptSuccess
	FieldReceiptCumulativeGasUsed
	FieldReceiptLogsBloom
	FieldReceiptType
)

// rlpAccount mirrors go-ethereum's internal state-trie account layout:
// {nonce, balance, storage_root, code_hash}.
type rlpAccount struct {
	Nonce    uint64
	Balance  *big.Int
	Root     common.Hash
	CodeHash []byte
}

// DecodeAccountField decodes one FieldAccount* field from an RLP-encoded
// account leaf.
func DecodeAccountField(field DatalakeField, raw []byte) (*uint256.Int, error) {
	var acc rlpAccount
	if err := rlp.DecodeBytes(raw, &acc); err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "account", err)
	}

	switch field {
	case FieldAccountNonce:
		return uint256.NewInt(acc.Nonce), nil
	case FieldAccountBalance:
		v, overflow := uint256.FromBig(acc.Balance)
		if overflow {
			return nil, hdperrors.New(hdperrors.FieldOutOfRange, "account balance exceeds u256")
		}
		return v, nil
	case FieldAccountStorageRoot:
		return uint256.NewInt(0).SetBytes(acc.Root.Bytes()), nil
	case FieldAccountCodeHash:
		return uint256.NewInt(0).SetBytes(acc.CodeHash), nil
	default:
		return nil, hdperrors.New(hdperrors.UnknownVariant, fmt.Sprintf("field %d is not an account field", field))
	}
}

// DecodeHeaderField decodes one FieldHeader* field from an RLP-encoded
// block header, using go-ethereum's types.Header for the shape.
func DecodeHeaderField(field DatalakeField, raw []byte) (*uint256.Int, error) {
	var h types.Header
	if err := rlp.DecodeBytes(raw, &h); err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "header", err)
	}

	u := func(b []byte) *uint256.Int { return uint256.NewInt(0).SetBytes(b) }

	switch field {
	case FieldHeaderParentHash:
		return u(h.ParentHash.Bytes()), nil
	case FieldHeaderUncleHash:
		return u(h.UncleHash.Bytes()), nil
	case FieldHeaderCoinbase:
		return u(h.Coinbase.Bytes()), nil
	case FieldHeaderStateRoot:
		return u(h.Root.Bytes()), nil
	case FieldHeaderTransactionsRoot:
		return u(h.TxHash.Bytes()), nil
	case FieldHeaderReceiptsRoot:
		return u(h.ReceiptHash.Bytes()), nil
	case FieldHeaderLogsBloom:
		return u(h.Bloom.Bytes()), nil
	case FieldHeaderDifficulty:
		if h.Difficulty == nil {
			return uint256.NewInt(0), nil
		}
		v, overflow := uint256.FromBig(h.Difficulty)
		if overflow {
			return nil, hdperrors.New(hdperrors.FieldOutOfRange, "difficulty exceeds u256")
		}
		return v, nil
	case FieldHeaderNumber:
		if h.Number == nil {
			return uint256.NewInt(0), nil
		}
		v, overflow := uint256.FromBig(h.Number)
		if overflow {
			return nil, hdperrors.New(hdperrors.FieldOutOfRange, "number exceeds u256")
		}
		return v, nil
	case FieldHeaderGasLimit:
		return uint256.NewInt(h.GasLimit), nil
	case FieldHeaderGasUsed:
		return uint256.NewInt(h.GasUsed), nil
	case FieldHeaderTimestamp:
		return uint256.NewInt(h.Time), nil
	case FieldHeaderExtraData:
		return u(h.Extra), nil
	case FieldHeaderMixHash:
		return u(h.MixDigest.Bytes()), nil
	case FieldHeaderNonce:
		return uint256.NewInt(h.Nonce.Uint64()), nil
	case FieldHeaderBaseFeePerGas:
		if h.BaseFee == nil {
			return uint256.NewInt(0), nil
		}
		v, overflow := uint256.FromBig(h.BaseFee)
		if overflow {
			return nil, hdperrors.New(hdperrors.FieldOutOfRange, "base fee exceeds u256")
		}
		return v, nil
	case FieldHeaderWithdrawalsRoot:
		if h.WithdrawalsHash == nil {
			return uint256.NewInt(0), nil
		}
		return u(h.WithdrawalsHash.Bytes()), nil
	case FieldHeaderBlobGasUsed:
		if h.BlobGasUsed == nil {
			return uint256.NewInt(0), nil
		}
		return uint256.NewInt(*h.BlobGasUsed), nil
	case FieldHeaderExcessBlobGas:
		if h.ExcessBlobGas == nil {
			return uint256.NewInt(0), nil
		}
		return uint256.NewInt(*h.ExcessBlobGas), nil
	case FieldHeaderParentBeaconBlockRoot:
		if h.ParentBeaconRoot == nil {
			return uint256.NewInt(0), nil
		}
		return u(h.ParentBeaconRoot.Bytes()), nil
	default:
		return nil, hdperrors.New(hdperrors.UnknownVariant, fmt.Sprintf("field %d is not a header field", field))
	}
}

// DecodeTransactionField decodes one FieldTx* field from a go-ethereum
// *types.Transaction.
func DecodeTransactionField(field DatalakeField, tx *types.Transaction) (*uint256.Int, error) {
	u := func(b []byte) *uint256.Int { return uint256.NewInt(0).SetBytes(b) }

	switch field {
	case FieldTxNonce:
		return uint256.NewInt(tx.Nonce()), nil
	case FieldTxGasPrice:
		v, overflow := uint256.FromBig(tx.GasPrice())
		if overflow {
			return nil, hdperrors.New(hdperrors.FieldOutOfRange, "gas price exceeds u256")
		}
		return v, nil
	case FieldTxGasLimit:
		return uint256.NewInt(tx.Gas()), nil
	case FieldTxTo:
		if tx.To() == nil {
			return uint256.NewInt(0), nil
		}
		return u(tx.To().Bytes()), nil
	case FieldTxValue:
		v, overflow := uint256.FromBig(tx.Value())
		if overflow {
			return nil, hdperrors.New(hdperrors.FieldOutOfRange, "value exceeds u256")
		}
		return v, nil
	case FieldTxInput:
		return u(tx.Data()), nil
	case FieldTxV:
		v, _, _ := tx.RawSignatureValues()
		return uint256.NewInt(0).SetBytes(v.Bytes()), nil
	case FieldTxR:
		_, r, _ := tx.RawSignatureValues()
		return uint256.NewInt(0).SetBytes(r.Bytes()), nil
	case FieldTxS:
		_, _, s := tx.RawSignatureValues()
		return uint256.NewInt(0).SetBytes(s.Bytes()), nil
	case FieldTxChainID:
		if tx.ChainId() == nil {
			return uint256.NewInt(0), nil
		}
		v, overflow := uint256.FromBig(tx.ChainId())
		if overflow {
			return nil, hdperrors.New(hdperrors.FieldOutOfRange, "chain id exceeds u256")
		}
		return v, nil
	case FieldTxType:
		return uint256.NewInt(uint64(tx.Type())), nil
	default:
		return nil, hdperrors.New(hdperrors.UnknownVariant, fmt.Sprintf("field %d is not a transaction field", field))
	}
}

// DecodeReceiptField decodes one FieldReceipt* field from a go-ethereum
// *types.Receipt.
func DecodeReceiptField(field DatalakeField, r *types.Receipt) (*uint256.Int, error) {
	switch field {
	case FieldReceiptSuccess:
		return uint256.NewInt(r.Status), nil
	case FieldReceiptCumulativeGasUsed:
		return uint256.NewInt(r.CumulativeGasUsed), nil
	case FieldReceiptLogsBloom:
		return uint256.NewInt(0).SetBytes(r.Bloom.Bytes()), nil
	case FieldReceiptType:
		return uint256.NewInt(uint64(r.Type)), nil
	default:
		return nil, hdperrors.New(hdperrors.UnknownVariant, fmt.Sprintf("field %d is not a receipt field", field))
	}
}

// IncludedTypesMask is the 4-bit mask over {legacy, eip2930, eip1559,
// eip4844} from a TransactionsInBlock datalake's included_types.
type IncludedTypesMask uint8

const (
	MaskLegacy  IncludedTypesMask = 1 << 0
	MaskEIP2930 IncludedTypesMask = 1 << 1
	MaskEIP1559 IncludedTypesMask = 1 << 2
	MaskEIP4844 IncludedTypesMask = 1 << 3
)

// Allows reports whether txType (go-ethereum's types.LegacyTxType etc.)
// passes this mask.
func (m IncludedTypesMask) Allows(txType uint8) bool {
	switch txType {
	case types.LegacyTxType:
		return m&MaskLegacy != 0
	case types.AccessListTxType:
		return m&MaskEIP2930 != 0
	case types.DynamicFeeTxType:
		return m&MaskEIP1559 != 0
	case types.BlobTxType:
		return m&MaskEIP4844 != 0
	default:
		return false
	}
}
