// Copyright 2025 Certen Protocol
//
// FetchKey is the minimal identifier of one datum to retrieve, used both
// by the datalake compiler (C4) and by the module dry-run's discovered
// dependency set (C6). Every key hashes to a 32-byte identifier; the
// module dry-run's determinism check (see SPEC_FULL.md's "dry-run
// determinism" note) deduplicates key sets by it before comparing them.
// Fetch requests themselves are not deduplicated by this hash.

package task

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hdp-xyz/preprocessor/pkg/chainid"
	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
)

// FetchKeyKind discriminates which fields of FetchKey are populated. The
// numeric values are part of FetchKey's stable serialization and must
// never be renumbered.
type FetchKeyKind uint8

const (
	FetchHeader FetchKeyKind = iota
	FetchAccount
	FetchStorage
	FetchTx
	FetchTxReceipt
)

// FetchKey is the tagged union {Header, Account, Storage, Tx, TxReceipt}
// from spec.md section 3. Only the fields relevant to Kind are populated.
type FetchKey struct {
	Kind    FetchKeyKind
	ChainId chainid.ChainId
	Block   uint64
	Addr    [20]byte // Account, Storage
	Slot    [32]byte // Storage
	TxIndex uint64   // Tx, TxReceipt
}

func HeaderKey(chain chainid.ChainId, block uint64) FetchKey {
	return FetchKey{Kind: FetchHeader, ChainId: chain, Block: block}
}

func AccountKey(chain chainid.ChainId, block uint64, addr [20]byte) FetchKey {
	return FetchKey{Kind: FetchAccount, ChainId: chain, Block: block, Addr: addr}
}

func StorageKey(chain chainid.ChainId, block uint64, addr [20]byte, slot [32]byte) FetchKey {
	return FetchKey{Kind: FetchStorage, ChainId: chain, Block: block, Addr: addr, Slot: slot}
}

func TxKey(chain chainid.ChainId, block uint64, txIndex uint64) FetchKey {
	return FetchKey{Kind: FetchTx, ChainId: chain, Block: block, TxIndex: txIndex}
}

func TxReceiptKey(chain chainid.ChainId, block uint64, txIndex uint64) FetchKey {
	return FetchKey{Kind: FetchTxReceipt, ChainId: chain, Block: block, TxIndex: txIndex}
}

// Serialize is FetchKey's stable wire form: kind || chain_id(8 LE) ||
// block(8 LE) || addr(20) || slot(32) || tx_index(8 LE), always the full
// fixed width regardless of Kind so Serialize is injective per variant.
func (k FetchKey) Serialize() ([]byte, error) {
	chainNum, err := k.ChainId.Numeric()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+8+8+20+32+8)
	out[0] = byte(k.Kind)
	binary.LittleEndian.PutUint64(out[1:9], chainNum)
	binary.LittleEndian.PutUint64(out[9:17], k.Block)
	copy(out[17:37], k.Addr[:])
	copy(out[37:69], k.Slot[:])
	binary.LittleEndian.PutUint64(out[69:77], k.TxIndex)
	return out, nil
}

// DeserializeFetchKey reverses Serialize.
func DeserializeFetchKey(raw []byte) (FetchKey, error) {
	if len(raw) != 77 {
		return FetchKey{}, hdperrors.New(hdperrors.InvalidEncoding, "fetch key: wrong length")
	}
	kind := FetchKeyKind(raw[0])
	if kind > FetchTxReceipt {
		return FetchKey{}, hdperrors.New(hdperrors.UnknownVariant, "fetch key: unknown kind")
	}
	chainNum := binary.LittleEndian.Uint64(raw[1:9])
	chain, err := chainid.FromNumeric(chainNum)
	if err != nil {
		return FetchKey{}, err
	}
	k := FetchKey{
		Kind:    kind,
		ChainId: chain,
		Block:   binary.LittleEndian.Uint64(raw[9:17]),
		TxIndex: binary.LittleEndian.Uint64(raw[69:77]),
	}
	copy(k.Addr[:], raw[17:37])
	copy(k.Slot[:], raw[37:69])
	return k, nil
}

// Hash is the 32-byte identifier used for deduplication (spec.md section 3:
// "Every fetch key hashes to a 32-byte identifier used for deduplication").
func (k FetchKey) Hash() ([32]byte, error) {
	raw, err := k.Serialize()
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], crypto.Keccak256(raw))
	return out, nil
}
