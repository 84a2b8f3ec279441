// Copyright 2025 Certen Protocol
//
// program_input.json serialization (spec.md section 6): the proof bundle
// plus every task's commitment-relevant fields, in either "raw" (hex
// bytes) or "cairo" (field-element-packed via pkg/codec.Pack) form,
// selected by configuration flag rather than by the data itself.

package query

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	starkfr "github.com/consensys/gnark-crypto/ecc/stark-curve/fr"

	"github.com/hdp-xyz/preprocessor/pkg/codec"
	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/mmr"
	"github.com/hdp-xyz/preprocessor/pkg/task"
)

// Format selects how raw byte blobs are rendered in program_input.json.
type Format int

const (
	// FormatRaw renders byte blobs as 0x-prefixed hex strings.
	FormatRaw Format = iota
	// FormatCairo renders byte blobs as packed field elements (spec.md
	// section 4.1's field-element packing), for provers that consume a
	// prime-field program input directly.
	FormatCairo
)

// encodeBytes renders b per format: either a hex string or a packed-felt
// object, so the rest of this file's JSON construction doesn't need to
// branch on format at every call site.
func encodeBytes(format Format, b []byte) interface{} {
	if format == FormatRaw {
		return "0x" + hex.EncodeToString(b)
	}
	felts := codec.Pack(b)
	elements := make([]string, len(felts.Elements))
	for i, e := range felts.Elements {
		elements[i] = feltString(e)
	}
	return struct {
		Elements []string `json:"elements"`
		ByteLen  int      `json:"byte_len"`
	}{Elements: elements, ByteLen: felts.ByteLen}
}

// feltString renders a packed 63-bit limb (pkg/codec.Pack's output) as the
// canonical decimal representation of the corresponding element of the
// STARK curve's scalar field, the field the Cairo-format program input is
// defined over. Every limb produced by Pack is below 2^63, well under the
// field's modulus, so this never reduces; it exists so program_input.json
// carries genuine field elements rather than plain integers relabeled as
// such.
func feltString(limb uint64) string {
	var e starkfr.Element
	e.SetUint64(limb)
	return e.String()
}

func encodeBytesSlice(format Format, bs [][]byte) []interface{} {
	out := make([]interface{}, len(bs))
	for i, b := range bs {
		out[i] = encodeBytes(format, b)
	}
	return out
}

type jsonSibling struct {
	Hash  string `json:"hash"`
	Right bool   `json:"right"`
}

type jsonHeader struct {
	Block        uint64        `json:"block_number"`
	RLP          interface{}   `json:"rlp_bytes"`
	ElementIndex uint64        `json:"element_index"`
	Siblings     []jsonSibling `json:"siblings"`
	PeakIndex    int           `json:"peak_index"`
}

func encodeHeader(format Format, block uint64, h mmr.ProcessedHeader) jsonHeader {
	siblings := make([]jsonSibling, len(h.Siblings))
	for i, s := range h.Siblings {
		siblings[i] = jsonSibling{Hash: "0x" + hex.EncodeToString(s.Hash[:]), Right: s.Right}
	}
	return jsonHeader{
		Block:        block,
		RLP:          encodeBytes(format, h.RLPBytes),
		ElementIndex: h.ElementIndex,
		Siblings:     siblings,
		PeakIndex:    h.PeakIndex,
	}
}

type jsonMMRMeta struct {
	ID    string   `json:"id"`
	Root  string   `json:"root"`
	Size  uint64   `json:"size"`
	Peaks []string `json:"peaks"`
}

func encodeMMRMeta(m mmr.MMRMeta) jsonMMRMeta {
	peaks := make([]string, len(m.Peaks))
	for i, p := range m.Peaks {
		peaks[i] = "0x" + hex.EncodeToString(p[:])
	}
	return jsonMMRMeta{
		ID:    m.ID,
		Root:  "0x" + hex.EncodeToString(m.Root[:]),
		Size:  m.Size,
		Peaks: peaks,
	}
}

type jsonAccountProof struct {
	Block      uint64        `json:"block_number"`
	ProofNodes []interface{} `json:"proof_nodes"`
	Value      interface{}   `json:"value"`
}

type jsonAccount struct {
	Address string             `json:"address"`
	Proofs  []jsonAccountProof `json:"proofs"`
}

func encodeAccount(format Format, a task.ProcessedAccount) jsonAccount {
	proofs := make([]jsonAccountProof, len(a.Proofs))
	for i, p := range a.Proofs {
		proofs[i] = jsonAccountProof{
			Block:      p.BlockNumber,
			ProofNodes: encodeBytesSlice(format, p.ProofNodes),
			Value:      encodeBytes(format, p.Value),
		}
	}
	return jsonAccount{Address: "0x" + hex.EncodeToString(a.Address[:]), Proofs: proofs}
}

type jsonStorageProof struct {
	Block      uint64        `json:"block_number"`
	ProofNodes []interface{} `json:"proof_nodes"`
	Value      interface{}   `json:"value"`
}

type jsonStorage struct {
	Address string             `json:"address"`
	Slot    string             `json:"slot"`
	Proofs  []jsonStorageProof `json:"proofs"`
}

func encodeStorage(format Format, s task.ProcessedStorage) jsonStorage {
	proofs := make([]jsonStorageProof, len(s.Proofs))
	for i, p := range s.Proofs {
		proofs[i] = jsonStorageProof{
			Block:      p.BlockNumber,
			ProofNodes: encodeBytesSlice(format, p.ProofNodes),
			Value:      encodeBytes(format, p.Value[:]),
		}
	}
	return jsonStorage{
		Address: "0x" + hex.EncodeToString(s.Address[:]),
		Slot:    "0x" + hex.EncodeToString(s.Slot[:]),
		Proofs:  proofs,
	}
}

type jsonTxProof struct {
	Key         interface{}   `json:"key"`
	Block       uint64        `json:"block_number"`
	ProofNodes  []interface{} `json:"proof_nodes"`
	TxType      uint8         `json:"tx_type"`
	Value       interface{}   `json:"value"`
}

func encodeTx(format Format, t task.ProcessedTransaction) jsonTxProof {
	return jsonTxProof{
		Key:        encodeBytes(format, t.Key),
		Block:      t.BlockNumber,
		ProofNodes: encodeBytesSlice(format, t.ProofNodes),
		TxType:     t.TxType,
		Value:      encodeBytes(format, t.Value),
	}
}

func encodeReceipt(format Format, r task.ProcessedReceipt) jsonTxProof {
	return jsonTxProof{
		Key:        encodeBytes(format, r.Key),
		Block:      r.BlockNumber,
		ProofNodes: encodeBytesSlice(format, r.ProofNodes),
		TxType:     r.TxType,
		Value:      encodeBytes(format, r.Value),
	}
}

type jsonChainBundle struct {
	MMRMetas            []jsonMMRMeta  `json:"mmr_metas"`
	Headers             []jsonHeader   `json:"headers"`
	Accounts            []jsonAccount  `json:"accounts"`
	Storages            []jsonStorage  `json:"storages"`
	Transactions        []jsonTxProof  `json:"transactions"`
	TransactionReceipts []jsonTxProof  `json:"transaction_receipts"`
}

type jsonTaskResult struct {
	Commitment string `json:"commitment"`
	Result     string `json:"result"`
}

// ProgramInput is the full shape of program_input.json.
type ProgramInput struct {
	Tasks  []jsonTaskResult           `json:"tasks"`
	Chains map[string]jsonChainBundle `json:"chains"`
}

// BuildProgramInput assembles program_input.json's contents from a
// compiled query's proof bundle and per-task commitment/result pairs.
func BuildProgramInput(format Format, bundle ProofBundle, commitments, results [][32]byte) (ProgramInput, error) {
	if len(commitments) != len(results) {
		return ProgramInput{}, hdperrors.New(hdperrors.InvalidEncoding, "task/result count mismatch")
	}

	tasks := make([]jsonTaskResult, len(commitments))
	for i := range commitments {
		tasks[i] = jsonTaskResult{
			Commitment: "0x" + hex.EncodeToString(commitments[i][:]),
			Result:     "0x" + hex.EncodeToString(results[i][:]),
		}
	}

	chains := make(map[string]jsonChainBundle, len(bundle))
	for chain, cb := range bundle {
		metaIDs := make([]string, 0, len(cb.MMRMetas))
		for id := range cb.MMRMetas {
			metaIDs = append(metaIDs, id)
		}
		sort.Strings(metaIDs)
		metas := make([]jsonMMRMeta, 0, len(cb.MMRMetas))
		for _, id := range metaIDs {
			metas = append(metas, encodeMMRMeta(cb.MMRMetas[id]))
		}

		blocks := make([]uint64, 0, len(cb.Headers))
		for block := range cb.Headers {
			blocks = append(blocks, block)
		}
		sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })
		headers := make([]jsonHeader, 0, len(cb.Headers))
		for _, block := range blocks {
			headers = append(headers, encodeHeader(format, block, cb.Headers[block]))
		}
		accounts := make([]jsonAccount, len(cb.Accounts))
		for i, a := range cb.Accounts {
			accounts[i] = encodeAccount(format, a)
		}
		storages := make([]jsonStorage, len(cb.Storages))
		for i, s := range cb.Storages {
			storages[i] = encodeStorage(format, s)
		}
		txs := make([]jsonTxProof, len(cb.Transactions))
		for i, t := range cb.Transactions {
			txs[i] = encodeTx(format, t)
		}
		receipts := make([]jsonTxProof, len(cb.TransactionReceipts))
		for i, r := range cb.TransactionReceipts {
			receipts[i] = encodeReceipt(format, r)
		}
		chains[string(chain)] = jsonChainBundle{
			MMRMetas:            metas,
			Headers:             headers,
			Accounts:            accounts,
			Storages:            storages,
			Transactions:        txs,
			TransactionReceipts: receipts,
		}
	}

	return ProgramInput{Tasks: tasks, Chains: chains}, nil
}

// Marshal renders ProgramInput as the bytes written to program_input.json.
func (p ProgramInput) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
