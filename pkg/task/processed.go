// Copyright 2025 Certen Protocol
//
// ProcessedAccount/ProcessedStorage/ProcessedTransaction/ProcessedReceipt
// are the proof-bearing record types C3's provider returns and C4's
// datalake compiler accumulates into a FetchedDatalake (spec.md section 3
// and 4.4).

package task

// AccountProofAtBlock is one block's MPT account proof. Value is the
// RLP-encoded account leaf {nonce, balance, storage_root, code_hash},
// reconstructed from the eth_getProof response so C4 can feed it straight
// into DecodeAccountField.
type AccountProofAtBlock struct {
	BlockNumber uint64
	ProofNodes  [][]byte
	Value       []byte
}

// ProcessedAccount is {address, proofs[]}: one per (chain, address),
// proofs indexed by block.
type ProcessedAccount struct {
	Address [20]byte
	Proofs  []AccountProofAtBlock
}

// StorageProofAtBlock is one block's MPT storage proof, rooted at the
// account's storage_root at that block. Value is the 32-byte scalar
// stored at the slot — the datum itself, not just its authentication
// path.
type StorageProofAtBlock struct {
	BlockNumber uint64
	ProofNodes  [][]byte
	Value       [32]byte
}

// ProcessedStorage is {address, slot, proofs[]}: one per
// (chain, address, slot).
type ProcessedStorage struct {
	Address [20]byte
	Slot    [32]byte
	Proofs  []StorageProofAtBlock
}

// ProcessedTransaction is {key, block_number, proof_nodes[]}, where key is
// the RLP-encoded trie key derived from the transaction index. Value
// carries the trie leaf's own bytes (the typed transaction encoding) so
// C4 can decode a sampled field without a second RPC round trip.
type ProcessedTransaction struct {
	Key         []byte
	BlockNumber uint64
	ProofNodes  [][]byte
	TxType      uint8
	Value       []byte
}

// ProcessedReceipt mirrors ProcessedTransaction for the receipts trie.
type ProcessedReceipt struct {
	Key         []byte
	BlockNumber uint64
	ProofNodes  [][]byte
	TxType      uint8
	Value       []byte
}
