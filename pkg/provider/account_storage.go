// Copyright 2025 Certen Protocol
//
// Account and storage proof fetching via eth_getProof (spec.md section
// 4.3: "for each block the provider first obtains the account proof ...
// and, if storage is requested, the storage proof rooted at the
// account's storage_root").

package provider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/task"
)

// accountLeaf mirrors go-ethereum's state-trie account layout so the
// account leaf returned by eth_getProof (whose fields arrive separately,
// not as one RLP blob) can be re-encoded into the same shape
// codec.DecodeAccountField expects.
type accountLeaf struct {
	Nonce    uint64
	Balance  *big.Int
	Root     common.Hash
	CodeHash []byte
}

type blockRange struct {
	from, to, increment uint64
}

func (r blockRange) blocks() []uint64 {
	if r.increment == 0 || r.from > r.to {
		return nil
	}
	var out []uint64
	for b := r.from; b <= r.to; b++ {
		if (b-r.from)%r.increment == 0 {
			out = append(out, b)
		}
	}
	return out
}

// GetRangeOfAccountProofs implements spec.md section 4.3:
// get_range_of_account_proofs(from, to, increment, addr) -> map<block, AccountProof>.
func (p *EVMProvider) GetRangeOfAccountProofs(ctx context.Context, from, to, increment uint64, addr [20]byte) (map[uint64]task.AccountProofAtBlock, error) {
	blocks := blockRange{from, to, increment}.blocks()
	gc := gethclient.New(p.client.Client())
	address := common.BytesToAddress(addr[:])

	results, err := runBounded(ctx, p, blocks, func(cctx context.Context, block uint64) (task.AccountProofAtBlock, error) {
		var proof *gethclient.AccountResult
		err := p.withRetry(cctx, "eth_getProof", fmt.Sprintf("account proof block=%d", block), func() error {
			var innerErr error
			proof, innerErr = gc.GetProof(cctx, address, nil, new(big.Int).SetUint64(block))
			return innerErr
		})
		if err != nil {
			return task.AccountProofAtBlock{}, err
		}
		nodes := make([][]byte, len(proof.AccountProof))
		for i, n := range proof.AccountProof {
			nodes[i] = hexutil.MustDecode(n)
		}
		leaf, err := rlp.EncodeToBytes(accountLeaf{
			Nonce:    proof.Nonce,
			Balance:  proof.Balance,
			Root:     proof.StorageHash,
			CodeHash: proof.CodeHash.Bytes(),
		})
		if err != nil {
			return task.AccountProofAtBlock{}, hdperrors.Wrap(hdperrors.InvalidEncoding, "account leaf", err)
		}
		return task.AccountProofAtBlock{BlockNumber: block, ProofNodes: nodes, Value: leaf}, nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[uint64]task.AccountProofAtBlock, len(results))
	for i, block := range blocks {
		out[block] = results[i]
	}
	return out, nil
}

// GetRangeOfStorageProofs implements spec.md section 4.3:
// get_range_of_storage_proofs(from, to, increment, addr, slot) -> map<block, StorageProof>.
func (p *EVMProvider) GetRangeOfStorageProofs(ctx context.Context, from, to, increment uint64, addr [20]byte, slot [32]byte) (map[uint64]task.StorageProofAtBlock, error) {
	blocks := blockRange{from, to, increment}.blocks()
	gc := gethclient.New(p.client.Client())
	address := common.BytesToAddress(addr[:])
	slotHash := common.BytesToHash(slot[:])

	results, err := runBounded(ctx, p, blocks, func(cctx context.Context, block uint64) (task.StorageProofAtBlock, error) {
		var proof *gethclient.AccountResult
		err := p.withRetry(cctx, "eth_getProof", fmt.Sprintf("storage proof block=%d", block), func() error {
			var innerErr error
			proof, innerErr = gc.GetProof(cctx, address, []string{slotHash.Hex()}, new(big.Int).SetUint64(block))
			return innerErr
		})
		if err != nil {
			return task.StorageProofAtBlock{}, err
		}
		if len(proof.StorageProof) == 0 {
			return task.StorageProofAtBlock{}, hdperrors.New(hdperrors.ProviderError, "eth_getProof returned no storage proof")
		}
		nodes := make([][]byte, len(proof.StorageProof[0].Proof))
		for i, n := range proof.StorageProof[0].Proof {
			nodes[i] = hexutil.MustDecode(n)
		}
		var value [32]byte
		proof.StorageProof[0].Value.FillBytes(value[:])
		return task.StorageProofAtBlock{BlockNumber: block, ProofNodes: nodes, Value: value}, nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[uint64]task.StorageProofAtBlock, len(results))
	for i, block := range blocks {
		out[block] = results[i]
	}
	return out, nil
}
