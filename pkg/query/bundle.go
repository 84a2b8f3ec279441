// Copyright 2025 Certen Protocol
//
// ProofBundle accumulates every header/account/storage/transaction proof
// a query's tasks depend on, grouped by chain, so C9 can serialize one
// proof-bearing program input covering every task instead of one file
// per task.

package query

import (
	"github.com/hdp-xyz/preprocessor/pkg/chainid"
	"github.com/hdp-xyz/preprocessor/pkg/datalake"
	"github.com/hdp-xyz/preprocessor/pkg/mmr"
	"github.com/hdp-xyz/preprocessor/pkg/provider"
	"github.com/hdp-xyz/preprocessor/pkg/task"
)

// ChainBundle is one chain's share of a query's proof bundle.
type ChainBundle struct {
	MMRMetas            map[string]mmr.MMRMeta
	Headers             map[uint64]mmr.ProcessedHeader
	Accounts            []task.ProcessedAccount
	Storages            []task.ProcessedStorage
	Transactions        []task.ProcessedTransaction
	TransactionReceipts []task.ProcessedReceipt
}

func newChainBundle() *ChainBundle {
	return &ChainBundle{
		MMRMetas: make(map[string]mmr.MMRMeta),
		Headers:  make(map[uint64]mmr.ProcessedHeader),
	}
}

// ProofBundle is the whole query's proof bundle, keyed by chain (spec.md
// section 3's "the union of MMRMetas across a single query is a set").
type ProofBundle map[chainid.ChainId]*ChainBundle

func newProofBundle() ProofBundle {
	return make(ProofBundle)
}

func (b ProofBundle) chain(c chainid.ChainId) *ChainBundle {
	cb, ok := b[c]
	if !ok {
		cb = newChainBundle()
		b[c] = cb
	}
	return cb
}

// mergeDatalake folds one C4 FetchedDatalake into the bundle for chain.
func (b ProofBundle) mergeDatalake(chain chainid.ChainId, d datalake.FetchedDatalake) {
	cb := b.chain(chain)
	for id, m := range d.MMRMetas {
		cb.MMRMetas[id] = m
	}
	for block, h := range d.Headers {
		cb.Headers[block] = h
	}
	cb.Accounts = append(cb.Accounts, d.Accounts...)
	cb.Storages = append(cb.Storages, d.Storages...)
	cb.Transactions = append(cb.Transactions, d.Transactions...)
	cb.TransactionReceipts = append(cb.TransactionReceipts, d.TransactionReceipts...)
}

// mergeFetched folds one C3 FetchedProofs (module-driven discovery) into
// the bundle for chain.
func (b ProofBundle) mergeFetched(chain chainid.ChainId, f provider.FetchedProofs) {
	cb := b.chain(chain)
	for id, m := range f.MMRMetas {
		cb.MMRMetas[id] = m
	}
	for block, h := range f.Headers {
		cb.Headers[block] = h
	}
	for addr, byBlock := range f.Accounts {
		acc := task.ProcessedAccount{Address: addr}
		for _, p := range byBlock {
			acc.Proofs = append(acc.Proofs, p)
		}
		cb.Accounts = append(cb.Accounts, acc)
	}
	for slot, byBlock := range f.Storages {
		stor := task.ProcessedStorage{Address: slot.Addr, Slot: slot.Slot}
		for _, p := range byBlock {
			stor.Proofs = append(stor.Proofs, p)
		}
		cb.Storages = append(cb.Storages, stor)
	}
	for _, byIdx := range f.Txs {
		for _, t := range byIdx {
			cb.Transactions = append(cb.Transactions, t)
		}
	}
	for _, byIdx := range f.Receipts {
		for _, r := range byIdx {
			cb.TransactionReceipts = append(cb.TransactionReceipts, r)
		}
	}
}
