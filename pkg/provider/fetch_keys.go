// Copyright 2025 Certen Protocol
//
// fetch_proofs_from_keys dispatches a module's discovered FetchKey set
// (spec.md section 4.6, C6 dry-run output) back onto C3's single-item
// fetch operations, one per key, bounded by the same semaphore as every
// other provider call.

package provider

import (
	"context"
	"fmt"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/mmr"
	"github.com/hdp-xyz/preprocessor/pkg/task"
)

// StorageSlot identifies one (address, slot) pair.
type StorageSlot struct {
	Addr [20]byte
	Slot [32]byte
}

// FetchedProofs is the merged result of resolving a set of FetchKeys
// against this provider's chain.
type FetchedProofs struct {
	MMRMetas map[string]mmr.MMRMeta
	Headers  map[uint64]mmr.ProcessedHeader
	Accounts map[[20]byte]map[uint64]task.AccountProofAtBlock
	Storages map[StorageSlot]map[uint64]task.StorageProofAtBlock
	Txs      map[uint64]map[uint64]task.ProcessedTransaction
	Receipts map[uint64]map[uint64]task.ProcessedReceipt
}

func newFetchedProofs() FetchedProofs {
	return FetchedProofs{
		MMRMetas: make(map[string]mmr.MMRMeta),
		Headers:  make(map[uint64]mmr.ProcessedHeader),
		Accounts: make(map[[20]byte]map[uint64]task.AccountProofAtBlock),
		Storages: make(map[StorageSlot]map[uint64]task.StorageProofAtBlock),
		Txs:      make(map[uint64]map[uint64]task.ProcessedTransaction),
		Receipts: make(map[uint64]map[uint64]task.ProcessedReceipt),
	}
}

// fetchedItem is the per-key result runBounded joins before the caller
// merges it into the shared FetchedProofs bag; merging happens after
// runBounded returns, so it needs no locking of its own.
type fetchedItem struct {
	key      task.FetchKey
	meta     mmr.MMRMeta
	header   mmr.ProcessedHeader
	account  task.AccountProofAtBlock
	storage  task.StorageProofAtBlock
	tx       task.ProcessedTransaction
	receipt  task.ProcessedReceipt
}

// FetchProofsFromKeys implements spec.md section 4.3/4.6:
// fetch_proofs_from_keys(set<FetchKey>) -> FetchedProofs.
func (p *EVMProvider) FetchProofsFromKeys(ctx context.Context, keys []task.FetchKey) (FetchedProofs, error) {
	for _, k := range keys {
		if k.ChainId != p.chainId {
			return FetchedProofs{}, hdperrors.New(hdperrors.ProviderError, fmt.Sprintf("fetch key for chain %s sent to provider for chain %s", k.ChainId, p.chainId))
		}
	}

	items, err := runBounded(ctx, p, keys, func(cctx context.Context, k task.FetchKey) (fetchedItem, error) {
		switch k.Kind {
		case task.FetchHeader:
			meta, headers, err := p.GetRangeOfHeaderProofs(cctx, k.Block, k.Block, 1)
			if err != nil {
				return fetchedItem{}, err
			}
			return fetchedItem{key: k, meta: meta, header: headers[k.Block]}, nil

		case task.FetchAccount:
			proofs, err := p.GetRangeOfAccountProofs(cctx, k.Block, k.Block, 1, k.Addr)
			if err != nil {
				return fetchedItem{}, err
			}
			return fetchedItem{key: k, account: proofs[k.Block]}, nil

		case task.FetchStorage:
			proofs, err := p.GetRangeOfStorageProofs(cctx, k.Block, k.Block, 1, k.Addr, k.Slot)
			if err != nil {
				return fetchedItem{}, err
			}
			return fetchedItem{key: k, storage: proofs[k.Block]}, nil

		case task.FetchTx:
			tx, err := p.GetTxWithProofFromBlock(cctx, k.Block, k.TxIndex)
			if err != nil {
				return fetchedItem{}, err
			}
			return fetchedItem{key: k, tx: tx}, nil

		case task.FetchTxReceipt:
			r, err := p.GetTxReceiptWithProofFromBlock(cctx, k.Block, k.TxIndex)
			if err != nil {
				return fetchedItem{}, err
			}
			return fetchedItem{key: k, receipt: r}, nil

		default:
			return fetchedItem{}, hdperrors.New(hdperrors.UnknownVariant, fmt.Sprintf("fetch key kind %d", k.Kind))
		}
	})
	if err != nil {
		return FetchedProofs{}, err
	}

	out := newFetchedProofs()
	for i := range keys {
		item := items[i]
		switch item.key.Kind {
		case task.FetchHeader:
			out.MMRMetas[item.meta.ID] = item.meta
			out.Headers[item.key.Block] = item.header
		case task.FetchAccount:
			if out.Accounts[item.key.Addr] == nil {
				out.Accounts[item.key.Addr] = make(map[uint64]task.AccountProofAtBlock)
			}
			out.Accounts[item.key.Addr][item.key.Block] = item.account
		case task.FetchStorage:
			slot := StorageSlot{Addr: item.key.Addr, Slot: item.key.Slot}
			if out.Storages[slot] == nil {
				out.Storages[slot] = make(map[uint64]task.StorageProofAtBlock)
			}
			out.Storages[slot][item.key.Block] = item.storage
		case task.FetchTx:
			if out.Txs[item.key.Block] == nil {
				out.Txs[item.key.Block] = make(map[uint64]task.ProcessedTransaction)
			}
			out.Txs[item.key.Block][item.key.TxIndex] = item.tx
		case task.FetchTxReceipt:
			if out.Receipts[item.key.Block] == nil {
				out.Receipts[item.key.Block] = make(map[uint64]task.ProcessedReceipt)
			}
			out.Receipts[item.key.Block][item.key.TxIndex] = item.receipt
		}
	}
	return out, nil
}
