// Copyright 2025 Certen Protocol

package provider

import (
	"context"

	"github.com/hdp-xyz/preprocessor/pkg/indexer"
	"github.com/hdp-xyz/preprocessor/pkg/mmr"
)

// WithIndexer attaches the C2 indexer client this provider delegates
// header/MMR proofs to; header proofs are not fetched over the chain's
// own RPC endpoint (spec.md section 4.2 routes them through the
// Herodotus accumulator indexer instead).
func (p *EVMProvider) WithIndexer(idx *indexer.Client) *EVMProvider {
	p.indexer = idx
	return p
}

// GetRangeOfHeaderProofs implements spec.md section 4.3:
// get_range_of_header_proofs(from, to, increment) -> (set<MMRMeta>, map<block, HeaderProof>).
// The MMR set is normally a singleton. For increment > 1 the returned
// header map is filtered here down to the blocks b with
// (b-from) mod increment == 0.
func (p *EVMProvider) GetRangeOfHeaderProofs(ctx context.Context, from, to, increment uint64) (mmr.MMRMeta, map[uint64]mmr.ProcessedHeader, error) {
	meta, headers, err := p.indexer.GetHeadersProof(ctx, p.chainId, from, to)
	if err != nil {
		return mmr.MMRMeta{}, nil, err
	}
	if increment <= 1 {
		return meta, headers, nil
	}

	filtered := make(map[uint64]mmr.ProcessedHeader)
	for b, h := range headers {
		if (b-from)%increment == 0 {
			filtered[b] = h
		}
	}
	return meta, filtered, nil
}
