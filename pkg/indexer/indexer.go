// Copyright 2025 Certen Protocol
//
// C2 indexer client: given a block range, obtain MMR metadata and
// per-block MMR inclusion proofs from the Herodotus accumulator indexer
// (spec.md section 4.2, section 6 "RPC consumed"). Styled after the
// teacher's pkg/ethereum client.go request/response error-wrapping, but
// over a plain HTTP+JSON API rather than JSON-RPC.

package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hdp-xyz/preprocessor/pkg/chainid"
	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/mmr"
)

// Client queries one Herodotus accumulator indexer deployment.
type Client struct {
	baseURL        string
	deployedOnChain chainid.ChainId
	httpClient     *http.Client
}

// Config configures a Client.
type Config struct {
	BaseURL         string
	DeployedOnChain chainid.ChainId
	Timeout         time.Duration
}

// New builds an indexer Client. Timeout defaults to 30s, matching
// spec.md section 5's "each RPC call has an explicit timeout (default 30s)".
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:         cfg.BaseURL,
		deployedOnChain: cfg.DeployedOnChain,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// accumulatorProofResponse mirrors the JSON shape of
// GET /accumulators/proofs (field names per the Herodotus indexer API).
type accumulatorProofResponse struct {
	Data []struct {
		MMRMeta struct {
			MMRId string   `json:"mmr_id"`
			Root  string   `json:"root_hash"`
			Size  uint64   `json:"mmr_size"`
			Peaks []string `json:"peaks"`
		} `json:"meta"`
		Headers []struct {
			BlockNumber  uint64 `json:"block_number"`
			RLP          string `json:"rlp"`
			ElementIndex uint64 `json:"element_index"`
			Siblings     []struct {
				Hash  string `json:"hash"`
				Right bool   `json:"right"`
			} `json:"inclusion_proof"`
			PeakIndex int `json:"peak_index"`
		} `json:"headers"`
	} `json:"data"`
}

// GetHeadersProof implements spec.md section 4.2:
// get_headers_proof(from_block, to_block) -> (MMRMeta, map<block, HeaderProof>).
//
// Contract: the returned map has exactly to-from+1 entries. Exactly one
// MMR must cover the full range; zero or more than one fails InvalidMMR.
// from > to fails InvalidBlockRange.
func (c *Client) GetHeadersProof(ctx context.Context, chain chainid.ChainId, from, to uint64) (mmr.MMRMeta, map[uint64]mmr.ProcessedHeader, error) {
	if from > to {
		return mmr.MMRMeta{}, nil, hdperrors.New(hdperrors.InvalidBlockRange, fmt.Sprintf("from=%d > to=%d", from, to))
	}

	accumulatesChain, err := chain.Numeric()
	if err != nil {
		return mmr.MMRMeta{}, nil, err
	}
	deployedOn, err := c.deployedOnChain.Numeric()
	if err != nil {
		return mmr.MMRMeta{}, nil, err
	}

	q := url.Values{}
	q.Set("deployed_on_chain", strconv.FormatUint(deployedOn, 10))
	q.Set("accumulates_chain", strconv.FormatUint(accumulatesChain, 10))
	q.Set("hashing_function", "poseidon")
	q.Set("contract_type", "AGGREGATOR")
	q.Set("from_block_number_inclusive", strconv.FormatUint(from, 10))
	q.Set("to_block_number_inclusive", strconv.FormatUint(to, 10))
	q.Set("is_meta_included", "true")
	q.Set("is_whole_tree", "true")
	q.Set("is_rlp_included", "true")
	q.Set("is_pure_rlp", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/accumulators/proofs?"+q.Encode(), nil)
	if err != nil {
		return mmr.MMRMeta{}, nil, hdperrors.Wrap(hdperrors.ProviderError, "indexer request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mmr.MMRMeta{}, nil, hdperrors.Wrap(hdperrors.ProviderError, "indexer request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return mmr.MMRMeta{}, nil, hdperrors.Wrap(hdperrors.ProviderError, "indexer response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return mmr.MMRMeta{}, nil, hdperrors.New(hdperrors.ProviderError, fmt.Sprintf("indexer returned %d: %s", resp.StatusCode, string(body)))
	}

	var parsed accumulatorProofResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return mmr.MMRMeta{}, nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "indexer response", err)
	}

	if len(parsed.Data) != 1 {
		return mmr.MMRMeta{}, nil, hdperrors.New(hdperrors.InvalidMMR, fmt.Sprintf("expected exactly one covering MMR, got %d", len(parsed.Data)))
	}
	entry := parsed.Data[0]

	meta := mmr.MMRMeta{
		ID:      entry.MMRMeta.MMRId,
		Size:    entry.MMRMeta.Size,
		ChainId: chain,
	}
	meta.Root = mustHash32(entry.MMRMeta.Root)
	meta.Peaks = make([][32]byte, len(entry.MMRMeta.Peaks))
	for i, p := range entry.MMRMeta.Peaks {
		meta.Peaks[i] = mustHash32(p)
	}

	headers := make(map[uint64]mmr.ProcessedHeader, len(entry.Headers))
	for _, h := range entry.Headers {
		siblings := make([]mmr.Sibling, len(h.Siblings))
		for i, s := range h.Siblings {
			siblings[i] = mmr.Sibling{Hash: mustHash32(s.Hash), Right: s.Right}
		}
		headers[h.BlockNumber] = mmr.ProcessedHeader{
			RLPBytes:     mustHexBytes(h.RLP),
			ElementIndex: h.ElementIndex,
			Siblings:     siblings,
			PeakIndex:    h.PeakIndex,
		}
	}

	wantCount := int(to-from) + 1
	if len(headers) != wantCount {
		return mmr.MMRMeta{}, nil, hdperrors.New(hdperrors.InvalidMMR, fmt.Sprintf("expected %d headers, got %d", wantCount, len(headers)))
	}

	return meta, headers, nil
}
