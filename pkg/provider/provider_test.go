package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hdp-xyz/preprocessor/pkg/chainid"
	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/indexer"
	"github.com/hdp-xyz/preprocessor/pkg/task"
)

func TestNewMissingRPCURL(t *testing.T) {
	_, err := New(context.Background(), Config{ChainId: chainid.EthereumSepolia})
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.MissingChainConfig {
		t.Fatalf("expected MissingChainConfig, got %v", err)
	}
}

func TestAddressToArray(t *testing.T) {
	var addr common.Address
	addr[19] = 0xab
	got := addressToArray(addr)
	if got[19] != 0xab {
		t.Errorf("got %x", got)
	}
}

// newTestProvider dials an httptest.Server standing in for the chain's
// JSON-RPC endpoint — go-ethereum's http RPC transport connects lazily,
// so New succeeds without the server ever answering an RPC call.
func newTestProvider(t *testing.T, chain chainid.ChainId) (*EVMProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	}))
	p, err := New(context.Background(), Config{ChainId: chain, RPCURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error dialing test server: %v", err)
	}
	return p, srv
}

func TestFetchProofsFromKeysRejectsWrongChain(t *testing.T) {
	p, srv := newTestProvider(t, chainid.EthereumSepolia)
	defer srv.Close()
	defer p.Close()

	keys := []task.FetchKey{task.HeaderKey(chainid.EthereumMainnet, 1)}
	_, err := p.FetchProofsFromKeys(context.Background(), keys)
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.ProviderError {
		t.Fatalf("expected ProviderError for a cross-chain fetch key, got %v", err)
	}
}

func TestGetRangeOfHeaderProofsAppliesIncrement(t *testing.T) {
	idxSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{
			"data": [{
				"meta": {"mmr_id": "mmr-1", "root_hash": "0x01", "mmr_size": 10, "peaks": ["0x02"]},
				"headers": [
					{"block_number": 100, "rlp": "0x01", "element_index": 0, "inclusion_proof": [], "peak_index": 0},
					{"block_number": 101, "rlp": "0x02", "element_index": 1, "inclusion_proof": [], "peak_index": 0},
					{"block_number": 102, "rlp": "0x03", "element_index": 2, "inclusion_proof": [], "peak_index": 0}
				]
			}]
		}`))
	}))
	defer idxSrv.Close()

	p, srv := newTestProvider(t, chainid.EthereumSepolia)
	defer srv.Close()
	defer p.Close()

	idx := indexer.New(indexer.Config{BaseURL: idxSrv.URL, DeployedOnChain: chainid.EthereumSepolia})
	p.WithIndexer(idx)

	_, headers, err := p.GetRangeOfHeaderProofs(context.Background(), 100, 102, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(headers) != 2 {
		t.Fatalf("got %d headers, want 2 (100 and 102)", len(headers))
	}
	if _, ok := headers[100]; !ok {
		t.Error("expected block 100 in the increment-filtered set")
	}
	if _, ok := headers[102]; !ok {
		t.Error("expected block 102 in the increment-filtered set")
	}
	if _, ok := headers[101]; ok {
		t.Error("block 101 should have been filtered out by increment=2")
	}
}
