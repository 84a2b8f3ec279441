package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/kvdb"
)

func TestGetModuleClassLocalPath(t *testing.T) {
	raw := []byte("compiled class bytes")
	var hash [32]byte
	copy(hash[:], crypto.Keccak256(raw))

	path := t.TempDir() + "/class.json"
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	r := New(Config{}, nil)
	got, err := r.GetModuleClass(context.Background(), hash, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(raw) {
		t.Errorf("got %q, want %q", got, raw)
	}
}

func TestGetModuleClassLocalPathHashMismatch(t *testing.T) {
	path := t.TempDir() + "/class.json"
	if err := os.WriteFile(path, []byte("some bytes"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	r := New(Config{}, nil)
	_, err := r.GetModuleClass(context.Background(), [32]byte{0xaa}, path)
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.ClassHashMismatch {
		t.Fatalf("expected ClassHashMismatch, got %v", err)
	}
}

func TestGetModuleClassRemoteFetchAndCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"program":"deadbeef"}}`))
	}))
	defer srv.Close()

	cache := NewCache(kvdb.NewKVAdapter(dbm.NewMemDB()))
	r := New(Config{StarknetRPCURL: srv.URL}, cache)

	hash := [32]byte{1, 2, 3}
	got1, err := r.GetModuleClass(context.Background(), hash, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got2, err := r.GetModuleClass(context.Background(), hash, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got1) != string(got2) {
		t.Errorf("cached fetch returned different bytecode: %q vs %q", got1, got2)
	}
	if calls != 1 {
		t.Errorf("expected the cache to avoid a second remote fetch, got %d calls", calls)
	}
}

func TestGetModuleClassRemoteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":28,"message":"Class hash not found"}}`))
	}))
	defer srv.Close()

	r := New(Config{StarknetRPCURL: srv.URL}, nil)
	_, err := r.GetModuleClass(context.Background(), [32]byte{9}, "")
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.ModuleNotFound {
		t.Fatalf("expected ModuleNotFound, got %v", err)
	}
}

func TestGetModuleClassNoRPCConfigured(t *testing.T) {
	r := New(Config{}, nil)
	_, err := r.GetModuleClass(context.Background(), [32]byte{9}, "")
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.ModuleNotFound {
		t.Fatalf("expected ModuleNotFound, got %v", err)
	}
}
