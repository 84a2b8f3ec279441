// Copyright 2025 Certen Protocol
//
// C7 module registry: resolves a program_hash to compiled prover
// bytecode via a Starknet JSON-RPC class lookup (spec.md section 4.7),
// with a local_class_path override and a persistent bytecode cache. The
// cache wrapping mirrors pkg/kvdb's CometBFT dbm.DB adapter, generalized
// from a ledger KV store to a program_hash-to-bytecode cache.

package registry

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/kvdb"
)

// Bytecode is the opaque compiled class payload returned by the remote
// registry or read from a local_class_path override. Its internal format
// is the prover toolchain's concern, not this system's (spec.md section 1
// Non-goals: "the module bytecode format produced by the prover's toolchain").
type Bytecode []byte

// Cache persists program_hash -> Bytecode lookups across queries.
type Cache struct {
	adapter *kvdb.KVAdapter
}

// NewCache wraps an already-open CometBFT-style KV store as a bytecode
// cache.
func NewCache(adapter *kvdb.KVAdapter) *Cache {
	return &Cache{adapter: adapter}
}

func (c *Cache) get(programHash [32]byte) (Bytecode, bool) {
	if c == nil || c.adapter == nil {
		return nil, false
	}
	v, err := c.adapter.Get(programHash[:])
	if err != nil || v == nil {
		return nil, false
	}
	return Bytecode(v), true
}

func (c *Cache) put(programHash [32]byte, code Bytecode) {
	if c == nil || c.adapter == nil {
		return
	}
	_ = c.adapter.Set(programHash[:], code)
}

// Config configures a Registry.
type Config struct {
	StarknetRPCURL string
}

// Registry resolves program hashes to bytecode, per spec.md section 4.7.
type Registry struct {
	rpcURL string
	http   *http.Client
	cache  *Cache
}

// New builds a Registry. cache may be nil to disable caching.
func New(cfg Config, cache *Cache) *Registry {
	return &Registry{
		rpcURL: cfg.StarknetRPCURL,
		http:   &http.Client{},
		cache:  cache,
	}
}

// GetModuleClass implements spec.md section 4.7:
// get_module_class(program_hash) -> Bytecode. localClassPath, when
// non-empty, overrides the remote fetch; per spec.md section 9's Open
// Question resolution, if both a local path and a program hash are
// given, the class is read locally and its hash must equal
// programHash — neither source is silently preferred over the other.
func (r *Registry) GetModuleClass(ctx context.Context, programHash [32]byte, localClassPath string) (Bytecode, error) {
	if localClassPath != "" {
		raw, err := os.ReadFile(localClassPath)
		if err != nil {
			return nil, hdperrors.Wrap(hdperrors.ModuleNotFound, localClassPath, err)
		}
		var computed [32]byte
		copy(computed[:], crypto.Keccak256(raw))
		if computed != programHash {
			return nil, hdperrors.New(hdperrors.ClassHashMismatch, fmt.Sprintf("local_class_path %s hashes to %x, expected %x", localClassPath, computed, programHash))
		}
		return Bytecode(raw), nil
	}

	if code, ok := r.get(programHash); ok {
		return code, nil
	}

	code, err := r.fetchRemote(ctx, programHash)
	if err != nil {
		return nil, err
	}
	r.put(programHash, code)
	return code, nil
}

func (r *Registry) get(programHash [32]byte) (Bytecode, bool) {
	if r.cache == nil {
		return nil, false
	}
	return r.cache.get(programHash)
}

func (r *Registry) put(programHash [32]byte, code Bytecode) {
	if r.cache == nil {
		return
	}
	r.cache.put(programHash, code)
}

// starknetRPCRequest/Response are the minimal JSON-RPC 2.0 envelopes for
// starknet_getClass (spec.md section 6: "pathfinder_getProof ... (Starknet
// chains)" names the sibling family of calls this registry's class lookup
// belongs to).
type starknetRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type starknetRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r *Registry) fetchRemote(ctx context.Context, programHash [32]byte) (Bytecode, error) {
	if r.rpcURL == "" {
		return nil, hdperrors.New(hdperrors.ModuleNotFound, "no Starknet RPC URL configured")
	}

	reqBody, err := json.Marshal(starknetRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "starknet_getClass",
		Params:  []interface{}{"latest", "0x" + hex.EncodeToString(programHash[:])},
	})
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "starknet_getClass request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.rpcURL, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.ProviderError, "starknet_getClass request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(httpReq)
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.ProviderError, "starknet_getClass request", err)
	}
	defer resp.Body.Close()

	var parsed starknetRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "starknet_getClass response", err)
	}
	if parsed.Error != nil {
		return nil, hdperrors.New(hdperrors.ModuleNotFound, fmt.Sprintf("program_hash %x: %s", programHash, parsed.Error.Message))
	}
	if len(parsed.Result) == 0 {
		return nil, hdperrors.New(hdperrors.ModuleNotFound, fmt.Sprintf("program_hash %x not found", programHash))
	}
	return Bytecode(parsed.Result), nil
}
