// Copyright 2025 Certen Protocol
//
// C6 module dry-runner: executes the prover in discovery mode to learn
// the fetch-key set a Module task needs before any proof is fetched
// (spec.md section 4.6). Grounded on pkg/prover's subprocess plumbing and
// pkg/registry's class resolution; this package is the glue that turns
// their outputs into task.FetchKey values partitioned by chain.

package module

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/hdp-xyz/preprocessor/pkg/chainid"
	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/prover"
	"github.com/hdp-xyz/preprocessor/pkg/registry"
	"github.com/hdp-xyz/preprocessor/pkg/task"
)

// DryRunner resolves a Module task's fetch-key dependencies.
type DryRunner struct {
	Registry *registry.Registry
	Prover   *prover.Invoker
}

// Outcome is the dry-run's verified result: the task result to commit,
// plus its fetch keys partitioned by chain so each partition can be
// handed to the matching C3 provider instance (spec.md section 4.6 step 5).
type Outcome struct {
	Result       *big.Int
	KeysByChain  map[chainid.ChainId][]task.FetchKey
}

// jsonFetchKey is the wire shape the prover's identified_keys_file uses
// for one FetchKey entry — field names chosen to match spec.md section
// 3's tagged-variant fields directly, since this is the boundary with an
// external, non-Go process rather than this system's own wire format.
type jsonFetchKey struct {
	Kind    string `json:"kind"`
	ChainId string `json:"chain_id"`
	Block   uint64 `json:"block"`
	Addr    string `json:"addr,omitempty"`
	Slot    string `json:"slot,omitempty"`
	TxIndex uint64 `json:"tx_index,omitempty"`
}

// Run implements spec.md section 4.6's full protocol for one Module task.
func (d *DryRunner) Run(ctx context.Context, m task.Module) (Outcome, error) {
	bytecode, err := d.Registry.GetModuleClass(ctx, m.ProgramHash, m.LocalClassPath)
	if err != nil {
		return Outcome{}, err
	}

	moduleInput, err := buildModuleInput(m, bytecode)
	if err != nil {
		return Outcome{}, err
	}

	entries, err := d.Prover.InvokeDryRun(ctx, moduleInput)
	if err != nil {
		return Outcome{}, err
	}
	if len(entries) != 1 {
		return Outcome{}, hdperrors.New(hdperrors.ProverMismatch, fmt.Sprintf("expected exactly one dry-run entry, got %d", len(entries)))
	}
	entry := entries[0]

	gotHash, err := decodeFeltHash(entry.ProgramHash)
	if err != nil {
		return Outcome{}, hdperrors.Wrap(hdperrors.InvalidEncoding, "dry-run program_hash", err)
	}
	if gotHash != m.ProgramHash {
		return Outcome{}, hdperrors.New(hdperrors.ClassHashMismatch, fmt.Sprintf("dry-run program_hash %x != task program_hash %x", gotHash, m.ProgramHash))
	}

	result, ok := new(big.Int).SetString(trimHexPrefix(entry.Result), 16)
	if !ok {
		return Outcome{}, hdperrors.New(hdperrors.InvalidEncoding, "dry-run result is not a valid hex integer")
	}

	byChain := make(map[chainid.ChainId][]task.FetchKey)
	for _, raw := range entry.FetchKeys {
		key, err := decodeFetchKey(raw)
		if err != nil {
			return Outcome{}, err
		}
		byChain[key.ChainId] = append(byChain[key.ChainId], key)
	}

	return Outcome{Result: result, KeysByChain: byChain}, nil
}

// VerifyDeterminism re-runs the dry-run and checks the fetch-key set is
// identical to a previously observed Outcome (spec.md section 4.6:
// "if fetch_keys changes across runs with identical inputs, the query is
// ill-formed"). A mismatch is a fatal determinism violation, not a retry
// condition.
func (d *DryRunner) VerifyDeterminism(ctx context.Context, m task.Module, prior Outcome) error {
	again, err := d.Run(ctx, m)
	if err != nil {
		return err
	}
	priorSet, priorCount, err := hashKeySet(prior.KeysByChain)
	if err != nil {
		return err
	}
	againSet, againCount, err := hashKeySet(again.KeysByChain)
	if err != nil {
		return err
	}
	if priorSet != againSet || priorCount != againCount {
		return hdperrors.New(hdperrors.ProverMismatch, "dry-run fetch-key set is not deterministic across runs")
	}
	return nil
}

func hashKeySet(byChain map[chainid.ChainId][]task.FetchKey) ([32]byte, int, error) {
	seen := make(map[[32]byte]struct{})
	for _, keys := range byChain {
		for _, k := range keys {
			h, err := k.Hash()
			if err != nil {
				return [32]byte{}, 0, err
			}
			seen[h] = struct{}{}
		}
	}
	var out [32]byte
	for h := range seen {
		for i := range out {
			out[i] ^= h[i]
		}
	}
	return out, len(seen), nil
}

// buildModuleInput assembles the {identified_keys_file, [ProcessedModule]}
// payload spec.md section 4.6 step 2 names, as JSON (the prover's input
// format is opaque to this system beyond that shape).
func buildModuleInput(m task.Module, bytecode registry.Bytecode) ([]byte, error) {
	type processedModule struct {
		Inputs   []string `json:"inputs"`
		Bytecode string   `json:"bytecode"`
	}
	inputs := make([]string, len(m.Inputs))
	for i, in := range m.Inputs {
		inputs[i] = "0x" + hex.EncodeToString(in.Value[:])
	}
	return json.Marshal(struct {
		Modules []processedModule `json:"modules"`
	}{
		Modules: []processedModule{{
			Inputs:   inputs,
			Bytecode: "0x" + hex.EncodeToString(bytecode),
		}},
	})
}

func decodeFetchKey(raw json.RawMessage) (task.FetchKey, error) {
	var jk jsonFetchKey
	if err := json.Unmarshal(raw, &jk); err != nil {
		return task.FetchKey{}, hdperrors.Wrap(hdperrors.InvalidEncoding, "fetch key", err)
	}
	chainNum, ok := new(big.Int).SetString(jk.ChainId, 10)
	var chain chainid.ChainId
	var err error
	if ok {
		chain, err = chainid.FromNumeric(chainNum.Uint64())
	} else if n, perr := new(big.Int).SetString(trimHexPrefix(jk.ChainId), 16); perr {
		chain, err = chainid.FromNumeric(n.Uint64())
	} else {
		return task.FetchKey{}, hdperrors.New(hdperrors.InvalidEncoding, "fetch key: unparseable chain_id")
	}
	if err != nil {
		return task.FetchKey{}, err
	}

	switch jk.Kind {
	case "header":
		return task.HeaderKey(chain, jk.Block), nil
	case "account":
		return task.AccountKey(chain, jk.Block, decodeAddr(jk.Addr)), nil
	case "storage":
		return task.StorageKey(chain, jk.Block, decodeAddr(jk.Addr), decodeSlot(jk.Slot)), nil
	case "tx":
		return task.TxKey(chain, jk.Block, jk.TxIndex), nil
	case "tx_receipt":
		return task.TxReceiptKey(chain, jk.Block, jk.TxIndex), nil
	default:
		return task.FetchKey{}, hdperrors.New(hdperrors.UnknownVariant, fmt.Sprintf("fetch key kind %q", jk.Kind))
	}
}

func decodeAddr(s string) [20]byte {
	var out [20]byte
	b, _ := hex.DecodeString(trimHexPrefix(s))
	if len(b) > 20 {
		b = b[len(b)-20:]
	}
	copy(out[20-len(b):], b)
	return out
}

func decodeSlot(s string) [32]byte {
	var out [32]byte
	b, _ := hex.DecodeString(trimHexPrefix(s))
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}

func decodeFeltHash(s string) ([32]byte, error) {
	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// RequireSingleModule implements spec.md section 4.6's "only one module
// per query is supported initially; multiple modules of differing
// program_hash must error".
func RequireSingleModule(tasks []task.TaskEnvelope) error {
	var programHash *[32]byte
	for _, t := range tasks {
		if t.Module == nil {
			continue
		}
		if programHash == nil {
			h := t.Module.ProgramHash
			programHash = &h
			continue
		}
		if *programHash != t.Module.ProgramHash {
			return hdperrors.New(hdperrors.UnknownVariant, "query contains multiple modules with differing program_hash")
		}
	}
	return nil
}
