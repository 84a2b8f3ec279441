// Copyright 2025 Certen Protocol
//
// Runner is the top-level orchestrator wiring every component together:
// for each task it dispatches to the datalake branch (C4 using C2+C3) or
// the module branch (C6 using C7 then C3), merges the resulting proofs
// into one bundle, attaches commitments (C8), and invokes the prover
// (C9) over the assembled program input (spec.md section 2's dataflow
// diagram). Modeled on the teacher's unified per-request orchestration
// style: one struct holding every downstream dependency, one method per
// logical phase, errors propagated rather than swallowed at any phase.

package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/hdp-xyz/preprocessor/pkg/aggregate"
	"github.com/hdp-xyz/preprocessor/pkg/chainid"
	"github.com/hdp-xyz/preprocessor/pkg/commitment"
	"github.com/hdp-xyz/preprocessor/pkg/datalake"
	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/module"
	"github.com/hdp-xyz/preprocessor/pkg/prover"
	"github.com/hdp-xyz/preprocessor/pkg/provider"
	"github.com/hdp-xyz/preprocessor/pkg/registry"
	"github.com/hdp-xyz/preprocessor/pkg/task"
)

// Config configures a Runner. Providers must hold one EVMProvider per
// chain any task in the query touches (spec.md section 5: "the provider
// holds one HTTP client per chain").
type Config struct {
	Providers         map[chainid.ChainId]*provider.EVMProvider
	Registry          *registry.Registry
	Prover            *prover.Invoker
	Format            Format
	SaveFetchKeysFile string
}

var runnerLog = log.New(os.Stderr, "[query] ", log.LstdFlags)

// Runner compiles and proves one query's task vector.
type Runner struct {
	cfg Config
}

func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

func (r *Runner) providerFor(chain chainid.ChainId) (*provider.EVMProvider, error) {
	p, ok := r.cfg.Providers[chain]
	if !ok {
		return nil, hdperrors.New(hdperrors.MissingChainConfig, fmt.Sprintf("no provider configured for chain %s", chain))
	}
	return p, nil
}

// CompiledQuery is the fully-assembled, commitment-attached state of one
// query, ready to serialize as program_input.json and hand to C9.
type CompiledQuery struct {
	Commitments   [][32]byte
	Results       [][32]byte
	ProcessedTasks []commitment.ProcessedTask
	TaskRoot      [32]byte
	ResultRoot    [32]byte
	ProgramInput  ProgramInput
}

// Compile runs every task's C4/C6 branch, merges proofs, and attaches C8
// commitments. It does not invoke the prover (see Run for the full
// pipeline including C9).
func (r *Runner) Compile(ctx context.Context, tasks []task.TaskEnvelope) (CompiledQuery, error) {
	if err := module.RequireSingleModule(tasks); err != nil {
		return CompiledQuery{}, err
	}

	bundle := newProofBundle()
	commitments := make([][32]byte, len(tasks))
	results := make([][32]byte, len(tasks))

	for i, t := range tasks {
		commit, err := t.Commit()
		if err != nil {
			return CompiledQuery{}, err
		}
		commitments[i] = commit

		switch {
		case t.DatalakeCompute != nil:
			result, err := r.compileDatalakeTask(ctx, bundle, *t.DatalakeCompute)
			if err != nil {
				return CompiledQuery{}, err
			}
			results[i] = result

		case t.Module != nil:
			result, err := r.runModuleTask(ctx, bundle, *t.Module)
			if err != nil {
				return CompiledQuery{}, err
			}
			results[i] = result

		default:
			return CompiledQuery{}, task.UnknownTaskVariant()
		}
	}

	taskRoot, resultRoot, processed, err := commitment.BuildCommitments(commitments, results)
	if err != nil {
		return CompiledQuery{}, err
	}

	programInput, err := BuildProgramInput(r.cfg.Format, bundle, commitments, results)
	if err != nil {
		return CompiledQuery{}, err
	}

	return CompiledQuery{
		Commitments:    commitments,
		Results:        results,
		ProcessedTasks: processed,
		TaskRoot:       taskRoot,
		ResultRoot:     resultRoot,
		ProgramInput:   programInput,
	}, nil
}

// compileDatalakeTask implements the datalake branch: C4 expands the
// datalake against its chain's C3 provider, then C5 aggregates the
// resulting value set into the task's committed result.
func (r *Runner) compileDatalakeTask(ctx context.Context, bundle ProofBundle, dc task.DatalakeCompute) ([32]byte, error) {
	chain, err := dc.Datalake.ChainIdOf()
	if err != nil {
		return [32]byte{}, err
	}
	p, err := r.providerFor(chain)
	if err != nil {
		return [32]byte{}, err
	}

	compiler := datalake.Compiler{Provider: p}
	fetched, err := compiler.Compile(ctx, dc.Datalake)
	if err != nil {
		return [32]byte{}, err
	}
	bundle.mergeDatalake(chain, fetched)

	value, err := aggregate.Apply(dc.Computation, fetched.Values)
	if err != nil {
		return [32]byte{}, err
	}
	return value.Bytes32(), nil
}

// runModuleTask implements the module branch: C6 dry-runs the module to
// discover its fetch keys and result, then C3 fetches the proofs backing
// those keys on each chain they span.
func (r *Runner) runModuleTask(ctx context.Context, bundle ProofBundle, m task.Module) ([32]byte, error) {
	dryRunner := module.DryRunner{Registry: r.cfg.Registry, Prover: r.cfg.Prover}
	outcome, err := dryRunner.Run(ctx, m)
	if err != nil {
		return [32]byte{}, err
	}

	if r.cfg.SaveFetchKeysFile != "" {
		if err := saveFetchKeys(r.cfg.SaveFetchKeysFile, outcome.KeysByChain); err != nil {
			return [32]byte{}, err
		}
	}

	for chain, keys := range outcome.KeysByChain {
		if len(keys) == 0 {
			continue
		}
		p, err := r.providerFor(chain)
		if err != nil {
			return [32]byte{}, err
		}
		fetched, err := p.FetchProofsFromKeys(ctx, keys)
		if err != nil {
			return [32]byte{}, err
		}
		bundle.mergeFetched(chain, fetched)
	}

	var out [32]byte
	outcome.Result.FillBytes(out[:])
	return out, nil
}

// Run executes the full pipeline: compile, serialize program_input.json,
// invoke the prover in sound mode, and cross-check its side-channel
// roots against the ones computed here (spec.md section 4.9).
func (r *Runner) Run(ctx context.Context, tasks []task.TaskEnvelope) (CompiledQuery, prover.SoundResult, error) {
	queryID := uuid.New().String()
	runnerLog.Printf("query %s: compiling %d tasks", queryID, len(tasks))

	compiled, err := r.Compile(ctx, tasks)
	if err != nil {
		runnerLog.Printf("query %s: compile failed: %v", queryID, err)
		return CompiledQuery{}, prover.SoundResult{}, err
	}

	programInputBytes, err := compiled.ProgramInput.Marshal()
	if err != nil {
		return CompiledQuery{}, prover.SoundResult{}, hdperrors.Wrap(hdperrors.InvalidEncoding, "program input", err)
	}
	if fingerprint, err := commitment.HashCanonical(compiled.ProgramInput); err == nil {
		runnerLog.Printf("query %s: program_input fingerprint %s", queryID, fingerprint)
	}

	soundResult, err := r.cfg.Prover.Invoke(ctx, programInputBytes, compiled.TaskRoot, compiled.ResultRoot)
	if err != nil {
		runnerLog.Printf("query %s: prover invocation failed: %v", queryID, err)
		return CompiledQuery{}, prover.SoundResult{}, err
	}

	runnerLog.Printf("query %s: done, %d steps", queryID, soundResult.Steps)
	return compiled, soundResult, nil
}

// saveFetchKeys writes the discovered fetch-key set to path for
// inspection (spec.md section 6's SAVE_FETCH_KEYS_FILE env var).
func saveFetchKeys(path string, byChain map[chainid.ChainId][]task.FetchKey) error {
	type entry struct {
		ChainId string          `json:"chain_id"`
		Count   int             `json:"count"`
		Keys    []task.FetchKey `json:"keys"`
	}
	entries := make([]entry, 0, len(byChain))
	for chain, keys := range byChain {
		entries = append(entries, entry{ChainId: string(chain), Count: len(keys), Keys: keys})
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return hdperrors.Wrap(hdperrors.InvalidEncoding, "fetch keys file", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return hdperrors.Wrap(hdperrors.ProverAborted, "fetch keys file", err)
	}
	return nil
}
