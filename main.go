// Copyright 2025 Certen Protocol
//
// Command hdp-preprocessor wires C1-C9 into a single query run: load
// config, open one EVMProvider per chain a query touches, read the task
// vector from a JSON file, compile it, invoke the external prover, and
// write program_input.json / batch_proof.json. The CLI surface itself is
// unspecified (spec.md section 1 Non-goals); this follows the teacher's
// main.go shape — flag parsing, config.Load, signal-aware shutdown, an
// optional metrics endpoint — scaled down to one query per invocation rather
// than a long-running validator process.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/hdp-xyz/preprocessor/pkg/chainid"
	"github.com/hdp-xyz/preprocessor/pkg/config"
	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/indexer"
	"github.com/hdp-xyz/preprocessor/pkg/kvdb"
	"github.com/hdp-xyz/preprocessor/pkg/metrics"
	"github.com/hdp-xyz/preprocessor/pkg/prover"
	"github.com/hdp-xyz/preprocessor/pkg/provider"
	"github.com/hdp-xyz/preprocessor/pkg/query"
	"github.com/hdp-xyz/preprocessor/pkg/registry"
	"github.com/hdp-xyz/preprocessor/pkg/task"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		tasksPath      = flag.String("tasks", "", "path to a JSON array of task.TaskEnvelope")
		chainsFile     = flag.String("chains-file", "", "optional multi-chain RPC overrides YAML (config.ChainsFile)")
		cairoFormat    = flag.Bool("cairo-format", false, "emit program_input.json in field-element-packed form")
		outDir         = flag.String("out", ".", "directory to write program_input.json/batch_proof.json into")
		registryDBPath = flag.String("registry-db", "", "GoLevelDB directory for the module bytecode cache (disabled if empty)")
		metricsAddr    = flag.String("metrics-addr", "", "address to serve /metrics on (disabled if empty)")
	)
	flag.Parse()

	if *tasksPath == "" {
		log.Fatal("-tasks is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	var chains *config.ChainsFile
	if *chainsFile != "" {
		chains, err = config.LoadChainsFile(*chainsFile)
		if err != nil {
			log.Fatalf("load chains file: %v", err)
		}
	}
	chains.Override(cfg)

	tasks, err := loadTasks(*tasksPath)
	if err != nil {
		log.Fatalf("load tasks: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("shutting down, canceling in-flight provider requests...")
		cancel()
	}()

	if *metricsAddr != "" {
		go func() {
			log.Printf("serving metrics on %s/metrics", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, metrics.Handler()); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	providers, err := buildProviders(ctx, cfg, chains)
	if err != nil {
		log.Fatalf("build providers: %v", err)
	}
	defer func() {
		for _, p := range providers {
			p.Close()
		}
	}()

	var cache *registry.Cache
	if *registryDBPath != "" {
		db, err := dbm.NewGoLevelDB("module-registry", *registryDBPath)
		if err != nil {
			log.Fatalf("open registry db: %v", err)
		}
		cache = registry.NewCache(kvdb.NewKVAdapter(db))
	}
	reg := registry.New(registry.Config{StarknetRPCURL: cfg.StarknetRPCURL}, cache)

	proverInvoker := prover.New(prover.Config{
		DryRunCairoPath:   cfg.DryRunCairoPath,
		SoundRunCairoPath: cfg.SoundRunCairoPath,
	})

	format := query.FormatRaw
	if *cairoFormat {
		format = query.FormatCairo
	}

	runner := query.NewRunner(query.Config{
		Providers:         providers,
		Registry:          reg,
		Prover:            proverInvoker,
		Format:            format,
		SaveFetchKeysFile: cfg.SaveFetchKeysFile,
	})

	compiled, sound, err := runner.Run(ctx, tasks)
	if err != nil {
		exitWith(err)
	}
	log.Printf("query proved in %d prover steps", sound.Steps)

	if err := writeOutputs(*outDir, compiled); err != nil {
		log.Fatalf("write outputs: %v", err)
	}
	log.Printf("wrote program_input.json and batch_proof.json to %s", *outDir)
}

// buildProviders opens one EVMProvider, wired to a C2 indexer client, per
// chain referenced either by the primary env-derived config or by the
// multi-chain overrides file (spec.md section 5: "the provider holds one
// HTTP client per chain").
func buildProviders(ctx context.Context, cfg *config.Config, chains *config.ChainsFile) (map[chainid.ChainId]*provider.EVMProvider, error) {
	out := make(map[chainid.ChainId]*provider.EVMProvider)

	add := func(id chainid.ChainId, rpcURL string, maxRequests, retryCount int) error {
		p, err := provider.New(ctx, provider.Config{
			ChainId:     id,
			RPCURL:      rpcURL,
			MaxRequests: maxRequests,
			RetryCount:  retryCount,
		})
		if err != nil {
			return err
		}
		idx := indexer.New(indexer.Config{
			BaseURL:         cfg.IndexerBaseURL,
			DeployedOnChain: id,
			Timeout:         cfg.RPCTimeout,
		})
		out[id] = p.WithIndexer(idx)
		return nil
	}

	if err := add(cfg.ChainId, cfg.RPCURL, cfg.MaxRequests, cfg.RetryCount); err != nil {
		return nil, err
	}

	if chains != nil {
		for id, override := range chains.Chains {
			if id == cfg.ChainId {
				continue
			}
			maxReq := override.MaxRequests
			if maxReq <= 0 {
				maxReq = cfg.MaxRequests
			}
			retries := override.RetryCount
			if retries <= 0 {
				retries = cfg.RetryCount
			}
			if err := add(id, override.RPCURL, maxReq, retries); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// loadTasks decodes path's JSON array into a task vector. Go's default
// struct encoding (exported field names, arrays for fixed-size byte
// fields) is the wire format, since the CLI input surface is unspecified.
func loadTasks(path string) ([]task.TaskEnvelope, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var tasks []task.TaskEnvelope
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%s contains no tasks", path)
	}
	return tasks, nil
}

func writeOutputs(dir string, compiled query.CompiledQuery) error {
	programInputBytes, err := compiled.ProgramInput.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "program_input.json"), programInputBytes, 0o644); err != nil {
		return err
	}

	batchProof := query.BuildBatchProof(compiled.TaskRoot, compiled.ResultRoot, compiled.ProcessedTasks)
	batchProofBytes, err := batchProof.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "batch_proof.json"), batchProofBytes, 0o644)
}

// exitWith maps an hdperrors.Error to spec.md section 6's exit codes (0
// success, 1 user error, 2 environment error, 3 consistency error) before
// terminating the process.
func exitWith(err error) {
	log.Printf("query failed: %v", err)
	kind, ok := hdperrors.KindOf(err)
	if !ok {
		os.Exit(1)
	}
	os.Exit(kind.ExitCode())
}
