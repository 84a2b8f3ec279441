// Copyright 2025 Certen Protocol
//
// C9 processor invoker: serializes the assembled program input, spawns
// the external prover binary, and parses its stdout plus a side-channel
// JSON file (spec.md section 4.9). Subprocess invocation follows the
// teacher's go_verifier.go pattern (exec.CommandContext, *exec.ExitError
// inspection for a structured failure instead of a bare error string),
// generalized from "run a verifier over stdin" to "run a prover with
// file-based input/output and a side-channel result file".

package prover

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/metrics"
)

// Mode selects which prover binary path to invoke (spec.md section 6's
// DRY_RUN_CAIRO_PATH / SOUND_RUN_CAIRO_PATH env vars).
type Mode int

const (
	ModeDryRun Mode = iota
	ModeSound
)

// Config configures one Invoker.
type Config struct {
	DryRunCairoPath   string
	SoundRunCairoPath string
	WorkDir           string // base dir for temp files; os.TempDir() if empty.
}

// Invoker runs the external prover subprocess and manages its temp files.
type Invoker struct {
	cfg Config
}

func New(cfg Config) *Invoker {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &Invoker{cfg: cfg}
}

var stepsPattern = regexp.MustCompile(`Number of steps:\s*(\d+)`)

// SideChannel is the fixed-path JSON file the sound-mode prover writes
// (spec.md section 4.9: "{tasks_root, results_root, results[]}").
type SideChannel struct {
	TasksRoot   string   `json:"tasks_root"`
	ResultsRoot string   `json:"results_root"`
	Results     []string `json:"results"`
}

// SoundResult is the outcome of a sound-mode invocation, already
// cross-checked against the pre-processor's own task/result roots.
type SoundResult struct {
	Steps   int
	Results []string
}

// Invoke runs the prover in sound mode: writes programInput to a temp
// file, spawns the binary with --program_input/--cairo_pie_output
// /--print_output, and cross-checks the side-channel roots against
// wantTasksRoot/wantResultsRoot (spec.md: "on prover completion,
// cross-check and fail if either disagrees"). Temp files are removed
// whether the call succeeds, fails, or ctx is canceled.
func (iv *Invoker) Invoke(ctx context.Context, programInput []byte, wantTasksRoot, wantResultsRoot [32]byte) (SoundResult, error) {
	if iv.cfg.SoundRunCairoPath == "" {
		return SoundResult{}, hdperrors.New(hdperrors.MissingChainConfig, "SOUND_RUN_CAIRO_PATH not configured")
	}

	files, err := iv.newFileSet()
	if err != nil {
		return SoundResult{}, err
	}
	defer files.cleanup()

	if err := os.WriteFile(files.programInput, programInput, 0o600); err != nil {
		return SoundResult{}, hdperrors.Wrap(hdperrors.ProverAborted, "writing program input", err)
	}

	steps, err := iv.run(ctx, "sound", iv.cfg.SoundRunCairoPath, []string{
		"--program_input", files.programInput,
		"--cairo_pie_output", files.cairoPie,
		"--print_output",
	})
	if err != nil {
		return SoundResult{}, err
	}

	raw, err := os.ReadFile(files.sideChannel)
	if err != nil {
		return SoundResult{}, hdperrors.Wrap(hdperrors.ProverMismatch, "missing side-channel file", err)
	}
	var sc SideChannel
	if err := json.Unmarshal(raw, &sc); err != nil {
		return SoundResult{}, hdperrors.Wrap(hdperrors.ProverMismatch, "side-channel file", err)
	}

	gotTasksRoot, err := decodeHash32(sc.TasksRoot)
	if err != nil {
		return SoundResult{}, hdperrors.Wrap(hdperrors.ProverMismatch, "tasks_root", err)
	}
	gotResultsRoot, err := decodeHash32(sc.ResultsRoot)
	if err != nil {
		return SoundResult{}, hdperrors.Wrap(hdperrors.ProverMismatch, "results_root", err)
	}
	if gotTasksRoot != wantTasksRoot {
		return SoundResult{}, hdperrors.New(hdperrors.ProverMismatch, fmt.Sprintf("prover tasks_root %x != computed %x", gotTasksRoot, wantTasksRoot))
	}
	if gotResultsRoot != wantResultsRoot {
		return SoundResult{}, hdperrors.New(hdperrors.ProverMismatch, fmt.Sprintf("prover results_root %x != computed %x", gotResultsRoot, wantResultsRoot))
	}

	return SoundResult{Steps: steps, Results: sc.Results}, nil
}

// DryRunEntry is one element of the dry-run identified_keys_file array
// (spec.md section 4.6: "[ {fetch_keys: [FetchKey], result: U256,
// program_hash: Felt} ]"). FetchKeys are kept as opaque JSON here; C6
// decodes them into task.FetchKey once the chain they belong to is known.
type DryRunEntry struct {
	FetchKeys   []json.RawMessage `json:"fetch_keys"`
	Result      string            `json:"result"`
	ProgramHash string            `json:"program_hash"`
}

// InvokeDryRun runs the prover in discovery mode (spec.md section 4.6
// steps 2-3): it writes moduleInput, spawns the dry-run binary, and
// returns the parsed identified_keys_file contents.
func (iv *Invoker) InvokeDryRun(ctx context.Context, moduleInput []byte) ([]DryRunEntry, error) {
	if iv.cfg.DryRunCairoPath == "" {
		return nil, hdperrors.New(hdperrors.MissingChainConfig, "DRY_RUN_CAIRO_PATH not configured")
	}

	files, err := iv.newFileSet()
	if err != nil {
		return nil, err
	}
	defer files.cleanup()

	if err := os.WriteFile(files.programInput, moduleInput, 0o600); err != nil {
		return nil, hdperrors.Wrap(hdperrors.ProverAborted, "writing dry-run input", err)
	}

	if _, err := iv.run(ctx, "dry_run", iv.cfg.DryRunCairoPath, []string{
		"--program_input", files.programInput,
		"--cairo_pie_output", files.cairoPie,
		"--print_output",
		"--identified_keys_file", files.identifiedKeys,
	}); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(files.identifiedKeys)
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.ProverMismatch, "missing identified_keys_file", err)
	}
	var entries []DryRunEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, hdperrors.Wrap(hdperrors.ProverMismatch, "identified_keys_file", err)
	}
	return entries, nil
}

// run spawns the prover binary and returns the "Number of steps" value
// parsed from stdout; it only carries progress information (spec.md
// section 9: "use stdout only for progress"), never machine-readable
// results.
func (iv *Invoker) run(ctx context.Context, mode, binary string, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		metrics.ProverInvocationsTotal.WithLabelValues(mode, "aborted").Inc()
		return 0, hdperrors.Wrap(hdperrors.ProverAborted, "prover stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		metrics.ProverInvocationsTotal.WithLabelValues(mode, "aborted").Inc()
		return 0, hdperrors.Wrap(hdperrors.ProverAborted, "prover start", err)
	}

	steps := 0
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if m := stepsPattern.FindStringSubmatch(line); m != nil {
			steps, _ = strconv.Atoi(m[1])
		}
	}

	if err := cmd.Wait(); err != nil {
		metrics.ProverInvocationsTotal.WithLabelValues(mode, "aborted").Inc()
		if exitErr, ok := err.(*exec.ExitError); ok {
			return 0, hdperrors.New(hdperrors.ProverAborted, fmt.Sprintf("prover exited %d: %s", exitErr.ExitCode(), stderr.String()))
		}
		return 0, hdperrors.Wrap(hdperrors.ProverAborted, "prover execution", err)
	}
	metrics.ProverInvocationsTotal.WithLabelValues(mode, "ok").Inc()
	metrics.ProverStepsLast.Set(float64(steps))
	return steps, nil
}

type fileSet struct {
	programInput   string
	cairoPie       string
	sideChannel    string
	identifiedKeys string
}

func (iv *Invoker) newFileSet() (fileSet, error) {
	dir, err := os.MkdirTemp(iv.cfg.WorkDir, "hdp-prover-")
	if err != nil {
		return fileSet{}, hdperrors.Wrap(hdperrors.ProverAborted, "temp dir", err)
	}
	return fileSet{
		programInput:   filepath.Join(dir, "program_input.json"),
		cairoPie:       filepath.Join(dir, "cairo.pie"),
		sideChannel:    filepath.Join(dir, "side_channel.json"),
		identifiedKeys: filepath.Join(dir, "identified_keys.json"),
	}, nil
}

// cleanup removes every temp file's parent directory. Called
// unconditionally on return from Invoke/InvokeDryRun, matching spec.md
// section 5's "partial files ... must be removed on cancellation or on
// any terminal error" — and equally on success, since nothing downstream
// needs them once parsed.
func (f fileSet) cleanup() {
	os.RemoveAll(filepath.Dir(f.programInput))
}

func decodeHash32(s string) ([32]byte, error) {
	s = stripHexPrefix(s)
	raw, err := hex.DecodeString(s)
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	if len(raw) > 32 {
		raw = raw[len(raw)-32:]
	}
	copy(out[32-len(raw):], raw)
	return out, nil
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
