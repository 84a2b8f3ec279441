package prover

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
)

func TestStripHexPrefix(t *testing.T) {
	if got := stripHexPrefix("0xABCD"); got != "ABCD" {
		t.Errorf("got %q", got)
	}
	if got := stripHexPrefix("ABCD"); got != "ABCD" {
		t.Errorf("got %q", got)
	}
}

func TestDecodeHash32PadsShortInput(t *testing.T) {
	got, err := decodeHash32("0xabcd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[31] != 0xcd || got[30] != 0xab {
		t.Errorf("unexpected padded hash: %x", got)
	}
}

func TestInvokeMissingSoundPathConfig(t *testing.T) {
	iv := New(Config{})
	_, err := iv.Invoke(context.Background(), []byte("{}"), [32]byte{}, [32]byte{})
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.MissingChainConfig {
		t.Fatalf("expected MissingChainConfig, got %v", err)
	}
}

func TestInvokeDryRunMissingPathConfig(t *testing.T) {
	iv := New(Config{})
	_, err := iv.InvokeDryRun(context.Background(), []byte("{}"))
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.MissingChainConfig {
		t.Fatalf("expected MissingChainConfig, got %v", err)
	}
}

// writeFakeBinary writes an executable shell script standing in for the
// external prover: it prints the steps line the invoker scans for, then
// writes a fixed payload to whichever side-channel path its caller asks
// for via --identified_keys_file or implicitly to cfg.WorkDir's sibling
// paths the invoker already names on the command line.
func writeFakeBinary(t *testing.T, script string) string {
	t.Helper()
	path := t.TempDir() + "/fake-prover.sh"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return path
}

func TestInvokeDryRunParsesIdentifiedKeysFile(t *testing.T) {
	script := `#!/bin/sh
echo "Number of steps: 123"
for i in "$@"; do
  :
done
# find the --identified_keys_file argument and write to it
prev=""
for a in "$@"; do
  if [ "$prev" = "--identified_keys_file" ]; then
    cat > "$a" <<'EOF'
[{"fetch_keys":[],"result":"0x1","program_hash":"0x2"}]
EOF
  fi
  prev="$a"
done
`
	bin := writeFakeBinary(t, script)
	iv := New(Config{DryRunCairoPath: bin, WorkDir: t.TempDir()})

	entries, err := iv.InvokeDryRun(context.Background(), []byte(`{"modules":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Result != "0x1" || entries[0].ProgramHash != "0x2" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestInvokeSoundCrossChecksRoots(t *testing.T) {
	script := `#!/bin/sh
echo "Number of steps: 7"
prev=""
for a in "$@"; do
  if [ "$prev" = "--cairo_pie_output" ]; then
    dir=$(dirname "$a")
    cat > "$dir/side_channel.json" <<'EOF'
{"tasks_root":"0x0100000000000000000000000000000000000000000000000000000000000000","results_root":"0x02","results":["0x10"]}
EOF
  fi
  prev="$a"
done
`
	bin := writeFakeBinary(t, script)
	iv := New(Config{SoundRunCairoPath: bin, WorkDir: t.TempDir()})

	var wantTasksRoot [32]byte
	wantTasksRoot[0] = 0x01
	var wantResultsRoot [32]byte
	wantResultsRoot[31] = 0x02

	res, err := iv.Invoke(context.Background(), []byte("{}"), wantTasksRoot, wantResultsRoot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Steps != 7 {
		t.Errorf("got %d steps, want 7", res.Steps)
	}
	if len(res.Results) != 1 || res.Results[0] != "0x10" {
		t.Errorf("unexpected results: %v", res.Results)
	}
}

func TestInvokeSoundRootMismatch(t *testing.T) {
	script := `#!/bin/sh
echo "Number of steps: 1"
prev=""
for a in "$@"; do
  if [ "$prev" = "--cairo_pie_output" ]; then
    dir=$(dirname "$a")
    cat > "$dir/side_channel.json" <<'EOF'
{"tasks_root":"0xff","results_root":"0xff","results":[]}
EOF
  fi
  prev="$a"
done
`
	bin := writeFakeBinary(t, script)
	iv := New(Config{SoundRunCairoPath: bin, WorkDir: t.TempDir()})

	_, err := iv.Invoke(context.Background(), []byte("{}"), [32]byte{0x01}, [32]byte{0x02})
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.ProverMismatch {
		t.Fatalf("expected ProverMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "tasks_root") {
		t.Errorf("expected error to name tasks_root, got %v", err)
	}
}

func TestInvokeNonZeroExitIsProverAborted(t *testing.T) {
	bin := writeFakeBinary(t, "#!/bin/sh\necho 'boom' >&2\nexit 3\n")
	iv := New(Config{SoundRunCairoPath: bin, WorkDir: t.TempDir()})

	_, err := iv.Invoke(context.Background(), []byte("{}"), [32]byte{}, [32]byte{})
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.ProverAborted {
		t.Fatalf("expected ProverAborted, got %v", err)
	}
}
