package module

import (
	"encoding/json"
	"testing"

	"github.com/hdp-xyz/preprocessor/pkg/chainid"
	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/task"
)

func TestTrimHexPrefix(t *testing.T) {
	cases := map[string]string{
		"0xdeadbeef": "deadbeef",
		"0XDEADBEEF": "DEADBEEF",
		"deadbeef":   "deadbeef",
		"":           "",
	}
	for in, want := range cases {
		if got := trimHexPrefix(in); got != want {
			t.Errorf("trimHexPrefix(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestDecodeAddrLeftPads(t *testing.T) {
	got := decodeAddr("0xabcd")
	want := [20]byte{}
	want[18] = 0xab
	want[19] = 0xcd
	if got != want {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestDecodeFeltHash(t *testing.T) {
	h, err := decodeFeltHash("0x" + "11223344556677889900aabbccddeeff11223344556677889900aabbccddee")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h[0] != 0x00 || h[1] != 0x11 || h[31] != 0xee {
		t.Errorf("unexpected decoded hash: %x", h)
	}
}

func TestDecodeFetchKeyHeader(t *testing.T) {
	raw, _ := json.Marshal(map[string]interface{}{
		"kind":     "header",
		"chain_id": "11155111",
		"block":    100,
	})
	key, err := decodeFetchKey(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := task.HeaderKey(chainid.EthereumSepolia, 100)
	if key != want {
		t.Errorf("got %+v, want %+v", key, want)
	}
}

func TestDecodeFetchKeyUnknownKind(t *testing.T) {
	raw, _ := json.Marshal(map[string]interface{}{
		"kind":     "nonsense",
		"chain_id": "11155111",
		"block":    1,
	})
	_, err := decodeFetchKey(raw)
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.UnknownVariant {
		t.Fatalf("expected UnknownVariant, got %v", err)
	}
}

func TestDecodeFetchKeyBadChainId(t *testing.T) {
	raw, _ := json.Marshal(map[string]interface{}{
		"kind":     "header",
		"chain_id": "not-a-number",
		"block":    1,
	})
	_, err := decodeFetchKey(raw)
	if err == nil {
		t.Fatal("expected an error for an unparseable chain_id")
	}
}

func TestBuildModuleInputCarriesAllInputs(t *testing.T) {
	m := task.Module{
		ProgramHash: [32]byte{1},
		Inputs: []task.ModuleInput{
			{Visibility: task.Public, Value: [32]byte{0xaa}},
			{Visibility: task.Private, Value: [32]byte{0xbb}},
		},
	}
	raw, err := buildModuleInput(m, []byte{0xde, 0xad})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Modules []struct {
			Inputs   []string `json:"inputs"`
			Bytecode string   `json:"bytecode"`
		} `json:"modules"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Modules) != 1 {
		t.Fatalf("expected exactly one module entry, got %d", len(decoded.Modules))
	}
	// buildModuleInput carries every ModuleInput (public and private alike)
	// to the prover — only the task commitment filters by visibility.
	if len(decoded.Modules[0].Inputs) != 2 {
		t.Errorf("expected both inputs in the prover payload, got %d", len(decoded.Modules[0].Inputs))
	}
	if decoded.Modules[0].Bytecode != "0xdead" {
		t.Errorf("got bytecode %q, want 0xdead", decoded.Modules[0].Bytecode)
	}
}

func TestHashKeySetDeterministic(t *testing.T) {
	byChain := map[chainid.ChainId][]task.FetchKey{
		chainid.EthereumSepolia: {
			task.HeaderKey(chainid.EthereumSepolia, 1),
			task.HeaderKey(chainid.EthereumSepolia, 2),
		},
	}
	h1, n1, err := hashKeySet(byChain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, n2, err := hashKeySet(byChain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 || n1 != n2 {
		t.Error("hashKeySet is not deterministic for the same key set")
	}
	if n1 != 2 {
		t.Errorf("got %d distinct keys, want 2", n1)
	}
}

func TestRequireSingleModuleAllowsOneProgramHash(t *testing.T) {
	hash := [32]byte{7}
	tasks := []task.TaskEnvelope{
		{Module: &task.Module{ProgramHash: hash}},
		{Module: &task.Module{ProgramHash: hash}},
		{DatalakeCompute: &task.DatalakeCompute{}},
	}
	if err := RequireSingleModule(tasks); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequireSingleModuleRejectsDiffering(t *testing.T) {
	tasks := []task.TaskEnvelope{
		{Module: &task.Module{ProgramHash: [32]byte{1}}},
		{Module: &task.Module{ProgramHash: [32]byte{2}}},
	}
	if err := RequireSingleModule(tasks); err == nil {
		t.Error("expected an error for differing program_hash values")
	}
}
