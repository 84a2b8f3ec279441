package codec

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
)

func TestEncodeBlockSampledDatalakeDeterministic(t *testing.T) {
	prop, err := EncodeSampledPropertyHeader(FieldHeaderNumber)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := EncodeBlockSampledDatalake(11155111, 100, 200, 1, prop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := EncodeBlockSampledDatalake(11155111, 100, 200, 1, prop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}

	c, err := EncodeBlockSampledDatalake(11155111, 100, 201, 1, prop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Error("different datalakes encoded to the same bytes")
	}
}

func TestEncodeSampledPropertyAccountRoundTrip(t *testing.T) {
	addr := [20]byte{0x11, 0x22, 0x33}
	packed, err := EncodeSampledPropertyAccount(addr, FieldAccountBalance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// property_type, address, field: 3 * 32-byte words.
	if len(packed) != 96 {
		t.Fatalf("unexpected packed length: got %d, want 96", len(packed))
	}
	// The address occupies the last 20 bytes of the second word.
	var gotAddr [20]byte
	copy(gotAddr[:], packed[32+12:64])
	if gotAddr != addr {
		t.Errorf("address mismatch: got %x, want %x", gotAddr, addr)
	}
}

func TestEncodeSampledPropertyStorageRoundTrip(t *testing.T) {
	addr := [20]byte{0xaa}
	slot := [32]byte{0x01, 0x02}
	packed, err := EncodeSampledPropertyStorage(addr, slot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var gotSlot [32]byte
	copy(gotSlot[:], packed[64:96])
	if gotSlot != slot {
		t.Errorf("slot mismatch: got %x, want %x", gotSlot, slot)
	}
}

func TestEncodeModuleTask(t *testing.T) {
	programHash := [32]byte{0xde, 0xad, 0xbe, 0xef}
	inputs := [][32]byte{{0x01}, {0x02}}
	packed, err := EncodeModuleTask(programHash, inputs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var gotHash [32]byte
	copy(gotHash[:], packed[0:32])
	if gotHash != programHash {
		t.Errorf("program hash mismatch: got %x, want %x", gotHash, programHash)
	}
}

func TestIncludedTypesMaskAllows(t *testing.T) {
	m := MaskLegacy | MaskEIP1559
	if !m.Allows(types.LegacyTxType) {
		t.Error("expected legacy to be allowed")
	}
	if !m.Allows(types.DynamicFeeTxType) {
		t.Error("expected EIP-1559 to be allowed")
	}
	if m.Allows(types.AccessListTxType) {
		t.Error("expected EIP-2930 to be rejected")
	}
	if m.Allows(types.BlobTxType) {
		t.Error("expected EIP-4844 to be rejected")
	}
}
