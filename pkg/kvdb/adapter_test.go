package kvdb

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"
)

func TestKVAdapterGetSet(t *testing.T) {
	db := dbm.NewMemDB()
	defer db.Close()

	a := NewKVAdapter(db)

	got, err := a.Get([]byte("missing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for a missing key, got %v", got)
	}

	if err := a.Set([]byte("program_hash"), []byte("bytecode")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err = a.Get([]byte("program_hash"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "bytecode" {
		t.Errorf("got %q, want %q", got, "bytecode")
	}
}

func TestKVAdapterNilDB(t *testing.T) {
	a := NewKVAdapter(nil)

	got, err := a.Get([]byte("x"))
	if err != nil || got != nil {
		t.Errorf("expected (nil, nil) for a nil-backed adapter, got (%v, %v)", got, err)
	}
	if err := a.Set([]byte("x"), []byte("y")); err != nil {
		t.Errorf("expected Set on a nil-backed adapter to be a no-op, got %v", err)
	}
}
