// Copyright 2025 Certen Protocol
//
// TaskEnvelope is the DatalakeCompute | Module union: every compiled
// query is a vector of TaskEnvelope, each yielding one 256-bit result
// (spec.md section 1).

package task

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hdp-xyz/preprocessor/pkg/codec"
)

// DatalakeCompute pairs one Datalake with one Computation (spec.md
// section 3).
type DatalakeCompute struct {
	Datalake    Datalake
	Computation Computation
}

// Commit returns keccak256(abi(datalake_commit, agg_fn, operator,
// value_to_compare)) per spec.md section 6.
func (dc DatalakeCompute) Commit() ([32]byte, error) {
	datalakeCommit, err := dc.Datalake.Commit()
	if err != nil {
		return [32]byte{}, err
	}
	payload, err := codec.EncodeDatalakeCompute(datalakeCommit, uint8(dc.Computation.AggregateFn), uint8(dc.Computation.Operator), dc.Computation.ValueToCompare)
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], crypto.Keccak256(payload))
	return out, nil
}

// TaskEnvelope is the DatalakeCompute | Module union. Exactly one of
// DatalakeCompute or Module must be non-nil.
type TaskEnvelope struct {
	DatalakeCompute *DatalakeCompute
	Module          *Module
}

// Commit dispatches to whichever variant is populated; this is the 32-byte
// commitment spec.md section 3 requires every task to derive
// deterministically from its encoded form.
func (t TaskEnvelope) Commit() ([32]byte, error) {
	switch {
	case t.DatalakeCompute != nil && t.Module == nil:
		return t.DatalakeCompute.Commit()
	case t.Module != nil && t.DatalakeCompute == nil:
		return t.Module.Commit()
	default:
		return [32]byte{}, UnknownTaskVariant()
	}
}

// IsModule reports whether this task is a Module task (vs DatalakeCompute).
func (t TaskEnvelope) IsModule() bool {
	return t.Module != nil
}
