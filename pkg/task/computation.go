// Copyright 2025 Certen Protocol
//
// Computation names the aggregate function applied over a datalake's
// sampled values, plus the operator context Count needs. The original
// Rust implementation carries aggregate_fn_ctx as an untyped blob
// (crates/core-new/src/compiler/module.rs); this keeps the typed
// {operator, value_to_compare} pair as the public type and only uses the
// untyped encoding as the wire form, so the two views are reconciled
// rather than contradictory (see SPEC_FULL.md "SUPPLEMENTED FEATURES").

package task

import (
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
)

// AggregateFn is one of the aggregate functions spec.md section 4.5
// defines. Numeric values are part of the DatalakeCompute commitment
// payload (spec.md section 6, "uint8 agg_fn") and must never be
// renumbered.
type AggregateFn uint8

const (
	AggAvg AggregateFn = iota
	AggSum
	AggMin
	AggMax
	AggCount
	AggStdDev
	AggSlr
	AggBloomFilter
)

// IsPreProcessable reports whether this aggregate can be computed by the
// pre-processor host rather than requiring in-prover computation, per
// spec.md section 4.5's table.
func (f AggregateFn) IsPreProcessable() bool {
	switch f {
	case AggStdDev, AggSlr:
		return false
	default:
		return true
	}
}

// Operator is the comparison Count evaluates against value_to_compare.
type Operator uint8

const (
	OpNone Operator = iota
	OpEq
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
)

// Computation pairs an aggregate function with its Count-only operator
// context (spec.md section 3: "aggregate_fn_ctx = {operator, value_to_compare}").
type Computation struct {
	AggregateFn    AggregateFn
	Operator       Operator
	ValueToCompare uint32
}

var computationArgs = func() gethabi.Arguments {
	u8, _ := gethabi.NewType("uint8", "", nil)
	u32, _ := gethabi.NewType("uint32", "", nil)
	return gethabi.Arguments{{Type: u8}, {Type: u8}, {Type: u32}}
}()

// Encode returns the ABI-encoded wire form abi(uint8 agg_fn, uint8
// operator, uint32 value_to_compare). Unlike Datalake.Commit, this is not
// independently hashed as a commitment — it only participates as part of
// a DatalakeCompute task's payload (spec.md section 6).
func (c Computation) Encode() ([]byte, error) {
	packed, err := computationArgs.Pack(uint8(c.AggregateFn), uint8(c.Operator), c.ValueToCompare)
	if err != nil {
		return nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "computation", err)
	}
	return packed, nil
}

// DecodeComputation reverses Encode.
func DecodeComputation(raw []byte) (Computation, error) {
	values, err := computationArgs.Unpack(raw)
	if err != nil {
		return Computation{}, hdperrors.Wrap(hdperrors.InvalidEncoding, "computation", err)
	}
	return Computation{
		AggregateFn:    AggregateFn(values[0].(uint8)),
		Operator:       Operator(values[1].(uint8)),
		ValueToCompare: values[2].(uint32),
	}, nil
}
