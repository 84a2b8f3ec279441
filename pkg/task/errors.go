// Copyright 2025 Certen Protocol

package task

import (
	"fmt"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
)

// UnknownPropertyKind builds the UnknownVariant error for an unrecognized
// SampledProperty.Kind.
func UnknownPropertyKind(kind PropertyKind) error {
	return hdperrors.New(hdperrors.UnknownVariant, fmt.Sprintf("unknown sampled-property kind %d", kind))
}

// UnknownAggregateFn builds the UnknownVariant error for an unrecognized
// AggregateFn.
func UnknownAggregateFn(fn AggregateFn) error {
	return hdperrors.New(hdperrors.UnknownVariant, fmt.Sprintf("unknown aggregate function %d", fn))
}

// UnknownDatalakeVariant builds the UnknownVariant error for a Datalake
// envelope with neither or both variants populated.
func UnknownDatalakeVariant() error {
	return hdperrors.New(hdperrors.UnknownVariant, "datalake must have exactly one of BlockSampled or TransactionsInBlock set")
}

// UnknownTaskVariant builds the UnknownVariant error for a TaskEnvelope
// with neither or both variants populated.
func UnknownTaskVariant() error {
	return hdperrors.New(hdperrors.UnknownVariant, "task must have exactly one of DatalakeCompute or Module set")
}
