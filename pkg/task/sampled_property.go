// Copyright 2025 Certen Protocol

package task

import (
	"github.com/hdp-xyz/preprocessor/pkg/codec"
)

// PropertyKind discriminates which shape of SampledProperty is populated.
type PropertyKind int

const (
	PropertyHeader PropertyKind = iota
	PropertyAccount
	PropertyStorage
)

// SampledProperty names one value to read per sampled block or
// transaction: a header field, an account field at an address, or a
// storage slot at an address. Exactly the fields for Kind are populated;
// the rest are zero. Mirrors spec.md section 3's
// "sampled_property ∈ {Header(field), Account(addr, field), Storage(addr, slot)}".
type SampledProperty struct {
	Kind  PropertyKind
	Field codec.DatalakeField // valid for PropertyHeader, PropertyAccount
	Addr  [20]byte            // valid for PropertyAccount, PropertyStorage
	Slot  [32]byte            // valid for PropertyStorage
}

func HeaderProperty(field codec.DatalakeField) SampledProperty {
	return SampledProperty{Kind: PropertyHeader, Field: field}
}

func AccountProperty(addr [20]byte, field codec.DatalakeField) SampledProperty {
	return SampledProperty{Kind: PropertyAccount, Addr: addr, Field: field}
}

func StorageProperty(addr [20]byte, slot [32]byte) SampledProperty {
	return SampledProperty{Kind: PropertyStorage, Addr: addr, Slot: slot}
}

// Encode returns the ABI-encoded sampled_property bytes embedded in a
// datalake's commitment payload (spec.md section 6).
func (p SampledProperty) Encode() ([]byte, error) {
	switch p.Kind {
	case PropertyHeader:
		return codec.EncodeSampledPropertyHeader(p.Field)
	case PropertyAccount:
		return codec.EncodeSampledPropertyAccount(p.Addr, p.Field)
	case PropertyStorage:
		return codec.EncodeSampledPropertyStorage(p.Addr, p.Slot)
	default:
		return nil, UnknownPropertyKind(p.Kind)
	}
}
