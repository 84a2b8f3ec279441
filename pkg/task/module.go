// Copyright 2025 Certen Protocol
//
// Module is the user-supplied-program task kind: its commitment only
// binds the public inputs (spec.md section 3, "Only public inputs
// participate in the task commitment"); private inputs are carried for
// the dry-run/prover invocation but never hashed.

package task

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hdp-xyz/preprocessor/pkg/codec"
)

// Visibility marks whether a ModuleInput participates in the task
// commitment.
type Visibility int

const (
	Public Visibility = iota
	Private
)

// ModuleInput is one input value to a Module task.
type ModuleInput struct {
	Visibility Visibility
	Value      [32]byte
}

// Module is {program_hash, inputs, local_class_path?} per spec.md
// section 3. LocalClassPath, when set, overrides the C7 remote class
// fetch (spec.md section 4.7); per the "Open question" resolution in
// spec.md section 9, when both LocalClassPath and ProgramHash are set the
// module registry must fetch locally and require the computed hash equal
// ProgramHash rather than silently preferring one source.
type Module struct {
	ProgramHash    [32]byte
	Inputs         []ModuleInput
	LocalClassPath string
}

// PublicInputs returns the Value of every Public-visibility input, in
// order, since only those enter the task commitment.
func (m Module) PublicInputs() [][32]byte {
	var out [][32]byte
	for _, in := range m.Inputs {
		if in.Visibility == Public {
			out = append(out, in.Value)
		}
	}
	return out
}

// Encode returns the ABI payload committed for this module (spec.md
// section 6, row "Module").
func (m Module) Encode() ([]byte, error) {
	return codec.EncodeModuleTask(m.ProgramHash, m.PublicInputs())
}

// Commit returns keccak256(Encode()), the Module task's commitment.
func (m Module) Commit() ([32]byte, error) {
	payload, err := m.Encode()
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], crypto.Keccak256(payload))
	return out, nil
}
