// Copyright 2025 Certen Protocol
//
// C8 Merkle commitments: builds the task tree and result tree over a
// compiled query's task commitments and results, and attaches both
// inclusion proofs to each task (spec.md section 4.8). Built on
// pkg/merkle's keccak256 binary tree engine, the same way
// pkg/batch reached for pkg/merkle to commit a batch of anchor
// transactions in the teacher.

package commitment

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/merkle"
)

// ProcessedTask is one query task after C8 has run: its commitment,
// result, and both trees' inclusion proofs.
type ProcessedTask struct {
	Commitment  [32]byte
	Result      [32]byte
	TaskProof   *merkle.InclusionProof
	ResultProof *merkle.InclusionProof
}

// ResultLeaf computes result_leaf_i = keccak(Cᵢ ‖ Rᵢ_be32) (spec.md
// section 4.8), binding a result to the task that produced it.
func ResultLeaf(commitment [32]byte, result [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(commitment[:], result[:]))
	return out
}

// BuildCommitments builds the task tree over commitments and the result
// tree over keccak(commitment||result), and returns task_root, result_root
// and one ProcessedTask per index carrying both inclusion proofs.
//
// len(commitments) must equal len(results); this mirrors the pre-processor
// invariant "|results| == |tasks|" (spec.md section 3).
func BuildCommitments(commitments [][32]byte, results [][32]byte) (taskRoot [32]byte, resultRoot [32]byte, tasks []ProcessedTask, err error) {
	if len(commitments) != len(results) {
		return [32]byte{}, [32]byte{}, nil, hdperrors.New(hdperrors.InvalidEncoding, "task/result count mismatch")
	}
	if len(commitments) == 0 {
		return [32]byte{}, [32]byte{}, nil, hdperrors.New(hdperrors.InvalidEncoding, "no tasks to commit")
	}

	taskLeaves := make([][]byte, len(commitments))
	resultLeaves := make([][]byte, len(commitments))
	resultLeafVals := make([][32]byte, len(commitments))

	for i, c := range commitments {
		leaf := make([]byte, 32)
		copy(leaf, c[:])
		taskLeaves[i] = leaf

		rl := ResultLeaf(c, results[i])
		resultLeafVals[i] = rl
		resultLeaves[i] = append([]byte(nil), rl[:]...)
	}

	taskTree, err := merkle.BuildTree(taskLeaves)
	if err != nil {
		return [32]byte{}, [32]byte{}, nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "task tree", err)
	}
	resultTree, err := merkle.BuildTree(resultLeaves)
	if err != nil {
		return [32]byte{}, [32]byte{}, nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "result tree", err)
	}

	copy(taskRoot[:], taskTree.Root())
	copy(resultRoot[:], resultTree.Root())

	tasks = make([]ProcessedTask, len(commitments))
	for i := range commitments {
		taskProof, err := taskTree.GenerateProof(i)
		if err != nil {
			return [32]byte{}, [32]byte{}, nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "task proof", err)
		}
		resultProof, err := resultTree.GenerateProof(i)
		if err != nil {
			return [32]byte{}, [32]byte{}, nil, hdperrors.Wrap(hdperrors.InvalidEncoding, "result proof", err)
		}

		// verify(result_tree_root, result_leaf_i, result_proof_i) = true for
		// every i (spec.md section 8, "Proof inclusion"): catch a tree
		// construction bug here rather than at the external verifier.
		if ok, err := merkle.VerifyProof(taskLeaves[i], taskProof, taskTree.Root()); err != nil || !ok {
			return [32]byte{}, [32]byte{}, nil, hdperrors.New(hdperrors.InvalidEncoding, "task proof failed self-verification")
		}
		if ok, err := merkle.VerifyProof(resultLeaves[i], resultProof, resultTree.Root()); err != nil || !ok {
			return [32]byte{}, [32]byte{}, nil, hdperrors.New(hdperrors.InvalidEncoding, "result proof failed self-verification")
		}

		tasks[i] = ProcessedTask{
			Commitment:  commitments[i],
			Result:      results[i],
			TaskProof:   taskProof,
			ResultProof: resultProof,
		}
	}

	return taskRoot, resultRoot, tasks, nil
}
