// Copyright 2025 Certen Protocol
//
// batch_proof.json (spec.md section 6): task/result commitments and
// inclusion proofs, the public output a verifier checks against the
// prover's proof without re-running the query.

package query

import (
	"encoding/hex"
	"encoding/json"

	"github.com/hdp-xyz/preprocessor/pkg/commitment"
)

type jsonProcessedTask struct {
	Commitment  string                 `json:"commitment"`
	Result      string                 `json:"result"`
	TaskProof   interface{}            `json:"task_proof"`
	ResultProof interface{}            `json:"result_proof"`
}

// BatchProof is the full shape of batch_proof.json.
type BatchProof struct {
	TaskRoot   string              `json:"task_root"`
	ResultRoot string              `json:"result_root"`
	Tasks      []jsonProcessedTask `json:"tasks"`
}

// BuildBatchProof renders C8's output into batch_proof.json's shape.
func BuildBatchProof(taskRoot, resultRoot [32]byte, tasks []commitment.ProcessedTask) BatchProof {
	out := BatchProof{
		TaskRoot:   "0x" + hex.EncodeToString(taskRoot[:]),
		ResultRoot: "0x" + hex.EncodeToString(resultRoot[:]),
		Tasks:      make([]jsonProcessedTask, len(tasks)),
	}
	for i, t := range tasks {
		out.Tasks[i] = jsonProcessedTask{
			Commitment:  "0x" + hex.EncodeToString(t.Commitment[:]),
			Result:      "0x" + hex.EncodeToString(t.Result[:]),
			TaskProof:   t.TaskProof,
			ResultProof: t.ResultProof,
		}
	}
	return out
}

// Marshal renders BatchProof as the bytes written to batch_proof.json.
func (b BatchProof) Marshal() ([]byte, error) {
	return json.Marshal(b)
}
