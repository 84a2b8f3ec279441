// Copyright 2025 Certen Protocol
//
// Canonical (sorted-key) JSON encoding plus a SHA-256 fingerprint of it.
// pkg/query's runner uses HashCanonical to fingerprint the assembled
// program input for its per-query log line; program_input.json and
// batch_proof.json themselves are written with plain json.Marshal.

package commitment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// CanonicalizeJSON takes arbitrary JSON bytes and returns a canonical
// encoding (deterministic key order, stable formatting). This is a
// simplified RFC8785-like approach.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	canonical := canonicalizeValue(v)
	return json.Marshal(canonical)
}

// canonicalizeValue recursively sorts map keys; arrays retain order.
func canonicalizeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(vv))
		for _, k := range keys {
			ordered[k] = canonicalizeValue(vv[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return vv
	}
}

// HashBytes returns hex-encoded SHA256 of bytes with 0x prefix. Used only
// for the program-input file's own content-addressing (not the keccak256
// task/result commitments C8 computes), so SHA256 stays the right tool
// here rather than keccak256.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalCanonical marshals v and canonicalizes the result with
// CanonicalizeJSON (sorted keys; a simplified RFC8785-like encoding).
func MarshalCanonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return CanonicalizeJSON(raw)
}

// HashCanonical performs canonical JSON encoding and returns a SHA-256 hex
// hash of the result, used to fingerprint program_input.json for log
// correlation.
func HashCanonical(v interface{}) (string, error) {
	canon, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(canon), nil
}
