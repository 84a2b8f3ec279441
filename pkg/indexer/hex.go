// Copyright 2025 Certen Protocol

package indexer

import (
	"encoding/hex"
	"strings"
)

// mustHash32 decodes a 0x-prefixed 32-byte hex string, zero-padding on the
// left if the indexer omitted leading zero bytes. A malformed string does
// not panic or return an error: it yields the zero hash (mustHexBytes
// yields nil), and GetHeadersProof passes that value on without further
// checks.
func mustHash32(s string) [32]byte {
	var out [32]byte
	b := mustHexBytes(s)
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}

func mustHexBytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
