// Package crypto provides the opaque cryptographic primitives the rest of
// the engine is built on: scalar/point arithmetic, Pedersen commitments, a
// domain-separated hash, and Schnorr signing/verification. Everything here
// is pure and allocation-light so it never needs to suspend.
package crypto

import (
	"github.com/klingnet-chain/core/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a domain-separated BLAKE3 hash of the given parts. The
// label distinguishes hash families (block headers, kernels, MMR nodes of
// each of the three accumulators, Schnorr challenges, ...) so that the
// same byte string hashed under two labels never collides.
func Hash(label string, parts ...[]byte) types.Hash {
	h := blake3.New()
	h.Write([]byte(label))
	h.Write([]byte{0}) // separator between label and payload
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	sum := h.Sum(nil)
	copy(out[:], sum[:types.HashSize])
	return out
}

// HashConcat hashes the concatenation of parts under the given label and
// returns the raw bytes (rather than a fixed-size Hash), for callers that
// need more than 32 bytes of output material (e.g. deriving two scalars).
func HashConcat(label string, parts ...[]byte) []byte {
	h := blake3.New()
	h.Write([]byte(label))
	h.Write([]byte{0})
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
