package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SignatureSize is the length of a serialized Schnorr signature: a 32-byte
// nonce commitment followed by a 32-byte response scalar.
const SignatureSize = 64

// Signature is a Schnorr signature `(R, s)`: a public nonce point R
// (x-only, 32 bytes) and a response scalar s (32 bytes).
type Signature [SignatureSize]byte

// NewSignature builds a Signature from its nonce and scalar halves.
func NewSignature(nonce [32]byte, scalar Scalar) Signature {
	var sig Signature
	copy(sig[:32], nonce[:])
	copy(sig[32:], scalar[:])
	return sig
}

// Nonce returns the public-nonce half of the signature.
func (s Signature) Nonce() [32]byte {
	var n [32]byte
	copy(n[:], s[:32])
	return n
}

// Scalar returns the response-scalar half of the signature.
func (s Signature) Scalar() Scalar {
	var sc Scalar
	copy(sc[:], s[32:])
	return sc
}

// IsZero returns true if the signature is all zeros.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// String returns the hex-encoded signature.
func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// Bytes returns a copy of the signature as a byte slice.
func (s Signature) Bytes() []byte {
	b := make([]byte, SignatureSize)
	copy(b, s[:])
	return b
}

// MarshalJSON encodes the signature as a hex string.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a hex string into a signature.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(str)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(decoded) != SignatureSize {
		return fmt.Errorf("signature must be %d bytes, got %d", SignatureSize, len(decoded))
	}
	copy(s[:], decoded)
	return nil
}
