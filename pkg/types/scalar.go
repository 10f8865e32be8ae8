package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ScalarSize is the length of a serialized scalar in bytes.
const ScalarSize = 32

// Scalar is a 32-byte big-endian encoded curve scalar: a blinding factor,
// a private key, a nonce, or an offset. The curve-arithmetic meaning of
// the bytes lives in pkg/crypto; this type only carries the wire shape.
type Scalar [ScalarSize]byte

// IsZero returns true if the scalar is all zeros.
func (s Scalar) IsZero() bool {
	return s == Scalar{}
}

// String returns the hex-encoded scalar.
func (s Scalar) String() string {
	return hex.EncodeToString(s[:])
}

// Bytes returns a copy of the scalar as a byte slice.
func (s Scalar) Bytes() []byte {
	b := make([]byte, ScalarSize)
	copy(b, s[:])
	return b
}

// MarshalJSON encodes the scalar as a hex string.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a hex string into a scalar.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(str)
	if err != nil {
		return fmt.Errorf("invalid scalar hex: %w", err)
	}
	if len(decoded) != ScalarSize {
		return fmt.Errorf("scalar must be %d bytes, got %d", ScalarSize, len(decoded))
	}
	copy(s[:], decoded)
	return nil
}

// HexToScalar converts a hex string to a Scalar.
func HexToScalar(str string) (Scalar, error) {
	b, err := hex.DecodeString(str)
	if err != nil {
		return Scalar{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != ScalarSize {
		return Scalar{}, fmt.Errorf("scalar must be %d bytes, got %d", ScalarSize, len(b))
	}
	var s Scalar
	copy(s[:], b)
	return s, nil
}
