package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Commitment is a Pedersen commitment v·H + k·G: a compressed curve point
// that is additively homomorphic and reveals neither the value v nor the
// blinding factor k. Two commitments are equal iff their contents
// (value, blinding) are equal.
type Commitment [CompressedPointSize]byte

// IsZero returns true if the commitment is all zeros.
func (c Commitment) IsZero() bool {
	return c == Commitment{}
}

// String returns the hex-encoded commitment.
func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

// Bytes returns a copy of the commitment as a byte slice.
func (c Commitment) Bytes() []byte {
	b := make([]byte, CompressedPointSize)
	copy(b, c[:])
	return b
}

// MarshalJSON encodes the commitment as a hex string.
func (c Commitment) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a hex string into a commitment.
func (c *Commitment) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid commitment hex: %w", err)
	}
	if len(decoded) != CompressedPointSize {
		return fmt.Errorf("commitment must be %d bytes, got %d", CompressedPointSize, len(decoded))
	}
	copy(c[:], decoded)
	return nil
}

// HexToCommitment converts a hex string to a Commitment.
func HexToCommitment(s string) (Commitment, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Commitment{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != CompressedPointSize {
		return Commitment{}, fmt.Errorf("commitment must be %d bytes, got %d", CompressedPointSize, len(b))
	}
	var c Commitment
	copy(c[:], b)
	return c, nil
}
