package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CompressedPointSize is the length of a compressed secp256k1 point.
const CompressedPointSize = 33

// PublicKey is a compressed secp256k1 curve point: a spending key, a
// sender-offset key, or a nonce commitment, depending on context.
type PublicKey [CompressedPointSize]byte

// IsZero returns true if the public key is all zeros (never a valid point;
// used as the zero value / "absent" sentinel).
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// String returns the hex-encoded public key.
func (p PublicKey) String() string {
	return hex.EncodeToString(p[:])
}

// Bytes returns a copy of the public key as a byte slice.
func (p PublicKey) Bytes() []byte {
	b := make([]byte, CompressedPointSize)
	copy(b, p[:])
	return b
}

// MarshalJSON encodes the public key as a hex string.
func (p PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a hex string into a public key.
func (p *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(decoded) != CompressedPointSize {
		return fmt.Errorf("public key must be %d bytes, got %d", CompressedPointSize, len(decoded))
	}
	copy(p[:], decoded)
	return nil
}

// HexToPublicKey converts a hex string to a PublicKey.
func HexToPublicKey(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != CompressedPointSize {
		return PublicKey{}, fmt.Errorf("public key must be %d bytes, got %d", CompressedPointSize, len(b))
	}
	var p PublicKey
	copy(p[:], b)
	return p, nil
}
