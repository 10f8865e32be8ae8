package crypto

import (
	"encoding/binary"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// generatorH is the independent ("nothing-up-my-sleeve") generator point
// used for the value term of a Pedersen commitment: commitment = v*H + k*G.
// It is derived once at package init by hashing a fixed label and
// try-and-increment decoding the digest as a compressed point's
// x-coordinate, exactly the approach used by several Pedersen-commitment
// schemes built on a curve library that only exposes ParsePubKey as a
// decoding primitive (no curve library in the retrieval pack exposes a
// direct hash-to-curve function for secp256k1).
var generatorH = deriveH()

// H returns the independent generator point for the value term of a
// Pedersen commitment.
func H() *secp256k1.PublicKey {
	return generatorH
}

func deriveH() *secp256k1.PublicKey {
	for counter := uint64(0); ; counter++ {
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], counter)
		digest := HashConcat("klingnet.generator.H", ctr[:])

		candidate := make([]byte, 33)
		candidate[0] = 0x02 // even-y compressed point prefix
		copy(candidate[1:], digest[:32])

		pk, err := secp256k1.ParsePubKey(candidate)
		if err == nil {
			return pk
		}
	}
}
