package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/klingnet-chain/core/pkg/types"
)

// ErrInvalidScalar is returned when a scalar's bytes do not reduce to a
// valid curve order element.
var ErrInvalidScalar = errors.New("crypto: invalid scalar encoding")

// ErrInvalidCommitment is returned when commitment bytes do not decode to
// a point on the curve.
var ErrInvalidCommitment = errors.New("crypto: invalid commitment encoding")

// Commit computes the Pedersen commitment v*H + k*G for a value v and a
// blinding factor k. The commitment is additively homomorphic: committing
// two values and summing the commitments equals committing the sum with
// the summed blinding factors.
func Commit(value uint64, blinding types.Scalar) (types.Commitment, error) {
	var k secp256k1.ModNScalar
	if overflow := k.SetByteSlice(blinding[:]); overflow {
		return types.Commitment{}, ErrInvalidScalar
	}

	var vBytes [32]byte
	binary.BigEndian.PutUint64(vBytes[24:], value)
	var v secp256k1.ModNScalar
	v.SetByteSlice(vBytes[:])

	var vH, kG, sum secp256k1.JacobianPoint
	H().AsJacobian(&vH)
	secp256k1.ScalarMultNonConstTime(&v, &vH, &vH)
	secp256k1.ScalarBaseMultNonConstTime(&k, &kG)
	secp256k1.AddNonConst(&vH, &kG, &sum)
	sum.ToAffine()

	pk := secp256k1.NewPublicKey(&sum.X, &sum.Y)
	var c types.Commitment
	copy(c[:], pk.SerializeCompressed())
	return c, nil
}

// pointFromCommitment decodes a Commitment into its curve point.
func pointFromCommitment(c types.Commitment) (secp256k1.JacobianPoint, error) {
	pk, err := secp256k1.ParsePubKey(c[:])
	if err != nil {
		return secp256k1.JacobianPoint{}, fmt.Errorf("%w: %v", ErrInvalidCommitment, err)
	}
	var p secp256k1.JacobianPoint
	pk.AsJacobian(&p)
	return p, nil
}

func commitmentFromPoint(p *secp256k1.JacobianPoint) types.Commitment {
	p.ToAffine()
	pk := secp256k1.NewPublicKey(&p.X, &p.Y)
	var c types.Commitment
	copy(c[:], pk.SerializeCompressed())
	return c
}

// AddCommitments homomorphically sums any number of commitments.
func AddCommitments(commitments ...types.Commitment) (types.Commitment, error) {
	if len(commitments) == 0 {
		return types.Commitment{}, fmt.Errorf("crypto: no commitments to sum")
	}
	acc, err := pointFromCommitment(commitments[0])
	if err != nil {
		return types.Commitment{}, err
	}
	for _, c := range commitments[1:] {
		p, err := pointFromCommitment(c)
		if err != nil {
			return types.Commitment{}, err
		}
		secp256k1.AddNonConst(&acc, &p, &acc)
	}
	return commitmentFromPoint(&acc), nil
}

// SubCommitments computes a - b.
func SubCommitments(a, b types.Commitment) (types.Commitment, error) {
	pa, err := pointFromCommitment(a)
	if err != nil {
		return types.Commitment{}, err
	}
	pb, err := pointFromCommitment(b)
	if err != nil {
		return types.Commitment{}, err
	}
	pb.Y.Negate(1).Normalize()
	var sum secp256k1.JacobianPoint
	secp256k1.AddNonConst(&pa, &pb, &sum)
	return commitmentFromPoint(&sum), nil
}

// CommitValueOnly computes v*H with a zero blinding factor. Used for
// publicly-auditable genesis allocations, where the value is meant to be
// transparent rather than hidden.
func CommitValueOnly(value uint64) types.Commitment {
	c, _ := Commit(value, types.Scalar{})
	return c
}
