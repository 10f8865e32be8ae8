package crypto

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/klingnet-chain/core/pkg/types"
)

// ErrInvalidPublicKey is returned when public key bytes do not decode to
// a point on the curve.
var ErrInvalidPublicKey = errors.New("crypto: invalid public key encoding")

// schnorrChallengeLabel domain-separates the Schnorr challenge hash from
// every other hash family in the system.
const schnorrChallengeLabel = "klingnet.schnorr.challenge"

// PublicKeyFromScalar computes sk*G.
func PublicKeyFromScalar(sk types.Scalar) (types.PublicKey, error) {
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(sk[:]); overflow {
		return types.PublicKey{}, ErrInvalidScalar
	}
	var p secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConstTime(&s, &p)
	p.ToAffine()
	pk := secp256k1.NewPublicKey(&p.X, &p.Y)
	var out types.PublicKey
	copy(out[:], pk.SerializeCompressed())
	return out, nil
}

// NegateScalar returns -s mod n. Used to flip the sign convention on a
// transaction's input-side partial signatures during aggregation.
func NegateScalar(s types.Scalar) types.Scalar {
	var sc secp256k1.ModNScalar
	sc.SetByteSlice(s[:])
	sc.Negate()
	b := sc.Bytes()
	var out types.Scalar
	copy(out[:], b[:])
	return out
}

// AddScalars sums any number of scalars mod n.
func AddScalars(scalars ...types.Scalar) types.Scalar {
	var acc secp256k1.ModNScalar
	for _, s := range scalars {
		var sc secp256k1.ModNScalar
		sc.SetByteSlice(s[:])
		acc.Add(&sc)
	}
	b := acc.Bytes()
	var out types.Scalar
	copy(out[:], b[:])
	return out
}

// AddPublicKeys sums any number of public keys (points).
func AddPublicKeys(keys ...types.PublicKey) (types.PublicKey, error) {
	if len(keys) == 0 {
		return types.PublicKey{}, fmt.Errorf("crypto: no public keys to sum")
	}
	first, err := secp256k1.ParsePubKey(keys[0][:])
	if err != nil {
		return types.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	var acc secp256k1.JacobianPoint
	first.AsJacobian(&acc)
	for _, k := range keys[1:] {
		pk, err := secp256k1.ParsePubKey(k[:])
		if err != nil {
			return types.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		var p secp256k1.JacobianPoint
		pk.AsJacobian(&p)
		secp256k1.AddNonConst(&acc, &p, &acc)
	}
	acc.ToAffine()
	pk := secp256k1.NewPublicKey(&acc.X, &acc.Y)
	var out types.PublicKey
	copy(out[:], pk.SerializeCompressed())
	return out, nil
}

// schnorrChallenge computes e = H(label, R.x, P, msg) reduced mod n.
func schnorrChallenge(rX [32]byte, pk types.PublicKey, msg []byte) secp256k1.ModNScalar {
	digest := Hash(schnorrChallengeLabel, rX[:], pk[:], msg)
	var e secp256k1.ModNScalar
	e.SetByteSlice(digest[:])
	return e
}

// Sign produces a Schnorr signature over msg for public key sk*G, using
// the supplied nonce scalar. Callers that need aggregatable signatures
// (the transaction construction protocol) supply a per-party nonce and
// later sum the partial signatures; single-party callers may derive the
// nonce from the key manager.
func Sign(sk types.Scalar, nonce types.Scalar, msg []byte) (types.Signature, error) {
	var k secp256k1.ModNScalar
	if overflow := k.SetByteSlice(nonce[:]); overflow {
		return types.Signature{}, ErrInvalidScalar
	}
	var x secp256k1.ModNScalar
	if overflow := x.SetByteSlice(sk[:]); overflow {
		return types.Signature{}, ErrInvalidScalar
	}

	var r secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConstTime(&k, &r)
	r.ToAffine()
	if r.Y.IsOdd() {
		k.Negate()
		secp256k1.ScalarBaseMultNonConstTime(&k, &r)
		r.ToAffine()
	}
	var rX [32]byte
	rXBytes := r.X.Bytes()
	copy(rX[:], rXBytes[:])

	pk, err := PublicKeyFromScalar(sk)
	if err != nil {
		return types.Signature{}, err
	}

	e := schnorrChallenge(rX, pk, msg)

	var s secp256k1.ModNScalar
	s.Mul2(&e, &x).Add(&k)
	sBytes := s.Bytes()
	var scalarOut types.Scalar
	copy(scalarOut[:], sBytes[:])

	return types.NewSignature(rX, scalarOut), nil
}

// AggregateNonce sums public nonces into the joint nonce a multi-party
// signature challenge is computed over. A thin alias over AddPublicKeys:
// a nonce point and a public key are both just curve points here.
func AggregateNonce(nonces ...types.PublicKey) (types.PublicKey, error) {
	return AddPublicKeys(nonces...)
}

// NonceX extracts the x-coordinate of a public nonce point: the form a
// Signature stores its nonce half in. Combining two parties' nonce
// points with AggregateNonce first and reducing the sum through NonceX
// is how a joint Schnorr challenge is computed without either party's
// individual nonce ever appearing in the final signature.
func NonceX(pk types.PublicKey) ([32]byte, error) {
	p, err := secp256k1.ParsePubKey(pk[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	var j secp256k1.JacobianPoint
	p.AsJacobian(&j)
	j.ToAffine()
	return *j.X.Bytes(), nil
}

// PartialSign computes a Schnorr partial signature scalar s_i = k_i +
// e·x_i, where e is the challenge for a *jointly aggregated* nonce and
// public key rather than this signer's own. Two or more parties each
// call this with their own (sk, nonce) and the same (aggregateNonceX,
// aggregatePubKey, msg); summing the returned scalars with AddScalars
// and pairing the sum with aggregateNonceX via NewSignature yields one
// signature that verifies against aggregatePubKey. This is what the
// transaction construction protocol uses to build both the kernel
// excess signature and an output's metadata signature without either
// party learning the other's private key.
func PartialSign(sk, nonce types.Scalar, aggregateNonceX [32]byte, aggregatePubKey types.PublicKey, msg []byte) (types.Scalar, error) {
	var k, x secp256k1.ModNScalar
	if overflow := k.SetByteSlice(nonce[:]); overflow {
		return types.Scalar{}, ErrInvalidScalar
	}
	if overflow := x.SetByteSlice(sk[:]); overflow {
		return types.Scalar{}, ErrInvalidScalar
	}

	e := schnorrChallenge(aggregateNonceX, aggregatePubKey, msg)

	var s secp256k1.ModNScalar
	s.Mul2(&e, &x).Add(&k)
	b := s.Bytes()
	var out types.Scalar
	copy(out[:], b[:])
	return out, nil
}

// AggregateSignature packages a joint nonce x-coordinate and the sum of
// every party's PartialSign scalar into the final signature.
func AggregateSignature(aggregateNonceX [32]byte, partials ...types.Scalar) types.Signature {
	return types.NewSignature(aggregateNonceX, AddScalars(partials...))
}

// Verify checks a Schnorr signature over msg against the public key pk.
func Verify(pk types.PublicKey, msg []byte, sig types.Signature) (bool, error) {
	pubKey, err := secp256k1.ParsePubKey(pk[:])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	rX := sig.Nonce()
	sScalar := sig.Scalar()
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(sScalar[:]); overflow {
		return false, nil
	}

	e := schnorrChallenge(rX, pk, msg)

	var sG, eP, pkPoint, rPrime secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConstTime(&s, &sG)
	pubKey.AsJacobian(&pkPoint)
	secp256k1.ScalarMultNonConstTime(&e, &pkPoint, &eP)
	eP.Y.Negate(1).Normalize()
	secp256k1.AddNonConst(&sG, &eP, &rPrime)
	rPrime.ToAffine()

	if rPrime.Y.IsOdd() {
		return false, nil
	}
	gotX := rPrime.X.Bytes()
	return *gotX == rX, nil
}
