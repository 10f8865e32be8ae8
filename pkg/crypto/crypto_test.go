package crypto

import (
	"testing"

	"github.com/klingnet-chain/core/pkg/types"
)

func randScalar(seed byte) types.Scalar {
	var s types.Scalar
	for i := range s {
		s[i] = seed*7 + byte(i*3) + 1
	}
	return s
}

func TestCommitHomomorphic(t *testing.T) {
	k1 := randScalar(1)
	k2 := randScalar(2)

	c1, err := Commit(10, k1)
	if err != nil {
		t.Fatalf("commit 1: %v", err)
	}
	c2, err := Commit(20, k2)
	if err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	sum, err := AddCommitments(c1, c2)
	if err != nil {
		t.Fatalf("add commitments: %v", err)
	}

	kSum := AddScalars(k1, k2)
	want, err := Commit(30, kSum)
	if err != nil {
		t.Fatalf("commit sum: %v", err)
	}

	if sum != want {
		t.Errorf("commitment homomorphism broken: got %s, want %s", sum, want)
	}
}

func TestCommitSubtraction(t *testing.T) {
	k1 := randScalar(3)
	k2 := randScalar(4)

	c1, _ := Commit(50, k1)
	c2, _ := Commit(20, k2)

	diff, err := SubCommitments(c1, c2)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}

	kDiff := AddScalars(k1, NegateScalar(k2))
	want, _ := Commit(30, kDiff)

	if diff != want {
		t.Errorf("commitment subtraction broken: got %s, want %s", diff, want)
	}
}

func TestSchnorrSignVerify(t *testing.T) {
	sk := randScalar(5)
	nonce := randScalar(6)
	msg := []byte("transaction kernel excess")

	pk, err := PublicKeyFromScalar(sk)
	if err != nil {
		t.Fatalf("pubkey: %v", err)
	}

	sig, err := Sign(sk, nonce, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ok, err := Verify(pk, msg, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("valid signature failed to verify")
	}

	ok, err = Verify(pk, []byte("different message"), sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Error("signature verified against wrong message")
	}
}

func TestHashDomainSeparation(t *testing.T) {
	data := []byte("same bytes")
	h1 := Hash("label.one", data)
	h2 := Hash("label.two", data)
	if h1 == h2 {
		t.Error("different labels produced the same hash")
	}
}
