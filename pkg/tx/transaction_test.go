package tx

import (
	"testing"

	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/types"
)

func scalarFrom(seed byte) types.Scalar {
	var s types.Scalar
	for i := range s {
		s[i] = seed*11 + byte(i*5) + 3
	}
	return s
}

// buildBalancedTx constructs a minimal one-input, one-output,
// one-kernel transaction that actually balances, to exercise
// VerifyBalance against a transaction that should pass.
func buildBalancedTx(t *testing.T) *Transaction {
	t.Helper()

	inBlind := scalarFrom(1)
	outBlind := scalarFrom(2)
	offset := scalarFrom(3)
	fee := uint64(10)
	value := uint64(1000)

	inCommit, err := crypto.Commit(value, inBlind)
	if err != nil {
		t.Fatalf("input commit: %v", err)
	}
	outCommit, err := crypto.Commit(value-fee, outBlind)
	if err != nil {
		t.Fatalf("output commit: %v", err)
	}

	// excess blinding = outBlind - inBlind - offset
	excessBlind := crypto.AddScalars(outBlind, crypto.NegateScalar(inBlind), crypto.NegateScalar(offset))
	excessCommit, err := crypto.Commit(0, excessBlind)
	if err != nil {
		t.Fatalf("excess commit: %v", err)
	}

	kernel := Kernel{Fee: fee, ExcessCommitment: excessCommit}
	pk, err := crypto.PublicKeyFromScalar(excessBlind)
	if err != nil {
		t.Fatalf("excess pubkey: %v", err)
	}
	if pk != types.PublicKey(excessCommit) {
		t.Fatalf("excess commitment is not a bare point: %s != %s", excessCommit, pk)
	}
	nonce := scalarFrom(4)
	sig, err := crypto.Sign(excessBlind, nonce, kernel.ExcessChallenge())
	if err != nil {
		t.Fatalf("sign excess: %v", err)
	}
	kernel.ExcessSignature = sig

	return &Transaction{
		Inputs:  []Input{{Commitment: inCommit}},
		Outputs: []Output{{Commitment: outCommit}},
		Kernels: []Kernel{kernel},
		Offset:  offset,
	}
}

func TestVerifyBalancePasses(t *testing.T) {
	txn := buildBalancedTx(t)
	if err := txn.VerifyBalance(); err != nil {
		t.Errorf("balanced transaction failed to verify: %v", err)
	}
}

func TestVerifyBalanceRejectsTamperedValue(t *testing.T) {
	txn := buildBalancedTx(t)
	// Tamper with the output commitment so the hidden value no longer matches.
	tampered, err := crypto.Commit(99999, scalarFrom(2))
	if err != nil {
		t.Fatalf("tamper commit: %v", err)
	}
	txn.Outputs[0].Commitment = tampered

	if err := txn.VerifyBalance(); err == nil {
		t.Error("tampered transaction unexpectedly balanced")
	}
}

func TestValidateOrdering(t *testing.T) {
	txn := &Transaction{
		Kernels: []Kernel{{ExcessCommitment: types.Commitment{1}}},
		Inputs: []Input{
			{Commitment: types.Commitment{2}},
			{Commitment: types.Commitment{1}},
		},
	}
	if err := txn.Validate(); err != ErrBadInputOrder {
		t.Errorf("got %v, want ErrBadInputOrder", err)
	}
}

func TestValidateRejectsEmptyKernels(t *testing.T) {
	txn := &Transaction{}
	if err := txn.Validate(); err != ErrNoKernels {
		t.Errorf("got %v, want ErrNoKernels", err)
	}
}

func TestWeightAccountsForAllComponents(t *testing.T) {
	txn := buildBalancedTx(t)
	if txn.Weight() == 0 {
		t.Error("weight should be nonzero for a non-empty transaction")
	}
}
