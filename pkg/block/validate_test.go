package block

import (
	"testing"

	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

func coinbaseKernel() tx.Kernel {
	return tx.Kernel{Features: tx.KernelCoinbase, ExcessCommitment: types.Commitment{1}}
}

func TestValidateRejectsMissingCoinbase(t *testing.T) {
	b := &Block{
		Header:  Header{Timestamp: 1},
		Kernels: []tx.Kernel{{ExcessCommitment: types.Commitment{1}}},
	}
	if err := b.Validate(1_000_000); err != ErrNoCoinbase {
		t.Errorf("got %v, want ErrNoCoinbase", err)
	}
}

func TestValidateAcceptsWellFormedBlock(t *testing.T) {
	b := &Block{
		Header:  Header{Timestamp: 1},
		Inputs:  []tx.Input{{Commitment: types.Commitment{1}}, {Commitment: types.Commitment{2}}},
		Outputs: []tx.Output{{Commitment: types.Commitment{1}}},
		Kernels: []tx.Kernel{coinbaseKernel()},
	}
	if err := b.Validate(1_000_000); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRejectsUnsortedInputs(t *testing.T) {
	b := &Block{
		Header:  Header{Timestamp: 1},
		Inputs:  []tx.Input{{Commitment: types.Commitment{2}}, {Commitment: types.Commitment{1}}},
		Kernels: []tx.Kernel{coinbaseKernel()},
	}
	if err := b.Validate(1_000_000); err != ErrBadInputOrder {
		t.Errorf("got %v, want ErrBadInputOrder", err)
	}
}

func TestValidateRejectsZeroTimestamp(t *testing.T) {
	b := &Block{Kernels: []tx.Kernel{coinbaseKernel()}}
	if err := b.Validate(1_000_000); err != ErrZeroTimestamp {
		t.Errorf("got %v, want ErrZeroTimestamp", err)
	}
}

func TestHeaderHashChangesWithNonce(t *testing.T) {
	h := Header{Height: 1, Pow: PowSummary{Algorithm: "sha3x", TargetDifficulty: 100, Nonce: 1}}
	h1 := h.Hash()
	h.Pow.Nonce = 2
	h2 := h.Hash()
	if h1 == h2 {
		t.Error("changing the nonce should change the header hash")
	}
}
