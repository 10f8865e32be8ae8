// Package tx defines the confidential transaction format: commitments
// standing in for plaintext amounts, range proofs in place of an
// overflow check, and a kernel excess signature in place of a simple
// input-output balance check.
package tx

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/types"
)

const txHashLabel = "klingnet.tx.transaction"

// Transaction is a self-contained confidential transaction: its own
// inputs, outputs and kernels balance to zero net value once the
// kernel offset is accounted for, independent of any other transaction
// in the same block.
type Transaction struct {
	Inputs       []Input
	Outputs      []Output
	Kernels      []Kernel
	Offset       types.Scalar // total kernel offset (blinds the excess sum)
	ScriptOffset types.Scalar // total script offset (blinds script key sum)
}

// Hash identifies the transaction by hashing its components in their
// canonical (sorted) order.
func (t *Transaction) Hash() types.Hash {
	parts := make([][]byte, 0, len(t.Inputs)+len(t.Outputs)+len(t.Kernels)+2)
	for i := range t.Inputs {
		h := t.Inputs[i].Hash()
		parts = append(parts, h[:])
	}
	for i := range t.Outputs {
		h := t.Outputs[i].Hash()
		parts = append(parts, h[:])
	}
	for i := range t.Kernels {
		h := t.Kernels[i].Hash()
		parts = append(parts, h[:])
	}
	parts = append(parts, t.Offset[:], t.ScriptOffset[:])
	return crypto.Hash(txHashLabel, parts...)
}

// Weight approximates the chain-consensus cost of including this
// transaction in a block: every byte of its components counts equally,
// so a transaction with many small outputs costs the same as one with
// the equivalent raw bytes in inputs or kernels.
func (t *Transaction) Weight() uint64 {
	var w uint64
	for i := range t.Inputs {
		w += uint64(len(t.Inputs[i].Script)) + uint64(types.CompressedPointSize) + uint64(types.SignatureSize) + 32
	}
	for i := range t.Outputs {
		o := &t.Outputs[i]
		w += uint64(len(o.RangeProof)) + uint64(len(o.Script)) + uint64(len(o.Covenant)) +
			uint64(len(o.EncryptedData)) + uint64(types.CompressedPointSize)*2 + uint64(types.SignatureSize)
	}
	for range t.Kernels {
		w += uint64(types.CompressedPointSize) + uint64(types.SignatureSize) + 24
	}
	return w
}

// TotalFee sums the fee recorded in every kernel.
func (t *Transaction) TotalFee() uint64 {
	var total uint64
	for i := range t.Kernels {
		total += t.Kernels[i].Fee
	}
	return total
}

// Validation errors for transaction structure, independent of chain
// state or cryptographic verification.
var (
	ErrNoKernels         = errors.New("tx: transaction has no kernels")
	ErrDuplicateInput    = errors.New("tx: duplicate input commitment")
	ErrDuplicateOutput   = errors.New("tx: duplicate output commitment")
	ErrBadInputOrder     = errors.New("tx: inputs not sorted by commitment")
	ErrBadOutputOrder    = errors.New("tx: outputs not sorted by commitment")
	ErrBadKernelOrder    = errors.New("tx: kernels not sorted by excess commitment")
	ErrBalanceMismatch   = errors.New("tx: commitment balance does not hold")
	ErrExcessSigInvalid  = errors.New("tx: kernel excess signature invalid")
)

// Validate checks structural well-formedness: canonical (ascending)
// ordering of inputs, outputs and kernels by commitment, and absence of
// duplicates. Canonical ordering lets two peers that received the same
// transaction independently agree on its hash without a negotiation
// round.
func (t *Transaction) Validate() error {
	if len(t.Kernels) == 0 {
		return ErrNoKernels
	}

	seenIn := make(map[types.Commitment]struct{}, len(t.Inputs))
	for i, in := range t.Inputs {
		if _, dup := seenIn[in.Commitment]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateInput, in.Commitment)
		}
		seenIn[in.Commitment] = struct{}{}
		if i > 0 && bytes.Compare(t.Inputs[i-1].Commitment[:], in.Commitment[:]) >= 0 {
			return ErrBadInputOrder
		}
	}

	seenOut := make(map[types.Commitment]struct{}, len(t.Outputs))
	for i, out := range t.Outputs {
		if _, dup := seenOut[out.Commitment]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateOutput, out.Commitment)
		}
		seenOut[out.Commitment] = struct{}{}
		if i > 0 && bytes.Compare(t.Outputs[i-1].Commitment[:], out.Commitment[:]) >= 0 {
			return ErrBadOutputOrder
		}
	}

	for i := 1; i < len(t.Kernels); i++ {
		if bytes.Compare(t.Kernels[i-1].ExcessCommitment[:], t.Kernels[i].ExcessCommitment[:]) >= 0 {
			return ErrBadKernelOrder
		}
	}

	return nil
}

// VerifyBalance checks the core Mimblewimble invariant: the sum of
// output commitments, minus the sum of input commitments, minus the
// kernel offset's G-term, equals the sum of kernel excess commitments.
// If this holds, no value was created or destroyed anywhere that isn't
// accounted for by an explicit kernel (coinbase, burn).
func (t *Transaction) VerifyBalance() error {
	outSum, err := sumCommitments(outputCommitments(t.Outputs))
	if err != nil {
		return fmt.Errorf("tx: summing outputs: %w", err)
	}
	// An empty term (no inputs, or a zero fee with a zero offset) sums
	// to the point at infinity, which has no compressed encoding, so it
	// is skipped rather than subtracted.
	lhs := outSum
	if len(t.Inputs) > 0 {
		inSum, err := sumCommitments(inputCommitments(t.Inputs))
		if err != nil {
			return fmt.Errorf("tx: summing inputs: %w", err)
		}
		lhs, err = crypto.SubCommitments(outSum, inSum)
		if err != nil {
			return fmt.Errorf("tx: computing lhs: %w", err)
		}
	}

	// The fee is public value that leaves the UTXO set without a
	// corresponding output, and the offset blinds the published excess
	// sum; both must be subtracted before what remains is a pure
	// zero-value commitment (a bare curve point, fit to serve as the
	// kernel excess public key).
	if t.TotalFee() != 0 || !t.Offset.IsZero() {
		adjustment, err := crypto.Commit(t.TotalFee(), t.Offset)
		if err != nil {
			return fmt.Errorf("tx: fee/offset adjustment: %w", err)
		}
		lhs, err = crypto.SubCommitments(lhs, adjustment)
		if err != nil {
			return fmt.Errorf("tx: applying fee/offset adjustment: %w", err)
		}
	}

	kernelSum, err := sumCommitments(kernelExcesses(t.Kernels))
	if err != nil {
		return fmt.Errorf("tx: summing kernels: %w", err)
	}

	if lhs != kernelSum {
		return ErrBalanceMismatch
	}

	for i := range t.Kernels {
		k := &t.Kernels[i]
		pk, err := excessAsPublicKey(k.ExcessCommitment)
		if err != nil {
			return fmt.Errorf("tx: kernel %d excess: %w", i, err)
		}
		ok, err := crypto.Verify(pk, k.ExcessChallenge(), k.ExcessSignature)
		if err != nil {
			return fmt.Errorf("tx: kernel %d signature: %w", i, err)
		}
		if !ok {
			return fmt.Errorf("%w: kernel %d", ErrExcessSigInvalid, i)
		}
	}

	return nil
}

func outputCommitments(outs []Output) []types.Commitment {
	c := make([]types.Commitment, len(outs))
	for i := range outs {
		c[i] = outs[i].Commitment
	}
	return c
}

func inputCommitments(ins []Input) []types.Commitment {
	c := make([]types.Commitment, len(ins))
	for i := range ins {
		c[i] = ins[i].Commitment
	}
	return c
}

func kernelExcesses(ks []Kernel) []types.Commitment {
	c := make([]types.Commitment, len(ks))
	for i := range ks {
		c[i] = ks[i].ExcessCommitment
	}
	return c
}

func sumCommitments(cs []types.Commitment) (types.Commitment, error) {
	if len(cs) == 0 {
		return crypto.CommitValueOnly(0), nil
	}
	return crypto.AddCommitments(cs...)
}

// excessAsPublicKey reinterprets a kernel excess commitment as a public
// key: a commitment to a zero value is itself a plain curve point k*G,
// which is exactly the public key for the excess signature.
func excessAsPublicKey(c types.Commitment) (types.PublicKey, error) {
	return types.PublicKey(c), nil
}
