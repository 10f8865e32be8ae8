package block

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// Structural validation errors. These check the block's shape only;
// they say nothing about whether it extends the chain correctly or
// whether its signatures and range proofs actually verify (that is
// internal/validation's job).
var (
	ErrZeroTimestamp        = errors.New("block: header timestamp is zero")
	ErrNoKernels            = errors.New("block: no kernels")
	ErrBadInputOrder        = errors.New("block: inputs not sorted by commitment")
	ErrBadOutputOrder       = errors.New("block: outputs not sorted by commitment")
	ErrBadKernelOrder       = errors.New("block: kernels not sorted by excess commitment")
	ErrDuplicateInput       = errors.New("block: duplicate input commitment")
	ErrDuplicateOutput      = errors.New("block: duplicate output commitment")
	ErrNoCoinbase           = errors.New("block: missing coinbase kernel")
	ErrMultipleCoinbase     = errors.New("block: more than one coinbase kernel")
	ErrBlockTooHeavy        = errors.New("block: exceeds maximum transaction weight")
)

// Validate checks the block's internal structural invariants: canonical
// ordering, no duplicates, exactly one coinbase kernel, and a weight
// within the configured maximum. MaxWeight is the chain store's
// configured max_block_transaction_weight.
func (b *Block) Validate(maxWeight uint64) error {
	if b.Header.Timestamp == 0 {
		return ErrZeroTimestamp
	}
	if len(b.Kernels) == 0 {
		return ErrNoKernels
	}

	seenIn := make(map[types.Commitment]struct{}, len(b.Inputs))
	for i, in := range b.Inputs {
		if _, dup := seenIn[in.Commitment]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateInput, in.Commitment)
		}
		seenIn[in.Commitment] = struct{}{}
		if i > 0 && bytes.Compare(b.Inputs[i-1].Commitment[:], in.Commitment[:]) >= 0 {
			return ErrBadInputOrder
		}
	}

	seenOut := make(map[types.Commitment]struct{}, len(b.Outputs))
	for i, out := range b.Outputs {
		if _, dup := seenOut[out.Commitment]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateOutput, out.Commitment)
		}
		seenOut[out.Commitment] = struct{}{}
		if i > 0 && bytes.Compare(b.Outputs[i-1].Commitment[:], out.Commitment[:]) >= 0 {
			return ErrBadOutputOrder
		}
	}

	for i := 1; i < len(b.Kernels); i++ {
		if bytes.Compare(b.Kernels[i-1].ExcessCommitment[:], b.Kernels[i].ExcessCommitment[:]) >= 0 {
			return ErrBadKernelOrder
		}
	}

	coinbaseCount := 0
	for _, k := range b.Kernels {
		if k.Features.IsCoinbase() {
			coinbaseCount++
		}
	}
	if coinbaseCount == 0 {
		return ErrNoCoinbase
	}
	if coinbaseCount > 1 {
		return ErrMultipleCoinbase
	}

	if w := b.weight(); w > maxWeight {
		return fmt.Errorf("%w: %d > %d", ErrBlockTooHeavy, w, maxWeight)
	}

	return nil
}

func (b *Block) weight() uint64 {
	t := &tx.Transaction{Inputs: b.Inputs, Outputs: b.Outputs, Kernels: b.Kernels}
	return t.Weight()
}

// Hash returns the block's header hash.
func (b *Block) Hash() types.Hash {
	return b.Header.Hash()
}
