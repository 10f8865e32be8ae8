// Package validation implements the three pluggable validator contracts:
// internal consistency (pure function of a transaction or block body),
// chain-linked (checked against a read-only chain view, used by the
// mempool), and block-body (internal consistency plus chain-linked,
// run once before a block is committed). None of the validators here
// mutate chain or mempool state.
package validation

import (
	"errors"
	"fmt"

	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

var (
	ErrUTXONotFound        = errors.New("validation: referenced output is not a live UTXO")
	ErrUTXOPendingSpent    = errors.New("validation: referenced output is already spent by a pending transaction")
	ErrLockHeightNotMet    = errors.New("validation: kernel lock_height not yet reached")
	ErrDuplicateKernelSig  = errors.New("validation: kernel excess signature already seen on chain")
	ErrCoinbaseNotMature   = errors.New("validation: spends an immature coinbase output")
	ErrDuplicateUniqueID   = errors.New("validation: duplicate (parent_public_key, unique_id) in block body")
	ErrRangeProofInvalid   = errors.New("validation: range proof does not verify")
	ErrMetadataSigInvalid  = errors.New("validation: output metadata signature does not verify")
)

// CoinbaseMaturity is the number of confirmations a coinbase output needs
// before it can be spent.
const CoinbaseMaturity = 60

// UTXORecord is the chain view's answer to a UTXO lookup: the output
// itself plus the height it was created at (needed for coinbase
// maturity and time-lock checks).
type UTXORecord struct {
	Output      tx.Output
	Height      uint64
	IsCoinbase  bool
	MMRPosition uint64
}

// ChainView is the read-only handle chain-linked validation needs. The
// chain storage engine implements it directly; the mempool wraps it
// with its own pending-spent overlay.
type ChainView interface {
	UTXO(hash types.Hash) (UTXORecord, bool)
	TipHeight() uint64
	HasKernelExcessSignature(sig types.Signature) bool
}

// RangeProofVerifier is the opaque external range-proof service the
// spec assumes. This package only defines the seam; a real
// implementation is out of scope here the same way curve arithmetic
// and hash functions are.
type RangeProofVerifier interface {
	Verify(commitment types.Commitment, proof []byte, minValue uint64) (bool, error)
}

// AcceptAllRangeProofs is a placeholder RangeProofVerifier for tests and
// development builds that have not wired a real range-proof service.
type AcceptAllRangeProofs struct{}

func (AcceptAllRangeProofs) Verify(types.Commitment, []byte, uint64) (bool, error) {
	return true, nil
}

// InternalConsistency checks what can be checked from a transaction or
// block alone: balance equation, kernel excess signatures, range proofs,
// ordering, weight, and duplicate unique IDs within a block. Output
// metadata signatures and script lengths are not checked here.
type InternalConsistency struct {
	MaxBlockWeight uint64
	RangeProofs    RangeProofVerifier
}

func NewInternalConsistency(maxBlockWeight uint64, rp RangeProofVerifier) InternalConsistency {
	if rp == nil {
		rp = AcceptAllRangeProofs{}
	}
	return InternalConsistency{MaxBlockWeight: maxBlockWeight, RangeProofs: rp}
}

// ValidateTransaction runs ordering, balance, and per-output checks
// that do not require chain state.
func (v InternalConsistency) ValidateTransaction(t *tx.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := t.VerifyBalance(); err != nil {
		return err
	}
	for i := range t.Outputs {
		out := &t.Outputs[i]
		ok, err := v.RangeProofs.Verify(out.Commitment, out.RangeProof, out.MinimumValuePromise)
		if err != nil {
			return fmt.Errorf("%w: output %d: %v", ErrRangeProofInvalid, i, err)
		}
		if !ok {
			return fmt.Errorf("%w: output %d", ErrRangeProofInvalid, i)
		}
	}
	return nil
}

// ValidateBlock runs block-level structural checks plus the internal
// consistency check of the implicit aggregate transaction formed by
// the block's inputs, outputs and kernels, plus a same-block duplicate
// unique-id check that a single transaction's own Validate cannot see.
func (v InternalConsistency) ValidateBlock(b *block.Block) error {
	if err := b.Validate(v.MaxBlockWeight); err != nil {
		return err
	}

	agg := tx.Transaction{Inputs: b.Inputs, Outputs: b.Outputs, Kernels: b.Kernels}
	if err := agg.VerifyBalance(); err != nil {
		return err
	}

	seen := make(map[[65]byte]struct{})
	for i := range b.Outputs {
		out := &b.Outputs[i]
		ok, err := v.RangeProofs.Verify(out.Commitment, out.RangeProof, out.MinimumValuePromise)
		if err != nil || !ok {
			return fmt.Errorf("%w: output %d", ErrRangeProofInvalid, i)
		}

		if !out.Features.IsMintNonFungible() {
			continue
		}
		var key [65]byte
		copy(key[:33], out.ParentPublicKey[:])
		copy(key[33:], out.UniqueID)
		if _, dup := seen[key]; dup {
			return ErrDuplicateUniqueID
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ChainLinked checks a transaction against a ChainView: UTXO existence
// (minus whatever the caller's pendingSpent overlay already claims),
// lock heights, and kernel-signature uniqueness.
type ChainLinked struct{}

// Validate runs chain-linked checks for a transaction that would be
// included at height spendHeight (tip height + 1 for mempool admission,
// the block's own height for block-body validation).
func (ChainLinked) Validate(t *tx.Transaction, view ChainView, pendingSpent map[types.Hash]struct{}, spendHeight uint64) error {
	for i := range t.Inputs {
		in := &t.Inputs[i]
		if pendingSpent != nil {
			if _, spent := pendingSpent[in.OutputHash]; spent {
				return fmt.Errorf("%w: input %d (%s)", ErrUTXOPendingSpent, i, in.OutputHash)
			}
		}
		rec, ok := view.UTXO(in.OutputHash)
		if !ok {
			return fmt.Errorf("%w: input %d (%s)", ErrUTXONotFound, i, in.OutputHash)
		}
		if rec.IsCoinbase && spendHeight-rec.Height < CoinbaseMaturity {
			return fmt.Errorf("%w: input %d needs %d confirmations, has %d",
				ErrCoinbaseNotMature, i, CoinbaseMaturity, spendHeight-rec.Height)
		}
	}
	for i := range t.Kernels {
		k := &t.Kernels[i]
		if k.LockHeight > spendHeight {
			return fmt.Errorf("%w: kernel %d requires height %d, spending at %d",
				ErrLockHeightNotMet, i, k.LockHeight, spendHeight)
		}
		if view.HasKernelExcessSignature(k.ExcessSignature) {
			return fmt.Errorf("%w: kernel %d", ErrDuplicateKernelSig, i)
		}
	}
	return nil
}

// BlockBody runs internal consistency, then chain-linked validation of
// every transaction-shaped component against the pending tip, the way
// the block would be applied.
type BlockBody struct {
	Internal InternalConsistency
	Linked   ChainLinked
}

func NewBlockBody(internal InternalConsistency) BlockBody {
	return BlockBody{Internal: internal, Linked: ChainLinked{}}
}

// Validate runs the full pre-commit block-body check.
func (v BlockBody) Validate(b *block.Block, view ChainView) error {
	if err := v.Internal.ValidateBlock(b); err != nil {
		return err
	}

	agg := tx.Transaction{Inputs: b.Inputs, Outputs: b.Outputs, Kernels: b.Kernels}
	spendHeight := b.Header.Height
	return v.Linked.Validate(&agg, view, nil, spendHeight)
}
