package chainstore

import (
	"fmt"

	"github.com/klingnet-chain/core/internal/validation"
	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/script"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// aggregateTransaction treats a block's cut-through inputs, outputs and
// kernels as one big transaction for the chain-linked and
// internal-consistency validators, which both only know how to check a
// tx.Transaction.
func aggregateTransaction(blk *block.Block) tx.Transaction {
	return tx.Transaction{Inputs: blk.Inputs, Outputs: blk.Outputs, Kernels: blk.Kernels}
}

// lockedChainView implements validation.ChainView without taking
// cs.mu: every acceptance path that reaches verifyChainLinked already
// holds the write lock, and cs.mu is not reentrant.
type lockedChainView struct{ cs *ChainStore }

func (v lockedChainView) UTXO(hash types.Hash) (validation.UTXORecord, bool) {
	return v.cs.utxoRecord(hash)
}

func (v lockedChainView) TipHeight() uint64 { return v.cs.meta.Height }

func (v lockedChainView) HasKernelExcessSignature(sig types.Signature) bool {
	ok, _ := v.cs.db.Has(kernelSigKey(sig))
	return ok
}

// verifyChainLinked runs step 4 of block acceptance: every input
// references a live UTXO (not already spent, not an immature coinbase),
// its locking script authorizes the spend, and every kernel's
// lock_height is satisfied and its excess signature is unseen on chain.
// Callers must hold cs.mu.
func (cs *ChainStore) verifyChainLinked(blk *block.Block) error {
	linked := validation.ChainLinked{}
	agg := aggregateTransaction(blk)
	if err := linked.Validate(&agg, lockedChainView{cs}, nil, blk.Header.Height); err != nil {
		return err
	}
	return cs.verifyInputScripts(blk)
}

// verifyInputScripts runs the locking script VM for every input. Each
// input carries its own copy of the spent output's script (pkg/tx.Input
// documents why) so this never needs a chain-state lookup beyond the
// liveness check verifyChainLinked already performed.
func (cs *ChainStore) verifyInputScripts(blk *block.Block) error {
	for i := range blk.Inputs {
		in := &blk.Inputs[i]
		instrs, err := in.Script.Parse()
		if err != nil {
			return fmt.Errorf("chainstore: input %d: parse locking script: %w", i, err)
		}

		ctx := script.Context{
			BlockHeight:   blk.Header.Height,
			PrevBlockHash: blk.Header.PrevHash,
		}
		result, err := script.Execute(instrs, in.InputData, ctx)
		if err != nil {
			return fmt.Errorf("chainstore: input %d: script execution: %w", i, err)
		}
		if result.Kind != script.KindNumber || result.Number == 0 {
			return fmt.Errorf("chainstore: input %d: script did not authorize the spend", i)
		}
	}
	return nil
}
