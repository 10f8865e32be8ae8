package chainstore

import (
	"fmt"

	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/types"
)

// checkDeclaredRoots compares a candidate block's declared MMR roots
// against the roots its body would actually produce.
func checkDeclaredRoots(blk *block.Block, outRoot, kernelRoot, rpRoot types.Hash) error {
	if blk.Header.OutputMMRRoot != outRoot {
		return fmt.Errorf("%w: output_mmr_root", ErrMMRRootMismatch)
	}
	if blk.Header.KernelMMRRoot != kernelRoot {
		return fmt.Errorf("%w: kernel_mmr_root", ErrMMRRootMismatch)
	}
	if blk.Header.RangeProofMMRRoot != rpRoot {
		return fmt.Errorf("%w: range_proof_mmr_root", ErrMMRRootMismatch)
	}
	return nil
}

// ApplyGenesis sets blk as the chain's first block. There is no parent
// to check chain-linked validation against, so only internal
// consistency and the declared MMR roots are checked.
func (cs *ChainStore) ApplyGenesis(blk *block.Block) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.meta.IsGenesis() {
		return ErrGenesisAlreadySet
	}
	if !blk.Header.PrevHash.IsZero() {
		return fmt.Errorf("chainstore: genesis block must have a zero prev_hash")
	}
	if err := cs.bodies.ValidateBlock(blk); err != nil {
		return fmt.Errorf("chainstore: genesis internal consistency: %w", err)
	}

	outRoot, kernelRoot, rpRoot, err := cs.calculateMMRRootsLocked(nil, blk.Outputs, blk.Kernels)
	if err != nil {
		return err
	}
	if err := checkDeclaredRoots(blk, outRoot, kernelRoot, rpRoot); err != nil {
		return err
	}
	if err := cs.commitBlockLocked(blk); err != nil {
		return err
	}

	blocksAcceptedTotal.WithLabelValues("genesis").Inc()
	cs.publish(Event{Kind: EventBlockAdded, Added: []*block.Block{blk}})
	return nil
}

// AddBlock runs the full acceptance algorithm: dedup, stateless
// structural validation, parent linkage (handling the block as an
// orphan or a competing fork when it does not extend the current tip),
// chain-linked validation, MMR root verification, atomic commit, orphan
// pool maintenance, pruning, and event emission. A block that does not
// (yet) extend the heaviest known chain is parked in the orphan pool and
// ErrOrphan is returned, not treated as a failure of the block itself.
func (cs *ChainStore) AddBlock(blk *block.Block) (ReorgInfo, error) {
	hash := blk.Hash()

	cs.mu.Lock()
	defer cs.mu.Unlock()

	exists, err := cs.hasBlockAnywhere(hash)
	if err != nil {
		return ReorgInfo{}, err
	}
	if exists {
		return ReorgInfo{}, ErrBlockExists
	}
	if cs.meta.IsGenesis() {
		return ReorgInfo{}, ErrNoGenesis
	}

	if err := cs.bodies.ValidateBlock(blk); err != nil {
		return ReorgInfo{}, fmt.Errorf("chainstore: invalid block body: %w", err)
	}

	if blk.Header.PrevHash == cs.meta.BestBlock {
		return cs.acceptOntoTipLocked(blk)
	}

	return cs.acceptAsForkLocked(blk)
}

// acceptOntoTipLocked runs steps 4-9 of block acceptance for a block
// that extends the current best chain directly.
func (cs *ChainStore) acceptOntoTipLocked(blk *block.Block) (ReorgInfo, error) {
	if err := cs.acceptReplayLocked(blk); err != nil {
		return ReorgInfo{}, err
	}

	if err := cs.removeOrphanLocked(blk.Hash()); err != nil {
		return ReorgInfo{}, err
	}
	if err := cs.evictStaleOrphansLocked(); err != nil {
		return ReorgInfo{}, err
	}
	if err := cs.pruneIfNeededLocked(); err != nil {
		return ReorgInfo{}, err
	}

	cs.publish(Event{Kind: EventBlockAdded, Added: []*block.Block{blk}})
	return ReorgInfo{}, nil
}

// acceptReplayLocked runs the chain-linked validation, MMR root check
// and atomic commit a block needs whether it is extending the tip
// directly or being replayed as part of a reorg. It does not touch the
// orphan pool, pruning, or events: callers that loop this over several
// blocks do that bookkeeping once, after the whole branch lands.
func (cs *ChainStore) acceptReplayLocked(blk *block.Block) error {
	if err := cs.verifyChainLinked(blk); err != nil {
		return fmt.Errorf("chainstore: chain-linked validation: %w", err)
	}

	outRoot, kernelRoot, rpRoot, err := cs.calculateMMRRootsLocked(blk.Inputs, blk.Outputs, blk.Kernels)
	if err != nil {
		return err
	}
	if err := checkDeclaredRoots(blk, outRoot, kernelRoot, rpRoot); err != nil {
		return err
	}
	if err := cs.commitBlockLocked(blk); err != nil {
		return err
	}
	blocksAcceptedTotal.WithLabelValues("replay").Inc()
	return nil
}

// acceptAsForkLocked handles a block whose parent is not the current
// tip: it is always parked in the orphan pool first, then its branch's
// total accumulated work is compared against the main chain's. A branch
// that now has more work triggers a reorg; one that doesn't stays parked
// and ErrOrphan is reported, not an error about the block itself.
func (cs *ChainStore) acceptAsForkLocked(blk *block.Block) (ReorgInfo, error) {
	if err := cs.insertOrphan(blk); err != nil {
		return ReorgInfo{}, err
	}
	orphansParkedTotal.Inc()

	tip, _, err := cs.chainedOrphanWork(blk.Hash())
	if err != nil {
		return ReorgInfo{}, fmt.Errorf("chainstore: walking orphan descendants: %w", err)
	}

	branchWork, lcaHeight, branch, err := cs.orphanBranchWork(tip)
	if err != nil {
		// Doesn't connect back to the main chain yet: stays parked.
		return ReorgInfo{}, ErrOrphan
	}
	if branchWork <= cs.meta.AccumulatedWork {
		return ReorgInfo{}, ErrOrphan
	}

	return cs.reorgToLocked(lcaHeight, branch)
}
