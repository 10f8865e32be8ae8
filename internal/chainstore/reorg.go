package chainstore

import (
	"fmt"

	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/types"
)

// reorgToLocked switches the main chain onto branch, a side chain rooted
// at lcaHeight and ordered from its tip back to the block immediately
// above the common ancestor. It rewinds the current main chain down to
// lcaHeight, replays branch in ascending order, and restores the
// pre-reorg chain if any replayed block fails validation. Callers must
// hold cs.mu.
func (cs *ChainStore) reorgToLocked(lcaHeight uint64, branch []*block.Block) (ReorgInfo, error) {
	ascending := make([]*block.Block, len(branch))
	for i, blk := range branch {
		ascending[len(branch)-1-i] = blk
	}

	oldHeight := cs.meta.Height
	popCount := int(oldHeight - lcaHeight)

	var removed []*block.Block
	for i := 0; i < popCount; i++ {
		blk, err := cs.revertBlockLocked(i == 0)
		if err != nil {
			return ReorgInfo{}, fmt.Errorf("chainstore: reorg: rewinding to common ancestor: %w", err)
		}
		removed = append(removed, blk)
	}

	applied := 0
	for _, blk := range ascending {
		if err := cs.acceptReplayLocked(blk); err != nil {
			if rerr := cs.restorePreReorgChainLocked(applied, ascending, removed); rerr != nil {
				return ReorgInfo{}, fmt.Errorf("%w: replay failed (%v), and recovery also failed: %v", ErrReorgAborted, err, rerr)
			}
			return ReorgInfo{}, fmt.Errorf("%w: %v", ErrReorgAborted, err)
		}
		applied++
	}

	// The old tip is now an orphan (revertBlockLocked already inserted it
	// with asTip=true); every block that just landed on the main chain
	// must come out of the orphan pool and stop being a tip.
	for _, blk := range ascending {
		if err := cs.removeOrphanLocked(blk.Hash()); err != nil {
			return ReorgInfo{}, err
		}
	}
	if err := cs.evictStaleOrphansLocked(); err != nil {
		return ReorgInfo{}, err
	}
	if err := cs.pruneIfNeededLocked(); err != nil {
		return ReorgInfo{}, err
	}

	removedHashes := make([]types.Hash, len(removed))
	for i, blk := range removed {
		removedHashes[i] = blk.Hash()
	}
	addedHashes := make([]types.Hash, len(ascending))
	for i, blk := range ascending {
		addedHashes[i] = blk.Hash()
	}

	reorgsTotal.Inc()
	reorgDepthBlocks.Observe(float64(len(removed)))
	cs.publish(Event{Kind: EventReorg, Removed: removed, Added: ascending})
	return ReorgInfo{Removed: removedHashes, Added: addedHashes}, nil
}

// restorePreReorgChainLocked is called when replaying the new branch
// fails partway through: it unwinds the `applied` new-branch blocks that
// did land, then replays the original main-chain blocks (removed, in
// ascending order) back on top, restoring the exact pre-reorg tip. They
// were valid once and the chain state they depend on has not changed
// underneath them, so this is expected to succeed; if it doesn't, the
// store is left at the common ancestor and the caller's error names the
// chain as needing manual recovery.
func (cs *ChainStore) restorePreReorgChainLocked(applied int, ascending, removed []*block.Block) error {
	for i := 0; i < applied; i++ {
		if _, err := cs.revertBlockLocked(false); err != nil {
			return fmt.Errorf("unwinding partially-applied branch: %w", err)
		}
	}
	for i := len(removed) - 1; i >= 0; i-- {
		blk := removed[i]
		if err := cs.acceptReplayLocked(blk); err != nil {
			return fmt.Errorf("replaying original chain block %s: %w", blk.Hash(), err)
		}
		if err := cs.removeOrphanLocked(blk.Hash()); err != nil {
			return err
		}
	}
	return nil
}
