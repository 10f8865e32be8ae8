package chainstore

import (
	"fmt"

	"github.com/klingnet-chain/core/pkg/types"
)

// pruneIfNeededLocked folds checkpoints older than pruning_horizon into
// each accumulator's horizon checkpoint and discards the STXO records
// whose spend height is no longer individually queryable as a result.
// PruningHorizon 0 means archival: never prune. Callers must hold cs.mu.
func (cs *ChainStore) pruneIfNeededLocked() error {
	if cs.cfg.PruningHorizon <= 0 {
		return nil
	}
	if cs.outputMMR.CheckpointCount() <= cs.cfg.PruningHorizon+1 {
		return nil
	}

	discarded := cs.outputMMR.MergeOldest(cs.cfg.PruningHorizon)
	cs.rpMMR.MergeOldest(cs.cfg.PruningHorizon)
	cs.kernelMMR.MergeOldest(cs.cfg.PruningHorizon)

	batch := cs.batcher.NewBatch()
	for _, pos := range discarded {
		data, err := cs.db.Get(outputPositionKey(pos))
		if err != nil {
			continue
		}
		var hash types.Hash
		copy(hash[:], data)
		if err := batch.Delete(stxoKey(hash)); err != nil {
			return err
		}
		if err := batch.Delete(outputPositionKey(pos)); err != nil {
			return err
		}
	}
	if err := cs.putMMRSnapshots(batch); err != nil {
		return err
	}

	newMeta := cs.meta
	newMeta.PrunedHeight = cs.outputMMR.HorizonHeight()
	if err := cs.putMetadata(batch, newMeta); err != nil {
		return err
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("chainstore: prune: %w", err)
	}
	cs.meta = newMeta
	stxoPrunedTotal.Add(float64(len(discarded)))
	return nil
}
