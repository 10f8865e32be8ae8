package chainstore

import (
	"encoding/json"
	"fmt"

	"github.com/klingnet-chain/core/internal/mmr"
	"github.com/klingnet-chain/core/internal/validation"
	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/crypto"
)

// Snapshotting the three accumulators before mutating them lets commit
// and revert restore exact pre-attempt state if the backing batch write
// fails after the in-memory MMRs have already been pushed to or rewound:
// the batch itself is atomic against the store, but the MMRs are plain
// in-process structures with no transaction of their own.

// commitBlockLocked applies blk as the new chain tip: it pushes/deletes
// MMR leaves, moves spent outputs from the UTXO set to the STXO set,
// records new outputs, kernels and the header, and writes the whole
// thing in one atomic batch. Callers must hold cs.mu for writing.
func (cs *ChainStore) commitBlockLocked(blk *block.Block) error {
	outSnap := cs.outputMMR.Snapshot()
	kernSnap := cs.kernelMMR.Snapshot()
	rpSnap := cs.rpMMR.Snapshot()
	restoreMMRs := func() {
		cs.outputMMR = mmr.FromSnapshot(outSnap)
		cs.kernelMMR = mmr.FromSnapshot(kernSnap)
		cs.rpMMR = mmr.FromSnapshot(rpSnap)
	}

	hash := blk.Hash()
	batch := cs.batcher.NewBatch()

	hdrData, err := json.Marshal(blk.Header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if err := batch.Put(headerKey(hash), hdrData); err != nil {
		return err
	}
	blkData, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	if err := batch.Put(blockKey(hash), blkData); err != nil {
		return err
	}

	for i := range blk.Kernels {
		k := &blk.Kernels[i]
		kData, err := json.Marshal(k)
		if err != nil {
			return fmt.Errorf("marshal kernel %d: %w", i, err)
		}
		if err := batch.Put(kernelKey(k.Hash()), kData); err != nil {
			return err
		}
		if err := batch.Put(kernelSigKey(k.ExcessSignature), hash[:]); err != nil {
			return err
		}
		cs.kernelMMR.Push(crypto.Hash(kernelLeafLabel, k.ExcessCommitment[:]))
	}

	for i := range blk.Outputs {
		out := &blk.Outputs[i]
		outHash := out.Hash()
		pos := cs.outputMMR.Push(outHash)
		cs.rpMMR.Push(crypto.Hash(rangeProofLeafLabel, out.RangeProof))

		rec := validation.UTXORecord{
			Output:      *out,
			Height:      blk.Header.Height,
			IsCoinbase:  out.Features.IsCoinbase(),
			MMRPosition: pos,
		}
		recData, err := json.Marshal(rec)
		if err != nil {
			restoreMMRs()
			return fmt.Errorf("marshal utxo record: %w", err)
		}
		if err := batch.Put(utxoKey(outHash), recData); err != nil {
			restoreMMRs()
			return err
		}
		if err := batch.Put(outputPositionKey(pos), outHash[:]); err != nil {
			restoreMMRs()
			return err
		}
		if out.Features.IsMintNonFungible() {
			if err := batch.Put(uniqueIDKey(out.ParentPublicKey, out.UniqueID), outHash[:]); err != nil {
				restoreMMRs()
				return err
			}
		}
	}

	for i := range blk.Inputs {
		in := &blk.Inputs[i]
		rec, ok := cs.utxoRecord(in.OutputHash)
		if !ok {
			restoreMMRs()
			return fmt.Errorf("chainstore: commit: input %d spends unknown output %s", i, in.OutputHash)
		}
		if err := cs.outputMMR.Delete(rec.MMRPosition); err != nil {
			restoreMMRs()
			return fmt.Errorf("chainstore: commit: output mmr delete: %w", err)
		}
		if err := cs.rpMMR.Delete(rec.MMRPosition); err != nil {
			restoreMMRs()
			return fmt.Errorf("chainstore: commit: range-proof mmr delete: %w", err)
		}
		if err := batch.Delete(utxoKey(in.OutputHash)); err != nil {
			restoreMMRs()
			return err
		}
		stxoData, err := json.Marshal(rec)
		if err != nil {
			restoreMMRs()
			return err
		}
		if err := batch.Put(stxoKey(in.OutputHash), stxoData); err != nil {
			restoreMMRs()
			return err
		}
		if rec.Output.Features.IsMintNonFungible() {
			if err := batch.Delete(uniqueIDKey(rec.Output.ParentPublicKey, rec.Output.UniqueID)); err != nil {
				restoreMMRs()
				return err
			}
		}
	}

	cs.outputMMR.Commit()
	cs.kernelMMR.Commit()
	cs.rpMMR.Commit()
	if err := cs.putMMRSnapshots(batch); err != nil {
		restoreMMRs()
		return err
	}

	newWork := cs.meta.AccumulatedWork + blk.Header.Pow.TargetDifficulty
	hrec := heightRecord{Hash: hash, Work: newWork}
	hrecData, err := json.Marshal(hrec)
	if err != nil {
		restoreMMRs()
		return err
	}
	if err := batch.Put(heightKey(blk.Header.Height), hrecData); err != nil {
		restoreMMRs()
		return err
	}

	newMeta := cs.meta
	newMeta.BestBlock = hash
	newMeta.Height = blk.Header.Height
	newMeta.AccumulatedWork = newWork
	if err := cs.putMetadata(batch, newMeta); err != nil {
		restoreMMRs()
		return err
	}

	if err := batch.Commit(); err != nil {
		restoreMMRs()
		return fmt.Errorf("chainstore: commit block %s: %w", hash, err)
	}

	cs.meta = newMeta
	return nil
}

// revertBlockLocked undoes the block currently sitting at the chain tip,
// moving it into the orphan pool (as a tip only when asTip is true: a
// multi-block rewind only leaves the topmost reverted block as a tip,
// since the others already have an orphan descendant) and restoring the
// chain to the state it had at tip height - 1. Callers must hold cs.mu.
func (cs *ChainStore) revertBlockLocked(asTip bool) (*block.Block, error) {
	if cs.meta.IsGenesis() {
		return nil, ErrNoGenesis
	}

	blk, err := cs.getBlock(cs.meta.BestBlock)
	if err != nil {
		return nil, err
	}
	hash := blk.Hash()

	outSnap := cs.outputMMR.Snapshot()
	kernSnap := cs.kernelMMR.Snapshot()
	rpSnap := cs.rpMMR.Snapshot()
	restoreMMRs := func() {
		cs.outputMMR = mmr.FromSnapshot(outSnap)
		cs.kernelMMR = mmr.FromSnapshot(kernSnap)
		cs.rpMMR = mmr.FromSnapshot(rpSnap)
	}

	batch := cs.batcher.NewBatch()

	for i := range blk.Outputs {
		out := &blk.Outputs[i]
		outHash := out.Hash()
		if err := batch.Delete(utxoKey(outHash)); err != nil {
			return nil, err
		}
		if out.Features.IsMintNonFungible() {
			if err := batch.Delete(uniqueIDKey(out.ParentPublicKey, out.UniqueID)); err != nil {
				return nil, err
			}
		}
	}

	for i := range blk.Inputs {
		in := &blk.Inputs[i]
		data, err := cs.db.Get(stxoKey(in.OutputHash))
		if err != nil {
			restoreMMRs()
			return nil, fmt.Errorf("chainstore: revert: missing stxo record for %s: %w", in.OutputHash, err)
		}
		if err := batch.Delete(stxoKey(in.OutputHash)); err != nil {
			return nil, err
		}
		if err := batch.Put(utxoKey(in.OutputHash), data); err != nil {
			return nil, err
		}
		var rec validation.UTXORecord
		if err := json.Unmarshal(data, &rec); err == nil && rec.Output.Features.IsMintNonFungible() {
			if err := batch.Put(uniqueIDKey(rec.Output.ParentPublicKey, rec.Output.UniqueID), in.OutputHash[:]); err != nil {
				return nil, err
			}
		}
	}

	for i := range blk.Kernels {
		k := &blk.Kernels[i]
		if err := batch.Delete(kernelKey(k.Hash())); err != nil {
			return nil, err
		}
		if err := batch.Delete(kernelSigKey(k.ExcessSignature)); err != nil {
			return nil, err
		}
	}

	if err := cs.outputMMR.Rewind(1); err != nil {
		restoreMMRs()
		return nil, fmt.Errorf("chainstore: revert: output mmr rewind: %w", err)
	}
	if err := cs.kernelMMR.Rewind(1); err != nil {
		restoreMMRs()
		return nil, fmt.Errorf("chainstore: revert: kernel mmr rewind: %w", err)
	}
	if err := cs.rpMMR.Rewind(1); err != nil {
		restoreMMRs()
		return nil, fmt.Errorf("chainstore: revert: range-proof mmr rewind: %w", err)
	}
	if err := cs.putMMRSnapshots(batch); err != nil {
		restoreMMRs()
		return nil, err
	}

	if err := batch.Delete(headerKey(hash)); err != nil {
		return nil, err
	}
	if err := batch.Delete(blockKey(hash)); err != nil {
		return nil, err
	}
	if err := batch.Delete(heightKey(blk.Header.Height)); err != nil {
		return nil, err
	}

	orphanData, err := json.Marshal(blk)
	if err != nil {
		restoreMMRs()
		return nil, err
	}
	if err := batch.Put(orphanKey(hash), orphanData); err != nil {
		return nil, err
	}
	if asTip {
		if err := batch.Put(orphanTipKey(hash), []byte{1}); err != nil {
			return nil, err
		}
	}

	newMeta := cs.meta
	newMeta.BestBlock = blk.Header.PrevHash
	newMeta.Height = blk.Header.Height - 1
	newMeta.AccumulatedWork = cs.meta.AccumulatedWork - blk.Header.Pow.TargetDifficulty
	if err := cs.putMetadata(batch, newMeta); err != nil {
		restoreMMRs()
		return nil, err
	}

	if err := batch.Commit(); err != nil {
		restoreMMRs()
		return nil, fmt.Errorf("chainstore: revert block %s: %w", hash, err)
	}

	cs.meta = newMeta
	if asTip {
		cs.orphanTips[hash] = struct{}{}
	}
	return blk, nil
}
