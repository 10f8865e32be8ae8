package chainstore

import (
	"encoding/json"
	"fmt"

	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/types"
)

// insertOrphan stores a block in the orphan pool and marks it a chain
// tip (nothing is known yet to chain onto it). Enforces the capacity
// policy: evict by ascending height, preserving current orphan-chain
// tips, before adding the new one.
func (cs *ChainStore) insertOrphan(blk *block.Block) error {
	if err := cs.evictOrphansIfFull(); err != nil {
		return err
	}

	data, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("marshal orphan: %w", err)
	}
	hash := blk.Hash()
	if err := cs.db.Put(orphanKey(hash), data); err != nil {
		return fmt.Errorf("store orphan: %w", err)
	}

	// This block's parent, if also an orphan tip, is no longer a tip:
	// this block now chains onto it.
	if _, wasTip := cs.orphanTips[blk.Header.PrevHash]; wasTip {
		delete(cs.orphanTips, blk.Header.PrevHash)
		if err := cs.db.Delete(orphanTipKey(blk.Header.PrevHash)); err != nil {
			return err
		}
	}

	// An orphan child that arrived earlier already chains onto this
	// block, so it is not a tip.
	if _, hasChild := cs.findOrphanChild(hash); hasChild {
		return nil
	}

	cs.orphanTips[hash] = struct{}{}
	return cs.db.Put(orphanTipKey(hash), []byte{1})
}

func (cs *ChainStore) evictOrphansIfFull() error {
	if cs.cfg.OrphanStorageCapacity <= 0 {
		return nil
	}

	type entry struct {
		hash   types.Hash
		height uint64
		isTip  bool
	}
	var all []entry
	if err := cs.db.ForEach(prefixOrphan, func(k, v []byte) error {
		var blk block.Block
		if err := json.Unmarshal(v, &blk); err != nil {
			return err
		}
		var h types.Hash
		copy(h[:], k[len(prefixOrphan):])
		_, isTip := cs.orphanTips[h]
		all = append(all, entry{hash: h, height: blk.Header.Height, isTip: isTip})
		return nil
	}); err != nil {
		return err
	}

	if len(all) < cs.cfg.OrphanStorageCapacity {
		return nil
	}

	// Ascending height, non-tips first.
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			less := all[j].height < all[i].height
			if all[j].isTip && !all[i].isTip {
				less = false
			}
			if !all[j].isTip && all[i].isTip {
				less = true
			}
			if less {
				all[i], all[j] = all[j], all[i]
			}
		}
	}

	need := len(all) - cs.cfg.OrphanStorageCapacity + 1
	evicted := 0
	for _, e := range all {
		if evicted >= need {
			break
		}
		if e.isTip {
			continue
		}
		if err := cs.db.Delete(orphanKey(e.hash)); err != nil {
			return err
		}
		evicted++
	}
	return nil
}

// removeOrphanLocked drops a block from the orphan pool once it has
// been committed onto the main chain. Callers must hold cs.mu.
func (cs *ChainStore) removeOrphanLocked(hash types.Hash) error {
	has, err := cs.db.Has(orphanKey(hash))
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	if err := cs.db.Delete(orphanKey(hash)); err != nil {
		return err
	}
	if _, ok := cs.orphanTips[hash]; ok {
		delete(cs.orphanTips, hash)
		if err := cs.db.Delete(orphanTipKey(hash)); err != nil {
			return err
		}
	}
	return nil
}

// evictStaleOrphansLocked drops orphans below tip-reorg_window, unless
// they are still a chain tip something might yet extend. Callers must
// hold cs.mu.
func (cs *ChainStore) evictStaleOrphansLocked() error {
	if cs.cfg.ReorgWindow == 0 || cs.meta.Height <= cs.cfg.ReorgWindow {
		return nil
	}
	floor := cs.meta.Height - cs.cfg.ReorgWindow

	var stale []types.Hash
	if err := cs.db.ForEach(prefixOrphan, func(k, v []byte) error {
		var blk block.Block
		if err := json.Unmarshal(v, &blk); err != nil {
			return err
		}
		if blk.Header.Height >= floor {
			return nil
		}
		hash := blk.Hash()
		if _, isTip := cs.orphanTips[hash]; isTip {
			return nil
		}
		stale = append(stale, hash)
		return nil
	}); err != nil {
		return err
	}

	for _, hash := range stale {
		if err := cs.db.Delete(orphanKey(hash)); err != nil {
			return err
		}
	}
	return nil
}

// CleanupAllOrphans drops every orphan unconditionally.
func (cs *ChainStore) CleanupAllOrphans() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var toDelete [][]byte
	if err := cs.db.ForEach(prefixOrphan, func(k, _ []byte) error {
		toDelete = append(toDelete, append([]byte{}, k...))
		return nil
	}); err != nil {
		return err
	}
	for _, k := range toDelete {
		if err := cs.db.Delete(k); err != nil {
			return err
		}
	}
	for h := range cs.orphanTips {
		if err := cs.db.Delete(orphanTipKey(h)); err != nil {
			return err
		}
		delete(cs.orphanTips, h)
	}
	return nil
}

// FetchOrphanChainTipByHash returns an orphan-chain-tip block, if hash
// names one.
func (cs *ChainStore) FetchOrphanChainTipByHash(hash types.Hash) (*block.Block, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if _, ok := cs.orphanTips[hash]; !ok {
		return nil, false
	}
	data, err := cs.db.Get(orphanKey(hash))
	if err != nil {
		return nil, false
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, false
	}
	return &blk, true
}

// chainedOrphanWork walks descendants of hash within the orphan pool,
// returning the tip hash of one chained branch and its total declared
// target difficulty, so add_block can decide whether to trigger a reorg
// from an orphan chain. At each step it follows the first orphan child
// the pool iteration yields; when a block has several orphan children,
// the other branches are not walked and their work is not compared.
func (cs *ChainStore) chainedOrphanWork(hash types.Hash) (tip types.Hash, work uint64, err error) {
	tip = hash
	seen := map[types.Hash]bool{hash: true}

	for {
		var next types.Hash
		found := false
		if err := cs.db.ForEach(prefixOrphan, func(k, v []byte) error {
			if found {
				return nil
			}
			var blk block.Block
			if err := json.Unmarshal(v, &blk); err != nil {
				return err
			}
			if blk.Header.PrevHash == tip {
				next = blk.Hash()
				found = true
			}
			return nil
		}); err != nil {
			return types.Hash{}, 0, err
		}
		if !found || seen[next] {
			break
		}
		seen[next] = true
		tip = next
	}

	h := hash
	for {
		blk, err := cs.getOrphan(h)
		if err != nil {
			break
		}
		work += blk.Header.Pow.TargetDifficulty
		if blk.Hash() == tip {
			break
		}
		next, ok := cs.findOrphanChild(blk.Hash())
		if !ok {
			break
		}
		h = next
	}
	return tip, work, nil
}

// orphanBranchWork walks back from tipHash through the orphan pool until
// it reaches a block whose parent is a known main-chain header, then
// returns the branch's total accumulated work (the main chain's
// cumulative work at that ancestor, plus every orphan block's own
// declared difficulty), the ancestor's height (the reorg's LCA height),
// and the branch itself ordered from tipHash back down to the block
// right after the ancestor. Fails if the branch does not connect back to
// the main chain at all (a deep or genuinely disconnected fork).
func (cs *ChainStore) orphanBranchWork(tipHash types.Hash) (work uint64, lcaHeight uint64, chain []*block.Block, err error) {
	cur := tipHash
	for {
		blk, gerr := cs.getOrphan(cur)
		if gerr != nil {
			return 0, 0, nil, fmt.Errorf("chainstore: orphan %s not found: %w", cur, gerr)
		}
		chain = append(chain, blk)

		parent := blk.Header.PrevHash
		if isOrphan, _ := cs.db.Has(orphanKey(parent)); isOrphan {
			cur = parent
			continue
		}

		hdr, herr := cs.getHeader(parent)
		if herr != nil {
			return 0, 0, nil, fmt.Errorf("chainstore: orphan branch does not connect to the main chain")
		}
		lcaHeight = hdr.Height
		break
	}

	ancestor, err := cs.getHeightRecord(lcaHeight)
	if err != nil {
		return 0, 0, nil, err
	}
	work = ancestor.Work
	for _, blk := range chain {
		work += blk.Header.Pow.TargetDifficulty
	}
	return work, lcaHeight, chain, nil
}

func (cs *ChainStore) getOrphan(hash types.Hash) (*block.Block, error) {
	data, err := cs.db.Get(orphanKey(hash))
	if err != nil {
		return nil, err
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, err
	}
	return &blk, nil
}

func (cs *ChainStore) findOrphanChild(parent types.Hash) (types.Hash, bool) {
	var child types.Hash
	found := false
	cs.db.ForEach(prefixOrphan, func(k, v []byte) error {
		if found {
			return nil
		}
		var blk block.Block
		if err := json.Unmarshal(v, &blk); err != nil {
			return err
		}
		if blk.Header.PrevHash == parent {
			child = blk.Hash()
			found = true
		}
		return nil
	})
	return child, found
}
