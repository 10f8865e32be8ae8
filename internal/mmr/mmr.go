// Package mmr implements an append-only Merkle Mountain Range with a
// checkpoint log, the accumulator used by the chain storage engine for
// the output, range-proof and kernel sets. Three independent instances
// of MMR (one per set) are owned and synchronized by the chain store;
// this package does not take its own lock, the same way the teacher's
// storage layer leaves locking to its caller.
package mmr

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/types"
)

const (
	nodeHashLabel  = "klingnet.mmr.node"
	emptyRootLabel = "klingnet.mmr.empty"
)

// Checkpoint records one frozen unit of change to the accumulator: the
// leaves appended and the leaf positions marked deleted since the
// previous freeze. Checkpoints are produced one per committed block, so
// rewinding k checkpoints undoes exactly the last k blocks' effect on
// this accumulator.
type Checkpoint struct {
	Additions []types.Hash
	Deleted   *roaring.Bitmap
}

func newCheckpoint() Checkpoint {
	return Checkpoint{Deleted: roaring.New()}
}

// MMR is a Merkle Mountain Range over an append-only leaf array, with a
// companion deletion bitmap tracking which leaves are currently spent.
// The root hash is computed by bagging peaks over contiguous
// power-of-two blocks of the leaf array, substituting a zero hash for
// any leaf currently marked deleted, so that spending a leaf changes
// the committed root even though the underlying leaf array never
// shrinks. This lets a light client treat a leaf's absence from the
// root as proof of a spend, without this implementation needing to
// maintain real pruned internal nodes.
type MMR struct {
	leaves []types.Hash
	// deletedNow is the live view: every position ever marked deleted,
	// across all frozen checkpoints and the current one.
	deletedNow *roaring.Bitmap

	current Checkpoint

	// checkpoints holds every checkpoint still individually
	// addressable. checkpoints[0] represents absolute height
	// horizonHeight+0 (horizonHeight itself, the folded horizon entry,
	// is a diagnostic address only and always rejected as
	// beyond-pruning-horizon per Tari's own convention: the horizon
	// checkpoint exists to keep leaves and the deletion bitmap correct,
	// not to answer point queries about the heights it absorbed).
	checkpoints []Checkpoint
	// horizonHeight is the absolute height the oldest retained
	// checkpoint (or, if none remain, the current checkpoint) sits at.
	horizonHeight uint64
}

// New returns an empty accumulator.
func New() *MMR {
	return &MMR{deletedNow: roaring.New(), current: newCheckpoint()}
}

// Push appends a leaf hash and returns the position assigned to it.
func (m *MMR) Push(h types.Hash) uint64 {
	pos := uint64(len(m.leaves))
	m.leaves = append(m.leaves, h)
	m.current.Additions = append(m.current.Additions, h)
	return pos
}

// Delete marks a leaf position spent. It is idempotent-unsafe by
// design: deleting an already-deleted position is a caller bug and is
// reported as such, mirroring the teacher's store rejecting a double
// spend rather than silently absorbing it.
func (m *MMR) Delete(position uint64) error {
	if position >= uint64(len(m.leaves)) {
		return ErrPositionOutOfRange
	}
	if m.deletedNow.Contains(uint32(position)) {
		return ErrAlreadyDeleted
	}
	m.deletedNow.Add(uint32(position))
	m.current.Deleted.Add(uint32(position))
	return nil
}

// Root returns the current committed root, reflecting every push and
// delete applied so far, frozen or not.
func (m *MMR) Root() types.Hash {
	return bagLeaves(m.leaves, m.deletedNow)
}

// RootWith computes the root the accumulator would have if additions
// were pushed and deletions applied, without mutating any state. The
// chain storage engine uses this to evaluate a candidate block's MMR
// roots before committing it.
func (m *MMR) RootWith(additions []types.Hash, deletions []uint64) (types.Hash, error) {
	leaves := make([]types.Hash, len(m.leaves)+len(additions))
	copy(leaves, m.leaves)
	copy(leaves[len(m.leaves):], additions)

	deleted := m.deletedNow.Clone()
	for _, pos := range deletions {
		if pos >= uint64(len(leaves)) {
			return types.Hash{}, ErrPositionOutOfRange
		}
		deleted.Add(uint32(pos))
	}
	return bagLeaves(leaves, deleted), nil
}

// Commit freezes the current checkpoint (the additions and deletions
// accumulated since the last Commit) onto the checkpoint log and opens
// a fresh current checkpoint. Called once per block accepted onto the
// active chain.
func (m *MMR) Commit() {
	m.checkpoints = append(m.checkpoints, m.current)
	m.current = newCheckpoint()
}

// Rewind discards the last k committed checkpoints (and whatever is
// pending in the uncommitted current checkpoint), restoring the
// accumulator to the state it had after the (len-k)'th commit. Used
// when a reorg walks the chain back to a common ancestor.
func (m *MMR) Rewind(k int) error {
	if k > len(m.checkpoints) {
		return ErrNothingToRewind
	}
	m.leaves = m.leaves[:len(m.leaves)-len(m.current.Additions)]
	pending := m.current.Deleted.Iterator()
	for pending.HasNext() {
		m.deletedNow.Remove(pending.Next())
	}
	m.current = newCheckpoint()

	for i := 0; i < k; i++ {
		cp := m.checkpoints[len(m.checkpoints)-1]
		m.checkpoints = m.checkpoints[:len(m.checkpoints)-1]

		m.leaves = m.leaves[:len(m.leaves)-len(cp.Additions)]
		it := cp.Deleted.Iterator()
		for it.HasNext() {
			m.deletedNow.Remove(it.Next())
		}
	}
	return nil
}

// MergeOldest folds every checkpoint but the newest maxKept into a
// single horizon checkpoint. It returns, in ascending order, the leaf
// positions whose deletion is now only recorded in the horizon
// checkpoint: the caller (the chain storage engine) uses this list to
// discard the corresponding spent-output records, since their
// individual spend height is no longer queryable via FetchNode.
func (m *MMR) MergeOldest(maxKept int) []uint64 {
	if maxKept < 0 {
		maxKept = 0
	}
	if len(m.checkpoints) <= maxKept {
		return nil
	}
	mergeCount := len(m.checkpoints) - maxKept

	merged := newCheckpoint()
	for i := 0; i < mergeCount; i++ {
		cp := m.checkpoints[i]
		merged.Additions = append(merged.Additions, cp.Additions...)
		merged.Deleted.Or(cp.Deleted)
	}

	m.checkpoints = append([]Checkpoint{merged}, m.checkpoints[mergeCount:]...)
	m.horizonHeight += uint64(mergeCount) - 1

	positions := merged.Deleted.ToArray()
	out := make([]uint64, len(positions))
	for i, p := range positions {
		out[i] = uint64(p)
	}
	return out
}

// FetchNode returns the leaf hash at position and whether it was still
// live (not yet deleted) as of historicalHeight. historicalHeight is an
// absolute checkpoint height: 0 is the state after the first commit,
// and so on; the in-progress current checkpoint is addressed as the
// next height after the last committed one.
func (m *MMR) FetchNode(position uint64, historicalHeight uint64) (types.Hash, bool, error) {
	if position >= uint64(len(m.leaves)) {
		return types.Hash{}, false, ErrPositionOutOfRange
	}
	if historicalHeight <= m.horizonHeight && len(m.checkpoints) > 0 {
		return types.Hash{}, false, ErrBeyondPruningHorizon
	}

	deletionHeight, found := m.deletionHeightOf(position)
	live := !found || historicalHeight < deletionHeight
	return m.leaves[position], live, nil
}

// deletionHeightOf scans the checkpoint log (newest first, then the
// current checkpoint) for the one absolute height at which position
// was marked deleted.
func (m *MMR) deletionHeightOf(position uint64) (uint64, bool) {
	p := uint32(position)
	if m.current.Deleted.Contains(p) {
		return m.horizonHeight + uint64(len(m.checkpoints)), true
	}
	for i := len(m.checkpoints) - 1; i >= 0; i-- {
		if m.checkpoints[i].Deleted.Contains(p) {
			return m.horizonHeight + uint64(i), true
		}
	}
	return 0, false
}

// LeafCount returns the number of leaves ever pushed (spent or not).
func (m *MMR) LeafCount() uint64 {
	return uint64(len(m.leaves))
}

// CheckpointCount returns the number of individually addressable
// checkpoints currently retained, used by the chain storage engine to
// decide when pruning_horizon has been exceeded.
func (m *MMR) CheckpointCount() int {
	return len(m.checkpoints)
}

// HorizonHeight returns the absolute height of the oldest retained
// checkpoint, for reporting a chain's pruned_height.
func (m *MMR) HorizonHeight() uint64 {
	return m.horizonHeight
}

// bagLeaves computes the MMR root over leaves, substituting a zero
// hash for any position present in deleted.
func bagLeaves(leaves []types.Hash, deleted *roaring.Bitmap) types.Hash {
	n := len(leaves)
	if n == 0 {
		return crypto.Hash(emptyRootLabel)
	}

	effective := make([]types.Hash, n)
	for i, h := range leaves {
		if deleted.Contains(uint32(i)) {
			effective[i] = types.Hash{}
			continue
		}
		effective[i] = h
	}

	var peaks []types.Hash
	remaining := effective
	for len(remaining) > 0 {
		size := 1
		for size*2 <= len(remaining) {
			size *= 2
		}
		peaks = append(peaks, perfectSubtreeRoot(remaining[:size]))
		remaining = remaining[size:]
	}

	acc := peaks[len(peaks)-1]
	for i := len(peaks) - 2; i >= 0; i-- {
		acc = hashPair(peaks[i], acc)
	}
	return acc
}

// perfectSubtreeRoot computes the root of a balanced binary tree over a
// power-of-two-sized leaf slice.
func perfectSubtreeRoot(leaves []types.Hash) types.Hash {
	if len(leaves) == 1 {
		return leaves[0]
	}
	half := len(leaves) / 2
	left := perfectSubtreeRoot(leaves[:half])
	right := perfectSubtreeRoot(leaves[half:])
	return hashPair(left, right)
}

func hashPair(a, b types.Hash) types.Hash {
	return crypto.Hash(nodeHashLabel, a[:], b[:])
}
