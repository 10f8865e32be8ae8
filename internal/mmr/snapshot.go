package mmr

import "github.com/klingnet-chain/core/pkg/types"

// CheckpointSnapshot is the JSON-friendly form of a Checkpoint.
type CheckpointSnapshot struct {
	Additions []types.Hash `json:"additions"`
	Deleted   []uint64     `json:"deleted"`
}

// Snapshot is the JSON-friendly form of an MMR, suitable for persisting
// to a key-value store and restoring on restart.
type Snapshot struct {
	Leaves        []types.Hash         `json:"leaves"`
	DeletedNow    []uint64             `json:"deleted_now"`
	Current       CheckpointSnapshot   `json:"current"`
	Checkpoints   []CheckpointSnapshot `json:"checkpoints"`
	HorizonHeight uint64               `json:"horizon_height"`
}

func toSnapshotCheckpoint(cp Checkpoint) CheckpointSnapshot {
	positions := cp.Deleted.ToArray()
	deleted := make([]uint64, len(positions))
	for i, p := range positions {
		deleted[i] = uint64(p)
	}
	return CheckpointSnapshot{Additions: cp.Additions, Deleted: deleted}
}

func fromSnapshotCheckpoint(s CheckpointSnapshot) Checkpoint {
	cp := newCheckpoint()
	cp.Additions = s.Additions
	for _, p := range s.Deleted {
		cp.Deleted.Add(uint32(p))
	}
	return cp
}

// Snapshot captures the full accumulator state for persistence.
func (m *MMR) Snapshot() Snapshot {
	positions := m.deletedNow.ToArray()
	deletedNow := make([]uint64, len(positions))
	for i, p := range positions {
		deletedNow[i] = uint64(p)
	}

	checkpoints := make([]CheckpointSnapshot, len(m.checkpoints))
	for i, cp := range m.checkpoints {
		checkpoints[i] = toSnapshotCheckpoint(cp)
	}

	return Snapshot{
		Leaves:        append([]types.Hash(nil), m.leaves...),
		DeletedNow:    deletedNow,
		Current:       toSnapshotCheckpoint(m.current),
		Checkpoints:   checkpoints,
		HorizonHeight: m.horizonHeight,
	}
}

// FromSnapshot rebuilds an MMR from a previously captured Snapshot.
func FromSnapshot(s Snapshot) *MMR {
	m := New()
	m.leaves = append([]types.Hash(nil), s.Leaves...)
	for _, p := range s.DeletedNow {
		m.deletedNow.Add(uint32(p))
	}
	m.current = fromSnapshotCheckpoint(s.Current)
	m.checkpoints = make([]Checkpoint, len(s.Checkpoints))
	for i, cp := range s.Checkpoints {
		m.checkpoints[i] = fromSnapshotCheckpoint(cp)
	}
	m.horizonHeight = s.HorizonHeight
	return m
}
