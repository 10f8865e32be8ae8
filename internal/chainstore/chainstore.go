// Package chainstore implements the Chain Storage Engine: the
// authoritative ledger state (headers, blocks, UTXO/STXO/kernel sets,
// orphan pool, MMR accumulators) plus block acceptance, reorg, and
// pruning. It is owned by exactly one writer; readers take the engine's
// RWMutex and may run in parallel with each other.
package chainstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klingnet-chain/core/internal/mmr"
	"github.com/klingnet-chain/core/internal/storage"
	"github.com/klingnet-chain/core/internal/validation"
	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

const (
	rangeProofLeafLabel = "klingnet.mmr.leaf.rangeproof"
	kernelLeafLabel     = "klingnet.mmr.leaf.kernel"
)

// Metadata is the single-row chain metadata the contract names:
// best_block, height_of_longest_chain, accumulated_work,
// pruning_horizon, pruned_height.
type Metadata struct {
	BestBlock       types.Hash `json:"best_block"`
	Height          uint64     `json:"height"`
	AccumulatedWork uint64     `json:"accumulated_work"`
	PruningHorizon  int        `json:"pruning_horizon"`
	PrunedHeight    uint64     `json:"pruned_height"`
}

// IsGenesis reports whether the chain has no blocks yet.
func (m Metadata) IsGenesis() bool { return m.AccumulatedWork == 0 && m.BestBlock.IsZero() }

// Config carries the tunables §6 names.
type Config struct {
	PruningHorizon        int // 0 = archival (never prune)
	OrphanStorageCapacity int
	ReorgWindow           uint64 // orphans below tip-reorgWindow are evicted unless a tip
	MaxBlockWeight        uint64
}

// ChainStore is the Chain Storage Engine.
type ChainStore struct {
	mu sync.RWMutex

	db      storage.DB
	batcher storage.Batcher
	cfg     Config
	meta    Metadata
	bodies  validation.InternalConsistency

	outputMMR *mmr.MMR
	kernelMMR *mmr.MMR
	rpMMR     *mmr.MMR

	orphanTips  map[types.Hash]struct{}
	subscribers []*subscriber
}

// New opens a chain storage engine against db, recovering metadata and
// MMR state if the store is not empty.
func New(db storage.DB, cfg Config, internal validation.InternalConsistency) (*ChainStore, error) {
	batcher, ok := db.(storage.Batcher)
	if !ok {
		return nil, fmt.Errorf("chainstore: db %T does not support atomic batches", db)
	}

	cs := &ChainStore{
		db:         db,
		batcher:    batcher,
		cfg:        cfg,
		bodies:     internal,
		outputMMR:  mmr.New(),
		kernelMMR:  mmr.New(),
		rpMMR:      mmr.New(),
		orphanTips: make(map[types.Hash]struct{}),
	}

	if err := cs.loadMetadata(); err != nil {
		return nil, err
	}
	if err := cs.loadMMRs(); err != nil {
		return nil, err
	}
	if err := cs.loadOrphanTips(); err != nil {
		return nil, err
	}
	return cs, nil
}

func (cs *ChainStore) loadMetadata() error {
	data, err := cs.db.Get(keyMeta)
	if err != nil {
		cs.meta = Metadata{PruningHorizon: cs.cfg.PruningHorizon}
		return nil
	}
	return json.Unmarshal(data, &cs.meta)
}

func (cs *ChainStore) putMetadata(b storage.Batch, m Metadata) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return b.Put(keyMeta, data)
}

func (cs *ChainStore) loadMMRs() error {
	load := func(key []byte) (*mmr.MMR, error) {
		data, err := cs.db.Get(key)
		if err != nil {
			return mmr.New(), nil
		}
		var snap mmr.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("unmarshal mmr snapshot: %w", err)
		}
		return mmr.FromSnapshot(snap), nil
	}

	var err error
	if cs.outputMMR, err = load(keyOutputMMR); err != nil {
		return err
	}
	if cs.kernelMMR, err = load(keyKernelMMR); err != nil {
		return err
	}
	if cs.rpMMR, err = load(keyRPMMR); err != nil {
		return err
	}
	return nil
}

func (cs *ChainStore) putMMRSnapshots(b storage.Batch) error {
	put := func(key []byte, m *mmr.MMR) error {
		data, err := json.Marshal(m.Snapshot())
		if err != nil {
			return err
		}
		return b.Put(key, data)
	}
	if err := put(keyOutputMMR, cs.outputMMR); err != nil {
		return err
	}
	if err := put(keyKernelMMR, cs.kernelMMR); err != nil {
		return err
	}
	return put(keyRPMMR, cs.rpMMR)
}

func (cs *ChainStore) loadOrphanTips() error {
	return cs.db.ForEach(prefixOrphanTip, func(k, _ []byte) error {
		var h types.Hash
		copy(h[:], k[len(prefixOrphanTip):])
		cs.orphanTips[h] = struct{}{}
		return nil
	})
}

// TipHeader returns the header of the current best chain tip.
func (cs *ChainStore) TipHeader() (block.Header, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.meta.IsGenesis() {
		return block.Header{}, ErrNoGenesis
	}
	hdr, err := cs.getHeader(cs.meta.BestBlock)
	return hdr, err
}

// Height returns the current chain height.
func (cs *ChainStore) Height() uint64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.meta.Height
}

func (cs *ChainStore) getHeader(hash types.Hash) (block.Header, error) {
	data, err := cs.db.Get(headerKey(hash))
	if err != nil {
		return block.Header{}, fmt.Errorf("get header %s: %w", hash, err)
	}
	var hdr block.Header
	if err := json.Unmarshal(data, &hdr); err != nil {
		return block.Header{}, fmt.Errorf("unmarshal header %s: %w", hash, err)
	}
	return hdr, nil
}

func (cs *ChainStore) getBlock(hash types.Hash) (*block.Block, error) {
	data, err := cs.db.Get(blockKey(hash))
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", hash, err)
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, fmt.Errorf("unmarshal block %s: %w", hash, err)
	}
	return &blk, nil
}

// heightRecord is what the height index stores: the main-chain hash at
// that height plus the chain's cumulative PoW work up to and including
// it, so a fork's ancestor work can be looked up without replaying the
// whole chain.
type heightRecord struct {
	Hash types.Hash `json:"hash"`
	Work uint64     `json:"work"`
}

func (cs *ChainStore) getHeightRecord(height uint64) (heightRecord, error) {
	data, err := cs.db.Get(heightKey(height))
	if err != nil {
		return heightRecord{}, fmt.Errorf("height index get %d: %w", height, err)
	}
	var rec heightRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return heightRecord{}, fmt.Errorf("unmarshal height record %d: %w", height, err)
	}
	return rec, nil
}

func (cs *ChainStore) getBlockByHeight(height uint64) (*block.Block, error) {
	rec, err := cs.getHeightRecord(height)
	if err != nil {
		return nil, err
	}
	return cs.getBlock(rec.Hash)
}

// FetchBlock returns the block at a given height on the main chain.
func (cs *ChainStore) FetchBlock(height uint64) (*block.Block, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.getBlockByHeight(height)
}

// FetchHeader returns the header at a given height on the main chain.
func (cs *ChainStore) FetchHeader(height uint64) (block.Header, error) {
	blk, err := cs.FetchBlock(height)
	if err != nil {
		return block.Header{}, err
	}
	return blk.Header, nil
}

func (cs *ChainStore) hasBlockAnywhere(hash types.Hash) (bool, error) {
	if ok, err := cs.db.Has(blockKey(hash)); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	return cs.db.Has(orphanKey(hash))
}

// FetchUTXOByHash returns a live unspent output by its commitment hash.
func (cs *ChainStore) FetchUTXOByHash(hash types.Hash) (validation.UTXORecord, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.utxoRecord(hash)
}

func (cs *ChainStore) utxoRecord(hash types.Hash) (validation.UTXORecord, bool) {
	data, err := cs.db.Get(utxoKey(hash))
	if err != nil {
		return validation.UTXORecord{}, false
	}
	var rec validation.UTXORecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return validation.UTXORecord{}, false
	}
	return rec, true
}

// FetchUTXOByUniqueID looks up a live MINT_NON_FUNGIBLE output by its
// (parent_public_key, unique_id) pair.
func (cs *ChainStore) FetchUTXOByUniqueID(parentPubKey types.PublicKey, uniqueID []byte) (validation.UTXORecord, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	data, err := cs.db.Get(uniqueIDKey(parentPubKey, uniqueID))
	if err != nil {
		return validation.UTXORecord{}, false
	}
	var hash types.Hash
	copy(hash[:], data)
	return cs.utxoRecord(hash)
}

// --- validation.ChainView ---

// UTXO implements validation.ChainView.
func (cs *ChainStore) UTXO(hash types.Hash) (validation.UTXORecord, bool) {
	return cs.FetchUTXOByHash(hash)
}

// TipHeight implements validation.ChainView.
func (cs *ChainStore) TipHeight() uint64 {
	return cs.Height()
}

// HasKernelExcessSignature implements validation.ChainView.
func (cs *ChainStore) HasKernelExcessSignature(sig types.Signature) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	ok, _ := cs.db.Has(kernelSigKey(sig))
	return ok
}

// CalculateMMRRoots computes the output/kernel/range-proof MMR roots a
// block with the given body would produce, without mutating any state.
// This is the read-only counterpart of the commit-time root check.
func (cs *ChainStore) CalculateMMRRoots(inputs []tx.Input, outputs []tx.Output, kernels []tx.Kernel) (outRoot, kernelRoot, rpRoot types.Hash, err error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.calculateMMRRootsLocked(inputs, outputs, kernels)
}

func (cs *ChainStore) calculateMMRRootsLocked(inputs []tx.Input, outputs []tx.Output, kernels []tx.Kernel) (outRoot, kernelRoot, rpRoot types.Hash, err error) {
	outputAdds := make([]types.Hash, len(outputs))
	rpAdds := make([]types.Hash, len(outputs))
	for i := range outputs {
		out := &outputs[i]
		outputAdds[i] = out.Hash()
		rpAdds[i] = crypto.Hash(rangeProofLeafLabel, out.RangeProof)
	}
	kernelAdds := make([]types.Hash, len(kernels))
	for i := range kernels {
		k := &kernels[i]
		kernelAdds[i] = crypto.Hash(kernelLeafLabel, k.ExcessCommitment[:])
	}

	deletions := make([]uint64, 0, len(inputs))
	for _, in := range inputs {
		rec, ok := cs.utxoRecord(in.OutputHash)
		if !ok {
			return types.Hash{}, types.Hash{}, types.Hash{}, fmt.Errorf("chainstore: spent output %s not found for root_with", in.OutputHash)
		}
		deletions = append(deletions, rec.MMRPosition)
	}

	outRoot, err = cs.outputMMR.RootWith(outputAdds, deletions)
	if err != nil {
		return types.Hash{}, types.Hash{}, types.Hash{}, err
	}
	kernelRoot, err = cs.kernelMMR.RootWith(kernelAdds, nil)
	if err != nil {
		return types.Hash{}, types.Hash{}, types.Hash{}, err
	}
	rpRoot, err = cs.rpMMR.RootWith(rpAdds, deletions)
	if err != nil {
		return types.Hash{}, types.Hash{}, types.Hash{}, err
	}
	return outRoot, kernelRoot, rpRoot, nil
}
