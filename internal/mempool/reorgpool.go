package mempool

import (
	"container/heap"
	"time"

	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// reorgEntry is one transaction displaced from Unconfirmed by a block
// that included it, held in case a reorg undoes that block.
type reorgEntry struct {
	txHash  types.Hash
	tx      *tx.Transaction
	movedAt time.Time
	index   int // heap.Interface bookkeeping
}

// reorgHeap is a min-heap ordered by movedAt, oldest first, so TTL
// eviction always pops the longest-resident entry.
type reorgHeap []*reorgEntry

func (h reorgHeap) Len() int            { return len(h) }
func (h reorgHeap) Less(i, j int) bool  { return h[i].movedAt.Before(h[j].movedAt) }
func (h reorgHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *reorgHeap) Push(x any) {
	e := x.(*reorgEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *reorgHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// moveToReorgLocked transfers an unconfirmed transaction into the Reorg
// pool, stamped with the current time for TTL eviction. Callers must
// hold p.mu.
func (p *Pool) moveToReorgLocked(e *poolEntry) {
	re := &reorgEntry{txHash: e.txHash, tx: e.tx, movedAt: admissionClock()}
	p.reorg[e.txHash] = re
	for i := range e.tx.Kernels {
		p.reorgSig[e.tx.Kernels[i].ExcessSignature] = e.txHash
	}
	heap.Push(&p.reorgQueue, re)
	p.removeUnconfirmedLocked(e.txHash)
	reorgMovesTotal.WithLabelValues("to_reorg").Inc()
}

// moveToUnconfirmedLocked transfers a Reorg-pool transaction back to
// Unconfirmed, e.g. because the block that confirmed it was undone.
// Callers must hold p.mu and have already removed re from p.reorgQueue.
func (p *Pool) moveToUnconfirmedLocked(re *reorgEntry, weight uint64, fee uint64, rate float64) {
	delete(p.reorg, re.txHash)
	for i := range re.tx.Kernels {
		if p.reorgSig[re.tx.Kernels[i].ExcessSignature] == re.txHash {
			delete(p.reorgSig, re.tx.Kernels[i].ExcessSignature)
		}
	}

	entry := &poolEntry{
		txHash:     re.txHash,
		tx:         re.tx,
		fee:        fee,
		weight:     weight,
		feePerGram: rate,
		insertedAt: admissionClock(),
	}
	p.unconfirmed[re.txHash] = entry
	for i := range re.tx.Outputs {
		p.outputIndex[re.tx.Outputs[i].Hash()] = re.txHash
	}
	for i := range re.tx.Inputs {
		p.spentBy[re.tx.Inputs[i].OutputHash] = re.txHash
	}
	for i := range re.tx.Kernels {
		p.sigIndex[re.tx.Kernels[i].ExcessSignature] = re.txHash
	}
	reorgMovesTotal.WithLabelValues("to_unconfirmed").Inc()
}

// removeReorgLocked drops an entry from the Reorg pool without
// returning it to Unconfirmed (TTL expiry, permanent double-spend).
func (p *Pool) removeReorgLocked(re *reorgEntry) {
	delete(p.reorg, re.txHash)
	for i := range re.tx.Kernels {
		if p.reorgSig[re.tx.Kernels[i].ExcessSignature] == re.txHash {
			delete(p.reorgSig, re.tx.Kernels[i].ExcessSignature)
		}
	}
	if re.index >= 0 && re.index < len(p.reorgQueue) && p.reorgQueue[re.index] == re {
		heap.Remove(&p.reorgQueue, re.index)
	}
}

// EvictExpiredReorg drops Reorg-pool transactions older than the
// configured TTL and reports how many were dropped.
func (p *Pool) EvictExpiredReorg() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.EvictExpiredReorgLocked()
}
