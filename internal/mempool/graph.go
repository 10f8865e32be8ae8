package mempool

import (
	"sort"

	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// Retrieve returns a topologically-sorted prefix of the Unconfirmed
// pool whose summed weight does not exceed budget: descending
// fee-per-gram order, ties broken by insertion time, but a transaction
// is never emitted before an unconfirmed parent it spends from. A
// lower-priority, budget-fitting transaction may fill a slot a
// higher-priority one left unused because it didn't fit.
func (p *Pool) Retrieve(weightBudget uint64) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	parents := make(map[types.Hash][]types.Hash, len(p.unconfirmed))
	children := make(map[types.Hash][]types.Hash, len(p.unconfirmed))
	indegree := make(map[types.Hash]int, len(p.unconfirmed))

	for txHash, e := range p.unconfirmed {
		var ps []types.Hash
		for i := range e.tx.Inputs {
			producer, inPool := p.outputIndex[e.tx.Inputs[i].OutputHash]
			if inPool && producer != txHash {
				ps = append(ps, producer)
			}
		}
		parents[txHash] = ps
		indegree[txHash] = len(ps)
		for _, parent := range ps {
			children[parent] = append(children[parent], txHash)
		}
	}

	ready := make([]*poolEntry, 0, len(p.unconfirmed))
	for txHash, e := range p.unconfirmed {
		if indegree[txHash] == 0 {
			ready = append(ready, e)
		}
	}

	var result []*tx.Transaction
	var remaining = weightBudget

	for len(ready) > 0 {
		sortByPriority(ready)

		chosen := -1
		for i, e := range ready {
			if e.weight <= remaining {
				chosen = i
				break
			}
		}
		if chosen == -1 {
			break
		}

		e := ready[chosen]
		ready = append(ready[:chosen], ready[chosen+1:]...)
		result = append(result, e.tx)
		remaining -= e.weight

		for _, childHash := range children[e.txHash] {
			indegree[childHash]--
			if indegree[childHash] == 0 {
				ready = append(ready, p.unconfirmed[childHash])
			}
		}
	}

	return result
}

// sortByPriority orders entries by descending fee-per-gram, breaking
// ties by earlier insertion time.
func sortByPriority(entries []*poolEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].feePerGram != entries[j].feePerGram {
			return entries[i].feePerGram > entries[j].feePerGram
		}
		return entries[i].insertedAt.Before(entries[j].insertedAt)
	})
}
