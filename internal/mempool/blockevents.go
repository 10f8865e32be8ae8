package mempool

import (
	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/types"
)

// ProcessPublishedBlock reacts to a new tip: transactions the block
// confirms move from Unconfirmed to the Reorg pool (kept in case the
// block is later undone), transactions double-spent by it are dropped
// outright, and the remaining Unconfirmed set is revalidated against
// the new tip height so newly-time-locked-invalid entries are dropped.
func (p *Pool) ProcessPublishedBlock(b *block.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	confirmedSigs := blockKernelSignatures(b)
	spent := blockSpentOutputs(b)

	for txHash, e := range p.unconfirmed {
		confirmed := false
		for i := range e.tx.Kernels {
			if _, ok := confirmedSigs[e.tx.Kernels[i].ExcessSignature]; ok {
				confirmed = true
				break
			}
		}
		if confirmed {
			p.moveToReorgLocked(e)
			continue
		}

		doubleSpent := false
		for i := range e.tx.Inputs {
			if _, ok := spent[e.tx.Inputs[i].OutputHash]; ok {
				doubleSpent = true
				break
			}
		}
		if doubleSpent {
			p.removeUnconfirmedLocked(txHash)
			continue
		}
	}

	spendHeight := p.view.TipHeight() + 1
	for txHash, e := range p.unconfirmed {
		if result, _ := p.classifyChainLinked(e.tx, spendHeight, txHash); result != UnconfirmedPool {
			p.removeUnconfirmedLocked(txHash)
		}
	}

	p.EvictExpiredReorgLocked()
}

// ProcessReorg undoes removed's effect on the pool before applying
// added: transactions the removed blocks had confirmed move back from
// Reorg to Unconfirmed, subject to revalidation against the new tip,
// then each added block is processed as if newly published.
func (p *Pool) ProcessReorg(removed, added []*block.Block) {
	p.mu.Lock()

	for _, b := range removed {
		sigs := blockKernelSignatures(b)
		for sig := range sigs {
			txHash, ok := p.reorgSig[sig]
			if !ok {
				continue
			}
			re := p.reorg[txHash]
			if re == nil {
				continue
			}
			p.removeReorgLocked(re)

			spendHeight := p.view.TipHeight() + 1
			if result, _ := p.classifyChainLinked(re.tx, spendHeight, types.Hash{}); result != UnconfirmedPool {
				continue
			}
			weight := re.tx.Weight()
			fee := re.tx.TotalFee()
			p.moveToUnconfirmedLocked(re, weight, fee, feeRate(fee, weight))
		}
	}

	p.mu.Unlock()

	for _, b := range added {
		p.ProcessPublishedBlock(b)
	}
}

// EvictExpiredReorgLocked is EvictExpiredReorg's body for callers
// already holding p.mu.
func (p *Pool) EvictExpiredReorgLocked() int {
	if p.cfg.ReorgPoolTTL <= 0 {
		return 0
	}
	cutoff := admissionClock().Add(-p.cfg.ReorgPoolTTL)
	var evicted int
	for p.reorgQueue.Len() > 0 && p.reorgQueue[0].movedAt.Before(cutoff) {
		re := p.reorgQueue[0]
		p.removeReorgLocked(re)
		evicted++
	}
	if evicted > 0 {
		reorgExpiredTotal.Add(float64(evicted))
	}
	return evicted
}
