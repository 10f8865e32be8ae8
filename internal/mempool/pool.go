// Package mempool holds transactions that have not yet been confirmed
// in a block: an Unconfirmed pool admitted against the current tip, and
// a Reorg pool of transactions a published block has confirmed, kept so
// they can return to Unconfirmed if a reorg undoes their containing
// blocks.
package mempool

import (
	"fmt"
	"sync"
	"time"

	"github.com/klingnet-chain/core/internal/validation"
	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// InsertResult classifies the outcome of Insert, matching the pool's
// public contract.
type InsertResult int

const (
	UnconfirmedPool InsertResult = iota
	ReorgPool
	NotStored
	NotStoredOrphan
	NotStoredAlreadySpent
	NotStoredTimeLocked
	NotStoredConsensus
	NotStoredFeeTooLow
)

func (r InsertResult) String() string {
	switch r {
	case UnconfirmedPool:
		return "UnconfirmedPool"
	case ReorgPool:
		return "ReorgPool"
	case NotStored:
		return "NotStored"
	case NotStoredOrphan:
		return "NotStoredOrphan"
	case NotStoredAlreadySpent:
		return "NotStoredAlreadySpent"
	case NotStoredTimeLocked:
		return "NotStoredTimeLocked"
	case NotStoredConsensus:
		return "NotStoredConsensus"
	case NotStoredFeeTooLow:
		return "NotStoredFeeTooLow"
	default:
		return "Unknown"
	}
}

// PoolTag reports which pool, if any, a transaction currently sits in.
type PoolTag int

const (
	TagNotFound PoolTag = iota
	TagUnconfirmed
	TagReorg
)

// Config carries the tunables the admission pipeline checks against.
type Config struct {
	MaxBlockWeight uint64
	MinFeePerGram  uint64
	ReorgPoolTTL   time.Duration
}

// Stats is the snapshot returned by Pool.Stats.
type Stats struct {
	UnconfirmedTxs    int
	ReorgTxs          int
	UnconfirmedWeight uint64
}

// poolEntry is one transaction sitting in the Unconfirmed pool.
type poolEntry struct {
	txHash     types.Hash
	tx         *tx.Transaction
	fee        uint64
	weight     uint64
	feePerGram float64
	insertedAt time.Time
}

// Pool holds unconfirmed and reorg-displaced transactions for one chain
// tip. It validates admissions against a validation.ChainView (normally
// the chain storage engine) plus its own zero-conf overlay.
type Pool struct {
	mu sync.RWMutex

	view     validation.ChainView
	internal validation.InternalConsistency
	cfg      Config

	unconfirmed map[types.Hash]*poolEntry
	// outputIndex maps an output's hash to the unconfirmed transaction
	// that produces it, so a zero-conf child can find its parent.
	outputIndex map[types.Hash]types.Hash
	// spentBy maps a spent output's hash to the unconfirmed transaction
	// consuming it, detecting double-spend conflicts within the pool.
	spentBy map[types.Hash]types.Hash
	// sigIndex maps a kernel excess signature to its owning unconfirmed
	// transaction, for has_tx_with_excess_sig and block-event matching.
	sigIndex map[types.Signature]types.Hash

	reorg      map[types.Hash]*reorgEntry
	reorgSig   map[types.Signature]types.Hash
	reorgQueue reorgHeap

	subscribers []*txSubscriber
}

// New builds an empty mempool validating admissions against view.
func New(view validation.ChainView, internal validation.InternalConsistency, cfg Config) *Pool {
	return &Pool{
		view:        view,
		internal:    internal,
		cfg:         cfg,
		unconfirmed: make(map[types.Hash]*poolEntry),
		outputIndex: make(map[types.Hash]types.Hash),
		spentBy:     make(map[types.Hash]types.Hash),
		sigIndex:    make(map[types.Signature]types.Hash),
		reorg:       make(map[types.Hash]*reorgEntry),
		reorgSig:    make(map[types.Signature]types.Hash),
	}
}

// feeRate computes fee per gram of weight; zero-weight transactions
// (never valid, but guarded against division by zero) rate as zero.
func feeRate(fee, weight uint64) float64 {
	if weight == 0 {
		return 0
	}
	return float64(fee) / float64(weight)
}

// Insert runs the admission pipeline and, on success, stores t in the
// Unconfirmed pool. Re-inserting an already-admitted transaction is
// idempotent and reports UnconfirmedPool again rather than an error.
func (p *Pool) Insert(t *tx.Transaction) (result InsertResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { recordInsertMetric(result) }()

	txHash := t.Hash()
	if _, already := p.unconfirmed[txHash]; already {
		return UnconfirmedPool, nil
	}

	weight := t.Weight()
	if p.cfg.MaxBlockWeight > 0 && weight > p.cfg.MaxBlockWeight {
		return NotStored, fmt.Errorf("mempool: transaction weight %d exceeds maximum block weight %d", weight, p.cfg.MaxBlockWeight)
	}

	fee := t.TotalFee()
	rate := feeRate(fee, weight)
	if p.cfg.MinFeePerGram > 0 {
		if fee == 0 {
			return NotStoredFeeTooLow, fmt.Errorf("mempool: zero fee with minimum fee-per-gram %d configured", p.cfg.MinFeePerGram)
		}
		if rate < float64(p.cfg.MinFeePerGram) {
			return NotStoredFeeTooLow, fmt.Errorf("mempool: fee-per-gram %.4f below minimum %d", rate, p.cfg.MinFeePerGram)
		}
	}

	if err := p.internal.ValidateTransaction(t); err != nil {
		return NotStoredConsensus, fmt.Errorf("mempool: internal consistency: %w", err)
	}

	spendHeight := p.view.TipHeight() + 1
	result, err = p.classifyChainLinked(t, spendHeight, types.Hash{})
	if result != UnconfirmedPool {
		return result, err
	}

	entry := &poolEntry{
		txHash:     txHash,
		tx:         t,
		fee:        fee,
		weight:     weight,
		feePerGram: rate,
		insertedAt: admissionClock(),
	}
	p.unconfirmed[txHash] = entry
	for i := range t.Outputs {
		p.outputIndex[t.Outputs[i].Hash()] = txHash
	}
	for i := range t.Inputs {
		p.spentBy[t.Inputs[i].OutputHash] = txHash
	}
	for i := range t.Kernels {
		p.sigIndex[t.Kernels[i].ExcessSignature] = txHash
	}

	p.publish(NewTxEvent{TxHash: txHash, Transaction: t})
	return UnconfirmedPool, nil
}

// admissionClock is a seam over time.Now so tests can reason about
// insertion order without depending on wall-clock granularity.
var admissionClock = time.Now

// classifyChainLinked runs spec §4.5.1 step 3's chain-linked checks,
// with the zero-conf relaxation that an input may reference an output
// produced by another unconfirmed transaction rather than the chain.
// excludeTxHash lets revalidation ignore a transaction's own prior
// registration in spentBy/outputIndex.
func (p *Pool) classifyChainLinked(t *tx.Transaction, spendHeight uint64, excludeTxHash types.Hash) (InsertResult, error) {
	for i := range t.Inputs {
		in := &t.Inputs[i]

		if owner, conflict := p.spentBy[in.OutputHash]; conflict && owner != excludeTxHash && owner != t.Hash() {
			return NotStoredAlreadySpent, fmt.Errorf("mempool: input %d (%s) already spent by %s", i, in.OutputHash, owner)
		}

		rec, onChain := p.view.UTXO(in.OutputHash)
		if onChain {
			if rec.IsCoinbase && spendHeight-rec.Height < validation.CoinbaseMaturity {
				return NotStoredConsensus, fmt.Errorf("mempool: input %d spends immature coinbase (%d confirmations, need %d)",
					i, spendHeight-rec.Height, validation.CoinbaseMaturity)
			}
			continue
		}
		if producer, inPool := p.outputIndex[in.OutputHash]; inPool && producer != excludeTxHash {
			continue
		}
		return NotStoredOrphan, fmt.Errorf("mempool: input %d (%s) references an output unknown to chain or pool", i, in.OutputHash)
	}

	for i := range t.Kernels {
		k := &t.Kernels[i]
		if k.LockHeight > spendHeight {
			return NotStoredTimeLocked, fmt.Errorf("mempool: kernel %d locked until %d, spending at %d", i, k.LockHeight, spendHeight)
		}
		if p.view.HasKernelExcessSignature(k.ExcessSignature) {
			return NotStoredConsensus, fmt.Errorf("mempool: kernel %d excess signature already on chain", i)
		}
	}

	return UnconfirmedPool, nil
}

// Remove drops a transaction from the Unconfirmed pool without moving
// it to Reorg. Used when a transaction is found double-spent or
// otherwise invalidated rather than confirmed.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeUnconfirmedLocked(txHash)
}

func (p *Pool) removeUnconfirmedLocked(txHash types.Hash) {
	e, ok := p.unconfirmed[txHash]
	if !ok {
		return
	}
	delete(p.unconfirmed, txHash)
	for i := range e.tx.Outputs {
		delete(p.outputIndex, e.tx.Outputs[i].Hash())
	}
	for i := range e.tx.Inputs {
		if p.spentBy[e.tx.Inputs[i].OutputHash] == txHash {
			delete(p.spentBy, e.tx.Inputs[i].OutputHash)
		}
	}
	for i := range e.tx.Kernels {
		delete(p.sigIndex, e.tx.Kernels[i].ExcessSignature)
	}
}

// Has reports whether txHash is currently in the Unconfirmed pool.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.unconfirmed[txHash]
	return ok
}

// Get returns the transaction for txHash from the Unconfirmed pool, or
// nil if not present.
func (p *Pool) Get(txHash types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.unconfirmed[txHash]
	if !ok {
		return nil
	}
	return e.tx
}

// HasTxWithExcessSig reports which pool, if any, holds a transaction
// with the given kernel excess signature.
func (p *Pool) HasTxWithExcessSig(sig types.Signature) PoolTag {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.sigIndex[sig]; ok {
		return TagUnconfirmed
	}
	if _, ok := p.reorgSig[sig]; ok {
		return TagReorg
	}
	return TagNotFound
}

// Snapshot returns every transaction currently in the Unconfirmed pool,
// in no particular order.
func (p *Pool) Snapshot() []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*tx.Transaction, 0, len(p.unconfirmed))
	for _, e := range p.unconfirmed {
		out = append(out, e.tx)
	}
	return out
}

// Stats reports the pool's current size.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var weight uint64
	for _, e := range p.unconfirmed {
		weight += e.weight
	}
	return Stats{
		UnconfirmedTxs:    len(p.unconfirmed),
		ReorgTxs:          len(p.reorg),
		UnconfirmedWeight: weight,
	}
}

// blockKernelSignatures collects every kernel excess signature a block
// body carries, for matching against pool entries.
func blockKernelSignatures(b *block.Block) map[types.Signature]struct{} {
	sigs := make(map[types.Signature]struct{}, len(b.Kernels))
	for i := range b.Kernels {
		sigs[b.Kernels[i].ExcessSignature] = struct{}{}
	}
	return sigs
}

// blockSpentOutputs collects every output hash a block body spends.
func blockSpentOutputs(b *block.Block) map[types.Hash]struct{} {
	spent := make(map[types.Hash]struct{}, len(b.Inputs))
	for i := range b.Inputs {
		spent[b.Inputs[i].OutputHash] = struct{}{}
	}
	return spent
}
