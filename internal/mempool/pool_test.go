package mempool

import (
	"testing"

	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// TestPoolReorgDoubleSpendAcrossBranches builds a two-block old branch
// (tx2a confirmed at height 2, tx3a spending tx2a's change confirmed at
// height 3) and reorgs to a competing branch that double-spends the
// same original output (tx2b at height 2, tx3b spending tx2b's change
// at height 3). The old branch's transactions must first be restored
// to Unconfirmed by ProcessReorg, then tx2a must be evicted again once
// ProcessPublishedBlock sees its input already spent by tx2b.
func TestPoolReorgDoubleSpendAcrossBranches(t *testing.T) {
	view := newFakeChainView()
	km := testKeyManager(t, 0x30)

	original := types.Hash{0x01}
	tx2a := buildSoloTx(t, km, view, original, 1, 1000, 100, 0)
	tx3a := buildSoloTx(t, km, view, tx2a.Outputs[0].Hash(), 2, 900, 50, 0)

	pool := New(view, testInternalConsistency(), Config{})
	if _, err := pool.Insert(tx2a); err != nil {
		t.Fatalf("Insert tx2a: %v", err)
	}
	if _, err := pool.Insert(tx3a); err != nil {
		t.Fatalf("Insert tx3a: %v", err)
	}

	a2 := block.NewBlock(block.Header{Height: 2}, tx2a.Inputs, tx2a.Outputs, tx2a.Kernels)
	view.sigs[tx2a.Kernels[0].ExcessSignature] = struct{}{}
	view.tip = 2
	pool.ProcessPublishedBlock(a2)

	a3 := block.NewBlock(block.Header{Height: 3}, tx3a.Inputs, tx3a.Outputs, tx3a.Kernels)
	view.sigs[tx3a.Kernels[0].ExcessSignature] = struct{}{}
	view.tip = 3
	pool.ProcessPublishedBlock(a3)

	if pool.HasTxWithExcessSig(tx2a.Kernels[0].ExcessSignature) != TagReorg {
		t.Fatal("setup: tx2a should be in the Reorg pool before the fork switch")
	}
	if pool.HasTxWithExcessSig(tx3a.Kernels[0].ExcessSignature) != TagReorg {
		t.Fatal("setup: tx3a should be in the Reorg pool before the fork switch")
	}

	// The competing branch respends the same original output: build its
	// transactions against a second key manager so they sign distinctly
	// from tx2a/tx3a, then undo the old branch's confirmed signatures to
	// mirror what chain reorg bookkeeping does before the new blocks land.
	km2 := testKeyManager(t, 0x31)
	tx2b := buildSoloTx(t, km2, view, original, 3, 1000, 100, 0)
	tx3b := buildSoloTx(t, km2, view, tx2b.Outputs[0].Hash(), 4, 900, 50, 0)

	delete(view.sigs, tx2a.Kernels[0].ExcessSignature)
	delete(view.sigs, tx3a.Kernels[0].ExcessSignature)
	view.tip = 1

	b2 := block.NewBlock(block.Header{Height: 2}, tx2b.Inputs, tx2b.Outputs, tx2b.Kernels)
	b3 := block.NewBlock(block.Header{Height: 3}, tx3b.Inputs, tx3b.Outputs, tx3b.Kernels)

	pool.ProcessReorg([]*block.Block{a2, a3}, []*block.Block{b2, b3})

	if pool.Has(tx2a.Hash()) {
		t.Error("tx2a should have been evicted once tx2b's confirmation double-spent its input")
	}
	if pool.HasTxWithExcessSig(tx2a.Kernels[0].ExcessSignature) != TagNotFound {
		t.Error("tx2a's kernel signature should no longer be tracked anywhere")
	}
}

// TestPoolReorgRestoresChainOfTransactions confirms a two-transaction
// chain (a parent and a child spending the parent's own change output)
// together, then undoes both confirmations in a single reorg and
// checks both return to Unconfirmed.
func TestPoolReorgRestoresChainOfTransactions(t *testing.T) {
	view := newFakeChainView()
	km := testKeyManager(t, 0x32)

	parent := buildSoloTx(t, km, view, types.Hash{0x09}, 1, 1000, 100, 0)
	child := buildSoloTx(t, km, view, parent.Outputs[0].Hash(), 2, 900, 50, 0)

	pool := New(view, testInternalConsistency(), Config{})
	if _, err := pool.Insert(parent); err != nil {
		t.Fatalf("Insert parent: %v", err)
	}
	if _, err := pool.Insert(child); err != nil {
		t.Fatalf("Insert child: %v", err)
	}

	confirmed := block.NewBlock(block.Header{Height: 1},
		append(append([]tx.Input{}, parent.Inputs...), child.Inputs...),
		append(append([]tx.Output{}, parent.Outputs...), child.Outputs...),
		append(append([]tx.Kernel{}, parent.Kernels...), child.Kernels...))
	view.sigs[parent.Kernels[0].ExcessSignature] = struct{}{}
	view.sigs[child.Kernels[0].ExcessSignature] = struct{}{}
	view.tip = 1
	pool.ProcessPublishedBlock(confirmed)

	if pool.HasTxWithExcessSig(parent.Kernels[0].ExcessSignature) != TagReorg {
		t.Fatal("setup: parent should be in the Reorg pool")
	}
	if pool.HasTxWithExcessSig(child.Kernels[0].ExcessSignature) != TagReorg {
		t.Fatal("setup: child should be in the Reorg pool")
	}

	delete(view.sigs, parent.Kernels[0].ExcessSignature)
	delete(view.sigs, child.Kernels[0].ExcessSignature)
	view.tip = 0
	pool.ProcessReorg([]*block.Block{confirmed}, nil)

	if !pool.Has(parent.Hash()) {
		t.Error("parent should have returned to Unconfirmed")
	}
	if !pool.Has(child.Hash()) {
		t.Error("child should have returned to Unconfirmed")
	}
}
