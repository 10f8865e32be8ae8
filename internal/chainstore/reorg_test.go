package chainstore

import (
	"errors"
	"testing"

	"github.com/klingnet-chain/core/pkg/types"
)

// TestAddBlock_OutOfOrderMultiBlockReorg builds a four-block main chain
// (genesis, then three more) and a three-block side chain forking after
// the first main-chain block, with the side chain's blocks added in
// reverse order (tip first). Each side block stays parked as an orphan,
// reported as ErrOrphan, until the whole branch connects back to the
// main chain on the last insert — at which point its accumulated work
// outweighs the main chain and AddBlock must report a single reorg
// spanning all three replaced blocks.
func TestAddBlock_OutOfOrderMultiBlockReorg(t *testing.T) {
	cs := testStore(t)
	genesis := applyGenesis(t, cs, 1)

	a1 := coinbaseBlock(t, cs, genesis.Header, 0x11, 10)
	if _, err := cs.AddBlock(a1); err != nil {
		t.Fatalf("AddBlock(a1): %v", err)
	}
	a2 := coinbaseBlock(t, cs, a1.Header, 0x12, 10)
	if _, err := cs.AddBlock(a2); err != nil {
		t.Fatalf("AddBlock(a2): %v", err)
	}
	a3 := coinbaseBlock(t, cs, a2.Header, 0x13, 10)
	if _, err := cs.AddBlock(a3); err != nil {
		t.Fatalf("AddBlock(a3): %v", err)
	}

	if cs.Height() != 3 {
		t.Fatalf("height = %d, want 3 after main chain built", cs.Height())
	}

	// Side chain forks from genesis, each block carrying far more work
	// than the corresponding main-chain block so three side blocks
	// outweigh three main-chain blocks. The side blocks are built on a
	// second store holding the same genesis, so each declares the MMR
	// roots of its own branch rather than those of the main chain's tip.
	side := testStore(t)
	applyGenesis(t, side, 1)
	b2 := coinbaseBlock(t, side, genesis.Header, 0x22, 50)
	if _, err := side.AddBlock(b2); err != nil {
		t.Fatalf("side AddBlock(b2): %v", err)
	}
	b3 := coinbaseBlock(t, side, b2.Header, 0x23, 50)
	if _, err := side.AddBlock(b3); err != nil {
		t.Fatalf("side AddBlock(b3): %v", err)
	}
	b4 := coinbaseBlock(t, side, b3.Header, 0x24, 50)

	// Insert the side chain tip-first: b4 and b3 cannot possibly connect
	// back to the main chain yet, so both must park as orphans.
	if _, err := cs.AddBlock(b4); !errors.Is(err, ErrOrphan) {
		t.Fatalf("AddBlock(b4): expected ErrOrphan, got %v", err)
	}
	if cs.Height() != 3 {
		t.Fatalf("height = %d, want 3 (b4 must not move the tip)", cs.Height())
	}
	if _, err := cs.AddBlock(b3); !errors.Is(err, ErrOrphan) {
		t.Fatalf("AddBlock(b3): expected ErrOrphan, got %v", err)
	}
	if cs.Height() != 3 {
		t.Fatalf("height = %d, want 3 (b3 must not move the tip)", cs.Height())
	}

	// b2 connects the whole side branch back to genesis: the branch now
	// outweighs the main chain and a reorg must fire in one shot.
	reorg, err := cs.AddBlock(b2)
	if err != nil {
		t.Fatalf("AddBlock(b2): %v", err)
	}
	if len(reorg.Removed) != 3 {
		t.Fatalf("reorg.Removed = %+v, want 3 blocks", reorg.Removed)
	}
	wantRemoved := map[types.Hash]bool{
		a1.Header.Hash(): true,
		a2.Header.Hash(): true,
		a3.Header.Hash(): true,
	}
	for _, h := range reorg.Removed {
		if !wantRemoved[h] {
			t.Errorf("unexpected removed hash %s", h)
		}
	}
	if len(reorg.Added) != 3 {
		t.Fatalf("reorg.Added = %+v, want 3 blocks", reorg.Added)
	}
	wantAdded := map[types.Hash]bool{
		b2.Header.Hash(): true,
		b3.Header.Hash(): true,
		b4.Header.Hash(): true,
	}
	for _, h := range reorg.Added {
		if !wantAdded[h] {
			t.Errorf("unexpected added hash %s", h)
		}
	}

	if cs.Height() != 3 {
		t.Fatalf("height = %d, want 3 after reorg", cs.Height())
	}
	tip, err := cs.TipHeader()
	if err != nil {
		t.Fatalf("TipHeader: %v", err)
	}
	if tip.Hash() != b4.Header.Hash() {
		t.Error("tip did not move to the heavier side chain's deepest block")
	}

	fetched, err := cs.FetchBlock(1)
	if err != nil {
		t.Fatalf("FetchBlock(1): %v", err)
	}
	if fetched.Header.Hash() != b2.Header.Hash() {
		t.Error("height 1 does not hold the side chain's first block after reorg")
	}
}

// TestAddBlock_SecondReorgSupersedesFirst extends the single-block fork
// covered by TestAddBlock_ForkTriggersReorg with a third, even heavier
// branch that displaces the winner of the first reorg, confirming a
// chain can be reorged more than once.
func TestAddBlock_SecondReorgSupersedesFirst(t *testing.T) {
	cs := testStore(t)
	genesis := applyGenesis(t, cs, 1)

	// All three branches are built before any is added, so each declares
	// the MMR roots of genesis plus its own block.
	light := coinbaseBlock(t, cs, genesis.Header, 2, 10)
	medium := coinbaseBlock(t, cs, genesis.Header, 3, 20)
	heaviest := coinbaseBlock(t, cs, genesis.Header, 4, 30)
	if _, err := cs.AddBlock(light); err != nil {
		t.Fatalf("AddBlock(light): %v", err)
	}

	if _, err := cs.AddBlock(medium); err != nil {
		t.Fatalf("AddBlock(medium): %v", err)
	}
	tip, err := cs.TipHeader()
	if err != nil {
		t.Fatalf("TipHeader: %v", err)
	}
	if tip.Hash() != medium.Header.Hash() {
		t.Fatal("setup: tip did not move to the medium-work branch")
	}

	reorg, err := cs.AddBlock(heaviest)
	if err != nil {
		t.Fatalf("AddBlock(heaviest): %v", err)
	}
	if len(reorg.Removed) != 1 || reorg.Removed[0] != medium.Header.Hash() {
		t.Fatalf("reorg.Removed = %+v, want [%s]", reorg.Removed, medium.Header.Hash())
	}
	if len(reorg.Added) != 1 || reorg.Added[0] != heaviest.Header.Hash() {
		t.Fatalf("reorg.Added = %+v, want [%s]", reorg.Added, heaviest.Header.Hash())
	}

	tip, err = cs.TipHeader()
	if err != nil {
		t.Fatalf("TipHeader: %v", err)
	}
	if tip.Hash() != heaviest.Header.Hash() {
		t.Error("tip did not move to the heaviest branch after the second reorg")
	}
}
