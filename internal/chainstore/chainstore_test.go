package chainstore

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klingnet-chain/core/internal/storage"
	"github.com/klingnet-chain/core/internal/validation"
	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/script"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

func testStore(t *testing.T) *ChainStore {
	t.Helper()
	db := storage.NewMemory()
	internal := validation.NewInternalConsistency(1_000_000, validation.AcceptAllRangeProofs{})
	cs, err := New(db, Config{OrphanStorageCapacity: 100, ReorgWindow: 50}, internal)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cs
}

// lockScript pushes pub then checks a signature against a fixed,
// test-only challenge, the same minimal pay-to-pubkey shape the
// genesis builder uses.
func lockScript(t *testing.T, pub types.PublicKey) script.Script {
	t.Helper()
	s, err := script.Serialize([]script.Instruction{
		{Op: script.OpPushPubKey, Point: pub},
		{Op: script.OpCheckSig, Hash: crypto.Hash("klingnet.chainstore_test.scriptsig", pub[:])},
	})
	if err != nil {
		t.Fatalf("serialize lock script: %v", err)
	}
	return s
}

// coinbaseBlock builds a structurally valid block with a single
// coinbase output and kernel, zero inputs: the same zero-commitment
// construction config.Genesis.Block() uses, so it balances under
// VerifyBalance() without needing any spendable UTXO.
func coinbaseBlock(t *testing.T, cs *ChainStore, prev block.Header, seed byte, difficulty uint64) *block.Block {
	t.Helper()

	blind := types.Scalar(crypto.Hash("klingnet.chainstore_test.blind", []byte{seed}))
	commitment, err := crypto.Commit(0, blind)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	offset := types.Scalar(crypto.Hash("klingnet.chainstore_test.offset", []byte{seed}))
	offsetPub, err := crypto.PublicKeyFromScalar(offset)
	if err != nil {
		t.Fatalf("offset pubkey: %v", err)
	}
	spendPub, err := crypto.PublicKeyFromScalar(types.Scalar(crypto.Hash("klingnet.chainstore_test.spend", []byte{seed})))
	if err != nil {
		t.Fatalf("spend pubkey: %v", err)
	}

	out := tx.Output{
		Features:              tx.OutputCoinbase,
		Commitment:            commitment,
		Script:                lockScript(t, spendPub),
		SenderOffsetPublicKey: offsetPub,
	}
	nonce := types.Scalar(crypto.Hash("klingnet.chainstore_test.nonce", []byte{seed}, []byte("metadata")))
	metaSig, err := crypto.Sign(offset, nonce, out.MetadataChallenge())
	if err != nil {
		t.Fatalf("metadata sig: %v", err)
	}
	out.MetadataSignature = metaSig

	excessCommit, err := crypto.Commit(0, blind)
	if err != nil {
		t.Fatalf("excess commit: %v", err)
	}
	kernel := tx.Kernel{Features: tx.KernelCoinbase, ExcessCommitment: excessCommit}
	kernelNonce := types.Scalar(crypto.Hash("klingnet.chainstore_test.nonce", []byte{seed}, []byte("kernel")))
	sig, err := crypto.Sign(blind, kernelNonce, kernel.ExcessChallenge())
	if err != nil {
		t.Fatalf("kernel sig: %v", err)
	}
	kernel.ExcessSignature = sig

	header := block.Header{
		Version:   1,
		Height:    prev.Height + 1,
		PrevHash:  prev.Hash(),
		Timestamp: prev.Timestamp + 1,
		Pow:       block.PowSummary{Algorithm: "test", TargetDifficulty: difficulty},
	}

	blk := block.NewBlock(header, nil, []tx.Output{out}, []tx.Kernel{kernel})

	outRoot, kernelRoot, rpRoot, err := cs.CalculateMMRRoots(nil, blk.Outputs, blk.Kernels)
	if err != nil {
		t.Fatalf("calculate mmr roots: %v", err)
	}
	blk.Header.OutputMMRRoot = outRoot
	blk.Header.KernelMMRRoot = kernelRoot
	blk.Header.RangeProofMMRRoot = rpRoot
	blk.Header.OutputMMRSize = uint64(len(blk.Outputs))
	blk.Header.KernelMMRSize = uint64(len(blk.Kernels))
	blk.Header.RangeProofMMRSize = uint64(len(blk.Outputs))

	return blk
}

func genesisBlock(t *testing.T, cs *ChainStore, seed byte) *block.Block {
	t.Helper()
	return coinbaseBlock(t, cs, block.Header{}, seed, 0)
}

func applyGenesis(t *testing.T, cs *ChainStore, seed byte) *block.Block {
	t.Helper()
	blk := genesisBlock(t, cs, seed)
	blk.Header.PrevHash = types.Hash{}
	if err := cs.ApplyGenesis(blk); err != nil {
		t.Fatalf("ApplyGenesis: %v", err)
	}
	return blk
}

func TestApplyGenesis(t *testing.T) {
	cs := testStore(t)
	blk := applyGenesis(t, cs, 1)

	if cs.Height() != 0 {
		t.Errorf("height = %d, want 0", cs.Height())
	}
	tip, err := cs.TipHeader()
	if err != nil {
		t.Fatalf("TipHeader: %v", err)
	}
	if tip.Hash() != blk.Header.Hash() {
		t.Errorf("tip header does not match applied genesis block")
	}
}

func TestApplyGenesis_AlreadySet(t *testing.T) {
	cs := testStore(t)
	applyGenesis(t, cs, 1)

	second := genesisBlock(t, cs, 2)
	if err := cs.ApplyGenesis(second); !errors.Is(err, ErrGenesisAlreadySet) {
		t.Fatalf("expected ErrGenesisAlreadySet, got %v", err)
	}
}

func TestAddBlock_ExtendsTip(t *testing.T) {
	cs := testStore(t)
	genesis := applyGenesis(t, cs, 1)

	next := coinbaseBlock(t, cs, genesis.Header, 2, 10)
	if _, err := cs.AddBlock(next); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	if cs.Height() != 1 {
		t.Errorf("height = %d, want 1", cs.Height())
	}
	fetched, err := cs.FetchBlock(1)
	if err != nil {
		t.Fatalf("FetchBlock: %v", err)
	}
	if fetched.Header.Hash() != next.Header.Hash() {
		t.Errorf("fetched block does not match the one added")
	}
}

func TestAddBlock_Duplicate(t *testing.T) {
	cs := testStore(t)
	genesis := applyGenesis(t, cs, 1)

	next := coinbaseBlock(t, cs, genesis.Header, 2, 10)
	if _, err := cs.AddBlock(next); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if _, err := cs.AddBlock(next); !errors.Is(err, ErrBlockExists) {
		t.Fatalf("expected ErrBlockExists, got %v", err)
	}
}

func TestAddBlock_UnknownParentParksAsOrphan(t *testing.T) {
	cs := testStore(t)
	applyGenesis(t, cs, 1)

	orphanParent := block.Header{Height: 1, Timestamp: 2}
	orphan := coinbaseBlock(t, cs, orphanParent, 2, 10)
	if _, err := cs.AddBlock(orphan); !errors.Is(err, ErrOrphan) {
		t.Fatalf("expected ErrOrphan, got %v", err)
	}
	if cs.Height() != 0 {
		t.Errorf("height = %d, want 0 (orphan must not advance the tip)", cs.Height())
	}
}

// TestAddBlock_ForkTriggersReorg builds two competing one-block
// extensions of genesis with different work, adds the lighter one
// first, then the heavier one: AddBlock must report a reorg and move
// the tip to the heavier branch.
func TestAddBlock_ForkTriggersReorg(t *testing.T) {
	cs := testStore(t)
	genesis := applyGenesis(t, cs, 1)

	// Both branches are built before either is added, so each declares
	// the MMR roots of genesis plus its own block.
	light := coinbaseBlock(t, cs, genesis.Header, 2, 10)
	heavy := coinbaseBlock(t, cs, genesis.Header, 3, 20)
	if _, err := cs.AddBlock(light); err != nil {
		t.Fatalf("AddBlock(light): %v", err)
	}

	reorg, err := cs.AddBlock(heavy)
	if err != nil {
		t.Fatalf("AddBlock(heavy): %v", err)
	}
	if len(reorg.Removed) != 1 || reorg.Removed[0] != light.Header.Hash() {
		t.Fatalf("reorg.Removed = %+v, want [%s]", reorg.Removed, light.Header.Hash())
	}
	if len(reorg.Added) != 1 || reorg.Added[0] != heavy.Header.Hash() {
		t.Fatalf("reorg.Added = %+v, want [%s]", reorg.Added, heavy.Header.Hash())
	}

	tip, err := cs.TipHeader()
	if err != nil {
		t.Fatalf("TipHeader: %v", err)
	}
	if tip.Hash() != heavy.Header.Hash() {
		t.Errorf("tip did not move to the heavier branch")
	}
}

func TestFetchUTXOByHash(t *testing.T) {
	cs := testStore(t)
	genesis := applyGenesis(t, cs, 1)

	rec, ok := cs.FetchUTXOByHash(genesis.Outputs[0].Hash())
	if !ok {
		t.Fatal("expected genesis output to be a live UTXO")
	}
	if !rec.IsCoinbase || rec.Height != 0 {
		t.Errorf("unexpected utxo record: %+v", rec)
	}
}

func TestCalculateMMRRoots_Deterministic(t *testing.T) {
	cs := testStore(t)
	blk := genesisBlock(t, cs, 1)

	r1, k1, p1, err := cs.CalculateMMRRoots(nil, blk.Outputs, blk.Kernels)
	if err != nil {
		t.Fatalf("CalculateMMRRoots: %v", err)
	}
	r2, k2, p2, err := cs.CalculateMMRRoots(nil, blk.Outputs, blk.Kernels)
	if err != nil {
		t.Fatalf("CalculateMMRRoots: %v", err)
	}
	if !bytes.Equal(r1[:], r2[:]) || !bytes.Equal(k1[:], k2[:]) || !bytes.Equal(p1[:], p2[:]) {
		t.Fatal("CalculateMMRRoots is not deterministic for identical input")
	}
}
