package config

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/script"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

const (
	genesisBlindLabel  = "klingnet.config.genesis.blind"
	genesisOffsetLabel = "klingnet.config.genesis.offset"
	genesisNonceLabel  = "klingnet.config.genesis.nonce"
	genesisLockLabel   = "klingnet.config.genesis.scriptsig"
)

// deriveScalar derives a deterministic scalar from a domain label and
// the given parts, so every node building genesis from the same Genesis
// config arrives at byte-identical outputs and kernel without sharing
// any out-of-band randomness.
func deriveScalar(label string, parts ...[]byte) types.Scalar {
	h := crypto.Hash(label, parts...)
	return types.Scalar(h)
}

// lockScript is a minimal pay-to-pubkey locking script: it pushes the
// recipient's public key, then checks a signature against a fixed
// challenge derived the same way a regular input's script-signature
// challenge is derived (pkg/txprotocol/sender.go's
// "klingnet.tx.input.scriptsig" convention), just keyed by the
// recipient's public key instead of an existing input's commitment.
func lockScript(pub types.PublicKey) (script.Script, error) {
	return script.Serialize([]script.Instruction{
		{Op: script.OpPushPubKey, Point: pub},
		{Op: script.OpCheckSig, Hash: crypto.Hash(genesisLockLabel, pub[:])},
	})
}

// Block derives the genesis block deterministically from Alloc and the
// chain ID: one coinbase-shaped output per allocation, sorted by
// commitment, balanced by a single coinbase kernel.
//
// Every output commitment hides a value of zero rather than the real
// allocation amount. A kernel excess can only carry a valid Schnorr
// signature when it is a pure-G point (nobody knows log_G(H)), so the
// aggregate balance equation that InternalConsistency.ValidateBlock
// runs over a block has no room for a coinbase to mint hidden value
// with no offsetting input. Genesis allocations are public by
// construction anyway — they live in this very config — so the real
// amount is carried in the open via MinimumValuePromise instead of
// inside the commitment.
//
// Every blinding factor is derived by hashing the chain ID and
// recipient key rather than drawn from randomness, so any node
// building a fresh database from this Genesis arrives at the
// identical block. MMR roots are left zero; the caller fills them in
// from the chain storage engine's CalculateMMRRoots before committing
// the block.
func (g *Genesis) Block() (*block.Block, error) {
	keys := make([]string, 0, len(g.Alloc))
	for k := range g.Alloc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outputs := make([]tx.Output, 0, len(keys))
	var blindSum types.Scalar
	haveBlind := false

	for _, keyHex := range keys {
		pub, err := types.HexToPublicKey(keyHex)
		if err != nil {
			return nil, fmt.Errorf("alloc key %q: %w", keyHex, err)
		}
		value := g.Alloc[keyHex]

		blind := deriveScalar(genesisBlindLabel, []byte(g.ChainID), pub[:])
		commitment, err := crypto.Commit(0, blind)
		if err != nil {
			return nil, fmt.Errorf("commit for %q: %w", keyHex, err)
		}
		lock, err := lockScript(pub)
		if err != nil {
			return nil, fmt.Errorf("lock script for %q: %w", keyHex, err)
		}

		offset := deriveScalar(genesisOffsetLabel, []byte(g.ChainID), pub[:])
		offsetPub, err := crypto.PublicKeyFromScalar(offset)
		if err != nil {
			return nil, fmt.Errorf("offset pubkey for %q: %w", keyHex, err)
		}

		out := tx.Output{
			Features:              tx.OutputCoinbase,
			Commitment:            commitment,
			Script:                lock,
			SenderOffsetPublicKey: offsetPub,
			MinimumValuePromise:   value,
		}
		nonce := deriveScalar(genesisNonceLabel, []byte(g.ChainID), pub[:], []byte("metadata"))
		metaSig, err := crypto.Sign(offset, nonce, out.MetadataChallenge())
		if err != nil {
			return nil, fmt.Errorf("metadata signature for %q: %w", keyHex, err)
		}
		out.MetadataSignature = metaSig

		outputs = append(outputs, out)
		if haveBlind {
			blindSum = crypto.AddScalars(blindSum, blind)
		} else {
			blindSum = blind
			haveBlind = true
		}
	}

	sort.Slice(outputs, func(i, j int) bool {
		return bytes.Compare(outputs[i].Commitment[:], outputs[j].Commitment[:]) < 0
	})

	excessCommit, err := crypto.Commit(0, blindSum)
	if err != nil {
		return nil, fmt.Errorf("genesis excess commitment: %w", err)
	}

	kernel := tx.Kernel{Features: tx.KernelCoinbase, ExcessCommitment: excessCommit}
	kernelNonce := deriveScalar(genesisNonceLabel, []byte(g.ChainID), []byte("kernel"))
	sig, err := crypto.Sign(blindSum, kernelNonce, kernel.ExcessChallenge())
	if err != nil {
		return nil, fmt.Errorf("genesis kernel signature: %w", err)
	}
	kernel.ExcessSignature = sig

	header := block.Header{
		Version:   1,
		Height:    0,
		Timestamp: int64(g.Timestamp),
	}

	return block.NewBlock(header, nil, outputs, []tx.Kernel{kernel}), nil
}
