// Package keymanager provides deterministic key derivation for the
// transaction construction protocol: spend keys, script keys,
// sender-offset keys, and signing nonces are all derived from one master
// seed along named branches, rather than generated and persisted per
// transaction.
package keymanager

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/types"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// Named derivation branches. Each branch is a hardened child of the
// master key; the transaction construction protocol derives a fresh
// scalar per (branch, index) pair instead of generating and storing a
// random key for every output.
const (
	BranchSpend        = "spend"
	BranchScript       = "script"
	BranchSenderOffset = "sender_offset"
	BranchNonce        = "nonce"
)

// KeyManager derives deterministic scalars from a master seed and hands
// out monotonically increasing key IDs per branch so that two calls never
// reuse the same (branch, index) pair.
type KeyManager struct {
	master *bip32.Key

	mu      sync.Mutex
	nextIdx map[string]uint64
}

// NewFromMnemonic builds a KeyManager from a BIP-39 mnemonic and optional
// passphrase.
func NewFromMnemonic(mnemonic, passphrase string) (*KeyManager, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("keymanager: invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return NewFromSeed(seed)
}

// NewFromSeed builds a KeyManager directly from seed bytes.
func NewFromSeed(seed []byte) (*KeyManager, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("keymanager: deriving master key: %w", err)
	}
	return &KeyManager{
		master:  master,
		nextIdx: make(map[string]uint64),
	}, nil
}

// branchChildIndex maps a branch name to a stable hardened BIP32 child
// index, so every KeyManager derives the same branch key for the same
// branch name without needing a lookup table on disk.
func branchChildIndex(branch string) uint32 {
	digest := crypto.Hash("klingnet.keymanager.branch", []byte(branch))
	idx := binary.BigEndian.Uint32(digest[:4])
	return idx | bip32.FirstHardenedChild
}

// DeriveKey derives the scalar at (branch, index): m/branch'/index'.
func (km *KeyManager) DeriveKey(branch string, index uint64) (types.Scalar, error) {
	branchKey, err := km.master.NewChildKey(branchChildIndex(branch))
	if err != nil {
		return types.Scalar{}, fmt.Errorf("keymanager: deriving branch %q: %w", branch, err)
	}

	var idxBytes [8]byte
	binary.BigEndian.PutUint64(idxBytes[:], index)
	childIdx := binary.BigEndian.Uint32(idxBytes[4:]) | bip32.FirstHardenedChild

	leafKey, err := branchKey.NewChildKey(childIdx)
	if err != nil {
		return types.Scalar{}, fmt.Errorf("keymanager: deriving index %d: %w", index, err)
	}

	return reduceToScalar(leafKey.Key), nil
}

// reduceToScalar reduces raw key bytes into a valid curve-order scalar.
func reduceToScalar(keyBytes []byte) types.Scalar {
	var s secp256k1.ModNScalar
	s.SetByteSlice(keyBytes)
	b := s.Bytes()
	var out types.Scalar
	copy(out[:], b[:])
	return out
}

// NextKeyID returns the next unused index for a branch and advances the
// counter. Callers that need a fresh key per output (e.g. a new
// sender-offset key for each transaction) use this instead of tracking
// indices themselves.
func (km *KeyManager) NextKeyID(branch string) uint64 {
	km.mu.Lock()
	defer km.mu.Unlock()
	idx := km.nextIdx[branch]
	km.nextIdx[branch] = idx + 1
	return idx
}

// PartialSign derives the signing key and a deterministic nonce for
// (branch, index) and produces a Schnorr signature over msg. The nonce is
// the BranchNonce key at the same index hashed together with the branch
// name and msg, so it is reproducible without being persisted and still
// unique per (branch, index, msg).
func (km *KeyManager) PartialSign(branch string, index uint64, msg []byte) (types.Signature, error) {
	sk, err := km.DeriveKey(branch, index)
	if err != nil {
		return types.Signature{}, err
	}
	nonceBase, err := km.DeriveKey(BranchNonce, index)
	if err != nil {
		return types.Signature{}, err
	}
	nonce := reduceToScalar(crypto.HashConcat("klingnet.keymanager.nonce", nonceBase[:], []byte(branch), msg))
	return crypto.Sign(sk, nonce, msg)
}
