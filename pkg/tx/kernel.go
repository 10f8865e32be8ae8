package tx

import (
	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/types"
)

const kernelHashLabel = "klingnet.tx.kernel"

// Kernel is the public, permanent record a transaction leaves on the
// chain once its inputs and outputs have been pruned away: an excess
// commitment (the sum of output commitments minus input commitments,
// minus the kernel offset) and a signature proving the transaction
// balances to zero net value without revealing any individual amount.
type Kernel struct {
	Features   KernelFeatures
	Fee        uint64
	LockHeight uint64

	ExcessCommitment types.Commitment
	ExcessSignature  types.Signature

	// BurnCommitment is set only when Features has KernelBurn: it names
	// the commitment being provably destroyed (removed from the UTXO set
	// without a corresponding spendable output).
	BurnCommitment types.Commitment
}

// Hash identifies this kernel for kernel-MMR membership.
func (k *Kernel) Hash() types.Hash {
	return crypto.Hash(kernelHashLabel,
		[]byte{byte(k.Features)},
		uint64Bytes(k.Fee),
		uint64Bytes(k.LockHeight),
		k.ExcessCommitment[:],
		k.ExcessSignature[:],
		k.BurnCommitment[:],
	)
}

// ExcessChallenge is the message the excess signature is computed over:
// the fee, lock height, features and excess commitment, so a kernel can't
// be replayed against a different fee or lock height.
func (k *Kernel) ExcessChallenge() []byte {
	return crypto.HashConcat(kernelHashLabel+".excess",
		[]byte{byte(k.Features)},
		uint64Bytes(k.Fee),
		uint64Bytes(k.LockHeight),
		k.ExcessCommitment[:],
	)
}
