package txprotocol

import (
	"github.com/klingnet-chain/core/pkg/script"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// Metadata carries the kernel fields both parties must agree on before
// either can compute a meaningful excess or metadata challenge.
type Metadata struct {
	Fee        uint64
	LockHeight uint64
	Features   tx.KernelFeatures
}

// SingleRoundSenderMessage is everything the sender sends a single
// recipient in one round: enough for the recipient to build its output
// and contribute a partial signature without ever seeing the sender's
// private keys.
type SingleRoundSenderMessage struct {
	TxID         uint64
	Amount       uint64
	PublicExcess types.PublicKey
	PublicNonce  types.PublicKey
	Metadata     Metadata

	Script                script.Script
	Features              tx.OutputFeatures
	SenderOffsetPublicKey types.PublicKey
	EphemeralPublicNonce  types.PublicKey
	Covenant              []byte
	MinimumValuePromise   uint64
}

// RecipientReply is the recipient's single response, carrying its half
// of the kernel signature and its output with the recipient's half of
// the metadata signature; the sender adds its own half before the
// output goes into the final transaction.
type RecipientReply struct {
	TxID             uint64
	PublicSpendKey   types.PublicKey
	PublicNonce      types.PublicKey
	PartialSignature types.Scalar
	Offset           types.Scalar
	Output           tx.Output
}
