package tx

import (
	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/script"
	"github.com/klingnet-chain/core/pkg/types"
)

const inputHashLabel = "klingnet.tx.input"

// Input spends an existing output. It carries a copy of the spent
// output's commitment and features rather than only a hash reference, so
// that kernel excess and script execution never require a chain-state
// lookup to validate a transaction in isolation.
type Input struct {
	OutputHash types.Hash
	Features   OutputFeatures
	Commitment types.Commitment

	Script    script.Script
	InputData []script.StackItem

	// ScriptSignature proves knowledge of the private key matching the
	// script's locking condition, signed over a challenge that commits to
	// this input's commitment and script.
	ScriptSignature types.Signature
}

// Hash identifies this input for transaction hashing purposes.
func (in *Input) Hash() types.Hash {
	data := [][]byte{
		in.OutputHash[:],
		{byte(in.Features)},
		in.Commitment[:],
		in.Script,
		in.ScriptSignature[:],
	}
	for _, item := range in.InputData {
		data = append(data, stackItemBytes(item))
	}
	return crypto.Hash(inputHashLabel, data...)
}

func stackItemBytes(it script.StackItem) []byte {
	switch it.Kind {
	case script.KindNumber:
		return uint64Bytes(uint64(it.Number))
	case script.KindHash:
		return it.Hash[:]
	case script.KindScalar:
		return it.Scalar[:]
	case script.KindCommitment:
		return it.Commitment[:]
	case script.KindPublicKey:
		return it.PublicKey[:]
	case script.KindSignature:
		return it.Signature[:]
	default:
		return nil
	}
}
