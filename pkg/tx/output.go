package tx

import (
	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/script"
	"github.com/klingnet-chain/core/pkg/types"
)

// outputHashLabel domain-separates output identity hashes from every
// other hash family (block headers, kernel excess challenges, MMR nodes).
const outputHashLabel = "klingnet.tx.output"

// Output is a confidential UTXO: its value is hidden inside a Pedersen
// commitment and only a range proof attests the hidden value is
// non-negative, rather than a plaintext amount field.
type Output struct {
	Features   OutputFeatures
	Commitment types.Commitment
	RangeProof []byte
	Script     script.Script

	// SenderOffsetPublicKey and MetadataSignature bind the script and
	// features to the commitment: the sender proves, without revealing
	// the blinding factor, that they know the private key matching
	// SenderOffsetPublicKey and that it was used to sign this output's
	// MetadataChallenge.
	SenderOffsetPublicKey types.PublicKey
	MetadataSignature     types.Signature

	Covenant            []byte
	EncryptedData       []byte
	MinimumValuePromise uint64

	// ParentPublicKey and UniqueID are only meaningful when Features has
	// OutputMintNonFungible set: they identify the asset this output
	// mints a unique token for.
	ParentPublicKey types.PublicKey
	UniqueID        []byte
}

// Hash identifies this output for MMR membership and input references.
// It commits to every field a spender or verifier needs to trust, but
// excludes nothing: two outputs with the same commitment and different
// scripts are different outputs.
func (o *Output) Hash() types.Hash {
	parts := [][]byte{
		{byte(o.Features)},
		o.Commitment[:],
		o.RangeProof,
		o.Script,
		o.SenderOffsetPublicKey[:],
		o.MetadataSignature[:],
		o.Covenant,
		o.EncryptedData,
		uint64Bytes(o.MinimumValuePromise),
	}
	if o.Features.IsMintNonFungible() {
		parts = append(parts, o.ParentPublicKey[:], o.UniqueID)
	}
	return crypto.Hash(outputHashLabel, parts...)
}

// MetadataChallenge returns the message the sender's metadata signature
// is computed over: everything about the output except the signature
// itself (ParentPublicKey and UniqueID only when Features has
// OutputMintNonFungible set, as in Hash).
func (o *Output) MetadataChallenge() []byte {
	parts := [][]byte{
		o.Commitment[:], o.Script, {byte(o.Features)}, o.SenderOffsetPublicKey[:], o.Covenant,
		o.RangeProof, o.EncryptedData, uint64Bytes(o.MinimumValuePromise),
	}
	if o.Features.IsMintNonFungible() {
		parts = append(parts, o.ParentPublicKey[:], o.UniqueID)
	}
	return crypto.HashConcat(outputHashLabel+".metadata", parts...)
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
