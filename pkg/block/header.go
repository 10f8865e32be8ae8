// Package block defines the block header and body types and their
// structural validation.
package block

import (
	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/types"
)

const headerHashLabel = "klingnet.block.header"

// PowSummary carries the proof-of-work evidence for a header: which
// algorithm was used, the difficulty it targeted, and the nonce a miner
// found that satisfies it. Keeping this as its own struct rather than
// flat fields on Header leaves room for more than one proof-of-work
// algorithm without changing the header's other fields.
type PowSummary struct {
	Algorithm        string
	TargetDifficulty uint64
	Nonce            uint64
}

// Header is block metadata: everything needed to verify the block
// extends the chain correctly without inspecting its body.
type Header struct {
	Version   uint16
	Height    uint64
	PrevHash  types.Hash
	Timestamp int64

	OutputMMRSize uint64
	OutputMMRRoot types.Hash

	KernelMMRSize uint64
	KernelMMRRoot types.Hash

	RangeProofMMRSize uint64
	RangeProofMMRRoot types.Hash

	TotalKernelOffset types.Scalar
	TotalScriptOffset types.Scalar

	Pow PowSummary
}

// Hash computes the block hash over every header field, including the
// proof-of-work nonce: changing the nonce changes the hash, which is
// exactly the property proof-of-work search relies on.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(headerHashLabel, h.SigningBytes())
}

// MiningBytes returns the header bytes with the nonce excluded, the
// message a miner repeatedly hashes-with-incrementing-nonce against
// while searching for a value under the target.
func (h *Header) MiningBytes() []byte {
	return h.bytes(false)
}

// SigningBytes returns the full canonical byte encoding of the header,
// nonce included.
func (h *Header) SigningBytes() []byte {
	return h.bytes(true)
}

func (h *Header) bytes(includeNonce bool) []byte {
	buf := make([]byte, 0, 256)
	buf = appendUint64(buf, uint64(h.Version))
	buf = appendUint64(buf, h.Height)
	buf = append(buf, h.PrevHash[:]...)
	buf = appendUint64(buf, uint64(h.Timestamp))
	buf = appendUint64(buf, h.OutputMMRSize)
	buf = append(buf, h.OutputMMRRoot[:]...)
	buf = appendUint64(buf, h.KernelMMRSize)
	buf = append(buf, h.KernelMMRRoot[:]...)
	buf = appendUint64(buf, h.RangeProofMMRSize)
	buf = append(buf, h.RangeProofMMRRoot[:]...)
	buf = append(buf, h.TotalKernelOffset[:]...)
	buf = append(buf, h.TotalScriptOffset[:]...)
	buf = append(buf, []byte(h.Pow.Algorithm)...)
	buf = appendUint64(buf, h.Pow.TargetDifficulty)
	if includeNonce {
		buf = appendUint64(buf, h.Pow.Nonce)
	}
	return buf
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(v)
		v >>= 8
	}
	return append(b, tmp[:]...)
}
