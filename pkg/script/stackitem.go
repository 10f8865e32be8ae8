package script

import (
	"fmt"

	"github.com/klingnet-chain/core/pkg/types"
)

// ItemKind tags the payload a StackItem carries. Tari Script's stack is
// heterogeneous: a Number at one position and a Commitment at the next
// are both ordinary stack items, so the VM carries a type tag alongside
// every value rather than modeling items as an interface hierarchy.
type ItemKind byte

const (
	KindNumber ItemKind = iota
	KindHash
	KindScalar
	KindCommitment
	KindPublicKey
	KindSignature
)

func (k ItemKind) String() string {
	switch k {
	case KindNumber:
		return "Number"
	case KindHash:
		return "Hash"
	case KindScalar:
		return "Scalar"
	case KindCommitment:
		return "Commitment"
	case KindPublicKey:
		return "PublicKey"
	case KindSignature:
		return "Signature"
	default:
		return "Unknown"
	}
}

// StackItem is one value on the VM stack. Exactly one payload field is
// meaningful, selected by Kind.
type StackItem struct {
	Kind       ItemKind
	Number     int64
	Hash       types.Hash
	Scalar     types.Scalar
	Commitment types.Commitment
	PublicKey  types.PublicKey
	Signature  types.Signature
}

func NumberItem(n int64) StackItem                       { return StackItem{Kind: KindNumber, Number: n} }
func HashItem(h types.Hash) StackItem                     { return StackItem{Kind: KindHash, Hash: h} }
func ScalarItem(s types.Scalar) StackItem                 { return StackItem{Kind: KindScalar, Scalar: s} }
func CommitmentItem(c types.Commitment) StackItem         { return StackItem{Kind: KindCommitment, Commitment: c} }
func PublicKeyItem(p types.PublicKey) StackItem           { return StackItem{Kind: KindPublicKey, PublicKey: p} }
func SignatureItem(s types.Signature) StackItem           { return StackItem{Kind: KindSignature, Signature: s} }

// Equal reports whether two items carry the same kind and value.
func (a StackItem) Equal(b StackItem) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNumber:
		return a.Number == b.Number
	case KindHash:
		return a.Hash == b.Hash
	case KindScalar:
		return a.Scalar == b.Scalar
	case KindCommitment:
		return a.Commitment == b.Commitment
	case KindPublicKey:
		return a.PublicKey == b.PublicKey
	case KindSignature:
		return a.Signature == b.Signature
	default:
		return false
	}
}

func (a StackItem) String() string {
	switch a.Kind {
	case KindNumber:
		return fmt.Sprintf("Number(%d)", a.Number)
	case KindHash:
		return fmt.Sprintf("Hash(%s)", a.Hash)
	case KindScalar:
		return fmt.Sprintf("Scalar(%s)", a.Scalar)
	case KindCommitment:
		return fmt.Sprintf("Commitment(%s)", a.Commitment)
	case KindPublicKey:
		return fmt.Sprintf("PublicKey(%s)", a.PublicKey)
	case KindSignature:
		return fmt.Sprintf("Signature(%s)", a.Signature)
	default:
		return "Unknown"
	}
}
