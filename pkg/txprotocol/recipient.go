package txprotocol

import (
	"fmt"

	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/keymanager"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// rangeProofPlaceholderLabel marks a range proof produced by this
// package's generator stand-in rather than the verifying service's real
// prover. Actual proof generation is delegated to an external range
// proof service in this deployment, the same split pkg/validation makes
// on the verification side with AcceptAllRangeProofs.
const rangeProofPlaceholderLabel = "klingnet.rangeproof.placeholder"

// ReceiveSingleRoundMessage is the recipient's half of the protocol. It
// builds the recipient's output for the offered amount, contributes a
// partial kernel excess signature, and attaches its own partial metadata
// signature to the output, taken over the aggregate metadata nonce. The
// metadata signature is not complete yet: the sender sums its
// sender-offset partial into it in ReceiveReply.
func ReceiveSingleRoundMessage(km *keymanager.KeyManager, msg *SingleRoundSenderMessage, value uint64) (*RecipientReply, error) {
	if value != msg.Amount {
		return nil, &ValidationError{Reason: fmt.Sprintf("offered amount %d does not match expected %d", msg.Amount, value)}
	}

	spendKey, err := km.DeriveKey(keymanager.BranchSpend, km.NextKeyID(keymanager.BranchSpend))
	if err != nil {
		return nil, fmt.Errorf("txprotocol: deriving spend key: %w", err)
	}
	kernelNonceKey, err := km.DeriveKey(branchKernelNonce, km.NextKeyID(branchKernelNonce))
	if err != nil {
		return nil, fmt.Errorf("txprotocol: deriving kernel nonce: %w", err)
	}
	offsetKey, err := km.DeriveKey(branchKernelOffset, km.NextKeyID(branchKernelOffset))
	if err != nil {
		return nil, fmt.Errorf("txprotocol: deriving private offset: %w", err)
	}

	commitment, err := crypto.Commit(value, spendKey)
	if err != nil {
		return nil, fmt.Errorf("txprotocol: committing value: %w", err)
	}

	out := tx.Output{
		Features:              msg.Features,
		Commitment:            commitment,
		RangeProof:            placeholderRangeProof(commitment),
		Script:                msg.Script,
		SenderOffsetPublicKey: msg.SenderOffsetPublicKey,
		Covenant:              msg.Covenant,
		MinimumValuePromise:   msg.MinimumValuePromise,
	}

	spendPub, err := crypto.PublicKeyFromScalar(spendKey)
	if err != nil {
		return nil, fmt.Errorf("txprotocol: deriving public spend key: %w", err)
	}
	kernelNoncePub, err := crypto.PublicKeyFromScalar(kernelNonceKey)
	if err != nil {
		return nil, fmt.Errorf("txprotocol: deriving public kernel nonce: %w", err)
	}

	aggExcessPub, err := crypto.AddPublicKeys(msg.PublicExcess, spendPub)
	if err != nil {
		return nil, fmt.Errorf("txprotocol: aggregating excess: %w", err)
	}
	aggNoncePub, err := crypto.AggregateNonce(msg.PublicNonce, kernelNoncePub)
	if err != nil {
		return nil, fmt.Errorf("txprotocol: aggregating kernel nonce: %w", err)
	}
	aggNonceX, err := crypto.NonceX(aggNoncePub)
	if err != nil {
		return nil, fmt.Errorf("txprotocol: extracting kernel nonce: %w", err)
	}

	kernel := tx.Kernel{
		Features:         msg.Metadata.Features,
		Fee:              msg.Metadata.Fee,
		LockHeight:       msg.Metadata.LockHeight,
		ExcessCommitment: types.Commitment(aggExcessPub),
	}
	partialExcess, err := crypto.PartialSign(spendKey, kernelNonceKey, aggNonceX, aggExcessPub, kernel.ExcessChallenge())
	if err != nil {
		return nil, fmt.Errorf("txprotocol: partial-signing kernel excess: %w", err)
	}

	metaNonceKey, err := km.DeriveKey(branchMetadataNonce, km.NextKeyID(branchMetadataNonce))
	if err != nil {
		return nil, fmt.Errorf("txprotocol: deriving metadata nonce: %w", err)
	}
	metaNoncePub, err := crypto.PublicKeyFromScalar(metaNonceKey)
	if err != nil {
		return nil, fmt.Errorf("txprotocol: deriving public metadata nonce: %w", err)
	}
	aggMetaPub, err := crypto.AddPublicKeys(msg.SenderOffsetPublicKey, spendPub)
	if err != nil {
		return nil, fmt.Errorf("txprotocol: aggregating metadata key: %w", err)
	}
	aggMetaNonce, err := crypto.AggregateNonce(metaNoncePub, msg.EphemeralPublicNonce)
	if err != nil {
		return nil, fmt.Errorf("txprotocol: aggregating metadata nonce: %w", err)
	}
	aggMetaNonceX, err := crypto.NonceX(aggMetaNonce)
	if err != nil {
		return nil, fmt.Errorf("txprotocol: extracting metadata nonce: %w", err)
	}
	partialMeta, err := crypto.PartialSign(spendKey, metaNonceKey, aggMetaNonceX, aggMetaPub, out.MetadataChallenge())
	if err != nil {
		return nil, fmt.Errorf("txprotocol: partial-signing metadata: %w", err)
	}
	// The sender completes this with its own sender-offset partial
	// signature over the aggregate nonce x-coordinate; AggregateSignature
	// with one term here records the recipient's half so the sender can
	// sum it with its own without a third round.
	out.MetadataSignature = crypto.AggregateSignature(aggMetaNonceX, partialMeta)

	return &RecipientReply{
		TxID:             msg.TxID,
		PublicSpendKey:   spendPub,
		PublicNonce:      kernelNoncePub,
		PartialSignature: partialExcess,
		Offset:           offsetKey,
		Output:           out,
	}, nil
}

// placeholderRangeProof stands in for a real bulletproof: a deterministic
// hash binding the commitment, which pkg/validation's AcceptAllRangeProofs
// accepts unconditionally since range proof verification is delegated to
// an external prover/verifier service rather than implemented here.
func placeholderRangeProof(c types.Commitment) []byte {
	h := crypto.Hash(rangeProofPlaceholderLabel, c[:])
	return h[:]
}
