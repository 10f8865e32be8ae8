package txprotocol

import (
	"fmt"

	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/keymanager"
	"github.com/klingnet-chain/core/pkg/script"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// Sanity-check limits for a single transaction. The original protocol
// names MAX_TRANSACTION_INPUTS/MAX_TRANSACTION_OUTPUTS as consensus
// constants without a value recoverable from this repository's sources;
// these are implementation-chosen limits generous enough for any
// realistic wallet-side construction.
const (
	MaxInputs  = 500
	MaxOutputs = 500
)

const (
	branchKernelNonce   = "txprotocol.kernel_nonce"
	branchKernelOffset  = "txprotocol.kernel_offset"
	branchMetadataNonce = "txprotocol.metadata_nonce"
	branchScriptNonce   = "txprotocol.script_nonce"
)

// InputSpend is one input the sender is spending, together with the
// private keys needed to sign it: the blinding factor backing the spent
// output's commitment, and the key unlocking its locking script. The
// sender already owns both, so no interactive round is needed to spend
// its own inputs.
type InputSpend struct {
	Input       tx.Input
	BlindingKey types.Scalar
	ScriptKey   types.Scalar
}

// OutputSpend is one output the sender creates for itself, such as
// change. The sender knows every private key involved (the value
// blinding factor and the sender-offset key) and signs it unilaterally,
// with no recipient round-trip.
type OutputSpend struct {
	Output      tx.Output
	BlindingKey types.Scalar
	OffsetKey   types.Scalar
}

// Sender drives the sender side of the single-recipient transaction
// construction protocol: gather inputs and self-owned outputs,
// optionally build a message for one recipient, collect its reply, and
// finalize the signed transaction.
type Sender struct {
	state State
	err   error

	txID uint64
	km   *keymanager.KeyManager

	inputs     []InputSpend
	ownOutputs []OutputSpend

	fee        uint64
	feePerGram uint64
	lockHeight uint64
	features   tx.KernelFeatures

	kernelOffsetKey types.Scalar
	senderExcessKey types.Scalar
	senderNonceKey  types.Scalar
	publicExcess    types.PublicKey
	publicNonce     types.PublicKey

	hasRecipient             bool
	recipientAmount          uint64
	recipientFeatures        tx.OutputFeatures
	recipientScript          script.Script
	recipientCovenant        []byte
	recipientMinValuePromise uint64
	recipientOffsetKey       types.Scalar
	metadataNonceKey         types.Scalar

	finalKernel     *tx.Kernel
	finalOutput     *tx.Output
	kernelOffsetSum types.Scalar
}

// NewSender starts a construction protocol instance for the given
// inputs and self-owned outputs. fee is the total kernel fee already
// decided on; feePerGram is used only to sanity-check that fee is
// enough for the transaction's eventual weight at Finalize time.
func NewSender(km *keymanager.KeyManager, txID uint64, inputs []InputSpend, ownOutputs []OutputSpend, fee, feePerGram, lockHeight uint64, features tx.KernelFeatures) *Sender {
	return &Sender{
		state:      StateInitializing,
		txID:       txID,
		km:         km,
		inputs:     inputs,
		ownOutputs: ownOutputs,
		fee:        fee,
		feePerGram: feePerGram,
		lockHeight: lockHeight,
		features:   features,
	}
}

// State reports the current protocol state.
func (s *Sender) State() State { return s.state }

// LastError returns the error that moved the protocol to Failed, or nil.
func (s *Sender) LastError() error { return s.err }

// AddRecipient registers the single recipient's output parameters. Must
// be called, if at all, before BuildSingleRoundMessage. A sender with no
// recipient (a self-payment, a pure consolidation) skips straight to
// Finalize.
func (s *Sender) AddRecipient(amount uint64, features tx.OutputFeatures, scr script.Script, covenant []byte, minValuePromise uint64) error {
	if s.state != StateInitializing {
		return s.fail(&InvalidStateError{Want: StateInitializing, Got: s.state})
	}
	s.hasRecipient = true
	s.recipientAmount = amount
	s.recipientFeatures = features
	s.recipientScript = scr
	s.recipientCovenant = covenant
	s.recipientMinValuePromise = minValuePromise
	return nil
}

// BuildSingleRoundMessage builds the message the sender sends the
// recipient and advances the state machine to SingleRoundMessageReady.
func (s *Sender) BuildSingleRoundMessage() (*SingleRoundSenderMessage, error) {
	if s.state != StateInitializing {
		return nil, s.fail(&InvalidStateError{Want: StateInitializing, Got: s.state})
	}
	if !s.hasRecipient {
		return nil, s.fail(&IncompleteStateError{Reason: "no recipient registered; call Finalize directly"})
	}
	if len(s.inputs) == 0 {
		return nil, s.fail(&ValidationError{Reason: "zero inputs"})
	}
	if len(s.inputs) > MaxInputs {
		return nil, s.fail(&ValidationError{Reason: fmt.Sprintf("too many inputs: %d > %d", len(s.inputs), MaxInputs)})
	}

	var err error
	s.kernelOffsetKey, err = s.deriveKey(branchKernelOffset)
	if err != nil {
		return nil, s.fail(&TransactionBuildError{Reason: "deriving kernel offset key", Err: err})
	}
	s.senderNonceKey, err = s.deriveKey(branchKernelNonce)
	if err != nil {
		return nil, s.fail(&TransactionBuildError{Reason: "deriving kernel nonce key", Err: err})
	}
	s.recipientOffsetKey, err = s.deriveKey(keymanager.BranchSenderOffset)
	if err != nil {
		return nil, s.fail(&TransactionBuildError{Reason: "deriving sender-offset key", Err: err})
	}
	s.metadataNonceKey, err = s.deriveKey(branchMetadataNonce)
	if err != nil {
		return nil, s.fail(&TransactionBuildError{Reason: "deriving metadata nonce key", Err: err})
	}

	s.senderExcessKey, err = s.computeOwnExcess()
	if err != nil {
		return nil, s.fail(&TransactionBuildError{Reason: "computing excess", Err: err})
	}
	s.publicExcess, err = crypto.PublicKeyFromScalar(s.senderExcessKey)
	if err != nil {
		return nil, s.fail(&TransactionBuildError{Reason: "deriving public excess", Err: err})
	}
	s.publicNonce, err = crypto.PublicKeyFromScalar(s.senderNonceKey)
	if err != nil {
		return nil, s.fail(&TransactionBuildError{Reason: "deriving public nonce", Err: err})
	}
	offsetPub, err := crypto.PublicKeyFromScalar(s.recipientOffsetKey)
	if err != nil {
		return nil, s.fail(&TransactionBuildError{Reason: "deriving sender-offset public key", Err: err})
	}
	ephemeralNoncePub, err := crypto.PublicKeyFromScalar(s.metadataNonceKey)
	if err != nil {
		return nil, s.fail(&TransactionBuildError{Reason: "deriving ephemeral nonce", Err: err})
	}

	msg := &SingleRoundSenderMessage{
		TxID:                  s.txID,
		Amount:                s.recipientAmount,
		PublicExcess:          s.publicExcess,
		PublicNonce:           s.publicNonce,
		Metadata:              Metadata{Fee: s.fee, LockHeight: s.lockHeight, Features: s.features},
		Script:                s.recipientScript,
		Features:              s.recipientFeatures,
		SenderOffsetPublicKey: offsetPub,
		EphemeralPublicNonce:  ephemeralNoncePub,
		Covenant:              s.recipientCovenant,
		MinimumValuePromise:   s.recipientMinValuePromise,
	}
	s.state = StateSingleRoundMessageReady
	return msg, nil
}

// ReceiveReply processes the recipient's reply: it completes the kernel
// excess signature and the recipient output's metadata signature by
// summing the sender's own partial contribution into the recipient's,
// then advances to Finalizing.
func (s *Sender) ReceiveReply(reply *RecipientReply) error {
	if s.state != StateSingleRoundMessageReady {
		return s.fail(&InvalidStateError{Want: StateSingleRoundMessageReady, Got: s.state})
	}
	s.state = StateCollectingSingleSignature

	if reply.TxID != s.txID {
		return s.fail(&ValidationError{Reason: "recipient reply tx id mismatch"})
	}

	aggExcessPub, err := crypto.AddPublicKeys(s.publicExcess, reply.PublicSpendKey)
	if err != nil {
		return s.fail(&TransactionBuildError{Reason: "aggregating excess", Err: err})
	}
	aggNoncePub, err := crypto.AggregateNonce(s.publicNonce, reply.PublicNonce)
	if err != nil {
		return s.fail(&TransactionBuildError{Reason: "aggregating kernel nonce", Err: err})
	}
	aggNonceX, err := crypto.NonceX(aggNoncePub)
	if err != nil {
		return s.fail(&TransactionBuildError{Reason: "extracting kernel nonce", Err: err})
	}

	kernel := tx.Kernel{Features: s.features, Fee: s.fee, LockHeight: s.lockHeight, ExcessCommitment: types.Commitment(aggExcessPub)}
	challenge := kernel.ExcessChallenge()
	senderPartial, err := crypto.PartialSign(s.senderExcessKey, s.senderNonceKey, aggNonceX, aggExcessPub, challenge)
	if err != nil {
		return s.fail(&TransactionBuildError{Reason: "signing kernel excess", Err: err})
	}
	kernel.ExcessSignature = crypto.AggregateSignature(aggNonceX, reply.PartialSignature, senderPartial)

	ok, err := crypto.Verify(aggExcessPub, challenge, kernel.ExcessSignature)
	if err != nil {
		return s.fail(&TransactionBuildError{Reason: "verifying kernel excess signature", Err: err})
	}
	if !ok {
		return s.fail(&ValidationError{Reason: "kernel excess signature failed to verify"})
	}

	out := reply.Output
	offsetPub, err := crypto.PublicKeyFromScalar(s.recipientOffsetKey)
	if err != nil {
		return s.fail(&TransactionBuildError{Reason: "recomputing sender-offset public key", Err: err})
	}
	aggMetaPub, err := crypto.AddPublicKeys(offsetPub, reply.PublicSpendKey)
	if err != nil {
		return s.fail(&TransactionBuildError{Reason: "aggregating metadata key", Err: err})
	}
	metaChallenge := out.MetadataChallenge()
	aggMetaNonceX := out.MetadataSignature.Nonce()
	senderMetaPartial, err := crypto.PartialSign(s.recipientOffsetKey, s.metadataNonceKey, aggMetaNonceX, aggMetaPub, metaChallenge)
	if err != nil {
		return s.fail(&TransactionBuildError{Reason: "signing output metadata", Err: err})
	}
	out.MetadataSignature = crypto.AggregateSignature(aggMetaNonceX, out.MetadataSignature.Scalar(), senderMetaPartial)

	ok, err = crypto.Verify(aggMetaPub, metaChallenge, out.MetadataSignature)
	if err != nil {
		return s.fail(&TransactionBuildError{Reason: "verifying output metadata signature", Err: err})
	}
	if !ok {
		return s.fail(&ValidationError{Reason: "output metadata signature failed to verify"})
	}

	s.finalKernel = &kernel
	s.finalOutput = &out
	s.kernelOffsetSum = crypto.AddScalars(s.kernelOffsetKey, reply.Offset)
	s.state = StateFinalizing
	return nil
}

// Finalize assembles and signs the complete transaction: it self-signs
// every sender-owned input and output, folds in the recipient's
// contribution if there was one, and runs the sanity checks the
// protocol requires before producing the final transaction. Success
// moves the state machine to FinalizedTransaction; any failure moves it
// to the terminal Failed state.
func (s *Sender) Finalize() (*tx.Transaction, error) {
	switch {
	case !s.hasRecipient && s.state == StateInitializing:
		if err := s.finalizeSolo(); err != nil {
			return nil, s.fail(err)
		}
	case s.hasRecipient && s.state == StateFinalizing:
		// Kernel and recipient output were already completed in ReceiveReply.
	default:
		return nil, s.fail(&InvalidStateError{Want: StateFinalizing, Got: s.state})
	}

	signedInputs, scriptKeySum, err := s.signInputs()
	if err != nil {
		return nil, s.fail(&TransactionBuildError{Reason: "signing inputs", Err: err})
	}

	outputs := make([]tx.Output, 0, len(s.ownOutputs)+1)
	for i := range s.ownOutputs {
		o := s.ownOutputs[i]
		signed, err := s.signOwnOutput(o)
		if err != nil {
			return nil, s.fail(&TransactionBuildError{Reason: "signing own output", Err: err})
		}
		outputs = append(outputs, signed)
	}
	offsetKeySum := make([]types.Scalar, 0, len(s.ownOutputs))
	for i := range s.ownOutputs {
		offsetKeySum = append(offsetKeySum, s.ownOutputs[i].OffsetKey)
	}
	if s.hasRecipient {
		outputs = append(outputs, *s.finalOutput)
		offsetKeySum = append(offsetKeySum, s.recipientOffsetKey)
	}

	scriptOffset := crypto.AddScalars(scriptKeySum, crypto.NegateScalar(crypto.AddScalars(offsetKeySum...)))

	kernels := []tx.Kernel{}
	if s.finalKernel != nil {
		kernels = append(kernels, *s.finalKernel)
	}

	transaction := &tx.Transaction{
		Inputs:       signedInputs,
		Outputs:      outputs,
		Kernels:      kernels,
		Offset:       s.kernelOffsetSum,
		ScriptOffset: scriptOffset,
	}

	if err := s.validateFinal(transaction); err != nil {
		return nil, s.fail(err)
	}
	if err := transaction.VerifyBalance(); err != nil {
		return nil, s.fail(&TransactionBuildError{Reason: "balance equation", Err: err})
	}

	s.state = StateFinalizedTransaction
	return transaction, nil
}

// finalizeSolo builds and signs the kernel entirely locally, for a
// transaction with no recipient round-trip.
func (s *Sender) finalizeSolo() error {
	var err error
	s.kernelOffsetKey, err = s.deriveKey(branchKernelOffset)
	if err != nil {
		return &TransactionBuildError{Reason: "deriving kernel offset key", Err: err}
	}
	s.senderNonceKey, err = s.deriveKey(branchKernelNonce)
	if err != nil {
		return &TransactionBuildError{Reason: "deriving kernel nonce key", Err: err}
	}
	s.senderExcessKey, err = s.computeOwnExcess()
	if err != nil {
		return &TransactionBuildError{Reason: "computing excess", Err: err}
	}

	excessPub, err := crypto.PublicKeyFromScalar(s.senderExcessKey)
	if err != nil {
		return &TransactionBuildError{Reason: "deriving public excess", Err: err}
	}
	kernel := tx.Kernel{Features: s.features, Fee: s.fee, LockHeight: s.lockHeight, ExcessCommitment: types.Commitment(excessPub)}
	sig, err := crypto.Sign(s.senderExcessKey, s.senderNonceKey, kernel.ExcessChallenge())
	if err != nil {
		return &TransactionBuildError{Reason: "signing kernel excess", Err: err}
	}
	kernel.ExcessSignature = sig
	s.finalKernel = &kernel
	if s.features.IsCoinbase() {
		s.kernelOffsetSum = types.Scalar{}
	} else {
		s.kernelOffsetSum = s.kernelOffsetKey
	}
	s.state = StateFinalizing
	return nil
}

// computeOwnExcess sums the sender's own output blinding factors minus
// its own input blinding factors minus the private kernel offset: the
// sender's share of the kernel excess private key. A coinbase kernel is
// signed directly against the raw blinding sum, with no offset applied.
func (s *Sender) computeOwnExcess() (types.Scalar, error) {
	positives := make([]types.Scalar, 0, len(s.ownOutputs)+1)
	for i := range s.ownOutputs {
		positives = append(positives, s.ownOutputs[i].BlindingKey)
	}
	negatives := make([]types.Scalar, 0, len(s.inputs)+1)
	for i := range s.inputs {
		negatives = append(negatives, s.inputs[i].BlindingKey)
	}
	if !s.features.IsCoinbase() {
		negatives = append(negatives, s.kernelOffsetKey)
	}

	return crypto.AddScalars(crypto.AddScalars(positives...), crypto.NegateScalar(crypto.AddScalars(negatives...))), nil
}

// signInputs produces each input's script-unlocking signature and
// returns the finished inputs plus the sum of the private keys behind
// them, needed for the script offset.
func (s *Sender) signInputs() ([]tx.Input, types.Scalar, error) {
	signed := make([]tx.Input, len(s.inputs))
	keys := make([]types.Scalar, len(s.inputs))
	for i, in := range s.inputs {
		input := in.Input
		nonce, err := s.km.DeriveKey(branchScriptNonce, s.km.NextKeyID(branchScriptNonce))
		if err != nil {
			return nil, types.Scalar{}, fmt.Errorf("deriving script nonce for input %d: %w", i, err)
		}
		challenge := crypto.HashConcat("klingnet.tx.input.scriptsig", input.Commitment[:], input.Script)
		sig, err := crypto.Sign(in.ScriptKey, nonce, challenge)
		if err != nil {
			return nil, types.Scalar{}, fmt.Errorf("signing input %d: %w", i, err)
		}
		input.ScriptSignature = sig
		signed[i] = input
		keys[i] = in.ScriptKey
	}
	return signed, crypto.AddScalars(keys...), nil
}

// signOwnOutput fully signs a sender-owned output (the sender holds both
// the value blinding key and the sender-offset key, so no aggregation
// round is needed).
func (s *Sender) signOwnOutput(o OutputSpend) (tx.Output, error) {
	out := o.Output
	combined := crypto.AddScalars(o.BlindingKey, o.OffsetKey)
	nonce, err := s.km.DeriveKey(branchMetadataNonce, s.km.NextKeyID(branchMetadataNonce))
	if err != nil {
		return tx.Output{}, fmt.Errorf("deriving metadata nonce: %w", err)
	}
	sig, err := crypto.Sign(combined, nonce, out.MetadataChallenge())
	if err != nil {
		return tx.Output{}, fmt.Errorf("signing metadata: %w", err)
	}
	out.MetadataSignature = sig
	return out, nil
}

// validateFinal runs the protocol's sanity checks on the assembled
// transaction: minimum fee, input/output caps, non-empty inputs.
func (s *Sender) validateFinal(t *tx.Transaction) error {
	if len(t.Inputs) == 0 {
		return &ValidationError{Reason: "zero inputs"}
	}
	if len(t.Inputs) > MaxInputs {
		return &ValidationError{Reason: fmt.Sprintf("too many inputs: %d > %d", len(t.Inputs), MaxInputs)}
	}
	if len(t.Outputs) > MaxOutputs {
		return &ValidationError{Reason: fmt.Sprintf("too many outputs: %d > %d", len(t.Outputs), MaxOutputs)}
	}
	if !t.MeetsMinFee(s.feePerGram) {
		return &ValidationError{Reason: fmt.Sprintf("fee %d below minimum for weight at %d/gram", s.fee, s.feePerGram)}
	}
	return nil
}

// deriveKey derives the next key on branch from the sender's key
// manager, advancing that branch's index.
func (s *Sender) deriveKey(branch string) (types.Scalar, error) {
	return s.km.DeriveKey(branch, s.km.NextKeyID(branch))
}
