package txprotocol

import (
	"bytes"
	"testing"

	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/keymanager"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

func testKeyManager(t *testing.T, seedByte byte) *keymanager.KeyManager {
	t.Helper()
	km, err := keymanager.NewFromSeed(bytes.Repeat([]byte{seedByte}, 32))
	if err != nil {
		t.Fatalf("NewFromSeed: %v", err)
	}
	return km
}

// spendInputWithCommit derives a fresh (blinding key, script key) pair
// and a matching input committed to value, so tests don't need a real
// chain-stored output to spend.
func spendInputWithCommit(t *testing.T, km *keymanager.KeyManager, value uint64) InputSpend {
	t.Helper()
	blinding, err := km.DeriveKey(keymanager.BranchSpend, km.NextKeyID(keymanager.BranchSpend))
	if err != nil {
		t.Fatalf("derive blinding key: %v", err)
	}
	scriptKey, err := km.DeriveKey(keymanager.BranchScript, km.NextKeyID(keymanager.BranchScript))
	if err != nil {
		t.Fatalf("derive script key: %v", err)
	}
	commitment, err := crypto.Commit(value, blinding)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return InputSpend{
		Input:       tx.Input{Commitment: commitment},
		BlindingKey: blinding,
		ScriptKey:   scriptKey,
	}
}

// ownOutputWithCommit builds a sender-owned output (e.g. change) the
// sender both blinds and signs unilaterally.
func ownOutputWithCommit(t *testing.T, km *keymanager.KeyManager, value uint64, blinding, offset types.Scalar) OutputSpend {
	t.Helper()
	commitment, err := crypto.Commit(value, blinding)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	offsetPub, err := crypto.PublicKeyFromScalar(offset)
	if err != nil {
		t.Fatalf("offset pubkey: %v", err)
	}
	return OutputSpend{
		Output:      tx.Output{Commitment: commitment, SenderOffsetPublicKey: offsetPub},
		BlindingKey: blinding,
		OffsetKey:   offset,
	}
}

func TestSenderSoloFinalize(t *testing.T) {
	km := testKeyManager(t, 0x01)

	changeBlinding, err := km.DeriveKey(keymanager.BranchSpend, km.NextKeyID(keymanager.BranchSpend))
	if err != nil {
		t.Fatalf("derive change blinding: %v", err)
	}
	changeOffset, err := km.DeriveKey(keymanager.BranchSenderOffset, km.NextKeyID(keymanager.BranchSenderOffset))
	if err != nil {
		t.Fatalf("derive change offset: %v", err)
	}

	input := spendInputWithCommit(t, km, 1000)
	change := ownOutputWithCommit(t, km, 900, changeBlinding, changeOffset)

	sender := NewSender(km, 1, []InputSpend{input}, []OutputSpend{change}, 100, 1, 0, tx.KernelDefault)
	transaction, err := sender.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if sender.State() != StateFinalizedTransaction {
		t.Errorf("state = %s, want %s", sender.State(), StateFinalizedTransaction)
	}
	if err := transaction.VerifyBalance(); err != nil {
		t.Errorf("VerifyBalance: %v", err)
	}
	if len(transaction.Kernels) != 1 {
		t.Fatalf("kernels = %d, want 1", len(transaction.Kernels))
	}
	if transaction.Kernels[0].Fee != 100 {
		t.Errorf("kernel fee = %d, want 100", transaction.Kernels[0].Fee)
	}
}

func TestSenderRecipientRoundTrip(t *testing.T) {
	senderKM := testKeyManager(t, 0x02)
	recipientKM := testKeyManager(t, 0x03)

	input := spendInputWithCommit(t, senderKM, 1000)

	sender := NewSender(senderKM, 7, []InputSpend{input}, nil, 100, 1, 0, tx.KernelDefault)
	if err := sender.AddRecipient(900, tx.OutputDefault, nil, nil, 0); err != nil {
		t.Fatalf("AddRecipient: %v", err)
	}
	if sender.State() != StateInitializing {
		t.Fatalf("state after AddRecipient = %s", sender.State())
	}

	msg, err := sender.BuildSingleRoundMessage()
	if err != nil {
		t.Fatalf("BuildSingleRoundMessage: %v", err)
	}
	if sender.State() != StateSingleRoundMessageReady {
		t.Fatalf("state after BuildSingleRoundMessage = %s", sender.State())
	}
	if msg.TxID != 7 || msg.Amount != 900 {
		t.Fatalf("message = %+v, want TxID=7 Amount=900", msg)
	}

	reply, err := ReceiveSingleRoundMessage(recipientKM, msg, 900)
	if err != nil {
		t.Fatalf("ReceiveSingleRoundMessage: %v", err)
	}
	if reply.TxID != msg.TxID {
		t.Fatalf("reply TxID = %d, want %d", reply.TxID, msg.TxID)
	}

	if err := sender.ReceiveReply(reply); err != nil {
		t.Fatalf("ReceiveReply: %v", err)
	}
	if sender.State() != StateFinalizing {
		t.Fatalf("state after ReceiveReply = %s", sender.State())
	}

	transaction, err := sender.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if sender.State() != StateFinalizedTransaction {
		t.Errorf("state = %s, want %s", sender.State(), StateFinalizedTransaction)
	}
	if err := transaction.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := transaction.VerifyBalance(); err != nil {
		t.Errorf("VerifyBalance: %v", err)
	}
	if len(transaction.Outputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(transaction.Outputs))
	}
}

func TestReceiveReplyRejectsWrongState(t *testing.T) {
	km := testKeyManager(t, 0x04)
	input := spendInputWithCommit(t, km, 500)
	sender := NewSender(km, 1, []InputSpend{input}, nil, 10, 1, 0, tx.KernelDefault)

	err := sender.ReceiveReply(&RecipientReply{})
	if err == nil {
		t.Fatal("expected error calling ReceiveReply before BuildSingleRoundMessage")
	}
	if sender.State() != StateFailed {
		t.Errorf("state = %s, want Failed", sender.State())
	}
	if sender.LastError() == nil {
		t.Error("LastError() = nil after failure")
	}
}

func TestBuildSingleRoundMessageRejectsZeroInputs(t *testing.T) {
	km := testKeyManager(t, 0x05)
	sender := NewSender(km, 1, nil, nil, 10, 1, 0, tx.KernelDefault)
	if err := sender.AddRecipient(100, tx.OutputDefault, nil, nil, 0); err != nil {
		t.Fatalf("AddRecipient: %v", err)
	}

	_, err := sender.BuildSingleRoundMessage()
	if err == nil {
		t.Fatal("expected error building message with zero inputs")
	}
	if sender.State() != StateFailed {
		t.Errorf("state = %s, want Failed", sender.State())
	}
}

func TestAmountMismatchRejected(t *testing.T) {
	senderKM := testKeyManager(t, 0x06)
	recipientKM := testKeyManager(t, 0x07)
	input := spendInputWithCommit(t, senderKM, 1000)

	sender := NewSender(senderKM, 1, []InputSpend{input}, nil, 10, 1, 0, tx.KernelDefault)
	if err := sender.AddRecipient(900, tx.OutputDefault, nil, nil, 0); err != nil {
		t.Fatalf("AddRecipient: %v", err)
	}
	msg, err := sender.BuildSingleRoundMessage()
	if err != nil {
		t.Fatalf("BuildSingleRoundMessage: %v", err)
	}

	if _, err := ReceiveSingleRoundMessage(recipientKM, msg, 123); err == nil {
		t.Fatal("expected error on mismatched amount")
	}
}
