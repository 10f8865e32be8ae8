package script

import (
	"bytes"
	"testing"

	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/types"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	instrs := []Instruction{
		{Op: OpPushInt, Int: 42},
		{Op: OpPushOne},
		{Op: OpAdd},
		{Op: OpGtZero},
		{Op: OpDrop},
		{Op: OpNop},
	}

	s, err := Serialize(instrs)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := s.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	s2, err := Serialize(got)
	if err != nil {
		t.Fatalf("re-serialize: %v", err)
	}
	if !bytes.Equal(s, s2) {
		t.Errorf("round trip mismatch: %x != %x", s, s2)
	}

	decoded, err := FromHex(s.Hex())
	if err != nil {
		t.Fatalf("from hex: %v", err)
	}
	if !bytes.Equal(decoded, s) {
		t.Errorf("hex round trip mismatch")
	}
}

func TestExecuteArithmetic(t *testing.T) {
	instrs := []Instruction{
		{Op: OpPushInt, Int: 5},
		{Op: OpPushInt, Int: 3},
		{Op: OpSub},
	}
	out, err := Execute(instrs, nil, Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Kind != KindNumber || out.Number != 2 {
		t.Errorf("got %s, want Number(2)", out)
	}
}

func TestExecuteNonUnitStackFails(t *testing.T) {
	instrs := []Instruction{
		{Op: OpPushInt, Int: 1},
		{Op: OpPushInt, Int: 2},
	}
	_, err := Execute(instrs, nil, Context{})
	if err != ErrNonUnitStack {
		t.Errorf("got %v, want ErrNonUnitStack", err)
	}
}

func TestExecuteCheckSig(t *testing.T) {
	var sk types.Scalar
	for i := range sk {
		sk[i] = byte(i + 1)
	}
	var nonce types.Scalar
	for i := range nonce {
		nonce[i] = byte(i + 100)
	}
	pk, err := crypto.PublicKeyFromScalar(sk)
	if err != nil {
		t.Fatalf("pubkey: %v", err)
	}
	var msg types.Hash
	for i := range msg {
		msg[i] = byte(i)
	}
	sig, err := crypto.Sign(sk, nonce, msg[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	instrs := []Instruction{
		{Op: OpPushPubKey, Point: [33]byte(pk)},
		{Op: OpPushSignature, Sig: [64]byte(sig)},
		{Op: OpCheckSig, Hash: [32]byte(msg)},
	}
	out, err := Execute(instrs, nil, Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Kind != KindNumber || out.Number != 1 {
		t.Errorf("signature did not verify inside script: %s", out)
	}
}

func TestExecuteCheckHeightVerify(t *testing.T) {
	instrs := []Instruction{
		{Op: OpCheckHeightVerify, Int: 100},
		{Op: OpPushOne},
	}
	_, err := Execute(instrs, nil, Context{BlockHeight: 50})
	if err != ErrVerifyFailed {
		t.Errorf("got %v, want ErrVerifyFailed below target height", err)
	}

	out, err := Execute(instrs, nil, Context{BlockHeight: 100})
	if err != nil {
		t.Fatalf("execute at target height: %v", err)
	}
	if out.Number != 1 {
		t.Errorf("got %s, want Number(1)", out)
	}
}

func TestExecuteIfElse(t *testing.T) {
	takeThen := []Instruction{
		{Op: OpPushOne},
		{Op: OpIfThen},
		{Op: OpPushInt, Int: 7},
		{Op: OpElse},
		{Op: OpPushInt, Int: 9},
		{Op: OpEndIf},
	}
	out, err := Execute(takeThen, nil, Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Number != 7 {
		t.Errorf("got %d, want 7", out.Number)
	}

	takeElse := []Instruction{
		{Op: OpPushZero},
		{Op: OpIfThen},
		{Op: OpPushInt, Int: 7},
		{Op: OpElse},
		{Op: OpPushInt, Int: 9},
		{Op: OpEndIf},
	}
	out, err = Execute(takeElse, nil, Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Number != 9 {
		t.Errorf("got %d, want 9", out.Number)
	}
}

func TestExecuteHashOpcodes(t *testing.T) {
	for _, op := range []OpCode{OpHashBlake256, OpHashSha256, OpHashSha3} {
		instrs := []Instruction{
			{Op: OpPushInt, Int: 7},
			{Op: op},
		}
		out, err := Execute(instrs, nil, Context{})
		if err != nil {
			t.Fatalf("op %s: %v", opcodeName(op), err)
		}
		if out.Kind != KindHash {
			t.Errorf("op %s produced %s, want Hash", opcodeName(op), out)
		}
	}
}

func TestExecuteStackUnderflow(t *testing.T) {
	_, err := Execute([]Instruction{{Op: OpAdd}}, nil, Context{})
	if err != ErrStackUnderflow {
		t.Errorf("got %v, want ErrStackUnderflow", err)
	}
}
