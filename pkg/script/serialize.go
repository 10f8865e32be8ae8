package script

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Script is a serialized instruction stream: one opcode byte followed by
// whatever immediate bytes that opcode requires, repeated to the end of
// the slice. Parsing and re-serializing a Script always reproduces the
// original bytes.
type Script []byte

// Hex returns the lowercase hex encoding of the raw script bytes.
func (s Script) Hex() string {
	return hex.EncodeToString(s)
}

// FromHex decodes a hex-encoded script.
func FromHex(s string) (Script, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("script: invalid hex: %w", err)
	}
	if len(b) > MaxScriptBytes {
		return nil, ErrScriptTooLong
	}
	return Script(b), nil
}

// Serialize encodes an instruction list into its wire form.
func Serialize(instrs []Instruction) (Script, error) {
	var out []byte
	for _, in := range instrs {
		out = append(out, byte(in.Op))
		switch in.Op {
		case OpPushInt, OpCheckHeight, OpCheckHeightVerify:
			out = appendInt64(out, in.Int)
		case OpPushHash:
			out = append(out, in.Hash[:]...)
		case OpPushScalar:
			out = append(out, in.Scalar[:]...)
		case OpPushCommitment, OpPushPubKey:
			out = append(out, in.Point[:]...)
		case OpPushSignature:
			out = append(out, in.Sig[:]...)
		case OpCheckSig, OpCheckSigVerify:
			out = append(out, in.Hash[:]...)
		case OpCheckMultiSig, OpCheckMultiSigVerify, OpCheckMultiSigAggregatePubKey:
			if int(in.N) != len(in.Keys) {
				return nil, fmt.Errorf("%w: CheckMultiSig n=%d but %d keys given", ErrInvalidInput, in.N, len(in.Keys))
			}
			if in.N < 1 || in.N > MaxMultisigN || in.M < 1 || in.M > in.N {
				return nil, fmt.Errorf("%w: multisig m=%d n=%d", ErrValueExceedsBounds, in.M, in.N)
			}
			out = append(out, in.M, in.N)
			for _, k := range in.Keys {
				out = append(out, k[:]...)
			}
			out = append(out, in.Hash[:]...)
		case OpOr, OpOrVerify:
			if len(in.OrSet) > 255 {
				return nil, fmt.Errorf("%w: OR set too large", ErrInvalidInput)
			}
			out = append(out, byte(len(in.OrSet)))
			for _, h := range in.OrSet {
				out = append(out, h[:]...)
			}
		case OpDrop, OpDup, OpRevRot, OpAdd, OpSub, OpEqual, OpEqualVerify,
			OpGeZero, OpGtZero, OpLeZero, OpLtZero, OpHashBlake256, OpHashSha256, OpHashSha3,
			OpCompareHeight, OpCompareHeightVerify, OpIfThen, OpElse,
			OpEndIf, OpReturn, OpNop, OpToRistrettoPoint, OpPushZero, OpPushOne:
			// no immediate
		default:
			return nil, fmt.Errorf("%w: opcode %d", ErrInvalidOpcode, in.Op)
		}
	}
	if len(out) > MaxScriptBytes {
		return nil, ErrScriptTooLong
	}
	return Script(out), nil
}

// Parse decodes the script into its instruction list.
func (s Script) Parse() ([]Instruction, error) {
	if len(s) > MaxScriptBytes {
		return nil, ErrScriptTooLong
	}
	var instrs []Instruction
	b := []byte(s)
	for len(b) > 0 {
		op := OpCode(b[0])
		b = b[1:]
		in := Instruction{Op: op}
		var err error
		switch op {
		case OpPushInt, OpCheckHeight, OpCheckHeightVerify:
			in.Int, b, err = readInt64(b)
		case OpPushHash:
			in.Hash, b, err = read32(b)
		case OpPushScalar:
			in.Scalar, b, err = read32(b)
		case OpPushCommitment, OpPushPubKey:
			in.Point, b, err = read33(b)
		case OpPushSignature:
			in.Sig, b, err = read64(b)
		case OpCheckSig, OpCheckSigVerify:
			in.Hash, b, err = read32(b)
		case OpCheckMultiSig, OpCheckMultiSigVerify, OpCheckMultiSigAggregatePubKey:
			if len(b) < 2 {
				return nil, ErrInvalidOpcode
			}
			in.M, in.N = b[0], b[1]
			b = b[2:]
			if in.N < 1 || in.N > MaxMultisigN || in.M < 1 || in.M > in.N {
				return nil, fmt.Errorf("%w: multisig m=%d n=%d", ErrValueExceedsBounds, in.M, in.N)
			}
			in.Keys = make([][33]byte, in.N)
			for i := 0; i < int(in.N); i++ {
				in.Keys[i], b, err = read33(b)
				if err != nil {
					return nil, err
				}
			}
			in.Hash, b, err = read32(b)
		case OpOr, OpOrVerify:
			if len(b) < 1 {
				return nil, ErrInvalidOpcode
			}
			count := int(b[0])
			b = b[1:]
			in.OrSet = make([][32]byte, count)
			for i := 0; i < count; i++ {
				in.OrSet[i], b, err = read32(b)
				if err != nil {
					return nil, err
				}
			}
		case OpDrop, OpDup, OpRevRot, OpAdd, OpSub, OpEqual, OpEqualVerify,
			OpGeZero, OpGtZero, OpLeZero, OpLtZero, OpHashBlake256, OpHashSha256, OpHashSha3,
			OpCompareHeight, OpCompareHeightVerify, OpIfThen, OpElse,
			OpEndIf, OpReturn, OpNop, OpToRistrettoPoint, OpPushZero, OpPushOne:
			// no immediate
		default:
			return nil, fmt.Errorf("%w: opcode %d", ErrMissingOpcode, op)
		}
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, in)
	}
	return instrs, nil
}

func appendInt64(b []byte, v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return append(b, buf[:]...)
}

func readInt64(b []byte) (int64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, ErrInvalidOpcode
	}
	return int64(binary.BigEndian.Uint64(b[:8])), b[8:], nil
}

func read32(b []byte) ([32]byte, []byte, error) {
	var out [32]byte
	if len(b) < 32 {
		return out, nil, ErrInvalidOpcode
	}
	copy(out[:], b[:32])
	return out, b[32:], nil
}

func read33(b []byte) ([33]byte, []byte, error) {
	var out [33]byte
	if len(b) < 33 {
		return out, nil, ErrInvalidOpcode
	}
	copy(out[:], b[:33])
	return out, b[33:], nil
}

func read64(b []byte) ([64]byte, []byte, error) {
	var out [64]byte
	if len(b) < 64 {
		return out, nil, ErrInvalidOpcode
	}
	copy(out[:], b[:64])
	return out, b[64:], nil
}
