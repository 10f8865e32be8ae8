package script

import (
	"crypto/sha256"
	"fmt"

	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/types"
	"golang.org/x/crypto/sha3"
)

// blakeHashLabel domain-separates the in-script BLAKE hash opcode from
// every other hash family in the system (kernel excess challenges, MMR
// node hashes, and so on).
const blakeHashLabel = "klingnet.script.hash_blake256"

// Context carries the chain state a script may need to inspect: the
// height the input is being spent at, the hash of the block it spends
// against, and (for scripts that chain across a UTXO's lifetime) the
// commitment of the kernel that created the previous output.
type Context struct {
	BlockHeight         uint64
	PrevBlockHash       types.Hash
	PrevKernelCommitment types.Commitment
}

// stack is a bounded LIFO of StackItem.
type stack struct {
	items []StackItem
}

func (s *stack) push(it StackItem) error {
	if len(s.items) >= MaxStackSize {
		return ErrStackOverflow
	}
	s.items = append(s.items, it)
	return nil
}

func (s *stack) pop() (StackItem, error) {
	if len(s.items) == 0 {
		return StackItem{}, ErrStackUnderflow
	}
	it := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return it, nil
}

func (s *stack) peek() (StackItem, error) {
	if len(s.items) == 0 {
		return StackItem{}, ErrStackUnderflow
	}
	return s.items[len(s.items)-1], nil
}

// popNumber pops an item and requires it to be a Number.
func (s *stack) popNumber() (int64, error) {
	it, err := s.pop()
	if err != nil {
		return 0, err
	}
	if it.Kind != KindNumber {
		return 0, fmt.Errorf("%w: expected Number, got %s", ErrIncompatibleTypes, it.Kind)
	}
	return it.Number, nil
}

// condFrame is one level of If/Else/EndIf nesting. active reports
// whether the currently-selected branch (then, until Else flips it to
// else) should run, given that every enclosing frame is itself active;
// sawElse rejects a second Else for the same IfThen.
type condFrame struct {
	active  bool
	sawElse bool
}

// Execute runs a parsed instruction list against an initial input stack
// (the spending input's own stack items, pushed before the locking
// script runs) and returns the single item left on the stack, or an
// error describing why execution failed. A script that does not end
// with exactly one stack item is invalid even if no opcode failed.
//
// Ifs nest to any depth: condStack holds one frame per currently-open
// IfThen. An IfThen encountered while an enclosing frame is not
// executing never pops a condition, since the push that would have put
// one there was itself skipped.
func Execute(instrs []Instruction, initial []StackItem, ctx Context) (StackItem, error) {
	st := &stack{items: append([]StackItem{}, initial...)}

	var condStack []condFrame
	executing := func() bool {
		for _, f := range condStack {
			if !f.active {
				return false
			}
		}
		return true
	}

	for _, in := range instrs {
		switch in.Op {
		case OpIfThen:
			if executing() {
				cond, err := st.popNumber()
				if err != nil {
					return StackItem{}, err
				}
				if cond != 0 && cond != 1 {
					return StackItem{}, fmt.Errorf("%w: IfThen condition must be 0 or 1, got %d", ErrInvalidInput, cond)
				}
				condStack = append(condStack, condFrame{active: cond == 1})
			} else {
				condStack = append(condStack, condFrame{active: false})
			}
			continue
		case OpElse:
			if len(condStack) == 0 {
				return StackItem{}, fmt.Errorf("%w: Else with no matching IfThen", ErrMissingOpcode)
			}
			top := &condStack[len(condStack)-1]
			if top.sawElse {
				return StackItem{}, fmt.Errorf("%w: IfThen already has an Else", ErrMissingOpcode)
			}
			top.sawElse = true
			top.active = !top.active
			continue
		case OpEndIf:
			if len(condStack) == 0 {
				return StackItem{}, fmt.Errorf("%w: EndIf with no matching IfThen", ErrMissingOpcode)
			}
			if !condStack[len(condStack)-1].sawElse {
				return StackItem{}, fmt.Errorf("%w: IfThen with no Else before EndIf", ErrMissingOpcode)
			}
			condStack = condStack[:len(condStack)-1]
			continue
		}

		if !executing() {
			continue
		}

		if err := step(st, in, ctx); err != nil {
			return StackItem{}, err
		}
	}

	if len(condStack) != 0 {
		return StackItem{}, fmt.Errorf("%w: IfThen with no matching EndIf", ErrMissingOpcode)
	}

	if len(st.items) != 1 {
		return StackItem{}, ErrNonUnitStack
	}
	return st.items[0], nil
}

func step(st *stack, in Instruction, ctx Context) error {
	switch in.Op {
	case OpPushZero:
		return st.push(NumberItem(0))
	case OpPushOne:
		return st.push(NumberItem(1))
	case OpPushInt:
		return st.push(NumberItem(in.Int))
	case OpPushHash:
		return st.push(HashItem(types.Hash(in.Hash)))
	case OpPushScalar:
		return st.push(ScalarItem(types.Scalar(in.Scalar)))
	case OpPushCommitment:
		return st.push(CommitmentItem(types.Commitment(in.Point)))
	case OpPushPubKey:
		return st.push(PublicKeyItem(types.PublicKey(in.Point)))
	case OpPushSignature:
		return st.push(SignatureItem(types.Signature(in.Sig)))

	case OpDrop:
		_, err := st.pop()
		return err

	case OpDup:
		top, err := st.peek()
		if err != nil {
			return err
		}
		return st.push(top)

	case OpRevRot:
		if len(st.items) < 3 {
			return ErrStackUnderflow
		}
		n := len(st.items)
		st.items[n-1], st.items[n-2], st.items[n-3] = st.items[n-3], st.items[n-1], st.items[n-2]
		return nil

	case OpAdd:
		b, err := st.popNumber()
		if err != nil {
			return err
		}
		a, err := st.popNumber()
		if err != nil {
			return err
		}
		return st.push(NumberItem(a + b))

	case OpSub:
		b, err := st.popNumber()
		if err != nil {
			return err
		}
		a, err := st.popNumber()
		if err != nil {
			return err
		}
		return st.push(NumberItem(a - b))

	case OpEqual, OpEqualVerify:
		b, err := st.pop()
		if err != nil {
			return err
		}
		a, err := st.pop()
		if err != nil {
			return err
		}
		eq := a.Equal(b)
		if in.Op == OpEqualVerify {
			if !eq {
				return ErrVerifyFailed
			}
			return nil
		}
		if eq {
			return st.push(NumberItem(1))
		}
		return st.push(NumberItem(0))

	case OpGeZero, OpGtZero, OpLeZero, OpLtZero:
		n, err := st.popNumber()
		if err != nil {
			return err
		}
		var ok bool
		switch in.Op {
		case OpGeZero:
			ok = n >= 0
		case OpGtZero:
			ok = n > 0
		case OpLeZero:
			ok = n <= 0
		case OpLtZero:
			ok = n < 0
		}
		if ok {
			return st.push(NumberItem(1))
		}
		return st.push(NumberItem(0))

	case OpOr, OpOrVerify:
		top, err := st.pop()
		if err != nil {
			return err
		}
		if top.Kind != KindHash {
			return fmt.Errorf("%w: OR expects Hash, got %s", ErrIncompatibleTypes, top.Kind)
		}
		found := false
		for _, h := range in.OrSet {
			if top.Hash == types.Hash(h) {
				found = true
				break
			}
		}
		if in.Op == OpOrVerify {
			if !found {
				return ErrVerifyFailed
			}
			return nil
		}
		if found {
			return st.push(NumberItem(1))
		}
		return st.push(NumberItem(0))

	case OpHashBlake256:
		top, err := st.pop()
		if err != nil {
			return err
		}
		digest := crypto.Hash(blakeHashLabel, hashableBytes(top))
		return st.push(HashItem(digest))

	case OpHashSha256:
		top, err := st.pop()
		if err != nil {
			return err
		}
		sum := sha256.Sum256(hashableBytes(top))
		return st.push(HashItem(types.Hash(sum)))

	case OpHashSha3:
		top, err := st.pop()
		if err != nil {
			return err
		}
		sum := sha3.Sum256(hashableBytes(top))
		return st.push(HashItem(types.Hash(sum)))

	case OpCheckHeight, OpCheckHeightVerify:
		ok := ctx.BlockHeight >= uint64(in.Int)
		if in.Op == OpCheckHeightVerify {
			if !ok {
				return ErrVerifyFailed
			}
			return nil
		}
		if ok {
			return st.push(NumberItem(1))
		}
		return st.push(NumberItem(0))

	case OpCompareHeight, OpCompareHeightVerify:
		h, err := st.popNumber()
		if err != nil {
			return err
		}
		ok := ctx.BlockHeight >= uint64(h)
		if in.Op == OpCompareHeightVerify {
			if !ok {
				return ErrVerifyFailed
			}
			return nil
		}
		if ok {
			return st.push(NumberItem(1))
		}
		return st.push(NumberItem(0))

	case OpCheckSig, OpCheckSigVerify:
		sigItem, err := st.pop()
		if err != nil {
			return err
		}
		pkItem, err := st.pop()
		if err != nil {
			return err
		}
		if sigItem.Kind != KindSignature || pkItem.Kind != KindPublicKey {
			return fmt.Errorf("%w: CheckSig expects (PublicKey, Signature)", ErrIncompatibleTypes)
		}
		ok, err := crypto.Verify(pkItem.PublicKey, in.Hash[:], sigItem.Signature)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if in.Op == OpCheckSigVerify {
			if !ok {
				return ErrVerifyFailed
			}
			return nil
		}
		if ok {
			return st.push(NumberItem(1))
		}
		return st.push(NumberItem(0))

	case OpCheckMultiSig, OpCheckMultiSigVerify:
		if in.N < 1 || in.N > MaxMultisigN || in.M < 1 || in.M > in.N {
			return fmt.Errorf("%w: multisig m=%d n=%d", ErrValueExceedsBounds, in.M, in.N)
		}
		sigs := make([]types.Signature, in.M)
		for i := int(in.M) - 1; i >= 0; i-- {
			it, err := st.pop()
			if err != nil {
				return err
			}
			if it.Kind != KindSignature {
				return fmt.Errorf("%w: CheckMultiSig expects Signature", ErrIncompatibleTypes)
			}
			sigs[i] = it.Signature
		}
		ok := verifyMultiSigStrictOrder(in.Keys, sigs, in.Hash[:])
		if in.Op == OpCheckMultiSigVerify {
			if !ok {
				return ErrVerifyFailed
			}
			return nil
		}
		if ok {
			return st.push(NumberItem(1))
		}
		return st.push(NumberItem(0))

	case OpCheckMultiSigAggregatePubKey:
		keys := make([]types.PublicKey, len(in.Keys))
		for i, k := range in.Keys {
			keys[i] = types.PublicKey(k)
		}
		agg, err := crypto.AddPublicKeys(keys...)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return st.push(PublicKeyItem(agg))

	case OpToRistrettoPoint:
		top, err := st.pop()
		if err != nil {
			return err
		}
		if top.Kind != KindScalar {
			return fmt.Errorf("%w: ToRistrettoPoint expects Scalar, got %s", ErrIncompatibleTypes, top.Kind)
		}
		pk, err := crypto.PublicKeyFromScalar(top.Scalar)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return st.push(PublicKeyItem(pk))

	case OpReturn:
		return ErrReturn

	case OpNop:
		return nil

	default:
		return fmt.Errorf("%w: opcode %d", ErrMissingOpcode, in.Op)
	}
}

// verifyMultiSigStrictOrder checks m-of-n where each signature must
// verify against the key at the same position in the candidate list it
// was matched to, and matches are consumed in script order: the first
// signature must match the earliest possible key, the second signature
// must match a later key than the first match, and so on. This is
// stricter than "any m of n keys verify any m signatures" and rules out
// a class of signature-reordering malleability.
func verifyMultiSigStrictOrder(keys [][33]byte, sigs []types.Signature, msg []byte) bool {
	keyPos := 0
	matched := 0
	for _, sig := range sigs {
		found := false
		for keyPos < len(keys) {
			pk := types.PublicKey(keys[keyPos])
			keyPos++
			ok, err := crypto.Verify(pk, msg, sig)
			if err == nil && ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
		matched++
	}
	return matched == len(sigs)
}

// hashableBytes returns the canonical byte representation of a stack
// item for the in-script hash opcodes.
func hashableBytes(it StackItem) []byte {
	switch it.Kind {
	case KindNumber:
		b := make([]byte, 8)
		v := uint64(it.Number)
		for i := 7; i >= 0; i-- {
			b[i] = byte(v)
			v >>= 8
		}
		return b
	case KindHash:
		return it.Hash[:]
	case KindScalar:
		return it.Scalar[:]
	case KindCommitment:
		return it.Commitment[:]
	case KindPublicKey:
		return it.PublicKey[:]
	case KindSignature:
		return it.Signature[:]
	default:
		return nil
	}
}
