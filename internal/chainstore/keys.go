package chainstore

import (
	"encoding/binary"

	"github.com/klingnet-chain/core/pkg/types"
)

// Key prefixes for the chain storage engine's logical tables, following
// the teacher's short-ASCII-prefix convention for its block store.
var (
	prefixHeader     = []byte("hd/") // hd/<hash(32)> -> header JSON
	prefixBlock      = []byte("bk/") // bk/<hash(32)> -> block JSON
	prefixHeight     = []byte("ht/") // ht/<height(8)> -> heightRecord JSON {hash, work}
	prefixUTXO       = []byte("ux/") // ux/<outputHash(32)> -> utxoRecord JSON
	prefixSTXO       = []byte("sx/") // sx/<outputHash(32)> -> utxoRecord JSON
	prefixKernel     = []byte("kn/") // kn/<kernelHash(32)> -> kernel JSON
	prefixKernelSig  = []byte("ke/") // ke/<excessSig(64)> -> blockHash(32)
	prefixOrphan     = []byte("or/") // or/<hash(32)> -> block JSON
	prefixOrphanTip  = []byte("ot/") // ot/<hash(32)> -> 1
	prefixUniqueID   = []byte("ui/") // ui/<parentPubKey(33)><uniqueID> -> outputHash(32)
	prefixUndo       = []byte("du/") // du/<hash(32)> -> undo JSON
	prefixOutputPos  = []byte("op/") // op/<position(8)> -> outputHash(32), for pruning STXO discard

	keyMeta       = []byte("s/meta")
	keyOutputMMR  = []byte("s/mmr/output")
	keyKernelMMR  = []byte("s/mmr/kernel")
	keyRPMMR      = []byte("s/mmr/rangeproof")
)

func headerKey(h types.Hash) []byte  { return append(append([]byte{}, prefixHeader...), h[:]...) }
func blockKey(h types.Hash) []byte   { return append(append([]byte{}, prefixBlock...), h[:]...) }
func undoKey(h types.Hash) []byte    { return append(append([]byte{}, prefixUndo...), h[:]...) }
func orphanKey(h types.Hash) []byte  { return append(append([]byte{}, prefixOrphan...), h[:]...) }
func orphanTipKey(h types.Hash) []byte {
	return append(append([]byte{}, prefixOrphanTip...), h[:]...)
}
func utxoKey(h types.Hash) []byte   { return append(append([]byte{}, prefixUTXO...), h[:]...) }
func stxoKey(h types.Hash) []byte   { return append(append([]byte{}, prefixSTXO...), h[:]...) }
func kernelKey(h types.Hash) []byte { return append(append([]byte{}, prefixKernel...), h[:]...) }

func kernelSigKey(sig types.Signature) []byte {
	return append(append([]byte{}, prefixKernelSig...), sig[:]...)
}

func heightKey(height uint64) []byte {
	k := make([]byte, len(prefixHeight)+8)
	copy(k, prefixHeight)
	binary.BigEndian.PutUint64(k[len(prefixHeight):], height)
	return k
}

func outputPositionKey(position uint64) []byte {
	k := make([]byte, len(prefixOutputPos)+8)
	copy(k, prefixOutputPos)
	binary.BigEndian.PutUint64(k[len(prefixOutputPos):], position)
	return k
}

func uniqueIDKey(parentPubKey types.PublicKey, uniqueID []byte) []byte {
	k := make([]byte, len(prefixUniqueID)+len(parentPubKey)+len(uniqueID))
	n := copy(k, prefixUniqueID)
	n += copy(k[n:], parentPubKey[:])
	copy(k[n:], uniqueID)
	return k
}
