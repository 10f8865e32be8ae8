package storage

import "github.com/dgraph-io/badger/v4"

// Batch accumulates writes to be applied atomically. The chain storage
// engine uses this to make a block's header, UTXO-set, kernel-set and
// MMR-checkpoint writes all land together or not at all: a crash
// mid-write must never leave the store believing a block half-applied.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by a DB that can produce an atomic Batch.
type Batcher interface {
	NewBatch() Batch
}

// NewBatch returns a Badger-transaction-backed batch. Badger transactions
// are already atomic and bounded in size by its own configuration, so
// this is a thin adapter rather than a buffering layer.
func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{txn: b.db.NewTransaction(true)}
}

type badgerBatch struct {
	txn *badger.Txn
}

func (bb *badgerBatch) Put(key, value []byte) error {
	return bb.txn.Set(key, value)
}

func (bb *badgerBatch) Delete(key []byte) error {
	return bb.txn.Delete(key)
}

func (bb *badgerBatch) Commit() error {
	return bb.txn.Commit()
}

// NewBatch returns an in-memory batch that buffers writes and applies
// them to the map only on Commit, so a caller that checks an error
// mid-batch and abandons it never partially mutates the map.
func (m *MemoryDB) NewBatch() Batch {
	return &memoryBatch{db: m}
}

type memoryOp struct {
	key    []byte
	value  []byte
	delete bool
}

type memoryBatch struct {
	db  *MemoryDB
	ops []memoryOp
}

func (mb *memoryBatch) Put(key, value []byte) error {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	mb.ops = append(mb.ops, memoryOp{key: k, value: v})
	return nil
}

func (mb *memoryBatch) Delete(key []byte) error {
	k := append([]byte(nil), key...)
	mb.ops = append(mb.ops, memoryOp{key: k, delete: true})
	return nil
}

func (mb *memoryBatch) Commit() error {
	for _, op := range mb.ops {
		if op.delete {
			delete(mb.db.data, string(op.key))
			continue
		}
		mb.db.data[string(op.key)] = op.value
	}
	return nil
}
