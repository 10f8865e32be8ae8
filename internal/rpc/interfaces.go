// Package rpc exposes chain state and mempool submission over JSON-RPC
// 2.0. The engine's only contribution is the typed handler surface below
// (ChainReader, TxSubmitter); Server is a thin HTTP transport adapter
// wired to them and is not the place for new query surface.
package rpc

import (
	"github.com/klingnet-chain/core/internal/mempool"
	"github.com/klingnet-chain/core/internal/validation"
	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// ChainReader is the read-only query surface a JSON-RPC (or any other
// transport) adapter needs over chain state. internal/chainstore.ChainStore
// implements it directly.
type ChainReader interface {
	TipHeader() (block.Header, error)
	Height() uint64
	FetchHeader(height uint64) (block.Header, error)
	FetchBlock(height uint64) (*block.Block, error)
	FetchUTXOByHash(hash types.Hash) (validation.UTXORecord, bool)
}

// TxSubmitter accepts a transaction into the mempool. internal/mempool.Pool
// implements it directly.
type TxSubmitter interface {
	Insert(t *tx.Transaction) (mempool.InsertResult, error)
	Stats() mempool.Stats
}
