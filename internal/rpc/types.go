package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/tx"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// HashParam is used by endpoints that take a single output hash.
type HashParam struct {
	Hash string `json:"hash"`
}

// HeightParam is used by endpoints that take a block height.
type HeightParam struct {
	Height uint64 `json:"height"`
}

// SubmitTxParam carries a transaction for tx_submit. The transaction's
// own types implement MarshalJSON/UnmarshalJSON as hex, so it decodes
// directly from the request params.
type SubmitTxParam struct {
	Transaction tx.Transaction `json:"transaction"`
}

// ── Result types ────────────────────────────────────────────────────────

// ChainInfoResult is the result of chain_getInfo.
type ChainInfoResult struct {
	Height  uint64 `json:"height"`
	TipHash string `json:"tip_hash"`
}

// BlockResult is the result of chain_getBlockByHeight.
type BlockResult struct {
	Header  block.Header `json:"header"`
	Inputs  int          `json:"input_count"`
	Outputs int          `json:"output_count"`
	Kernels int          `json:"kernel_count"`
}

// NewBlockResult summarizes a block for JSON-RPC responses without
// re-serializing every input/output/kernel.
func NewBlockResult(b *block.Block) *BlockResult {
	return &BlockResult{
		Header:  b.Header,
		Inputs:  len(b.Inputs),
		Outputs: len(b.Outputs),
		Kernels: len(b.Kernels),
	}
}

// UTXOResult is the result of utxo_get.
type UTXOResult struct {
	Height      uint64 `json:"height"`
	IsCoinbase  bool   `json:"is_coinbase"`
	MMRPosition uint64 `json:"mmr_position"`
}

// SubmitTxResult is the result of tx_submit.
type SubmitTxResult struct {
	TxHash string `json:"tx_hash"`
	Result string `json:"result"`
}

// MempoolInfoResult is the result of mempool_getInfo.
type MempoolInfoResult struct {
	UnconfirmedTxs    int    `json:"unconfirmed_txs"`
	ReorgTxs          int    `json:"reorg_txs"`
	UnconfirmedWeight uint64 `json:"unconfirmed_weight"`
}

// parseParams unmarshals the request params into the given target.
func parseParams(req *Request, target interface{}) *Error {
	if req.Params == nil {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}
	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
