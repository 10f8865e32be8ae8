package rpc

import (
	"fmt"

	"github.com/klingnet-chain/core/pkg/types"
)

// ── Chain endpoints ─────────────────────────────────────────────────────

func (s *Server) handleChainGetInfo(req *Request) (interface{}, *Error) {
	tip, err := s.reader.TipHeader()
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("tip header: %v", err)}
	}
	return &ChainInfoResult{
		Height:  s.reader.Height(),
		TipHash: tip.Hash().String(),
	}, nil
}

func (s *Server) handleChainGetBlockByHeight(req *Request) (interface{}, *Error) {
	var params HeightParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	blk, err := s.reader.FetchBlock(params.Height)
	if err != nil {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("block not found at height %d: %v", params.Height, err)}
	}
	return NewBlockResult(blk), nil
}

// ── UTXO endpoints ──────────────────────────────────────────────────────

func (s *Server) handleUTXOGet(req *Request) (interface{}, *Error) {
	var params HashParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Hash == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "hash is required"}
	}

	hash, hexErr := types.HexToHash(params.Hash)
	if hexErr != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "invalid hash: must be 32-byte hex"}
	}

	rec, ok := s.reader.FetchUTXOByHash(hash)
	if !ok {
		return nil, &Error{Code: CodeNotFound, Message: "utxo not found"}
	}
	return &UTXOResult{
		Height:      rec.Height,
		IsCoinbase:  rec.IsCoinbase,
		MMRPosition: rec.MMRPosition,
	}, nil
}

// ── Transaction endpoints ───────────────────────────────────────────────

func (s *Server) handleTxSubmit(req *Request) (interface{}, *Error) {
	var params SubmitTxParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	result, err := s.submitter.Insert(&params.Transaction)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("rejected: %v", err)}
	}

	return &SubmitTxResult{
		TxHash: params.Transaction.Hash().String(),
		Result: result.String(),
	}, nil
}

// ── Mempool endpoints ───────────────────────────────────────────────────

func (s *Server) handleMempoolGetInfo(req *Request) (interface{}, *Error) {
	stats := s.submitter.Stats()
	return &MempoolInfoResult{
		UnconfirmedTxs:    stats.UnconfirmedTxs,
		ReorgTxs:          stats.ReorgTxs,
		UnconfirmedWeight: stats.UnconfirmedWeight,
	}, nil
}
