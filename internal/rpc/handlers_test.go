package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/klingnet-chain/core/internal/mempool"
	"github.com/klingnet-chain/core/internal/validation"
	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/tx"
	"github.com/klingnet-chain/core/pkg/types"
)

// fakeReader is a minimal in-memory ChainReader for exercising the
// transport without any real chainstore.
type fakeReader struct {
	height  uint64
	tip     block.Header
	blocks  map[uint64]*block.Block
	utxos   map[types.Hash]validation.UTXORecord
}

func (f *fakeReader) TipHeader() (block.Header, error) { return f.tip, nil }
func (f *fakeReader) Height() uint64                   { return f.height }

func (f *fakeReader) FetchHeader(height uint64) (block.Header, error) {
	b, ok := f.blocks[height]
	if !ok {
		return block.Header{}, fmt.Errorf("no header at height %d", height)
	}
	return b.Header, nil
}

func (f *fakeReader) FetchBlock(height uint64) (*block.Block, error) {
	b, ok := f.blocks[height]
	if !ok {
		return nil, fmt.Errorf("no block at height %d", height)
	}
	return b, nil
}

func (f *fakeReader) FetchUTXOByHash(hash types.Hash) (validation.UTXORecord, bool) {
	rec, ok := f.utxos[hash]
	return rec, ok
}

// fakeSubmitter is a minimal in-memory TxSubmitter.
type fakeSubmitter struct {
	insertResult mempool.InsertResult
	insertErr    error
	stats        mempool.Stats
	lastTx       *tx.Transaction
}

func (f *fakeSubmitter) Insert(t *tx.Transaction) (mempool.InsertResult, error) {
	f.lastTx = t
	return f.insertResult, f.insertErr
}

func (f *fakeSubmitter) Stats() mempool.Stats { return f.stats }

func newTestServer(t *testing.T, reader *fakeReader, submitter *fakeSubmitter) (*Server, func()) {
	t.Helper()
	s := New("127.0.0.1:0", reader, submitter)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s, func() { s.Stop() }
}

func call(t *testing.T, addr, method string, params interface{}) Response {
	t.Helper()
	req := Request{JSONRPC: "2.0", Method: method, Params: params, ID: 1}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post("http://"+addr+"/", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rpcResp
}

func TestServer_ChainGetInfo(t *testing.T) {
	reader := &fakeReader{height: 5, tip: block.Header{Height: 5}}
	s, stop := newTestServer(t, reader, &fakeSubmitter{})
	defer stop()

	resp := call(t, s.Addr(), "chain_getInfo", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var result ChainInfoResult
	remarshal(t, resp.Result, &result)
	if result.Height != 5 {
		t.Errorf("height = %d, want 5", result.Height)
	}
	wantHash := reader.tip.Hash().String()
	if result.TipHash != wantHash {
		t.Errorf("tip_hash = %s, want %s", result.TipHash, wantHash)
	}
}

func TestServer_ChainGetBlockByHeight(t *testing.T) {
	blk := block.NewBlock(block.Header{Height: 3}, nil, []tx.Output{{}}, nil)
	reader := &fakeReader{
		height: 3,
		blocks: map[uint64]*block.Block{3: blk},
	}
	s, stop := newTestServer(t, reader, &fakeSubmitter{})
	defer stop()

	resp := call(t, s.Addr(), "chain_getBlockByHeight", HeightParam{Height: 3})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var result BlockResult
	remarshal(t, resp.Result, &result)
	if result.Header.Height != 3 {
		t.Errorf("header.height = %d, want 3", result.Header.Height)
	}
	if result.Outputs != 1 {
		t.Errorf("output_count = %d, want 1", result.Outputs)
	}
}

func TestServer_ChainGetBlockByHeight_NotFound(t *testing.T) {
	reader := &fakeReader{blocks: map[uint64]*block.Block{}}
	s, stop := newTestServer(t, reader, &fakeSubmitter{})
	defer stop()

	resp := call(t, s.Addr(), "chain_getBlockByHeight", HeightParam{Height: 99})
	if resp.Error == nil {
		t.Fatal("expected error for missing block")
	}
	if resp.Error.Code != CodeNotFound {
		t.Errorf("code = %d, want %d", resp.Error.Code, CodeNotFound)
	}
}

func TestServer_UTXOGet(t *testing.T) {
	var hash types.Hash
	hash[0] = 0xAB
	reader := &fakeReader{
		utxos: map[types.Hash]validation.UTXORecord{
			hash: {Height: 7, IsCoinbase: true, MMRPosition: 42},
		},
	}
	s, stop := newTestServer(t, reader, &fakeSubmitter{})
	defer stop()

	resp := call(t, s.Addr(), "utxo_get", HashParam{Hash: hash.String()})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var result UTXOResult
	remarshal(t, resp.Result, &result)
	if result.Height != 7 || !result.IsCoinbase || result.MMRPosition != 42 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestServer_UTXOGet_NotFound(t *testing.T) {
	reader := &fakeReader{utxos: map[types.Hash]validation.UTXORecord{}}
	s, stop := newTestServer(t, reader, &fakeSubmitter{})
	defer stop()

	var hash types.Hash
	resp := call(t, s.Addr(), "utxo_get", HashParam{Hash: hash.String()})
	if resp.Error == nil {
		t.Fatal("expected error for missing utxo")
	}
	if resp.Error.Code != CodeNotFound {
		t.Errorf("code = %d, want %d", resp.Error.Code, CodeNotFound)
	}
}

func TestServer_UTXOGet_InvalidHash(t *testing.T) {
	s, stop := newTestServer(t, &fakeReader{}, &fakeSubmitter{})
	defer stop()

	resp := call(t, s.Addr(), "utxo_get", HashParam{Hash: "not-hex"})
	if resp.Error == nil {
		t.Fatal("expected error for invalid hash")
	}
	if resp.Error.Code != CodeInvalidParams {
		t.Errorf("code = %d, want %d", resp.Error.Code, CodeInvalidParams)
	}
}

func TestServer_TxSubmit_Accepted(t *testing.T) {
	submitter := &fakeSubmitter{insertResult: mempool.UnconfirmedPool}
	s, stop := newTestServer(t, &fakeReader{}, submitter)
	defer stop()

	resp := call(t, s.Addr(), "tx_submit", SubmitTxParam{Transaction: tx.Transaction{}})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var result SubmitTxResult
	remarshal(t, resp.Result, &result)
	if result.Result != "UnconfirmedPool" {
		t.Errorf("result = %s, want UnconfirmedPool", result.Result)
	}
	if submitter.lastTx == nil {
		t.Fatal("submitter never received the transaction")
	}
}

func TestServer_TxSubmit_Rejected(t *testing.T) {
	submitter := &fakeSubmitter{
		insertResult: mempool.NotStoredFeeTooLow,
		insertErr:    errors.New("fee below minimum"),
	}
	s, stop := newTestServer(t, &fakeReader{}, submitter)
	defer stop()

	resp := call(t, s.Addr(), "tx_submit", SubmitTxParam{Transaction: tx.Transaction{}})
	if resp.Error == nil {
		t.Fatal("expected rejection error")
	}
	if resp.Error.Code != CodeInvalidParams {
		t.Errorf("code = %d, want %d", resp.Error.Code, CodeInvalidParams)
	}
}

func TestServer_MempoolGetInfo(t *testing.T) {
	submitter := &fakeSubmitter{
		stats: mempool.Stats{UnconfirmedTxs: 4, ReorgTxs: 1, UnconfirmedWeight: 1000},
	}
	s, stop := newTestServer(t, &fakeReader{}, submitter)
	defer stop()

	resp := call(t, s.Addr(), "mempool_getInfo", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var result MempoolInfoResult
	remarshal(t, resp.Result, &result)
	if result.UnconfirmedTxs != 4 || result.ReorgTxs != 1 || result.UnconfirmedWeight != 1000 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestServer_UnknownMethod(t *testing.T) {
	s, stop := newTestServer(t, &fakeReader{}, &fakeSubmitter{})
	defer stop()

	resp := call(t, s.Addr(), "wallet_listAccounts", nil)
	if resp.Error == nil {
		t.Fatal("expected method-not-found error")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}

// remarshal round-trips a decoded interface{} result into a typed struct,
// since Response.Result decodes as map[string]interface{} over the wire.
func remarshal(t *testing.T, src interface{}, dst interface{}) {
	t.Helper()
	data, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("remarshal: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("remarshal unmarshal: %v", err)
	}
}
