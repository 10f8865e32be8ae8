// Package node wires storage, the chain storage engine, the mempool
// and the RPC transport into one process, the way a daemon or an
// embedding wallet would run them.
package node

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/klingnet-chain/core/config"
	"github.com/klingnet-chain/core/internal/chainstore"
	klog "github.com/klingnet-chain/core/internal/log"
	"github.com/klingnet-chain/core/internal/mempool"
	"github.com/klingnet-chain/core/internal/rpc"
	"github.com/klingnet-chain/core/internal/storage"
	"github.com/klingnet-chain/core/internal/validation"
	"github.com/rs/zerolog"
)

// Node owns the storage handle, the chain storage engine, the mempool
// and (when enabled) the RPC server for one running chain.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	db    storage.DB
	store *chainstore.ChainStore
	pool  *mempool.Pool

	rpcServer *rpc.Server
}

// New opens storage, initializes the chain storage engine (applying
// genesis on a fresh database), and wires up the mempool. It does not
// start the RPC listener; call Start for that.
func New(cfg *config.Config) (*Node, error) {
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = logsDir + "/klingnet.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	genesis := config.GenesisFor(cfg.Network)
	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(cfg.Network)).
		Str("algorithm", genesis.Protocol.Consensus.Algorithm).
		Msg("starting klingnet node")

	if err := os.MkdirAll(cfg.StorageDir(), 0755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	db, err := storage.NewBadger(cfg.StorageDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.StorageDir(), err)
	}
	logger.Info().Str("path", cfg.StorageDir()).Msg("database opened")

	// The chain storage engine gets its own namespace within the
	// physical database, reserving the rest of the keyspace for
	// anything else this process ends up persisting alongside it (a
	// wallet index, peer address book) without risking a key collision
	// against chainstore's own hd/bk/ht/... prefixes.
	chainDB := storage.NewPrefixDB(db, []byte("chain/"))

	internal := validation.NewInternalConsistency(cfg.ChainStore.MaxBlockWeight, validation.AcceptAllRangeProofs{})

	storeCfg := chainstore.Config{
		PruningHorizon:        int(cfg.ChainStore.PruningHorizon),
		OrphanStorageCapacity: cfg.ChainStore.OrphanStorageCapacity,
		ReorgWindow:           cfg.ChainStore.PruningHorizon,
		MaxBlockWeight:        cfg.ChainStore.MaxBlockWeight,
	}
	store, err := chainstore.New(chainDB, storeCfg, internal)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open chain storage: %w", err)
	}

	switch err := initGenesis(store, genesis); {
	case err == nil:
		logger.Info().Msg("chain initialized from genesis")
	case errors.Is(err, chainstore.ErrGenesisAlreadySet):
		logger.Info().Uint64("height", store.Height()).Msg("chain resumed from database")
	default:
		db.Close()
		return nil, fmt.Errorf("init genesis: %w", err)
	}

	poolCfg := mempool.Config{
		MaxBlockWeight: cfg.ChainStore.MaxBlockWeight,
		MinFeePerGram:  genesis.Protocol.Consensus.MinFeePerGram,
	}
	if cfg.Mempool.ReorgPoolTTL > 0 {
		poolCfg.ReorgPoolTTL = time.Duration(cfg.Mempool.ReorgPoolTTL) * time.Second
	}
	pool := mempool.New(store, internal, poolCfg)

	n := &Node{
		cfg:     cfg,
		genesis: genesis,
		logger:  logger,
		db:      db,
		store:   store,
		pool:    pool,
	}

	if cfg.RPC.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		n.rpcServer = rpc.New(addr, store, pool)
	}

	return n, nil
}

// initGenesis derives the genesis block from g, fills in its MMR
// roots via the store's own root calculation, and applies it as the
// chain's first block. A fresh ChainStore always starts at a genesis
// state (Height() == 0, no best block), so this only runs once per
// database.
func initGenesis(store *chainstore.ChainStore, g *config.Genesis) error {
	blk, err := g.Block()
	if err != nil {
		return fmt.Errorf("build genesis block: %w", err)
	}

	outRoot, kernelRoot, rpRoot, err := store.CalculateMMRRoots(nil, blk.Outputs, blk.Kernels)
	if err != nil {
		return fmt.Errorf("compute genesis mmr roots: %w", err)
	}
	blk.Header.OutputMMRRoot = outRoot
	blk.Header.KernelMMRRoot = kernelRoot
	blk.Header.RangeProofMMRRoot = rpRoot
	blk.Header.OutputMMRSize = uint64(len(blk.Outputs))
	blk.Header.KernelMMRSize = uint64(len(blk.Kernels))
	blk.Header.RangeProofMMRSize = uint64(len(blk.Outputs))

	return store.ApplyGenesis(blk)
}

// Start begins serving RPC requests, if enabled. The chain storage
// engine and mempool need no background goroutines of their own: all
// of their work happens synchronously inside AddBlock/Insert calls
// driven by whatever submits blocks and transactions to this node.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return fmt.Errorf("start rpc server: %w", err)
		}
		n.logger.Info().Str("addr", n.rpcServer.Addr()).Msg("rpc server listening")
	}
	n.logger.Info().Uint64("height", n.store.Height()).Msg("node started")
	return nil
}

// Stop shuts down the RPC listener and closes the database.
func (n *Node) Stop() {
	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("rpc server shutdown")
		}
	}
	if n.db != nil {
		n.db.Close()
	}
	n.logger.Info().Msg("node stopped")
}

// RPCAddr returns the RPC listener's bound address, or "" if RPC is
// disabled or not yet started.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Height returns the current chain tip height.
func (n *Node) Height() uint64 {
	return n.store.Height()
}

// ChainStore exposes the underlying chain storage engine, e.g. for a
// caller that wants to submit mined blocks directly.
func (n *Node) ChainStore() *chainstore.ChainStore {
	return n.store
}

// Mempool exposes the underlying transaction pool.
func (n *Node) Mempool() *mempool.Pool {
	return n.pool
}
