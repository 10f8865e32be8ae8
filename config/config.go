// Package config handles node configuration.
//
// Configuration is split into two categories:
//   - Protocol rules: defined in genesis, immutable, must match across all nodes
//   - Node settings: runtime configuration, can vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds node-specific runtime configuration.
// These settings can vary between nodes without breaking consensus.
type Config struct {
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	ChainStore ChainStoreConfig
	Mempool    MempoolConfig
	RPC        RPCConfig
	Mining     MiningConfig
	Log        LogConfig
}

// ChainStoreConfig holds the knobs named in the external-interfaces
// configuration section: pruning, orphan pool capacity, and consensus
// weight/script limits.
type ChainStoreConfig struct {
	PruningHorizon        uint64 `conf:"chainstore.pruning_horizon"`         // blocks; 0 = archival
	PruningInterval       uint64 `conf:"chainstore.pruning_interval"`        // how often to merge
	OrphanStorageCapacity int    `conf:"chainstore.orphan_storage_capacity"` // max orphans retained
	MaxBlockWeight        uint64 `conf:"chainstore.max_block_transaction_weight"`
	MultisigMaxN          int    `conf:"chainstore.multisig_max_n"`
	ScriptMaxBytes        int    `conf:"chainstore.script_max_bytes"`
	ClearOrphansOnStart   bool   `conf:"chainstore.clear_orphans_on_start"`
}

// MempoolConfig holds mempool admission and eviction knobs.
type MempoolConfig struct {
	MinFeePerGram   uint64 `conf:"mempool.unconfirmed_pool.min_fee"`    // microunits
	MaxWeight       uint64 `conf:"mempool.unconfirmed_pool.max_weight"` // = block max weight
	ReorgPoolTTL    int64  `conf:"mempool.reorg_pool.ttl"`              // seconds
}

// RPCConfig describes the bind settings for the (external) service surface.
type RPCConfig struct {
	Enabled bool   `conf:"rpc.enabled"`
	Addr    string `conf:"rpc.addr"`
	Port    int    `conf:"rpc.port"`
}

// MiningConfig holds block-template production settings. Mining itself
// (finding a nonce) is an operational choice, not a consensus rule.
type MiningConfig struct {
	Enabled  bool   `conf:"mining.enabled"`
	Coinbase string `conf:"mining.coinbase"` // hex public key to receive block reward
	Threads  int    `conf:"mining.threads"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet
//	macOS:   ~/Library/Application Support/Klingnet
//	Windows: %APPDATA%\Klingnet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Klingnet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Klingnet")
		}
		return filepath.Join(home, "AppData", "Roaming", "Klingnet")
	default:
		return filepath.Join(home, ".klingnet")
	}
}

// ChainDataDir returns the chain-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// StorageDir returns the directory for the embedded KV store.
func (c *Config) StorageDir() string {
	return filepath.Join(c.ChainDataDir(), "storage")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "klingnet.conf")
}
