package config

// DefaultMainnet returns the default node configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		ChainStore: ChainStoreConfig{
			PruningHorizon:        0, // archival
			PruningInterval:       100,
			OrphanStorageCapacity: 1000,
			MaxBlockWeight:        19_500,
			MultisigMaxN:          32,
			ScriptMaxBytes:        4096,
		},
		Mempool: MempoolConfig{
			MinFeePerGram: 1,
			MaxWeight:     19_500,
			ReorgPoolTTL:  300,
		},
		RPC: RPCConfig{
			Enabled: true,
			Addr:    "127.0.0.1",
			Port:    18142,
		},
		Mining: MiningConfig{
			Enabled: false,
			Threads: 1,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default node configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.RPC.Port = 18242
	cfg.ChainStore.PruningHorizon = 2880 // prune after ~4 days at 2 min blocks
	return cfg
}

// Default returns the default node configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
