package config

import "fmt"

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.ChainStore.MultisigMaxN > 32 {
		return fmt.Errorf("chainstore.multisig_max_n must be <= 32")
	}
	if cfg.ChainStore.ScriptMaxBytes > 4096 {
		return fmt.Errorf("chainstore.script_max_bytes must be <= 4096")
	}
	if cfg.Mining.Threads < 0 {
		return fmt.Errorf("mining.threads must be >= 0")
	}
	return nil
}
