package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a node config value by key. Only node-operational
// settings, never protocol rules (those live in genesis).
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	case "chainstore.pruning_horizon":
		return setUint64(&cfg.ChainStore.PruningHorizon, value)
	case "chainstore.pruning_interval":
		return setUint64(&cfg.ChainStore.PruningInterval, value)
	case "chainstore.orphan_storage_capacity":
		return setInt(&cfg.ChainStore.OrphanStorageCapacity, value)
	case "chainstore.max_block_transaction_weight":
		return setUint64(&cfg.ChainStore.MaxBlockWeight, value)
	case "chainstore.multisig_max_n":
		return setInt(&cfg.ChainStore.MultisigMaxN, value)
	case "chainstore.script_max_bytes":
		return setInt(&cfg.ChainStore.ScriptMaxBytes, value)
	case "chainstore.clear_orphans_on_start":
		cfg.ChainStore.ClearOrphansOnStart = parseBool(value)

	case "mempool.unconfirmed_pool.min_fee":
		return setUint64(&cfg.Mempool.MinFeePerGram, value)
	case "mempool.unconfirmed_pool.max_weight":
		return setUint64(&cfg.Mempool.MaxWeight, value)
	case "mempool.reorg_pool.ttl":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Mempool.ReorgPoolTTL = n

	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		return setInt(&cfg.RPC.Port, value)

	case "mining.enabled", "mine":
		cfg.Mining.Enabled = parseBool(value)
	case "mining.coinbase", "coinbase":
		cfg.Mining.Coinbase = value
	case "mining.threads":
		return setInt(&cfg.Mining.Threads, value)

	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored.
	}
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setUint64(dst *uint64, value string) error {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default node configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# Klingnet chain node configuration
#
# This file contains NODE settings only. Protocol rules (consensus
# constants, block reward) are hardcoded in the genesis configuration
# and cannot be changed without a hard fork.

network = ` + string(network) + `

# datadir = ~/.klingnet

# ============================================================================
# Chain storage
# ============================================================================

# chainstore.pruning_horizon = 0
# chainstore.pruning_interval = 100
# chainstore.orphan_storage_capacity = 1000
# chainstore.clear_orphans_on_start = false

# ============================================================================
# Mempool
# ============================================================================

# mempool.unconfirmed_pool.min_fee = 1
# mempool.reorg_pool.ttl = 300

# ============================================================================
# RPC (service surface; transport is external)
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = ` + defaultRPCPort(network) + `

# ============================================================================
# Mining / block template production
# ============================================================================

mining.enabled = false
# mining.coinbase = <hex public key>
# mining.threads = 1

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}

func defaultRPCPort(network NetworkType) string {
	if network == Testnet {
		return "18242"
	}
	return "18142"
}
