package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/klingnet-chain/core/pkg/crypto"
	"github.com/klingnet-chain/core/pkg/types"
)

// =============================================================================
// Protocol Rules (immutable, defined in genesis)
// These MUST match across all nodes or consensus breaks.
// =============================================================================

// Denomination constants.
// 1 coin = 10^12 base units. All on-chain values are in base units.
const (
	Decimals  = 12
	Coin      = 1_000_000_000_000 // 10^12 base units per coin
	MilliCoin = 1_000_000_000     // 10^9
	MicroCoin = 1_000_000         // 10^6
)

// Genesis holds the genesis block configuration and protocol rules.
// This is immutable after chain launch - changes require a hard fork.
type Genesis struct {
	// Chain identity
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Symbol    string `json:"symbol,omitempty"` // Native coin symbol (e.g., "KGX")

	// Genesis block
	Timestamp uint64 `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// Alloc is the genesis pre-mine: each key is the hex-encoded spend
	// public key of a coinbase-shaped output created at chain start,
	// mapped to its value in base units. There is no address or account
	// concept here - ownership of a genesis output is exactly knowledge
	// of the private scalar behind its spend public key, same as any
	// other output on the chain.
	Alloc map[string]uint64 `json:"alloc"`

	// Protocol rules
	Protocol ProtocolConfig `json:"protocol"`
}

// ForkSchedule defines block heights at which protocol upgrades activate.
// A zero value means the fork is not scheduled.
type ForkSchedule struct {
	// Future forks are added here as fields. Example:
	// ScriptEngineHeight uint64 `json:"script_engine_height,omitempty"`
}

// IsActive returns true if a fork at forkHeight has activated at currentHeight.
// Returns false if forkHeight is 0 (not scheduled).
func (f *ForkSchedule) IsActive(forkHeight, currentHeight uint64) bool {
	return forkHeight > 0 && currentHeight >= forkHeight
}

// ProtocolConfig holds consensus-critical rules.
// All nodes MUST agree on these values.
type ProtocolConfig struct {
	Consensus ConsensusRules `json:"consensus"`
	Forks     ForkSchedule   `json:"forks,omitempty"`
}

// ConsensusRules defines proof-of-work block production and the coinbase
// reward schedule. There is a single consensus algorithm on this chain;
// Algorithm names the hash function internal/consensus.PoW seals headers
// with, matching block.PowSummary.Algorithm.
type ConsensusRules struct {
	// Block timing
	TargetBlockTime int `json:"target_block_time"` // Target seconds between blocks

	// PoW settings
	Algorithm         string `json:"algorithm"` // e.g. "blake3-256"
	InitialDifficulty uint64 `json:"initial_difficulty"`
	DifficultyAdjust  int    `json:"difficulty_adjust"` // Blocks between adjustments

	// Economics
	BlockReward     uint64 `json:"block_reward"`               // Base units per block
	MaxSupply       uint64 `json:"max_supply"`                 // Total coin cap in base units (0 = unlimited)
	HalvingInterval uint64 `json:"halving_interval,omitempty"` // Blocks between reward halvings (0 = no halving)
	MinFeePerGram   uint64 `json:"min_fee_per_gram"`           // Minimum fee rate, base units per weight gram
}

// =============================================================================
// Testnet Identity
//
// Derived from the well-known BIP-39 test mnemonic (DO NOT use on mainnet):
//
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon art
//
// Seeded the same way pkg/keymanager seeds a wallet; the spend public key
// at branch "spend", index 0 is the well-known owner of the testnet
// pre-mine below.
// =============================================================================

const (
	// TestnetMnemonic is the well-known seed phrase for the testnet pre-mine.
	TestnetMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

	// TestnetGenesisSpendPubKey is the hex-encoded compressed public key
	// at branch "spend", index 0 under TestnetMnemonic.
	TestnetGenesisSpendPubKey = "030bef68f8657df88098a0546da1712c88b459788bea1a6bbe964004166a25144f"
)

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:   "klingnet-mainnet-1",
		ChainName: "Klingnet Mainnet",
		Symbol:    "KGX",
		Timestamp: 1770734103, // 2026-02-10
		ExtraData: "Klingnet Genesis",
		Alloc: map[string]uint64{
			// Genesis allocation for the prior ERC-20 KGX swap.
			"03cba4d0ee4c55f5ea620393a6e6e9dafe959bfa6ddff964221126a3e41ad0487d": 100_000 * Coin,
		},
		Protocol: ProtocolConfig{
			Consensus: ConsensusRules{
				TargetBlockTime:   120, // 2 minute blocks
				Algorithm:         "blake3-256",
				InitialDifficulty: 1_000_000,
				DifficultyAdjust:  60, // retarget every 60 blocks
				BlockReward:       20 * Coin,
				MaxSupply:         21_000_000 * Coin,
				HalvingInterval:   210_000,
				MinFeePerGram:     1, // 1 base unit per weight gram
			},
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "klingnet-testnet-1"
	g.ChainName = "Klingnet Testnet"
	g.ExtraData = "Klingnet Testnet Genesis"

	// More relaxed rules for testnet.
	g.Protocol.Consensus.InitialDifficulty = 1_000 // cheap to mine locally
	g.Protocol.Consensus.MinFeePerGram = 0          // fees optional for testing

	// Testnet allocation: 200,000 KGX to the well-known testnet key.
	g.Alloc = map[string]uint64{
		TestnetGenesisSpendPubKey: 200_000 * Coin,
	}

	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}

	if g.Protocol.Consensus.TargetBlockTime <= 0 {
		return fmt.Errorf("target_block_time must be positive")
	}
	if g.Protocol.Consensus.Algorithm == "" {
		return fmt.Errorf("consensus algorithm is required")
	}
	if g.Protocol.Consensus.InitialDifficulty == 0 {
		return fmt.Errorf("initial_difficulty must be positive")
	}
	if g.Protocol.Consensus.BlockReward == 0 {
		return fmt.Errorf("block_reward must be positive")
	}

	// Validate alloc public keys and check total doesn't exceed max supply.
	var totalAlloc uint64
	for keyHex, v := range g.Alloc {
		if _, err := types.HexToPublicKey(keyHex); err != nil {
			return fmt.Errorf("invalid alloc public key %q: %w", keyHex, err)
		}
		totalAlloc += v
	}
	if g.Protocol.Consensus.MaxSupply > 0 && totalAlloc > g.Protocol.Consensus.MaxSupply {
		return fmt.Errorf("genesis allocations (%d) exceed max_supply (%d)",
			totalAlloc, g.Protocol.Consensus.MaxSupply)
	}

	return nil
}

// Hash returns a domain-separated hash of the genesis configuration, used
// to identify the chain and detect genesis mismatches between peers.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash("klingnet.config.genesis", data), nil
}
