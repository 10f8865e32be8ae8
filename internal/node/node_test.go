package node

import (
	"testing"

	"github.com/klingnet-chain/core/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(config.Testnet)
	cfg.DataDir = t.TempDir()
	cfg.RPC.Port = 0 // let the OS pick a free port
	if err := config.EnsureDataDirs(cfg); err != nil {
		t.Fatalf("EnsureDataDirs: %v", err)
	}
	return cfg
}

func TestNew_InitializesGenesisOnFreshDatabase(t *testing.T) {
	cfg := testConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Stop()

	if n.Height() != 0 {
		t.Errorf("height = %d, want 0", n.Height())
	}
	if n.ChainStore() == nil {
		t.Error("ChainStore() returned nil")
	}
	if n.Mempool() == nil {
		t.Error("Mempool() returned nil")
	}
}

func TestNew_ResumesFromExistingDatabase(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(cfg)
	if err != nil {
		t.Fatalf("New (first): %v", err)
	}
	height := first.Height()
	first.Stop()

	second, err := New(cfg)
	if err != nil {
		t.Fatalf("New (second, resumed): %v", err)
	}
	defer second.Stop()

	if second.Height() != height {
		t.Errorf("resumed height = %d, want %d", second.Height(), height)
	}
}

func TestStartStop_RPCListener(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Enabled = true

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer n.Stop()

	if n.RPCAddr() == "" {
		t.Error("RPCAddr() is empty after Start with RPC enabled")
	}
}

func TestRPCAddr_EmptyWhenDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Enabled = false

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Stop()

	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if addr := n.RPCAddr(); addr != "" {
		t.Errorf("RPCAddr() = %q, want empty when RPC disabled", addr)
	}
}
