package config

import (
	"fmt"
	"math/big"

	"github.com/mezonai/syncgate/logx"

	"gopkg.in/ini.v1"
)

const (
	// DefaultMaxSupplyLimit is 2^64-1 in base units.
	DefaultMaxSupplyLimit = "18446744073709551615"
	DefaultPeekLimit      = 100
	DefaultChunkSize      = 16 * 1024
	MaxChunkSize          = 4 * 1024 * 1024
)

type AdmissionConfig struct {
	EnablePostTx   bool   `ini:"enable_post_tx"`
	MaxSupplyLimit string `ini:"max_supply_limit"`
	MaxPoolSize    int    `ini:"max_pool_size"`
}

// MaxSupply parses MaxSupplyLimit as an arbitrary-precision integer.
func (c *AdmissionConfig) MaxSupply() (*big.Int, error) {
	v, ok := new(big.Int).SetString(c.MaxSupplyLimit, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid max_supply_limit %q", c.MaxSupplyLimit)
	}
	return v, nil
}

type SyncConfig struct {
	PeekLimit        int    `ini:"peek_limit"`
	SnapshotDir      string `ini:"snapshot_dir"`
	DefaultChunkSize int    `ini:"default_chunk_size"`
	MaxChunkSize     int    `ini:"max_chunk_size"`
}

type StorageConfig struct {
	Type      string `ini:"type"`
	Directory string `ini:"directory"`
	RedisAddr string `ini:"redis_addr"`
	RedisDB   int    `ini:"redis_db"`
}

type RPCConfig struct {
	ListenAddr     string   `ini:"listen_addr"`
	AllowedOrigins []string `ini:"allowed_origins" delim:","`
	// RateLimitPerSecond caps requests per client IP; 0 disables the limit.
	RateLimitPerSecond int `ini:"rate_limit_per_second"`
}

type P2PConfig struct {
	ListenAddr     string   `ini:"listen_addr"`
	BootstrapPeers []string `ini:"bootstrap_peers" delim:","`
	Topic          string   `ini:"topic"`
	KeyFile        string   `ini:"key_file"`
	Enabled        bool     `ini:"enabled"`
	// MaxRelayPerMinute caps gossip messages processed per peer.
	MaxRelayPerMinute int `ini:"max_relay_per_minute"`
	// DHT turns on kademlia peer discovery on top of the bootstrap list.
	DHT      bool `ini:"dht"`
	MaxPeers int  `ini:"max_peers"`
}

type ContractConfig struct {
	Engine     string `ini:"engine"`
	SchemaPath string `ini:"schema_path"`
	WasmPath   string `ini:"wasm_path"`
}

// NodeConfig is the full node configuration read from config.ini
type NodeConfig struct {
	Admission AdmissionConfig
	Sync      SyncConfig
	Storage   StorageConfig
	RPC       RPCConfig
	P2P       P2PConfig
	Contract  ContractConfig
	Log       logx.Config
}

// Default returns a configuration usable for a single local node.
func Default() *NodeConfig {
	return &NodeConfig{
		Admission: AdmissionConfig{
			EnablePostTx:   true,
			MaxSupplyLimit: DefaultMaxSupplyLimit,
		},
		Sync: SyncConfig{
			PeekLimit:        DefaultPeekLimit,
			SnapshotDir:      "./snapshots",
			DefaultChunkSize: DefaultChunkSize,
			MaxChunkSize:     MaxChunkSize,
		},
		Storage: StorageConfig{
			Type:      "leveldb",
			Directory: "./data",
			RedisAddr: "localhost:6379",
		},
		RPC: RPCConfig{
			ListenAddr:         "127.0.0.1:8080",
			RateLimitPerSecond: 50,
		},
		P2P: P2PConfig{
			ListenAddr:        "/ip4/0.0.0.0/tcp/9000",
			Topic:             "syncgate/post_tx/1.0.0",
			KeyFile:           "./data/node.key",
			Enabled:           true,
			MaxRelayPerMinute: 600,
			MaxPeers:          50,
		},
		Contract: ContractConfig{
			Engine: "schema",
		},
	}
}

// Validate checks the invariants the rest of the node relies on.
func (c *NodeConfig) Validate() error {
	if c.Sync.PeekLimit < 1 {
		return fmt.Errorf("peek_limit must be >= 1, got %d", c.Sync.PeekLimit)
	}
	if c.Sync.MaxChunkSize < 1 {
		return fmt.Errorf("max_chunk_size must be >= 1, got %d", c.Sync.MaxChunkSize)
	}
	if c.Admission.MaxPoolSize < 0 {
		return fmt.Errorf("max_pool_size must be >= 0, got %d", c.Admission.MaxPoolSize)
	}
	if _, err := c.Admission.MaxSupply(); err != nil {
		return err
	}
	switch c.Contract.Engine {
	case "", "none", "schema", "wasm":
	default:
		return fmt.Errorf("unsupported contract engine: %s", c.Contract.Engine)
	}
	return nil
}

// LoadNodeConfig reads every section of an .ini file on top of Default().
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	nodeCfg := Default()
	sections := map[string]interface{}{
		"admission": &nodeCfg.Admission,
		"sync":      &nodeCfg.Sync,
		"storage":   &nodeCfg.Storage,
		"rpc":       &nodeCfg.RPC,
		"p2p":       &nodeCfg.P2P,
		"contract":  &nodeCfg.Contract,
		"log":       &nodeCfg.Log,
	}
	for name, target := range sections {
		if !cfg.HasSection(name) {
			continue
		}
		if err := cfg.Section(name).MapTo(target); err != nil {
			return nil, fmt.Errorf("map section %s: %w", name, err)
		}
	}
	if err := nodeCfg.Validate(); err != nil {
		return nil, err
	}
	return nodeCfg, nil
}

// LoadSyncConfig reads only the [sync] section
func LoadSyncConfig(path string) (*SyncConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	syncCfg := Default().Sync
	err = cfg.Section("sync").MapTo(&syncCfg)
	if err != nil {
		return nil, err
	}
	return &syncCfg, nil
}
