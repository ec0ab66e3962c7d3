package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadNodeConfig(t *testing.T) {
	path := writeConfig(t, `
[admission]
enable_post_tx = false
max_supply_limit = 1000
max_pool_size = 50

[sync]
peek_limit = 25

[p2p]
bootstrap_peers = /ip4/10.0.0.1/tcp/9000/p2p/a,/ip4/10.0.0.2/tcp/9000/p2p/b
dht = true
`)

	cfg, err := LoadNodeConfig(path)
	require.NoError(t, err)

	assert.False(t, cfg.Admission.EnablePostTx)
	assert.Equal(t, "1000", cfg.Admission.MaxSupplyLimit)
	assert.Equal(t, 50, cfg.Admission.MaxPoolSize)
	assert.Equal(t, 25, cfg.Sync.PeekLimit)
	assert.Len(t, cfg.P2P.BootstrapPeers, 2)
	assert.True(t, cfg.P2P.DHT)
	assert.Equal(t, 50, cfg.P2P.MaxPeers)

	// untouched sections keep defaults
	assert.Equal(t, "leveldb", cfg.Storage.Type)
	assert.Equal(t, DefaultChunkSize, cfg.Sync.DefaultChunkSize)
}

func TestLoadNodeConfigRejectsZeroPeekLimit(t *testing.T) {
	path := writeConfig(t, "[sync]\npeek_limit = 0\n")

	_, err := LoadNodeConfig(path)
	assert.Error(t, err)
}

func TestMaxSupply(t *testing.T) {
	cfg := Default()
	v, err := cfg.Admission.MaxSupply()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSupplyLimit, v.String())

	cfg.Admission.MaxSupplyLimit = "12abc"
	_, err = cfg.Admission.MaxSupply()
	assert.Error(t, err)
	assert.Error(t, cfg.Validate())
}

func TestLoadSyncConfig(t *testing.T) {
	path := writeConfig(t, "[sync]\npeek_limit = 7\nsnapshot_dir = /tmp/snaps\n")

	syncCfg, err := LoadSyncConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, syncCfg.PeekLimit)
	assert.Equal(t, "/tmp/snaps", syncCfg.SnapshotDir)
}
