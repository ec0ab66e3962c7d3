package store

import (
	"fmt"

	"github.com/mezonai/syncgate/config"
	"github.com/mezonai/syncgate/db"
	"github.com/mezonai/syncgate/logx"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	LevelDBStoreType StoreType = "leveldb"
	MemoryStoreType  StoreType = "memory"
	RedisStoreType   StoreType = "redis"
)

// Stores bundles every store the node serves from. They share one provider.
type Stores struct {
	Provider  db.IterableProvider
	TxManager *db.DBTxManager
	Pool      PoolStore
	Log       LogStore
	Blocks    BlockStore
	Accounts  AccountStore
	Snapshots SnapshotStore
}

// CreateProvider opens the database backend named by cfg.Type.
func CreateProvider(cfg config.StorageConfig) (db.IterableProvider, error) {
	switch StoreType(cfg.Type) {
	case LevelDBStoreType:
		if cfg.Directory == "" {
			return nil, fmt.Errorf("directory cannot be empty")
		}
		return db.NewLevelDBProvider(cfg.Directory)

	case MemoryStoreType:
		return db.NewMemLevelDBProvider()

	case RedisStoreType:
		return db.NewRedisProvider(cfg.RedisAddr, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// NewStores builds every store over provider. Snapshot bodies go to snapshotDir.
func NewStores(provider db.IterableProvider, snapshotDir string) (*Stores, error) {
	pool, err := NewGenericPoolStore(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool store: %w", err)
	}
	logStore, err := NewGenericLogStore(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create log store: %w", err)
	}
	blocks, err := NewGenericBlockStore(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create block store: %w", err)
	}
	accounts, err := NewGenericAccountStore(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create account store: %w", err)
	}
	snapshots, err := NewGenericSnapshotStore(provider, snapshotDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	return &Stores{
		Provider:  provider,
		TxManager: db.NewDBTxManager(provider, logx.Default()),
		Pool:      pool,
		Log:       logStore,
		Blocks:    blocks,
		Accounts:  accounts,
		Snapshots: snapshots,
	}, nil
}

// CreateStores opens the configured provider and builds the stores on it.
func CreateStores(storage config.StorageConfig, sync config.SyncConfig) (*Stores, error) {
	provider, err := CreateProvider(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	stores, err := NewStores(provider, sync.SnapshotDir)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	return stores, nil
}

func (s *Stores) Close() error {
	return s.Provider.Close()
}
