package store

import (
	"fmt"

	"github.com/mezonai/syncgate/db"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/transaction"
)

// PoolEntry is one pending transaction together with its status.
type PoolEntry struct {
	Tx     *transaction.Transaction `json:"tx"`
	Status int                      `json:"status"`
}

// PoolStore persists the pending pool keyed by transaction hash. It does no
// locking of its own; the mempool serializes writers.
type PoolStore interface {
	Get(hash string) (*PoolEntry, error)
	Has(hash string) (bool, error)
	Put(entry *PoolEntry) error
	List() ([]*PoolEntry, error)
	// Delete drops hash from the pool; deleting an absent hash is not an error.
	Delete(hash string) error
}

type GenericPoolStore struct {
	dbProvider db.IterableProvider
}

func NewGenericPoolStore(dbProvider db.IterableProvider) (*GenericPoolStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &GenericPoolStore{dbProvider: dbProvider}, nil
}

func poolKey(hash string) []byte {
	return []byte(PrefixTxPool + hash)
}

// Get returns nil, nil when hash is not pooled.
func (ps *GenericPoolStore) Get(hash string) (*PoolEntry, error) {
	data, err := ps.dbProvider.Get(poolKey(hash))
	if err != nil {
		return nil, fmt.Errorf("could not get pool entry %s: %w", hash, err)
	}
	if data == nil {
		return nil, nil
	}
	var entry PoolEntry
	if err := jsonx.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pool entry %s: %w", hash, err)
	}
	return &entry, nil
}

func (ps *GenericPoolStore) Has(hash string) (bool, error) {
	ok, err := ps.dbProvider.Has(poolKey(hash))
	if err != nil {
		return false, fmt.Errorf("could not check pool entry %s: %w", hash, err)
	}
	return ok, nil
}

func (ps *GenericPoolStore) Put(entry *PoolEntry) error {
	if entry == nil || entry.Tx == nil || entry.Tx.Hash == "" {
		return fmt.Errorf("pool entry must carry a hashed transaction")
	}
	data, err := jsonx.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal pool entry: %w", err)
	}
	if err := ps.dbProvider.Put(poolKey(entry.Tx.Hash), data); err != nil {
		return fmt.Errorf("failed to write pool entry %s: %w", entry.Tx.Hash, err)
	}
	return nil
}

func (ps *GenericPoolStore) Delete(hash string) error {
	if err := ps.dbProvider.Delete(poolKey(hash)); err != nil {
		return fmt.Errorf("failed to delete pool entry %s: %w", hash, err)
	}
	return nil
}

// List returns every pooled entry. Order follows the storage engine.
func (ps *GenericPoolStore) List() ([]*PoolEntry, error) {
	entries := make([]*PoolEntry, 0)
	var decodeErr error
	err := ps.dbProvider.IteratePrefix([]byte(PrefixTxPool), func(key, value []byte) bool {
		var entry PoolEntry
		if err := jsonx.Unmarshal(value, &entry); err != nil {
			decodeErr = fmt.Errorf("failed to unmarshal pool entry %s: %w", key, err)
			return false
		}
		entries = append(entries, &entry)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pool: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return entries, nil
}
