package store

import (
	"fmt"

	"github.com/mezonai/syncgate/db"
	"github.com/mezonai/syncgate/jsonx"
)

// Block is a stored block header. Link names the predecessor it extends.
type Block struct {
	Hash      string   `json:"hash"`
	Link      string   `json:"link"`
	Height    uint64   `json:"n"`
	Publisher string   `json:"publisher,omitempty"`
	TxHashes  []string `json:"txs,omitempty"`
}

// BlockStore looks blocks up by hash.
type BlockStore interface {
	Get(hash string) (*Block, error)
	Put(b *Block) error
}

type GenericBlockStore struct {
	provider db.DatabaseProvider
}

func NewGenericBlockStore(provider db.DatabaseProvider) (*GenericBlockStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &GenericBlockStore{provider: provider}, nil
}

func blockKey(hash string) []byte {
	return []byte(PrefixBlock + hash)
}

// Get returns nil, nil when no block is stored under hash.
func (s *GenericBlockStore) Get(hash string) (*Block, error) {
	if hash == "" {
		return nil, nil
	}
	value, err := s.provider.Get(blockKey(hash))
	if err != nil {
		return nil, fmt.Errorf("failed to get block %s: %w", hash, err)
	}
	if value == nil {
		return nil, nil
	}
	var blk Block
	if err := jsonx.Unmarshal(value, &blk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block %s: %w", hash, err)
	}
	return &blk, nil
}

// Put stores b. Blocks are immutable, so storing a different block under an
// existing hash is an error.
func (s *GenericBlockStore) Put(b *Block) error {
	if b == nil || b.Hash == "" {
		return fmt.Errorf("block must have a hash")
	}
	exists, err := s.provider.Has(blockKey(b.Hash))
	if err != nil {
		return fmt.Errorf("failed to check block existence: %w", err)
	}
	if exists {
		return fmt.Errorf("block %s already exists", b.Hash)
	}
	value, err := jsonx.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}
	if err := s.provider.Put(blockKey(b.Hash), value); err != nil {
		return fmt.Errorf("failed to store block %s: %w", b.Hash, err)
	}
	return nil
}
