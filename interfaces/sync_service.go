package interfaces

import (
	"context"

	"github.com/mezonai/syncgate/store"
	"github.com/mezonai/syncgate/transaction"
)

// MacroblockPair is a block and the predecessor its link names.
type MacroblockPair struct {
	Candidate  *store.Block `json:"candidate"`
	Macroblock *store.Block `json:"macroblock"`
}

// SnapshotInfo is what a peer needs to start fetching a snapshot.
type SnapshotInfo struct {
	Hash      string `json:"hash"`
	SizeBytes uint64 `json:"size_bytes"`
}

// SyncService serves read-only node state to syncing peers. A nil result
// with a nil error means not found.
type SyncService interface {
	ActiveBalance(ctx context.Context, id string) ([]*store.BalanceRecord, error)
	TxPool(ctx context.Context) ([]*transaction.Transaction, error)
	Macroblock(ctx context.Context, hash string) (*MacroblockPair, error)
	Peek(ctx context.Context, min, max *uint64) ([]*store.LogEntry, error)
	Snapshot(ctx context.Context, height uint64) (*SnapshotInfo, error)
	SnapshotChunk(ctx context.Context, hash string, chunkNo uint64, chunkSize uint64) ([]byte, error)
}
