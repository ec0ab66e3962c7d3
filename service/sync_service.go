package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/mezonai/syncgate/errors"
	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/mempool"
	"github.com/mezonai/syncgate/monitoring"
	"github.com/mezonai/syncgate/store"
	"github.com/mezonai/syncgate/transaction"
)

// SyncServiceImpl answers catch-up requests from peers. It only reads.
type SyncServiceImpl struct {
	mempool          *mempool.Mempool
	logs             store.LogStore
	blocks           store.BlockStore
	accounts         store.AccountStore
	snapshots        store.SnapshotStore
	peekLimit        uint64
	defaultChunkSize uint64
	maxChunkSize     uint64
	log              *logx.Logger
}

type SyncServiceConfig struct {
	PeekLimit        uint64
	DefaultChunkSize uint64
	MaxChunkSize     uint64
}

func NewSyncService(mp *mempool.Mempool, stores *store.Stores, cfg SyncServiceConfig, log *logx.Logger) *SyncServiceImpl {
	if cfg.PeekLimit == 0 {
		cfg.PeekLimit = 1
	}
	return &SyncServiceImpl{
		mempool:          mp,
		logs:             stores.Log,
		blocks:           stores.Blocks,
		accounts:         stores.Accounts,
		snapshots:        stores.Snapshots,
		peekLimit:        cfg.PeekLimit,
		defaultChunkSize: cfg.DefaultChunkSize,
		maxChunkSize:     cfg.MaxChunkSize,
		log:              log,
	}
}

func (s *SyncServiceImpl) ActiveBalance(ctx context.Context, id string) ([]*store.BalanceRecord, error) {
	return s.accounts.Balances(id)
}

// TxPool returns the pending transactions ordered by hash.
func (s *SyncServiceImpl) TxPool(ctx context.Context) ([]*transaction.Transaction, error) {
	entries, err := s.mempool.List()
	if err != nil {
		return nil, err
	}
	txs := make([]*transaction.Transaction, 0, len(entries))
	for _, e := range entries {
		txs = append(txs, e.Tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Hash < txs[j].Hash })
	return txs, nil
}

func (s *SyncServiceImpl) Macroblock(ctx context.Context, hash string) (*interfaces.MacroblockPair, error) {
	candidate, err := s.blocks.Get(hash)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		s.log.Warn("SYNC", "no block at ", hash)
		return nil, nil
	}
	macroblock, err := s.blocks.Get(candidate.Link)
	if err != nil {
		return nil, err
	}
	if macroblock == nil {
		s.log.Warn("SYNC", "block ", hash, " links to unknown ", candidate.Link)
	}
	return &interfaces.MacroblockPair{Candidate: candidate, Macroblock: macroblock}, nil
}

// PeekWindow computes the inclusive log range a peek covers, given the log
// size and window limit. ok is false when the range is empty.
//
//	min absent        -> the last limit entries
//	min only          -> [min, min+limit-1]
//	min and max       -> [min, min+min(max-min, limit-1)]
//	max < min         -> empty
func PeekWindow(min, max *uint64, size, limit uint64) (from, to uint64, ok bool) {
	if limit == 0 {
		return 0, 0, false
	}
	if min == nil {
		if size == 0 {
			return 0, 0, false
		}
		if size > limit {
			from = size - limit
		}
		return from, size - 1, true
	}

	from = *min
	span := limit - 1
	if max != nil {
		if *max < *min {
			return 0, 0, false
		}
		span = minUint64(*max-*min, limit-1)
	}
	if from > math.MaxUint64-span {
		to = math.MaxUint64
	} else {
		to = from + span
	}
	return from, to, true
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func (s *SyncServiceImpl) Peek(ctx context.Context, min, max *uint64) ([]*store.LogEntry, error) {
	from, to, ok := PeekWindow(min, max, s.logs.Len(), s.peekLimit)
	if !ok {
		return []*store.LogEntry{}, nil
	}
	return s.logs.Range(from, to)
}

func (s *SyncServiceImpl) Snapshot(ctx context.Context, height uint64) (*interfaces.SnapshotInfo, error) {
	meta, err := s.snapshots.LatestAtOrBelow(height)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		s.log.Warn("SYNC", "no snapshot at or below height ", height)
		return nil, nil
	}
	return &interfaces.SnapshotInfo{Hash: meta.Hash, SizeBytes: meta.SizeBytes}, nil
}

// SnapshotChunk serves one chunk. chunkSize 0 selects the default size.
func (s *SyncServiceImpl) SnapshotChunk(ctx context.Context, hash string, chunkNo uint64, chunkSize uint64) ([]byte, error) {
	if chunkSize == 0 {
		chunkSize = s.defaultChunkSize
	}
	if chunkSize == 0 || (s.maxChunkSize > 0 && chunkSize > s.maxChunkSize) {
		return nil, fmt.Errorf("%w: %d", errors.ErrInvalidChunkSize, chunkSize)
	}
	chunk, err := s.snapshots.ReadChunk(hash, chunkNo, chunkSize)
	if err != nil {
		return nil, err
	}
	if chunk == nil {
		s.log.Warn("SYNC", "no chunk ", chunkNo, " of snapshot ", hash)
		return nil, nil
	}
	monitoring.AddSnapshotBytesServed(len(chunk))
	return chunk, nil
}
