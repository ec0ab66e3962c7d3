package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/mezonai/syncgate/errors"
	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }

func TestPeekWindow(t *testing.T) {
	const limit = 100
	tests := []struct {
		name     string
		min, max *uint64
		size     uint64
		from, to uint64
		ok       bool
	}{
		{"tail of empty log", nil, nil, 0, 0, 0, false},
		{"tail shorter than limit", nil, nil, 30, 0, 29, true},
		{"tail longer than limit", nil, nil, 250, 150, 249, true},
		{"max without min is a tail", nil, u64(5), 250, 150, 249, true},
		{"min only", u64(10), nil, 1000, 10, 109, true},
		{"span clamped", u64(10), u64(10 + limit + 100), 1000, 10, 109, true},
		{"span inside limit", u64(10), u64(20), 1000, 10, 20, true},
		{"single entry", u64(7), u64(7), 1000, 7, 7, true},
		{"max below min", u64(10), u64(9), 1000, 0, 0, false},
		{"no overflow near max", u64(math.MaxUint64 - 1), nil, 1000, math.MaxUint64 - 1, math.MaxUint64, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, ok := PeekWindow(tt.min, tt.max, tt.size, limit)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.from, from)
				assert.Equal(t, tt.to, to)
			}
		})
	}
}

func appendLog(t *testing.T, f *fixture, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.stores.Log.Append("mblock", fmt.Sprintf("h%d", i), nil)
		require.NoError(t, err)
	}
}

func seqs(entries []*store.LogEntry) []uint64 {
	out := make([]uint64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Seq)
	}
	return out
}

func TestPeek(t *testing.T) {
	const limit = 20
	ctx := context.Background()

	t.Run("empty log", func(t *testing.T) {
		f := newFixture(t, false, limit)
		entries, err := f.sync.Peek(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.NotNil(t, entries)
	})

	t.Run("short log tail returns everything in order", func(t *testing.T) {
		f := newFixture(t, false, limit)
		appendLog(t, f, 5)
		entries, err := f.sync.Peek(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2, 3, 4}, seqs(entries))
	})

	t.Run("clamped span returns exactly the limit", func(t *testing.T) {
		f := newFixture(t, false, limit)
		appendLog(t, f, 200)
		entries, err := f.sync.Peek(ctx, u64(10), u64(10+limit+100))
		require.NoError(t, err)
		require.Len(t, entries, limit)
		assert.Equal(t, uint64(10), entries[0].Seq)
		assert.Equal(t, uint64(10+limit-1), entries[limit-1].Seq)
	})

	t.Run("reads stop at the end of the log", func(t *testing.T) {
		f := newFixture(t, false, limit)
		appendLog(t, f, 15)
		entries, err := f.sync.Peek(ctx, u64(12), nil)
		require.NoError(t, err)
		assert.Equal(t, []uint64{12, 13, 14}, seqs(entries))
	})
}

func TestMacroblock(t *testing.T) {
	f := newFixture(t, false, 10)
	ctx := context.Background()

	pair, err := f.sync.Macroblock(ctx, "X")
	require.NoError(t, err)
	assert.Nil(t, pair)

	require.NoError(t, f.stores.Blocks.Put(&store.Block{Hash: "m1", Height: 1}))
	require.NoError(t, f.stores.Blocks.Put(&store.Block{Hash: "k2", Link: "m1", Height: 2}))

	pair, err = f.sync.Macroblock(ctx, "k2")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "k2", pair.Candidate.Hash)
	require.NotNil(t, pair.Macroblock)
	assert.Equal(t, "m1", pair.Macroblock.Hash)

	pair, err = f.sync.Macroblock(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Nil(t, pair.Macroblock, "genesis links to nothing")
}

func TestActiveBalanceAndTxPool(t *testing.T) {
	f := newFixture(t, false, 10)
	ctx := context.Background()

	records, err := f.sync.ActiveBalance(ctx, "02aa")
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, f.stores.Accounts.PutBalances("02aa", []*store.BalanceRecord{
		{Token: "cc", Amount: uint256.NewInt(10), Decimals: 10},
	}))
	records, err = f.sync.ActiveBalance(ctx, "02aa")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "10", records[0].Amount.Dec())

	for i := 0; i < 3; i++ {
		resp, err := f.txService.PostTx(ctx, signedBody(t, "1", uint64(i)), interfaces.OriginLocal)
		require.NoError(t, err)
		require.Equal(t, 0, resp.Err)
	}
	txs, err := f.sync.TxPool(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.True(t, txs[0].Hash < txs[1].Hash && txs[1].Hash < txs[2].Hash)
}

func TestSnapshotReconstruction(t *testing.T) {
	f := newFixture(t, false, 10)
	ctx := context.Background()

	info, err := f.sync.Snapshot(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, info)

	body := bytes.Repeat([]byte("snapshot-body/"), 37)
	sum := sha256.Sum256(body)
	meta := &store.SnapshotMeta{Hash: hex.EncodeToString(sum[:]), SizeBytes: uint64(len(body)), Height: 50}
	require.NoError(t, f.stores.Snapshots.Publish(meta, body))

	info, err = f.sync.Snapshot(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, meta.Hash, info.Hash)

	for _, chunkSize := range []uint64{1, 7, 64, uint64(len(body)), 1024} {
		var rebuilt []byte
		for n := uint64(0); ; n++ {
			chunk, err := f.sync.SnapshotChunk(ctx, info.Hash, n, chunkSize)
			require.NoError(t, err)
			rebuilt = append(rebuilt, chunk...)
			if uint64(len(chunk)) < chunkSize {
				break
			}
		}
		assert.Equal(t, info.SizeBytes, uint64(len(rebuilt)), "chunk size %d", chunkSize)
		got := sha256.Sum256(rebuilt)
		assert.Equal(t, info.Hash, hex.EncodeToString(got[:]))
	}

	_, err = f.sync.SnapshotChunk(ctx, info.Hash, 0, 4096)
	assert.True(t, errors.Is(err, errors.ErrInvalidChunkSize))

	chunk, err := f.sync.SnapshotChunk(ctx, info.Hash, 0, 0)
	require.NoError(t, err)
	assert.Len(t, chunk, 64, "zero selects the default chunk size")
}
