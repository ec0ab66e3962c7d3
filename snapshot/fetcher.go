package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/logx"
)

const (
	methodSnapshot      = "snapshot"
	methodSnapshotChunk = "snapshot_chunk"
)

var ErrNoSnapshot = errors.New("peer has no snapshot at or below requested height")

// Caller issues one JSON-RPC call. *jrpc2.Client satisfies it.
type Caller interface {
	CallResult(ctx context.Context, method string, params, result any) error
}

// Fetcher reconstructs a peer's snapshot by pulling it chunk by chunk.
type Fetcher struct {
	caller    Caller
	chunkSize uint64
	log       *logx.Logger
}

// NewFetcher returns a Fetcher requesting chunkSize bytes per call. A zero
// chunkSize lets the peer pick its default.
func NewFetcher(caller Caller, chunkSize uint64, log *logx.Logger) *Fetcher {
	return &Fetcher{caller: caller, chunkSize: chunkSize, log: log}
}

type chunkParams struct {
	Hash           string `json:"hash"`
	ChunkNo        uint64 `json:"chunk_no"`
	ChunkSizeBytes uint64 `json:"chunk_size_bytes,omitempty"`
}

// Fetch downloads the latest snapshot at or below height and checks its
// length and hash against what the peer advertised.
func (f *Fetcher) Fetch(ctx context.Context, height uint64) (*interfaces.SnapshotInfo, []byte, error) {
	var info *interfaces.SnapshotInfo
	if err := f.caller.CallResult(ctx, methodSnapshot, map[string]uint64{"height": height}, &info); err != nil {
		return nil, nil, fmt.Errorf("request snapshot: %w", err)
	}
	if info == nil {
		return nil, nil, ErrNoSnapshot
	}
	f.log.Info("SNAPSHOT DOWNLOAD", "fetching ", info.Hash, " (", info.SizeBytes, " bytes)")

	body := make([]byte, 0, info.SizeBytes)
	for chunkNo := uint64(0); ; chunkNo++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		var chunk []byte
		params := chunkParams{Hash: info.Hash, ChunkNo: chunkNo, ChunkSizeBytes: f.chunkSize}
		if err := f.caller.CallResult(ctx, methodSnapshotChunk, params, &chunk); err != nil {
			return nil, nil, fmt.Errorf("request chunk %d: %w", chunkNo, err)
		}
		if len(chunk) == 0 {
			break
		}
		body = append(body, chunk...)
		if uint64(len(body)) > info.SizeBytes {
			return nil, nil, fmt.Errorf("snapshot %s: received %d bytes, expected %d", info.Hash, len(body), info.SizeBytes)
		}
		if uint64(len(body)) == info.SizeBytes {
			break
		}
		f.log.Debug("SNAPSHOT DOWNLOAD", "chunk ", chunkNo, " size ", len(chunk))
	}

	if uint64(len(body)) != info.SizeBytes {
		return nil, nil, fmt.Errorf("snapshot %s: received %d bytes, expected %d", info.Hash, len(body), info.SizeBytes)
	}
	if got := Hash(body); got != info.Hash {
		return nil, nil, fmt.Errorf("snapshot hash mismatch: got %s, expected %s", got, info.Hash)
	}
	return info, body, nil
}
