package jsonrpc

import (
	"context"
	"fmt"

	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/store"
	"github.com/mezonai/syncgate/utils"
)

// Message type names
const (
	MsgPostTx           = "post_tx"
	MsgGetActiveBalance = "get_active_balance"
	MsgGetTxPool        = "get_txpool"
	MsgGetMacroblock    = "get_macroblock"
	MsgPeek             = "peek"
	MsgSnapshot         = "snapshot"
	MsgSnapshotChunk    = "snapshot_chunk"
)

// ViewPlain asks get_active_balance for amounts rendered with decimals.
const ViewPlain = "plain"

type activeBalanceParams struct {
	ID   string `json:"id"`
	View string `json:"view,omitempty"`
}

type plainBalance struct {
	ID       string `json:"id"`
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

type macroblockParams struct {
	Hash string `json:"hash"`
}

type peekParams struct {
	Min *uint64 `json:"min,omitempty"`
	Max *uint64 `json:"max,omitempty"`
}

type snapshotParams struct {
	Height uint64 `json:"height"`
}

type snapshotChunkParams struct {
	Hash           string `json:"hash"`
	ChunkNo        uint64 `json:"chunk_no"`
	ChunkSizeBytes uint64 `json:"chunk_size_bytes"`
}

func decodeParams(data jsonx.RawMessage, v any) error {
	if jsonx.IsAbsent(data) {
		return nil
	}
	if err := jsonx.Unmarshal(data, v); err != nil {
		return &paramsError{err: fmt.Errorf("decode params: %w", err)}
	}
	return nil
}

// RegisterTxHandlers registers post_tx for local clients.
func RegisterTxHandlers(r *Router, txSvc interfaces.TxService) error {
	return r.Register(MsgPostTx, func(ctx context.Context, data jsonx.RawMessage) (any, error) {
		return txSvc.PostTx(ctx, data, interfaces.OriginLocal)
	})
}

// RegisterSyncHandlers registers the read-only handlers peers sync from.
func RegisterSyncHandlers(r *Router, syncSvc interfaces.SyncService) error {
	handlers := map[string]Handler{
		MsgGetActiveBalance: func(ctx context.Context, data jsonx.RawMessage) (any, error) {
			var p activeBalanceParams
			if err := decodeParams(data, &p); err != nil {
				return nil, err
			}
			records, err := syncSvc.ActiveBalance(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			if p.View != ViewPlain {
				return records, nil
			}
			return plainBalances(records), nil
		},
		MsgGetTxPool: func(ctx context.Context, _ jsonx.RawMessage) (any, error) {
			return syncSvc.TxPool(ctx)
		},
		MsgGetMacroblock: func(ctx context.Context, data jsonx.RawMessage) (any, error) {
			var p macroblockParams
			if err := decodeParams(data, &p); err != nil {
				return nil, err
			}
			pair, err := syncSvc.Macroblock(ctx, p.Hash)
			if err != nil || pair == nil {
				return nil, err
			}
			return pair, nil
		},
		MsgPeek: func(ctx context.Context, data jsonx.RawMessage) (any, error) {
			var p peekParams
			if err := decodeParams(data, &p); err != nil {
				return nil, err
			}
			return syncSvc.Peek(ctx, p.Min, p.Max)
		},
		MsgSnapshot: func(ctx context.Context, data jsonx.RawMessage) (any, error) {
			var p snapshotParams
			if err := decodeParams(data, &p); err != nil {
				return nil, err
			}
			info, err := syncSvc.Snapshot(ctx, p.Height)
			if err != nil || info == nil {
				return nil, err
			}
			return info, nil
		},
		MsgSnapshotChunk: func(ctx context.Context, data jsonx.RawMessage) (any, error) {
			var p snapshotChunkParams
			if err := decodeParams(data, &p); err != nil {
				return nil, err
			}
			chunk, err := syncSvc.SnapshotChunk(ctx, p.Hash, p.ChunkNo, p.ChunkSizeBytes)
			if err != nil || chunk == nil {
				return nil, err
			}
			return chunk, nil
		},
	}
	for msgType, h := range handlers {
		if err := r.Register(msgType, h); err != nil {
			return err
		}
	}
	return nil
}

func plainBalances(records []*store.BalanceRecord) []plainBalance {
	out := make([]plainBalance, 0, len(records))
	for _, rec := range records {
		out = append(out, plainBalance{
			ID:       rec.ID,
			Token:    rec.Token,
			Amount:   utils.FormatAmount(rec.Amount, rec.Decimals),
			Decimals: rec.Decimals,
		})
	}
	return out
}
