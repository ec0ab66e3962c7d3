package p2p

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/jsonrpc"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/mempool"
	"github.com/mezonai/syncgate/transaction"
)

// Relay feeds transactions gossiped by peers into the admission pipeline
// with relayed origin, so they are pooled but never re-broadcast.
type Relay struct {
	txSvc   interfaces.TxService
	dedup   *mempool.DedupService
	limiter *RateLimitManager
	log     *logx.Logger
}

func NewRelay(txSvc interfaces.TxService, dedup *mempool.DedupService, limiter *RateLimitManager, log *logx.Logger) *Relay {
	if limiter == nil {
		limiter = NewRateLimitManager(nil)
	}
	return &Relay{txSvc: txSvc, dedup: dedup, limiter: limiter, log: log}
}

// HandleMessage processes one gossip payload from peer from. It returns
// the admission response, or nil when the message was dropped before
// reaching the pipeline.
func (r *Relay) HandleMessage(ctx context.Context, from peer.ID, data []byte) (*interfaces.PostTxResponse, error) {
	if !r.limiter.Allow(from, len(data)) {
		r.log.Warn("RELAY", "rate limit exceeded by ", from.String())
		return nil, nil
	}

	sum := sha256.Sum256(data)
	if !r.dedup.MarkSeen(hex.EncodeToString(sum[:])) {
		return nil, nil
	}

	var env jsonrpc.Envelope
	if err := jsonx.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope from %s: %w", from, err)
	}
	if env.Type != jsonrpc.MsgPostTx {
		r.log.Debug("RELAY", "ignoring ", env.Type, " from ", from.String())
		return nil, nil
	}

	raw, err := transaction.ParseRawTx(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode relayed tx from %s: %w", from, err)
	}
	resp, err := r.txSvc.PostRawTx(ctx, raw, interfaces.OriginRelayed)
	if err != nil {
		return nil, err
	}
	if resp.Err != 0 {
		r.log.Debug("RELAY", "relayed tx from ", from.String(), " rejected: ", resp.Message)
	}
	return resp, nil
}
