package interfaces

import (
	"context"

	"github.com/mezonai/syncgate/transaction"
)

// Origin tells the admission pipeline where a submission came from.
type Origin int

const (
	// OriginLocal is a submission by a client of this node.
	OriginLocal Origin = iota
	// OriginRelayed is a submission gossiped by a peer. It is never re-broadcast.
	OriginRelayed
)

// TxResult is one admitted transaction in a PostTxResponse.
type TxResult struct {
	Hash   string `json:"hash"`
	Status int    `json:"status"`
}

// PostTxResponse is the wire result of post_tx: {err:0, result:[...]} on
// success or {err:1, message} on rejection.
type PostTxResponse struct {
	Err     int        `json:"err"`
	Result  []TxResult `json:"result,omitempty"`
	Message string     `json:"message,omitempty"`
}

type TxService interface {
	// PostTx admits the JSON body of one submitted transaction. Rejections
	// come back inside the response; the error is reserved for storage
	// faults.
	PostTx(ctx context.Context, body []byte, origin Origin) (*PostTxResponse, error)
	PostRawTx(ctx context.Context, raw *transaction.RawTx, origin Origin) (*PostTxResponse, error)
}
