package service

import (
	"context"
	"fmt"

	"github.com/mezonai/syncgate/errors"
	"github.com/mezonai/syncgate/events"
	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/mempool"
	"github.com/mezonai/syncgate/monitoring"
	"github.com/mezonai/syncgate/transaction"
	"github.com/mezonai/syncgate/validation"
)

// MsgTypePostTx is the envelope type of a gossiped submission.
const MsgTypePostTx = "post_tx"

// TxServiceImpl is the admission pipeline: validate, hash, insert into the
// pool if absent, then announce.
type TxServiceImpl struct {
	validator    *validation.Validator
	mempool      *mempool.Mempool
	eventBus     *events.EventBus
	broadcaster  interfaces.Broadcaster
	enablePostTx bool
	log          *logx.Logger
}

func NewTxService(val *validation.Validator, mp *mempool.Mempool, eb *events.EventBus, bc interfaces.Broadcaster, enablePostTx bool, log *logx.Logger) *TxServiceImpl {
	return &TxServiceImpl{
		validator:    val,
		mempool:      mp,
		eventBus:     eb,
		broadcaster:  bc,
		enablePostTx: enablePostTx,
		log:          log,
	}
}

func originLabel(origin interfaces.Origin) monitoring.TxOrigin {
	if origin == interfaces.OriginRelayed {
		return monitoring.OriginRelayed
	}
	return monitoring.OriginLocal
}

func (s *TxServiceImpl) PostTx(ctx context.Context, body []byte, origin interfaces.Origin) (*interfaces.PostTxResponse, error) {
	monitoring.IncreaseIngressTxCount(originLabel(origin))
	tx, verdict := s.validator.ValidatePayload(ctx, body)
	if verdict != nil {
		return s.reject("", verdict), nil
	}
	return s.admit(ctx, tx, origin)
}

func (s *TxServiceImpl) PostRawTx(ctx context.Context, raw *transaction.RawTx, origin interfaces.Origin) (*interfaces.PostTxResponse, error) {
	monitoring.IncreaseIngressTxCount(originLabel(origin))
	tx, verdict := s.validator.Validate(ctx, raw)
	if verdict != nil {
		return s.reject("", verdict), nil
	}
	return s.admit(ctx, tx, origin)
}

func (s *TxServiceImpl) admit(ctx context.Context, tx *transaction.Transaction, origin interfaces.Origin) (*interfaces.PostTxResponse, error) {
	// the submitter's hash, if any, was never read
	tx.Normalize()
	tx.Hash = tx.ComputeHash()

	if err := s.mempool.AddTx(tx); err != nil {
		var verdict *errors.AdmissionError
		if errors.As(err, &verdict) {
			return s.reject(tx.Hash, verdict), nil
		}
		s.log.Error("TX_SERVICE", "pool insert failed for ", tx.Hash, ": ", err)
		return nil, fmt.Errorf("admit %s: %w", tx.Hash, err)
	}

	monitoring.IncreaseAdmittedTxCount(originLabel(origin))
	local := origin == interfaces.OriginLocal
	if s.eventBus != nil {
		s.eventBus.Publish(events.NewTransactionAddedToMempool(tx, local))
	}

	if local && s.enablePostTx && s.broadcaster != nil {
		// delivery is best effort; the tx is already pooled
		if err := s.broadcaster.Broadcast(ctx, MsgTypePostTx, tx); err != nil {
			s.log.Debug("TX_SERVICE", "broadcast of ", tx.Hash, " failed: ", err)
		}
	}

	return &interfaces.PostTxResponse{
		Err:    0,
		Result: []interfaces.TxResult{{Hash: tx.Hash, Status: transaction.StatusPending}},
	}, nil
}

func (s *TxServiceImpl) reject(hash string, verdict *errors.AdmissionError) *interfaces.PostTxResponse {
	monitoring.RecordRejectedTx(string(verdict.Kind))
	s.log.Debug("TX_SERVICE", "rejected ", hash, ": ", verdict.Kind, " (retryable=", verdict.Retryable(), ")")
	if s.eventBus != nil {
		s.eventBus.Publish(events.NewTransactionRejected(hash, verdict))
	}
	return &interfaces.PostTxResponse{Err: 1, Message: verdict.Message}
}
