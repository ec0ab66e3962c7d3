package events

import (
	"time"

	"github.com/mezonai/syncgate/errors"
	"github.com/mezonai/syncgate/store"
	"github.com/mezonai/syncgate/transaction"
)

// EventType is an enum-like string type for node events
type EventType string

const (
	EventTransactionAddedToMempool EventType = "TransactionAddedToMempool"
	EventTransactionRejected       EventType = "TransactionRejected"
	EventSnapshotPublished         EventType = "SnapshotPublished"
)

// NodeEvent is anything published on the EventBus. Key identifies the
// subject: a tx hash or a snapshot hash.
type NodeEvent interface {
	Type() EventType
	Timestamp() time.Time
	Key() string
}

// TransactionAddedToMempool is published once per admitted transaction.
type TransactionAddedToMempool struct {
	tx        *transaction.Transaction
	local     bool
	timestamp time.Time
}

func NewTransactionAddedToMempool(tx *transaction.Transaction, local bool) *TransactionAddedToMempool {
	return &TransactionAddedToMempool{
		tx:        tx,
		local:     local,
		timestamp: time.Now(),
	}
}

func (e *TransactionAddedToMempool) Type() EventType {
	return EventTransactionAddedToMempool
}

func (e *TransactionAddedToMempool) Timestamp() time.Time {
	return e.timestamp
}

func (e *TransactionAddedToMempool) Key() string {
	return e.tx.Hash
}

func (e *TransactionAddedToMempool) Transaction() *transaction.Transaction {
	return e.tx
}

// Local reports whether the transaction was submitted to this node directly.
func (e *TransactionAddedToMempool) Local() bool {
	return e.local
}

// TransactionRejected is published when admission refuses a submission.
// The hash is empty when the payload never got far enough to be hashed.
type TransactionRejected struct {
	txHash    string
	kind      errors.ErrorKind
	message   string
	retryable bool
	timestamp time.Time
}

func NewTransactionRejected(txHash string, verdict *errors.AdmissionError) *TransactionRejected {
	return &TransactionRejected{
		txHash:    txHash,
		kind:      verdict.Kind,
		message:   verdict.Message,
		retryable: verdict.Retryable(),
		timestamp: time.Now(),
	}
}

func (e *TransactionRejected) Type() EventType {
	return EventTransactionRejected
}

func (e *TransactionRejected) Timestamp() time.Time {
	return e.timestamp
}

func (e *TransactionRejected) Key() string {
	return e.txHash
}

func (e *TransactionRejected) Kind() errors.ErrorKind {
	return e.kind
}

func (e *TransactionRejected) Message() string {
	return e.message
}

// Retryable reports whether the same submission may be admitted later.
func (e *TransactionRejected) Retryable() bool {
	return e.retryable
}

// SnapshotPublished is published after a snapshot body and its metadata
// are stored.
type SnapshotPublished struct {
	meta      store.SnapshotMeta
	timestamp time.Time
}

func NewSnapshotPublished(meta store.SnapshotMeta) *SnapshotPublished {
	return &SnapshotPublished{meta: meta, timestamp: time.Now()}
}

func (e *SnapshotPublished) Type() EventType {
	return EventSnapshotPublished
}

func (e *SnapshotPublished) Timestamp() time.Time {
	return e.timestamp
}

func (e *SnapshotPublished) Key() string {
	return e.meta.Hash
}

func (e *SnapshotPublished) Meta() store.SnapshotMeta {
	return e.meta
}
