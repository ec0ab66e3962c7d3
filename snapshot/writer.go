package snapshot

import (
	"fmt"

	"github.com/mezonai/syncgate/events"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/store"
)

// Writer turns the current balance set into a published snapshot.
type Writer struct {
	accounts  store.AccountStore
	snapshots store.SnapshotStore
	logs      store.LogStore
	eventBus  *events.EventBus
	log       *logx.Logger
}

// NewWriter builds a Writer over stores. eventBus may be nil.
func NewWriter(stores *store.Stores, eventBus *events.EventBus, log *logx.Logger) *Writer {
	return &Writer{
		accounts:  stores.Accounts,
		snapshots: stores.Snapshots,
		logs:      stores.Log,
		eventBus:  eventBus,
		log:       log,
	}
}

// Write publishes a snapshot of all balances tagged with height. Writing the
// same state at the same height twice returns the existing metadata.
func (w *Writer) Write(height uint64) (*store.SnapshotMeta, error) {
	accounts, err := ReadAccounts(w.accounts)
	if err != nil {
		return nil, err
	}
	body, err := Encode(&File{Height: height, Accounts: accounts})
	if err != nil {
		return nil, err
	}
	return w.Publish(height, body)
}

// Publish registers an already encoded body, e.g. one fetched from a peer.
func (w *Writer) Publish(height uint64, body []byte) (*store.SnapshotMeta, error) {
	meta := &store.SnapshotMeta{Hash: Hash(body), SizeBytes: uint64(len(body)), Height: height}

	existing, err := w.snapshots.Meta(meta.Hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		w.log.Debug("SNAPSHOT", "snapshot ", meta.Hash, " already published")
		return existing, nil
	}

	if err := w.snapshots.Publish(meta, body); err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}
	if w.logs != nil {
		data, _ := jsonx.Marshal(meta)
		if _, err := w.logs.Append(LogKind, meta.Hash, data); err != nil {
			return nil, fmt.Errorf("append snapshot log entry: %w", err)
		}
	}
	if w.eventBus != nil {
		w.eventBus.Publish(events.NewSnapshotPublished(*meta))
	}
	w.log.Info("SNAPSHOT", "published ", meta.Hash, " at height ", height, " (", meta.SizeBytes, " bytes)")
	return meta, nil
}
