package events

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/mezonai/syncgate/errors"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/store"
	"github.com/mezonai/syncgate/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDelivers(t *testing.T) {
	eventBus := NewEventBus(logx.Discard())

	id, ch := eventBus.Subscribe()
	assert.Equal(t, 1, eventBus.GetTotalSubscriptions())
	assert.True(t, eventBus.HasSubscriber(id))

	tx := &transaction.Transaction{From: "02aa", Amount: uint256.NewInt(100), Hash: "test-tx-hash"}
	eventBus.Publish(NewTransactionAddedToMempool(tx, true))

	select {
	case ev := <-ch:
		assert.Equal(t, EventTransactionAddedToMempool, ev.Type())
		assert.Equal(t, "test-tx-hash", ev.Key())
		added, ok := ev.(*TransactionAddedToMempool)
		require.True(t, ok)
		assert.True(t, added.Local())
		assert.Same(t, tx, added.Transaction())
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	assert.True(t, eventBus.Unsubscribe(id))
	assert.False(t, eventBus.Unsubscribe(id))
	assert.Equal(t, 0, eventBus.GetTotalSubscriptions())

	_, open := <-ch
	assert.False(t, open, "channel is closed on unsubscribe")
}

func TestEventBusDropsWhenSubscriberFull(t *testing.T) {
	eventBus := NewEventBus(logx.Discard())
	_, ch := eventBus.Subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		eventBus.Publish(NewSnapshotPublished(store.SnapshotMeta{Hash: "h", Height: uint64(i)}))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestEventPayloads(t *testing.T) {
	rejected := NewTransactionRejected("", errors.NewAdmissionError(errors.KindInvalidData, errors.ErrMsgInvalidData))
	assert.Equal(t, EventTransactionRejected, rejected.Type())
	assert.Equal(t, errors.KindInvalidData, rejected.Kind())
	assert.Equal(t, errors.ErrMsgInvalidData, rejected.Message())
	assert.False(t, rejected.Timestamp().IsZero())
	assert.False(t, rejected.Retryable())

	full := NewTransactionRejected("h", errors.NewAdmissionError(errors.KindPoolFull, errors.ErrMsgPoolFull))
	assert.True(t, full.Retryable())

	snap := NewSnapshotPublished(store.SnapshotMeta{Hash: "abc", SizeBytes: 10, Height: 3})
	assert.Equal(t, "abc", snap.Key())
	assert.Equal(t, uint64(3), snap.Meta().Height)
}
