package service

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"
	"github.com/mezonai/syncgate/contract"
	"github.com/mezonai/syncgate/db"
	"github.com/mezonai/syncgate/events"
	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/mempool"
	"github.com/mezonai/syncgate/store"
	"github.com/mezonai/syncgate/transaction"
	"github.com/mezonai/syncgate/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []string
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, msgType string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx := payload.(*transaction.Transaction)
	b.calls = append(b.calls, msgType+":"+tx.Hash)
	return nil
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

type fixture struct {
	stores      *store.Stores
	mempool     *mempool.Mempool
	eventBus    *events.EventBus
	broadcaster *recordingBroadcaster
	txService   *TxServiceImpl
	sync        *SyncServiceImpl
}

func newFixture(t *testing.T, enablePostTx bool, peekLimit uint64) *fixture {
	t.Helper()
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	stores, err := store.NewStores(provider, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	mp, err := mempool.NewMempool(stores.Pool, 0, logx.Discard())
	require.NoError(t, err)

	engine, err := contract.NewSchemaEngine(contract.DefaultSchema())
	require.NoError(t, err)
	val := validation.NewValidator(new(big.Int).SetUint64(^uint64(0)), contract.NewGate(engine, logx.Discard()), logx.Discard())

	f := &fixture{
		stores:      stores,
		mempool:     mp,
		eventBus:    events.NewEventBus(logx.Discard()),
		broadcaster: &recordingBroadcaster{},
	}
	f.txService = NewTxService(val, mp, f.eventBus, f.broadcaster, enablePostTx, logx.Discard())
	f.sync = NewSyncService(mp, stores, SyncServiceConfig{PeekLimit: peekLimit, DefaultChunkSize: 64, MaxChunkSize: 1024}, logx.Discard())
	return f
}

// signedBody builds the JSON of a validly signed transaction.
func signedBody(t *testing.T, amount string, nonce uint64) []byte {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	to, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	tx := &transaction.Transaction{
		From:   transaction.CompressedPubKeyHex(priv.PubKey()),
		To:     transaction.CompressedPubKeyHex(to.PubKey()),
		Ticker: strings.Repeat("cc", 32),
		Amount: uint256.MustFromDecimal(amount),
		Data:   "",
		Nonce:  nonce,
	}
	tx.SignWith(priv)
	body, err := jsonx.Marshal(map[string]interface{}{
		"from":   tx.From,
		"to":     tx.To,
		"ticker": tx.Ticker,
		"amount": amount,
		"data":   tx.Data,
		"nonce":  tx.Nonce,
		"sign":   tx.Sign,
	})
	require.NoError(t, err)
	return body
}

func TestPostTxAdmitThenDuplicate(t *testing.T) {
	f := newFixture(t, true, 10)
	ctx := context.Background()
	body := signedBody(t, "100", 1)

	resp, err := f.txService.PostTx(ctx, body, interfaces.OriginLocal)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Err)
	require.Len(t, resp.Result, 1)
	assert.Len(t, resp.Result[0].Hash, 64)
	assert.Equal(t, 0, resp.Result[0].Status)

	again, err := f.txService.PostTx(ctx, body, interfaces.OriginLocal)
	require.NoError(t, err)
	assert.Equal(t, &interfaces.PostTxResponse{Err: 1, Message: "TX is already in txpool"}, again)

	assert.Equal(t, 1, f.mempool.Len())
	assert.Equal(t, 1, f.broadcaster.count())
}

func TestPostTxWireShape(t *testing.T) {
	f := newFixture(t, false, 10)

	resp, err := f.txService.PostTx(context.Background(), signedBody(t, "1", 0), interfaces.OriginLocal)
	require.NoError(t, err)
	out, err := jsonx.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"err":0,"result":[{"hash":"`+resp.Result[0].Hash+`","status":0}]}`, string(out))

	resp, err = f.txService.PostTx(context.Background(), []byte(`{"amount":"1"}`), interfaces.OriginLocal)
	require.NoError(t, err)
	out, err = jsonx.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"err":1,"message":"Missed fields"}`, string(out))
}

func TestPostTxRejections(t *testing.T) {
	f := newFixture(t, true, 10)
	ctx := context.Background()

	var fields map[string]interface{}
	require.NoError(t, jsonx.Unmarshal(signedBody(t, "100", 1), &fields))
	fields["amount"] = "0100"
	body, err := jsonx.Marshal(fields)
	require.NoError(t, err)

	resp, err := f.txService.PostTx(ctx, body, interfaces.OriginLocal)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Err)
	assert.Equal(t, "Amount is not a valid integer", resp.Message)

	batch := []byte("[" + string(signedBody(t, "1", 1)) + "]")
	resp, err = f.txService.PostTx(ctx, batch, interfaces.OriginLocal)
	require.NoError(t, err)
	assert.Equal(t, "Only one TX allowed", resp.Message)

	resp, err = f.txService.PostTx(ctx, []byte("{not json"), interfaces.OriginLocal)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Err)

	assert.Equal(t, 0, f.mempool.Len())
	assert.Equal(t, 0, f.broadcaster.count())
}

func TestPostTxIgnoresSubmittedHash(t *testing.T) {
	f := newFixture(t, false, 10)

	var fields map[string]interface{}
	require.NoError(t, jsonx.Unmarshal(signedBody(t, "5", 2), &fields))
	fields["hash"] = strings.Repeat("0", 64)
	body, err := jsonx.Marshal(fields)
	require.NoError(t, err)

	resp, err := f.txService.PostTx(context.Background(), body, interfaces.OriginLocal)
	require.NoError(t, err)
	require.Equal(t, 0, resp.Err)
	assert.NotEqual(t, strings.Repeat("0", 64), resp.Result[0].Hash)

	entry, err := f.mempool.Get(resp.Result[0].Hash)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, entry.Tx.ComputeHash(), resp.Result[0].Hash)
}

func TestBroadcastGating(t *testing.T) {
	tests := []struct {
		name         string
		enablePostTx bool
		origin       interfaces.Origin
		want         int
	}{
		{"local enabled", true, interfaces.OriginLocal, 1},
		{"local disabled", false, interfaces.OriginLocal, 0},
		{"relayed enabled", true, interfaces.OriginRelayed, 0},
		{"relayed disabled", false, interfaces.OriginRelayed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.enablePostTx, 10)
			resp, err := f.txService.PostTx(context.Background(), signedBody(t, "9", 3), tt.origin)
			require.NoError(t, err)
			require.Equal(t, 0, resp.Err)
			assert.Equal(t, tt.want, f.broadcaster.count())
		})
	}
}

func TestPostRawTxRelayed(t *testing.T) {
	f := newFixture(t, true, 10)
	raw, err := transaction.ParseRawTx(signedBody(t, "42", 7))
	require.NoError(t, err)

	resp, err := f.txService.PostRawTx(context.Background(), raw, interfaces.OriginRelayed)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Err)
	assert.Equal(t, 0, f.broadcaster.count())
}

func TestConcurrentIdenticalSubmissions(t *testing.T) {
	f := newFixture(t, true, 10)
	_, ch := f.eventBus.Subscribe()
	body := signedBody(t, "100", 1)

	const workers = 16
	results := make([]*interfaces.PostTxResponse, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.txService.PostTx(context.Background(), body, interfaces.OriginLocal)
			assert.NoError(t, err)
			results[i] = resp
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, r := range results {
		require.NotNil(t, r)
		if r.Err == 0 {
			admitted++
		} else {
			assert.Equal(t, "TX is already in txpool", r.Message)
		}
	}
	assert.Equal(t, 1, admitted)
	assert.Equal(t, 1, f.mempool.Len())
	assert.Equal(t, 1, f.broadcaster.count())

	added := 0
	for len(ch) > 0 {
		if ev := <-ch; ev.Type() == events.EventTransactionAddedToMempool {
			added++
		}
	}
	assert.Equal(t, 1, added)
}
