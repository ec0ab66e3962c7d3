package jsonrpc

import (
	"context"
	"testing"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/server"
	"github.com/holiman/uint256"
	"github.com/mezonai/syncgate/errors"
	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/store"
	"github.com/mezonai/syncgate/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTxService struct {
	bodies  [][]byte
	origins []interfaces.Origin
}

func (s *stubTxService) PostTx(_ context.Context, body []byte, origin interfaces.Origin) (*interfaces.PostTxResponse, error) {
	s.bodies = append(s.bodies, body)
	s.origins = append(s.origins, origin)
	if jsonx.IsArray(body) {
		return &interfaces.PostTxResponse{Err: 1, Message: errors.ErrMsgOnlyOneAllowed}, nil
	}
	return &interfaces.PostTxResponse{Result: []interfaces.TxResult{{Hash: "ab", Status: 0}}}, nil
}

func (s *stubTxService) PostRawTx(_ context.Context, _ *transaction.RawTx, _ interfaces.Origin) (*interfaces.PostTxResponse, error) {
	return &interfaces.PostTxResponse{}, nil
}

type stubSyncService struct {
	chunk    []byte
	lastPeek [2]*uint64
}

func (s *stubSyncService) ActiveBalance(_ context.Context, id string) ([]*store.BalanceRecord, error) {
	return []*store.BalanceRecord{{ID: id, Token: "aa", Amount: uint256.NewInt(123450), Decimals: 2}}, nil
}

func (s *stubSyncService) TxPool(_ context.Context) ([]*transaction.Transaction, error) {
	return []*transaction.Transaction{}, nil
}

func (s *stubSyncService) Macroblock(_ context.Context, hash string) (*interfaces.MacroblockPair, error) {
	if hash != "known" {
		return nil, nil
	}
	return &interfaces.MacroblockPair{Candidate: &store.Block{Hash: "known", Link: "prev"}}, nil
}

func (s *stubSyncService) Peek(_ context.Context, min, max *uint64) ([]*store.LogEntry, error) {
	s.lastPeek = [2]*uint64{min, max}
	return []*store.LogEntry{{Seq: 4, Kind: "mblock"}}, nil
}

func (s *stubSyncService) Snapshot(_ context.Context, height uint64) (*interfaces.SnapshotInfo, error) {
	if height < 10 {
		return nil, nil
	}
	return &interfaces.SnapshotInfo{Hash: "ff", SizeBytes: 3}, nil
}

func (s *stubSyncService) SnapshotChunk(_ context.Context, _ string, chunkNo uint64, chunkSize uint64) ([]byte, error) {
	if chunkSize > 1024 {
		return nil, errors.ErrInvalidChunkSize
	}
	if chunkNo > 0 {
		return nil, nil
	}
	return s.chunk, nil
}

func newTestRouter(t *testing.T) (*Router, *stubTxService, *stubSyncService) {
	t.Helper()
	r := NewRouter(nil, logx.Discard())
	txSvc := &stubTxService{}
	syncSvc := &stubSyncService{chunk: []byte{1, 2, 3}}
	require.NoError(t, RegisterTxHandlers(r, txSvc))
	require.NoError(t, RegisterSyncHandlers(r, syncSvc))
	return r, txSvc, syncSvc
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRouter(nil, logx.Discard())
	h := func(context.Context, jsonx.RawMessage) (any, error) { return "ok", nil }
	require.NoError(t, r.Register("ping", h))
	err := r.Register("ping", h)
	assert.True(t, errors.Is(err, errors.ErrDuplicateHandler))
	assert.Error(t, r.Register("", h))
	assert.Error(t, r.Register("pong", nil))
}

func TestTypesSorted(t *testing.T) {
	r, _, _ := newTestRouter(t)
	assert.Equal(t, []string{
		MsgGetActiveBalance, MsgGetMacroblock, MsgGetTxPool, MsgPeek, MsgPostTx, MsgSnapshot, MsgSnapshotChunk,
	}, r.Types())
}

func TestPeerMethodMapOmitsPostTx(t *testing.T) {
	r, _, _ := newTestRouter(t)
	all := r.MethodMap()
	peer := r.PeerMethodMap()

	assert.Contains(t, all, MsgPostTx)
	assert.NotContains(t, peer, MsgPostTx)
	assert.Len(t, peer, len(all)-1)
	assert.Contains(t, peer, MsgSnapshotChunk)
}

func TestDispatchUnknownType(t *testing.T) {
	r, _, _ := newTestRouter(t)
	res, err := r.Dispatch(context.Background(), Envelope{Type: "nope"})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, errors.ErrUnknownMessageType))
}

func TestDispatchJSON(t *testing.T) {
	r, txSvc, syncSvc := newTestRouter(t)
	ctx := context.Background()

	res, err := r.DispatchJSON(ctx, []byte(`{"type":"post_tx","data":{"from":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, 0, res.(*interfaces.PostTxResponse).Err)
	require.Len(t, txSvc.origins, 1)
	assert.Equal(t, interfaces.OriginLocal, txSvc.origins[0])
	assert.JSONEq(t, `{"from":"x"}`, string(txSvc.bodies[0]))

	res, err = r.DispatchJSON(ctx, []byte(`{"type":"peek","data":{"min":3}}`))
	require.NoError(t, err)
	assert.Len(t, res.([]*store.LogEntry), 1)
	require.NotNil(t, syncSvc.lastPeek[0])
	assert.Equal(t, uint64(3), *syncSvc.lastPeek[0])
	assert.Nil(t, syncSvc.lastPeek[1])

	_, err = r.DispatchJSON(ctx, []byte(`not json`))
	var pe *paramsError
	assert.True(t, errors.As(err, &pe))
}

func TestNotFoundIsUntypedNil(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()

	res, err := r.Dispatch(ctx, Envelope{Type: MsgGetMacroblock, Data: jsonx.RawMessage(`{"hash":"missing"}`)})
	require.NoError(t, err)
	assert.True(t, res == nil)

	res, err = r.Dispatch(ctx, Envelope{Type: MsgSnapshot, Data: jsonx.RawMessage(`{"height":1}`)})
	require.NoError(t, err)
	assert.True(t, res == nil)

	res, err = r.Dispatch(ctx, Envelope{Type: MsgSnapshotChunk, Data: jsonx.RawMessage(`{"hash":"ff","chunk_no":5}`)})
	require.NoError(t, err)
	assert.True(t, res == nil)
}

func TestActiveBalancePlainView(t *testing.T) {
	r, _, _ := newTestRouter(t)
	res, err := r.Dispatch(context.Background(), Envelope{
		Type: MsgGetActiveBalance,
		Data: jsonx.RawMessage(`{"id":"alice","view":"plain"}`),
	})
	require.NoError(t, err)
	out, err := jsonx.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"alice","token":"aa","amount":"1234.5","decimals":2}]`, string(out))
}

func TestBroadcastWithoutBroadcaster(t *testing.T) {
	r := NewRouter(nil, logx.Discard())
	err := r.Broadcast(context.Background(), MsgPostTx, struct{}{})
	assert.True(t, errors.Is(err, errors.ErrBroadcastDisabled))
}

func TestMethodMapOverJSONRPC(t *testing.T) {
	r, _, _ := newTestRouter(t)
	loc := server.NewLocal(r.MethodMap(), nil)
	defer loc.Close()
	ctx := context.Background()

	var entries []*store.LogEntry
	require.NoError(t, loc.Client.CallResult(ctx, MsgPeek, map[string]uint64{"min": 4}, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(4), entries[0].Seq)

	var chunk []byte
	require.NoError(t, loc.Client.CallResult(ctx, MsgSnapshotChunk, map[string]any{"hash": "ff", "chunk_no": 0}, &chunk))
	assert.Equal(t, []byte{1, 2, 3}, chunk)

	var info *interfaces.SnapshotInfo
	require.NoError(t, loc.Client.CallResult(ctx, MsgSnapshot, map[string]uint64{"height": 2}, &info))
	assert.Nil(t, info)

	_, err := loc.Client.Call(ctx, MsgSnapshotChunk, map[string]any{"hash": "ff", "chunk_size_bytes": 4096})
	var jerr *jrpc2.Error
	require.True(t, errors.As(err, &jerr))
	assert.Equal(t, jrpc2.InvalidParams, jerr.Code)

	_, err = loc.Client.Call(ctx, MsgPeek, map[string]any{"min": -1})
	require.True(t, errors.As(err, &jerr))
	assert.Equal(t, jrpc2.InvalidParams, jerr.Code)

	_, err = loc.Client.Call(ctx, "no_such_method", nil)
	require.True(t, errors.As(err, &jerr))
	assert.Equal(t, jrpc2.MethodNotFound, jerr.Code)
}
