package db

import (
	"encoding/binary"
	"testing"

	"github.com/mezonai/syncgate/logx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemProvider(t *testing.T) *LevelDBProvider {
	t.Helper()
	p, err := NewMemLevelDBProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestLevelDBProviderBasicOps(t *testing.T) {
	p := newMemProvider(t)

	value, err := p.Get([]byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, p.Put([]byte("a"), []byte("1")))
	value, err = p.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	ok, err := p.Has([]byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, p.Delete([]byte("a")))
	ok, err = p.Has([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLevelDBProviderGetBatchSkipsMissing(t *testing.T) {
	p := newMemProvider(t)
	require.NoError(t, p.Put([]byte("k1"), []byte("v1")))
	require.NoError(t, p.Put([]byte("k3"), []byte("v3")))

	got, err := p.GetBatch([][]byte{[]byte("k1"), []byte("k2"), []byte("k3")})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"k1": []byte("v1"), "k3": []byte("v3")}, got)
}

func TestLevelDBProviderIteratePrefix(t *testing.T) {
	p := newMemProvider(t)
	for _, k := range []string{"acc:1", "acc:2", "blk:1", "acc:3"} {
		require.NoError(t, p.Put([]byte(k), []byte(k)))
	}

	var keys []string
	require.NoError(t, p.IteratePrefix([]byte("acc:"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	assert.Equal(t, []string{"acc:1", "acc:2", "acc:3"}, keys)

	keys = nil
	require.NoError(t, p.IteratePrefix([]byte("acc:"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return false
	}))
	assert.Len(t, keys, 1)
}

func TestDBTxManagerCommitsOrDiscards(t *testing.T) {
	p := newMemProvider(t)
	tm := NewDBTxManager(p, logx.Discard())

	require.NoError(t, tm.WithBatch(func(b DatabaseBatch) error {
		b.Put([]byte("x"), []byte("1"))
		b.Put([]byte("y"), []byte("2"))
		return nil
	}))
	got, err := p.GetBatch([][]byte{[]byte("x"), []byte("y")})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	err = tm.WithBatch(func(b DatabaseBatch) error {
		b.Put([]byte("z"), []byte("3"))
		return errors.New("abort")
	})
	require.Error(t, err)
	ok, err := p.Has([]byte("z"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSeqKeysAreReadable(t *testing.T) {
	key := make([]byte, len(SeqKeyPrefix)+8)
	copy(key, SeqKeyPrefix)
	binary.BigEndian.PutUint64(key[len(SeqKeyPrefix):], 42)

	assert.Equal(t, "log:42", toRedisKey(key))
	assert.Equal(t, key, fromRedisKey("log:42"))
	assert.Equal(t, "account:abc", toRedisKey([]byte("account:abc")))
	assert.Equal(t, []byte("log_meta"), fromRedisKey("log_meta"))
}
