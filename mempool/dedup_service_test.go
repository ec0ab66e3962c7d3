package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupServiceMarkSeen(t *testing.T) {
	ds := NewDedupService(0)

	assert.True(t, ds.MarkSeen("hash1"))
	assert.False(t, ds.MarkSeen("hash1"))
	assert.True(t, ds.IsDuplicate("hash1"))
	assert.False(t, ds.IsDuplicate("hash2"))
}

func TestDedupServiceForgetsOldWindows(t *testing.T) {
	ds := NewDedupService(3)

	ds.MarkSeen("old")
	ds.Advance()
	ds.MarkSeen("newer")
	ds.Advance()
	assert.True(t, ds.IsDuplicate("old"))

	ds.Advance() // window 3 drops window 0
	assert.False(t, ds.IsDuplicate("old"))
	assert.True(t, ds.IsDuplicate("newer"))
	assert.Equal(t, 1, ds.Len())

	assert.True(t, ds.MarkSeen("old"), "a forgotten hash is new again")
}
