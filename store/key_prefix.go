package store

import "github.com/mezonai/syncgate/db"

// Declare database key prefix for objects
const (
	PrefixAccount = "account:"
	PrefixBlock   = "blk:"
	PrefixTxPool  = "txpool:"

	PrefixLog  = db.SeqKeyPrefix
	LogMetaKey = "log_meta"

	PrefixSnapshotMeta = "snap_meta:"
	SnapshotIndexKey   = "snap_index"
)
