package db

import (
	"github.com/mezonai/syncgate/logx"
	"github.com/pkg/errors"
)

// DBTxManager runs a group of writes against one batch so that several
// stores sharing a provider commit together.
type DBTxManager struct {
	provider DatabaseProvider
	log      *logx.Logger
}

func NewDBTxManager(provider DatabaseProvider, log *logx.Logger) *DBTxManager {
	return &DBTxManager{provider: provider, log: log}
}

// WithBatch commits the batch when fn returns nil and discards it otherwise.
func (tm *DBTxManager) WithBatch(fn func(batch DatabaseBatch) error) error {
	batch := tm.provider.Batch()
	defer func() {
		if err := batch.Close(); err != nil {
			tm.log.Error("TX_MANAGER", "failed to close batch: ", err)
		}
	}()

	if err := fn(batch); err != nil {
		batch.Reset()
		return errors.Wrap(err, "batch aborted")
	}
	return errors.Wrap(batch.Write(), "batch commit")
}
