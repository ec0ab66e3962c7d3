package mempool

import (
	"fmt"
	"sync"

	"github.com/mezonai/syncgate/errors"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/monitoring"
	"github.com/mezonai/syncgate/store"
	"github.com/mezonai/syncgate/transaction"
	"github.com/mezonai/syncgate/utils"
)

// Mempool is the pending pool: at most one entry per transaction hash.
// Entries are drained by block production elsewhere; here they are only
// inserted and listed.
type Mempool struct {
	mu      sync.Mutex
	store   store.PoolStore
	maxSize int
	size    int
	log     *logx.Logger
}

// NewMempool wraps ps. maxSize <= 0 means unbounded.
func NewMempool(ps store.PoolStore, maxSize int, log *logx.Logger) (*Mempool, error) {
	existing, err := ps.List()
	if err != nil {
		return nil, fmt.Errorf("load txpool: %w", err)
	}
	monitoring.SetMempoolSize(len(existing))
	return &Mempool{
		store:   ps,
		maxSize: maxSize,
		size:    len(existing),
		log:     log,
	}, nil
}

// AddTx inserts tx under tx.Hash if no entry with that hash exists. Lookup
// and insert happen under one lock, so of two identical concurrent
// submissions exactly one gets a nil error. The loser gets an
// *errors.AdmissionError of kind KindDuplicateTransaction.
func (m *Mempool) AddTx(tx *transaction.Transaction) error {
	if tx == nil || tx.Hash == "" {
		return fmt.Errorf("transaction has no hash")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	exists, err := m.store.Has(tx.Hash)
	if err != nil {
		return fmt.Errorf("check txpool for %s: %w", tx.Hash, err)
	}
	if exists {
		m.log.Debug("MEMPOOL", "duplicate tx ", tx.Hash)
		return errors.NewAdmissionError(errors.KindDuplicateTransaction, errors.ErrMsgDuplicateTransaction)
	}
	if m.maxSize > 0 && m.size >= m.maxSize {
		// block production drains the store directly, so recount before refusing
		if err := m.resyncLocked(); err != nil {
			return err
		}
		if m.size >= m.maxSize {
			m.log.Warn("MEMPOOL", "txpool full at ", m.size, ", rejecting ", tx.Hash)
			return errors.NewAdmissionError(errors.KindPoolFull, errors.ErrMsgPoolFull)
		}
	}

	if err := m.store.Put(&store.PoolEntry{Tx: tx, Status: transaction.StatusPending}); err != nil {
		return fmt.Errorf("insert %s into txpool: %w", tx.Hash, err)
	}
	m.size++
	monitoring.SetMempoolSize(m.size)
	m.log.Info("MEMPOOL", "added tx ", utils.ShortenLog(tx.Hash), " from ", utils.ShortenLog(tx.From))
	return nil
}

// Resync recounts the pool from storage, picking up entries removed by
// block production.
func (m *Mempool) Resync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resyncLocked()
}

func (m *Mempool) resyncLocked() error {
	entries, err := m.store.List()
	if err != nil {
		return fmt.Errorf("recount txpool: %w", err)
	}
	m.size = len(entries)
	monitoring.SetMempoolSize(m.size)
	return nil
}

func (m *Mempool) Get(hash string) (*store.PoolEntry, error) {
	return m.store.Get(hash)
}

// List returns every pending entry.
func (m *Mempool) List() ([]*store.PoolEntry, error) {
	return m.store.List()
}

func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}
