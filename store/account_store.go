package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/holiman/uint256"
	"github.com/mezonai/syncgate/db"
	"github.com/mezonai/syncgate/jsonx"
)

// BalanceRecord is one token balance of an account. Amount is in base units.
type BalanceRecord struct {
	ID       string
	Token    string
	Amount   *uint256.Int
	Decimals uint8
}

type balanceJSON struct {
	ID       string `json:"id"`
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

func (r *BalanceRecord) MarshalJSON() ([]byte, error) {
	amount := "0"
	if r.Amount != nil {
		amount = r.Amount.Dec()
	}
	return jsonx.Marshal(balanceJSON{ID: r.ID, Token: r.Token, Amount: amount, Decimals: r.Decimals})
}

func (r *BalanceRecord) UnmarshalJSON(data []byte) error {
	var v balanceJSON
	if err := jsonx.Unmarshal(data, &v); err != nil {
		return err
	}
	amount, err := uint256.FromDecimal(v.Amount)
	if err != nil {
		return fmt.Errorf("invalid balance amount %q: %w", v.Amount, err)
	}
	*r = BalanceRecord{ID: v.ID, Token: v.Token, Amount: amount, Decimals: v.Decimals}
	return nil
}

// AccountStore keeps the balance set of every account id.
type AccountStore interface {
	Balances(id string) ([]*BalanceRecord, error)
	PutBalances(id string, records []*BalanceRecord) error
	// StageBalances queues the same write as PutBalances on batch.
	StageBalances(batch db.DatabaseBatch, id string, records []*BalanceRecord) error
	// ForEach visits accounts until fn returns false. Order follows the
	// storage engine.
	ForEach(fn func(id string, records []*BalanceRecord) bool) error
}

type GenericAccountStore struct {
	mu         sync.RWMutex
	dbProvider db.IterableProvider
}

func NewGenericAccountStore(dbProvider db.IterableProvider) (*GenericAccountStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &GenericAccountStore{dbProvider: dbProvider}, nil
}

func (as *GenericAccountStore) getDbKey(id string) []byte {
	return []byte(PrefixAccount + strings.ToLower(id))
}

// Balances returns an empty list for an unknown id.
func (as *GenericAccountStore) Balances(id string) ([]*BalanceRecord, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	data, err := as.dbProvider.Get(as.getDbKey(id))
	if err != nil {
		return nil, fmt.Errorf("could not get balances of %s from db: %w", id, err)
	}
	records := make([]*BalanceRecord, 0)
	if data == nil {
		return records, nil
	}
	if err := jsonx.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balances of %s: %w", id, err)
	}
	return records, nil
}

// PutBalances replaces the balance set of id. Records are kept sorted by token.
func (as *GenericAccountStore) PutBalances(id string, records []*BalanceRecord) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	key, data, err := as.encodeBalances(id, records)
	if err != nil {
		return err
	}
	if err := as.dbProvider.Put(key, data); err != nil {
		return fmt.Errorf("failed to write balances of %s: %w", id, err)
	}
	return nil
}

func (as *GenericAccountStore) StageBalances(batch db.DatabaseBatch, id string, records []*BalanceRecord) error {
	key, data, err := as.encodeBalances(id, records)
	if err != nil {
		return err
	}
	batch.Put(key, data)
	return nil
}

func (as *GenericAccountStore) encodeBalances(id string, records []*BalanceRecord) ([]byte, []byte, error) {
	id = strings.ToLower(id)
	sorted := make([]*BalanceRecord, len(records))
	for i, r := range records {
		rec := *r
		rec.ID = id
		sorted[i] = &rec
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Token < sorted[j].Token })

	data, err := jsonx.Marshal(sorted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal balances of %s: %w", id, err)
	}
	return as.getDbKey(id), data, nil
}

func (as *GenericAccountStore) ForEach(fn func(id string, records []*BalanceRecord) bool) error {
	as.mu.RLock()
	defer as.mu.RUnlock()

	var decodeErr error
	err := as.dbProvider.IteratePrefix([]byte(PrefixAccount), func(key, value []byte) bool {
		var records []*BalanceRecord
		if err := jsonx.Unmarshal(value, &records); err != nil {
			decodeErr = fmt.Errorf("failed to unmarshal %s: %w", key, err)
			return false
		}
		return fn(strings.TrimPrefix(string(key), PrefixAccount), records)
	})
	if err != nil {
		return fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return decodeErr
}
