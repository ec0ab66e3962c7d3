package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/mezonai/syncgate/db"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/store"
)

// LogKind is the sync log entry kind recorded when a snapshot is published.
const LogKind = "snapshot"

// File is the body of a snapshot: every account's balances at one height.
type File struct {
	Height   uint64    `json:"height"`
	Accounts []Account `json:"accounts"`
}

type Account struct {
	ID       string                 `json:"id"`
	Balances []*store.BalanceRecord `json:"balances"`
}

// Encode renders f deterministically: accounts sorted by id, balances by token.
func Encode(f *File) ([]byte, error) {
	accounts := append([]Account(nil), f.Accounts...)
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	for _, acc := range accounts {
		sort.Slice(acc.Balances, func(i, j int) bool { return acc.Balances[i].Token < acc.Balances[j].Token })
	}
	data, err := jsonx.Marshal(File{Height: f.Height, Accounts: accounts})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func Decode(body []byte) (*File, error) {
	var f File
	if err := jsonx.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &f, nil
}

// Hash is the content address of a snapshot body.
func Hash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ReadAccounts collects the whole balance set from accounts.
func ReadAccounts(accounts store.AccountStore) ([]Account, error) {
	var out []Account
	err := accounts.ForEach(func(id string, records []*store.BalanceRecord) bool {
		out = append(out, Account{ID: id, Balances: records})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

// Apply writes every account of f into stores in one batch.
func Apply(f *File, stores *store.Stores) error {
	return stores.TxManager.WithBatch(func(batch db.DatabaseBatch) error {
		for _, acc := range f.Accounts {
			if err := stores.Accounts.StageBalances(batch, acc.ID, acc.Balances); err != nil {
				return fmt.Errorf("store account %s: %w", acc.ID, err)
			}
		}
		return nil
	})
}
