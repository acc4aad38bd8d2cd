// Package badgerstore backs the ledger store with a badger key-value
// database, keeping balances across restarts. Applied-entry records carry a
// TTL instead of the memory store's FIFO cap; the TTL is the redelivery
// window.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/finstream/finstream/internal/ledger"
	"github.com/finstream/finstream/pkg/models"
)

const (
	balancePrefix = "bal:"
	entryPrefix   = "ent:"

	defaultEntryTTL = 24 * time.Hour
)

// Store is a badger-backed ledger store.
type Store struct {
	db       *badger.DB
	entryTTL time.Duration
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", path, err)
	}
	return &Store{db: db, entryTTL: defaultEntryTTL}, nil
}

func balanceKey(accountID, currency string) []byte {
	return []byte(balancePrefix + accountID + ":" + currency)
}

func entryKey(entryID string) []byte {
	return []byte(entryPrefix + entryID)
}

func (s *Store) get(key []byte) (models.AccountBalance, bool, error) {
	var snapshot models.AccountBalance
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snapshot)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.AccountBalance{}, false, nil
	}
	if err != nil {
		return models.AccountBalance{}, false, err
	}
	return snapshot, true, nil
}

func (s *Store) Balance(ctx context.Context, accountID, currency string) (models.AccountBalance, bool, error) {
	return s.get(balanceKey(accountID, currency))
}

func (s *Store) SetBalance(ctx context.Context, balance models.AccountBalance) error {
	data, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(balanceKey(balance.AccountID, balance.Currency), data)
	})
}

func (s *Store) AppliedResult(ctx context.Context, entryID string) (models.AccountBalance, bool, error) {
	return s.get(entryKey(entryID))
}

func (s *Store) RecordApplied(ctx context.Context, entryID string, balance models.AccountBalance) error {
	data, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(entryKey(entryID), data).WithTTL(s.entryTTL)
		return txn.SetEntry(entry)
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ ledger.Store = (*Store)(nil)
