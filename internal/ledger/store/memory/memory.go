// Package memory provides the in-memory reference implementation of the
// ledger store. State does not survive restarts; it stands in for a durable
// backend behind the same contract.
package memory

import (
	"context"
	"sync"

	"github.com/finstream/finstream/internal/ledger"
	"github.com/finstream/finstream/pkg/models"
)

// Store keeps balances and the dedup index in maps. The dedup index is
// capacity-bounded: once full, the oldest applied entryID is evicted FIFO,
// which defines the redelivery window.
type Store struct {
	mu       sync.RWMutex
	balances map[string]models.AccountBalance
	applied  map[string]models.AccountBalance
	order    []string
	capacity int
}

// NewStore creates a store whose dedup index retains up to capacity entry ids.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		balances: make(map[string]models.AccountBalance),
		applied:  make(map[string]models.AccountBalance),
		capacity: capacity,
	}
}

func balanceKey(accountID, currency string) string {
	return accountID + ":" + currency
}

func (s *Store) Balance(ctx context.Context, accountID, currency string) (models.AccountBalance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[balanceKey(accountID, currency)]
	return b, ok, nil
}

func (s *Store) SetBalance(ctx context.Context, balance models.AccountBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey(balance.AccountID, balance.Currency)] = balance
	return nil
}

func (s *Store) AppliedResult(ctx context.Context, entryID string) (models.AccountBalance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.applied[entryID]
	return b, ok, nil
}

func (s *Store) RecordApplied(ctx context.Context, entryID string, balance models.AccountBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.applied[entryID]; exists {
		s.applied[entryID] = balance
		return nil
	}
	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.applied, oldest)
	}
	s.applied[entryID] = balance
	s.order = append(s.order, entryID)
	return nil
}

func (s *Store) Close() error {
	return nil
}

var _ ledger.Store = (*Store)(nil)
