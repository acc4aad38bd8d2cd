// Package ledger owns per-(account, currency) balance state and applies
// signed entries to it under strict accounting invariants.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finstream/finstream/pkg/metrics"
	"github.com/finstream/finstream/pkg/models"
)

// ErrValidation marks entries rejected before any state is touched.
var ErrValidation = errors.New("invalid ledger entry")

// Store persists balances and the applied-entry dedup index. Implementations
// must be safe for concurrent use; the engine serializes calls per account on
// top of that.
type Store interface {
	// Balance returns the stored snapshot for the key, reporting whether it
	// exists. Absent keys default to a zero balance at the engine level.
	Balance(ctx context.Context, accountID, currency string) (models.AccountBalance, bool, error)
	// SetBalance stores the balance snapshot for its (account, currency) key.
	SetBalance(ctx context.Context, balance models.AccountBalance) error
	// AppliedResult returns the balance recorded when entryID was first
	// applied, if it is still inside the dedup retention window.
	AppliedResult(ctx context.Context, entryID string) (models.AccountBalance, bool, error)
	// RecordApplied adds the entry's resulting balance to the dedup index.
	RecordApplied(ctx context.Context, entryID string, balance models.AccountBalance) error
	Close() error
}

// Engine applies ledger entries idempotently. Calls for distinct accounts run
// concurrently; calls for the same account are serialized on a per-account
// lock so idempotency holds even when the bus re-delivers an entry to two
// goroutines at once.
type Engine struct {
	store  Store
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an engine on top of the given store.
func NewEngine(store Store, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (e *Engine) accountLock(accountID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[accountID] = lock
	}
	return lock
}

func validate(entry models.LedgerEntry) error {
	if entry.AccountID == "" {
		return fmt.Errorf("%w: accountId is required", ErrValidation)
	}
	if !entry.TransactionType.Valid() {
		return fmt.Errorf("%w: unrecognized transaction type %q", ErrValidation, entry.TransactionType)
	}
	if entry.Amount.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if entry.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}
	return nil
}

// Apply validates the entry and mutates the (account, currency) balance.
// Re-applying an entryID already inside the dedup window returns the balance
// recorded at first application without touching state.
func (e *Engine) Apply(ctx context.Context, entry models.LedgerEntry) (models.AccountBalance, error) {
	if err := validate(entry); err != nil {
		return models.AccountBalance{}, err
	}
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}

	lock := e.accountLock(entry.AccountID)
	lock.Lock()
	defer lock.Unlock()

	if prior, ok, err := e.store.AppliedResult(ctx, entry.EntryID); err != nil {
		return models.AccountBalance{}, fmt.Errorf("dedup lookup failed: %w", err)
	} else if ok {
		metrics.LedgerDuplicates.Inc()
		e.logger.Debug("duplicate entry absorbed",
			zap.String("entry_id", entry.EntryID),
			zap.String("account_id", entry.AccountID))
		return prior, nil
	}

	previous, _, err := e.store.Balance(ctx, entry.AccountID, entry.Currency)
	if err != nil {
		return models.AccountBalance{}, fmt.Errorf("balance lookup failed: %w", err)
	}

	delta := entry.Amount
	if entry.TransactionType == models.TransactionDebit {
		delta = delta.Neg()
	}
	snapshot := models.AccountBalance{
		AccountID:   entry.AccountID,
		Balance:     previous.Balance.Add(delta),
		Currency:    entry.Currency,
		LastUpdated: time.Now(),
	}

	if err := e.store.SetBalance(ctx, snapshot); err != nil {
		return models.AccountBalance{}, fmt.Errorf("failed to store balance: %w", err)
	}
	if err := e.store.RecordApplied(ctx, entry.EntryID, snapshot); err != nil {
		return models.AccountBalance{}, fmt.Errorf("failed to record applied entry: %w", err)
	}

	metrics.LedgerEntriesApplied.WithLabelValues(string(entry.TransactionType), entry.Currency).Inc()
	e.logger.Info("ledger entry applied",
		zap.String("entry_id", entry.EntryID),
		zap.String("account_id", entry.AccountID),
		zap.String("type", string(entry.TransactionType)),
		zap.String("previous_balance", previous.Balance.String()),
		zap.String("new_balance", snapshot.Balance.String()))

	return snapshot, nil
}

// Balance returns the current snapshot for the key; absent keys report a zero
// balance.
func (e *Engine) Balance(ctx context.Context, accountID, currency string) (models.AccountBalance, error) {
	snapshot, ok, err := e.store.Balance(ctx, accountID, currency)
	if err != nil {
		return models.AccountBalance{}, err
	}
	if !ok {
		return models.AccountBalance{
			AccountID:   accountID,
			Balance:     decimal.Zero,
			Currency:    currency,
			LastUpdated: time.Now(),
		}, nil
	}
	return snapshot, nil
}
