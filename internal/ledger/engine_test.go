package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finstream/finstream/internal/ledger"
	"github.com/finstream/finstream/internal/ledger/store/memory"
	"github.com/finstream/finstream/pkg/models"
)

func newEngine(t *testing.T) *ledger.Engine {
	t.Helper()
	return ledger.NewEngine(memory.NewStore(1000), zap.NewNop())
}

func entry(id, account string, tt models.TransactionType, amount string) models.LedgerEntry {
	return models.LedgerEntry{
		EntryID:         id,
		AccountID:       account,
		TransactionType: tt,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "USD",
	}
}

func TestApplyRejectsInvalidEntries(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		entry models.LedgerEntry
	}{
		{"missing account", entry("e1", "", models.TransactionCredit, "10")},
		{"unknown type", models.LedgerEntry{EntryID: "e2", AccountID: "acct-1", TransactionType: "transfer", Amount: decimal.NewFromInt(10), Currency: "USD"}},
		{"zero amount", entry("e3", "acct-1", models.TransactionCredit, "0")},
		{"negative amount", entry("e4", "acct-1", models.TransactionDebit, "-5")},
		{"missing currency", models.LedgerEntry{EntryID: "e5", AccountID: "acct-1", TransactionType: models.TransactionCredit, Amount: decimal.NewFromInt(10)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Apply(ctx, tc.entry)
			require.Error(t, err)
			assert.ErrorIs(t, err, ledger.ErrValidation)
		})
	}

	// Rejected entries leave no trace.
	balance, err := engine.Balance(ctx, "acct-1", "USD")
	require.NoError(t, err)
	assert.True(t, balance.Balance.IsZero())
}

func TestApplyCreditThenDebit(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	b1, err := engine.Apply(ctx, entry("e1", "acct-1", models.TransactionCredit, "100"))
	require.NoError(t, err)
	assert.True(t, b1.Balance.Equal(decimal.NewFromInt(100)), "got %s", b1.Balance)

	b2, err := engine.Apply(ctx, entry("e2", "acct-1", models.TransactionDebit, "30"))
	require.NoError(t, err)
	assert.True(t, b2.Balance.Equal(decimal.NewFromInt(70)), "got %s", b2.Balance)

	current, err := engine.Balance(ctx, "acct-1", "USD")
	require.NoError(t, err)
	assert.True(t, current.Balance.Equal(decimal.NewFromInt(70)))
}

func TestApplyAllowsNegativeBalance(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	b, err := engine.Apply(ctx, entry("e1", "acct-1", models.TransactionDebit, "25"))
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(decimal.NewFromInt(-25)), "got %s", b.Balance)
}

func TestApplyIsIdempotentUnderRedelivery(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()
	e := entry("e1", "acct-1", models.TransactionCredit, "100")

	b1, err := engine.Apply(ctx, e)
	require.NoError(t, err)
	b2, err := engine.Apply(ctx, e)
	require.NoError(t, err)

	assert.True(t, b1.Balance.Equal(b2.Balance))
	assert.Equal(t, b1.LastUpdated, b2.LastUpdated, "redelivery must return the first application's snapshot")

	current, err := engine.Balance(ctx, "acct-1", "USD")
	require.NoError(t, err)
	assert.True(t, current.Balance.Equal(decimal.NewFromInt(100)))
}

func TestApplySeparatesCurrencies(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	_, err := engine.Apply(ctx, entry("e1", "acct-1", models.TransactionCredit, "100"))
	require.NoError(t, err)

	eur := entry("e2", "acct-1", models.TransactionCredit, "40")
	eur.Currency = "EUR"
	_, err = engine.Apply(ctx, eur)
	require.NoError(t, err)

	usd, err := engine.Balance(ctx, "acct-1", "USD")
	require.NoError(t, err)
	assert.True(t, usd.Balance.Equal(decimal.NewFromInt(100)))

	eurBalance, err := engine.Balance(ctx, "acct-1", "EUR")
	require.NoError(t, err)
	assert.True(t, eurBalance.Balance.Equal(decimal.NewFromInt(40)))
}

func TestApplyMintsEntryID(t *testing.T) {
	engine := newEngine(t)

	e := entry("", "acct-1", models.TransactionCredit, "10")
	b, err := engine.Apply(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(decimal.NewFromInt(10)))
}

func TestConcurrentRedeliverySameEntry(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()
	e := entry("e1", "acct-1", models.TransactionCredit, "100")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Apply(ctx, e)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := engine.Balance(ctx, "acct-1", "USD")
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(100)), "got %s", balance.Balance)
}

func TestConcurrentDistinctAccounts(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		account := fmt.Sprintf("acct-%d", i)
		for j := 0; j < 10; j++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := engine.Apply(ctx, entry(id, account, models.TransactionCredit, "1"))
				assert.NoError(t, err)
			}(fmt.Sprintf("%s-e%d", account, j))
		}
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		balance, err := engine.Balance(ctx, fmt.Sprintf("acct-%d", i), "USD")
		require.NoError(t, err)
		assert.True(t, balance.Balance.Equal(decimal.NewFromInt(10)))
	}
}

func TestBalanceDefaultsToZero(t *testing.T) {
	engine := newEngine(t)

	balance, err := engine.Balance(context.Background(), "unknown", "USD")
	require.NoError(t, err)
	assert.True(t, balance.Balance.IsZero())
	assert.Equal(t, "unknown", balance.AccountID)
	assert.Equal(t, "USD", balance.Currency)
}
