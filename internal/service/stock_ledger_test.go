package service

import (
	"context"
	"sync"
	"testing"

	"commerce-core/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerFixture(t *testing.T, available int) (*StockLedger, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	repo.addProduct(models.Product{
		ID:                1,
		Name:              "widget",
		UnitPrice:         decimal.RequireFromString("1000.00"),
		AvailableQuantity: available,
		IsPurchasable:     available > 0,
	})
	return NewStockLedger(), repo
}

func TestReserveDecrementsStock(t *testing.T) {
	ledger, repo := newLedgerFixture(t, 10)

	err := repo.InTx(context.Background(), func(tx models.Tx) error {
		return ledger.Reserve(context.Background(), tx, 1, 3)
	})
	require.NoError(t, err)

	product := repo.product(1)
	assert.Equal(t, 7, product.AvailableQuantity)
	assert.True(t, product.IsPurchasable)
}

func TestReserveInsufficientStock(t *testing.T) {
	ledger, repo := newLedgerFixture(t, 2)

	err := repo.InTx(context.Background(), func(tx models.Tx) error {
		return ledger.Reserve(context.Background(), tx, 1, 5)
	})
	require.Error(t, err)

	ise, ok := models.AsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, int64(1), ise.ProductID)
	assert.Equal(t, 5, ise.Requested)
	assert.Equal(t, 2, ise.Available)

	// a failed reservation mutates nothing
	assert.Equal(t, 2, repo.product(1).AvailableQuantity)
}

func TestReserveClearsPurchasabilityAtZero(t *testing.T) {
	ledger, repo := newLedgerFixture(t, 4)

	err := repo.InTx(context.Background(), func(tx models.Tx) error {
		return ledger.Reserve(context.Background(), tx, 1, 4)
	})
	require.NoError(t, err)

	product := repo.product(1)
	assert.Equal(t, 0, product.AvailableQuantity)
	assert.False(t, product.IsPurchasable)
}

func TestReleaseRestoresPurchasability(t *testing.T) {
	ledger, repo := newLedgerFixture(t, 0)
	require.False(t, repo.product(1).IsPurchasable)

	err := repo.InTx(context.Background(), func(tx models.Tx) error {
		return ledger.Release(context.Background(), tx, 1, 2)
	})
	require.NoError(t, err)

	product := repo.product(1)
	assert.Equal(t, 2, product.AvailableQuantity)
	assert.True(t, product.IsPurchasable)
}

// Stock conservation: concurrent reserve/release never drives availability
// negative, and the final count reflects exactly the net reserved quantity.
func TestStockConservationUnderConcurrency(t *testing.T) {
	const initial = 50
	ledger, repo := newLedgerFixture(t, initial)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.InTx(context.Background(), func(tx models.Tx) error {
				return ledger.Reserve(context.Background(), tx, 1, 2)
			})
			if err == nil {
				mu.Lock()
				reserved += 2
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.InTx(context.Background(), func(tx models.Tx) error {
				return ledger.Release(context.Background(), tx, 1, 1)
			})
			if err == nil {
				mu.Lock()
				reserved--
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	product := repo.product(1)
	assert.Equal(t, initial-reserved, product.AvailableQuantity)
	assert.GreaterOrEqual(t, product.AvailableQuantity, 0)
}
