package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/repository/memory"
	"github.com/mamadbah2/broiler/internal/repository/records"
)

// plainStore hides the Decrementer extension so the service falls back to
// its per-item lock.
type plainStore struct {
	records.Store
}

func backends() map[string]func() records.Store {
	return map[string]func() records.Store{
		"atomic": func() records.Store { return memory.NewStore() },
		"locked": func() records.Store { return plainStore{memory.NewStore()} },
	}
}

func seed(t *testing.T, svc *Service, name string, qty, threshold float64) models.InventoryItem {
	t.Helper()
	item, err := svc.AddItem(context.Background(), models.InventoryItem{
		Name:                  name,
		Unit:                  "kg",
		QuantityOnHand:        qty,
		MinimumStockThreshold: threshold,
	})
	require.NoError(t, err)
	return item
}

func TestWithdraw(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewService(newStore(), nil, nil)
			feed := seed(t, svc, "Starter feed", 30, 10)

			_, err := svc.Withdraw(ctx, feed.ID, 50)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrInsufficientStock)

			got, err := svc.Get(ctx, feed.ID)
			require.NoError(t, err)
			assert.Equal(t, 30.0, got.QuantityOnHand)

			got, err = svc.Withdraw(ctx, feed.ID, 20)
			require.NoError(t, err)
			assert.Equal(t, 10.0, got.QuantityOnHand)

			got, err = svc.Withdraw(ctx, feed.ID, 10)
			require.NoError(t, err)
			assert.Equal(t, 0.0, got.QuantityOnHand)
		})
	}
}

func TestWithdrawValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), nil, nil)
	feed := seed(t, svc, "Starter feed", 30, 10)

	for _, amount := range []float64{0, -5} {
		_, err := svc.Withdraw(ctx, feed.ID, amount)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	}

	_, err := svc.Withdraw(ctx, 999, 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewService(newStore(), nil, nil)
			feed := seed(t, svc, "Grower feed", 100, 0)

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
			)
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := svc.Withdraw(ctx, feed.ID, 3); err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
					} else {
						assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
					}
				}()
			}
			wg.Wait()

			got, err := svc.Get(ctx, feed.ID)
			require.NoError(t, err)
			assert.Equal(t, 33, succeeded)
			assert.InDelta(t, 1, got.QuantityOnHand, 1e-9)
		})
	}
}

func TestAdjust(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewService(newStore(), nil, nil)
			feed := seed(t, svc, "Finisher feed", 10, 0)

			got, err := svc.Adjust(ctx, feed.ID, 15)
			require.NoError(t, err)
			assert.Equal(t, 25.0, got.QuantityOnHand)

			got, err = svc.Adjust(ctx, feed.ID, -5)
			require.NoError(t, err)
			assert.Equal(t, 20.0, got.QuantityOnHand)

			_, err = svc.Adjust(ctx, feed.ID, -50)
			assert.ErrorIs(t, err, apperror.ErrInsufficientStock)

			_, err = svc.Adjust(ctx, 404, 1)
			assert.ErrorIs(t, err, apperror.ErrNotFound)
		})
	}
}

func TestFindByName(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), nil, nil)
	starter := seed(t, svc, "Starter Feed", 10, 0)
	seed(t, svc, "Starter Feed Crumble", 10, 0)

	got, ok, err := svc.FindByName(ctx, "  starter ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, starter.ID, got.ID)

	_, ok, err = svc.FindByName(ctx, "vitamin")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = svc.FindByName(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLowStock(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), nil, nil)

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	assert.NotNil(t, low)
	assert.Empty(t, low)

	seed(t, svc, "Starter feed", 5, 10)
	seed(t, svc, "Vitamins", 10, 10)
	seed(t, svc, "Litter", 50, 10)

	low, err = svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Starter feed", low[0].Name)
}

func TestAddItemValidation(t *testing.T) {
	svc := NewService(memory.NewStore(), nil, nil)

	_, err := svc.AddItem(context.Background(), models.InventoryItem{Name: "  "})
	assert.ErrorIs(t, err, apperror.ErrMalformedRecord)

	_, err = svc.AddItem(context.Background(), models.InventoryItem{Name: "Feed", QuantityOnHand: -1})
	assert.ErrorIs(t, err, apperror.ErrMalformedRecord)
}
