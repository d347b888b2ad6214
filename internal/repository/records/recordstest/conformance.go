// Package recordstest checks that a records.Store backend honours the
// contract the services rely on.
package recordstest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/repository/records"
)

// Item is the document type used by the conformance checks.
type Item struct {
	ID       int64   `json:"id" bson:"_id"`
	CycleID  int64   `json:"cycle_id" bson:"cycle_id"`
	Name     string  `json:"name" bson:"name"`
	Quantity float64 `json:"quantity_on_hand" bson:"quantity_on_hand"`
}

func (i *Item) GetID() int64   { return i.ID }
func (i *Item) SetID(id int64) { i.ID = id }

// textItem stores quantity_on_hand as text, a shape Item cannot decode.
type textItem struct {
	ID       int64  `json:"id" bson:"_id"`
	Name     string `json:"name" bson:"name"`
	Quantity string `json:"quantity_on_hand" bson:"quantity_on_hand"`
}

func (i *textItem) GetID() int64   { return i.ID }
func (i *textItem) SetID(id int64) { i.ID = id }

// Run executes every check against stores built by newStore. Each check
// gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) records.Store) {
	t.Run("ids increase per collection", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		for want := int64(1); want <= 3; want++ {
			item := &Item{Name: "feed"}
			id, err := s.Add(ctx, "items", item)
			require.NoError(t, err)
			assert.Equal(t, want, id)
			assert.Equal(t, want, item.ID)
		}

		id, err := s.Add(ctx, "others", &Item{Name: "first"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
	})

	t.Run("get and update", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		item := &Item{Name: "starter", Quantity: 40}
		_, err := s.Add(ctx, "items", item)
		require.NoError(t, err)

		item.Quantity = 25
		require.NoError(t, s.Update(ctx, "items", item))

		var got Item
		require.NoError(t, s.Get(ctx, "items", item.ID, &got))
		assert.Equal(t, *item, got)
	})

	t.Run("missing documents", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var got Item
		assert.True(t, errors.Is(s.Get(ctx, "items", 99, &got), records.ErrNotFound))
		assert.True(t, errors.Is(s.Update(ctx, "items", &Item{ID: 99}), records.ErrNotFound))
	})

	t.Run("get all of an empty collection", func(t *testing.T) {
		s := newStore(t)

		var got []Item
		require.NoError(t, s.GetAll(context.Background(), "nothing", &got))
		assert.Empty(t, got)
	})

	t.Run("get all by index", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		for _, cycle := range []int64{1, 2, 1, 3, 1} {
			_, err := s.Add(ctx, "logs", &Item{CycleID: cycle})
			require.NoError(t, err)
		}

		var got []Item
		require.NoError(t, s.GetAllByIndex(ctx, "logs", "cycle_id", int64(1), &got))
		ids := make([]int64, 0, len(got))
		for _, it := range got {
			assert.Equal(t, int64(1), it.CycleID)
			ids = append(ids, it.ID)
		}
		assert.ElementsMatch(t, []int64{1, 3, 5}, ids)

		var ptrs []*Item
		require.NoError(t, s.GetAllByIndex(ctx, "logs", "cycle_id", int64(3), &ptrs))
		require.Len(t, ptrs, 1)
		assert.Equal(t, int64(4), ptrs[0].ID)
	})

	t.Run("concurrent adds get distinct ids", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		const n = 20
		ids := make(chan int64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := s.Add(ctx, "items", &Item{Name: "x"})
				assert.NoError(t, err)
				ids <- id
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[int64]bool)
		for id := range ids {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
		assert.Len(t, seen, n)
	})

	t.Run("snapshot reads", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		snap, ok := s.(records.SnapshotReader)
		if !ok {
			t.Skip("store has no snapshot support")
		}

		_, err := s.Add(ctx, "logs", &Item{CycleID: 7, Name: "a"})
		require.NoError(t, err)

		err = snap.ReadSnapshot(ctx, func(ctx context.Context, r records.Reader) error {
			var got []Item
			if err := r.GetAllByIndex(ctx, "logs", "cycle_id", int64(7), &got); err != nil {
				return err
			}
			assert.Len(t, got, 1)
			var one Item
			return r.Get(ctx, "logs", got[0].ID, &one)
		})
		require.NoError(t, err)
	})

	t.Run("mistyped field is a malformed record", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.Add(ctx, "items", &Item{Name: "starter", Quantity: 10})
		require.NoError(t, err)
		id, err := s.Add(ctx, "items", &textItem{Name: "grower", Quantity: "12.5"})
		require.NoError(t, err)

		assertMalformed := func(t *testing.T, err error) {
			t.Helper()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrMalformedRecord), "got %v", err)
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "items", appErr.Details["collection"])
			assert.Equal(t, fmt.Sprint(id), appErr.Details["id"])
			assert.Equal(t, "quantity_on_hand", appErr.Details["field"])
		}

		var one Item
		assertMalformed(t, s.Get(ctx, "items", id, &one))

		var all []Item
		assertMalformed(t, s.GetAll(ctx, "items", &all))
		assertMalformed(t, s.GetAllByIndex(ctx, "items", "name", "grower", &all))
	})

	t.Run("conditional decrement", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		dec, ok := s.(records.Decrementer)
		if !ok {
			t.Skip("store has no atomic decrement")
		}

		item := &Item{Name: "finisher", Quantity: 30}
		_, err := s.Add(ctx, "items", item)
		require.NoError(t, err)

		err = dec.DecrementIfAtLeast(ctx, "items", item.ID, "quantity_on_hand", 50)
		assert.True(t, errors.Is(err, records.ErrInsufficient))
		assert.Equal(t, 30.0, quantity(t, s, item.ID))

		require.NoError(t, dec.DecrementIfAtLeast(ctx, "items", item.ID, "quantity_on_hand", 20))
		assert.Equal(t, 10.0, quantity(t, s, item.ID))

		require.NoError(t, dec.DecrementIfAtLeast(ctx, "items", item.ID, "quantity_on_hand", -5))
		assert.Equal(t, 15.0, quantity(t, s, item.ID))

		require.NoError(t, dec.DecrementIfAtLeast(ctx, "items", item.ID, "quantity_on_hand", 15))
		assert.Equal(t, 0.0, quantity(t, s, item.ID))

		err = dec.DecrementIfAtLeast(ctx, "items", 42, "quantity_on_hand", 1)
		assert.True(t, errors.Is(err, records.ErrNotFound))
	})
}

func quantity(t *testing.T, s records.Reader, id int64) float64 {
	t.Helper()
	var got Item
	require.NoError(t, s.Get(context.Background(), "items", id, &got))
	return got.Quantity
}
