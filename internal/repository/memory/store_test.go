package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/repository/records"
	"github.com/mamadbah2/broiler/internal/repository/records/recordstest"
)

func TestStoreConformance(t *testing.T) {
	recordstest.Run(t, func(t *testing.T) records.Store { return NewStore() })
}

func TestSnapshotIgnoresLaterWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, err := s.Add(ctx, "logs", &recordstest.Item{CycleID: 1})
	require.NoError(t, err)

	err = s.ReadSnapshot(ctx, func(ctx context.Context, r records.Reader) error {
		_, err := s.Add(ctx, "logs", &recordstest.Item{CycleID: 1})
		require.NoError(t, err)

		var got []recordstest.Item
		require.NoError(t, r.GetAllByIndex(ctx, "logs", "cycle_id", int64(1), &got))
		assert.Len(t, got, 1)
		return nil
	})
	require.NoError(t, err)

	var live []recordstest.Item
	require.NoError(t, s.GetAll(ctx, "logs", &live))
	assert.Len(t, live, 2)
}

func TestSnapshotIsReadOnly(t *testing.T) {
	s := NewStore()
	err := s.ReadSnapshot(context.Background(), func(ctx context.Context, r records.Reader) error {
		frozen := r.(*Store)
		_, err := frozen.Add(ctx, "logs", &recordstest.Item{})
		return err
	})
	assert.Error(t, err)
}

func TestStoredDocumentsAreNotAliased(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	item := &recordstest.Item{Name: "starter", Quantity: 10}
	_, err := s.Add(ctx, "items", item)
	require.NoError(t, err)

	item.Quantity = 999

	var got recordstest.Item
	require.NoError(t, s.Get(ctx, "items", item.ID, &got))
	assert.Equal(t, 10.0, got.Quantity)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStore().Add(ctx, "items", &recordstest.Item{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReportArchive(t *testing.T) {
	ctx := context.Background()
	a := NewReportArchive()
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, a.SaveCycleReport(ctx, models.CycleReport{
			ID:          string(rune('a' + i)),
			CycleID:     4,
			GeneratedAt: base.AddDate(0, 0, i),
		}))
	}
	require.NoError(t, a.SaveCycleReport(ctx, models.CycleReport{ID: "other", CycleID: 5, GeneratedAt: base}))

	got, err := a.ListCycleReports(ctx, 4, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	none, err := a.ListCycleReports(ctx, 9, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
