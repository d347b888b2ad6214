package aggregation

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/repository/memory"
)

func seedCycle(t *testing.T, store *memory.Store) models.Cycle {
	t.Helper()
	cycle := models.Cycle{
		Name:                      "House A",
		Breed:                     "Ross 308",
		StartDate:                 time.Now().AddDate(0, 0, -10),
		InitialBirdCount:          1000,
		CurrentBirdCount:          980,
		ChickUnitPrice:            3.5,
		CurrentAverageWeightGrams: 450,
		Status:                    models.CycleActive,
	}
	_, err := store.Add(context.Background(), models.CollectionCycles, &cycle)
	require.NoError(t, err)
	return cycle
}

func TestAggregateSumsCycleRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cycle := seedCycle(t, store)
	other := seedCycle(t, store)

	for _, l := range []models.DailyLogEntry{
		{CycleID: cycle.ID, MortalityCount: 5, FeedKg: 500, WaterLiters: 900},
		{CycleID: cycle.ID, MortalityCount: 15, FeedKg: 1000, WaterLiters: 1800, SampledWeightGrams: 600},
		{CycleID: other.ID, MortalityCount: 99, FeedKg: 999},
	} {
		_, err := store.Add(ctx, models.CollectionDailyLogs, &l)
		require.NoError(t, err)
	}
	for _, h := range []models.HealthRecord{
		{CycleID: cycle.ID, Kind: models.HealthMedicine, Name: "Amoxicillin", Cost: 120},
		{CycleID: cycle.ID, Kind: models.HealthVaccine, Name: "Gumboro", Cost: 80},
	} {
		_, err := store.Add(ctx, models.CollectionHealthRecords, &h)
		require.NoError(t, err)
	}
	for _, tx := range []models.FinancialTransaction{
		{CycleID: cycle.ID, Type: models.TransactionIncome, Amount: 8000},
		{CycleID: cycle.ID, Type: models.TransactionExpense, Amount: 300},
	} {
		_, err := store.Add(ctx, models.CollectionFinancial, &tx)
		require.NoError(t, err)
	}

	agg, err := NewEngine(store, nil, zap.NewNop()).Aggregate(ctx, cycle.ID)
	require.NoError(t, err)

	assert.Equal(t, models.CycleAggregates{
		CycleID:             cycle.ID,
		LogCount:            2,
		TotalFeedKg:         1500,
		TotalWaterLiters:    2700,
		TotalMortality:      20,
		TotalMedicineCost:   120,
		TotalVaccineCost:    80,
		TotalIncome:         8000,
		TotalExpenseEntries: 300,
		CurrentWeightGrams:  600,
	}, agg)
}

func TestAggregateZeroState(t *testing.T) {
	store := memory.NewStore()
	cycle := seedCycle(t, store)

	agg, err := NewEngine(store, nil, nil).Aggregate(context.Background(), cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, agg.TotalFeedKg)
	assert.Equal(t, 0, agg.TotalMortality)
	assert.Equal(t, 0.0, agg.TotalIncome)
	assert.Equal(t, 450.0, agg.CurrentWeightGrams, "falls back to the cycle's stored weight")
}

func TestAggregateUnknownCycle(t *testing.T) {
	_, err := NewEngine(memory.NewStore(), nil, nil).Aggregate(context.Background(), 42)
	assert.ErrorIs(t, err, apperror.ErrCycleNotFound)
}

func TestAggregateRejectsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cycle := seedCycle(t, store)

	bad := models.HealthRecord{CycleID: cycle.ID, Kind: "vitamin", Name: "C", Cost: 10}
	_, err := store.Add(ctx, models.CollectionHealthRecords, &bad)
	require.NoError(t, err)

	_, err = NewEngine(store, nil, nil).Aggregate(ctx, cycle.ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeMalformedRecord, appErr.Code)
	assert.Equal(t, models.CollectionHealthRecords, appErr.Details["collection"])
	assert.Equal(t, "kind", appErr.Details["field"])
}

// textFeedLog is a daily log written with feed_kg as text.
type textFeedLog struct {
	ID      int64  `json:"id"`
	CycleID int64  `json:"cycle_id"`
	FeedKg  string `json:"feed_kg"`
}

func (l *textFeedLog) GetID() int64   { return l.ID }
func (l *textFeedLog) SetID(id int64) { l.ID = id }

func TestAggregateRejectsUndecodableRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cycle := seedCycle(t, store)

	bad := textFeedLog{CycleID: cycle.ID, FeedKg: "12.5"}
	_, err := store.Add(ctx, models.CollectionDailyLogs, &bad)
	require.NoError(t, err)

	_, err = NewEngine(store, nil, nil).Aggregate(ctx, cycle.ID)
	assert.ErrorIs(t, err, apperror.ErrMalformedRecord)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CollectionDailyLogs, appErr.Details["collection"])
	assert.Equal(t, fmt.Sprint(bad.ID), appErr.Details["id"])
	assert.Equal(t, "feed_kg", appErr.Details["field"])
	assert.Equal(t, 422, apperror.From(err).HTTPStatus)
}

func TestFoldIsOrderIndependent(t *testing.T) {
	cycle := models.Cycle{ID: 1, CurrentAverageWeightGrams: 100}
	logs := make([]models.DailyLogEntry, 0, 40)
	for i := 1; i <= 40; i++ {
		logs = append(logs, models.DailyLogEntry{
			ID:             int64(i),
			CycleID:        1,
			FeedKg:         float64(i) * 0.1,
			WaterLiters:    float64(i) * 0.3,
			MortalityCount: i % 3,
		})
	}

	want, err := Fold(cycle, logs, nil, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 10; round++ {
		shuffled := append([]models.DailyLogEntry(nil), logs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := Fold(cycle, shuffled, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFoldLatestWeightIsHighestID(t *testing.T) {
	cycle := models.Cycle{ID: 1}
	logs := []models.DailyLogEntry{
		{ID: 3, CycleID: 1, SampledWeightGrams: 1200},
		{ID: 1, CycleID: 1, SampledWeightGrams: 900},
		{ID: 2, CycleID: 1},
	}

	for _, order := range [][]int{{0, 1, 2}, {1, 2, 0}, {2, 0, 1}} {
		in := []models.DailyLogEntry{logs[order[0]], logs[order[1]], logs[order[2]]}
		agg, err := Fold(cycle, in, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1200.0, agg.CurrentWeightGrams)
	}
}

func TestFoldRejectsForeignRecords(t *testing.T) {
	_, err := Fold(models.Cycle{ID: 1}, []models.DailyLogEntry{{ID: 1, CycleID: 2}}, nil, nil)
	assert.ErrorIs(t, err, apperror.ErrMalformedRecord)
}

func TestSnapshotReturnsCycleAndAggregates(t *testing.T) {
	store := memory.NewStore()
	cycle := seedCycle(t, store)

	got, agg, err := NewEngine(store, nil, nil).Snapshot(context.Background(), cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, cycle.ID, got.ID)
	assert.Equal(t, cycle.ID, agg.CycleID)
}
