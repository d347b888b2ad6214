package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/config"
	"github.com/mamadbah2/broiler/internal/domain/breeds"
	"github.com/mamadbah2/broiler/internal/domain/models"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestCalculator() *Calculator {
	return NewCalculator(breeds.Default(), nil).WithClock(func() time.Time { return now })
}

func rates() config.CostsConfig {
	return config.CostsConfig{
		Currency:                      "SAR",
		FeedPricePerKg:                2,
		DefaultLaborRatePerBirdPerDay: 0.01,
		ElectricityPerDay:             50,
	}
}

func scenarioCycle() models.Cycle {
	return models.Cycle{
		ID:               1,
		Name:             "House A",
		Breed:            "Ross 308",
		StartDate:        now.AddDate(0, 0, -10),
		InitialBirdCount: 1000,
		CurrentBirdCount: 980,
		ChickUnitPrice:   3.5,
		Status:           models.CycleActive,
	}
}

func TestAgeInDays(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		want  int
	}{
		{name: "same instant", start: now, want: 0},
		{name: "just under a day", start: now.Add(-23 * time.Hour), want: 0},
		{name: "ten days", start: now.AddDate(0, 0, -10), want: 10},
		{name: "future start floors down", start: now.Add(36 * time.Hour), want: -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgeInDays(tt.start, now))
			assert.Equal(t, max(0, tt.want), DaysActive(tt.start, now))
		})
	}
}

func TestEndToEndScenario(t *testing.T) {
	calc := newTestCalculator()
	cycle := scenarioCycle()
	agg := models.CycleAggregates{
		CycleID:        1,
		TotalFeedKg:    1500,
		TotalMortality: 20,
		TotalIncome:    8000,
	}

	fin, err := calc.ComputeFinancials(&cycle, agg, rates())
	require.NoError(t, err)

	assert.InDelta(t, 3500, fin.ChickCost, 1e-9)
	assert.InDelta(t, 3000, fin.FeedCost, 1e-9)
	assert.InDelta(t, 98, fin.LaborCost, 1e-9)
	assert.InDelta(t, 500, fin.MiscCost, 1e-9)
	assert.InDelta(t, 0, fin.MedsCost, 1e-9)
	assert.InDelta(t, 7098, fin.TotalCost, 1e-9)
	assert.InDelta(t, 8000, fin.TotalRevenue, 1e-9)
	assert.InDelta(t, 902, fin.Profit, 1e-9)
	assert.Equal(t, 10, fin.DaysActive)
	assert.True(t, fin.FeedCostEstimated)

	kpis, err := calc.ComputeKPIs(&cycle, fin, agg)
	require.NoError(t, err)
	assert.InDelta(t, 2.00, kpis.MortalityRatePercent, 1e-9)
	assert.Equal(t, 10, kpis.AgeDays)
	assert.InDelta(t, 902, kpis.Profit, 1e-9)
}

func TestZeroState(t *testing.T) {
	calc := newTestCalculator()
	cycle := scenarioCycle()
	cycle.CurrentBirdCount = 1000
	agg := models.CycleAggregates{CycleID: 1}

	fin, err := calc.ComputeFinancials(&cycle, agg, rates())
	require.NoError(t, err)

	wantTotal := 3500 + 10*(1000*0.01+50)
	assert.InDelta(t, wantTotal, fin.TotalCost, 1e-9)
	assert.Equal(t, 0.0, fin.TotalRevenue)
	assert.InDelta(t, -wantTotal, fin.Profit, 1e-9)

	kpis, err := calc.ComputeKPIs(&cycle, fin, agg)
	require.NoError(t, err)
	assert.Equal(t, 0.0, kpis.FCR)
	assert.Equal(t, 0.0, kpis.CostPerKg)
	assert.Equal(t, 0.0, kpis.MortalityRatePercent)
}

func TestDivisionGuards(t *testing.T) {
	calc := newTestCalculator()
	tests := []struct {
		name   string
		birds  int
		weight float64
	}{
		{name: "no weight", birds: 980, weight: 0},
		{name: "no birds", birds: 0, weight: 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycle := scenarioCycle()
			cycle.CurrentBirdCount = tt.birds
			agg := models.CycleAggregates{CycleID: 1, TotalFeedKg: 1500, CurrentWeightGrams: tt.weight}

			fin, err := calc.ComputeFinancials(&cycle, agg, rates())
			require.NoError(t, err)
			kpis, err := calc.ComputeKPIs(&cycle, fin, agg)
			require.NoError(t, err)

			assert.Equal(t, 0.0, kpis.FCR)
			assert.Equal(t, 0.0, kpis.CostPerKg)
			assert.False(t, math.IsNaN(kpis.FCR) || math.IsInf(kpis.CostPerKg, 0))
		})
	}
}

func TestFCRAndCostPerKg(t *testing.T) {
	calc := newTestCalculator()
	cycle := scenarioCycle()
	cycle.CurrentBirdCount = 1000
	agg := models.CycleAggregates{CycleID: 1, TotalFeedKg: 1500, CurrentWeightGrams: 1000}

	fin, err := calc.ComputeFinancials(&cycle, agg, rates())
	require.NoError(t, err)
	kpis, err := calc.ComputeKPIs(&cycle, fin, agg)
	require.NoError(t, err)

	assert.InDelta(t, 1000, kpis.TotalWeightKg, 1e-9)
	assert.InDelta(t, 1.5, kpis.FCR, 1e-9)
	assert.InDelta(t, fin.TotalCost/1000, kpis.CostPerKg, 1e-9)
	assert.InDelta(t, 1.0, kpis.CurrentWeightKg, 1e-9)
}

func TestUnknownBreedFallback(t *testing.T) {
	calc := newTestCalculator()
	cycle := scenarioCycle()
	cycle.Breed = "Unknown Breed"
	agg := models.CycleAggregates{CycleID: 1, CurrentWeightGrams: 700}

	fin, err := calc.ComputeFinancials(&cycle, agg, rates())
	require.NoError(t, err)
	kpis, err := calc.ComputeKPIs(&cycle, fin, agg)
	require.NoError(t, err)

	assert.False(t, kpis.ExpectedWeightKnown)
	assert.Equal(t, 0, kpis.ExpectedWeightGrams)
	assert.Equal(t, 0.0, kpis.ExpectedWeightKg)
	assert.Nil(t, kpis.WeightDeviationPercent)
	assert.NotNil(t, kpis.GrowthCurve)
	assert.Empty(t, kpis.GrowthCurve)
}

func TestOutOfRangeAge(t *testing.T) {
	calc := newTestCalculator()
	cycle := scenarioCycle()
	cycle.StartDate = now.AddDate(0, 0, -100)
	agg := models.CycleAggregates{CycleID: 1, CurrentWeightGrams: 3000}

	fin, err := calc.ComputeFinancials(&cycle, agg, rates())
	require.NoError(t, err)
	kpis, err := calc.ComputeKPIs(&cycle, fin, agg)
	require.NoError(t, err)

	assert.Equal(t, 100, kpis.AgeDays)
	assert.False(t, kpis.ExpectedWeightKnown)
	assert.Equal(t, 0, kpis.ExpectedWeightGrams)
	assert.Len(t, kpis.GrowthCurve, 41)
}

func TestExpectedWeightAndDeviation(t *testing.T) {
	calc := newTestCalculator()
	cycle := scenarioCycle()
	// Ross 308 expects 640 g on day 10.
	agg := models.CycleAggregates{CycleID: 1, CurrentWeightGrams: 704}

	fin, err := calc.ComputeFinancials(&cycle, agg, rates())
	require.NoError(t, err)
	kpis, err := calc.ComputeKPIs(&cycle, fin, agg)
	require.NoError(t, err)

	assert.True(t, kpis.ExpectedWeightKnown)
	assert.Equal(t, 640, kpis.ExpectedWeightGrams)
	assert.InDelta(t, 0.64, kpis.ExpectedWeightKg, 1e-9)
	require.NotNil(t, kpis.WeightDeviationPercent)
	assert.InDelta(t, 10, *kpis.WeightDeviationPercent, 1e-9)
}

func TestFutureStartClampsAge(t *testing.T) {
	calc := newTestCalculator()
	cycle := scenarioCycle()
	cycle.StartDate = now.AddDate(0, 0, 3)
	agg := models.CycleAggregates{CycleID: 1}

	fin, err := calc.ComputeFinancials(&cycle, agg, rates())
	require.NoError(t, err)
	assert.Equal(t, 0, fin.DaysActive)
	assert.Equal(t, 0.0, fin.LaborCost)
	assert.Equal(t, 0.0, fin.MiscCost)

	kpis, err := calc.ComputeKPIs(&cycle, fin, agg)
	require.NoError(t, err)
	assert.Equal(t, 0, kpis.AgeDays)
}

func TestPerCycleLaborRateOverride(t *testing.T) {
	calc := newTestCalculator()
	cycle := scenarioCycle()
	rate := 0.02
	cycle.LaborRatePerBirdPerDay = &rate

	fin, err := calc.ComputeFinancials(&cycle, models.CycleAggregates{CycleID: 1}, rates())
	require.NoError(t, err)
	assert.InDelta(t, 10*980*0.02, fin.LaborCost, 1e-9)
}

func TestRentIsPartOfMisc(t *testing.T) {
	calc := newTestCalculator()
	cycle := scenarioCycle()
	r := rates()
	r.RentPerDay = 25

	fin, err := calc.ComputeFinancials(&cycle, models.CycleAggregates{CycleID: 1}, r)
	require.NoError(t, err)
	assert.InDelta(t, 750, fin.MiscCost, 1e-9)
}

func TestVaccineCostIsExcluded(t *testing.T) {
	calc := newTestCalculator()
	cycle := scenarioCycle()
	agg := models.CycleAggregates{CycleID: 1, TotalMedicineCost: 120, TotalVaccineCost: 80}

	fin, err := calc.ComputeFinancials(&cycle, agg, rates())
	require.NoError(t, err)
	assert.Equal(t, 120.0, fin.MedsCost)
	assert.Equal(t, 80.0, fin.VaccineCostExcluded)
	assert.InDelta(t, fin.ChickCost+fin.LaborCost+fin.MiscCost+120, fin.TotalCost, 1e-9)
}

func TestFailures(t *testing.T) {
	calc := newTestCalculator()

	_, err := calc.ComputeFinancials(nil, models.CycleAggregates{CycleID: 9}, rates())
	assert.ErrorIs(t, err, apperror.ErrCycleNotFound)

	_, err = calc.ComputeKPIs(nil, models.FinancialBreakdown{}, models.CycleAggregates{CycleID: 9})
	assert.ErrorIs(t, err, apperror.ErrCycleNotFound)

	cycle := scenarioCycle()
	bad := rates()
	bad.FeedPricePerKg = 0
	_, err = calc.ComputeFinancials(&cycle, models.CycleAggregates{}, bad)
	assert.ErrorIs(t, err, apperror.ErrInvalidConfiguration)

	bad = rates()
	bad.ElectricityPerDay = math.NaN()
	_, err = calc.ComputeFinancials(&cycle, models.CycleAggregates{}, bad)
	assert.ErrorIs(t, err, apperror.ErrInvalidConfiguration)

	cycle.InitialBirdCount = 0
	cycle.CurrentBirdCount = 0
	_, err = calc.ComputeKPIs(&cycle, models.FinancialBreakdown{}, models.CycleAggregates{})
	assert.ErrorIs(t, err, apperror.ErrInvalidConfiguration)
}
