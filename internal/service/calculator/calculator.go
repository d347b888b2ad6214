// Package calculator derives the reportable metrics of a production cycle:
// cost breakdown, profit, FCR, mortality rate, cost per kilogram and the
// comparison of sampled weight against the breed growth curve.
package calculator

import (
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/config"
	"github.com/mamadbah2/broiler/internal/domain/breeds"
	"github.com/mamadbah2/broiler/internal/domain/models"
)

const day = 24 * time.Hour

// Calculator is stateless apart from the reference curves and the clock.
type Calculator struct {
	breeds breeds.Table
	logger *zap.Logger
	now    func() time.Time
}

// NewCalculator builds a calculator over the given growth curves.
func NewCalculator(table breeds.Table, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == nil {
		table = breeds.Table{}
	}
	return &Calculator{breeds: table, logger: logger, now: time.Now}
}

// WithClock replaces the clock that ages are measured against.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// Now reads the calculator's clock.
func (c *Calculator) Now() time.Time {
	return c.now()
}

// AgeInDays is the whole number of days elapsed since start. It is negative
// when start lies in the future.
func AgeInDays(start, now time.Time) int {
	return int(math.Floor(float64(now.Sub(start)) / float64(day)))
}

// DaysActive is AgeInDays clamped at zero.
func DaysActive(start, now time.Time) int {
	return max(0, AgeInDays(start, now))
}

// ComputeFinancials derives the cost breakdown and profit of a cycle.
// Feed cost is consumption times the configured price: an estimate, not a
// reconciliation against feed purchases. Vaccine costs are not part of
// MedsCost; they are reported in VaccineCostExcluded.
func (c *Calculator) ComputeFinancials(cycle *models.Cycle, agg models.CycleAggregates, rates config.CostsConfig) (models.FinancialBreakdown, error) {
	if cycle == nil {
		return models.FinancialBreakdown{}, apperror.CycleNotFound(agg.CycleID)
	}
	if err := rates.Validate(); err != nil {
		return models.FinancialBreakdown{}, err
	}

	laborRate := rates.DefaultLaborRatePerBirdPerDay
	if cycle.LaborRatePerBirdPerDay != nil {
		laborRate = *cycle.LaborRatePerBirdPerDay
	}

	daysActive := DaysActive(cycle.StartDate, c.now())

	fin := models.FinancialBreakdown{
		CycleID:    cycle.ID,
		Currency:   rates.Currency,
		DaysActive: daysActive,
		ChickCost:  float64(cycle.InitialBirdCount) * cycle.ChickUnitPrice,
		FeedCost:   agg.TotalFeedKg * rates.FeedPricePerKg,
		MedsCost:   agg.TotalMedicineCost,
		LaborCost:  float64(daysActive) * float64(cycle.CurrentBirdCount) * laborRate,
		MiscCost:   float64(daysActive) * (rates.ElectricityPerDay + rates.RentPerDay),

		TotalRevenue: agg.TotalIncome,

		FeedCostEstimated:   true,
		VaccineCostExcluded: agg.TotalVaccineCost,
		ManualExpenses:      agg.TotalExpenseEntries,

		TotalFeedKg:      agg.TotalFeedKg,
		TotalWaterLiters: agg.TotalWaterLiters,
		TotalMortality:   agg.TotalMortality,
	}
	fin.TotalCost = fin.ChickCost + fin.FeedCost + fin.MedsCost + fin.LaborCost + fin.MiscCost
	fin.Profit = fin.TotalRevenue - fin.TotalCost

	c.logger.Debug("financials computed",
		zap.Int64("cycle_id", cycle.ID),
		zap.Float64("total_cost", fin.TotalCost),
		zap.Float64("profit", fin.Profit))
	return fin, nil
}

// ComputeKPIs derives the performance indicators of a cycle. Zero produced
// weight yields FCR and cost per kg of 0. A breed or age outside the growth
// table yields ExpectedWeightKnown=false and zero expected weight.
func (c *Calculator) ComputeKPIs(cycle *models.Cycle, fin models.FinancialBreakdown, agg models.CycleAggregates) (models.KPIReport, error) {
	if cycle == nil {
		return models.KPIReport{}, apperror.CycleNotFound(agg.CycleID)
	}
	if cycle.InitialBirdCount <= 0 {
		return models.KPIReport{}, apperror.InvalidConfiguration("initial_bird_count",
			"must be positive to compute a mortality rate").WithDetail("cycle_id", formatID(cycle.ID))
	}

	ageDays := DaysActive(cycle.StartDate, c.now())
	totalWeightKg := float64(cycle.CurrentBirdCount) * (agg.CurrentWeightGrams / 1000)

	report := models.KPIReport{
		CycleID:              cycle.ID,
		CycleName:            cycle.Name,
		Breed:                cycle.Breed,
		AgeDays:              ageDays,
		CurrentWeightGrams:   agg.CurrentWeightGrams,
		CurrentWeightKg:      agg.CurrentWeightGrams / 1000,
		TotalWeightKg:        totalWeightKg,
		MortalityRatePercent: float64(agg.TotalMortality) / float64(cycle.InitialBirdCount) * 100,
		Profit:               fin.Profit,
		TotalCost:            fin.TotalCost,
		TotalRevenue:         fin.TotalRevenue,
		GrowthCurve:          c.breeds.Curve(cycle.Breed),
	}

	if totalWeightKg > 0 {
		report.FCR = agg.TotalFeedKg / totalWeightKg
		report.CostPerKg = fin.TotalCost / totalWeightKg
	}

	if expected, ok := c.breeds.Expected(cycle.Breed, ageDays); ok {
		report.ExpectedWeightKnown = true
		report.ExpectedWeightGrams = expected
		report.ExpectedWeightKg = float64(expected) / 1000
		if expected > 0 && agg.CurrentWeightGrams > 0 {
			deviation := (agg.CurrentWeightGrams - float64(expected)) / float64(expected) * 100
			report.WeightDeviationPercent = &deviation
		}
	}

	return report, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
