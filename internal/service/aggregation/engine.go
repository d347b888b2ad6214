// Package aggregation folds the raw records of one production cycle into
// summed quantities. It applies no unit conversion or business rules.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/metrics"
	"github.com/mamadbah2/broiler/internal/repository/records"
)

// Engine reads a cycle's logs, health records and transactions and sums them.
type Engine struct {
	store   records.Reader
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewEngine wires a new aggregation engine.
func NewEngine(store records.Reader, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, metrics: m, logger: logger}
}

// Aggregate returns the sums for the given cycle.
func (e *Engine) Aggregate(ctx context.Context, cycleID int64) (models.CycleAggregates, error) {
	_, agg, err := e.Snapshot(ctx, cycleID)
	return agg, err
}

// Snapshot returns the cycle together with its aggregates, both read from
// the same store snapshot when the backend supports it.
func (e *Engine) Snapshot(ctx context.Context, cycleID int64) (models.Cycle, models.CycleAggregates, error) {
	start := time.Now()

	var (
		cycle models.Cycle
		agg   models.CycleAggregates
	)
	err := records.View(ctx, e.store, func(ctx context.Context, r records.Reader) error {
		var err error
		cycle, err = LoadCycle(ctx, r, cycleID)
		if err != nil {
			return err
		}

		var logs []models.DailyLogEntry
		if err := r.GetAllByIndex(ctx, models.CollectionDailyLogs, models.IndexCycleID, cycleID, &logs); err != nil {
			return fmt.Errorf("load daily logs: %w", err)
		}
		var health []models.HealthRecord
		if err := r.GetAllByIndex(ctx, models.CollectionHealthRecords, models.IndexCycleID, cycleID, &health); err != nil {
			return fmt.Errorf("load health records: %w", err)
		}
		var txns []models.FinancialTransaction
		if err := r.GetAllByIndex(ctx, models.CollectionFinancial, models.IndexCycleID, cycleID, &txns); err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}

		agg, err = Fold(cycle, logs, health, txns)
		return err
	})

	e.metrics.ObserveAggregation(time.Since(start), err)
	if err != nil {
		e.logger.Warn("cycle aggregation failed", zap.Int64("cycle_id", cycleID), zap.Error(err))
		return models.Cycle{}, models.CycleAggregates{}, err
	}

	e.logger.Debug("cycle aggregated",
		zap.Int64("cycle_id", cycleID),
		zap.Int("logs", agg.LogCount),
		zap.Float64("feed_kg", agg.TotalFeedKg),
		zap.Duration("duration", time.Since(start)))
	return cycle, agg, nil
}

// LoadCycle fetches and validates one cycle.
func LoadCycle(ctx context.Context, r records.Reader, cycleID int64) (models.Cycle, error) {
	var cycle models.Cycle
	if err := r.Get(ctx, models.CollectionCycles, cycleID, &cycle); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return models.Cycle{}, apperror.CycleNotFound(cycleID)
		}
		return models.Cycle{}, fmt.Errorf("load cycle %d: %w", cycleID, err)
	}
	if err := cycle.Validate(); err != nil {
		return models.Cycle{}, err
	}
	return cycle, nil
}

// Fold sums the records of one cycle. Every record is validated first;
// absent optional numbers are already zero. Records are summed in id order
// so the float totals are bit-identical whatever order the store returns.
func Fold(cycle models.Cycle, logs []models.DailyLogEntry, health []models.HealthRecord, txns []models.FinancialTransaction) (models.CycleAggregates, error) {
	logs = sortedByID(logs, func(l models.DailyLogEntry) int64 { return l.ID })
	health = sortedByID(health, func(h models.HealthRecord) int64 { return h.ID })
	txns = sortedByID(txns, func(t models.FinancialTransaction) int64 { return t.ID })

	agg := models.CycleAggregates{CycleID: cycle.ID, LogCount: len(logs)}

	var latestSample *models.DailyLogEntry
	for i := range logs {
		l := &logs[i]
		if err := l.Validate(); err != nil {
			return models.CycleAggregates{}, err
		}
		if l.CycleID != cycle.ID {
			return models.CycleAggregates{}, apperror.MalformedRecord(models.CollectionDailyLogs, l.ID, "cycle_id", "does not match the aggregated cycle")
		}
		agg.TotalFeedKg += l.FeedKg
		agg.TotalWaterLiters += l.WaterLiters
		agg.TotalMortality += l.MortalityCount
		if l.HasWeightSample() && (latestSample == nil || l.ID > latestSample.ID) {
			latestSample = l
		}
	}

	for i := range health {
		h := &health[i]
		if err := h.Validate(); err != nil {
			return models.CycleAggregates{}, err
		}
		switch h.Kind {
		case models.HealthMedicine:
			agg.TotalMedicineCost += h.Cost
		case models.HealthVaccine:
			agg.TotalVaccineCost += h.Cost
		}
	}

	for i := range txns {
		t := &txns[i]
		if err := t.Validate(); err != nil {
			return models.CycleAggregates{}, err
		}
		switch t.Type {
		case models.TransactionIncome:
			agg.TotalIncome += t.Amount
		case models.TransactionExpense:
			agg.TotalExpenseEntries += t.Amount
		}
	}

	if latestSample != nil {
		agg.CurrentWeightGrams = latestSample.SampledWeightGrams
	} else {
		agg.CurrentWeightGrams = cycle.CurrentAverageWeightGrams
	}

	return agg, nil
}

func sortedByID[T any](in []T, id func(T) int64) []T {
	out := append([]T(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
