// Package recording implements the data-entry actions that create and
// update records: cycles, daily logs, health records, transactions.
package recording

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/metrics"
	"github.com/mamadbah2/broiler/internal/repository/records"
	"github.com/mamadbah2/broiler/internal/service/aggregation"
	"github.com/mamadbah2/broiler/internal/service/calculator"
)

// InventoryAdapter is the part of the inventory service used for feed deduction.
type InventoryAdapter interface {
	Get(ctx context.Context, id int64) (models.InventoryItem, error)
	FindByName(ctx context.Context, fragment string) (models.InventoryItem, bool, error)
	Withdraw(ctx context.Context, id int64, amount float64) (models.InventoryItem, error)
	Adjust(ctx context.Context, id int64, delta float64) (models.InventoryItem, error)
}

// CycleInput holds the fields supplied when stocking a new cycle.
type CycleInput struct {
	Name                   string    `json:"name" binding:"required"`
	Breed                  string    `json:"breed" binding:"required"`
	StartDate              time.Time `json:"start_date"`
	InitialBirdCount       int       `json:"initial_bird_count" binding:"required"`
	ChickUnitPrice         float64   `json:"chick_unit_price"`
	InitialWeightGrams     float64   `json:"initial_weight_grams"`
	LaborRatePerBirdPerDay *float64  `json:"labor_rate_per_bird_per_day"`
}

// DailyLogInput holds one day's readings. FeedItemID or FeedSource (an
// inventory name fragment) selects the stock the feed is deducted from.
type DailyLogInput struct {
	MortalityCount     int      `json:"mortality_count"`
	FeedKg             float64  `json:"feed_kg"`
	WaterLiters        float64  `json:"water_liters"`
	SampledWeightGrams float64  `json:"sampled_weight_grams"`
	TemperatureC       *float64 `json:"temperature_c"`
	HumidityPercent    *float64 `json:"humidity_percent"`
	FeedItemID         int64    `json:"feed_item_id"`
	FeedSource         string   `json:"feed_source"`
}

// HealthInput describes a vaccination or treatment.
type HealthInput struct {
	Kind        models.HealthKind `json:"kind" binding:"required"`
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Cost        float64           `json:"cost"`
}

// TransactionInput describes income or an expense.
type TransactionInput struct {
	Type        models.TransactionType `json:"type" binding:"required"`
	Amount      float64                `json:"amount" binding:"required"`
	Description string                 `json:"description"`
}

// Service implements the data-entry actions.
type Service struct {
	store     records.Store
	inventory InventoryAdapter
	reporting ReportingAdapter
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	cycleLocks map[int64]*sync.Mutex
}

// NewService constructs the recording service. inventory and reporting may
// be nil; feed deduction and /report are then unavailable.
func NewService(store records.Store, inventory InventoryAdapter, reporting ReportingAdapter, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		inventory:  inventory,
		reporting:  reporting,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		cycleLocks: make(map[int64]*sync.Mutex),
	}
}

// CreateCycle stocks a new active cycle.
func (s *Service) CreateCycle(ctx context.Context, in CycleInput) (models.Cycle, error) {
	now := s.now().UTC()
	start := in.StartDate
	if start.IsZero() {
		start = now
	}
	if start.After(now) {
		return models.Cycle{}, apperror.Validation("start_date must not be in the future")
	}
	if in.InitialBirdCount <= 0 {
		return models.Cycle{}, apperror.InvalidConfiguration("initial_bird_count", "must be positive")
	}

	cycle := models.Cycle{
		Name:                      strings.TrimSpace(in.Name),
		Breed:                     strings.TrimSpace(in.Breed),
		StartDate:                 start,
		InitialBirdCount:          in.InitialBirdCount,
		CurrentBirdCount:          in.InitialBirdCount,
		ChickUnitPrice:            in.ChickUnitPrice,
		CurrentAverageWeightGrams: in.InitialWeightGrams,
		LaborRatePerBirdPerDay:    in.LaborRatePerBirdPerDay,
		Status:                    models.CycleActive,
	}
	if err := cycle.Validate(); err != nil {
		return models.Cycle{}, err
	}

	if _, err := s.store.Add(ctx, models.CollectionCycles, &cycle); err != nil {
		return models.Cycle{}, fmt.Errorf("add cycle: %w", err)
	}
	s.metrics.RecordWrite(models.CollectionCycles)
	s.logger.Info("cycle created",
		zap.Int64("cycle_id", cycle.ID),
		zap.String("breed", cycle.Breed),
		zap.Int("birds", cycle.InitialBirdCount))
	return cycle, nil
}

// GetCycle returns one cycle or CycleNotFound.
func (s *Service) GetCycle(ctx context.Context, id int64) (models.Cycle, error) {
	return aggregation.LoadCycle(ctx, s.store, id)
}

// ListCycles returns the cycles with the given status ("" for all), newest first.
func (s *Service) ListCycles(ctx context.Context, status models.CycleStatus) ([]models.Cycle, error) {
	var cycles []models.Cycle
	var err error
	if status == "" {
		err = s.store.GetAll(ctx, models.CollectionCycles, &cycles)
	} else {
		err = s.store.GetAllByIndex(ctx, models.CollectionCycles, "status", string(status), &cycles)
	}
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].ID > cycles[j].ID })
	return cycles, nil
}

// ActiveCycle returns the most recently created active cycle.
func (s *Service) ActiveCycle(ctx context.Context) (models.Cycle, error) {
	cycles, err := s.ListCycles(ctx, models.CycleActive)
	if err != nil {
		return models.Cycle{}, err
	}
	if len(cycles) == 0 {
		return models.Cycle{}, apperror.New(apperror.CodeCycleNotFound, "no active cycle", http.StatusNotFound)
	}
	return cycles[0], nil
}

// CompleteCycle closes a cycle; it then drops out of current views.
func (s *Service) CompleteCycle(ctx context.Context, id int64) (models.Cycle, error) {
	unlock := s.lockCycle(id)
	defer unlock()

	cycle, err := s.GetCycle(ctx, id)
	if err != nil {
		return models.Cycle{}, err
	}
	if cycle.Status == models.CycleCompleted {
		return cycle, nil
	}
	now := s.now().UTC()
	cycle.Status = models.CycleCompleted
	cycle.CompletedAt = &now
	if err := s.store.Update(ctx, models.CollectionCycles, &cycle); err != nil {
		return models.Cycle{}, fmt.Errorf("complete cycle %d: %w", id, err)
	}
	s.metrics.RecordWrite(models.CollectionCycles)
	s.logger.Info("cycle completed", zap.Int64("cycle_id", id))
	return cycle, nil
}

// RecordDailyLog appends the day's readings. Feed is deducted from stock
// before anything is written, so a shortfall leaves the store untouched.
// Mortality lowers the cycle's bird count; a weight sample replaces its
// average weight. The cycle is written before the log, and a failed write
// undoes the earlier steps so a retry does not double count.
func (s *Service) RecordDailyLog(ctx context.Context, session models.Session, in DailyLogInput) (models.DailyLogEntry, error) {
	unlock := s.lockCycle(session.CycleID)
	defer unlock()

	cycle, err := s.activeCycle(ctx, session.CycleID)
	if err != nil {
		return models.DailyLogEntry{}, err
	}
	if in.MortalityCount > cycle.CurrentBirdCount {
		return models.DailyLogEntry{}, apperror.Validation(fmt.Sprintf(
			"mortality %d exceeds the %d birds left in cycle %d", in.MortalityCount, cycle.CurrentBirdCount, cycle.ID))
	}

	now := s.now().UTC()
	entry := models.DailyLogEntry{
		CycleID:            cycle.ID,
		AgeInDays:          calculator.AgeInDays(cycle.StartDate, now),
		MortalityCount:     in.MortalityCount,
		FeedKg:             in.FeedKg,
		WaterLiters:        in.WaterLiters,
		SampledWeightGrams: in.SampledWeightGrams,
		TemperatureC:       in.TemperatureC,
		HumidityPercent:    in.HumidityPercent,
		RecordedAt:         now,
	}
	if err := entry.Validate(); err != nil {
		return models.DailyLogEntry{}, err
	}

	feedItemID, err := s.deductFeed(ctx, in)
	if err != nil {
		return models.DailyLogEntry{}, err
	}

	previous := cycle
	cycleChanged := entry.MortalityCount > 0 || entry.HasWeightSample()
	if cycleChanged {
		cycle.CurrentBirdCount -= entry.MortalityCount
		if entry.HasWeightSample() {
			cycle.CurrentAverageWeightGrams = entry.SampledWeightGrams
		}
		if err := s.store.Update(ctx, models.CollectionCycles, &cycle); err != nil {
			s.restoreFeed(ctx, feedItemID, in.FeedKg)
			return models.DailyLogEntry{}, fmt.Errorf("update cycle %d for daily log: %w", cycle.ID, err)
		}
		s.metrics.RecordWrite(models.CollectionCycles)
	}

	if _, err := s.store.Add(ctx, models.CollectionDailyLogs, &entry); err != nil {
		s.restoreFeed(ctx, feedItemID, in.FeedKg)
		if cycleChanged {
			s.restoreCycle(ctx, previous)
		}
		return models.DailyLogEntry{}, fmt.Errorf("add daily log: %w", err)
	}
	s.metrics.RecordWrite(models.CollectionDailyLogs)

	s.logger.Info("daily log recorded",
		zap.Int64("cycle_id", cycle.ID),
		zap.String("operator", session.Operator),
		zap.Int64("log_id", entry.ID),
		zap.Int("mortality", entry.MortalityCount),
		zap.Float64("feed_kg", entry.FeedKg))
	return entry, nil
}

// deductFeed withdraws the day's feed from stock and returns the item used,
// 0 when no deduction applied.
func (s *Service) deductFeed(ctx context.Context, in DailyLogInput) (int64, error) {
	if in.FeedKg <= 0 || (in.FeedItemID == 0 && in.FeedSource == "") {
		return 0, nil
	}
	if s.inventory == nil {
		return 0, apperror.Validation("feed deduction requested but inventory is unavailable")
	}

	itemID := in.FeedItemID
	if itemID == 0 {
		item, found, err := s.inventory.FindByName(ctx, in.FeedSource)
		if err != nil {
			return 0, err
		}
		if !found {
			s.logger.Warn("feed source not in inventory, skipping deduction", zap.String("feed_source", in.FeedSource))
			return 0, nil
		}
		itemID = item.ID
	}

	if _, err := s.inventory.Withdraw(ctx, itemID, in.FeedKg); err != nil {
		return 0, err
	}
	return itemID, nil
}

func (s *Service) restoreFeed(ctx context.Context, itemID int64, amount float64) {
	if itemID == 0 {
		return
	}
	if _, err := s.inventory.Adjust(ctx, itemID, amount); err != nil {
		s.logger.Error("failed to restore feed after daily log failure",
			zap.Int64("item_id", itemID), zap.Float64("amount", amount), zap.Error(err))
	}
}

func (s *Service) restoreCycle(ctx context.Context, previous models.Cycle) {
	if err := s.store.Update(ctx, models.CollectionCycles, &previous); err != nil {
		s.logger.Error("failed to restore cycle after daily log failure",
			zap.Int64("cycle_id", previous.ID),
			zap.Int("bird_count", previous.CurrentBirdCount),
			zap.Error(err))
	}
}

// AddHealthRecord books a vaccination or treatment against the session's cycle.
func (s *Service) AddHealthRecord(ctx context.Context, session models.Session, in HealthInput) (models.HealthRecord, error) {
	if _, err := s.GetCycle(ctx, session.CycleID); err != nil {
		return models.HealthRecord{}, err
	}
	record := models.HealthRecord{
		CycleID:     session.CycleID,
		Kind:        models.HealthKind(strings.ToLower(string(in.Kind))),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Cost:        in.Cost,
		Date:        s.now().UTC(),
	}
	if err := record.Validate(); err != nil {
		return models.HealthRecord{}, err
	}
	if _, err := s.store.Add(ctx, models.CollectionHealthRecords, &record); err != nil {
		return models.HealthRecord{}, fmt.Errorf("add health record: %w", err)
	}
	s.metrics.RecordWrite(models.CollectionHealthRecords)
	s.logger.Info("health record added",
		zap.Int64("cycle_id", record.CycleID),
		zap.String("operator", session.Operator),
		zap.String("kind", string(record.Kind)))
	return record, nil
}

// AddTransaction books income or an expense against the session's cycle.
func (s *Service) AddTransaction(ctx context.Context, session models.Session, in TransactionInput) (models.FinancialTransaction, error) {
	if _, err := s.GetCycle(ctx, session.CycleID); err != nil {
		return models.FinancialTransaction{}, err
	}
	txn := models.FinancialTransaction{
		CycleID:     session.CycleID,
		Type:        models.TransactionType(strings.ToLower(string(in.Type))),
		Amount:      in.Amount,
		Description: in.Description,
		Date:        s.now().UTC(),
	}
	if err := txn.Validate(); err != nil {
		return models.FinancialTransaction{}, err
	}
	if _, err := s.store.Add(ctx, models.CollectionFinancial, &txn); err != nil {
		return models.FinancialTransaction{}, fmt.Errorf("add transaction: %w", err)
	}
	s.metrics.RecordWrite(models.CollectionFinancial)
	s.logger.Info("transaction added",
		zap.Int64("cycle_id", txn.CycleID),
		zap.String("operator", session.Operator),
		zap.String("type", string(txn.Type)),
		zap.Float64("amount", txn.Amount))
	return txn, nil
}

// AddFarmTransaction books income or an expense for the farm as a whole.
func (s *Service) AddFarmTransaction(ctx context.Context, in TransactionInput) (models.FarmTransaction, error) {
	txn := models.FarmTransaction{
		Type:        models.TransactionType(strings.ToLower(string(in.Type))),
		Amount:      in.Amount,
		Description: in.Description,
		Date:        s.now().UTC(),
	}
	if err := txn.Validate(); err != nil {
		return models.FarmTransaction{}, err
	}
	if _, err := s.store.Add(ctx, models.CollectionFarmFinancial, &txn); err != nil {
		return models.FarmTransaction{}, fmt.Errorf("add farm transaction: %w", err)
	}
	s.metrics.RecordWrite(models.CollectionFarmFinancial)
	return txn, nil
}

// ListDailyLogs returns the cycle's logs, newest first.
func (s *Service) ListDailyLogs(ctx context.Context, cycleID int64) ([]models.DailyLogEntry, error) {
	var logs []models.DailyLogEntry
	if err := s.listForCycle(ctx, models.CollectionDailyLogs, cycleID, &logs); err != nil {
		return nil, err
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].ID > logs[j].ID })
	return logs, nil
}

// ListHealthRecords returns the cycle's health records, newest first.
func (s *Service) ListHealthRecords(ctx context.Context, cycleID int64) ([]models.HealthRecord, error) {
	var out []models.HealthRecord
	if err := s.listForCycle(ctx, models.CollectionHealthRecords, cycleID, &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ListTransactions returns the cycle's transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, cycleID int64) ([]models.FinancialTransaction, error) {
	var out []models.FinancialTransaction
	if err := s.listForCycle(ctx, models.CollectionFinancial, cycleID, &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Service) listForCycle(ctx context.Context, collection string, cycleID int64, out any) error {
	if _, err := s.GetCycle(ctx, cycleID); err != nil {
		return err
	}
	if err := s.store.GetAllByIndex(ctx, collection, models.IndexCycleID, cycleID, out); err != nil {
		return fmt.Errorf("list %s for cycle %d: %w", collection, cycleID, err)
	}
	return nil
}

func (s *Service) activeCycle(ctx context.Context, id int64) (models.Cycle, error) {
	cycle, err := s.GetCycle(ctx, id)
	if err != nil {
		return models.Cycle{}, err
	}
	if !cycle.IsActive() {
		return models.Cycle{}, apperror.Validation(fmt.Sprintf("cycle %d is completed", id))
	}
	return cycle, nil
}

func (s *Service) lockCycle(id int64) func() {
	s.mu.Lock()
	lock, ok := s.cycleLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.cycleLocks[id] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// ListFarmTransactions returns the farm-wide transactions, newest first.
func (s *Service) ListFarmTransactions(ctx context.Context) ([]models.FarmTransaction, error) {
	var out []models.FarmTransaction
	if err := s.store.GetAll(ctx, models.CollectionFarmFinancial, &out); err != nil {
		return nil, fmt.Errorf("list farm transactions: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
