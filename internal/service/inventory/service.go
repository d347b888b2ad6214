package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/metrics"
	"github.com/mamadbah2/broiler/internal/repository/records"
)

// Service manages stock counters. Withdrawals are check-then-decrement as
// one atomic step per item.
type Service struct {
	store   records.Store
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewService constructs the inventory service.
func NewService(store records.Store, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		metrics: m,
		logger:  logger,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// AddItem registers a new stock item.
func (s *Service) AddItem(ctx context.Context, item models.InventoryItem) (models.InventoryItem, error) {
	item.ID = 0
	item.Name = strings.TrimSpace(item.Name)
	if err := item.Validate(); err != nil {
		return models.InventoryItem{}, err
	}
	if _, err := s.store.Add(ctx, models.CollectionInventory, &item); err != nil {
		return models.InventoryItem{}, fmt.Errorf("add inventory item: %w", err)
	}
	s.metrics.RecordWrite(models.CollectionInventory)
	s.logger.Info("inventory item added", zap.Int64("item_id", item.ID), zap.String("name", item.Name))
	return item, nil
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id int64) (models.InventoryItem, error) {
	var item models.InventoryItem
	if err := s.store.Get(ctx, models.CollectionInventory, id, &item); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return models.InventoryItem{}, apperror.NotFound("inventory item", id)
		}
		return models.InventoryItem{}, fmt.Errorf("get inventory item: %w", err)
	}
	return item, nil
}

// List returns every item ordered by id.
func (s *Service) List(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := s.store.GetAll(ctx, models.CollectionInventory, &items); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// LowStock returns the items below their minimum threshold.
func (s *Service) LowStock(ctx context.Context) ([]models.InventoryItem, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]models.InventoryItem, 0)
	for _, item := range items {
		if item.IsLowStock() {
			low = append(low, item)
		}
	}
	return low, nil
}

// FindByName returns the first item (lowest id) whose name contains
// fragment, case-insensitively.
func (s *Service) FindByName(ctx context.Context, fragment string) (models.InventoryItem, bool, error) {
	items, err := s.List(ctx)
	if err != nil {
		return models.InventoryItem{}, false, err
	}
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return models.InventoryItem{}, false, nil
	}
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), needle) {
			return item, true, nil
		}
	}
	return models.InventoryItem{}, false, nil
}

// Withdraw removes amount from the item's stock, failing with
// InsufficientStock and leaving the quantity untouched when it does not
// cover the request.
func (s *Service) Withdraw(ctx context.Context, id int64, amount float64) (models.InventoryItem, error) {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return models.InventoryItem{}, apperror.Validation("withdrawal amount must be a positive number")
	}

	var err error
	if dec, ok := s.store.(records.Decrementer); ok {
		err = s.withdrawAtomic(ctx, dec, id, amount)
	} else {
		err = s.withdrawLocked(ctx, id, amount)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrInsufficientStock) {
			s.metrics.RecordWithdrawal("insufficient")
			s.logger.Warn("withdrawal refused", zap.Int64("item_id", id), zap.Float64("amount", amount))
		}
		return models.InventoryItem{}, err
	}

	s.metrics.RecordWithdrawal("ok")
	s.metrics.RecordWrite(models.CollectionInventory)
	return s.Get(ctx, id)
}

func (s *Service) withdrawAtomic(ctx context.Context, dec records.Decrementer, id int64, amount float64) error {
	err := dec.DecrementIfAtLeast(ctx, models.CollectionInventory, id, models.FieldQuantityOnHand, amount)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, records.ErrNotFound):
		return apperror.NotFound("inventory item", id)
	case errors.Is(err, records.ErrInsufficient):
		item, getErr := s.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		return apperror.InsufficientStock(id, item.QuantityOnHand, amount)
	default:
		return fmt.Errorf("withdraw from inventory item %d: %w", id, err)
	}
}

func (s *Service) withdrawLocked(ctx context.Context, id int64, amount float64) error {
	lock := s.itemLock(id)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if item.QuantityOnHand < amount {
		return apperror.InsufficientStock(id, item.QuantityOnHand, amount)
	}
	item.QuantityOnHand -= amount
	if err := s.store.Update(ctx, models.CollectionInventory, &item); err != nil {
		return fmt.Errorf("withdraw from inventory item %d: %w", id, err)
	}
	return nil
}

// Adjust applies a signed correction. Positive deltas are receipts;
// negative deltas go through Withdraw and share its stock check.
func (s *Service) Adjust(ctx context.Context, id int64, delta float64) (models.InventoryItem, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return models.InventoryItem{}, apperror.Validation("adjustment must be a finite number")
	}
	if delta < 0 {
		return s.Withdraw(ctx, id, -delta)
	}

	var item models.InventoryItem
	if dec, ok := s.store.(records.Decrementer); ok {
		// A negative decrement is an unconditional increment.
		if err := dec.DecrementIfAtLeast(ctx, models.CollectionInventory, id, models.FieldQuantityOnHand, -delta); err != nil {
			if errors.Is(err, records.ErrNotFound) {
				return models.InventoryItem{}, apperror.NotFound("inventory item", id)
			}
			return models.InventoryItem{}, fmt.Errorf("adjust inventory item %d: %w", id, err)
		}
		var err error
		if item, err = s.Get(ctx, id); err != nil {
			return models.InventoryItem{}, err
		}
	} else {
		lock := s.itemLock(id)
		lock.Lock()
		defer lock.Unlock()

		var err error
		if item, err = s.Get(ctx, id); err != nil {
			return models.InventoryItem{}, err
		}
		item.QuantityOnHand += delta
		if err := s.store.Update(ctx, models.CollectionInventory, &item); err != nil {
			return models.InventoryItem{}, fmt.Errorf("adjust inventory item %d: %w", id, err)
		}
	}

	s.metrics.RecordWrite(models.CollectionInventory)
	s.logger.Info("inventory adjusted", zap.Int64("item_id", id), zap.Float64("delta", delta))
	return item, nil
}

func (s *Service) itemLock(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}
