package models

import (
	"math"
	"strings"
	"time"

	"github.com/mamadbah2/broiler/internal/apperror"
)

// Collection names shared by every records store backend.
const (
	CollectionCycles        = "current_cycle"
	CollectionDailyLogs     = "daily_logs"
	CollectionHealthRecords = "health_records"
	CollectionFinancial     = "financial"
	CollectionFarmFinancial = "farm_financial"
	CollectionInventory     = "inventory"
)

// IndexCycleID is the secondary lookup field carried by every cycle-scoped record.
const IndexCycleID = "cycle_id"

// CycleStatus is the lifecycle state of a production cycle.
type CycleStatus string

const (
	CycleActive    CycleStatus = "active"
	CycleCompleted CycleStatus = "completed"
)

// Cycle is one production run of a flock from stocking to completion.
type Cycle struct {
	ID                        int64       `bson:"_id" json:"id"`
	Name                      string      `bson:"name" json:"name"`
	Breed                     string      `bson:"breed" json:"breed"`
	StartDate                 time.Time   `bson:"start_date" json:"start_date"`
	InitialBirdCount          int         `bson:"initial_bird_count" json:"initial_bird_count"`
	CurrentBirdCount          int         `bson:"current_bird_count" json:"current_bird_count"`
	ChickUnitPrice            float64     `bson:"chick_unit_price" json:"chick_unit_price"`
	CurrentAverageWeightGrams float64     `bson:"current_average_weight_grams" json:"current_average_weight_grams"`
	LaborRatePerBirdPerDay    *float64    `bson:"labor_rate_per_bird_per_day,omitempty" json:"labor_rate_per_bird_per_day,omitempty"`
	Status                    CycleStatus `bson:"status" json:"status"`
	CompletedAt               *time.Time  `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

func (c *Cycle) GetID() int64   { return c.ID }
func (c *Cycle) SetID(id int64) { c.ID = id }

// IsActive reports whether the cycle still counts towards current views.
func (c *Cycle) IsActive() bool {
	return c.Status == CycleActive
}

// Validate checks the fields the metrics engine relies on.
func (c *Cycle) Validate() error {
	switch {
	case strings.TrimSpace(c.Breed) == "":
		return apperror.MalformedRecord(CollectionCycles, c.ID, "breed", "is required")
	case c.StartDate.IsZero():
		return apperror.MalformedRecord(CollectionCycles, c.ID, "start_date", "is required")
	case c.InitialBirdCount < 0:
		return apperror.MalformedRecord(CollectionCycles, c.ID, "initial_bird_count", "must not be negative")
	case c.CurrentBirdCount < 0:
		return apperror.MalformedRecord(CollectionCycles, c.ID, "current_bird_count", "must not be negative")
	case c.CurrentBirdCount > c.InitialBirdCount:
		return apperror.MalformedRecord(CollectionCycles, c.ID, "current_bird_count", "exceeds initial_bird_count")
	case !validAmount(c.ChickUnitPrice):
		return apperror.MalformedRecord(CollectionCycles, c.ID, "chick_unit_price", "must be a non-negative number")
	case !validAmount(c.CurrentAverageWeightGrams):
		return apperror.MalformedRecord(CollectionCycles, c.ID, "current_average_weight_grams", "must be a non-negative number")
	case c.LaborRatePerBirdPerDay != nil && !validAmount(*c.LaborRatePerBirdPerDay):
		return apperror.MalformedRecord(CollectionCycles, c.ID, "labor_rate_per_bird_per_day", "must be a non-negative number")
	case c.Status != CycleActive && c.Status != CycleCompleted:
		return apperror.MalformedRecord(CollectionCycles, c.ID, "status", "must be active or completed")
	}
	return nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
