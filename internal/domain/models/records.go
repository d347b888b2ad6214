package models

import (
	"time"

	"github.com/mamadbah2/broiler/internal/apperror"
)

// DailyLogEntry is one daily recording for a cycle. Append-only.
type DailyLogEntry struct {
	ID                 int64     `bson:"_id" json:"id"`
	CycleID            int64     `bson:"cycle_id" json:"cycle_id"`
	AgeInDays          int       `bson:"age_in_days" json:"age_in_days"`
	MortalityCount     int       `bson:"mortality_count" json:"mortality_count"`
	FeedKg             float64   `bson:"feed_kg" json:"feed_kg"`
	WaterLiters        float64   `bson:"water_liters" json:"water_liters"`
	SampledWeightGrams float64   `bson:"sampled_weight_grams" json:"sampled_weight_grams"`
	TemperatureC       *float64  `bson:"temperature_c,omitempty" json:"temperature_c,omitempty"`
	HumidityPercent    *float64  `bson:"humidity_percent,omitempty" json:"humidity_percent,omitempty"`
	RecordedAt         time.Time `bson:"recorded_at" json:"recorded_at"`
}

func (l *DailyLogEntry) GetID() int64   { return l.ID }
func (l *DailyLogEntry) SetID(id int64) { l.ID = id }

// HasWeightSample reports whether a weight was sampled on this day.
func (l *DailyLogEntry) HasWeightSample() bool {
	return l.SampledWeightGrams > 0
}

func (l *DailyLogEntry) Validate() error {
	switch {
	case l.CycleID <= 0:
		return apperror.MalformedRecord(CollectionDailyLogs, l.ID, "cycle_id", "is required")
	case l.MortalityCount < 0:
		return apperror.MalformedRecord(CollectionDailyLogs, l.ID, "mortality_count", "must not be negative")
	case !validAmount(l.FeedKg):
		return apperror.MalformedRecord(CollectionDailyLogs, l.ID, "feed_kg", "must be a non-negative number")
	case !validAmount(l.WaterLiters):
		return apperror.MalformedRecord(CollectionDailyLogs, l.ID, "water_liters", "must be a non-negative number")
	case !validAmount(l.SampledWeightGrams):
		return apperror.MalformedRecord(CollectionDailyLogs, l.ID, "sampled_weight_grams", "must be a non-negative number")
	}
	return nil
}

// HealthKind distinguishes vaccinations from medicine treatments.
type HealthKind string

const (
	HealthVaccine  HealthKind = "vaccine"
	HealthMedicine HealthKind = "medicine"
)

// HealthRecord is a vaccination or treatment given to a cycle. Append-only.
type HealthRecord struct {
	ID          int64      `bson:"_id" json:"id"`
	CycleID     int64      `bson:"cycle_id" json:"cycle_id"`
	Kind        HealthKind `bson:"kind" json:"kind"`
	Name        string     `bson:"name" json:"name"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	Cost        float64    `bson:"cost" json:"cost"`
	Date        time.Time  `bson:"date" json:"date"`
}

func (h *HealthRecord) GetID() int64   { return h.ID }
func (h *HealthRecord) SetID(id int64) { h.ID = id }

func (h *HealthRecord) Validate() error {
	switch {
	case h.CycleID <= 0:
		return apperror.MalformedRecord(CollectionHealthRecords, h.ID, "cycle_id", "is required")
	case h.Kind != HealthVaccine && h.Kind != HealthMedicine:
		return apperror.MalformedRecord(CollectionHealthRecords, h.ID, "kind", "must be vaccine or medicine")
	case h.Name == "":
		return apperror.MalformedRecord(CollectionHealthRecords, h.ID, "name", "is required")
	case !validAmount(h.Cost):
		return apperror.MalformedRecord(CollectionHealthRecords, h.ID, "cost", "must be a non-negative number")
	}
	return nil
}

// TransactionType carries the sign of a financial transaction.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// FinancialTransaction is income or expense booked against one cycle.
// Amount is always positive; the sign lives in Type.
type FinancialTransaction struct {
	ID          int64           `bson:"_id" json:"id"`
	CycleID     int64           `bson:"cycle_id" json:"cycle_id"`
	Type        TransactionType `bson:"type" json:"type"`
	Amount      float64         `bson:"amount" json:"amount"`
	Description string          `bson:"description,omitempty" json:"description,omitempty"`
	Date        time.Time       `bson:"date" json:"date"`
}

func (t *FinancialTransaction) GetID() int64   { return t.ID }
func (t *FinancialTransaction) SetID(id int64) { t.ID = id }

func (t *FinancialTransaction) Validate() error {
	if t.CycleID <= 0 {
		return apperror.MalformedRecord(CollectionFinancial, t.ID, "cycle_id", "is required; book farm-wide entries as farm transactions")
	}
	return validateTransaction(CollectionFinancial, t.ID, t.Type, t.Amount)
}

// FarmTransaction is income or expense that applies to the farm as a whole.
type FarmTransaction struct {
	ID          int64           `bson:"_id" json:"id"`
	Type        TransactionType `bson:"type" json:"type"`
	Amount      float64         `bson:"amount" json:"amount"`
	Description string          `bson:"description,omitempty" json:"description,omitempty"`
	Date        time.Time       `bson:"date" json:"date"`
}

func (t *FarmTransaction) GetID() int64   { return t.ID }
func (t *FarmTransaction) SetID(id int64) { t.ID = id }

func (t *FarmTransaction) Validate() error {
	return validateTransaction(CollectionFarmFinancial, t.ID, t.Type, t.Amount)
}

func validateTransaction(collection string, id int64, typ TransactionType, amount float64) error {
	switch {
	case typ != TransactionIncome && typ != TransactionExpense:
		return apperror.MalformedRecord(collection, id, "type", "must be income or expense")
	case !validAmount(amount) || amount == 0:
		return apperror.MalformedRecord(collection, id, "amount", "must be a positive number")
	}
	return nil
}
