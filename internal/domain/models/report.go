package models

import "time"

// CycleAggregates are the raw sums folded from one cycle's records.
type CycleAggregates struct {
	CycleID             int64   `bson:"cycle_id" json:"cycle_id"`
	LogCount            int     `bson:"log_count" json:"log_count"`
	TotalFeedKg         float64 `bson:"total_feed_kg" json:"total_feed_kg"`
	TotalWaterLiters    float64 `bson:"total_water_liters" json:"total_water_liters"`
	TotalMortality      int     `bson:"total_mortality" json:"total_mortality"`
	TotalMedicineCost   float64 `bson:"total_medicine_cost" json:"total_medicine_cost"`
	TotalVaccineCost    float64 `bson:"total_vaccine_cost" json:"total_vaccine_cost"`
	TotalIncome         float64 `bson:"total_income" json:"total_income"`
	TotalExpenseEntries float64 `bson:"total_expense_entries" json:"total_expense_entries"`
	CurrentWeightGrams  float64 `bson:"current_weight_grams" json:"current_weight_grams"`
}

// FinancialBreakdown is the cost and revenue picture of one cycle.
// Values are unrounded; rounding belongs to presentation.
type FinancialBreakdown struct {
	CycleID      int64   `bson:"cycle_id" json:"cycle_id"`
	Currency     string  `bson:"currency" json:"currency"`
	DaysActive   int     `bson:"days_active" json:"days_active"`
	ChickCost    float64 `bson:"chick_cost" json:"chick_cost"`
	FeedCost     float64 `bson:"feed_cost" json:"feed_cost"`
	MedsCost     float64 `bson:"meds_cost" json:"meds_cost"`
	LaborCost    float64 `bson:"labor_cost" json:"labor_cost"`
	MiscCost     float64 `bson:"misc_cost" json:"misc_cost"`
	TotalCost    float64 `bson:"total_cost" json:"total_cost"`
	TotalRevenue float64 `bson:"total_revenue" json:"total_revenue"`
	Profit       float64 `bson:"profit" json:"profit"`

	// FeedCostEstimated is always true: feed cost is consumption times a
	// configured price, not a reconciliation of purchase records.
	FeedCostEstimated   bool    `bson:"feed_cost_estimated" json:"feed_cost_estimated"`
	VaccineCostExcluded float64 `bson:"vaccine_cost_excluded" json:"vaccine_cost_excluded"`
	ManualExpenses      float64 `bson:"manual_expenses" json:"manual_expenses"`

	TotalFeedKg      float64 `bson:"total_feed_kg" json:"total_feed_kg"`
	TotalWaterLiters float64 `bson:"total_water_liters" json:"total_water_liters"`
	TotalMortality   int     `bson:"total_mortality" json:"total_mortality"`
}

// KPIReport holds the derived performance indicators of a cycle.
type KPIReport struct {
	CycleID              int64   `bson:"cycle_id" json:"cycle_id"`
	CycleName            string  `bson:"cycle_name" json:"cycle_name"`
	Breed                string  `bson:"breed" json:"breed"`
	AgeDays              int     `bson:"age_days" json:"age_days"`
	CurrentWeightGrams   float64 `bson:"current_weight_grams" json:"current_weight_grams"`
	CurrentWeightKg      float64 `bson:"current_weight_kg" json:"current_weight_kg"`
	TotalWeightKg        float64 `bson:"total_weight_kg" json:"total_weight_kg"`
	FCR                  float64 `bson:"fcr" json:"fcr"`
	MortalityRatePercent float64 `bson:"mortality_rate_percent" json:"mortality_rate_percent"`
	CostPerKg            float64 `bson:"cost_per_kg" json:"cost_per_kg"`
	Profit               float64 `bson:"profit" json:"profit"`
	TotalCost            float64 `bson:"total_cost" json:"total_cost"`
	TotalRevenue         float64 `bson:"total_revenue" json:"total_revenue"`

	// ExpectedWeightKnown is false when the breed is unknown or the age is
	// outside the reference table; the expected values are then 0.
	ExpectedWeightKnown    bool     `bson:"expected_weight_known" json:"expected_weight_known"`
	ExpectedWeightGrams    int      `bson:"expected_weight_grams" json:"expected_weight_grams"`
	ExpectedWeightKg       float64  `bson:"expected_weight_kg" json:"expected_weight_kg"`
	WeightDeviationPercent *float64 `bson:"weight_deviation_percent,omitempty" json:"weight_deviation_percent,omitempty"`
	GrowthCurve            []int    `bson:"growth_curve" json:"growth_curve"`
}

// CycleReport bundles everything computed for a cycle at one instant.
type CycleReport struct {
	ID          string             `bson:"_id" json:"id"`
	CycleID     int64              `bson:"cycle_id" json:"cycle_id"`
	GeneratedAt time.Time          `bson:"generated_at" json:"generated_at"`
	Aggregates  CycleAggregates    `bson:"aggregates" json:"aggregates"`
	Financials  FinancialBreakdown `bson:"financials" json:"financials"`
	KPIs        KPIReport          `bson:"kpis" json:"kpis"`
}

// Dashboard summarises the farm across all active cycles.
type Dashboard struct {
	ActiveCycles int             `json:"active_cycles"`
	TotalProfit  float64         `json:"total_profit"`
	TotalBirds   int             `json:"total_birds"`
	FarmIncome   float64         `json:"farm_income"`
	FarmExpenses float64         `json:"farm_expenses"`
	LowStock     []InventoryItem `json:"low_stock"`
	Cycles       []KPIReport     `json:"cycles"`
	Skipped      []SkippedCycle  `json:"skipped_cycles"`
	Currency     string          `json:"currency"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// SkippedCycle is an active cycle left out of the dashboard totals because
// its report could not be computed.
type SkippedCycle struct {
	CycleID int64  `json:"cycle_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Session is the explicit operator context passed to data-entry actions.
type Session struct {
	Operator string
	CycleID  int64
}
