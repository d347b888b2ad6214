// Package reporting assembles cycle reports and the farm dashboard and
// publishes them to the archive, Google Sheets and WhatsApp.
package reporting

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/config"
	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/metrics"
	"github.com/mamadbah2/broiler/internal/repository/records"
	"github.com/mamadbah2/broiler/internal/service/aggregation"
	"github.com/mamadbah2/broiler/internal/service/calculator"
)

const dateLayout = "2006-01-02"

// Archive stores published reports.
type Archive interface {
	SaveCycleReport(ctx context.Context, report models.CycleReport) error
	ListCycleReports(ctx context.Context, cycleID int64, limit int) ([]models.CycleReport, error)
}

// Sink receives every published report.
type Sink interface {
	Name() string
	Publish(ctx context.Context, report models.CycleReport) error
}

// Notifier delivers report summaries as chat messages.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// StockReader lists the inventory items below their reorder threshold.
type StockReader interface {
	LowStock(ctx context.Context) ([]models.InventoryItem, error)
}

// Options carries the optional collaborators of the service.
type Options struct {
	Stock     StockReader
	Archive   Archive
	Sinks     []Sink
	Notifier  Notifier
	Recipient string
	Metrics   *metrics.Metrics
}

// Service computes reports on demand and publishes them on schedule.
type Service struct {
	store  records.Reader
	engine *aggregation.Engine
	calc   *calculator.Calculator
	costs  config.CostsConfig
	opts   Options
	logger *zap.Logger
	newID  func() string
}

// NewService wires a new reporting service instance.
func NewService(store records.Reader, engine *aggregation.Engine, calc *calculator.Calculator, costs config.CostsConfig, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		engine: engine,
		calc:   calc,
		costs:  costs,
		opts:   opts,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Aggregates returns the raw sums of a cycle.
func (s *Service) Aggregates(ctx context.Context, cycleID int64) (models.CycleAggregates, error) {
	return s.engine.Aggregate(ctx, cycleID)
}

// Financials returns the cost breakdown of a cycle.
func (s *Service) Financials(ctx context.Context, cycleID int64) (models.FinancialBreakdown, error) {
	cycle, agg, err := s.engine.Snapshot(ctx, cycleID)
	if err != nil {
		return models.FinancialBreakdown{}, err
	}
	return s.calc.ComputeFinancials(&cycle, agg, s.costs)
}

// KPIs returns the performance indicators of a cycle.
func (s *Service) KPIs(ctx context.Context, cycleID int64) (models.KPIReport, error) {
	report, err := s.CycleReport(ctx, cycleID)
	if err != nil {
		return models.KPIReport{}, err
	}
	return report.KPIs, nil
}

// CycleReport computes aggregates, financials and KPIs from one snapshot.
func (s *Service) CycleReport(ctx context.Context, cycleID int64) (models.CycleReport, error) {
	cycle, agg, err := s.engine.Snapshot(ctx, cycleID)
	if err != nil {
		return models.CycleReport{}, err
	}
	fin, err := s.calc.ComputeFinancials(&cycle, agg, s.costs)
	if err != nil {
		return models.CycleReport{}, err
	}
	kpis, err := s.calc.ComputeKPIs(&cycle, fin, agg)
	if err != nil {
		return models.CycleReport{}, err
	}

	return models.CycleReport{
		ID:          s.newID(),
		CycleID:     cycle.ID,
		GeneratedAt: s.calc.Now().UTC(),
		Aggregates:  agg,
		Financials:  fin,
		KPIs:        kpis,
	}, nil
}

// CycleSummary renders the report of a cycle as chat text.
func (s *Service) CycleSummary(ctx context.Context, cycleID int64) (string, error) {
	report, err := s.CycleReport(ctx, cycleID)
	if err != nil {
		return "", err
	}
	return FormatSummary(report), nil
}

// History returns archived reports of a cycle, newest first.
func (s *Service) History(ctx context.Context, cycleID int64, limit int) ([]models.CycleReport, error) {
	if s.opts.Archive == nil {
		return []models.CycleReport{}, nil
	}
	return s.opts.Archive.ListCycleReports(ctx, cycleID, limit)
}

// Dashboard summarises every active cycle together with farm-wide
// transactions and low stock. A cycle whose report cannot be computed is
// left out of the totals and listed under Skipped with its error code.
func (s *Service) Dashboard(ctx context.Context) (models.Dashboard, error) {
	cycles, err := s.activeCycles(ctx)
	if err != nil {
		return models.Dashboard{}, err
	}

	dash := models.Dashboard{
		ActiveCycles: len(cycles),
		Currency:     s.costs.Currency,
		GeneratedAt:  s.calc.Now().UTC(),
		Cycles:       make([]models.KPIReport, 0, len(cycles)),
		Skipped:      []models.SkippedCycle{},
		LowStock:     []models.InventoryItem{},
	}

	for _, cycle := range cycles {
		dash.TotalBirds += cycle.CurrentBirdCount
		report, err := s.CycleReport(ctx, cycle.ID)
		if err != nil {
			s.logger.Warn("cycle left out of dashboard", zap.Int64("cycle_id", cycle.ID), zap.Error(err))
			appErr := apperror.From(err)
			dash.Skipped = append(dash.Skipped, models.SkippedCycle{
				CycleID: cycle.ID,
				Code:    appErr.Code,
				Message: appErr.Message,
			})
			continue
		}
		dash.TotalProfit += report.KPIs.Profit
		dash.Cycles = append(dash.Cycles, report.KPIs)
	}

	var farm []models.FarmTransaction
	if err := s.store.GetAll(ctx, models.CollectionFarmFinancial, &farm); err != nil {
		return models.Dashboard{}, fmt.Errorf("load farm transactions: %w", err)
	}
	for _, txn := range farm {
		switch txn.Type {
		case models.TransactionIncome:
			dash.FarmIncome += txn.Amount
		case models.TransactionExpense:
			dash.FarmExpenses += txn.Amount
		}
	}

	if s.opts.Stock != nil {
		low, err := s.opts.Stock.LowStock(ctx)
		if err != nil {
			return models.Dashboard{}, err
		}
		dash.LowStock = low
	}

	return dash, nil
}

// Publish reports every active cycle to the archive, the sinks and the
// configured WhatsApp recipient. Failures are logged per cycle and sink;
// the first one is returned after all cycles were attempted.
func (s *Service) Publish(ctx context.Context) error {
	cycles, err := s.activeCycles(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, cycle := range cycles {
		report, err := s.CycleReport(ctx, cycle.ID)
		if err != nil {
			s.logger.Error("failed to build cycle report", zap.Int64("cycle_id", cycle.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		errs = append(errs, s.publishReport(ctx, report)...)
	}

	s.logger.Info("reports published", zap.Int("cycles", len(cycles)), zap.Int("failures", len(errs)))
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (s *Service) publishReport(ctx context.Context, report models.CycleReport) []error {
	var errs []error
	record := func(sink string, err error) {
		s.opts.Metrics.RecordReportPublished(sink, err)
		if err != nil {
			s.logger.Error("report sink failed",
				zap.String("sink", sink), zap.Int64("cycle_id", report.CycleID), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sink, err))
		}
	}

	if s.opts.Archive != nil {
		record("archive", s.opts.Archive.SaveCycleReport(ctx, report))
	}
	for _, sink := range s.opts.Sinks {
		record(sink.Name(), sink.Publish(ctx, report))
	}
	if s.opts.Notifier != nil && s.opts.Recipient != "" {
		record("whatsapp", s.opts.Notifier.SendOutbound(ctx, models.OutboundMessageRequest{
			To:      s.opts.Recipient,
			Message: FormatSummary(report),
		}))
	}
	return errs
}

func (s *Service) activeCycles(ctx context.Context) ([]models.Cycle, error) {
	var cycles []models.Cycle
	if err := s.store.GetAllByIndex(ctx, models.CollectionCycles, "status", string(models.CycleActive), &cycles); err != nil {
		return nil, fmt.Errorf("load active cycles: %w", err)
	}
	return cycles, nil
}

// FormatSummary renders a report as plain text with two decimals.
func FormatSummary(report models.CycleReport) string {
	k := report.KPIs
	f := report.Financials
	currency := f.Currency
	if currency == "" {
		currency = "-"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cycle report: %s (%s), day %d\n", k.CycleName, k.Breed, k.AgeDays)
	fmt.Fprintf(&b, "Generated %s\n\n", report.GeneratedAt.Format(dateLayout))

	fmt.Fprintf(&b, "Weight: %.2f kg/bird, %.2f kg total\n", k.CurrentWeightKg, k.TotalWeightKg)
	if k.ExpectedWeightKnown {
		fmt.Fprintf(&b, "Expected: %.2f kg/bird", k.ExpectedWeightKg)
		if k.WeightDeviationPercent != nil {
			fmt.Fprintf(&b, " (%+.2f%%)", *k.WeightDeviationPercent)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Expected: n/a for this breed and age\n")
	}
	fmt.Fprintf(&b, "FCR: %.2f\n", k.FCR)
	fmt.Fprintf(&b, "Mortality: %.2f%% (%d birds)\n\n", k.MortalityRatePercent, f.TotalMortality)

	fmt.Fprintf(&b, "Chicks: %.2f %s\n", f.ChickCost, currency)
	fmt.Fprintf(&b, "Feed: %.2f %s (%.2f kg, estimated)\n", f.FeedCost, currency, f.TotalFeedKg)
	fmt.Fprintf(&b, "Medicine: %.2f %s\n", f.MedsCost, currency)
	fmt.Fprintf(&b, "Labor: %.2f %s\n", f.LaborCost, currency)
	fmt.Fprintf(&b, "Misc: %.2f %s\n", f.MiscCost, currency)
	fmt.Fprintf(&b, "Total cost: %.2f %s\n", f.TotalCost, currency)
	fmt.Fprintf(&b, "Revenue: %.2f %s\n", f.TotalRevenue, currency)
	fmt.Fprintf(&b, "Profit: %.2f %s\n", f.Profit, currency)
	fmt.Fprintf(&b, "Cost per kg: %.2f %s", k.CostPerKg, currency)

	if f.VaccineCostExcluded > 0 {
		fmt.Fprintf(&b, "\nNote: vaccine costs of %.2f %s are not included in total cost.", f.VaccineCostExcluded, currency)
	}
	if f.ManualExpenses > 0 {
		fmt.Fprintf(&b, "\nNote: %.2f %s of recorded expenses are listed separately.", f.ManualExpenses, currency)
	}
	return b.String()
}
