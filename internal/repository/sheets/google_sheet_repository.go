// Package sheets publishes cycle reports as rows of a Google spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/broiler/internal/config"
	"github.com/mamadbah2/broiler/internal/domain/models"
)

const dateLayout = "2006-01-02 15:04"

// Repository defines the persistence operations supported by the Google Sheets adapter.
type Repository interface {
	WriteRow(ctx context.Context, sheetRange string, values []interface{}) error
}

// GoogleSheetRepository implements Repository using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// WriteRow appends the provided values to the supplied sheet range.
func (r *GoogleSheetRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("range", sheetRange))
	return nil
}

// ReportSink appends one row per published cycle report.
type ReportSink struct {
	repo       Repository
	sheetRange string
}

// NewReportSink writes report rows into sheetRange through repo.
func NewReportSink(repo Repository, sheetRange string) *ReportSink {
	return &ReportSink{repo: repo, sheetRange: sheetRange}
}

// Name identifies the sink in metrics and logs.
func (s *ReportSink) Name() string { return "sheets" }

// Publish appends the report as a single row.
func (s *ReportSink) Publish(ctx context.Context, report models.CycleReport) error {
	return s.repo.WriteRow(ctx, s.sheetRange, ReportRow(report))
}

// ReportRow lays a report out in the column order of the Reports sheet:
// generated, cycle, breed, age, total weight kg, FCR, mortality %, cost per kg,
// total cost, revenue, profit, feed kg, vaccine cost excluded, report id.
func ReportRow(report models.CycleReport) []interface{} {
	k := report.KPIs
	f := report.Financials
	return []interface{}{
		report.GeneratedAt.Format(dateLayout),
		k.CycleName,
		k.Breed,
		k.AgeDays,
		round2(k.TotalWeightKg),
		round2(k.FCR),
		round2(k.MortalityRatePercent),
		round2(k.CostPerKg),
		round2(f.TotalCost),
		round2(f.TotalRevenue),
		round2(f.Profit),
		round2(f.TotalFeedKg),
		round2(f.VaccineCostExcluded),
		report.ID,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
