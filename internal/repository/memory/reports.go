package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mamadbah2/broiler/internal/domain/models"
)

// ReportArchive keeps published cycle reports in process.
type ReportArchive struct {
	mu      sync.RWMutex
	reports map[int64][]models.CycleReport
}

// NewReportArchive creates an empty archive.
func NewReportArchive() *ReportArchive {
	return &ReportArchive{reports: make(map[int64][]models.CycleReport)}
}

// SaveCycleReport archives a computed cycle report.
func (a *ReportArchive) SaveCycleReport(ctx context.Context, report models.CycleReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports[report.CycleID] = append(a.reports[report.CycleID], report)
	return nil
}

// ListCycleReports returns the newest archived reports of a cycle first.
func (a *ReportArchive) ListCycleReports(ctx context.Context, cycleID int64, limit int) ([]models.CycleReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	out := append([]models.CycleReport(nil), a.reports[cycleID]...)
	a.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
