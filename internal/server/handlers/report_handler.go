package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/service/reporting"
)

// ReportHandler exposes computed cycle metrics and the dashboard.
type ReportHandler struct {
	svc    *reporting.Service
	logger *zap.Logger
}

// NewReportHandler constructs the HTTP handler adapter.
func NewReportHandler(svc *reporting.Service, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{svc: svc, logger: logger}
}

func (h *ReportHandler) Aggregates(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	agg, err := h.svc.Aggregates(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (h *ReportHandler) Financials(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fin, err := h.svc.Financials(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fin)
}

func (h *ReportHandler) KPIs(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	kpis, err := h.svc.KPIs(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, kpis)
}

// Report returns the full report; ?format=text renders the chat summary.
func (h *ReportHandler) Report(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	report, err := h.svc.CycleReport(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if c.Query("format") == "text" {
		c.String(http.StatusOK, reporting.FormatSummary(report))
		return
	}
	c.JSON(http.StatusOK, report)
}

// History lists archived reports, newest first.
func (h *ReportHandler) History(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	reports, err := h.svc.History(c.Request.Context(), id, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *ReportHandler) Dashboard(c *gin.Context) {
	dash, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}
