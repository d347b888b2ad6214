package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/service/recording"
)

// CycleHandler exposes cycle data entry over HTTP.
type CycleHandler struct {
	svc    *recording.Service
	logger *zap.Logger
}

// NewCycleHandler constructs the HTTP handler adapter.
func NewCycleHandler(svc *recording.Service, logger *zap.Logger) *CycleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleHandler{svc: svc, logger: logger}
}

func operator(c *gin.Context) string {
	if op := c.GetHeader("X-Operator"); op != "" {
		return op
	}
	return "api"
}

func (h *CycleHandler) Create(c *gin.Context) {
	var in recording.CycleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err)
		return
	}
	cycle, err := h.svc.CreateCycle(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cycle)
}

func (h *CycleHandler) List(c *gin.Context) {
	cycles, err := h.svc.ListCycles(c.Request.Context(), models.CycleStatus(c.Query("status")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cycles)
}

func (h *CycleHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cycle, err := h.svc.GetCycle(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cycle)
}

func (h *CycleHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cycle, err := h.svc.CompleteCycle(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cycle)
}

func (h *CycleHandler) AddDailyLog(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in recording.DailyLogInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err)
		return
	}
	entry, err := h.svc.RecordDailyLog(c.Request.Context(), models.Session{Operator: operator(c), CycleID: id}, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *CycleHandler) ListDailyLogs(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	logs, err := h.svc.ListDailyLogs(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *CycleHandler) AddHealthRecord(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in recording.HealthInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err)
		return
	}
	record, err := h.svc.AddHealthRecord(c.Request.Context(), models.Session{Operator: operator(c), CycleID: id}, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *CycleHandler) ListHealthRecords(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.svc.ListHealthRecords(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *CycleHandler) AddTransaction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in recording.TransactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err)
		return
	}
	txn, err := h.svc.AddTransaction(c.Request.Context(), models.Session{Operator: operator(c), CycleID: id}, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (h *CycleHandler) ListTransactions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.svc.ListTransactions(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *CycleHandler) AddFarmTransaction(c *gin.Context) {
	var in recording.TransactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err)
		return
	}
	txn, err := h.svc.AddFarmTransaction(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (h *CycleHandler) ListFarmTransactions(c *gin.Context) {
	out, err := h.svc.ListFarmTransactions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
