package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/metrics"
	"github.com/mamadbah2/broiler/internal/server/handlers"
)

// Handlers groups the HTTP adapters mounted on the router. Webhook may be
// nil when WhatsApp is not configured.
type Handlers struct {
	Cycles    *handlers.CycleHandler
	Reports   *handlers.ReportHandler
	Inventory *handlers.InventoryHandler
	Breeds    *handlers.BreedHandler
	Webhook   *handlers.WebhookHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(zapLoggerMiddleware(logger))
	r.Use(metricsMiddleware(m))
	r.Use(errorMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	cycles := r.Group("/cycles")
	{
		cycles.POST("", h.Cycles.Create)
		cycles.GET("", h.Cycles.List)
		cycles.GET("/:id", h.Cycles.Get)
		cycles.POST("/:id/complete", h.Cycles.Complete)
		cycles.POST("/:id/daily-logs", h.Cycles.AddDailyLog)
		cycles.GET("/:id/daily-logs", h.Cycles.ListDailyLogs)
		cycles.POST("/:id/health", h.Cycles.AddHealthRecord)
		cycles.GET("/:id/health", h.Cycles.ListHealthRecords)
		cycles.POST("/:id/transactions", h.Cycles.AddTransaction)
		cycles.GET("/:id/transactions", h.Cycles.ListTransactions)

		cycles.GET("/:id/aggregates", h.Reports.Aggregates)
		cycles.GET("/:id/financials", h.Reports.Financials)
		cycles.GET("/:id/kpis", h.Reports.KPIs)
		cycles.GET("/:id/report", h.Reports.Report)
		cycles.GET("/:id/reports", h.Reports.History)
	}

	r.POST("/farm/transactions", h.Cycles.AddFarmTransaction)
	r.GET("/farm/transactions", h.Cycles.ListFarmTransactions)
	r.GET("/dashboard", h.Reports.Dashboard)

	inventory := r.Group("/inventory")
	{
		inventory.GET("", h.Inventory.List)
		inventory.POST("", h.Inventory.Add)
		inventory.POST("/:id/withdraw", h.Inventory.Withdraw)
		inventory.POST("/:id/adjust", h.Inventory.Adjust)
	}

	r.GET("/breeds", h.Breeds.List)
	r.GET("/breeds/:name/curve", h.Breeds.Curve)

	if h.Webhook != nil {
		r.GET("/webhook", h.Webhook.Verify)
		r.POST("/webhook", h.Webhook.Receive)
		r.POST("/send-message", h.Webhook.SendMessage)
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}
