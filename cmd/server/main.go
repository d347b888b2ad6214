package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/config"
	"github.com/mamadbah2/broiler/internal/domain/breeds"
	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/metrics"
	"github.com/mamadbah2/broiler/internal/repository/memory"
	"github.com/mamadbah2/broiler/internal/repository/mongodb"
	"github.com/mamadbah2/broiler/internal/repository/records"
	"github.com/mamadbah2/broiler/internal/repository/sheets"
	"github.com/mamadbah2/broiler/internal/repository/sqlite"
	"github.com/mamadbah2/broiler/internal/scheduler"
	"github.com/mamadbah2/broiler/internal/server/handlers"
	"github.com/mamadbah2/broiler/internal/server/router"
	"github.com/mamadbah2/broiler/internal/service/aggregation"
	"github.com/mamadbah2/broiler/internal/service/calculator"
	inventorysvc "github.com/mamadbah2/broiler/internal/service/inventory"
	recordingsvc "github.com/mamadbah2/broiler/internal/service/recording"
	reportingsvc "github.com/mamadbah2/broiler/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/broiler/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/broiler/pkg/clients/whatsapp"
	"github.com/mamadbah2/broiler/pkg/logger"
)

func main() {
	envFile := flag.String("env", "", "optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, archive, closeStore, err := openStore(ctx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to open records store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	table := breeds.Default()
	if cfg.Breeds.CurvesPath != "" {
		if err := table.LoadFile(cfg.Breeds.CurvesPath); err != nil {
			baseLogger.Fatal("failed to load breed curves", zap.String("path", cfg.Breeds.CurvesPath), zap.Error(err))
		}
	}
	baseLogger.Info("breed curves loaded", zap.Strings("breeds", table.Names()))

	m := metrics.New(metrics.DefaultConfig())

	engine := aggregation.NewEngine(store, m, logger.Named(baseLogger, "svc.aggregation"))
	calc := calculator.NewCalculator(table, logger.Named(baseLogger, "svc.metrics"))
	inventorySvc := inventorysvc.NewService(store, m, logger.Named(baseLogger, "svc.inventory"))

	var sinks []reportingsvc.Sink
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sinks = append(sinks, sheets.NewReportSink(sheetsRepo, cfg.Sheets.ReportRange))
	} else {
		baseLogger.Warn("google sheets not configured, report rows will not be exported")
	}

	reportOpts := reportingsvc.Options{
		Stock:   inventorySvc,
		Archive: archive,
		Sinks:   sinks,
		Metrics: m,
	}

	// Messaging dispatches commands to recording, recording renders /report
	// through reporting, and reporting notifies through messaging.
	var whatsClient *whatsappclient.APIClient
	if cfg.WhatsApp.Enabled() {
		whatsClient = whatsappclient.NewClient(cfg.WhatsApp)
	} else {
		baseLogger.Warn("whatsapp not configured, webhook and report delivery disabled")
	}

	var messagingSvc *whatsappsvc.MetaWhatsAppService
	var recordingSvc *recordingsvc.Service
	reportOpts.Recipient = cfg.WhatsApp.ReportRecipient
	if whatsClient != nil {
		messagingSvc = whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, commandsFunc(func() *recordingsvc.Service { return recordingSvc }), logger.Named(baseLogger, "svc.whatsapp"))
		reportOpts.Notifier = messagingSvc
	}

	reportingSvc := reportingsvc.NewService(store, engine, calc, cfg.Costs, reportOpts, logger.Named(baseLogger, "svc.reporting"))
	recordingSvc = recordingsvc.NewService(store, inventorySvc, reportingSvc, m, logger.Named(baseLogger, "svc.recording"))

	h := router.Handlers{
		Cycles:    handlers.NewCycleHandler(recordingSvc, logger.Named(baseLogger, "handlers.cycles")),
		Reports:   handlers.NewReportHandler(reportingSvc, logger.Named(baseLogger, "handlers.reports")),
		Inventory: handlers.NewInventoryHandler(inventorySvc, logger.Named(baseLogger, "handlers.inventory")),
		Breeds:    handlers.NewBreedHandler(table),
	}
	if messagingSvc != nil {
		h.Webhook = handlers.NewWebhookHandler(messagingSvc, logger.Named(baseLogger, "handlers.whatsapp"))
	}
	ginEngine := router.New(h, m, logger.Named(baseLogger, "router"))

	if cfg.Reporting.Enabled {
		sched, err := scheduler.NewScheduler(cfg.Reporting, reportingSvc, logger.Named(baseLogger, "scheduler"))
		if err != nil {
			baseLogger.Fatal("failed to init scheduler", zap.Error(err))
		}
		if err := sched.Start(); err != nil {
			baseLogger.Fatal("failed to start scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      ginEngine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore builds the configured records store and the matching report archive.
func openStore(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) (records.Store, reportingsvc.Archive, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMongoDB:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		repo, err := mongodb.NewMongoDBRepository(connectCtx, cfg.MongoDB, logger.Named(baseLogger, "repo.mongodb"))
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := repo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}
		return repo, repo, closeFn, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path, logger.Named(baseLogger, "repo.sqlite"))
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := store.Close(); err != nil {
				baseLogger.Error("failed to close sqlite database", zap.Error(err))
			}
		}
		return store, memory.NewReportArchive(), closeFn, nil
	default:
		baseLogger.Warn("using in-memory store, records are lost on restart")
		return memory.NewStore(), memory.NewReportArchive(), func() {}, nil
	}
}

// commandsFunc defers resolving the command handler until a message arrives,
// which breaks the construction cycle between messaging and recording.
type commandsFunc func() *recordingsvc.Service

func (f commandsFunc) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	return f().HandleCommand(ctx, cmd, sender)
}
