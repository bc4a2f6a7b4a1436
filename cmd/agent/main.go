package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/config"
	"github.com/retailops/stockaudit/internal/export"
	"github.com/retailops/stockaudit/internal/repository/mongodb"
	"github.com/retailops/stockaudit/internal/repository/sheets"
	"github.com/retailops/stockaudit/internal/scanner"
	"github.com/retailops/stockaudit/internal/scheduler"
	"github.com/retailops/stockaudit/internal/server/handlers"
	"github.com/retailops/stockaudit/internal/server/router"
	auditsvc "github.com/retailops/stockaudit/internal/service/audit"
	reportsvc "github.com/retailops/stockaudit/internal/service/report"
	"github.com/retailops/stockaudit/pkg/clients/inventory"
	"github.com/retailops/stockaudit/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	mongoRepo, err := mongodb.NewMongoDBRepository(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := mongoRepo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	// The supervisors' summary spreadsheet is optional.
	var publisher sheets.Publisher
	if cfg.Sheets.CredentialsPath != "" {
		sheetsPublisher, err := sheets.NewSummaryPublisher(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets publisher", zap.Error(err))
		}
		publisher = sheetsPublisher
		baseLogger.Info("summary spreadsheet publishing enabled")
	} else {
		baseLogger.Warn("sheets credentials missing, summary publishing disabled")
	}

	inventoryClient := inventory.NewClient(cfg.Inventory)
	auditSvc := auditsvc.NewService(inventoryClient, mongoRepo, cfg.Branch.Code, baseLogger.Named("svc.audit"))
	reportSvc := reportsvc.NewService(inventoryClient, baseLogger.Named("svc.report"))

	decoderFactory := scanner.NewFactory(cfg.Scanner, baseLogger.Named("scanner"))
	debouncer := scanner.NewDebouncer(scanner.DefaultDebounceWindow)
	controller := scanner.NewController(decoderFactory, debouncer, func(code string, privileged bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, _, err := auditSvc.Resolve(ctx, code, privileged); err != nil {
			baseLogger.Warn("scan resolution failed", zap.String("code", code), zap.Error(err))
		}
	}, baseLogger.Named("scanner.controller"))
	defer controller.Close()

	builder := export.NewBuilder(baseLogger.Named("export"))
	scanHandler := handlers.NewScanHandler(controller, auditSvc, baseLogger.Named("handlers.scan"))
	reportHandler := handlers.NewReportHandler(reportSvc, builder, baseLogger.Named("handlers.report"))
	engine := router.New(scanHandler, reportHandler, cfg.Metrics.Enabled, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Reporting, reportSvc, mongoRepo, publisher, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("agent starting",
			zap.String("port", cfg.Server.Port),
			zap.String("branch", cfg.Branch.Code))
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
