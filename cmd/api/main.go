package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/straye-as/production-api/docs"
	"github.com/straye-as/production-api/internal/config"
	"github.com/straye-as/production-api/internal/database"
	"github.com/straye-as/production-api/internal/datawarehouse"
	"github.com/straye-as/production-api/internal/http/handler"
	"github.com/straye-as/production-api/internal/http/middleware"
	"github.com/straye-as/production-api/internal/http/router"
	"github.com/straye-as/production-api/internal/jobs"
	"github.com/straye-as/production-api/internal/logger"
	"github.com/straye-as/production-api/internal/repository"
	"github.com/straye-as/production-api/internal/service"
	"github.com/straye-as/production-api/internal/storage"
	"go.uber.org/zap"
)

// @title Straye Production API
// @version 1.0
// @description Production workflow API: order sheets, stage work orders, machine assignment, production entries and daily production reports
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@straye.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey OperatorID
// @in header
// @name X-Operator-ID
// @description ID of the shop floor operator acting on the request

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logging comes from the plain config so secret resolution can be logged
	bootCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(&bootCfg.Logging, &bootCfg.App)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting production API",
		zap.String("env", bootCfg.App.Environment),
		zap.Int("port", bootCfg.App.Port),
	)
	docs.SwaggerInfo.Host = swaggerHost(bootCfg.App)

	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to resolve secrets: %w", err)
	}
	reportLocation, err := cfg.Report.Location()
	if err != nil {
		return err
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		log.Warn("File storage unavailable, report exports are download-only", zap.Error(err))
		fileStorage = nil
	}

	// The warehouse is optional; without it sales orders are posted to the API
	dwClient, err := datawarehouse.NewClient(&cfg.DataWarehouse, log)
	if err != nil {
		log.Warn("Data warehouse unreachable, continuing without it", zap.Error(err))
		dwClient = nil
	}
	defer func() {
		if err := dwClient.Close(); err != nil {
			log.Warn("Failed to close data warehouse", zap.Error(err))
		}
	}()
	var salesOrders service.SalesOrderSource
	if dwClient != nil {
		salesOrders = dwClient
	}

	sequences := repository.NewNumberSequenceRepository()
	machines := repository.NewMachineRepository(db)
	sheets := repository.NewOrderSheetRepository(db, sequences)
	workOrders := repository.NewWorkOrderRepository(db)
	history := repository.NewWorkOrderStatusHistoryRepository(db)
	entries := repository.NewProductionEntryRepository(db)

	machineService := service.NewMachineService(machines, log)
	sheetService := service.NewOrderSheetService(sheets, salesOrders, log)
	workOrderService := service.NewWorkOrderService(workOrders, machines, sheets, history, log)
	entryService := service.NewProductionEntryService(entries, workOrders, machines, workOrderService, log)
	aggregationService := service.NewAggregationService(sheets, workOrders)
	reportService := service.NewReportService(entries, history, reportLocation, log)
	exportService := service.NewReportExportService(reportService, fileStorage, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		dwClient,
		middleware.NewRateLimiter(&cfg.RateLimit, log),
		handler.NewMachineHandler(machineService, log),
		handler.NewOrderSheetHandler(sheetService, aggregationService, log),
		handler.NewWorkOrderHandler(workOrderService, entryService, log),
		handler.NewReportHandler(reportService, exportService, log),
	)

	scheduler := startScheduler(cfg, exportService, fileStorage != nil, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}
	return serve(ctx, srv, scheduler, log)
}

func swaggerHost(app config.AppConfig) string {
	switch app.Environment {
	case "staging":
		return "straye-production-staging.norwayeast.azurecontainerapps.io"
	case "production":
		return "production-api.straye.no"
	}
	return fmt.Sprintf("localhost:%d", app.Port)
}

// startScheduler registers the nightly DPR export. It returns nil when exports
// are disabled or there is nowhere to store them.
func startScheduler(cfg *config.Config, exports *service.ReportExportService, haveStorage bool, log *zap.Logger) *jobs.Scheduler {
	if !cfg.Report.ExportEnabled || !haveStorage {
		log.Info("Nightly DPR export off",
			zap.Bool("export_enabled", cfg.Report.ExportEnabled),
			zap.Bool("storage_available", haveStorage),
		)
		return nil
	}

	scheduler := jobs.NewScheduler(log)
	if err := jobs.RegisterDPRExportJob(scheduler, exports, log, cfg.Report.ExportCron, jobs.DefaultExportTimeout); err != nil {
		log.Error("Failed to register DPR export job", zap.Error(err))
		return nil
	}
	scheduler.Start()
	return scheduler
}

// serve runs srv until ctx is cancelled, then drains jobs and in-flight requests
func serve(ctx context.Context, srv *http.Server, scheduler *jobs.Scheduler, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}
	log.Info("Shutting down")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
