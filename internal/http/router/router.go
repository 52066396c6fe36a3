package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/straye-as/production-api/internal/config"
	"github.com/straye-as/production-api/internal/database"
	"github.com/straye-as/production-api/internal/datawarehouse"
	"github.com/straye-as/production-api/internal/http/handler"
	"github.com/straye-as/production-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/straye-as/production-api/docs" // Import generated swagger docs
)

type Router struct {
	cfg               *config.Config
	logger            *zap.Logger
	db                *gorm.DB
	dwClient          *datawarehouse.Client
	rateLimiter       *middleware.RateLimiter
	machineHandler    *handler.MachineHandler
	orderSheetHandler *handler.OrderSheetHandler
	workOrderHandler  *handler.WorkOrderHandler
	reportHandler     *handler.ReportHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	dwClient *datawarehouse.Client,
	rateLimiter *middleware.RateLimiter,
	machineHandler *handler.MachineHandler,
	orderSheetHandler *handler.OrderSheetHandler,
	workOrderHandler *handler.WorkOrderHandler,
	reportHandler *handler.ReportHandler,
) *Router {
	return &Router{
		cfg:               cfg,
		logger:            logger,
		db:                db,
		dwClient:          dwClient,
		rateLimiter:       rateLimiter,
		machineHandler:    machineHandler,
		orderSheetHandler: orderSheetHandler,
		workOrderHandler:  workOrderHandler,
		reportHandler:     reportHandler,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Operator)
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.Limit)
	if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Database health check with pool stats
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats := database.HealthCheckWithStats(r.Context(), rt.db)
		status := http.StatusOK
		if stats.Error != "" {
			rt.logger.Error("Database health check failed", zap.String("error", stats.Error))
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]interface{}{
			"service": "database",
			"stats":   stats,
			"status":  stats.Status,
		})
	})

	// Combined readiness check. The data warehouse is optional and never fails readiness.
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		if err := database.HealthCheck(r.Context(), rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		checks["dataWarehouse"] = rt.dwClient.HealthCheck(r.Context())

		if allHealthy {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status": "healthy",
				"checks": checks,
			})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"checks": checks,
		})
	})

	// Swagger documentation
	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Stages and machine registry
		r.Get("/stages", rt.machineHandler.ListStages)
		r.Get("/stages/{stage}/machines", rt.machineHandler.ListByStage)

		r.Route("/machines", func(r chi.Router) {
			r.Get("/", rt.machineHandler.List)
			r.Post("/", rt.machineHandler.Create)
			r.Get("/{id}", rt.machineHandler.GetByID)
			r.Put("/{id}", rt.machineHandler.Update)
			r.Post("/{id}/activate", rt.machineHandler.Activate)
			r.Post("/{id}/deactivate", rt.machineHandler.Deactivate)
		})

		// Order sheets
		r.Route("/order-sheets", func(r chi.Router) {
			r.Get("/", rt.orderSheetHandler.List)
			r.Post("/", rt.orderSheetHandler.Create)
			r.Post("/from-sales-order/{ref}", rt.orderSheetHandler.CreateFromSalesOrderRef)
			r.Get("/{id}", rt.orderSheetHandler.GetByID)
			r.Post("/{id}/cancel", rt.orderSheetHandler.Cancel)
			r.Post("/{id}/deliver", rt.orderSheetHandler.Deliver)

			// Progress views
			r.Get("/{id}/progress", rt.orderSheetHandler.Progress)
			r.Get("/{id}/progress/order-wise", rt.orderSheetHandler.OrderWise)
			r.Get("/{id}/progress/product-wise", rt.orderSheetHandler.ProductWise)
			r.Get("/{id}/progress/machine-wise", rt.orderSheetHandler.MachineWise)
		})

		// Work orders
		r.Route("/work-orders", func(r chi.Router) {
			r.Get("/", rt.workOrderHandler.List)
			r.Get("/{id}", rt.workOrderHandler.GetByID)
			r.Get("/{id}/history", rt.workOrderHandler.History)

			// Lifecycle endpoints
			r.Post("/{id}/assign", rt.workOrderHandler.AssignMachine)
			r.Post("/{id}/start", rt.workOrderHandler.Start)
			r.Post("/{id}/hold", rt.workOrderHandler.Hold)
			r.Post("/{id}/resume", rt.workOrderHandler.Resume)
			r.Post("/{id}/complete", rt.workOrderHandler.Complete)
			r.Post("/{id}/cancel", rt.workOrderHandler.Cancel)
			r.Put("/{id}/priority", rt.workOrderHandler.SetPriority)

			// Production entries
			r.Get("/{id}/entries", rt.workOrderHandler.ListEntries)
			r.Post("/{id}/entries", rt.workOrderHandler.RecordEntry)
			r.Post("/{id}/entries/{entryId}/corrections", rt.workOrderHandler.CorrectEntry)
		})

		// Daily production report
		r.Route("/reports", func(r chi.Router) {
			r.Get("/dpr/daily", rt.reportHandler.Daily)
			r.Get("/dpr/daily.xlsx", rt.reportHandler.DailyWorkbook)
			r.Get("/dpr/weekly", rt.reportHandler.Weekly)

			r.Get("/exports", rt.reportHandler.ListExports)
			r.Post("/exports", rt.reportHandler.Export)
			r.Get("/exports/{filename}", rt.reportHandler.DownloadExport)
			r.Delete("/exports/{filename}", rt.reportHandler.DeleteExport)
		})
	})

	return r
}
