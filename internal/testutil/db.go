package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/production-api/internal/database"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/repository"
	"github.com/straye-as/production-api/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB opens a private in-memory sqlite database with the full schema.
// A single connection is used so concurrent callers serialize like row locks would.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.Config())
	require.NoError(t, err, "Failed to open sqlite test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Repositories bundles every repository over one database
type Repositories struct {
	Machines   *repository.MachineRepository
	Sequences  *repository.NumberSequenceRepository
	Sheets     *repository.OrderSheetRepository
	WorkOrders *repository.WorkOrderRepository
	History    *repository.WorkOrderStatusHistoryRepository
	Entries    *repository.ProductionEntryRepository
}

// NewRepositories builds the repositories used by the services
func NewRepositories(db *gorm.DB) *Repositories {
	sequences := repository.NewNumberSequenceRepository()
	return &Repositories{
		Machines:   repository.NewMachineRepository(db),
		Sequences:  sequences,
		Sheets:     repository.NewOrderSheetRepository(db, sequences),
		WorkOrders: repository.NewWorkOrderRepository(db),
		History:    repository.NewWorkOrderStatusHistoryRepository(db),
		Entries:    repository.NewProductionEntryRepository(db),
	}
}

// Services is the service graph wired the same way cmd/api does it
type Services struct {
	DB          *gorm.DB
	Repos       *Repositories
	Machines    *service.MachineService
	Sheets      *service.OrderSheetService
	WorkOrders  *service.WorkOrderService
	Entries     *service.ProductionEntryService
	Aggregation *service.AggregationService
	Reports     *service.ReportService
}

// NewServices wires all services over a fresh test database. source may be nil.
func NewServices(t *testing.T, source service.SalesOrderSource) *Services {
	t.Helper()

	db := SetupTestDB(t)
	repos := NewRepositories(db)
	log := zap.NewNop()

	workOrders := service.NewWorkOrderService(repos.WorkOrders, repos.Machines, repos.Sheets, repos.History, log)
	return &Services{
		DB:          db,
		Repos:       repos,
		Machines:    service.NewMachineService(repos.Machines, log),
		Sheets:      service.NewOrderSheetService(repos.Sheets, source, log),
		WorkOrders:  workOrders,
		Entries:     service.NewProductionEntryService(repos.Entries, repos.WorkOrders, repos.Machines, workOrders, log),
		Aggregation: service.NewAggregationService(repos.Sheets, repos.WorkOrders),
		Reports:     service.NewReportService(repos.Entries, repos.History, time.UTC, log),
	}
}

// CreateTestMachine registers an active machine for a stage with the given wastage norm
func CreateTestMachine(t *testing.T, db *gorm.DB, code string, stage domain.Stage, norm string) *domain.Machine {
	t.Helper()

	machine := &domain.Machine{
		Code:               code,
		Name:               "Machine " + code,
		StageType:          stage,
		Capacity:           decimal.NewFromInt(1000),
		CapacityUnit:       "m",
		WastageNormPercent: decimal.RequireFromString(norm),
		Status:             domain.MachineStatusActive,
	}
	require.NoError(t, db.Create(machine).Error)
	return machine
}

// SampleSalesOrder returns a sales order with one line per quantity, items ITEM-1, ITEM-2, ...
func SampleSalesOrder(ref string, quantities ...int64) *domain.SalesOrder {
	orderDate := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	so := &domain.SalesOrder{
		ID:           ref,
		CustomerID:   "CUST-001",
		CustomerName: "Acme Tapes",
		OrderDate:    &orderDate,
		Priority:     domain.PriorityNormal,
	}
	for i, qty := range quantities {
		so.LineItems = append(so.LineItems, domain.SalesOrderLineItem{
			LineRef:  fmt.Sprintf("%d", (i+1)*10),
			ItemID:   fmt.Sprintf("ITEM-%d", i+1),
			ItemName: fmt.Sprintf("Tape %d", i+1),
			Quantity: decimal.NewFromInt(qty),
			Unit:     "roll",
		})
	}
	return so
}

// WorkOrderAt returns the work order of a sheet for the given line and stage
func WorkOrderAt(t *testing.T, sheet *domain.OrderSheetDTO, lineRef string, stage domain.Stage) domain.WorkOrderDTO {
	t.Helper()

	for _, wo := range sheet.WorkOrders {
		if wo.SalesOrderLineRef == lineRef && wo.Stage == stage {
			return wo
		}
	}
	require.FailNowf(t, "work order not found", "line %s stage %s", lineRef, stage)
	return domain.WorkOrderDTO{}
}

// StartOnMachine assigns the machine to the work order and starts it
func StartOnMachine(t *testing.T, svc *Services, workOrderID, machineID uuid.UUID) *domain.WorkOrderDTO {
	t.Helper()

	ctx := context.Background()
	_, err := svc.WorkOrders.AssignMachine(ctx, workOrderID, machineID)
	require.NoError(t, err)
	wo, err := svc.WorkOrders.Start(ctx, workOrderID, "op-1")
	require.NoError(t, err)
	return wo
}

// Entry builds a record request starting at start and lasting one hour
func Entry(workOrderID uuid.UUID, start time.Time, input, output, wastage int64) *domain.RecordEntryRequest {
	return &domain.RecordEntryRequest{
		WorkOrderID:     workOrderID,
		OperatorID:      "op-1",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		InputQuantity:   decimal.NewFromInt(input),
		OutputQuantity:  decimal.NewFromInt(output),
		WastageQuantity: decimal.NewFromInt(wastage),
	}
}

// ProductionDay is the calendar day test entries are recorded on
var ProductionDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// At returns the given hour of ProductionDay
func At(hour int) time.Time {
	return ProductionDay.Add(time.Duration(hour) * time.Hour)
}

// RandomID returns an ID that matches no stored row
func RandomID() uuid.UUID {
	return uuid.New()
}
