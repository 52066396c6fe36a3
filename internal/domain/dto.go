package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================================================
// Requests
// ============================================================================

// SalesOrderLineItem is one ordered item of an incoming sales order
type SalesOrderLineItem struct {
	LineRef  string          `json:"lineRef,omitempty" validate:"max=100"`
	ItemID   string          `json:"itemId" validate:"required,max=100"`
	ItemName string          `json:"itemName,omitempty" validate:"max=200"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit" validate:"required,max=20"`
}

// SalesOrder is the payload supplied by the sales order source when creating an order sheet
type SalesOrder struct {
	ID           string               `json:"id" validate:"required,max=100"`
	CustomerID   string               `json:"customerId" validate:"required,max=100"`
	CustomerName string               `json:"customerName,omitempty" validate:"max=200"`
	OrderDate    *time.Time           `json:"orderDate,omitempty"`
	DeliveryDate *time.Time           `json:"deliveryDate,omitempty"`
	Priority     Priority             `json:"priority,omitempty" validate:"omitempty,oneof=urgent high normal low"`
	LineItems    []SalesOrderLineItem `json:"lineItems" validate:"dive"`
}

type CreateMachineRequest struct {
	Code               string          `json:"code" validate:"required,max=50"`
	Name               string          `json:"name" validate:"required,max=200"`
	StageType          Stage           `json:"stageType" validate:"required,oneof=coating slitting rewinding cutting packing ready_to_deliver"`
	Location           string          `json:"location,omitempty" validate:"max=200"`
	Capacity           decimal.Decimal `json:"capacity" validate:"gte=0"`
	CapacityUnit       string          `json:"capacityUnit,omitempty" validate:"max=20"`
	WastageNormPercent decimal.Decimal `json:"wastageNormPercent" validate:"gte=0"`
}

type UpdateMachineRequest struct {
	Name               string          `json:"name" validate:"required,max=200"`
	StageType          Stage           `json:"stageType" validate:"required,oneof=coating slitting rewinding cutting packing ready_to_deliver"`
	Location           string          `json:"location,omitempty" validate:"max=200"`
	Capacity           decimal.Decimal `json:"capacity" validate:"gte=0"`
	CapacityUnit       string          `json:"capacityUnit,omitempty" validate:"max=20"`
	WastageNormPercent decimal.Decimal `json:"wastageNormPercent" validate:"gte=0"`
}

type AssignMachineRequest struct {
	MachineID  uuid.UUID `json:"machineId" validate:"required"`
	OperatorID string    `json:"operatorId,omitempty" validate:"max=100"`
}

// TransitionRequest is the body of the manual work order transitions
type TransitionRequest struct {
	OperatorID string `json:"operatorId,omitempty" validate:"max=100"`
	Reason     string `json:"reason,omitempty" validate:"max=1000"`
}

type SetPriorityRequest struct {
	Priority   Priority `json:"priority" validate:"required,oneof=urgent high normal low"`
	OperatorID string   `json:"operatorId,omitempty" validate:"max=100"`
}

// RecordEntryRequest is one production batch reported by an operator
type RecordEntryRequest struct {
	WorkOrderID     uuid.UUID       `json:"-"`
	OperatorID      string          `json:"operatorId" validate:"required,max=100"`
	StartTime       time.Time       `json:"startTime" validate:"required"`
	EndTime         time.Time       `json:"endTime" validate:"required"`
	InputQuantity   decimal.Decimal `json:"inputQuantity" validate:"gte=0"`
	InputUnit       string          `json:"inputUnit,omitempty" validate:"max=20"`
	OutputQuantity  decimal.Decimal `json:"outputQuantity" validate:"gte=0"`
	OutputUnit      string          `json:"outputUnit,omitempty" validate:"max=20"`
	WastageQuantity decimal.Decimal `json:"wastageQuantity" validate:"gte=0"`
	WastageUnit     string          `json:"wastageUnit,omitempty" validate:"max=20"`
	Attributes      StageAttributes `json:"attributes,omitempty"`
	Reason          string          `json:"reason,omitempty" validate:"max=1000"`
	Notes           string          `json:"notes,omitempty"`
}

// CorrectEntryRequest appends a compensating entry for an earlier one.
// Deltas are signed; the corrected totals may not drop below zero.
type CorrectEntryRequest struct {
	WorkOrderID  uuid.UUID       `json:"-"`
	EntryID      uuid.UUID       `json:"-"`
	OperatorID   string          `json:"operatorId" validate:"required,max=100"`
	InputDelta   decimal.Decimal `json:"inputDelta"`
	OutputDelta  decimal.Decimal `json:"outputDelta"`
	WastageDelta decimal.Decimal `json:"wastageDelta"`
	Reason       string          `json:"reason" validate:"max=1000"`
}

// ============================================================================
// DTOs
// ============================================================================

type MachineDTO struct {
	ID                 uuid.UUID       `json:"id"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	StageType          Stage           `json:"stageType"`
	Location           string          `json:"location,omitempty"`
	Capacity           decimal.Decimal `json:"capacity"`
	CapacityUnit       string          `json:"capacityUnit,omitempty"`
	WastageNormPercent decimal.Decimal `json:"wastageNormPercent"`
	Status             MachineStatus   `json:"status"`
	CreatedAt          string          `json:"createdAt"`
	UpdatedAt          string          `json:"updatedAt"`
}

type OrderSheetLineDTO struct {
	LineRef  string          `json:"lineRef"`
	ItemID   string          `json:"itemId"`
	ItemName string          `json:"itemName,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
}

type OrderSheetDTO struct {
	ID              uuid.UUID           `json:"id"`
	SheetNumber     string              `json:"sheetNumber"`
	SalesOrderRef   string              `json:"salesOrderRef"`
	CustomerRef     string              `json:"customerRef"`
	CustomerName    string              `json:"customerName,omitempty"`
	OrderDate       string              `json:"orderDate"`
	DeliveryDate    *string             `json:"deliveryDate,omitempty"`
	Priority        Priority            `json:"priority"`
	Status          OrderSheetStatus    `json:"status"`
	ProgressPercent decimal.Decimal     `json:"progressPercent"`
	Lines           []OrderSheetLineDTO `json:"lines"`
	WorkOrders      []WorkOrderDTO      `json:"workOrders,omitempty"`
	DeliveredAt     *string             `json:"deliveredAt,omitempty"`
	CreatedAt       string              `json:"createdAt"`
	UpdatedAt       string              `json:"updatedAt"`
}

type WorkOrderDTO struct {
	ID                   uuid.UUID       `json:"id"`
	OrderSheetID         uuid.UUID       `json:"orderSheetId"`
	SalesOrderLineRef    string          `json:"salesOrderLineRef"`
	ItemID               string          `json:"itemId"`
	ItemName             string          `json:"itemName,omitempty"`
	Stage                Stage           `json:"stage"`
	TargetQuantity       decimal.Decimal `json:"targetQuantity"`
	Unit                 string          `json:"unit"`
	CompletedQuantity    decimal.Decimal `json:"completedQuantity"`
	WastageQuantity      decimal.Decimal `json:"wastageQuantity"`
	ActualWastagePercent decimal.Decimal `json:"actualWastagePercent"`
	RemainingQuantity    decimal.Decimal `json:"remainingQuantity"`
	OverTarget           bool            `json:"overTarget"`
	MachineID            *uuid.UUID      `json:"machineId,omitempty"`
	MachineCode          string          `json:"machineCode,omitempty"`
	Priority             Priority        `json:"priority"`
	Status               WorkOrderStatus `json:"status"`
	HoldReason           string          `json:"holdReason,omitempty"`
	CancelReason         string          `json:"cancelReason,omitempty"`
	StartedAt            *string         `json:"startedAt,omitempty"`
	CompletedAt          *string         `json:"completedAt,omitempty"`
	CreatedAt            string          `json:"createdAt"`
}

type ProductionEntryDTO struct {
	ID                 uuid.UUID       `json:"id"`
	WorkOrderID        uuid.UUID       `json:"workOrderId"`
	MachineID          *uuid.UUID      `json:"machineId,omitempty"`
	Stage              Stage           `json:"stage"`
	OperatorID         string          `json:"operatorId"`
	StartTime          string          `json:"startTime"`
	EndTime            string          `json:"endTime"`
	InputQuantity      decimal.Decimal `json:"inputQuantity"`
	InputUnit          string          `json:"inputUnit,omitempty"`
	OutputQuantity     decimal.Decimal `json:"outputQuantity"`
	OutputUnit         string          `json:"outputUnit,omitempty"`
	WastageQuantity    decimal.Decimal `json:"wastageQuantity"`
	WastageUnit        string          `json:"wastageUnit,omitempty"`
	WastagePercent     decimal.Decimal `json:"wastagePercent"`
	WastageNormPercent decimal.Decimal `json:"wastageNormPercent"`
	WastageExceeded    bool            `json:"wastageExceeded"`
	Reason             string          `json:"reason,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	Attributes         StageAttributes `json:"attributes"`
	CompensatesEntryID *uuid.UUID      `json:"compensatesEntryId,omitempty"`
	CreatedAt          string          `json:"createdAt"`
}

// RecordEntryResult is returned after an entry is appended. WastageExceeded is the
// per-entry alert, separate from the work order's cumulative wastage figure.
type RecordEntryResult struct {
	Entry           ProductionEntryDTO `json:"entry"`
	WorkOrder       WorkOrderDTO       `json:"workOrder"`
	WastageExceeded bool               `json:"wastageExceeded"`
	AutoCompleted   bool               `json:"autoCompleted"`
}

type WorkOrderStatusHistoryDTO struct {
	ID                 uuid.UUID        `json:"id"`
	WorkOrderID        uuid.UUID        `json:"workOrderId"`
	FromStatus         *WorkOrderStatus `json:"fromStatus,omitempty"`
	ToStatus           WorkOrderStatus  `json:"toStatus"`
	ChangedBy          string           `json:"changedBy,omitempty"`
	Reason             string           `json:"reason,omitempty"`
	ChangedAt          string           `json:"changedAt"`
	TriggeredByEntryID *uuid.UUID       `json:"triggeredByEntryId,omitempty"`
}

// ============================================================================
// Aggregation views
// ============================================================================

// OrderLineProgress sums all stages of one sales order line
type OrderLineProgress struct {
	SalesOrderLineRef string          `json:"salesOrderLineRef"`
	ItemID            string          `json:"itemId"`
	ItemName          string          `json:"itemName,omitempty"`
	WorkOrderCount    int             `json:"workOrderCount"`
	TargetQuantity    decimal.Decimal `json:"targetQuantity"`
	CompletedQuantity decimal.Decimal `json:"completedQuantity"`
	Percent           decimal.Decimal `json:"percent"`
}

// BucketState summarises the work orders of one product at one stage
type BucketState string

const (
	BucketStateEmpty     BucketState = "empty"
	BucketStatePending   BucketState = "pending"
	BucketStateActive    BucketState = "active"
	BucketStateOnHold    BucketState = "on_hold"
	BucketStateDone      BucketState = "done"
	BucketStateCancelled BucketState = "cancelled"
)

// ProductStageBucket holds an item's work orders at one stage
type ProductStageBucket struct {
	Stage      Stage          `json:"stage"`
	State      BucketState    `json:"state"`
	WorkOrders []WorkOrderDTO `json:"workOrders"`
}

// ProductProgress is the pipeline visualisation for one item
type ProductProgress struct {
	ItemID   string               `json:"itemId"`
	ItemName string               `json:"itemName,omitempty"`
	Stages   []ProductStageBucket `json:"stages"`
}

// MachineLoad sums the work orders assigned to one machine
type MachineLoad struct {
	MachineID         uuid.UUID       `json:"machineId"`
	MachineCode       string          `json:"machineCode,omitempty"`
	MachineName       string          `json:"machineName,omitempty"`
	Stage             Stage           `json:"stage,omitempty"`
	WorkOrderCount    int             `json:"workOrderCount"`
	ActiveCount       int             `json:"activeCount"`
	TargetQuantity    decimal.Decimal `json:"targetQuantity"`
	CompletedQuantity decimal.Decimal `json:"completedQuantity"`
	RemainingQuantity decimal.Decimal `json:"remainingQuantity"`
	Percent           decimal.Decimal `json:"percent"`
}

// SheetProgress is the overall completion of an order sheet
type SheetProgress struct {
	OrderSheetID      uuid.UUID                 `json:"orderSheetId"`
	TargetQuantity    decimal.Decimal           `json:"targetQuantity"`
	CompletedQuantity decimal.Decimal           `json:"completedQuantity"`
	Percent           decimal.Decimal           `json:"percent"`
	StatusCounts      map[WorkOrderStatus]int   `json:"statusCounts"`
	StagePercent      map[Stage]decimal.Decimal `json:"stagePercent"`
}

// ============================================================================
// Daily / weekly production report
// ============================================================================

type ReportPeriod string

const (
	ReportPeriodDaily  ReportPeriod = "daily"
	ReportPeriodWeekly ReportPeriod = "weekly"
)

// ReportTotals are the rolled-up figures of a group of production entries
type ReportTotals struct {
	EntryCount     int             `json:"entryCount"`
	Input          decimal.Decimal `json:"input"`
	Output         decimal.Decimal `json:"output"`
	Wastage        decimal.Decimal `json:"wastage"`
	WastagePercent decimal.Decimal `json:"wastagePercent"`
	Hours          decimal.Decimal `json:"hours"`
	HourlyOutput   decimal.Decimal `json:"hourlyOutput"`
}

// MachineReport is the DPR line for one machine within a stage
type MachineReport struct {
	MachineID          *uuid.UUID      `json:"machineId,omitempty"`
	MachineCode        string          `json:"machineCode,omitempty"`
	MachineName        string          `json:"machineName,omitempty"`
	WastageNormPercent decimal.Decimal `json:"wastageNormPercent"`
	AboveNorm          bool            `json:"aboveNorm"`
	ReportTotals
}

// StageReport groups machine lines for one stage
type StageReport struct {
	Stage    Stage           `json:"stage"`
	Machines []MachineReport `json:"machines"`
	Totals   ReportTotals    `json:"totals"`
}

// ProductionReport is the daily or weekly production report
type ProductionReport struct {
	Period        ReportPeriod              `json:"period"`
	From          string                    `json:"from"`
	To            string                    `json:"to"`
	Timezone      string                    `json:"timezone"`
	Stages        []StageReport             `json:"stages"`
	Totals        ReportTotals              `json:"totals"`
	StatusChanges map[WorkOrderStatus]int64 `json:"statusChanges"`
	GeneratedAt   string                    `json:"generatedAt"`
}

// ============================================================================
// Shared
// ============================================================================

// Paginated response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// ErrorResponse documents the error body for swagger
type ErrorResponse = APIError
