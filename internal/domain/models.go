package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the caller did not set one
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// MachineStatus represents whether a machine can take new work
type MachineStatus string

const (
	MachineStatusActive   MachineStatus = "active"
	MachineStatusInactive MachineStatus = "inactive"
)

// IsValid checks if the MachineStatus is a valid enum value
func (s MachineStatus) IsValid() bool {
	return s == MachineStatusActive || s == MachineStatusInactive
}

// Machine is a physical production line tagged with the stage it performs
type Machine struct {
	BaseModel
	Code               string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name               string          `gorm:"type:varchar(200);not null"`
	StageType          Stage           `gorm:"type:varchar(50);not null;index;column:stage_type"`
	Location           string          `gorm:"type:varchar(200)"`
	Capacity           decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0"`
	CapacityUnit       string          `gorm:"type:varchar(20);column:capacity_unit"`
	WastageNormPercent decimal.Decimal `gorm:"type:numeric(9,4);not null;default:0;column:wastage_norm_percent"`
	Status             MachineStatus   `gorm:"type:varchar(20);not null;default:'active';index"`
}

// IsActive reports whether the machine accepts new assignments
func (m *Machine) IsActive() bool {
	return m.Status == MachineStatusActive
}

// Priority is the scheduling priority of an order sheet or work order
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// IsValid checks if the Priority is a valid enum value
func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities from most to least urgent (0 = urgent)
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	default:
		return 3
	}
}

// OrderSheetStatus represents the lifecycle of an order sheet
type OrderSheetStatus string

const (
	OrderSheetStatusOpen         OrderSheetStatus = "open"
	OrderSheetStatusInProduction OrderSheetStatus = "in_production"
	OrderSheetStatusCompleted    OrderSheetStatus = "completed"
	OrderSheetStatusCancelled    OrderSheetStatus = "cancelled"
)

// IsTerminal reports whether the sheet can no longer change
func (s OrderSheetStatus) IsTerminal() bool {
	return s == OrderSheetStatusCompleted || s == OrderSheetStatusCancelled
}

// OrderSheet groups the work orders generated from one sales order
type OrderSheet struct {
	BaseModel
	SheetNumber   string           `gorm:"type:varchar(50);not null;uniqueIndex;column:sheet_number"`
	SalesOrderRef string           `gorm:"type:varchar(100);not null;uniqueIndex;column:sales_order_ref"`
	CustomerRef   string           `gorm:"type:varchar(100);not null;index;column:customer_ref"`
	CustomerName  string           `gorm:"type:varchar(200);column:customer_name"`
	OrderDate     time.Time        `gorm:"not null;column:order_date"`
	DeliveryDate  *time.Time       `gorm:"column:delivery_date"`
	Priority      Priority         `gorm:"type:varchar(20);not null;default:'normal'"`
	Status        OrderSheetStatus `gorm:"type:varchar(20);not null;default:'open';index"`
	DeliveredAt   *time.Time       `gorm:"column:delivered_at"`
	Lines         []OrderSheetLine `gorm:"foreignKey:OrderSheetID;constraint:OnDelete:CASCADE"`
	WorkOrders    []WorkOrder      `gorm:"foreignKey:OrderSheetID;constraint:OnDelete:CASCADE"`
}

// OrderSheetLine is a sales order line item captured when the sheet was created
type OrderSheetLine struct {
	BaseModel
	OrderSheetID uuid.UUID       `gorm:"type:uuid;not null;index;column:order_sheet_id"`
	LineRef      string          `gorm:"type:varchar(100);not null;column:line_ref"`
	ItemID       string          `gorm:"type:varchar(100);not null;column:item_id"`
	ItemName     string          `gorm:"type:varchar(200);column:item_name"`
	Quantity     decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Unit         string          `gorm:"type:varchar(20);not null"`
	Position     int             `gorm:"not null;default:0"`
}

// WorkOrderStatus represents a work order's position in its state machine
type WorkOrderStatus string

const (
	WorkOrderStatusPending    WorkOrderStatus = "pending"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusOnHold     WorkOrderStatus = "on_hold"
	WorkOrderStatusCompleted  WorkOrderStatus = "completed"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible
func (s WorkOrderStatus) IsTerminal() bool {
	return s == WorkOrderStatusCompleted || s == WorkOrderStatusCancelled
}

// IsValid checks if the WorkOrderStatus is a valid enum value
func (s WorkOrderStatus) IsValid() bool {
	switch s {
	case WorkOrderStatusPending, WorkOrderStatusInProgress, WorkOrderStatusOnHold,
		WorkOrderStatusCompleted, WorkOrderStatusCancelled:
		return true
	}
	return false
}

// WorkOrder is the unit of production for one item at one stage
type WorkOrder struct {
	BaseModel
	OrderSheetID         uuid.UUID       `gorm:"type:uuid;not null;index;column:order_sheet_id"`
	OrderSheet           *OrderSheet     `gorm:"foreignKey:OrderSheetID"`
	SalesOrderLineRef    string          `gorm:"type:varchar(100);not null;column:sales_order_line_ref"`
	ItemID               string          `gorm:"type:varchar(100);not null;index;column:item_id"`
	ItemName             string          `gorm:"type:varchar(200);column:item_name"`
	Stage                Stage           `gorm:"type:varchar(50);not null;index"`
	TargetQuantity       decimal.Decimal `gorm:"type:numeric(18,4);not null;column:target_quantity"`
	Unit                 string          `gorm:"type:varchar(20);not null"`
	CompletedQuantity    decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0;column:completed_quantity"`
	WastageQuantity      decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0;column:wastage_quantity"`
	ActualWastagePercent decimal.Decimal `gorm:"type:numeric(9,4);not null;default:0;column:actual_wastage_percent"`
	OverTarget           bool            `gorm:"not null;default:false;column:over_target"`
	MachineID            *uuid.UUID      `gorm:"type:uuid;index;column:machine_id"`
	Machine              *Machine        `gorm:"foreignKey:MachineID"`
	Priority             Priority        `gorm:"type:varchar(20);not null;default:'normal'"`
	Status               WorkOrderStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	HoldReason           string          `gorm:"type:text;column:hold_reason"`
	CancelReason         string          `gorm:"type:text;column:cancel_reason"`
	StartedAt            *time.Time      `gorm:"column:started_at"`
	CompletedAt          *time.Time      `gorm:"column:completed_at"`
}

// RemainingQuantity returns target minus completed, floored at zero
func (w *WorkOrder) RemainingQuantity() decimal.Decimal {
	remaining := w.TargetQuantity.Sub(w.CompletedQuantity)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// WorkOrderStatusHistory records every status change of a work order
type WorkOrderStatusHistory struct {
	ID            uuid.UUID        `gorm:"type:uuid;primary_key"`
	WorkOrderID   uuid.UUID        `gorm:"type:uuid;not null;index;column:work_order_id"`
	FromStatus    *WorkOrderStatus `gorm:"type:varchar(20);column:from_status"`
	ToStatus      WorkOrderStatus  `gorm:"type:varchar(20);not null;column:to_status"`
	ChangedBy     string           `gorm:"type:varchar(100);column:changed_by"`
	Reason        string           `gorm:"type:text"`
	ChangedAt     time.Time        `gorm:"not null;index;column:changed_at"`
	TriggeredByID *uuid.UUID       `gorm:"type:uuid;column:triggered_by_entry_id"`
}

// TableName keeps the history table name singular like the other ledgers
func (WorkOrderStatusHistory) TableName() string {
	return "work_order_status_history"
}

// BeforeCreate assigns an ID when the caller did not set one
func (h *WorkOrderStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// ProductionEntry is one recorded production batch against a work order.
// Rows are append-only: corrections are new rows that reference the corrected entry.
type ProductionEntry struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	WorkOrderID        uuid.UUID       `gorm:"type:uuid;not null;index;column:work_order_id"`
	WorkOrder          *WorkOrder      `gorm:"foreignKey:WorkOrderID"`
	MachineID          *uuid.UUID      `gorm:"type:uuid;index;column:machine_id"`
	Machine            *Machine        `gorm:"foreignKey:MachineID"`
	Stage              Stage           `gorm:"type:varchar(50);not null;index"`
	OperatorID         string          `gorm:"type:varchar(100);not null;column:operator_id"`
	StartTime          time.Time       `gorm:"not null;index;column:start_time"`
	EndTime            time.Time       `gorm:"not null;column:end_time"`
	InputQuantity      decimal.Decimal `gorm:"type:numeric(18,4);not null;column:input_quantity"`
	InputUnit          string          `gorm:"type:varchar(20);column:input_unit"`
	OutputQuantity     decimal.Decimal `gorm:"type:numeric(18,4);not null;column:output_quantity"`
	OutputUnit         string          `gorm:"type:varchar(20);column:output_unit"`
	WastageQuantity    decimal.Decimal `gorm:"type:numeric(18,4);not null;column:wastage_quantity"`
	WastageUnit        string          `gorm:"type:varchar(20);column:wastage_unit"`
	// On a correction row this is the percent of the corrected entry, not of the deltas
	WastagePercent     decimal.Decimal `gorm:"type:numeric(9,4);not null;column:wastage_percent"`
	WastageNormPercent decimal.Decimal `gorm:"type:numeric(9,4);not null;column:wastage_norm_percent"`
	WastageExceeded    bool            `gorm:"not null;default:false;column:wastage_exceeded"`
	Reason             string          `gorm:"type:text"`
	Notes              string          `gorm:"type:text"`
	Attributes         StageAttributes `gorm:"type:text"`
	CompensatesEntryID *uuid.UUID      `gorm:"type:uuid;index;column:compensates_entry_id"`
	CreatedAt          time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the caller did not set one
func (e *ProductionEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// IsCorrection reports whether the entry compensates an earlier one
func (e *ProductionEntry) IsCorrection() bool {
	return e.CompensatesEntryID != nil
}

// Duration returns the elapsed time of the batch, clipped to zero
func (e *ProductionEntry) Duration() time.Duration {
	d := e.EndTime.Sub(e.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// NumberSequence tracks the last used sheet number per year
type NumberSequence struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	Scope        string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_number_sequence_scope_year"`
	Year         int       `gorm:"not null;uniqueIndex:idx_number_sequence_scope_year"`
	LastSequence int       `gorm:"not null;default:0;column:last_sequence"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the caller did not set one
func (n *NumberSequence) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
