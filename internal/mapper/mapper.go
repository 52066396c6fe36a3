package mapper

import (
	"time"

	"github.com/straye-as/production-api/internal/domain"
)

const (
	timestampLayout = time.RFC3339
	dateLayout      = "2006-01-02"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToMachineDTO converts Machine to MachineDTO
func ToMachineDTO(machine *domain.Machine) domain.MachineDTO {
	return domain.MachineDTO{
		ID:                 machine.ID,
		Code:               machine.Code,
		Name:               machine.Name,
		StageType:          machine.StageType,
		Location:           machine.Location,
		Capacity:           machine.Capacity,
		CapacityUnit:       machine.CapacityUnit,
		WastageNormPercent: machine.WastageNormPercent,
		Status:             machine.Status,
		CreatedAt:          formatTime(machine.CreatedAt),
		UpdatedAt:          formatTime(machine.UpdatedAt),
	}
}

// ToWorkOrderDTO converts WorkOrder to WorkOrderDTO
func ToWorkOrderDTO(wo *domain.WorkOrder) domain.WorkOrderDTO {
	dto := domain.WorkOrderDTO{
		ID:                   wo.ID,
		OrderSheetID:         wo.OrderSheetID,
		SalesOrderLineRef:    wo.SalesOrderLineRef,
		ItemID:               wo.ItemID,
		ItemName:             wo.ItemName,
		Stage:                wo.Stage,
		TargetQuantity:       wo.TargetQuantity,
		Unit:                 wo.Unit,
		CompletedQuantity:    wo.CompletedQuantity,
		WastageQuantity:      wo.WastageQuantity,
		ActualWastagePercent: wo.ActualWastagePercent,
		RemainingQuantity:    wo.RemainingQuantity(),
		OverTarget:           wo.OverTarget,
		MachineID:            wo.MachineID,
		Priority:             wo.Priority,
		Status:               wo.Status,
		HoldReason:           wo.HoldReason,
		CancelReason:         wo.CancelReason,
		StartedAt:            formatTimePtr(wo.StartedAt),
		CompletedAt:          formatTimePtr(wo.CompletedAt),
		CreatedAt:            formatTime(wo.CreatedAt),
	}
	if wo.Machine != nil {
		dto.MachineCode = wo.Machine.Code
	}
	return dto
}

// ToWorkOrderDTOs converts a slice of work orders
func ToWorkOrderDTOs(workOrders []domain.WorkOrder) []domain.WorkOrderDTO {
	dtos := make([]domain.WorkOrderDTO, len(workOrders))
	for i := range workOrders {
		dtos[i] = ToWorkOrderDTO(&workOrders[i])
	}
	return dtos
}

// ToOrderSheetDTO converts OrderSheet to OrderSheetDTO. Work orders are included when loaded.
func ToOrderSheetDTO(sheet *domain.OrderSheet) domain.OrderSheetDTO {
	dto := domain.OrderSheetDTO{
		ID:            sheet.ID,
		SheetNumber:   sheet.SheetNumber,
		SalesOrderRef: sheet.SalesOrderRef,
		CustomerRef:   sheet.CustomerRef,
		CustomerName:  sheet.CustomerName,
		OrderDate:     sheet.OrderDate.Format(dateLayout),
		Priority:      sheet.Priority,
		Status:        sheet.Status,
		Lines:         make([]domain.OrderSheetLineDTO, len(sheet.Lines)),
		DeliveredAt:   formatTimePtr(sheet.DeliveredAt),
		CreatedAt:     formatTime(sheet.CreatedAt),
		UpdatedAt:     formatTime(sheet.UpdatedAt),
	}
	if sheet.DeliveryDate != nil {
		d := sheet.DeliveryDate.Format(dateLayout)
		dto.DeliveryDate = &d
	}
	for i, line := range sheet.Lines {
		dto.Lines[i] = domain.OrderSheetLineDTO{
			LineRef:  line.LineRef,
			ItemID:   line.ItemID,
			ItemName: line.ItemName,
			Quantity: line.Quantity,
			Unit:     line.Unit,
		}
	}
	if len(sheet.WorkOrders) > 0 {
		dto.WorkOrders = ToWorkOrderDTOs(sheet.WorkOrders)
	}
	return dto
}

// ToProductionEntryDTO converts ProductionEntry to ProductionEntryDTO
func ToProductionEntryDTO(entry *domain.ProductionEntry) domain.ProductionEntryDTO {
	return domain.ProductionEntryDTO{
		ID:                 entry.ID,
		WorkOrderID:        entry.WorkOrderID,
		MachineID:          entry.MachineID,
		Stage:              entry.Stage,
		OperatorID:         entry.OperatorID,
		StartTime:          formatTime(entry.StartTime),
		EndTime:            formatTime(entry.EndTime),
		InputQuantity:      entry.InputQuantity,
		InputUnit:          entry.InputUnit,
		OutputQuantity:     entry.OutputQuantity,
		OutputUnit:         entry.OutputUnit,
		WastageQuantity:    entry.WastageQuantity,
		WastageUnit:        entry.WastageUnit,
		WastagePercent:     entry.WastagePercent,
		WastageNormPercent: entry.WastageNormPercent,
		WastageExceeded:    entry.WastageExceeded,
		Reason:             entry.Reason,
		Notes:              entry.Notes,
		Attributes:         entry.Attributes,
		CompensatesEntryID: entry.CompensatesEntryID,
		CreatedAt:          formatTime(entry.CreatedAt),
	}
}

// ToStatusHistoryDTO converts WorkOrderStatusHistory to its DTO
func ToStatusHistoryDTO(h *domain.WorkOrderStatusHistory) domain.WorkOrderStatusHistoryDTO {
	return domain.WorkOrderStatusHistoryDTO{
		ID:                 h.ID,
		WorkOrderID:        h.WorkOrderID,
		FromStatus:         h.FromStatus,
		ToStatus:           h.ToStatus,
		ChangedBy:          h.ChangedBy,
		Reason:             h.Reason,
		ChangedAt:          formatTime(h.ChangedAt),
		TriggeredByEntryID: h.TriggeredByID,
	}
}
