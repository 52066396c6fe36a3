package mapper_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/mapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var oslo = time.FixedZone("CET", 3600)

func TestToWorkOrderDTO(t *testing.T) {
	machineID := uuid.New()
	started := time.Date(2026, 3, 2, 7, 30, 0, 0, oslo)
	wo := &domain.WorkOrder{
		BaseModel:         domain.BaseModel{ID: uuid.New(), CreatedAt: started},
		Stage:             domain.StageSlitting,
		TargetQuantity:    decimal.NewFromInt(100),
		CompletedQuantity: decimal.NewFromInt(120),
		MachineID:         &machineID,
		Machine:           &domain.Machine{Code: "SL-01"},
		Status:            domain.WorkOrderStatusCompleted,
		StartedAt:         &started,
		OverTarget:        true,
	}

	dto := mapper.ToWorkOrderDTO(wo)
	assert.Equal(t, "SL-01", dto.MachineCode)
	assert.True(t, dto.RemainingQuantity.IsZero(), "remaining never goes negative")
	assert.True(t, dto.OverTarget)
	require.NotNil(t, dto.StartedAt)
	assert.Equal(t, "2026-03-02T06:30:00Z", *dto.StartedAt)
	assert.Nil(t, dto.CompletedAt)

	wo.Machine = nil
	assert.Empty(t, mapper.ToWorkOrderDTO(wo).MachineCode)
}

func TestToOrderSheetDTO(t *testing.T) {
	delivery := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	sheet := &domain.OrderSheet{
		SheetNumber:  "OS-2026-0001",
		OrderDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DeliveryDate: &delivery,
		Lines: []domain.OrderSheetLine{
			{LineRef: "10", ItemID: "T-48", Quantity: decimal.NewFromInt(5), Unit: "roll"},
		},
	}

	dto := mapper.ToOrderSheetDTO(sheet)
	assert.Equal(t, "2026-03-01", dto.OrderDate)
	require.NotNil(t, dto.DeliveryDate)
	assert.Equal(t, "2026-03-20", *dto.DeliveryDate)
	require.Len(t, dto.Lines, 1)
	assert.Equal(t, "T-48", dto.Lines[0].ItemID)
	assert.Nil(t, dto.WorkOrders, "work orders are only mapped when loaded")

	sheet.WorkOrders = []domain.WorkOrder{{Stage: domain.StageCoating}, {Stage: domain.StageSlitting}}
	dto = mapper.ToOrderSheetDTO(sheet)
	require.Len(t, dto.WorkOrders, 2)
	assert.Equal(t, domain.StageSlitting, dto.WorkOrders[1].Stage)
}

func TestToProductionEntryAndHistoryDTO(t *testing.T) {
	original := uuid.New()
	entry := &domain.ProductionEntry{
		ID:                 uuid.New(),
		OperatorID:         "op-1",
		StartTime:          time.Date(2026, 3, 2, 8, 0, 0, 0, oslo),
		EndTime:            time.Date(2026, 3, 2, 9, 0, 0, 0, oslo),
		WastageExceeded:    true,
		CompensatesEntryID: &original,
	}
	dto := mapper.ToProductionEntryDTO(entry)
	assert.Equal(t, "2026-03-02T07:00:00Z", dto.StartTime)
	assert.Equal(t, "2026-03-02T08:00:00Z", dto.EndTime)
	assert.True(t, dto.WastageExceeded)
	assert.Equal(t, &original, dto.CompensatesEntryID)

	from := domain.WorkOrderStatusInProgress
	h := &domain.WorkOrderStatusHistory{
		FromStatus:    &from,
		ToStatus:      domain.WorkOrderStatusCompleted,
		ChangedBy:     "op-1",
		ChangedAt:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		TriggeredByID: &entry.ID,
	}
	hdto := mapper.ToStatusHistoryDTO(h)
	assert.Equal(t, "2026-03-02T09:00:00Z", hdto.ChangedAt)
	assert.Equal(t, &entry.ID, hdto.TriggeredByEntryID)
	require.NotNil(t, hdto.FromStatus)
	assert.Equal(t, domain.WorkOrderStatusInProgress, *hdto.FromStatus)
}

func TestToMachineDTO(t *testing.T) {
	m := &domain.Machine{
		Code:               "CT-01",
		StageType:          domain.StageCoating,
		WastageNormPercent: decimal.RequireFromString("2.5"),
		Status:             domain.MachineStatusActive,
	}
	dto := mapper.ToMachineDTO(m)
	assert.Equal(t, "CT-01", dto.Code)
	assert.Equal(t, domain.StageCoating, dto.StageType)
	assert.True(t, dto.WastageNormPercent.Equal(decimal.RequireFromString("2.5")))
}
