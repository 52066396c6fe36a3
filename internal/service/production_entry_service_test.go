package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/service"
	"github.com/straye-as/production-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runningWorkOrder creates a sheet with one line of target and starts its coating
// work order on a coater with the given norm
func runningWorkOrder(t *testing.T, svc *testutil.Services, target int64, norm string) (domain.WorkOrderDTO, *domain.Machine) {
	t.Helper()
	coater := testutil.CreateTestMachine(t, svc.DB, "CT-"+uuid.NewString()[:8], domain.StageCoating, norm)
	sheet := newSheet(t, svc, "SO-"+uuid.NewString()[:8], target)
	coating := testutil.WorkOrderAt(t, sheet, "10", domain.StageCoating)
	testutil.StartOnMachine(t, svc, coating.ID, coater.ID)
	return coating, coater
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProductionEntryService_Record_AutoCompletesAtTarget(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	wo, _ := runningWorkOrder(t, svc, 100, "5")

	first, err := svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(6), 40, 40, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusInProgress, first.WorkOrder.Status)
	assert.False(t, first.AutoCompleted)

	second, err := svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(7), 35, 35, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusInProgress, second.WorkOrder.Status, "75 < 100")
	assert.True(t, second.WorkOrder.CompletedQuantity.Equal(dec("75")))
	assert.True(t, second.WorkOrder.RemainingQuantity.Equal(dec("25")))

	third, err := svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(8), 30, 30, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusCompleted, third.WorkOrder.Status, "105 >= 100")
	assert.True(t, third.AutoCompleted)
	assert.True(t, third.WorkOrder.CompletedQuantity.Equal(dec("105")), "over-production is kept, not clamped")
	assert.True(t, third.WorkOrder.OverTarget)
	assert.True(t, third.WorkOrder.RemainingQuantity.IsZero())

	history, err := svc.WorkOrders.History(ctx, wo.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, domain.WorkOrderStatusCompleted, last.ToStatus)
	require.NotNil(t, last.TriggeredByEntryID)
	assert.Equal(t, third.Entry.ID, *last.TriggeredByEntryID)

	_, err = svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(9), 10, 10, 0))
	assert.True(t, errors.Is(err, service.ErrNotInProgress), "completed work orders take no more entries")
}

func TestProductionEntryService_Record_ExactTargetCompletes(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	wo, _ := runningWorkOrder(t, svc, 50, "5")

	result, err := svc.Entries.Record(context.Background(), testutil.Entry(wo.ID, testutil.At(6), 50, 50, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusCompleted, result.WorkOrder.Status)
	assert.False(t, result.WorkOrder.OverTarget)
}

func TestProductionEntryService_Record_WastageAboveNorm(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	wo, _ := runningWorkOrder(t, svc, 1000, "5")

	result, err := svc.Entries.Record(context.Background(), testutil.Entry(wo.ID, testutil.At(6), 200, 188, 12))
	require.NoError(t, err)

	assert.True(t, result.Entry.WastagePercent.Equal(dec("6")), "12 / 200 = 6%%, got %s", result.Entry.WastagePercent)
	assert.True(t, result.Entry.WastageNormPercent.Equal(dec("5")))
	assert.True(t, result.Entry.WastageExceeded)
	assert.True(t, result.WastageExceeded)
}

func TestProductionEntryService_Record_WastageAtNormIsNotExceeded(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	wo, _ := runningWorkOrder(t, svc, 1000, "5")

	result, err := svc.Entries.Record(context.Background(), testutil.Entry(wo.ID, testutil.At(6), 200, 190, 10))
	require.NoError(t, err)
	assert.True(t, result.Entry.WastagePercent.Equal(dec("5")))
	assert.False(t, result.WastageExceeded)
}

func TestProductionEntryService_Record_ZeroInput(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	wo, _ := runningWorkOrder(t, svc, 100, "0")

	result, err := svc.Entries.Record(context.Background(), testutil.Entry(wo.ID, testutil.At(6), 0, 0, 0))
	require.NoError(t, err)
	assert.True(t, result.Entry.WastagePercent.IsZero())
	assert.False(t, result.WastageExceeded)
	assert.Equal(t, domain.WorkOrderStatusInProgress, result.WorkOrder.Status)
}

func TestProductionEntryService_Record_NormCapturedAtWriteTime(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	wo, coater := runningWorkOrder(t, svc, 1000, "5")

	before, err := svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(6), 100, 94, 6))
	require.NoError(t, err)
	assert.True(t, before.WastageExceeded)

	_, err = svc.Machines.Update(ctx, coater.ID, &domain.UpdateMachineRequest{
		Name:               coater.Name,
		StageType:          coater.StageType,
		Capacity:           coater.Capacity,
		WastageNormPercent: dec("8"),
	})
	require.NoError(t, err)

	after, err := svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(7), 100, 94, 6))
	require.NoError(t, err)
	assert.False(t, after.WastageExceeded)
	assert.True(t, after.Entry.WastageNormPercent.Equal(dec("8")))

	entries, err := svc.Entries.ListByWorkOrder(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].WastageNormPercent.Equal(dec("5")), "stored entries keep the norm they were judged against")
	assert.True(t, entries[0].WastageExceeded)
}

func TestProductionEntryService_Record_CumulativeTotals(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	wo, _ := runningWorkOrder(t, svc, 1000, "5")

	_, err := svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(6), 110, 100, 10))
	require.NoError(t, err)
	result, err := svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(7), 320, 300, 20))
	require.NoError(t, err)

	assert.True(t, result.WorkOrder.CompletedQuantity.Equal(dec("400")))
	assert.True(t, result.WorkOrder.WastageQuantity.Equal(dec("30")))
	// 30 / (400 + 30)
	assert.True(t, result.WorkOrder.ActualWastagePercent.Equal(dec("6.9767")), "got %s", result.WorkOrder.ActualWastagePercent)
}

func TestProductionEntryService_Record_Rejections(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	wo, _ := runningWorkOrder(t, svc, 100, "5")
	sheet := newSheet(t, svc, "SO-PENDING", 100)
	pending := testutil.WorkOrderAt(t, sheet, "10", domain.StageSlitting)

	t.Run("work order not in progress", func(t *testing.T) {
		_, err := svc.Entries.Record(ctx, testutil.Entry(pending.ID, testutil.At(6), 10, 10, 0))
		require.Error(t, err)
		assert.True(t, errors.Is(err, service.ErrNotInProgress))
		fe, ok := service.AsFieldError(err)
		require.True(t, ok)
		assert.Equal(t, "status", fe.Field)
		assert.Equal(t, domain.WorkOrderStatusPending, fe.Value)
	})

	t.Run("wastage above input", func(t *testing.T) {
		_, err := svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(6), 10, 0, 11))
		require.Error(t, err)
		assert.True(t, errors.Is(err, service.ErrInvalidWastage))
		fe, ok := service.AsFieldError(err)
		require.True(t, ok)
		assert.Equal(t, "wastageQuantity", fe.Field)
	})

	t.Run("negative output", func(t *testing.T) {
		_, err := svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(6), 10, -1, 0))
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
	})

	t.Run("end before start", func(t *testing.T) {
		req := testutil.Entry(wo.ID, testutil.At(6), 10, 10, 0)
		req.EndTime = req.StartTime.Add(-time.Minute)
		_, err := svc.Entries.Record(ctx, req)
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
	})

	t.Run("missing operator", func(t *testing.T) {
		req := testutil.Entry(wo.ID, testutil.At(6), 10, 10, 0)
		req.OperatorID = ""
		_, err := svc.Entries.Record(ctx, req)
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
	})

	t.Run("attributes of another stage", func(t *testing.T) {
		req := testutil.Entry(wo.ID, testutil.At(6), 10, 10, 0)
		req.Attributes = domain.StageAttributes{Cutting: &domain.CuttingAttributes{PiecesCut: 4}}
		_, err := svc.Entries.Record(ctx, req)
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
	})

	t.Run("unknown work order", func(t *testing.T) {
		_, err := svc.Entries.Record(ctx, testutil.Entry(testutil.RandomID(), testutil.At(6), 10, 10, 0))
		assert.True(t, errors.Is(err, service.ErrNotFound))
	})

	entries, err := svc.Entries.ListByWorkOrder(ctx, wo.ID)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected entries are not appended")
}

func TestProductionEntryService_Record_StoresStageAttributes(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	wo, _ := runningWorkOrder(t, svc, 1000, "5")

	req := testutil.Entry(wo.ID, testutil.At(6), 100, 98, 2)
	req.Attributes = domain.StageAttributes{Coating: &domain.CoatingAttributes{
		JumboRollNumber: "JR-042",
		WidthMM:         dec("1280"),
		CoatingGSM:      dec("22.5"),
	}}
	_, err := svc.Entries.Record(ctx, req)
	require.NoError(t, err)

	entries, err := svc.Entries.ListByWorkOrder(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	attrs := entries[0].Attributes
	assert.Equal(t, domain.StageCoating, attrs.Stage)
	require.NotNil(t, attrs.Coating)
	assert.Equal(t, "JR-042", attrs.Coating.JumboRollNumber)
	assert.True(t, attrs.Coating.CoatingGSM.Equal(dec("22.5")))
}

func TestProductionEntryService_Record_ConcurrentEntriesKeepTotalsConsistent(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	wo, _ := runningWorkOrder(t, svc, 1000, "5")

	const writers = 10
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(6).Add(time.Duration(i)*time.Minute), 12, 10, 2))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	reloaded, err := svc.WorkOrders.GetByID(ctx, wo.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.CompletedQuantity.Equal(dec("100")), "got %s", reloaded.CompletedQuantity)
	assert.True(t, reloaded.WastageQuantity.Equal(dec("20")))

	entries, err := svc.Entries.ListByWorkOrder(ctx, wo.ID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.OutputQuantity)
	}
	assert.True(t, sum.Equal(reloaded.CompletedQuantity), "totals match the ledger")
}

func TestProductionEntryService_Record_OrderOfEntriesDoesNotMatter(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()

	type qty struct{ input, output, wastage int64 }
	entries := []qty{{50, 45, 5}, {30, 30, 0}, {80, 62, 18}, {0, 0, 0}, {25, 24, 1}}
	orders := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
	}

	var results []*domain.WorkOrderDTO
	for _, order := range orders {
		wo, _ := runningWorkOrder(t, svc, 1000, "5")
		for n, idx := range order {
			e := entries[idx]
			_, err := svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(6+n), e.input, e.output, e.wastage))
			require.NoError(t, err)
		}
		reloaded, err := svc.WorkOrders.GetByID(ctx, wo.ID)
		require.NoError(t, err)
		results = append(results, reloaded)
	}

	first := results[0]
	assert.True(t, first.CompletedQuantity.Equal(dec("161")))
	assert.True(t, first.WastageQuantity.Equal(dec("24")))
	for _, other := range results[1:] {
		assert.True(t, other.CompletedQuantity.Equal(first.CompletedQuantity))
		assert.True(t, other.WastageQuantity.Equal(first.WastageQuantity))
		assert.True(t, other.ActualWastagePercent.Equal(first.ActualWastagePercent),
			"%s != %s", other.ActualWastagePercent, first.ActualWastagePercent)
		assert.Equal(t, first.Status, other.Status)
		assert.Equal(t, first.OverTarget, other.OverTarget)
	}
}

func TestProductionEntryService_Record_ConcurrentEntriesAcrossWorkOrders(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()

	const (
		workOrders = 4
		perOrder   = 5
	)
	ids := make([]uuid.UUID, workOrders)
	for w := range ids {
		wo, _ := runningWorkOrder(t, svc, 1000, "5")
		ids[w] = wo.ID
	}

	// Work order w receives perOrder entries of output 10+w and wastage w
	var wg sync.WaitGroup
	errs := make([]error, workOrders*perOrder)
	for n := 0; n < perOrder; n++ {
		for w := 0; w < workOrders; w++ {
			wg.Add(1)
			go func(w, n int) {
				defer wg.Done()
				output, wastage := int64(10+w), int64(w)
				req := testutil.Entry(ids[w], testutil.At(6).Add(time.Duration(n)*time.Minute), output+wastage, output, wastage)
				_, errs[w*perOrder+n] = svc.Entries.Record(ctx, req)
			}(w, n)
		}
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	for w, id := range ids {
		reloaded, err := svc.WorkOrders.GetByID(ctx, id)
		require.NoError(t, err)
		wantOutput := decimal.NewFromInt(int64(perOrder * (10 + w)))
		wantWastage := decimal.NewFromInt(int64(perOrder * w))
		assert.True(t, reloaded.CompletedQuantity.Equal(wantOutput), "work order %d completed %s", w, reloaded.CompletedQuantity)
		assert.True(t, reloaded.WastageQuantity.Equal(wantWastage), "work order %d wastage %s", w, reloaded.WastageQuantity)
		assert.True(t, reloaded.ActualWastagePercent.Equal(service.CumulativeWastagePercent(wantOutput, wantWastage)))

		entries, err := svc.Entries.ListByWorkOrder(ctx, id)
		require.NoError(t, err)
		assert.Len(t, entries, perOrder, "no entry landed on another work order")
	}
}

func TestProductionEntryService_RecordCorrection(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	wo, _ := runningWorkOrder(t, svc, 100, "5")

	recorded, err := svc.Entries.Record(ctx, testutil.Entry(wo.ID, testutil.At(6), 60, 50, 10))
	require.NoError(t, err)
	entryID := recorded.Entry.ID

	correct := func(output, wastage, input string, reason string) (*domain.RecordEntryResult, error) {
		return svc.Entries.RecordCorrection(ctx, &domain.CorrectEntryRequest{
			WorkOrderID:  wo.ID,
			EntryID:      entryID,
			OperatorID:   "supervisor",
			InputDelta:   dec(input),
			OutputDelta:  dec(output),
			WastageDelta: dec(wastage),
			Reason:       reason,
		})
	}

	t.Run("reason is required", func(t *testing.T) {
		_, err := correct("-5", "0", "0", " ")
		assert.True(t, errors.Is(err, service.ErrMissingReason))
	})

	t.Run("all deltas zero", func(t *testing.T) {
		_, err := correct("0", "0", "0", "typo")
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
	})

	t.Run("output below zero", func(t *testing.T) {
		_, err := correct("-51", "0", "0", "typo")
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
	})

	t.Run("wastage above input", func(t *testing.T) {
		_, err := correct("0", "51", "0", "typo")
		assert.True(t, errors.Is(err, service.ErrInvalidWastage))
	})

	t.Run("compensating entry adjusts totals", func(t *testing.T) {
		result, err := correct("-5", "5", "0", "miscounted rolls")
		require.NoError(t, err)
		require.NotNil(t, result.Entry.CompensatesEntryID)
		assert.Equal(t, entryID, *result.Entry.CompensatesEntryID)
		assert.True(t, result.Entry.OutputQuantity.Equal(dec("-5")))
		assert.True(t, result.WorkOrder.CompletedQuantity.Equal(dec("45")))
		assert.True(t, result.WorkOrder.WastageQuantity.Equal(dec("15")))

		// The row holds deltas but its percent describes the corrected entry: 15 of 60
		assert.True(t, result.Entry.WastageQuantity.Equal(dec("5")))
		assert.True(t, result.Entry.WastagePercent.Equal(dec("25")), "got %s", result.Entry.WastagePercent)
		assert.True(t, result.WastageExceeded)
	})

	t.Run("corrections cannot be corrected", func(t *testing.T) {
		entries, err := svc.Entries.ListByWorkOrder(ctx, wo.ID)
		require.NoError(t, err)
		var correctionID uuid.UUID
		for _, e := range entries {
			if e.CompensatesEntryID != nil {
				correctionID = e.ID
			}
		}
		require.NotEqual(t, uuid.Nil, correctionID)

		_, err = svc.Entries.RecordCorrection(ctx, &domain.CorrectEntryRequest{
			WorkOrderID: wo.ID,
			EntryID:     correctionID,
			OperatorID:  "supervisor",
			OutputDelta: dec("1"),
			Reason:      "again",
		})
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
	})

	t.Run("positive correction can complete the work order", func(t *testing.T) {
		result, err := correct("55", "0", "55", "second pallet missed")
		require.NoError(t, err)
		assert.True(t, result.AutoCompleted)
		assert.Equal(t, domain.WorkOrderStatusCompleted, result.WorkOrder.Status)
	})

	t.Run("corrections do not reopen completed work orders", func(t *testing.T) {
		result, err := correct("-20", "0", "-20", "double counted")
		require.NoError(t, err)
		assert.Equal(t, domain.WorkOrderStatusCompleted, result.WorkOrder.Status)
		assert.True(t, result.WorkOrder.CompletedQuantity.Equal(dec("80")))
	})

	t.Run("original entry is never modified", func(t *testing.T) {
		entries, err := svc.Entries.ListByWorkOrder(ctx, wo.ID)
		require.NoError(t, err)
		for _, e := range entries {
			if e.ID == entryID {
				assert.True(t, e.OutputQuantity.Equal(dec("50")))
				assert.True(t, e.WastageQuantity.Equal(dec("10")))
			}
		}
	})
}

func TestProductionEntryService_RecordCorrection_EntryOfAnotherWorkOrder(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	first, _ := runningWorkOrder(t, svc, 100, "5")
	second, _ := runningWorkOrder(t, svc, 100, "5")

	recorded, err := svc.Entries.Record(ctx, testutil.Entry(first.ID, testutil.At(6), 10, 10, 0))
	require.NoError(t, err)

	_, err = svc.Entries.RecordCorrection(ctx, &domain.CorrectEntryRequest{
		WorkOrderID: second.ID,
		EntryID:     recorded.Entry.ID,
		OperatorID:  "supervisor",
		OutputDelta: dec("-1"),
		Reason:      "typo",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidInput))
	fe, ok := service.AsFieldError(err)
	require.True(t, ok)
	assert.Equal(t, "entryId", fe.Field)
}
