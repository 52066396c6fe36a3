package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/service"
	"github.com/straye-as/production-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSheet(t *testing.T, svc *testutil.Services, ref string, quantities ...int64) *domain.OrderSheetDTO {
	t.Helper()
	sheet, err := svc.Sheets.CreateFromSalesOrder(context.Background(), testutil.SampleSalesOrder(ref, quantities...))
	require.NoError(t, err)
	return sheet
}

func TestWorkOrderService_AssignMachine_StageMismatch(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	slitter := testutil.CreateTestMachine(t, svc.DB, "SL-01", domain.StageSlitting, "3")
	coating := testutil.WorkOrderAt(t, newSheet(t, svc, "SO-C", 100), "10", domain.StageCoating)

	_, err := svc.WorkOrders.AssignMachine(ctx, coating.ID, slitter.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrStageMismatch))

	fe, ok := service.AsFieldError(err)
	require.True(t, ok)
	assert.Equal(t, "machineId", fe.Field)
	assert.Equal(t, slitter.ID, fe.Value)

	wo, err := svc.WorkOrders.GetByID(ctx, coating.ID)
	require.NoError(t, err)
	assert.Nil(t, wo.MachineID, "a rejected assignment leaves the work order untouched")
}

func TestWorkOrderService_AssignMachine_InactiveMachine(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	coater := testutil.CreateTestMachine(t, svc.DB, "CT-01", domain.StageCoating, "3")
	_, err := svc.Machines.Deactivate(ctx, coater.ID)
	require.NoError(t, err)
	coating := testutil.WorkOrderAt(t, newSheet(t, svc, "SO-I", 100), "10", domain.StageCoating)

	_, err = svc.WorkOrders.AssignMachine(ctx, coating.ID, coater.ID)
	assert.True(t, errors.Is(err, service.ErrMachineInactive))
}

func TestWorkOrderService_AssignMachine(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	coater := testutil.CreateTestMachine(t, svc.DB, "CT-01", domain.StageCoating, "3")
	other := testutil.CreateTestMachine(t, svc.DB, "CT-02", domain.StageCoating, "3")
	coating := testutil.WorkOrderAt(t, newSheet(t, svc, "SO-A", 100), "10", domain.StageCoating)

	wo, err := svc.WorkOrders.AssignMachine(ctx, coating.ID, coater.ID)
	require.NoError(t, err)
	require.NotNil(t, wo.MachineID)
	assert.Equal(t, coater.ID, *wo.MachineID)
	assert.Equal(t, "CT-01", wo.MachineCode)

	// Pending work orders can be reassigned
	wo, err = svc.WorkOrders.AssignMachine(ctx, coating.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, *wo.MachineID)

	_, err = svc.WorkOrders.Start(ctx, coating.ID, "op-1")
	require.NoError(t, err)

	_, err = svc.WorkOrders.AssignMachine(ctx, coating.ID, coater.ID)
	assert.True(t, errors.Is(err, service.ErrInvalidTransition), "running work orders keep their machine")

	_, err = svc.WorkOrders.AssignMachine(ctx, coating.ID, uuid.New())
	assert.Error(t, err)

	_, err = svc.WorkOrders.AssignMachine(ctx, testutil.RandomID(), coater.ID)
	assert.True(t, errors.Is(err, service.ErrNotFound))
}

func TestWorkOrderService_Start_NoMachineAssigned(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	coating := testutil.WorkOrderAt(t, newSheet(t, svc, "SO-D", 100), "10", domain.StageCoating)

	_, err := svc.WorkOrders.Start(ctx, coating.ID, "op-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNoMachineAssigned))

	wo, err := svc.WorkOrders.GetByID(ctx, coating.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusPending, wo.Status)
}

func TestWorkOrderService_Start_MarksSheetInProduction(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	coater := testutil.CreateTestMachine(t, svc.DB, "CT-01", domain.StageCoating, "3")
	sheet := newSheet(t, svc, "SO-S", 100)
	coating := testutil.WorkOrderAt(t, sheet, "10", domain.StageCoating)

	wo := testutil.StartOnMachine(t, svc, coating.ID, coater.ID)
	assert.Equal(t, domain.WorkOrderStatusInProgress, wo.Status)
	assert.NotNil(t, wo.StartedAt)

	reloaded, err := svc.Sheets.GetByID(ctx, sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSheetStatusInProduction, reloaded.Status)
}

func TestWorkOrderService_Start_MachineDeactivatedAfterAssignment(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	coater := testutil.CreateTestMachine(t, svc.DB, "CT-01", domain.StageCoating, "3")
	coating := testutil.WorkOrderAt(t, newSheet(t, svc, "SO-X", 100), "10", domain.StageCoating)

	_, err := svc.WorkOrders.AssignMachine(ctx, coating.ID, coater.ID)
	require.NoError(t, err)
	_, err = svc.Machines.Deactivate(ctx, coater.ID)
	require.NoError(t, err)

	_, err = svc.WorkOrders.Start(ctx, coating.ID, "op-1")
	assert.True(t, errors.Is(err, service.ErrMachineInactive))
}

func TestWorkOrderService_HoldRequiresReason_CancelDoesNot(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	coating := testutil.WorkOrderAt(t, newSheet(t, svc, "SO-R", 100), "10", domain.StageCoating)

	_, err := svc.WorkOrders.Hold(ctx, coating.ID, "   ", "op-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrMissingReason))
	fe, ok := service.AsFieldError(err)
	require.True(t, ok)
	assert.Equal(t, "reason", fe.Field)

	cancelled, err := svc.WorkOrders.Cancel(ctx, coating.ID, "", "op-1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusCancelled, cancelled.Status)
	assert.Empty(t, cancelled.CancelReason)

	history, err := svc.WorkOrders.History(ctx, coating.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "manual cancellation", history[0].Reason)
}

func TestWorkOrderService_HeldBeforeAssignment_OnlyCancels(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	coater := testutil.CreateTestMachine(t, svc.DB, "CT-01", domain.StageCoating, "3")
	coating := testutil.WorkOrderAt(t, newSheet(t, svc, "SO-HA", 100), "10", domain.StageCoating)

	_, err := svc.WorkOrders.Hold(ctx, coating.ID, "film not delivered", "op-1")
	require.NoError(t, err)

	_, err = svc.WorkOrders.AssignMachine(ctx, coating.ID, coater.ID)
	require.True(t, errors.Is(err, service.ErrInvalidTransition))
	fe, ok := service.AsFieldError(err)
	require.True(t, ok)
	assert.Equal(t, "status", fe.Field)
	assert.Contains(t, fe.Detail, "cancel")

	_, err = svc.WorkOrders.Resume(ctx, coating.ID, "op-1")
	assert.True(t, errors.Is(err, service.ErrNoMachineAssigned))

	cancelled, err := svc.WorkOrders.Cancel(ctx, coating.ID, "re-planned", "op-1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusCancelled, cancelled.Status)
}

func TestWorkOrderService_Lifecycle(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	coater := testutil.CreateTestMachine(t, svc.DB, "CT-01", domain.StageCoating, "3")
	coating := testutil.WorkOrderAt(t, newSheet(t, svc, "SO-L", 100), "10", domain.StageCoating)
	testutil.StartOnMachine(t, svc, coating.ID, coater.ID)

	held, err := svc.WorkOrders.Hold(ctx, coating.ID, "core shortage", "op-2")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusOnHold, held.Status)
	assert.Equal(t, "core shortage", held.HoldReason)

	_, err = svc.WorkOrders.Complete(ctx, coating.ID, "op-2")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition), "held work orders must be resumed first")

	resumed, err := svc.WorkOrders.Resume(ctx, coating.ID, "op-2")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusInProgress, resumed.Status)
	assert.Empty(t, resumed.HoldReason)

	completed, err := svc.WorkOrders.Complete(ctx, coating.ID, "op-2")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	assert.True(t, completed.CompletedQuantity.IsZero(), "manual completion below target is allowed")

	_, err = svc.WorkOrders.Cancel(ctx, coating.ID, "too late", "op-2")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition), "completed is terminal")

	history, err := svc.WorkOrders.History(ctx, coating.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	expected := []domain.WorkOrderStatus{
		domain.WorkOrderStatusInProgress,
		domain.WorkOrderStatusOnHold,
		domain.WorkOrderStatusInProgress,
		domain.WorkOrderStatusCompleted,
	}
	for i, h := range history {
		assert.Equal(t, expected[i], h.ToStatus)
	}
	require.NotNil(t, history[0].FromStatus)
	assert.Equal(t, domain.WorkOrderStatusPending, *history[0].FromStatus)
	assert.Equal(t, "core shortage", history[1].Reason)
	assert.Equal(t, "op-2", history[1].ChangedBy)
}

func TestWorkOrderService_InvalidTransitions(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	coating := testutil.WorkOrderAt(t, newSheet(t, svc, "SO-T", 100), "10", domain.StageCoating)

	_, err := svc.WorkOrders.Resume(ctx, coating.ID, "op-1")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition), "pending cannot resume")

	_, err = svc.WorkOrders.Complete(ctx, coating.ID, "op-1")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition), "pending cannot complete")

	_, err = svc.WorkOrders.Hold(ctx, coating.ID, "waiting for film", "op-1")
	require.NoError(t, err, "pending work orders may be held")

	_, err = svc.WorkOrders.Start(ctx, coating.ID, "op-1")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition), "held work orders resume rather than start")

	cancelled, err := svc.WorkOrders.Cancel(ctx, coating.ID, "order changed", "op-1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusCancelled, cancelled.Status)
	assert.Equal(t, "order changed", cancelled.CancelReason)

	_, err = svc.WorkOrders.Hold(ctx, coating.ID, "again", "op-1")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition))
}

func TestWorkOrderService_SetPriority(t *testing.T) {
	svc := testutil.NewServices(t, nil)
	ctx := context.Background()
	coating := testutil.WorkOrderAt(t, newSheet(t, svc, "SO-P", 100), "10", domain.StageCoating)

	wo, err := svc.WorkOrders.SetPriority(ctx, coating.ID, domain.PriorityUrgent)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityUrgent, wo.Priority)

	_, err = svc.WorkOrders.SetPriority(ctx, coating.ID, "whenever")
	assert.True(t, errors.Is(err, service.ErrInvalidInput))
}
