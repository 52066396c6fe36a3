package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/http/middleware"
	"github.com/straye-as/production-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createSheet(t *testing.T, s *testServer, ref string, qty ...int64) domain.OrderSheetDTO {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/order-sheets", testutil.SampleSalesOrder(ref, qty...))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[domain.OrderSheetDTO](t, rr)
}

func entryBody(input, output, wastage string) map[string]interface{} {
	start := testutil.At(6)
	return map[string]interface{}{
		"startTime":       start.Format(time.RFC3339),
		"endTime":         start.Add(time.Hour).Format(time.RFC3339),
		"inputQuantity":   input,
		"outputQuantity":  output,
		"wastageQuantity": wastage,
	}
}

func TestWorkOrderHandler_AssignStageMismatch(t *testing.T) {
	s := newTestServer(t, nil)
	sheet := createSheet(t, s, "SO-H1", 100)
	coating := testutil.WorkOrderAt(t, &sheet, "10", domain.StageCoating)
	slitter := testutil.CreateTestMachine(t, s.svc.DB, "SL-01", domain.StageSlitting, "2")

	rr := s.do(t, http.MethodPost, "/work-orders/"+coating.ID.String()+"/assign",
		map[string]string{"machineId": slitter.ID.String()})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, domain.ErrorTypeStageMismatch, apiErr.Type)
	assert.Equal(t, slitter.ID.String(), apiErr.Errors["machineId"])
}

func TestWorkOrderHandler_AssignAndStart(t *testing.T) {
	s := newTestServer(t, nil)
	sheet := createSheet(t, s, "SO-H2", 100)
	coating := testutil.WorkOrderAt(t, &sheet, "10", domain.StageCoating)
	coater := testutil.CreateTestMachine(t, s.svc.DB, "CT-01", domain.StageCoating, "5")
	path := "/work-orders/" + coating.ID.String()

	rr := s.do(t, http.MethodPost, path+"/start", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, domain.ErrorTypeNoMachineAssigned, apiErr.Type)
	assert.Equal(t, "", apiErr.Errors["machineId"])

	rr = s.do(t, http.MethodPost, path+"/assign", map[string]string{"machineId": coater.ID.String()})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	wo := decodeBody[domain.WorkOrderDTO](t, rr)
	assert.Equal(t, "CT-01", wo.MachineCode)

	rr = s.do(t, http.MethodPost, path+"/start", nil, middleware.OperatorHeader, "op-7")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.WorkOrderStatusInProgress, decodeBody[domain.WorkOrderDTO](t, rr).Status)

	rr = s.do(t, http.MethodGet, path+"/history", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decodeBody[[]domain.WorkOrderStatusHistoryDTO](t, rr)
	require.Len(t, history, 1)
	assert.Equal(t, "op-7", history[0].ChangedBy)
}

func TestWorkOrderHandler_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(t, http.MethodGet, "/work-orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodGet, "/work-orders/"+testutil.RandomID().String(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, domain.ErrorTypeNotFound, decodeError(t, rr).Type)

	rr = s.do(t, http.MethodPost, "/work-orders/"+testutil.RandomID().String()+"/assign", "{")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, "/work-orders/"+testutil.RandomID().String()+"/assign", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, domain.ErrorTypeValidation, decodeError(t, rr).Type)
}

func TestWorkOrderHandler_HoldNeedsReason(t *testing.T) {
	s := newTestServer(t, nil)
	sheet := createSheet(t, s, "SO-H3", 100)
	coating := testutil.WorkOrderAt(t, &sheet, "10", domain.StageCoating)
	coater := testutil.CreateTestMachine(t, s.svc.DB, "CT-01", domain.StageCoating, "5")
	testutil.StartOnMachine(t, s.svc, coating.ID, coater.ID)
	path := "/work-orders/" + coating.ID.String() + "/hold"

	rr := s.do(t, http.MethodPost, path, map[string]string{"reason": "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, domain.ErrorTypeMissingReason, decodeError(t, rr).Type)

	rr = s.do(t, http.MethodPost, path, map[string]string{"reason": "core shortage"})
	require.Equal(t, http.StatusOK, rr.Code)
	wo := decodeBody[domain.WorkOrderDTO](t, rr)
	assert.Equal(t, domain.WorkOrderStatusOnHold, wo.Status)
	assert.Equal(t, "core shortage", wo.HoldReason)
}

func TestWorkOrderHandler_RecordEntry(t *testing.T) {
	s := newTestServer(t, nil)
	sheet := createSheet(t, s, "SO-H4", 100)
	coating := testutil.WorkOrderAt(t, &sheet, "10", domain.StageCoating)
	path := "/work-orders/" + coating.ID.String() + "/entries"

	rr := s.do(t, http.MethodPost, path, entryBody("50", "48", "2"), middleware.OperatorHeader, "op-3")
	assert.Equal(t, http.StatusConflict, rr.Code, "pending work orders take no entries")
	assert.Equal(t, domain.ErrorTypeNotInProgress, decodeError(t, rr).Type)

	coater := testutil.CreateTestMachine(t, s.svc.DB, "CT-01", domain.StageCoating, "3")
	testutil.StartOnMachine(t, s.svc, coating.ID, coater.ID)

	rr = s.do(t, http.MethodPost, path, entryBody("50", "46", "4"))
	assert.Equal(t, http.StatusBadRequest, rr.Code, "operator is required")
	assert.Equal(t, domain.ErrorTypeValidation, decodeError(t, rr).Type)

	rr = s.do(t, http.MethodPost, path, entryBody("50", "46", "60"), middleware.OperatorHeader, "op-3")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, domain.ErrorTypeInvalidWastage, apiErr.Type)
	assert.Contains(t, apiErr.Errors, "wastageQuantity")

	rr = s.do(t, http.MethodPost, path, entryBody("50", "46", "4"), middleware.OperatorHeader, "op-3")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	result := decodeBody[domain.RecordEntryResult](t, rr)
	assert.Equal(t, "op-3", result.Entry.OperatorID)
	assert.True(t, result.WastageExceeded, "8% is above the 3% norm")
	assert.False(t, result.AutoCompleted)
	assert.True(t, result.WorkOrder.CompletedQuantity.Equal(result.Entry.OutputQuantity))

	correction := map[string]interface{}{"outputDelta": "-6", "reason": "miscounted"}
	rr = s.do(t, http.MethodPost, path+"/"+result.Entry.ID.String()+"/corrections", correction, middleware.OperatorHeader, "op-3")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	corrected := decodeBody[domain.RecordEntryResult](t, rr)
	require.NotNil(t, corrected.Entry.CompensatesEntryID)
	assert.Equal(t, result.Entry.ID, *corrected.Entry.CompensatesEntryID)
	assert.True(t, corrected.WorkOrder.CompletedQuantity.Equal(decimal.NewFromInt(40)))
}
