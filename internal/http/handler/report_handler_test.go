package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/service"
	"github.com/straye-as/production-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportHandler_Daily(t *testing.T) {
	s := newTestServer(t, nil)
	sheet := createSheet(t, s, "SO-R1", 500)
	slitting := testutil.WorkOrderAt(t, &sheet, "10", domain.StageSlitting)
	slitter := testutil.CreateTestMachine(t, s.svc.DB, "SL-01", domain.StageSlitting, "2")
	testutil.StartOnMachine(t, s.svc, slitting.ID, slitter.ID)
	_, err := s.svc.Entries.Record(context.Background(), testutil.Entry(slitting.ID, testutil.At(7), 100, 97, 3))
	require.NoError(t, err)

	rr := s.do(t, http.MethodGet, "/reports/dpr/daily?date=2026-03-02", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	report := decodeBody[domain.ProductionReport](t, rr)
	assert.Equal(t, domain.ReportPeriodDaily, report.Period)
	assert.Equal(t, "2026-03-02", report.From)
	require.Len(t, report.Stages, 1)
	assert.Equal(t, domain.StageSlitting, report.Stages[0].Stage)
	require.Len(t, report.Stages[0].Machines, 1)
	assert.True(t, report.Stages[0].Machines[0].AboveNorm)

	rr = s.do(t, http.MethodGet, "/reports/dpr/daily?date=2026-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[domain.ProductionReport](t, rr).Stages)

	rr = s.do(t, http.MethodGet, "/reports/dpr/daily?date=02-03-2026", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReportHandler_Workbook(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(t, http.MethodGet, "/reports/dpr/daily.xlsx?date=2026-03-02", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.XLSXContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "dpr-daily-2026-03-02.xlsx")
	assert.NotZero(t, rr.Body.Len())
}

func TestReportHandler_ExportWithoutStorage(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(t, http.MethodPost, "/reports/exports?date=2026-03-02", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, domain.ErrorTypeUnavailable, decodeError(t, rr).Type)
}
