package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/http/handler"
	"github.com/straye-as/production-api/internal/http/middleware"
	"github.com/straye-as/production-api/internal/service"
	"github.com/straye-as/production-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	svc    *testutil.Services
	router http.Handler
}

func newTestServer(t *testing.T, source service.SalesOrderSource) *testServer {
	t.Helper()
	svc := testutil.NewServices(t, source)
	logger := zap.NewNop()

	machines := handler.NewMachineHandler(svc.Machines, logger)
	sheets := handler.NewOrderSheetHandler(svc.Sheets, svc.Aggregation, logger)
	workOrders := handler.NewWorkOrderHandler(svc.WorkOrders, svc.Entries, logger)
	reports := handler.NewReportHandler(svc.Reports, service.NewReportExportService(svc.Reports, nil, logger), logger)

	r := chi.NewRouter()
	r.Use(middleware.Operator)
	r.Get("/stages", machines.ListStages)
	r.Get("/stages/{stage}/machines", machines.ListByStage)
	r.Post("/machines", machines.Create)
	r.Get("/machines/{id}", machines.GetByID)
	r.Post("/machines/{id}/deactivate", machines.Deactivate)

	r.Post("/order-sheets", sheets.Create)
	r.Post("/order-sheets/from-sales-order/{ref}", sheets.CreateFromSalesOrderRef)
	r.Get("/order-sheets/{id}", sheets.GetByID)
	r.Get("/order-sheets/{id}/progress/product-wise", sheets.ProductWise)

	r.Get("/work-orders/{id}", workOrders.GetByID)
	r.Get("/work-orders/{id}/history", workOrders.History)
	r.Post("/work-orders/{id}/assign", workOrders.AssignMachine)
	r.Post("/work-orders/{id}/start", workOrders.Start)
	r.Post("/work-orders/{id}/hold", workOrders.Hold)
	r.Post("/work-orders/{id}/entries", workOrders.RecordEntry)
	r.Post("/work-orders/{id}/entries/{entryId}/corrections", workOrders.CorrectEntry)

	r.Get("/reports/dpr/daily", reports.Daily)
	r.Get("/reports/dpr/daily.xlsx", reports.DailyWorkbook)
	r.Post("/reports/exports", reports.Export)

	return &testServer{svc: svc, router: r}
}

// do sends body (marshalled to JSON when not nil) and records the response
func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	return decodeBody[domain.APIError](t, rr)
}
