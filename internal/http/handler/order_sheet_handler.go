package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/repository"
	"github.com/straye-as/production-api/internal/service"
	"go.uber.org/zap"
)

// OrderSheetHandler handles HTTP requests for order sheets and their progress views
type OrderSheetHandler struct {
	sheetService       *service.OrderSheetService
	aggregationService *service.AggregationService
	logger             *zap.Logger
}

// NewOrderSheetHandler creates a new order sheet handler instance
func NewOrderSheetHandler(
	sheetService *service.OrderSheetService,
	aggregationService *service.AggregationService,
	logger *zap.Logger,
) *OrderSheetHandler {
	return &OrderSheetHandler{
		sheetService:       sheetService,
		aggregationService: aggregationService,
		logger:             logger,
	}
}

// Create godoc
// @Summary Create order sheet from a sales order
// @Description Creates the order sheet and six work orders per line item in one transaction
// @Tags OrderSheets
// @Accept json
// @Produce json
// @Param request body domain.SalesOrder true "Sales order"
// @Success 201 {object} domain.OrderSheetDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse "An order sheet already exists for the sales order"
// @Failure 500 {object} domain.ErrorResponse
// @Router /order-sheets [post]
func (h *OrderSheetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.SalesOrder
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	sheet, err := h.sheetService.CreateFromSalesOrder(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create order sheet")
		return
	}

	w.Header().Set("Location", "/api/v1/order-sheets/"+sheet.ID.String())
	respondJSON(w, http.StatusCreated, sheet)
}

// CreateFromSalesOrderRef godoc
// @Summary Create order sheet from an ERP sales order
// @Description Loads the approved sales order from the data warehouse and creates its order sheet
// @Tags OrderSheets
// @Produce json
// @Param ref path string true "Sales order number"
// @Success 201 {object} domain.OrderSheetDTO
// @Failure 404 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Failure 503 {object} domain.ErrorResponse "Data warehouse not configured"
// @Router /order-sheets/from-sales-order/{ref} [post]
func (h *OrderSheetHandler) CreateFromSalesOrderRef(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(chi.URLParam(r, "ref"))
	if ref == "" {
		respondWithError(w, http.StatusBadRequest, "Sales order number is required")
		return
	}

	sheet, err := h.sheetService.CreateFromSalesOrderRef(r.Context(), ref)
	if err != nil {
		respondServiceError(w, h.logger, err, "create order sheet")
		return
	}

	w.Header().Set("Location", "/api/v1/order-sheets/"+sheet.ID.String())
	respondJSON(w, http.StatusCreated, sheet)
}

// List godoc
// @Summary List order sheets
// @Tags OrderSheets
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param search query string false "Search by sheet number, sales order or customer"
// @Param status query string false "Filter by status" Enums(open, in_production, completed, cancelled)
// @Param priority query string false "Filter by priority" Enums(urgent, high, normal, low)
// @Param customerRef query string false "Filter by customer"
// @Param sortBy query string false "Sort field" Enums(createdAt, updatedAt, sheetNumber, orderDate, deliveryDate, priority, status)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.OrderSheetDTO}
// @Failure 500 {object} domain.ErrorResponse
// @Router /order-sheets [get]
func (h *OrderSheetHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filters := &repository.OrderSheetFilters{
		Search:      r.URL.Query().Get("search"),
		CustomerRef: r.URL.Query().Get("customerRef"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.OrderSheetStatus(status)
		filters.Status = &s
	}
	if priority := r.URL.Query().Get("priority"); priority != "" {
		p := domain.Priority(priority)
		if !p.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid priority")
			return
		}
		filters.Priority = &p
	}

	result, err := h.sheetService.List(r.Context(), page, pageSize, filters, parseSort(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list order sheets")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get order sheet
// @Description Returns the sheet with its lines and work orders, ordered by line then stage
// @Tags OrderSheets
// @Produce json
// @Param id path string true "Order sheet ID" format(uuid)
// @Success 200 {object} domain.OrderSheetDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Router /order-sheets/{id} [get]
func (h *OrderSheetHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "order sheet")
	if !ok {
		return
	}

	sheet, err := h.sheetService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get order sheet")
		return
	}

	respondJSON(w, http.StatusOK, sheet)
}

// Cancel godoc
// @Summary Cancel order sheet
// @Description Cancels the sheet and every unfinished work order. The reason is optional.
// @Tags OrderSheets
// @Accept json
// @Produce json
// @Param id path string true "Order sheet ID" format(uuid)
// @Param request body domain.TransitionRequest false "Cancellation reason"
// @Success 200 {object} domain.OrderSheetDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Router /order-sheets/{id}/cancel [post]
func (h *OrderSheetHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "order sheet")
	if !ok {
		return
	}

	var req domain.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	sheet, err := h.sheetService.Cancel(r.Context(), id, req.Reason, operatorID(r, req.OperatorID))
	if err != nil {
		respondServiceError(w, h.logger, err, "cancel order sheet")
		return
	}

	respondJSON(w, http.StatusOK, sheet)
}

// Deliver godoc
// @Summary Mark order sheet delivered
// @Description Records delivery once every work order is completed or cancelled
// @Tags OrderSheets
// @Produce json
// @Param id path string true "Order sheet ID" format(uuid)
// @Success 200 {object} domain.OrderSheetDTO
// @Failure 404 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Router /order-sheets/{id}/deliver [post]
func (h *OrderSheetHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "order sheet")
	if !ok {
		return
	}

	sheet, err := h.sheetService.MarkDelivered(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "deliver order sheet")
		return
	}

	respondJSON(w, http.StatusOK, sheet)
}

// OrderWise godoc
// @Summary Order-wise progress
// @Description Completion per sales order line across its six stages
// @Tags Progress
// @Produce json
// @Param id path string true "Order sheet ID" format(uuid)
// @Success 200 {array} domain.OrderLineProgress
// @Failure 404 {object} domain.ErrorResponse
// @Router /order-sheets/{id}/progress/order-wise [get]
func (h *OrderSheetHandler) OrderWise(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "order sheet")
	if !ok {
		return
	}

	progress, err := h.aggregationService.OrderWise(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "compute order-wise progress")
		return
	}

	respondJSON(w, http.StatusOK, progress)
}

// ProductWise godoc
// @Summary Product-wise progress
// @Description The seven stage buckets per item with the work orders in each
// @Tags Progress
// @Produce json
// @Param id path string true "Order sheet ID" format(uuid)
// @Success 200 {array} domain.ProductProgress
// @Failure 404 {object} domain.ErrorResponse
// @Router /order-sheets/{id}/progress/product-wise [get]
func (h *OrderSheetHandler) ProductWise(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "order sheet")
	if !ok {
		return
	}

	progress, err := h.aggregationService.ProductWise(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "compute product-wise progress")
		return
	}

	respondJSON(w, http.StatusOK, progress)
}

// MachineWise godoc
// @Summary Machine-wise progress
// @Description Load per assigned machine; unassigned work orders are not included
// @Tags Progress
// @Produce json
// @Param id path string true "Order sheet ID" format(uuid)
// @Success 200 {array} domain.MachineLoad
// @Failure 404 {object} domain.ErrorResponse
// @Router /order-sheets/{id}/progress/machine-wise [get]
func (h *OrderSheetHandler) MachineWise(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "order sheet")
	if !ok {
		return
	}

	progress, err := h.aggregationService.MachineWise(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "compute machine-wise progress")
		return
	}

	respondJSON(w, http.StatusOK, progress)
}

// Progress godoc
// @Summary Overall progress
// @Description Completion of the whole sheet with counts per status and percent per stage
// @Tags Progress
// @Produce json
// @Param id path string true "Order sheet ID" format(uuid)
// @Success 200 {object} domain.SheetProgress
// @Failure 404 {object} domain.ErrorResponse
// @Router /order-sheets/{id}/progress [get]
func (h *OrderSheetHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "order sheet")
	if !ok {
		return
	}

	progress, err := h.aggregationService.Progress(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "compute progress")
		return
	}

	respondJSON(w, http.StatusOK, progress)
}
