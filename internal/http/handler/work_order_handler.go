package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/repository"
	"github.com/straye-as/production-api/internal/service"
	"go.uber.org/zap"
)

// WorkOrderHandler handles HTTP requests for work orders and their production entries
type WorkOrderHandler struct {
	workOrderService *service.WorkOrderService
	entryService     *service.ProductionEntryService
	logger           *zap.Logger
}

// NewWorkOrderHandler creates a new work order handler instance
func NewWorkOrderHandler(
	workOrderService *service.WorkOrderService,
	entryService *service.ProductionEntryService,
	logger *zap.Logger,
) *WorkOrderHandler {
	return &WorkOrderHandler{
		workOrderService: workOrderService,
		entryService:     entryService,
		logger:           logger,
	}
}

// List godoc
// @Summary List work orders
// @Tags WorkOrders
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param orderSheetId query string false "Filter by order sheet" format(uuid)
// @Param machineId query string false "Filter by machine" format(uuid)
// @Param stage query string false "Filter by stage" Enums(coating, slitting, rewinding, cutting, packing, ready_to_deliver)
// @Param status query string false "Filter by status" Enums(pending, in_progress, on_hold, completed, cancelled)
// @Param priority query string false "Filter by priority" Enums(urgent, high, normal, low)
// @Param itemId query string false "Filter by item"
// @Param sortBy query string false "Sort field" Enums(createdAt, updatedAt, stage, status, priority, itemId, targetQuantity, completedQuantity, actualWastagePercent, startedAt, completedAt)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.WorkOrderDTO}
// @Failure 400 {object} domain.ErrorResponse
// @Router /work-orders [get]
func (h *WorkOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	q := r.URL.Query()

	filters := &repository.WorkOrderFilters{ItemID: q.Get("itemId")}
	if v := q.Get("orderSheetId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid order sheet ID format")
			return
		}
		filters.OrderSheetID = &id
	}
	if v := q.Get("machineId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid machine ID format")
			return
		}
		filters.MachineID = &id
	}
	if v := q.Get("stage"); v != "" {
		s := domain.Stage(v)
		if !s.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid stage")
			return
		}
		filters.Stage = &s
	}
	if v := q.Get("status"); v != "" {
		s := domain.WorkOrderStatus(v)
		if !s.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid work order status")
			return
		}
		filters.Status = &s
	}
	if v := q.Get("priority"); v != "" {
		p := domain.Priority(v)
		if !p.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid priority")
			return
		}
		filters.Priority = &p
	}

	result, err := h.workOrderService.List(r.Context(), page, pageSize, filters, parseSort(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list work orders")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Success 200 {object} domain.WorkOrderDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Router /work-orders/{id} [get]
func (h *WorkOrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "work order")
	if !ok {
		return
	}

	wo, err := h.workOrderService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get work order")
		return
	}

	respondJSON(w, http.StatusOK, wo)
}

// History godoc
// @Summary Work order status history
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Success 200 {array} domain.WorkOrderStatusHistoryDTO
// @Failure 404 {object} domain.ErrorResponse
// @Router /work-orders/{id}/history [get]
func (h *WorkOrderHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "work order")
	if !ok {
		return
	}

	history, err := h.workOrderService.History(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get work order history")
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// AssignMachine godoc
// @Summary Assign machine
// @Description Assigns an active machine of the same stage to a pending work order
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Param request body domain.AssignMachineRequest true "Machine"
// @Success 200 {object} domain.WorkOrderDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse "Work order is not pending"
// @Failure 422 {object} domain.ErrorResponse "Stage mismatch or inactive machine"
// @Router /work-orders/{id}/assign [post]
func (h *WorkOrderHandler) AssignMachine(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "work order")
	if !ok {
		return
	}

	var req domain.AssignMachineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	wo, err := h.workOrderService.AssignMachine(r.Context(), id, req.MachineID)
	if err != nil {
		respondServiceError(w, h.logger, err, "assign machine")
		return
	}

	respondJSON(w, http.StatusOK, wo)
}

// transition decodes the optional TransitionRequest body and runs fn
func (h *WorkOrderHandler) transition(w http.ResponseWriter, r *http.Request, action string,
	fn func(id uuid.UUID, req domain.TransitionRequest, operator string) (*domain.WorkOrderDTO, error)) {
	id, ok := parseUUIDParam(w, r, "id", "work order")
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

	wo, err := fn(id, req, operatorID(r, req.OperatorID))
	if err != nil {
		respondServiceError(w, h.logger, err, action)
		return
	}

	respondJSON(w, http.StatusOK, wo)
}

// Start godoc
// @Summary Start work order
// @Description pending -> in_progress. Requires an assigned, active machine of the same stage.
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Param request body domain.TransitionRequest false "Operator"
// @Success 200 {object} domain.WorkOrderDTO
// @Failure 404 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Router /work-orders/{id}/start [post]
func (h *WorkOrderHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start work order", func(id uuid.UUID, _ domain.TransitionRequest, operator string) (*domain.WorkOrderDTO, error) {
		return h.workOrderService.Start(r.Context(), id, operator)
	})
}

// Hold godoc
// @Summary Put work order on hold
// @Description in_progress -> on_hold. A reason is required.
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Param request body domain.TransitionRequest true "Reason"
// @Success 200 {object} domain.WorkOrderDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Router /work-orders/{id}/hold [post]
func (h *WorkOrderHandler) Hold(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "hold work order", func(id uuid.UUID, req domain.TransitionRequest, operator string) (*domain.WorkOrderDTO, error) {
		return h.workOrderService.Hold(r.Context(), id, req.Reason, operator)
	})
}

// Resume godoc
// @Summary Resume work order
// @Description on_hold -> in_progress
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Param request body domain.TransitionRequest false "Operator"
// @Success 200 {object} domain.WorkOrderDTO
// @Failure 409 {object} domain.ErrorResponse
// @Router /work-orders/{id}/resume [post]
func (h *WorkOrderHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resume work order", func(id uuid.UUID, _ domain.TransitionRequest, operator string) (*domain.WorkOrderDTO, error) {
		return h.workOrderService.Resume(r.Context(), id, operator)
	})
}

// Complete godoc
// @Summary Complete work order
// @Description in_progress -> completed, for closing short of target
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Param request body domain.TransitionRequest false "Operator"
// @Success 200 {object} domain.WorkOrderDTO
// @Failure 409 {object} domain.ErrorResponse
// @Router /work-orders/{id}/complete [post]
func (h *WorkOrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete work order", func(id uuid.UUID, _ domain.TransitionRequest, operator string) (*domain.WorkOrderDTO, error) {
		return h.workOrderService.Complete(r.Context(), id, operator)
	})
}

// Cancel godoc
// @Summary Cancel work order
// @Description Any non-terminal status -> cancelled. The reason is optional.
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Param request body domain.TransitionRequest true "Reason"
// @Success 200 {object} domain.WorkOrderDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Router /work-orders/{id}/cancel [post]
func (h *WorkOrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel work order", func(id uuid.UUID, req domain.TransitionRequest, operator string) (*domain.WorkOrderDTO, error) {
		return h.workOrderService.Cancel(r.Context(), id, req.Reason, operator)
	})
}

// SetPriority godoc
// @Summary Set work order priority
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Param request body domain.SetPriorityRequest true "Priority"
// @Success 200 {object} domain.WorkOrderDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Router /work-orders/{id}/priority [put]
func (h *WorkOrderHandler) SetPriority(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "work order")
	if !ok {
		return
	}

	var req domain.SetPriorityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	wo, err := h.workOrderService.SetPriority(r.Context(), id, req.Priority)
	if err != nil {
		respondServiceError(w, h.logger, err, "set work order priority")
		return
	}

	respondJSON(w, http.StatusOK, wo)
}

// RecordEntry godoc
// @Summary Record production entry
// @Description Records a production batch against an in-progress work order and updates its totals.
// @Description The work order completes automatically once completed quantity reaches the target.
// @Tags ProductionEntries
// @Accept json
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Param request body domain.RecordEntryRequest true "Production entry"
// @Success 201 {object} domain.RecordEntryResult
// @Failure 400 {object} domain.ErrorResponse "Validation error or wastage exceeds input"
// @Failure 404 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse "Work order is not in progress"
// @Router /work-orders/{id}/entries [post]
func (h *WorkOrderHandler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "work order")
	if !ok {
		return
	}

	var req domain.RecordEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.WorkOrderID = id
	req.OperatorID = operatorID(r, req.OperatorID)

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	result, err := h.entryService.Record(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "record production entry")
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// ListEntries godoc
// @Summary List production entries
// @Description Entries of a work order in recording order, corrections included
// @Tags ProductionEntries
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Success 200 {array} domain.ProductionEntryDTO
// @Failure 404 {object} domain.ErrorResponse
// @Router /work-orders/{id}/entries [get]
func (h *WorkOrderHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "work order")
	if !ok {
		return
	}

	entries, err := h.entryService.ListByWorkOrder(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list production entries")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// CorrectEntry godoc
// @Summary Correct production entry
// @Description Appends a compensating entry with signed deltas; the original entry is kept unchanged
// @Tags ProductionEntries
// @Accept json
// @Produce json
// @Param id path string true "Work order ID" format(uuid)
// @Param entryId path string true "Corrected entry ID" format(uuid)
// @Param request body domain.CorrectEntryRequest true "Correction"
// @Success 201 {object} domain.RecordEntryResult
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Router /work-orders/{id}/entries/{entryId}/corrections [post]
func (h *WorkOrderHandler) CorrectEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "work order")
	if !ok {
		return
	}
	entryID, ok := parseUUIDParam(w, r, "entryId", "entry")
	if !ok {
		return
	}

	var req domain.CorrectEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.WorkOrderID = id
	req.EntryID = entryID
	req.OperatorID = operatorID(r, req.OperatorID)

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	result, err := h.entryService.RecordCorrection(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "record correction")
		return
	}

	respondJSON(w, http.StatusCreated, result)
}
