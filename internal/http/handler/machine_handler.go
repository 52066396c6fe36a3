package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/repository"
	"github.com/straye-as/production-api/internal/service"
	"go.uber.org/zap"
)

// MachineHandler handles HTTP requests for the machine registry
type MachineHandler struct {
	machineService *service.MachineService
	logger         *zap.Logger
}

// NewMachineHandler creates a new machine handler instance
func NewMachineHandler(machineService *service.MachineService, logger *zap.Logger) *MachineHandler {
	return &MachineHandler{
		machineService: machineService,
		logger:         logger,
	}
}

// List godoc
// @Summary List machines
// @Description Get paginated list of machines with optional filters
// @Tags Machines
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param search query string false "Search by code or name"
// @Param stage query string false "Filter by stage" Enums(coating, slitting, rewinding, cutting, packing, ready_to_deliver)
// @Param status query string false "Filter by status" Enums(active, inactive)
// @Param sortBy query string false "Sort field" Enums(createdAt, updatedAt, code, name, stageType, status)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.MachineDTO}
// @Failure 500 {object} domain.ErrorResponse
// @Router /machines [get]
func (h *MachineHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filters := &repository.MachineFilters{
		Search: r.URL.Query().Get("search"),
	}
	if stage := r.URL.Query().Get("stage"); stage != "" {
		s := domain.Stage(stage)
		filters.Stage = &s
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.MachineStatus(status)
		if !s.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid machine status")
			return
		}
		filters.Status = &s
	}

	result, err := h.machineService.List(r.Context(), page, pageSize, filters, parseSort(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list machines")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get machine by ID
// @Tags Machines
// @Produce json
// @Param id path string true "Machine ID" format(uuid)
// @Success 200 {object} domain.MachineDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Router /machines/{id} [get]
func (h *MachineHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "machine")
	if !ok {
		return
	}

	machine, err := h.machineService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get machine")
		return
	}

	respondJSON(w, http.StatusOK, machine)
}

// Create godoc
// @Summary Register machine
// @Description Register a production machine for one productive stage
// @Tags Machines
// @Accept json
// @Produce json
// @Param request body domain.CreateMachineRequest true "Machine data"
// @Success 201 {object} domain.MachineDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse "Duplicate machine code"
// @Failure 500 {object} domain.ErrorResponse
// @Router /machines [post]
func (h *MachineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMachineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	machine, err := h.machineService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create machine")
		return
	}

	w.Header().Set("Location", "/api/v1/machines/"+machine.ID.String())
	respondJSON(w, http.StatusCreated, machine)
}

// Update godoc
// @Summary Update machine
// @Description Update a machine. A new wastage norm applies to entries recorded afterwards.
// @Tags Machines
// @Accept json
// @Produce json
// @Param id path string true "Machine ID" format(uuid)
// @Param request body domain.UpdateMachineRequest true "Machine data"
// @Success 200 {object} domain.MachineDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Router /machines/{id} [put]
func (h *MachineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "machine")
	if !ok {
		return
	}

	var req domain.UpdateMachineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	machine, err := h.machineService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update machine")
		return
	}

	respondJSON(w, http.StatusOK, machine)
}

// Activate godoc
// @Summary Activate machine
// @Tags Machines
// @Produce json
// @Param id path string true "Machine ID" format(uuid)
// @Success 200 {object} domain.MachineDTO
// @Failure 404 {object} domain.ErrorResponse
// @Router /machines/{id}/activate [post]
func (h *MachineHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "machine")
	if !ok {
		return
	}

	machine, err := h.machineService.Activate(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "activate machine")
		return
	}

	respondJSON(w, http.StatusOK, machine)
}

// Deactivate godoc
// @Summary Deactivate machine
// @Description Inactive machines keep their history but accept no new assignments or starts
// @Tags Machines
// @Produce json
// @Param id path string true "Machine ID" format(uuid)
// @Success 200 {object} domain.MachineDTO
// @Failure 404 {object} domain.ErrorResponse
// @Router /machines/{id}/deactivate [post]
func (h *MachineHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "machine")
	if !ok {
		return
	}

	machine, err := h.machineService.Deactivate(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "deactivate machine")
		return
	}

	respondJSON(w, http.StatusOK, machine)
}

// ListByStage godoc
// @Summary List machines of a stage
// @Tags Stages
// @Produce json
// @Param stage path string true "Stage" Enums(coating, slitting, rewinding, cutting, packing, ready_to_deliver)
// @Param activeOnly query bool false "Only active machines"
// @Success 200 {array} domain.MachineDTO
// @Failure 400 {object} domain.ErrorResponse
// @Router /stages/{stage}/machines [get]
func (h *MachineHandler) ListByStage(w http.ResponseWriter, r *http.Request) {
	stage := domain.Stage(chi.URLParam(r, "stage"))
	activeOnly := r.URL.Query().Get("activeOnly") == "true"

	machines, err := h.machineService.ListByStage(r.Context(), stage, activeOnly)
	if err != nil {
		respondServiceError(w, h.logger, err, "list machines")
		return
	}

	respondJSON(w, http.StatusOK, machines)
}

// ListStages godoc
// @Summary List stages
// @Description The seven pipeline stages in order, with the transformation each performs
// @Tags Stages
// @Produce json
// @Success 200 {array} domain.StageDefinition
// @Router /stages [get]
func (h *MachineHandler) ListStages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, domain.StageDefinitions())
}
