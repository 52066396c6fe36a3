package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/http/middleware"
	"github.com/straye-as/production-api/internal/repository"
	"github.com/straye-as/production-api/internal/service"
	"go.uber.org/zap"
)

var validate = newValidator()

// newValidator validates decimals as numbers and treats uuid.Nil as empty
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if id, ok := field.Interface().(uuid.UUID); ok && id != uuid.Nil {
			return id.String()
		}
		return ""
	}, uuid.UUID{})
	return v
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondValidationError lists one message per failing field, keyed by its JSON name
func respondValidationError(w http.ResponseWriter, err error) {
	apiErr := domain.NewAPIError(http.StatusBadRequest, "request body failed validation")
	apiErr.Type = domain.ErrorTypeValidation
	apiErr.Title = "Validation Error"

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		apiErr.Errors = make(map[string]string, len(ve))
		for _, fe := range ve {
			apiErr.Errors[jsonName(fe.Field())] = validationMessage(fe)
		}
	}
	respondJSON(w, apiErr.Status, apiErr)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must not be below " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed the " + fe.Tag() + " check"
	}
}

// jsonName lowercases the first letter; request DTO tags are camelCase field names
func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, domain.NewAPIError(status, message))
}

type errorMapping struct {
	kind    error
	status  int
	errType string
}

// serviceErrorMappings is checked in order; the first matching kind wins
var serviceErrorMappings = []errorMapping{
	{service.ErrNotFound, http.StatusNotFound, domain.ErrorTypeNotFound},
	{service.ErrAlreadyExists, http.StatusConflict, domain.ErrorTypeAlreadyExists},
	{service.ErrInvalidTransition, http.StatusConflict, domain.ErrorTypeInvalidTransition},
	{service.ErrNotInProgress, http.StatusConflict, domain.ErrorTypeNotInProgress},
	{service.ErrNoMachineAssigned, http.StatusConflict, domain.ErrorTypeNoMachineAssigned},
	{service.ErrStageMismatch, http.StatusUnprocessableEntity, domain.ErrorTypeStageMismatch},
	{service.ErrMachineInactive, http.StatusUnprocessableEntity, domain.ErrorTypeMachineInactive},
	{service.ErrMissingReason, http.StatusBadRequest, domain.ErrorTypeMissingReason},
	{service.ErrInvalidWastage, http.StatusBadRequest, domain.ErrorTypeInvalidWastage},
	{service.ErrInvalidInput, http.StatusBadRequest, domain.ErrorTypeBadRequest},
	{service.ErrSalesOrderSourceUnavailable, http.StatusServiceUnavailable, domain.ErrorTypeUnavailable},
	{service.ErrExportStorageUnavailable, http.StatusServiceUnavailable, domain.ErrorTypeUnavailable},
}

// toAPIError maps a service error to its problem response. Unknown errors map to 500.
func toAPIError(err error) (domain.APIError, bool) {
	for _, m := range serviceErrorMappings {
		if !errors.Is(err, m.kind) {
			continue
		}
		apiErr := domain.NewAPIError(m.status, err.Error())
		apiErr.Type = m.errType
		if fe, ok := service.AsFieldError(err); ok && fe.Field != "" {
			value := ""
			if fe.Value != nil {
				value = fmt.Sprint(fe.Value)
			}
			apiErr.Errors = map[string]string{fe.Field: value}
		}
		return apiErr, true
	}
	return domain.NewAPIError(http.StatusInternalServerError, ""), false
}

// respondServiceError writes the problem response for err, logging unexpected errors
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	apiErr, known := toAPIError(err)
	if !known {
		logger.Error("failed to "+action, zap.Error(err))
		apiErr.Detail = "Failed to " + action
	}
	respondJSON(w, apiErr.Status, apiErr)
}

// decodeJSON reads the request body into target. An empty body leaves target untouched.
func decodeJSON(r *http.Request, target interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// parseUUIDParam reads a uuid path parameter, writing a 400 when it is malformed
func parseUUIDParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s ID format", label))
		return uuid.Nil, false
	}
	return id, true
}

// operatorID prefers the operator named in the body over the X-Operator-ID header
func operatorID(r *http.Request, fromBody string) string {
	if fromBody = strings.TrimSpace(fromBody); fromBody != "" {
		return fromBody
	}
	id, _ := middleware.OperatorFromContext(r.Context())
	return id
}

// parsePagination reads page and pageSize, defaulting to the first page of 20
func parsePagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize < 1 {
		pageSize = repository.DefaultPageSize
	}
	return page, pageSize
}

// parseSort reads sortBy and sortOrder
func parseSort(r *http.Request) repository.SortConfig {
	sort := repository.DefaultSortConfig()
	if sortBy := r.URL.Query().Get("sortBy"); sortBy != "" {
		sort.Field = sortBy
	}
	if sortOrder := r.URL.Query().Get("sortOrder"); sortOrder != "" {
		sort.Order = repository.ParseSortOrder(sortOrder)
	}
	return sort
}
