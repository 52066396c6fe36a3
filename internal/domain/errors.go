package domain

import "net/http"

// APIError is the problem body returned for every failed request
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// NewAPIError builds a problem body whose type follows from the status code
func NewAPIError(status int, detail string) APIError {
	return APIError{
		Type:   ErrorTypeForStatus(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// ErrorTypeForStatus picks the generic error type for a status code
func ErrorTypeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrorTypeBadRequest
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusConflict:
		return ErrorTypeConflict
	case http.StatusUnprocessableEntity:
		return ErrorTypeUnprocessable
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimited
	case http.StatusServiceUnavailable:
		return ErrorTypeUnavailable
	default:
		return ErrorTypeInternal
	}
}

const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeNotFound      = "not_found"
	ErrorTypeBadRequest    = "bad_request"
	ErrorTypeConflict      = "conflict"
	ErrorTypeUnprocessable = "unprocessable_entity"
	ErrorTypeRateLimited   = "rate_limited"
	ErrorTypeUnavailable   = "service_unavailable"
	ErrorTypeInternal      = "internal_error"
)

// Error types of production rule violations
const (
	ErrorTypeAlreadyExists     = "already_exists"
	ErrorTypeStageMismatch     = "stage_mismatch"
	ErrorTypeMachineInactive   = "machine_inactive"
	ErrorTypeNoMachineAssigned = "no_machine_assigned"
	ErrorTypeNotInProgress     = "not_in_progress"
	ErrorTypeMissingReason     = "missing_reason"
	ErrorTypeInvalidWastage    = "invalid_wastage"
	ErrorTypeInvalidTransition = "invalid_transition"
)
