package service

import (
	"errors"
	"fmt"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyExists is returned when an order sheet already exists for a sales order
	ErrAlreadyExists = errors.New("already exists")

	// ErrStageMismatch is returned when a machine's stage differs from the work order's stage
	ErrStageMismatch = errors.New("machine stage does not match work order stage")

	// ErrMachineInactive is returned when assigning or starting on an inactive machine
	ErrMachineInactive = errors.New("machine is inactive")

	// ErrNoMachineAssigned is returned when starting a work order without a machine
	ErrNoMachineAssigned = errors.New("no machine assigned")

	// ErrNotInProgress is returned when recording production against a work order that is not running
	ErrNotInProgress = errors.New("work order is not in progress")

	// ErrMissingReason is returned when a hold or cancel is requested without a reason
	ErrMissingReason = errors.New("reason is required")

	// ErrInvalidWastage is returned when wastage exceeds input
	ErrInvalidWastage = errors.New("wastage exceeds input")

	// ErrInvalidTransition is returned for a status change the state machine does not allow
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSalesOrderSourceUnavailable is returned when no sales order source is configured
	ErrSalesOrderSourceUnavailable = errors.New("sales order source not configured")

	// ErrExportStorageUnavailable is returned when report workbooks cannot be kept
	ErrExportStorageUnavailable = errors.New("report export storage not configured")
)

// FieldError carries the offending field and value of a failed operation.
// It unwraps to one of the sentinel errors above.
type FieldError struct {
	Kind   error
	Field  string
	Value  interface{}
	Detail string
}

func (e *FieldError) Error() string {
	msg := e.Kind.Error()
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s=%v", msg, e.Field, e.Value)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	return msg
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

func fieldError(kind error, field string, value interface{}, detail string) *FieldError {
	return &FieldError{Kind: kind, Field: field, Value: value, Detail: detail}
}

// AsFieldError extracts a FieldError from an error chain
func AsFieldError(err error) (*FieldError, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
