package domain_test

import (
	"net/http"
	"testing"

	"github.com/straye-as/production-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	tests := []struct {
		status   int
		wantType string
	}{
		{http.StatusBadRequest, domain.ErrorTypeBadRequest},
		{http.StatusNotFound, domain.ErrorTypeNotFound},
		{http.StatusConflict, domain.ErrorTypeConflict},
		{http.StatusUnprocessableEntity, domain.ErrorTypeUnprocessable},
		{http.StatusTooManyRequests, domain.ErrorTypeRateLimited},
		{http.StatusServiceUnavailable, domain.ErrorTypeUnavailable},
		{http.StatusInternalServerError, domain.ErrorTypeInternal},
		{http.StatusTeapot, domain.ErrorTypeInternal},
	}
	for _, tt := range tests {
		apiErr := domain.NewAPIError(tt.status, "")
		assert.Equal(t, tt.wantType, apiErr.Type, "status %d", tt.status)
		assert.Equal(t, http.StatusText(tt.status), apiErr.Title)
		assert.Equal(t, tt.status, apiErr.Status)
	}

	withDetail := domain.NewAPIError(http.StatusConflict, "work order is on hold")
	assert.Equal(t, "work order is on hold", withDetail.Error())
	assert.Equal(t, "Conflict", (&domain.APIError{Title: "Conflict"}).Error())
}
