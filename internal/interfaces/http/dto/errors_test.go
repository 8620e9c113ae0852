package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeNoTenantAssociation, http.StatusForbidden},
		{ErrCodeTenantUnavailable, http.StatusServiceUnavailable},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{"SOMETHING_NOBODY_MAPPED", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, GetHTTPStatus(tt.code))
		})
	}
}

// Failed logins and unknown accounts must be indistinguishable on the
// wire, or the lookup endpoint becomes an account enumeration oracle.
func TestGetHTTPStatus_CredentialErrorsAreIndistinguishable(t *testing.T) {
	assert.Equal(t, GetHTTPStatus(ErrCodeInvalidCredentials), GetHTTPStatus(ErrCodeNoAccountFound))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(ErrCodeInvalidCredentials))
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		domain string
		wire   string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"ALREADY_EXISTS", ErrCodeAlreadyExists},
		{"INVALID_CREDENTIALS", ErrCodeInvalidCredentials},
		{"NO_ACCOUNT_FOUND", ErrCodeNoAccountFound},
		{"NO_TENANT_ASSOCIATION", ErrCodeNoTenantAssociation},
		{"CONCURRENCY_CONFLICT", ErrCodeConcurrencyConflict},
		{"INVALID_SLUG", ErrCodeValidation},
		{"INVALID_DATE", ErrCodeValidation},
		{"NO_FILES", ErrCodeValidation},
		{"BATCH_CLOSED", ErrCodeInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.wire, NormalizeErrorCode(tt.domain))
		})
	}
}

func TestNormalizeErrorCode_Passthrough(t *testing.T) {
	// Codes already in wire form, or unknown ones, pass through untouched
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode(ErrCodeNotFound))
	assert.Equal(t, "CUSTOM_CODE", NormalizeErrorCode("CUSTOM_CODE"))
}
