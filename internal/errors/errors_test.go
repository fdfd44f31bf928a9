package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	err := NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "bad", "missing body")
	assert.Equal(t, "bad", err.Error())
	assert.Equal(t, "missing body", err.Details)

	wrapped := fmt.Errorf("decode: %w", err)
	var apiErr *APIError
	require.ErrorAs(t, wrapped, &apiErr)
	assert.Equal(t, "INVALID_REQUEST", apiErr.ErrorCode)
}

func TestAPIErrorRender(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	require.NoError(t, render.Render(w, r, ErrRateLimitExceeded))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error_code"])
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, NewValidationErrors([]ValidationError{{Field: "licenseKey", Message: "required"}}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.ErrorCode)
}

func TestLicenseServiceUnavailable(t *testing.T) {
	err := LicenseServiceUnavailable("TIMEOUT", fmt.Errorf("deadline"))
	assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode)
	assert.Equal(t, "TIMEOUT", err.ErrorCode)
	assert.Equal(t, "deadline", err.Details)
	assert.Equal(t, TypeLicenseValidationFailed, err.Type)
}
