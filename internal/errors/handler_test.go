package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/shared/testutil"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		includeStack bool
		wantStatus   int
		wantType     string
	}{
		{"deadline exceeded", context.DeadlineExceeded, false, http.StatusGatewayTimeout, TypeTimeout},
		{"canceled wrapped", fmt.Errorf("call: %w", context.Canceled), false, http.StatusGatewayTimeout, TypeTimeout},
		{"api error", ErrInvalidRequest, false, http.StatusBadRequest, TypeValidation},
		{"service unavailable", ErrServiceUnavailable, false, http.StatusServiceUnavailable, TypeServiceDown},
		{"unknown error", errors.New("boom"), true, http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, tt.includeStack)

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/admin/bookings", nil)
			h.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, "/api/admin/bookings", body["instance"])
			if tt.includeStack {
				assert.Equal(t, tt.err.Error(), body["error"])
			} else {
				assert.NotContains(t, body, "error")
			}
			assert.True(t, logs.ContainsMessage("request failed"))
		})
	}
}

func TestErrorHandler_NilError(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	w := httptest.NewRecorder()
	NewErrorHandler(logger, false).HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Zero(t, w.Body.Len())
}

func TestErrorHandler_APIErrorDetails(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	r := httptest.NewRequest(http.MethodPost, "/api/admin/license/activate", nil)

	problem := h.ErrorToProblem(NewValidationErrors([]ValidationError{{Field: "licenseKey", Message: "required"}}), r)
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, "VALIDATION_FAILED", problem.Extensions["error_code"])
	assert.NotNil(t, problem.Extensions["details"])
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	w := httptest.NewRecorder()
	h.HandlePanic(w, httptest.NewRequest(http.MethodGet, "/x", nil), "kaboom")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, "kaboom", body["panic"])
	assert.NotEmpty(t, body["stack"])
	assert.True(t, logs.ContainsMessage("panic recovered"))
}

func TestErrorHandler_NotFoundAndMethod(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, decodeProblem(t, w)["detail"], "DELETE")
}
