package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemDetailsMarshal(t *testing.T) {
	pd := NewProblemDetails(http.StatusServiceUnavailable, TypeLicenseValidationFailed,
		"License Validation Failed", "server unreachable", "/api/admin/finance").
		WithExtension("trace_id", "abc").
		WithExtension("status", "overridden")

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, TypeLicenseValidationFailed, body["type"])
	assert.Equal(t, float64(http.StatusServiceUnavailable), body["status"])
	assert.Equal(t, "abc", body["trace_id"])
	assert.Equal(t, "/api/admin/finance", body["instance"])
}

func TestProblemDetailsOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(&ProblemDetails{Type: TypeInternal, Title: "x", Status: 500})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "detail")
	assert.NotContains(t, string(data), "instance")
}

func TestLicenseRejectionRender(t *testing.T) {
	tests := []struct {
		name      string
		rejection *LicenseRejection
		want      map[string]interface{}
	}{
		{
			name:      "license required",
			rejection: NewLicenseRequired("invalid", "activate first", "License has been revoked"),
			want: map[string]interface{}{
				"error":         LicenseRequiredTitle,
				"licenseStatus": "invalid",
				"message":       "activate first",
				"detail":        "License has been revoked",
			},
		},
		{
			name:      "feature not licensed",
			rejection: NewFeatureNotLicensed("valid", "analytics", "upgrade"),
			want: map[string]interface{}{
				"error":         FeatureNotLicensedTitle,
				"licenseStatus": "valid",
				"message":       "upgrade",
				"feature":       "analytics",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/admin/x", nil)

			require.NoError(t, render.Render(w, r, tt.rejection))
			assert.Equal(t, http.StatusForbidden, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body)
		})
	}
}
