package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/gokulwholesaleinc-web/zamutints-sub000/internal/errors"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/infrastructure"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/shared/testutil"
)

func TestRequestID(t *testing.T) {
	t.Run("generated", func(t *testing.T) {
		var seenReqID, seenTrace string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenReqID = chimw.GetReqID(r.Context())
			seenTrace = infrastructure.GetTraceID(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, seenReqID)
		assert.Equal(t, seenReqID, rec.Header().Get(RequestIDHeader))
		assert.Equal(t, seenReqID, seenTrace)
	})

	t.Run("propagated", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	})
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.2, 2, apierrors.NewErrorHandler(logger, false), logger)

	h := RequestID(rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/api/admin/license/activate", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "5", last.Header().Get("Retry-After"))

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &problem))
	assert.Equal(t, apierrors.TypeRateLimit, problem["type"])
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", problem["error_code"])
	assert.True(t, logs.ContainsMessage("rate limit exceeded"))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "plain HTTP gets no HSTS")
}

type activateBody struct {
	LicenseKey string `json:"licenseKey" validate:"required,min=8,max=128"`
}

func (a *activateBody) Bind(_ *http.Request) error { return nil }

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
		wantText   string
	}{
		{name: "valid", body: `{"licenseKey":"ZT-PRO-7F3K-99QA"}`, wantOK: true},
		{name: "missing field", body: `{}`, wantStatus: http.StatusBadRequest, wantText: "licenseKey is required"},
		{name: "too short", body: `{"licenseKey":"ZT"}`, wantStatus: http.StatusBadRequest, wantText: "licenseKey must be at least 8 characters"},
		{name: "malformed", body: `{"licenseKey":`, wantStatus: http.StatusBadRequest, wantText: "INVALID_REQUEST"},
		{name: "empty", body: ``, wantStatus: http.StatusBadRequest, wantText: "INVALID_JSON"},
		{name: "oversized", body: `{"licenseKey":"` + strings.Repeat("A", defaultMaxBodySize) + `"}`, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			v := NewRequestValidator(logger, apierrors.NewErrorHandler(logger, false))

			var got activateBody
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			ok := v.DecodeAndValidate(rec, req, &got)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "ZT-PRO-7F3K-99QA", got.LicenseKey)
				return
			}
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantText)
		})
	}
}

func TestContentTypeValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := ContentTypeValidator(apierrors.NewErrorHandler(logger, false), "application/json")(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("licenseKey=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOTelMiddlewareRecordsRoute(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceName:   "zamutints-test",
		TraceExporter: "none",
		EnableMetrics: false,
	}, logger)
	require.NoError(t, err)

	otelMW, err := NewOTelMiddleware(providers)
	require.NoError(t, err)

	var route string
	r := chi.NewRouter()
	r.Use(otelMW.Handler)
	r.Get("/api/license/status", func(w http.ResponseWriter, r *http.Request) {
		route = getRoutePattern(r)
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/license/status", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "/api/license/status", route)
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	_, _ = rw.Write([]byte("ok"))
	rw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusOK, rw.statusCode)
	assert.EqualValues(t, 2, rw.bytesWritten)
}
