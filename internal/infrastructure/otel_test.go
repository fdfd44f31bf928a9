package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOTelInitialization(t *testing.T) {
	providers, err := InitializeOTel(nil, testLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	// default trace exporter is "none"
	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)

	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *OTelConfig
		wantErr bool
		check   func(*testing.T, *OTelProviders)
	}{
		{
			name: "stdout tracing without metrics",
			cfg:  &OTelConfig{ServiceName: "svc", TraceExporter: "stdout", SampleRatio: 1},
			check: func(t *testing.T, p *OTelProviders) {
				assert.NotNil(t, p.TracerProvider)
				assert.Nil(t, p.MeterProvider)
				assert.Nil(t, p.PrometheusHTTP)
				assert.NotNil(t, p.Meter)
			},
		},
		{
			name:    "unsupported exporter",
			cfg:     &OTelConfig{ServiceName: "svc", TraceExporter: "zipkin"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.cfg, testLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer providers.Shutdown(context.Background())
			tt.check(t, providers)
		})
	}
}

func TestTraceCorrelation(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))

	providers, err := InitializeOTel(&OTelConfig{ServiceName: "svc", TraceExporter: "stdout", SampleRatio: 1}, testLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "test-operation")
	defer span.End()

	assert.Len(t, TraceIDFromContext(ctx), 32)
	RecordError(ctx, assert.AnError)
}

func TestPrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), testLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	httpMetrics, err := CreateHTTPMetrics(providers.Meter)
	require.NoError(t, err)
	httpMetrics.RequestsTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("http.route", "/api/health")))

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestSystemMetricsCollector(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), testLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	collector, err := NewSystemMetricsCollector(providers.Meter, 10*time.Millisecond)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		collector.Start(context.Background())
		close(done)
	}()

	stats := collector.GetCurrentStats(context.Background())
	assert.Positive(t, stats.GoRoutines)
	assert.NotZero(t, stats.HeapAlloc)

	collector.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
