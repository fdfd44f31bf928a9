package testutil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		assert.Equal(t, 2, handler.Count())
		assert.True(t, handler.ContainsMessage("test message"))
		assert.True(t, handler.ContainsAttr("key", "value"))
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
		assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
		AssertLogContains(t, handler, slog.LevelWarn, "warn")
	})

	t.Run("keeps With attributes", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With("component", "gate").Info("derived")
		logger.Info("root")

		records := handler.GetRecords()
		require.Len(t, records, 2)
		assert.Equal(t, "gate", records[0].Attrs["component"])
		assert.NotContains(t, records[1].Attrs, "component")
		assert.True(t, handler.ContainsText("gat"))
	})

	t.Run("clear", func(t *testing.T) {
		logger, handler := NewTestLogger(t)
		logger.Info("one")
		handler.Clear()
		assert.Zero(t, handler.Count())
		AssertNoErrors(t, handler)
	})
}

func postJSON(t *testing.T, url string, body map[string]any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestLicenseServer(t *testing.T) {
	srv := NewLicenseServer(t)
	srv.AddLicense("KEY-1", "analytics")

	status, out := postJSON(t, srv.URL+PathValidate, map[string]any{"licenseKey": "KEY-1", "machineFingerprint": "fp"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, []any{"analytics"}, out["features"])

	status, out = postJSON(t, srv.URL+PathActivate, map[string]any{"licenseKey": "KEY-1", "machineFingerprint": "fp"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 1, srv.Activations("KEY-1"))

	status, out = postJSON(t, srv.URL+PathActivate, map[string]any{"licenseKey": "KEY-1", "machineFingerprint": "fp"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_ACTIVATED", out["code"])

	_, out = postJSON(t, srv.URL+PathHeartbeat, map[string]any{"licenseKey": "KEY-1", "machineFingerprint": "fp"})
	assert.Equal(t, true, out["valid"])

	srv.Revoke("KEY-1")
	_, out = postJSON(t, srv.URL+PathHeartbeat, map[string]any{"licenseKey": "KEY-1", "machineFingerprint": "fp"})
	assert.Equal(t, false, out["valid"])

	status, out = postJSON(t, srv.URL+PathDeactivate, map[string]any{"licenseKey": "KEY-1", "machineFingerprint": "fp"})
	assert.Equal(t, http.StatusOK, status)
	assert.Zero(t, srv.Activations("KEY-1"))

	assert.Equal(t, 2, srv.Calls(PathActivate))
	assert.Equal(t, 6, srv.TotalCalls())
	assert.Equal(t, "fp", srv.LastRequest(PathDeactivate)["machineFingerprint"])
}
