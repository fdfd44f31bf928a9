package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, EnvProduction, cfg.Env)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, DefaultLicenseServerURL, cfg.License.ServerURL)
				assert.Equal(t, DefaultAppSlug, cfg.License.AppSlug)
				assert.Equal(t, 10*time.Second, cfg.License.Timeout)
				assert.Equal(t, 12*time.Hour, cfg.License.HeartbeatInterval)
				assert.Empty(t, cfg.License.Key)
				assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
				assert.True(t, cfg.Telemetry.EnableMetrics)
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"APP_ENV":                    "Development",
				"LICENSE_KEY":                "  ZT-1234-ABCD  ",
				"LICENSE_SERVER_URL":         "https://licenses.example.com/",
				"LICENSE_APP_SLUG":           "tint-shop",
				"LICENSE_TIMEOUT":            "3s",
				"LICENSE_HEARTBEAT_INTERVAL": "30m",
				"SERVER_PORT":                "9090",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsDevelopment())
				assert.Equal(t, "ZT-1234-ABCD", cfg.License.Key)
				assert.Equal(t, "https://licenses.example.com", cfg.License.ServerURL)
				assert.Equal(t, "tint-shop", cfg.License.AppSlug)
				assert.Equal(t, 3*time.Second, cfg.License.Timeout)
				assert.Equal(t, 30*time.Minute, cfg.License.HeartbeatInterval)
				assert.Equal(t, 9090, cfg.Server.Port)
			},
		},
		{
			name: "NODE_ENV used when APP_ENV unset",
			env:  map[string]string{"NODE_ENV": "development"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsDevelopment())
			},
		},
		{
			name: "APP_ENV wins over NODE_ENV",
			env:  map[string]string{"NODE_ENV": "development", "APP_ENV": "production"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
			},
		},
		{
			name: "file values sit under environment",
			file: `
license:
  server_url: https://file.example.com
  app_slug: from-file
  heartbeat_interval: 1h
server:
  port: 7070
`,
			env: map[string]string{"SERVER_PORT": "7171"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://file.example.com", cfg.License.ServerURL)
				assert.Equal(t, "from-file", cfg.License.AppSlug)
				assert.Equal(t, time.Hour, cfg.License.HeartbeatInterval)
				assert.Equal(t, 7171, cfg.Server.Port)
				assert.Equal(t, 10*time.Second, cfg.License.Timeout)
			},
		},
		{
			name:    "invalid server url",
			env:     map[string]string{"LICENSE_SERVER_URL": "not a url"},
			wantErr: true,
		},
		{
			name:    "invalid port",
			env:     map[string]string{"SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "unparsable timeout",
			env:     map[string]string{"LICENSE_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "unknown trace exporter",
			env:     map[string]string{"TELEMETRY_TRACE_EXPORTER": "jaeger"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0644))
				t.Setenv("APP_CONFIG_FILE", path)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsEmptySlug(t *testing.T) {
	cfg := Default()
	cfg.License.AppSlug = ""
	assert.Error(t, cfg.Validate())
}

func TestPathsResolve(t *testing.T) {
	p := &Paths{ExecutableDir: filepath.FromSlash("/opt/app")}

	assert.Equal(t, filepath.Join("/opt/app", "logs", "app.log"), p.Resolve(filepath.Join("logs", "app.log")))

	abs, err := filepath.Abs(filepath.Join(t.TempDir(), "x.log"))
	require.NoError(t, err)
	assert.Equal(t, abs, p.Resolve(abs))
}

func TestEnsureDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "logs", "app.log")
	require.NoError(t, EnsureDir(target))

	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
