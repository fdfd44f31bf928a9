// Package config provides centralized configuration management for the booking
// API. It loads defaults, an optional YAML file and environment variables, and
// validates the result before any component is built.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (config.yaml, configs/config.yaml or APP_CONFIG_FILE)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// Variables are grouped by section:
//
//	APP_ENV=production            (NODE_ENV is honoured when APP_ENV is unset)
//	LICENSE_KEY=ZT-XXXX-XXXX
//	LICENSE_SERVER_URL=https://licenses.example.com
//	LICENSE_APP_SLUG=zamutints-booking
//	LICENSE_TIMEOUT=10s
//	LICENSE_HEARTBEAT_INTERVAL=12h
//	SERVER_PORT=8080
//	LOGGING_LEVEL=info
//	TELEMETRY_TRACE_EXPORTER=stdout
//
// A missing LICENSE_KEY is not a configuration error here: whether it is fatal
// depends on the environment and is decided when the license gate starts.
package config
