package config

import (
	"time"

	"github.com/gokulwholesaleinc-web/zamutints-sub000/pkg/contracts"
)

// Application constants
const (
	AppName     = "Zamutints Booking"
	AppVersion  = contracts.Version
	ServiceName = "zamutints-booking-api"

	// Environment names
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	// License service defaults
	DefaultLicenseServerURL = "http://localhost:9001"
	DefaultAppSlug          = "zamutints-booking"

	// Network Timeouts
	LicenseCheckTimeout = 10 * time.Second

	// LicenseCacheDuration is how long a validation result is served from
	// memory. It is fixed and intentionally not part of Config.
	LicenseCacheDuration = 60 * time.Second

	// LicenseHeartbeatInterval is the default background re-check period.
	LicenseHeartbeatInterval = 12 * time.Hour

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log Settings
	DefaultLogLevel    = "info"
	DefaultLogFilePath = "logs/app.log"
)

// Messages returned by the license guards
const (
	MsgLicenseRequired    = "A valid license is required to access this area. Please activate a license key in the admin settings."
	MsgFeatureNotLicensed = "Your license does not include this feature."
	MsgLicenseActivated   = "License activated successfully."
	MsgDevelopmentMode    = "Running in development mode without a license key."
)

// Endpoints
const (
	APIBasePath       = "/api"
	AdminBasePath     = "/api/admin"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws/license"
)
