package license

import (
	"slices"
	"time"
)

// ClientConfig is the immutable configuration of a Client.
type ClientConfig struct {
	LicenseKey  string
	ServerURL   string
	AppSlug     string
	Timeout     time.Duration
	MachineName string
}

// LicenseInfo describes a license as reported by the license server.
type LicenseInfo struct {
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	MaxActivations     int        `json:"maxActivations"`
	CurrentActivations int        `json:"currentActivations"`
	ExpiresAt          *time.Time `json:"expiresAt"`
}

// ValidationResult is the answer to a validate or heartbeat call. A license
// the server refuses is reported with Valid false and a reason in Error; it
// is not a Go error.
type ValidationResult struct {
	Valid    bool         `json:"valid"`
	Error    string       `json:"error,omitempty"`
	License  *LicenseInfo `json:"license,omitempty"`
	Features []string     `json:"features,omitempty"`
}

// HasFeature reports whether name is in the feature list.
func (r *ValidationResult) HasFeature(name string) bool {
	return r != nil && slices.Contains(r.Features, name)
}

func (r *ValidationResult) clone() *ValidationResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.License != nil {
		info := *r.License
		out.License = &info
	}
	out.Features = slices.Clone(r.Features)
	return &out
}

// Activation records when the server bound the license to this machine.
type Activation struct {
	ActivatedAt time.Time `json:"activatedAt"`
}

// ActivationResult is the answer to an activate or deactivate call.
type ActivationResult struct {
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	Code       string      `json:"code,omitempty"`
	Activation *Activation `json:"activation,omitempty"`

	// AlreadyActivated is set when the server reported this machine as
	// already holding an activation slot.
	AlreadyActivated bool `json:"alreadyActivated,omitempty"`
}

type validateRequest struct {
	LicenseKey         string `json:"licenseKey"`
	AppSlug            string `json:"appSlug"`
	MachineFingerprint string `json:"machineFingerprint"`
}

type activateRequest struct {
	LicenseKey         string `json:"licenseKey"`
	MachineFingerprint string `json:"machineFingerprint"`
	MachineName        string `json:"machineName"`
}

type machineRequest struct {
	LicenseKey         string `json:"licenseKey"`
	MachineFingerprint string `json:"machineFingerprint"`
}

// errorBody is the payload of a non-2xx response.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
