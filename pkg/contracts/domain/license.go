// Package domain contains the JSON contracts of the admin license API.
package domain

import (
	"net/http"
	"strings"
	"time"
)

// ActivateLicenseRequest is the body of POST /api/admin/license/activate.
type ActivateLicenseRequest struct {
	LicenseKey string `json:"licenseKey" validate:"required,min=8,max=256"`
}

// Bind implements render.Binder. Keys pasted from emails often carry
// surrounding whitespace.
func (a *ActivateLicenseRequest) Bind(_ *http.Request) error {
	a.LicenseKey = strings.TrimSpace(a.LicenseKey)
	return nil
}

// LicenseDetails is the license as shown on the admin settings page.
type LicenseDetails struct {
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	Features           []string   `json:"features"`
	MaxActivations     int        `json:"maxActivations"`
	CurrentActivations int        `json:"currentActivations"`
	ExpiresAt          *time.Time `json:"expiresAt"`
	ActivatedAt        *time.Time `json:"activatedAt"`
}

// ActivateLicenseResponse is returned by the activate endpoint. Success false
// comes with Error and HTTP 422.
type ActivateLicenseResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	License *LicenseDetails `json:"license,omitempty"`
}

// LicenseStatusResponse is returned by GET /api/admin/license/status.
type LicenseStatusResponse struct {
	Valid   bool            `json:"valid"`
	State   string          `json:"state"`
	Error   string          `json:"error,omitempty"`
	Mode    string          `json:"mode,omitempty"`
	License *LicenseDetails `json:"license"`
}

// PublicLicenseStatus is the banner status served to the booking site.
type PublicLicenseStatus struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Mode  string `json:"mode,omitempty"`
}
