package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// License server endpoints
const (
	PathValidate   = "/api/validate"
	PathActivate   = "/api/validate/activate"
	PathDeactivate = "/api/validate/deactivate"
	PathHeartbeat  = "/api/validate/heartbeat"
)

// FakeLicense is a license record held by LicenseServer.
type FakeLicense struct {
	Type           string
	Status         string
	Features       []string
	MaxActivations int
	ExpiresAt      *time.Time
	Revoked        bool

	activations map[string]string // fingerprint -> machine name
}

// LicenseServer is an in-memory remote license service for tests. It counts
// calls per endpoint and records the last request body of each.
type LicenseServer struct {
	*httptest.Server

	mu       sync.Mutex
	licenses map[string]*FakeLicense
	calls    map[string]int
	last     map[string]map[string]any
	delays   map[string]time.Duration
	down     int
}

// NewLicenseServer starts a fake license server closed at test cleanup.
func NewLicenseServer(t *testing.T) *LicenseServer {
	t.Helper()

	s := &LicenseServer{
		licenses: make(map[string]*FakeLicense),
		calls:    make(map[string]int),
		last:     make(map[string]map[string]any),
		delays:   make(map[string]time.Duration),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(PathValidate, s.wrap(PathValidate, s.handleValidate))
	mux.HandleFunc(PathActivate, s.wrap(PathActivate, s.handleActivate))
	mux.HandleFunc(PathDeactivate, s.wrap(PathDeactivate, s.handleDeactivate))
	mux.HandleFunc(PathHeartbeat, s.wrap(PathHeartbeat, s.handleHeartbeat))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// AddLicense registers an active license with the given features.
func (s *LicenseServer) AddLicense(key string, features ...string) *FakeLicense {
	s.mu.Lock()
	defer s.mu.Unlock()

	lic := &FakeLicense{
		Type:           "standard",
		Status:         "active",
		Features:       features,
		MaxActivations: 3,
		activations:    make(map[string]string),
	}
	s.licenses[key] = lic
	return lic
}

// Revoke marks key revoked; validate and heartbeat then report it invalid.
func (s *LicenseServer) Revoke(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lic, ok := s.licenses[key]; ok {
		lic.Revoked = true
		lic.Status = "revoked"
	}
}

// SetFeatures replaces the feature list of key.
func (s *LicenseServer) SetFeatures(key string, features ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lic, ok := s.licenses[key]; ok {
		lic.Features = features
	}
}

// SetDelay makes path wait d before answering, or until the client gives up.
func (s *LicenseServer) SetDelay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

// SetDown makes every endpoint answer status with a non-JSON body. Zero
// restores normal behavior.
func (s *LicenseServer) SetDown(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = status
}

// Calls returns how many requests path has received.
func (s *LicenseServer) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests across all endpoints.
func (s *LicenseServer) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// LastRequest returns the decoded body of the latest request to path.
func (s *LicenseServer) LastRequest(path string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[path]
}

// Activations returns how many machines hold an activation of key.
func (s *LicenseServer) Activations(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lic, ok := s.licenses[key]; ok {
		return len(lic.activations)
	}
	return 0
}

type handlerFunc func(w http.ResponseWriter, body map[string]any)

func (s *LicenseServer) wrap(path string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		s.mu.Lock()
		s.calls[path]++
		s.last[path] = body
		delay := s.delays[path]
		down := s.down
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if down != 0 {
			http.Error(w, "upstream unavailable", down)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		h(w, body)
	}
}

func (s *LicenseServer) handleValidate(w http.ResponseWriter, body map[string]any) {
	lic, ok := s.licenses[str(body, "licenseKey")]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": "License key not found"})
		return
	}
	if lic.Revoked {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":   false,
			"error":   "License has been revoked",
			"license": lic.snapshot(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    true,
		"license":  lic.snapshot(),
		"features": lic.features(),
	})
}

func (s *LicenseServer) handleActivate(w http.ResponseWriter, body map[string]any) {
	lic, ok := s.licenses[str(body, "licenseKey")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "License key not found", "code": "LICENSE_NOT_FOUND"})
		return
	}
	if lic.Revoked {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "License has been revoked", "code": "LICENSE_REVOKED"})
		return
	}
	fp := str(body, "machineFingerprint")
	if _, exists := lic.activations[fp]; exists {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "Machine already activated", "code": "ALREADY_ACTIVATED"})
		return
	}
	if len(lic.activations) >= lic.MaxActivations {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "Maximum activations reached", "code": "MAX_ACTIVATIONS_REACHED"})
		return
	}
	lic.activations[fp] = str(body, "machineName")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"activation": map[string]any{"activatedAt": time.Now().UTC().Format(time.RFC3339)},
	})
}

func (s *LicenseServer) handleDeactivate(w http.ResponseWriter, body map[string]any) {
	lic, ok := s.licenses[str(body, "licenseKey")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "License key not found", "code": "LICENSE_NOT_FOUND"})
		return
	}
	delete(lic.activations, str(body, "machineFingerprint"))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *LicenseServer) handleHeartbeat(w http.ResponseWriter, body map[string]any) {
	lic, ok := s.licenses[str(body, "licenseKey")]
	switch {
	case !ok:
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": "License key not found"})
	case lic.Revoked:
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": "License has been revoked"})
	default:
		if _, active := lic.activations[str(body, "machineFingerprint")]; !active {
			writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": "Machine not activated"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"valid": true})
	}
}

func (l *FakeLicense) snapshot() map[string]any {
	out := map[string]any{
		"type":               l.Type,
		"status":             l.Status,
		"maxActivations":     l.MaxActivations,
		"currentActivations": len(l.activations),
		"expiresAt":          nil,
	}
	if l.ExpiresAt != nil {
		out["expiresAt"] = l.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (l *FakeLicense) features() []string {
	if l.Features == nil {
		return []string{}
	}
	return append([]string(nil), l.Features...)
}

func str(body map[string]any, key string) string {
	v, _ := body[key].(string)
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
