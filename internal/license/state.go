package license

import (
	"slices"
	"time"
)

// State is the license state of the process.
type State int

const (
	StateUninitialized State = iota
	StateValid
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return "uninitialized"
	}
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name; unknown names decode as uninitialized.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "valid":
		*s = StateValid
	case "invalid":
		*s = StateInvalid
	default:
		*s = StateUninitialized
	}
	return nil
}

// ModeDevelopment marks a gate that runs without a license server.
const ModeDevelopment = "development"

// Status is a snapshot of the gate state.
type Status struct {
	Valid bool   `json:"valid"`
	State State  `json:"state"`
	Error string `json:"error,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// Details is the license held by the gate, captured at activation.
type Details struct {
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	Features           []string   `json:"features"`
	MaxActivations     int        `json:"maxActivations"`
	CurrentActivations int        `json:"currentActivations"`
	ExpiresAt          *time.Time `json:"expiresAt"`
	ActivatedAt        *time.Time `json:"activatedAt"`
}

func newDetails(v *ValidationResult, a *ActivationResult) *Details {
	d := &Details{Features: slices.Clone(v.Features)}
	if d.Features == nil {
		d.Features = []string{}
	}
	if v.License != nil {
		d.Type = v.License.Type
		d.Status = v.License.Status
		d.MaxActivations = v.License.MaxActivations
		d.CurrentActivations = v.License.CurrentActivations
		d.ExpiresAt = v.License.ExpiresAt
	}
	if a != nil && a.Activation != nil {
		at := a.Activation.ActivatedAt
		d.ActivatedAt = &at
	}
	return d
}

func (d *Details) clone() *Details {
	if d == nil {
		return nil
	}
	out := *d
	out.Features = slices.Clone(d.Features)
	return &out
}

// Snapshot is what the soft gate attaches to a request.
type Snapshot struct {
	Valid   bool     `json:"valid"`
	Error   string   `json:"error,omitempty"`
	Mode    string   `json:"mode,omitempty"`
	Details *Details `json:"details,omitempty"`
}

// ActivationOutcome is the result of Gate.ActivateLicenseKey.
type ActivationOutcome struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	License *Details `json:"license,omitempty"`
}

// Transition reasons carried by StatusEvent.
const (
	EventInit       = "init"
	EventHeartbeat  = "heartbeat"
	EventActivation = "activation"
	EventShutdown   = "shutdown"
)

// StatusEvent reports a change of the gate state.
type StatusEvent struct {
	Status Status    `json:"status"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// StatusListener receives StatusEvents. Listeners run synchronously and
// must not block.
type StatusListener func(StatusEvent)

// Rejection is returned by the gate checks when a request must be refused.
type Rejection struct {
	Reason  string // ReasonLicenseRequired or ReasonFeatureNotLicensed
	State   State
	Feature string
	Message string
	Detail  string
}

func (r *Rejection) Error() string {
	if r.Feature != "" {
		return r.Message + ": " + r.Feature
	}
	return r.Message
}
