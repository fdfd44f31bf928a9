package license

import (
	"errors"
	"fmt"
)

// Error codes carried by *Error. Codes returned by the license server on a
// non-2xx response are passed through unchanged.
const (
	CodeTimeout          = "TIMEOUT"
	CodeNetworkError     = "NETWORK_ERROR"
	CodeInvalidResponse  = "INVALID_RESPONSE"
	CodeServerError      = "SERVER_ERROR"
	CodeLicenseInvalid   = "LICENSE_INVALID"
	CodeActivationFailed = "ACTIVATION_FAILED"
	CodeAlreadyActivated = "ALREADY_ACTIVATED"
)

var (
	// ErrMissingLicenseKey is returned by Gate.Init when no key is configured
	// outside development mode.
	ErrMissingLicenseKey = errors.New("license key is required outside development mode")

	// ErrGateClosed is returned after Gate.Shutdown.
	ErrGateClosed = errors.New("license gate is shut down")
)

// Error is a failed License Client call.
type Error struct {
	Op         string // validate, activate, deactivate, heartbeat
	Code       string
	Message    string
	StatusCode int // HTTP status, 0 when no response was received
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("license %s failed [%s]: %s", e.Op, e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a License Client timeout.
func IsTimeout(err error) bool {
	return ErrorCode(err) == CodeTimeout
}

// IsTransport reports whether err means the license server could not be
// reached or answered with something unusable, as opposed to a refusal.
func IsTransport(err error) bool {
	switch ErrorCode(err) {
	case CodeTimeout, CodeNetworkError, CodeInvalidResponse, CodeServerError:
		return true
	}
	return false
}

// ErrorCode returns the code of the *Error in err's chain, or "".
func ErrorCode(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// Reason returns a message suitable for operators: the server's message for
// an *Error, err.Error() otherwise.
func Reason(err error) string {
	var le *Error
	if errors.As(err, &le) && le.Message != "" {
		return le.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
