package security

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Threat types reported by InputValidator
const (
	ThreatMalformedInput   = "malformed_input"
	ThreatControlCharacter = "control_character"
	ThreatUnexpectedSymbol = "unexpected_symbol"
)

// InputValidator checks operator-supplied values before they leave the process.
type InputValidator struct {
	logger              *slog.Logger
	maxLicenseKeyLength int
}

// ValidationResult represents the result of input validation
type ValidationResult struct {
	IsValid        bool     `json:"is_valid"`
	SanitizedValue string   `json:"-"`
	Errors         []string `json:"errors"`
	ThreatTypes    []string `json:"threat_types"`
}

// NewInputValidator creates a validator; maxLicenseKeyLength <= 0 selects 256.
func NewInputValidator(logger *slog.Logger, maxLicenseKeyLength int) *InputValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxLicenseKeyLength <= 0 {
		maxLicenseKeyLength = 256
	}
	return &InputValidator{
		logger:              logger.With("component", "input_validator"),
		maxLicenseKeyLength: maxLicenseKeyLength,
	}
}

// ValidateLicenseKey trims a pasted license key and rejects values that no
// license server would issue. Keys are made of letters, digits, '-' and '_'.
func (v *InputValidator) ValidateLicenseKey(ctx context.Context, licenseKey string) *ValidationResult {
	result := &ValidationResult{
		Errors:      []string{},
		ThreatTypes: []string{},
	}

	sanitized := strings.TrimSpace(licenseKey)
	result.SanitizedValue = sanitized

	switch {
	case sanitized == "":
		result.Errors = append(result.Errors, "license key cannot be empty")
	case len(sanitized) > v.maxLicenseKeyLength:
		result.Errors = append(result.Errors,
			fmt.Sprintf("license key exceeds maximum length of %d characters", v.maxLicenseKeyLength))
	case !utf8.ValidString(sanitized):
		result.ThreatTypes = append(result.ThreatTypes, ThreatMalformedInput)
		result.Errors = append(result.Errors, "license key is not valid UTF-8")
	default:
		v.checkCharacters(sanitized, result)
	}

	if len(result.ThreatTypes) > 0 {
		v.logger.WarnContext(ctx, "Suspicious license key input rejected",
			slog.Int("length", len(licenseKey)),
			slog.Any("threat_types", result.ThreatTypes),
		)
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

func (v *InputValidator) checkCharacters(key string, result *ValidationResult) {
	var control, symbol bool
	for _, r := range key {
		switch {
		case unicode.IsControl(r):
			control = true
		case r > unicode.MaxASCII:
			symbol = true
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
		default:
			symbol = true
		}
	}

	if control {
		result.ThreatTypes = append(result.ThreatTypes, ThreatControlCharacter)
		result.Errors = append(result.Errors, "license key contains control characters")
	}
	if symbol {
		result.ThreatTypes = append(result.ThreatTypes, ThreatUnexpectedSymbol)
		result.Errors = append(result.Errors, "license key may only contain letters, digits, '-' and '_'")
	}
}
