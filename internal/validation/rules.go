// Package validation holds the field rules shared by forms, the JSON API and
// the service write boundary. Every rule is a pure function.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

// Rule failures. Their messages are shown to users as-is.
var (
	ErrRequired         = errors.New("is required")
	ErrPhoneRequired    = errors.New("phone number is required")
	ErrPhoneFormat      = errors.New("must be 10 digits starting with 6, 7, 8, or 9")
	ErrVehicleFormat    = errors.New("invalid format (e.g., KA01AB1234)")
	ErrLicenseLength    = errors.New("must be 15-16 characters")
	ErrLicenseCharset   = errors.New("only letters and numbers allowed")
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailFormat      = errors.New("invalid email format")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordLength   = errors.New("password must be at least 6 characters")
)

// MinPasswordLength is the shortest accepted credential.
const MinPasswordLength = 6

var (
	phonePattern   = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	vehiclePattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z]{0,3}[0-9]{4}$`)
	licensePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	separators     = strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "", "-", "")
)

// Phone checks a 10 digit mobile number whose first digit is 6, 7, 8 or 9.
func Phone(value string) error {
	if value == "" {
		return ErrPhoneRequired
	}
	if !phonePattern.MatchString(value) {
		return ErrPhoneFormat
	}
	return nil
}

// StripSeparators removes whitespace and hyphens.
func StripSeparators(value string) string {
	return separators.Replace(value)
}

// NormalizeVehicleNumber returns the stored form of a vehicle number.
func NormalizeVehicleNumber(value string) string {
	return strings.ToUpper(StripSeparators(value))
}

// VehicleNumber validates an optional registration number and returns its
// normalized form. Empty input is accepted and normalizes to "".
func VehicleNumber(value string) (string, error) {
	normalized := NormalizeVehicleNumber(value)
	if normalized == "" {
		return "", nil
	}
	if !vehiclePattern.MatchString(normalized) {
		return "", ErrVehicleFormat
	}
	return normalized, nil
}

// LicenseNumber validates an optional driving licence number.
func LicenseNumber(value string) error {
	clean := StripSeparators(value)
	if clean == "" {
		return nil
	}
	if len(clean) < 15 || len(clean) > 16 {
		return ErrLicenseLength
	}
	if !licensePattern.MatchString(clean) {
		return ErrLicenseCharset
	}
	return nil
}

// Email checks the local@domain.tld shape of a required address.
func Email(value string) error {
	if value == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(value) {
		return ErrEmailFormat
	}
	return nil
}

// OptionalEmail accepts an empty value.
func OptionalEmail(value string) error {
	if value == "" {
		return nil
	}
	return Email(value)
}

// Password enforces the minimum credential length.
func Password(value string) error {
	if value == "" {
		return ErrPasswordRequired
	}
	if len(value) < MinPasswordLength {
		return ErrPasswordLength
	}
	return nil
}

// Required rejects blank text.
func Required(value string) error {
	if strings.TrimSpace(value) == "" {
		return ErrRequired
	}
	return nil
}
