// Package validation holds the domain-specific format checks shared by
// services: national ID and inventory serial formats, loan date windows
// and free-text sanitization.
package validation

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// MaxLoanDays is the longest a single loan may run.
const MaxLoanDays = 730

var (
	nationalIDPattern      = regexp.MustCompile(`^[VEJPG][0-9]{5,9}$`)
	inventorySerialPattern = regexp.MustCompile(`^[0-9]{16}$`)

	sanitizer = bluemonday.StrictPolicy()
)

// ValidNationalID reports whether s is a well-formed national ID.
// The letter prefix is matched case-insensitively.
func ValidNationalID(s string) bool {
	return nationalIDPattern.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// NormalizeNationalID returns the canonical upper-case form.
func NormalizeNationalID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidInventorySerial reports whether s is a 16-digit inventory serial.
func ValidInventorySerial(s string) bool {
	return inventorySerialPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SanitizeText strips markup from free-text input before persistence.
func SanitizeText(s string) string {
	return strings.TrimSpace(sanitizer.Sanitize(s))
}

// DateRangeReason classifies why a loan date range is invalid.
type DateRangeReason string

const (
	RangeOK            DateRangeReason = ""
	EndBeforeStart     DateRangeReason = "end_before_start"
	StartInPast        DateRangeReason = "start_in_past"
	ExceedsMaxDuration DateRangeReason = "exceeds_max_duration"
)

// CheckLoanDateRange validates a loan window against today. Dates are
// compared at day precision.
func CheckLoanDateRange(start, end, today time.Time) DateRangeReason {
	start = dateOnly(start)
	end = dateOnly(end)
	today = dateOnly(today)

	if !end.After(start) {
		return EndBeforeStart
	}
	if start.Before(today) {
		return StartInPast
	}
	if end.Sub(start) > MaxLoanDays*24*time.Hour {
		return ExceedsMaxDuration
	}
	return RangeOK
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NewValidator returns a validator instance with the domain tags
// registered. Services fall back to it when none is injected.
func NewValidator() *validator.Validate {
	v := validator.New()
	Register(v)
	return v
}

// Register wires the custom tags used by request structs into a
// validator instance.
func Register(v *validator.Validate) {
	v.RegisterValidation("national_id", func(fl validator.FieldLevel) bool {
		return ValidNationalID(fl.Field().String())
	})
	v.RegisterValidation("inventory_serial", func(fl validator.FieldLevel) bool {
		return ValidInventorySerial(fl.Field().String())
	})
}
