package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidNationalID(t *testing.T) {
	valid := []string{"V12345", "E123456789", "j98765", " G123456 ", "P55555"}
	for _, id := range valid {
		assert.True(t, ValidNationalID(id), "expected %q to be valid", id)
	}

	invalid := []string{"", "12345", "X12345", "V1234", "V1234567890", "V12a45"}
	for _, id := range invalid {
		assert.False(t, ValidNationalID(id), "expected %q to be invalid", id)
	}
}

func TestNormalizeNationalID(t *testing.T) {
	assert.Equal(t, "V12345678", NormalizeNationalID(" v12345678 "))
}

func TestValidInventorySerial(t *testing.T) {
	assert.True(t, ValidInventorySerial("1234567890123456"))
	assert.False(t, ValidInventorySerial("123456789012345"))
	assert.False(t, ValidInventorySerial("12345678901234567"))
	assert.False(t, ValidInventorySerial("123456789012345a"))
	assert.False(t, ValidInventorySerial(""))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("<script>alert(1)</script>hello"))
	assert.Equal(t, "plain note", SanitizeText("  plain note  "))
	assert.Equal(t, "bold", SanitizeText("<b>bold</b>"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail(" User@Example.COM "))
}

func TestNewValidatorRegistersDomainTags(t *testing.T) {
	v := NewValidator()

	type subject struct {
		NationalID      string `validate:"required,national_id"`
		InventorySerial string `validate:"omitempty,inventory_serial"`
	}

	assert.NoError(t, v.Struct(subject{NationalID: "V12345678", InventorySerial: "1234567890123456"}))
	assert.NoError(t, v.Struct(subject{NationalID: "v12345678"}))
	assert.Error(t, v.Struct(subject{NationalID: "X12345678"}))
	assert.Error(t, v.Struct(subject{NationalID: "V12345678", InventorySerial: "1234"}))
}

func TestCheckLoanDateRange(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  DateRangeReason
	}{
		{
			name:  "valid range",
			start: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
			want:  RangeOK,
		},
		{
			name:  "end before start",
			start: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
			want:  EndBeforeStart,
		},
		{
			name:  "start in the past",
			start: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC),
			want:  StartInPast,
		},
		{
			name:  "exactly max duration",
			start: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, MaxLoanDays),
			want:  RangeOK,
		},
		{
			name:  "over max duration",
			start: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, MaxLoanDays+1),
			want:  ExceedsMaxDuration,
		},
		{
			name:  "zero duration rejected",
			start: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			want:  EndBeforeStart,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CheckLoanDateRange(tc.start, tc.end, today))
		})
	}
}
