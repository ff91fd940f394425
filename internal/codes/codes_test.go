package codes

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanCode(t *testing.T) {
	assert.Equal(t, "DN-GC-11-054/0007/2026", LoanCode("DN-GC-11-054", 7, 2026))
	assert.Equal(t, "DN-GC-11-054/0123/2025", LoanCode("", 123, 2025))
	assert.Equal(t, "UNIT-X/12345/2026", LoanCode("UNIT-X", 12345, 2026))
}

func TestSecureToken(t *testing.T) {
	tok, err := SecureToken(48)
	require.NoError(t, err)
	assert.Len(t, tok, 48)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9]+$`), tok)

	other, err := SecureToken(48)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

type fakeChecker struct {
	taken     map[string]bool
	alwaysHit bool
	calls     int
}

func (f *fakeChecker) InventorySerialExists(_ context.Context, serial string) (bool, error) {
	f.calls++
	if f.alwaysHit {
		return true, nil
	}
	return f.taken[serial], nil
}

func TestUniqueInventorySerial(t *testing.T) {
	checker := &fakeChecker{}
	serial, err := UniqueInventorySerial(context.Background(), checker)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{16}$`), serial)
	assert.Equal(t, 1, checker.calls)
}

func TestUniqueInventorySerialExhaustsRetries(t *testing.T) {
	checker := &fakeChecker{alwaysHit: true}
	_, err := UniqueInventorySerial(context.Background(), checker)
	require.Error(t, err)
	assert.Equal(t, 10, checker.calls)
}
