// Package codes generates the identifiers the inventory ledger works
// with: loan codes, random inventory serials and opaque tokens.
package codes

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// DefaultUnitCode is used when no organizational unit is configured.
const DefaultUnitCode = "DN-GC-11-054"

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// LoanCode formats the unit, per-year correlative and year into the
// ledger code, e.g. "DN-GC-11-054/0007/2026".
func LoanCode(unit string, correlative, year int) string {
	if unit == "" {
		unit = DefaultUnitCode
	}
	return fmt.Sprintf("%s/%04d/%d", unit, correlative, year)
}

// SecureToken returns a random alphanumeric token of n characters
// suitable for email verification and password recovery links.
func SecureToken(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = tokenAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// SerialChecker reports whether an inventory serial is already taken.
type SerialChecker interface {
	InventorySerialExists(ctx context.Context, serial string) (bool, error)
}

// UniqueInventorySerial generates a random 16-digit serial not yet
// present in the inventory. It retries a bounded number of times on
// collision.
func UniqueInventorySerial(ctx context.Context, checker SerialChecker) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		serial, err := randomSerial()
		if err != nil {
			return "", err
		}
		exists, err := checker.InventorySerialExists(ctx, serial)
		if err != nil {
			return "", err
		}
		if !exists {
			return serial, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique inventory serial")
}

func randomSerial() (string, error) {
	digits := make([]byte, 16)
	ten := big.NewInt(10)
	for i := range digits {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}
