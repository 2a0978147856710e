package codestore

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// Digits returns a generator of n-digit numeric codes drawn from crypto/rand.
// Leading zeros are kept so every code has exactly n characters.
func Digits(n int) Generator {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	return func() (string, error) {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%0*d", n, v), nil
	}
}

// UUIDPrefix returns a generator that takes the first n hex characters of a
// random (v4) UUID, upper-cased. n is capped at 32.
func UUIDPrefix(n int) Generator {
	if n > 32 {
		n = 32
	}
	return func() (string, error) {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		hex := strings.ReplaceAll(id.String(), "-", "")
		return strings.ToUpper(hex[:n]), nil
	}
}
