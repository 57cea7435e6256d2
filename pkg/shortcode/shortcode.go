// Package shortcode generates and validates URL short codes.
package shortcode

import (
	"errors"
	"fmt"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the URL-safe symbol set codes are drawn from. Every
// symbol survives URL paths without escaping.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// Length is the fixed size of generated codes. 64^8 possible values
// keep the collision probability negligible; an actual collision is
// caught by the store's conditional insert.
const Length = 8

const (
	MinCustomLength = 3
	MaxCustomLength = 20
)

var (
	// ErrCustomCodeLength is returned when a custom code is shorter or
	// longer than the allowed range.
	ErrCustomCodeLength = fmt.Errorf("custom code must be between %d and %d characters", MinCustomLength, MaxCustomLength)
	// ErrCustomCodeCharset is returned when a custom code contains
	// characters outside the allowed set.
	ErrCustomCodeCharset = errors.New("custom code can only contain letters, numbers, underscores and hyphens")
)

var customCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Generate draws a random fixed-length code from Alphabet.
func Generate() (string, error) {
	return gonanoid.Generate(Alphabet, Length)
}

// ValidateCustom checks a caller-supplied code against the length and
// charset rules. It performs no collision check; that is the job of the
// store's conditional insert at write time.
func ValidateCustom(code string) error {
	if len(code) < MinCustomLength || len(code) > MaxCustomLength {
		return ErrCustomCodeLength
	}
	if !customCodeRe.MatchString(code) {
		return ErrCustomCodeCharset
	}
	return nil
}
