package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrCityEmpty is returned when city is empty or whitespace-only after trim.
var ErrCityEmpty = errors.New("city query parameter is required")

// ErrCityTooLong is returned when city length exceeds the maximum.
var ErrCityTooLong = errors.New("city must be between 1 and 100 characters")

// ErrCityInvalidChars is returned when city contains disallowed characters.
var ErrCityInvalidChars = errors.New("city contains invalid characters")

// MaxCityLength bounds city input in runes.
const MaxCityLength = 100

// ValidateCity trims the input, enforces the length bound, and restricts to
// allowed characters: letters (Unicode), digits, space, comma, period,
// apostrophe, hyphen. Returns the trimmed string or an error suitable for a
// 400 VALIDATION_ERROR response. Normalization (lowercasing) is left to the
// cache key derivation.
func ValidateCity(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrCityEmpty
	}
	if len(r) > MaxCityLength {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

// isAllowedCityRune returns true for letters (Unicode), digits, space,
// comma, period, apostrophe, hyphen.
func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '.', '\'', '-':
		return true
	}
	return false
}
