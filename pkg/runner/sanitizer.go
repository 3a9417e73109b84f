package runner

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxInputLength is the longest text body WhatsApp accepts, in characters.
const DefaultMaxInputLength = 4096

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed length")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer cleans contact answers before they are bound to a session.
// The zero value enforces DefaultMaxInputLength.
type Sanitizer struct {
	// MaxLength bounds an answer in characters (runes), not bytes.
	MaxLength int
}

// NewSanitizer returns a Sanitizer bounded to maxLength characters.
// A non-positive maxLength selects DefaultMaxInputLength.
func NewSanitizer(maxLength int) Sanitizer {
	return Sanitizer{MaxLength: maxLength}
}

func (s Sanitizer) limit() int {
	if s.MaxLength > 0 {
		return s.MaxLength
	}
	return DefaultMaxInputLength
}

// Clean rejects answers that are too long or not valid UTF-8, and drops
// control characters other than newline, tab and carriage return.
// Answers over the limit are rejected, never truncated.
func (s Sanitizer) Clean(input string) (string, error) {
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	if n, limit := utf8.RuneCountInString(input), s.limit(); n > limit {
		return "", fmt.Errorf("%w: length=%d limit=%d", ErrInputTooLarge, n, limit)
	}

	if strings.IndexFunc(input, unsafeControl) < 0 {
		return input, nil
	}
	return strings.Map(func(r rune) rune {
		if unsafeControl(r) {
			return -1
		}
		return r
	}, input), nil
}

// SanitizeInput cleans input with the default limit.
func SanitizeInput(input string) (string, error) {
	return Sanitizer{}.Clean(input)
}

// unsafeControl reports control runes that could poison logs or terminals (ESC, NUL, BEL).
func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
