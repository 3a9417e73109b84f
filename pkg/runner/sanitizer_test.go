package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizer_DefaultLimit(t *testing.T) {
	_, err := SanitizeInput(strings.Repeat("a", DefaultMaxInputLength))
	assert.NoError(t, err, "exact limit")

	_, err = SanitizeInput(strings.Repeat("a", DefaultMaxInputLength+1))
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestSanitizer_CountsCharactersNotBytes(t *testing.T) {
	// Two bytes per rune: a full-length Spanish answer is twice the limit in bytes.
	accented := strings.Repeat("é", DefaultMaxInputLength)
	got, err := Sanitizer{}.Clean(accented)
	require.NoError(t, err)
	assert.Equal(t, accented, got)

	_, err = Sanitizer{}.Clean(accented + "ñ")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	s := NewSanitizer(3)
	_, err = s.Clean("👍👍👍")
	assert.NoError(t, err)
	_, err = s.Clean("sí, 4")
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestSanitizer_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "¿Tu edad? 34", "¿Tu edad? 34"},
		{"Safe Controls", "Línea1\nLínea2\tTab", "Línea1\nLínea2\tTab"},
		{"ANSI Code", "\x1b[31mRojo\x1b[0m", "[31mRojo[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Emoji", "👍 sí", "👍 sí"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSanitizer(64).Clean(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitizer_NonPositiveLimitUsesDefault(t *testing.T) {
	_, err := NewSanitizer(0).Clean(strings.Repeat("a", DefaultMaxInputLength))
	assert.NoError(t, err)
	_, err = NewSanitizer(-1).Clean(strings.Repeat("a", DefaultMaxInputLength+1))
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestSanitizer_InvalidUTF8(t *testing.T) {
	_, err := SanitizeInput("\xbd\xb2\x3d\xbc\x20\xe2\x8c\x98")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}
