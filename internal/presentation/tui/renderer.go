package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders WhatsApp-flavoured text as
// terminal markdown using glamour. It falls back to the raw text when the
// renderer cannot be built.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Detect light/dark background
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return func(text string) (string, error) { return text, nil }
	}

	return func(text string) (string, error) {
		return r.Render(FromWhatsApp(text))
	}
}

// FromWhatsApp converts WhatsApp inline markup (*bold*, _italic_, ~strike~)
// to markdown and keeps line breaks. Markers only count when they wrap a
// single word run without surrounding spaces.
func FromWhatsApp(text string) string {
	text = convert(text, '*', "**")
	text = convert(text, '~', "~~")
	// _italic_ is already markdown.
	return strings.ReplaceAll(text, "\n", "  \n")
}

func convert(text string, marker rune, md string) string {
	var sb strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] != marker {
			sb.WriteRune(runes[i])
			continue
		}
		end := closing(runes, i, marker)
		if end < 0 {
			sb.WriteRune(runes[i])
			continue
		}
		sb.WriteString(md)
		sb.WriteString(string(runes[i+1 : end]))
		sb.WriteString(md)
		i = end
	}
	return sb.String()
}

// closing returns the index of the marker closing the one at start, or -1.
func closing(runes []rune, start int, marker rune) int {
	if start+1 >= len(runes) || runes[start+1] == ' ' {
		return -1
	}
	for j := start + 1; j < len(runes); j++ {
		switch runes[j] {
		case '\n':
			return -1
		case marker:
			if runes[j-1] == ' ' || j == start+1 {
				return -1
			}
			return j
		}
	}
	return -1
}
