package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the whatsflow banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Green gradient, WhatsApp-ish.
	lines := []termenv.Style{
		termenv.String(`          __          __      ______              `).Foreground(p.Color("#bbf7d0")),
		termenv.String(` _      __/ /_  ____ _/ /______/ __/ /___ _      __`).Foreground(p.Color("#86efac")),
		termenv.String(`| | /| / / __ \/ __ '/ __/ ___/ /_/ / __ \ | /| / /`).Foreground(p.Color("#4ade80")),
		termenv.String(`| |/ |/ / / / / /_/ / /_(__  ) __/ / /_/ / |/ |/ / `).Foreground(p.Color("#22c55e")),
		termenv.String(`|__/|__/_/ /_/\__,_/\__/____/_/ /_/\____/|__/|__/  `).Foreground(p.Color("#16a34a")),
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintln(w)
}
