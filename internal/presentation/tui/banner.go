package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the mjtree banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	lines := []struct{ text, color string }{
		{"            _ _                 ", "#34d399"},
		{"  _ __ ___ (_) |_ _ __ ___  ___ ", "#2dd4bf"},
		{" | '_ ` _ \\| | __| '__/ _ \\/ _ \\", "#22d3ee"},
		{" | | | | | | | |_| | |  __/  __/", "#38bdf8"},
		{" |_| |_| |_/ |\\__|_|  \\___|\\___|", "#60a5fa"},
		{"         |__/                   ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, p.String("  MJML component trees  v"+version).Faint())
	fmt.Fprintln(w)
}
