package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"   ____        _    ", "#34d399"},
	{"  / __ \\__  __(_)___", "#2dd4bf"},
	{" / / / / / / / /_  /", "#22d3ee"},
	{"/ /_/ / /_/ / / / /_", "#38bdf8"},
	{"\\___\\_\\__,_/_/ /___/", "#60a5fa"},
}

// PrintBanner writes the colored banner followed by the version line.
// Colors are dropped when w is not a color terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  questionnaire runner "+version).Faint())
	fmt.Fprintln(w)
}
