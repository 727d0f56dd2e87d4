package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the blocksync banner with a small gradient.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{`  _     _            _                            `, "#818cf8"},
		{` | |__ | | ___   ___| | _____ _   _ _ __   ___  `, "#a78bfa"},
		{` | '_ \| |/ _ \ / __| |/ / __| | | | '_ \ / __| `, "#c084fc"},
		{` | |_) | | (_) | (__|   <\__ \ |_| | | | | (__  `, "#e879f9"},
		{` |_.__/|_|\___/ \___|_|\_\___/\__, |_| |_|\___| `, "#f472b6"},
		{`                              |___/              `, "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	if version = strings.TrimSpace(version); version != "" {
		fmt.Fprintln(w, out.String("  v"+version).Faint())
	}
	fmt.Fprintln(w)
}
