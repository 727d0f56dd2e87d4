package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/blocksync/internal/scenario"
	"github.com/muesli/termenv"
)

// PrintTrace writes a scenario trace, colored when the output supports it.
// Pass termenv.Ascii to force plain text.
func PrintTrace(w io.Writer, trace *scenario.Trace, profile termenv.Profile) {
	out := termenv.NewOutput(w, termenv.WithProfile(profile))

	fmt.Fprintln(w, out.String("# "+trace.Name).Bold())
	for _, e := range trace.Entries {
		head := out.String(fmt.Sprintf("[%02d] %s", e.Index, e.Action)).Bold()
		detail := out.String(e.Detail)
		if strings.HasPrefix(e.Detail, "error:") {
			detail = detail.Foreground(out.Color("#f87171"))
		}
		if e.Detail == "" {
			fmt.Fprintln(w, head)
		} else {
			fmt.Fprintf(w, "%s %s\n", head, detail)
		}

		for _, ev := range e.Events {
			style := out.String("     " + ev)
			switch {
			case strings.HasPrefix(ev, ">"):
				style = style.Foreground(out.Color("#34d399"))
			default:
				style = style.Faint()
			}
			fmt.Fprintln(w, style)
		}
	}
}

// Summary renders a markdown table of the trace, for glamour.
func Summary(trace *scenario.Trace) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", trace.Name)
	sb.WriteString("| Step | Action | Detail | Events |\n")
	sb.WriteString("| ---: | --- | --- | ---: |\n")
	for _, e := range trace.Entries {
		detail := strings.ReplaceAll(e.Detail, "|", `\|`)
		fmt.Fprintf(&sb, "| %d | %s | %s | %d |\n", e.Index, e.Action, detail, len(e.Events))
	}

	changes, inputs := 0, 0
	for _, e := range trace.Entries {
		for _, ev := range e.Events {
			switch {
			case strings.HasPrefix(ev, "> on_change"):
				changes++
			case strings.HasPrefix(ev, "> on_input"):
				inputs++
			}
		}
	}
	fmt.Fprintf(&sb, "\n**%d** committed, **%d** transient reports.\n", changes, inputs)
	return sb.String()
}
