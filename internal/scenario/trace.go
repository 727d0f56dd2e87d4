package scenario

import (
	"fmt"
	"strings"

	"github.com/aretw0/blocksync/pkg/domain"
)

// Entry is the record of one step: what ran and what the binding did.
type Entry struct {
	Index  int      `json:"index"`
	Action string   `json:"action"`
	Detail string   `json:"detail,omitempty"`
	Events []string `json:"events,omitempty"`
}

// Trace is the ordered record of a scenario run.
type Trace struct {
	Name    string   `json:"name"`
	Entries []*Entry `json:"entries"`
}

// String renders the trace as plain text, one line per step and event.
func (t *Trace) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", t.Name)
	for _, e := range t.Entries {
		fmt.Fprintf(&sb, "[%02d] %s", e.Index, e.Action)
		if e.Detail != "" {
			sb.WriteString(" " + e.Detail)
		}
		sb.WriteString("\n")
		for _, ev := range e.Events {
			sb.WriteString("     " + ev + "\n")
		}
	}
	return sb.String()
}

func formatSelection(sel domain.Selection) string {
	if sel.IsZero() {
		return "none"
	}
	return formatLocation(sel.Start) + "-" + formatLocation(sel.End)
}

func formatLocation(l domain.Location) string {
	if l.Attribute == "" {
		return fmt.Sprintf("%s:%d", l.NodeID, l.Offset)
	}
	return fmt.Sprintf("%s.%s:%d", l.NodeID, l.Attribute, l.Offset)
}
