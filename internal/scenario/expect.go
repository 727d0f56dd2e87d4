package scenario

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

func (s *session) expect(args map[string]any) (string, error) {
	var a expectArgs
	if err := decode(args, &a); err != nil {
		return "", err
	}
	st, _, err := s.store(a.Store)
	if err != nil {
		return "", err
	}

	var failures []string
	check := func(label string, got, want int) {
		if got != want {
			failures = append(failures, fmt.Sprintf("%s = %d, want %d", label, got, want))
		}
	}

	if a.Writes != nil {
		check("writes", st.WriteCount(), *a.Writes)
	}
	if a.Changes != nil {
		check("changes", s.changes, *a.Changes)
	}
	if a.Inputs != nil {
		check("inputs", s.inputs, *a.Inputs)
	}
	if a.Listeners != nil {
		check("listeners", st.Listeners(), *a.Listeners)
	}
	if a.Target != "" {
		got := "none"
		if s.binding != nil {
			got = s.binding.Target().String()
		}
		if got != a.Target {
			failures = append(failures, fmt.Sprintf("target = %s, want %s", got, a.Target))
		}
	}
	for _, id := range a.Controlled {
		if !st.IsControlled(id) {
			failures = append(failures, fmt.Sprintf("%q is not controlled", id))
		}
	}
	for _, id := range a.NotControlled {
		if st.IsControlled(id) {
			failures = append(failures, fmt.Sprintf("%q is still controlled", id))
		}
	}

	value := st.Root()
	if s.binding != nil && !s.binding.Target().IsRoot() {
		value = st.Children(s.binding.Target().ParentID())
	}
	for _, id := range slices.Sorted(maps.Keys(a.Content)) {
		want := a.Content[id]
		n := value.Find(id)
		if n == nil {
			failures = append(failures, fmt.Sprintf("node %q not found in target", id))
			continue
		}
		if got := fmt.Sprint(n.Attributes["content"]); got != want {
			failures = append(failures, fmt.Sprintf("content of %q = %q, want %q", id, got, want))
		}
	}

	if len(failures) > 0 {
		return "", fmt.Errorf("%w: %s", ErrExpectation, strings.Join(failures, "; "))
	}
	return "ok", nil
}
