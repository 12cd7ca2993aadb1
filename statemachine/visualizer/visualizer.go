// Package visualizer renders state machines as Mermaid or Graphviz DOT diagrams.
//
//nolint:varnamelen // short names idiomatic
package visualizer

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrSourceNil is returned when no machine is given.
var ErrSourceNil = errors.New("source cannot be nil")

// GenerateMermaid renders the machine as a Mermaid state diagram.
func GenerateMermaid[S, E comparable](source Source[S, E], opts Options) (string, error) {
	if isNil(source) {
		return "", ErrSourceNil
	}

	g := buildGraph(source, opts)

	var sb strings.Builder

	sb.WriteString("stateDiagram-v2\n")

	if opts.Direction != "" {
		fmt.Fprintf(&sb, "    direction %s\n", opts.Direction)
	}

	for _, n := range g.nodes {
		if n.label != n.id {
			fmt.Fprintf(&sb, "    state %q as %s\n", n.label, n.id)
		}
	}

	fmt.Fprintf(&sb, "    [*] --> %s\n", g.initial)

	for _, e := range g.edges {
		fmt.Fprintf(&sb, "    %s --> %s : %s\n", e.from, e.to, edgeLabel(e))
	}

	for _, n := range g.nodes {
		if len(n.enter) == 0 && len(n.leave) == 0 {
			continue
		}

		fmt.Fprintf(&sb, "    note right of %s\n", n.id)

		if len(n.enter) > 0 {
			fmt.Fprintf(&sb, "        enter: %s\n", strings.Join(n.enter, ", "))
		}

		if len(n.leave) > 0 {
			fmt.Fprintf(&sb, "        leave: %s\n", strings.Join(n.leave, ", "))
		}

		sb.WriteString("    end note\n")
	}

	styled := false

	for _, n := range g.nodes {
		switch {
		case n.current:
			fmt.Fprintf(&sb, "    class %s current\n", n.id)

			styled = true
		case n.highlighted:
			fmt.Fprintf(&sb, "    class %s highlighted\n", n.id)

			styled = true
		}
	}

	if styled {
		sb.WriteString("\n")
		sb.WriteString("    classDef current fill:#c8e6c9,stroke:#2e7d32,stroke-width:3px\n")
		sb.WriteString("    classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")
	}

	return sb.String(), nil
}

// GenerateDOT renders the machine as a Graphviz digraph.
func GenerateDOT[S, E comparable](source Source[S, E], opts Options) (string, error) {
	if isNil(source) {
		return "", ErrSourceNil
	}

	g := buildGraph(source, opts)

	var sb strings.Builder

	fmt.Fprintf(&sb, "digraph %q {\n", g.name)

	if opts.Direction != "" {
		fmt.Fprintf(&sb, "    rankdir=%s;\n", opts.Direction)
	}

	sb.WriteString("    node [shape=box, style=rounded];\n")
	sb.WriteString("    __start [shape=point];\n")

	for _, n := range g.nodes {
		attrs := []string{fmt.Sprintf("label=%q", nodeLabel(n))}

		switch {
		case n.current:
			attrs = append(attrs, `style="rounded,filled"`, `fillcolor="#c8e6c9"`)
		case n.highlighted:
			attrs = append(attrs, `style="rounded,filled"`, `fillcolor="#fff9c4"`)
		}

		fmt.Fprintf(&sb, "    %s [%s];\n", n.id, strings.Join(attrs, ", "))
	}

	fmt.Fprintf(&sb, "    __start -> %s;\n", g.initial)

	for _, e := range g.edges {
		attrs := []string{fmt.Sprintf("label=%q", edgeLabel(e))}
		if e.guarded {
			attrs = append(attrs, "style=dashed")
		}

		fmt.Fprintf(&sb, "    %s -> %s [%s];\n", e.from, e.to, strings.Join(attrs, ", "))
	}

	sb.WriteString("}\n")

	return sb.String(), nil
}

func edgeLabel(e edge) string {
	label := e.label

	if e.guarded {
		label += " [guarded]"
	}

	if len(e.actions) > 0 {
		label += " / " + strings.Join(e.actions, ", ")
	}

	return label
}

func nodeLabel(n *node) string {
	lines := []string{n.label}

	if len(n.enter) > 0 {
		lines = append(lines, "enter: "+strings.Join(n.enter, ", "))
	}

	if len(n.leave) > 0 {
		lines = append(lines, "leave: "+strings.Join(n.leave, ", "))
	}

	return strings.Join(lines, "\n")
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)

	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
