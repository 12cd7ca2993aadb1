package visualizer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/amp-labs/amp-fsm/statemachine"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Source is anything exposing the views of a built machine.
type Source[S, E comparable] interface {
	InitialState() S
	Table() statemachine.TableView[S, E]
	Guards() statemachine.GuardView[S, E]
	EnterActions() statemachine.ActionView[S, E]
	LeaveActions() statemachine.ActionView[S, E]
}

type named interface {
	Name() string
}

type current[S comparable] interface {
	CurrentState() S
}

type node struct {
	id          string
	label       string
	enter       []string
	leave       []string
	current     bool
	highlighted bool
}

type edge struct {
	from    string
	to      string
	label   string
	guarded bool
	actions []string
}

// graph is the renderer-neutral form of a machine.
type graph struct {
	name    string
	initial string
	nodes   []*node
	edges   []edge
}

func buildGraph[S, E comparable](source Source[S, E], opts Options) *graph {
	ids := newIDAllocator()
	nodes := make(map[S]*node)

	g := &graph{name: "statemachine"}
	if n, ok := source.(named); ok && n.Name() != "" {
		g.name = n.Name()
	}

	highlight := make(map[string]bool, len(opts.HighlightPath))
	for _, state := range opts.HighlightPath {
		highlight[state] = true
	}

	addNode := func(state S) *node {
		if existing, ok := nodes[state]; ok {
			return existing
		}

		label := statemachine.Label(state)
		created := &node{id: ids.allocate(label), label: label, highlighted: highlight[label]}
		nodes[state] = created
		g.nodes = append(g.nodes, created)

		return created
	}

	g.initial = addNode(source.InitialState()).id

	table := source.Table()
	for _, state := range table.TopLevelStates() {
		addNode(state)
	}

	guarded := make(map[statemachine.Transition[S, E]]bool)
	for _, t := range source.Guards().RegisteredTransitions() {
		guarded[t] = true
	}

	enterByTransition := source.EnterActions().TransitionActions()
	leaveByTransition := source.LeaveActions().TransitionActions()

	for _, t := range table.Transitions() {
		e := edge{
			from:    addNode(t.From).id,
			to:      addNode(t.To).id,
			label:   statemachine.Label(t.Reason),
			guarded: opts.ShowGuards && guarded[t],
		}

		if opts.ShowActions {
			e.actions = append(e.actions, leaveByTransition[t]...)
			e.actions = append(e.actions, enterByTransition[t]...)
		}

		g.edges = append(g.edges, e)
	}

	if opts.ShowActions {
		for state, actions := range source.EnterActions().StateActions() {
			if n, ok := nodes[state]; ok {
				n.enter = actions
			}
		}

		for state, actions := range source.LeaveActions().StateActions() {
			if n, ok := nodes[state]; ok {
				n.leave = actions
			}
		}
	}

	if c, ok := source.(current[S]); ok && opts.HighlightCurrent {
		if n, found := nodes[c.CurrentState()]; found {
			n.current = true
		}
	}

	return g
}

var foldASCII = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// idAllocator turns arbitrary labels into unique diagram identifiers made
// of ASCII letters, digits and underscores.
type idAllocator struct {
	used map[string]bool
	next map[string]int
}

func newIDAllocator() *idAllocator {
	return &idAllocator{used: make(map[string]bool), next: make(map[string]int)}
}

// allocate returns sanitizeID(label), suffixed with _2, _3 and so on until
// it differs from every identifier handed out before, suffixed ones included.
func (a *idAllocator) allocate(label string) string {
	base := sanitizeID(label)

	id := base
	for a.used[id] {
		a.next[base] = max(a.next[base], 1) + 1
		id = base + "_" + strconv.Itoa(a.next[base])
	}

	a.used[id] = true

	return id
}

func sanitizeID(label string) string {
	folded, _, err := transform.String(foldASCII, label)
	if err != nil {
		folded = label
	}

	var builder strings.Builder

	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}

	id := builder.String()
	if id == "" || unicode.IsDigit(rune(id[0])) {
		id = "s_" + id
	}

	return id
}
