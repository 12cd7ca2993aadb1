package statemachine

import "maps"

// Table maps (state, stimulus) pairs to destination states. Each pair has
// at most one destination; re-registering a pair is rejected rather than
// overwritten.
type Table[S, E comparable] struct {
	entries map[S]map[E]S
	states  []S       // top-level states in first-registration order
	stimuli map[S][]E // per-state stimulus order
	edges   int
}

// NewTable creates an empty transition table.
func NewTable[S, E comparable]() *Table[S, E] {
	return &Table[S, E]{
		entries: make(map[S]map[E]S),
		stimuli: make(map[S][]E),
	}
}

// Register adds the (t.From, t.Reason) -> t.To entry. It returns false if
// (t.From, t.Reason) is already mapped, leaving the original entry intact.
func (t *Table[S, E]) Register(tr Transition[S, E]) bool {
	t.AddState(tr.From)

	outgoing := t.entries[tr.From]
	if _, exists := outgoing[tr.Reason]; exists {
		return false
	}

	outgoing[tr.Reason] = tr.To
	t.stimuli[tr.From] = append(t.stimuli[tr.From], tr.Reason)
	t.edges++

	return true
}

// AddState registers a top-level state that may have no outgoing entries.
// It returns false if the state was already registered.
func (t *Table[S, E]) AddState(state S) bool {
	if _, exists := t.entries[state]; exists {
		return false
	}

	t.entries[state] = make(map[E]S)
	t.states = append(t.states, state)

	return true
}

// Lookup returns the destination registered for (current, stimulus).
func (t *Table[S, E]) Lookup(current S, stimulus E) (S, bool) {
	dest, ok := t.entries[current][stimulus]

	return dest, ok
}

// IsRegistered reports whether the exact (from, to, reason) triple is in the table.
func (t *Table[S, E]) IsRegistered(tr Transition[S, E]) bool {
	dest, ok := t.Lookup(tr.From, tr.Reason)

	return ok && dest == tr.To
}

// HasState reports whether the state is a top-level entry.
func (t *Table[S, E]) HasState(state S) bool {
	_, ok := t.entries[state]

	return ok
}

// TopLevelStates returns every registered source state, in registration order.
func (t *Table[S, E]) TopLevelStates() []S {
	out := make([]S, len(t.states))
	copy(out, t.states)

	return out
}

// Outgoing returns a copy of the stimulus -> destination mapping for a state.
func (t *Table[S, E]) Outgoing(state S) map[E]S {
	return maps.Clone(t.entries[state])
}

// Transitions returns all registered edges, ordered by source state and
// then by stimulus registration order.
func (t *Table[S, E]) Transitions() []Transition[S, E] {
	out := make([]Transition[S, E], 0, t.edges)

	for _, from := range t.states {
		for _, reason := range t.stimuli[from] {
			out = append(out, Transition[S, E]{
				From:   from,
				To:     t.entries[from][reason],
				Reason: reason,
			})
		}
	}

	return out
}

// Len returns the number of registered edges.
func (t *Table[S, E]) Len() int {
	return t.edges
}

var _ TableView[string, string] = (*Table[string, string])(nil)
