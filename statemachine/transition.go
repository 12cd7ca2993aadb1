package statemachine

import "fmt"

// Transition is a (from, to, reason) edge. It is comparable, so it can be
// used directly as a map key by the guard and action registries.
type Transition[S, E comparable] struct {
	From   S
	To     S
	Reason E
}

// NewTransition creates a transition from one state to another, caused by reason.
func NewTransition[S, E comparable](from S, reason E, to S) Transition[S, E] {
	return Transition[S, E]{
		From:   from,
		To:     to,
		Reason: reason,
	}
}

func (t Transition[S, E]) String() string {
	return fmt.Sprintf("%v --%v--> %v", t.From, t.Reason, t.To)
}

// TableView is the read-only surface of a Table used by validation and visualization.
type TableView[S, E comparable] interface {
	TopLevelStates() []S
	Outgoing(state S) map[E]S
	IsRegistered(t Transition[S, E]) bool
	Transitions() []Transition[S, E]
}

// GuardView is the read-only surface of a GuardRegistry.
type GuardView[S, E comparable] interface {
	RegisteredTransitions() []Transition[S, E]
}

// ActionView is the read-only surface of an ActionRegistry. It exposes
// action identifiers only, never the functions themselves.
type ActionView[S, E comparable] interface {
	Phase() Phase
	GlobalActions() []string
	StateActions() map[S][]string
	TransitionActions() map[Transition[S, E]][]string
}

// Label renders a state or stimulus for logs, metrics, diagrams and error
// messages. Stringers are used as-is; anything else goes through fmt.
func Label(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}

	return fmt.Sprint(v)
}
