package statemachine

import "context"

// Guard decides whether a transition may proceed. Returning false blocks
// the transition silently; returning an error aborts the post with that error.
type Guard[S, E comparable] func(ctx context.Context, t Transition[S, E]) (bool, error)

// GuardRegistry holds at most one guard per exact transition. Callers that
// need several checks compose them with AllOf / AnyOf before registering.
type GuardRegistry[S, E comparable] struct {
	guards map[Transition[S, E]]Guard[S, E]
	order  []Transition[S, E]
}

// NewGuardRegistry creates an empty guard registry.
func NewGuardRegistry[S, E comparable]() *GuardRegistry[S, E] {
	return &GuardRegistry[S, E]{
		guards: make(map[Transition[S, E]]Guard[S, E]),
	}
}

// Register attaches a guard to a transition. The first registration wins;
// later ones (and nil guards) return false.
func (g *GuardRegistry[S, E]) Register(t Transition[S, E], guard Guard[S, E]) bool {
	if guard == nil {
		return false
	}

	if _, exists := g.guards[t]; exists {
		return false
	}

	g.guards[t] = guard
	g.order = append(g.order, t)

	return true
}

// Check evaluates the guard registered for t. A transition without a guard
// is always allowed.
func (g *GuardRegistry[S, E]) Check(ctx context.Context, t Transition[S, E]) (bool, error) {
	guard, ok := g.guards[t]
	if !ok {
		return true, nil
	}

	allowed, err := guard(ctx, t)
	if err != nil {
		return false, &GuardError{Transition: t.String(), Err: err}
	}

	return allowed, nil
}

// Has reports whether a guard is registered for t.
func (g *GuardRegistry[S, E]) Has(t Transition[S, E]) bool {
	_, ok := g.guards[t]

	return ok
}

// RegisteredTransitions returns the guarded transitions in registration order.
func (g *GuardRegistry[S, E]) RegisteredTransitions() []Transition[S, E] {
	out := make([]Transition[S, E], len(g.order))
	copy(out, g.order)

	return out
}

// AllOf returns a guard that passes only when every guard passes. Guards
// are evaluated in order and evaluation stops at the first rejection.
func AllOf[S, E comparable](guards ...Guard[S, E]) Guard[S, E] {
	return func(ctx context.Context, t Transition[S, E]) (bool, error) {
		for _, guard := range guards {
			ok, err := guard(ctx, t)
			if err != nil || !ok {
				return false, err
			}
		}

		return true, nil
	}
}

// AnyOf returns a guard that passes when at least one guard passes.
func AnyOf[S, E comparable](guards ...Guard[S, E]) Guard[S, E] {
	return func(ctx context.Context, t Transition[S, E]) (bool, error) {
		for _, guard := range guards {
			ok, err := guard(ctx, t)
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	}
}

// Not inverts a guard. Errors are passed through unchanged.
func Not[S, E comparable](guard Guard[S, E]) Guard[S, E] {
	return func(ctx context.Context, t Transition[S, E]) (bool, error) {
		ok, err := guard(ctx, t)
		if err != nil {
			return false, err
		}

		return !ok, nil
	}
}

var _ GuardView[string, string] = (*GuardRegistry[string, string])(nil)
