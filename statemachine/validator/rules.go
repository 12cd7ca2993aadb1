//nolint:lll // Long validation messages
package validator

import (
	"fmt"
	"strings"

	"facette.io/natsort"
	"github.com/amp-labs/amp-fsm/statemachine"
)

// Error codes reported by the built-in rules.
const (
	CodeInitialStateUnregistered = "INITIAL_STATE_UNREGISTERED"
	CodeStateUnregistered        = "STATE_UNREGISTERED"
	CodeUnreachableState         = "UNREACHABLE_STATE"
	CodeUnreachableAction        = "UNREACHABLE_ACTION"
	CodeUnreachableGuard         = "UNREACHABLE_GUARD"
	CodeCycleDetected            = "CYCLE_DETECTED"
	CodeRuleFailed               = "RULE_FAILED"
)

// Rule checks one structural property of a machine. Rules must not mutate
// the input; they may run concurrently with each other.
type Rule[S, E comparable] interface {
	Code() string
	Check(input Input[S, E], traversal *Traversal[S]) []ValidationError
}

// DefaultRules returns every built-in rule except the cycle check, since
// most real machines loop on purpose.
func DefaultRules[S, E comparable]() []Rule[S, E] {
	return []Rule[S, E]{
		InitialStateRule[S, E]{},
		UnregisteredStateRule[S, E]{},
		UnreachableStateRule[S, E]{},
		UnreachableActionRule[S, E]{},
		UnreachableGuardRule[S, E]{},
	}
}

// InitialStateRule requires the initial state to be a top-level table entry.
type InitialStateRule[S, E comparable] struct{}

func (InitialStateRule[S, E]) Code() string { return CodeInitialStateUnregistered }

func (InitialStateRule[S, E]) Check(input Input[S, E], _ *Traversal[S]) []ValidationError {
	for _, state := range input.topLevelStates() {
		if state == input.Initial {
			return nil
		}
	}

	initial := statemachine.Label(input.Initial)

	return []ValidationError{{
		Code:    CodeInitialStateUnregistered,
		Message: fmt.Sprintf("Initial state '%s' is not registered in the transition table", initial),
		States:  []string{initial},
	}}
}

// UnregisteredStateRule reports declared domain values that never appear in
// the table. It does nothing when no domain was supplied.
type UnregisteredStateRule[S, E comparable] struct{}

func (UnregisteredStateRule[S, E]) Code() string { return CodeStateUnregistered }

func (UnregisteredStateRule[S, E]) Check(input Input[S, E], _ *Traversal[S]) []ValidationError {
	registered := make(map[S]bool)
	for _, state := range input.topLevelStates() {
		registered[state] = true
	}

	var missing []string

	seen := make(map[S]bool)

	for _, state := range input.Domain {
		if registered[state] || seen[state] {
			continue
		}

		seen[state] = true
		missing = append(missing, statemachine.Label(state))
	}

	natsort.Sort(missing)

	errs := make([]ValidationError, 0, len(missing))
	for _, state := range missing {
		errs = append(errs, ValidationError{
			Code:    CodeStateUnregistered,
			Message: fmt.Sprintf("State '%s' is declared but not registered in the transition table", state),
			States:  []string{state},
		})
	}

	return errs
}

// UnreachableStateRule reports top-level states the initial state cannot reach.
type UnreachableStateRule[S, E comparable] struct{}

func (UnreachableStateRule[S, E]) Code() string { return CodeUnreachableState }

func (UnreachableStateRule[S, E]) Check(input Input[S, E], traversal *Traversal[S]) []ValidationError {
	states := labels(traversal.Unreachable)
	initial := statemachine.Label(input.Initial)

	errs := make([]ValidationError, 0, len(states))
	for _, state := range states {
		errs = append(errs, ValidationError{
			Code:    CodeUnreachableState,
			Message: fmt.Sprintf("State '%s' cannot be reached from initial state '%s'", state, initial),
			States:  []string{state},
		})
	}

	return errs
}

// UnreachableActionRule reports actions bound to an exact transition that
// the table does not contain. Such actions can never fire.
type UnreachableActionRule[S, E comparable] struct{}

func (UnreachableActionRule[S, E]) Code() string { return CodeUnreachableAction }

func (UnreachableActionRule[S, E]) Check(input Input[S, E], _ *Traversal[S]) []ValidationError {
	var errs []ValidationError

	for _, view := range input.actionViews() {
		for _, entry := range sortedTransitions(view.TransitionActions()) {
			if input.isRegistered(entry.transition) {
				continue
			}

			errs = append(errs, ValidationError{
				Code: CodeUnreachableAction,
				Message: fmt.Sprintf("%s actions [%s] are bound to %s, which is not in the transition table",
					view.Phase(), strings.Join(entry.ids, ", "), entry.transition),
				States:      transitionStates(entry.transition),
				Transitions: []string{entry.transition.String()},
			})
		}
	}

	return errs
}

// UnreachableGuardRule reports guards registered for transitions the table
// does not contain.
type UnreachableGuardRule[S, E comparable] struct{}

func (UnreachableGuardRule[S, E]) Code() string { return CodeUnreachableGuard }

func (UnreachableGuardRule[S, E]) Check(input Input[S, E], _ *Traversal[S]) []ValidationError {
	var errs []ValidationError

	for _, transition := range input.guardedTransitions() {
		if input.isRegistered(transition) {
			continue
		}

		errs = append(errs, ValidationError{
			Code:        CodeUnreachableGuard,
			Message:     fmt.Sprintf("Guard is registered for %s, which is not in the transition table", transition),
			States:      transitionStates(transition),
			Transitions: []string{transition.String()},
		})
	}

	return errs
}

// NoCyclesRule reports a cycle reachable from the initial state. Only the
// existence of a cycle is reported, not its path. It is opt-in.
type NoCyclesRule[S, E comparable] struct{}

func (NoCyclesRule[S, E]) Code() string { return CodeCycleDetected }

func (NoCyclesRule[S, E]) Check(input Input[S, E], traversal *Traversal[S]) []ValidationError {
	if !traversal.Cyclic {
		return nil
	}

	return []ValidationError{{
		Code:    CodeCycleDetected,
		Message: fmt.Sprintf("The graph reachable from '%s' contains a cycle", statemachine.Label(input.Initial)),
		States:  []string{statemachine.Label(input.Initial)},
	}}
}

type transitionActions[S, E comparable] struct {
	transition statemachine.Transition[S, E]
	ids        []string
}

// sortedTransitions orders a per-transition map by its rendered form so
// results do not depend on map iteration.
func sortedTransitions[S, E comparable](
	byTransition map[statemachine.Transition[S, E]][]string,
) []transitionActions[S, E] {
	keys := make([]string, 0, len(byTransition))
	index := make(map[string]statemachine.Transition[S, E], len(byTransition))

	for t := range byTransition {
		key := t.String()
		keys = append(keys, key)
		index[key] = t
	}

	natsort.Sort(keys)

	out := make([]transitionActions[S, E], 0, len(keys))
	for _, key := range keys {
		t := index[key]
		out = append(out, transitionActions[S, E]{transition: t, ids: byTransition[t]})
	}

	return out
}

func transitionStates[S, E comparable](t statemachine.Transition[S, E]) []string {
	return labels([]S{t.From, t.To})
}

func labels[S comparable](states []S) []string {
	out := make([]string, 0, len(states))
	for _, state := range states {
		out = append(out, statemachine.Label(state))
	}

	natsort.Sort(out)

	return out
}
