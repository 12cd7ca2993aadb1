// Package validator checks the structure of a state machine before it is
// put to work: reachability, cycles, and guards or actions registered
// against transitions that do not exist.
package validator

import "github.com/amp-labs/amp-fsm/statemachine"

// Input is the read-only description of a machine being validated.
// Nil views are treated as empty.
type Input[S, E comparable] struct {
	Initial      S
	Domain       []S
	Table        statemachine.TableView[S, E]
	Guards       statemachine.GuardView[S, E]
	EnterActions statemachine.ActionView[S, E]
	LeaveActions statemachine.ActionView[S, E]
}

// Source is anything exposing the views of a built machine. Both
// *statemachine.Engine and *statemachine.Deferred satisfy it.
type Source[S, E comparable] interface {
	InitialState() S
	Table() statemachine.TableView[S, E]
	Guards() statemachine.GuardView[S, E]
	EnterActions() statemachine.ActionView[S, E]
	LeaveActions() statemachine.ActionView[S, E]
}

// FromEngine builds an Input from a machine. domain lists every value of
// the state type and enables the unregistered state rule.
func FromEngine[S, E comparable](source Source[S, E], domain ...S) Input[S, E] {
	return Input[S, E]{
		Initial:      source.InitialState(),
		Domain:       domain,
		Table:        source.Table(),
		Guards:       source.Guards(),
		EnterActions: source.EnterActions(),
		LeaveActions: source.LeaveActions(),
	}
}

func (in Input[S, E]) topLevelStates() []S {
	if in.Table == nil {
		return nil
	}

	return in.Table.TopLevelStates()
}

func (in Input[S, E]) transitions() []statemachine.Transition[S, E] {
	if in.Table == nil {
		return nil
	}

	return in.Table.Transitions()
}

func (in Input[S, E]) isRegistered(t statemachine.Transition[S, E]) bool {
	return in.Table != nil && in.Table.IsRegistered(t)
}

func (in Input[S, E]) guardedTransitions() []statemachine.Transition[S, E] {
	if in.Guards == nil {
		return nil
	}

	return in.Guards.RegisteredTransitions()
}

func (in Input[S, E]) actionViews() []statemachine.ActionView[S, E] {
	var views []statemachine.ActionView[S, E]

	if in.EnterActions != nil {
		views = append(views, in.EnterActions)
	}

	if in.LeaveActions != nil {
		views = append(views, in.LeaveActions)
	}

	return views
}
