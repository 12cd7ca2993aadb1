package statemachine

import (
	"context"
	"errors"
	"fmt"
)

// Builder provides a fluent API for constructing state machines. Every
// registration conflict is remembered and reported by Err and Build, so a
// chain never has to be interrupted for error checks.
type Builder[S, E comparable] struct {
	name    string
	initial S

	table  *Table[S, E]
	guards *GuardRegistry[S, E]
	enter  *ActionRegistry[S, E]
	leave  *ActionRegistry[S, E]

	domain   []S
	options  []Option
	errs     []error
	consumed bool
}

// NewBuilder creates a builder for a machine starting in initial. The
// initial state is not registered implicitly; declare it with In.
func NewBuilder[S, E comparable](name string, initial S) *Builder[S, E] {
	return &Builder[S, E]{
		name:    name,
		initial: initial,
		table:   NewTable[S, E](),
		guards:  NewGuardRegistry[S, E](),
		enter:   NewActionRegistry[S, E](PhaseEnter),
		leave:   NewActionRegistry[S, E](PhaseLeave),
	}
}

// In declares state as a top-level state and returns a builder scoped to it.
func (b *Builder[S, E]) In(state S) *StateBuilder[S, E] {
	b.table.AddState(state)

	return &StateBuilder[S, E]{builder: b, state: state}
}

// OnEnterAny registers an enter action that fires on every transition.
func (b *Builder[S, E]) OnEnterAny(id string, fn ActionFunc[S, E]) *Builder[S, E] {
	if !b.enter.RegisterGlobal(id, fn) {
		b.fail(fmt.Errorf("%w: global enter action %q", ErrInvalidAction, id))
	}

	return b
}

// OnLeaveAny registers a leave action that fires on every transition.
func (b *Builder[S, E]) OnLeaveAny(id string, fn ActionFunc[S, E]) *Builder[S, E] {
	if !b.leave.RegisterGlobal(id, fn) {
		b.fail(fmt.Errorf("%w: global leave action %q", ErrInvalidAction, id))
	}

	return b
}

// OnEnterTransition registers an enter action for one exact transition.
func (b *Builder[S, E]) OnEnterTransition(t Transition[S, E], id string, fn ActionFunc[S, E]) *Builder[S, E] {
	if !b.enter.RegisterForTransition(t, id, fn) {
		b.fail(fmt.Errorf("%w: enter action %q on %s", ErrInvalidAction, id, t))
	}

	return b
}

// OnLeaveTransition registers a leave action for one exact transition.
func (b *Builder[S, E]) OnLeaveTransition(t Transition[S, E], id string, fn ActionFunc[S, E]) *Builder[S, E] {
	if !b.leave.RegisterForTransition(t, id, fn) {
		b.fail(fmt.Errorf("%w: leave action %q on %s", ErrInvalidAction, id, t))
	}

	return b
}

// Domain lists every value of the state type. The validator uses it to
// report states that were never registered.
func (b *Builder[S, E]) Domain(states ...S) *Builder[S, E] {
	b.domain = append(b.domain, states...)

	return b
}

// DomainStates returns a copy of the declared domain.
func (b *Builder[S, E]) DomainStates() []S {
	out := make([]S, len(b.domain))
	copy(out, b.domain)

	return out
}

// WithHistory enables history; a capacity of zero keeps it unbounded.
func (b *Builder[S, E]) WithHistory(capacity int) *Builder[S, E] {
	if capacity < 0 {
		b.fail(fmt.Errorf("%w: %d", ErrInvalidHistoryCapacity, capacity))

		return b
	}

	b.options = append(b.options, WithHistory(capacity))

	return b
}

// ErrorOnFailedTransition makes the built engine return ErrNoTransition
// for unregistered stimuli.
func (b *Builder[S, E]) ErrorOnFailedTransition() *Builder[S, E] {
	b.options = append(b.options, WithErrorOnFailedTransition(true))

	return b
}

// ErrorOnSameStateTransition makes the built engine return
// ErrSameStateTransition for self-transitions.
func (b *Builder[S, E]) ErrorOnSameStateTransition() *Builder[S, E] {
	b.options = append(b.options, WithErrorOnSameStateTransition(true))

	return b
}

// WithOptions appends engine options applied at build time.
func (b *Builder[S, E]) WithOptions(opts ...Option) *Builder[S, E] {
	b.options = append(b.options, opts...)

	return b
}

// Err returns every registration failure recorded so far, joined.
func (b *Builder[S, E]) Err() error {
	return errors.Join(b.errs...)
}

// Build creates a synchronous engine.
func (b *Builder[S, E]) Build() (*Engine[S, E], error) {
	return BuildWith(b, EngineFactory[S, E]())
}

// BuildDeferred creates an engine wrapped in a Deferred engine whose
// consumer lives as long as ctx.
func (b *Builder[S, E]) BuildDeferred(ctx context.Context, opts ...DeferredOption) (*Deferred[S, E], error) {
	return BuildWith(b, DeferredFactory[S, E](ctx, opts...))
}

// components hands the registries over. A builder can only be built once
// because the engine takes ownership of them.
func (b *Builder[S, E]) components() (Components[S, E], error) {
	if b.consumed {
		return Components[S, E]{}, ErrBuilderConsumed
	}

	if err := b.Err(); err != nil {
		return Components[S, E]{}, err
	}

	b.consumed = true

	return Components[S, E]{
		Table:        b.table,
		Guards:       b.guards,
		EnterActions: b.enter,
		LeaveActions: b.leave,
		History:      NewHistory[S, E](),
	}, nil
}

func (b *Builder[S, E]) fail(err error) {
	b.errs = append(b.errs, err)
}

// StateBuilder registers transitions and actions scoped to one state.
type StateBuilder[S, E comparable] struct {
	builder *Builder[S, E]
	state   S
}

// On starts an edge leaving this state on stimulus.
func (sb *StateBuilder[S, E]) On(stimulus E) *EdgeBuilder[S, E] {
	return &EdgeBuilder[S, E]{from: sb, stimulus: stimulus}
}

// OnEnter registers an action fired whenever the machine enters this state.
func (sb *StateBuilder[S, E]) OnEnter(id string, fn ActionFunc[S, E]) *StateBuilder[S, E] {
	if !sb.builder.enter.RegisterForState(sb.state, id, fn) {
		sb.builder.fail(fmt.Errorf("%w: enter action %q on %s", ErrInvalidAction, id, Label(sb.state)))
	}

	return sb
}

// OnLeave registers an action fired whenever the machine leaves this state.
func (sb *StateBuilder[S, E]) OnLeave(id string, fn ActionFunc[S, E]) *StateBuilder[S, E] {
	if !sb.builder.leave.RegisterForState(sb.state, id, fn) {
		sb.builder.fail(fmt.Errorf("%w: leave action %q on %s", ErrInvalidAction, id, Label(sb.state)))
	}

	return sb
}

// In switches to another state.
func (sb *StateBuilder[S, E]) In(state S) *StateBuilder[S, E] {
	return sb.builder.In(state)
}

// Done returns the parent builder.
func (sb *StateBuilder[S, E]) Done() *Builder[S, E] {
	return sb.builder
}

// EdgeBuilder collects an optional guard before the destination is known.
type EdgeBuilder[S, E comparable] struct {
	from     *StateBuilder[S, E]
	stimulus E
	guard    Guard[S, E]
}

// If attaches a guard to the edge.
func (eb *EdgeBuilder[S, E]) If(guard Guard[S, E]) *EdgeBuilder[S, E] {
	eb.guard = guard

	return eb
}

// GoTo registers the edge and returns to the source state's builder.
func (eb *EdgeBuilder[S, E]) GoTo(dest S) *StateBuilder[S, E] {
	builder := eb.from.builder
	transition := NewTransition(eb.from.state, eb.stimulus, dest)

	if !builder.table.Register(transition) {
		builder.fail(fmt.Errorf("%w: %s on %s", ErrDuplicateTransition, Label(eb.from.state), Label(eb.stimulus)))

		return eb.from
	}

	if eb.guard != nil && !builder.guards.Register(transition, eb.guard) {
		builder.fail(fmt.Errorf("%w: %s", ErrDuplicateGuard, transition))
	}

	return eb.from
}
