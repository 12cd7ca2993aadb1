package statemachine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Components are the registries an Engine takes ownership of. They are
// populated during a build phase and must not be mutated once handed over.
// Nil members are replaced by empty ones.
type Components[S, E comparable] struct {
	Table        *Table[S, E]
	Guards       *GuardRegistry[S, E]
	EnterActions *ActionRegistry[S, E]
	LeaveActions *ActionRegistry[S, E]
	History      *History[S, E]
}

// Engine executes stimulus-driven transitions over a Table. It owns the
// current state and is not safe for concurrent use; wrap it in a Deferred
// engine to accept stimuli from several goroutines.
type Engine[S, E comparable] struct {
	id      string
	name    string
	initial S
	current S

	table   *Table[S, E]
	guards  *GuardRegistry[S, E]
	enter   *ActionRegistry[S, E]
	leave   *ActionRegistry[S, E]
	history *History[S, E]

	logger           Logger
	metrics          bool
	tracing          bool
	errorOnFailed    bool
	errorOnSameState bool
	machineLabel     string

	// instrument wraps dispatched actions; nil when no observer is enabled.
	instrument ActionMiddleware[S, E]
}

// NewEngine creates an engine positioned at the initial state.
func NewEngine[S, E comparable](name string, initial S, components Components[S, E], opts ...Option) *Engine[S, E] {
	options := defaultEngineOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if components.Table == nil {
		components.Table = NewTable[S, E]()
	}

	if components.Guards == nil {
		components.Guards = NewGuardRegistry[S, E]()
	}

	if components.EnterActions == nil {
		components.EnterActions = NewActionRegistry[S, E](PhaseEnter)
	}

	if components.LeaveActions == nil {
		components.LeaveActions = NewActionRegistry[S, E](PhaseLeave)
	}

	if components.History == nil {
		components.History = NewHistory[S, E]()
	}

	if options.historyEnabled {
		components.History.Enable()

		if options.historyCapacity > 0 {
			_ = components.History.MakeBounded(options.historyCapacity)
		}
	}

	if options.id == "" {
		options.id = uuid.NewString()
	}

	engine := &Engine[S, E]{
		id:               options.id,
		name:             name,
		initial:          initial,
		current:          initial,
		table:            components.Table,
		guards:           components.Guards,
		enter:            components.EnterActions,
		leave:            components.LeaveActions,
		history:          components.History,
		logger:           options.logger,
		metrics:          options.metrics,
		tracing:          options.tracing,
		errorOnFailed:    options.errorOnFailed,
		errorOnSameState: options.errorOnSameState,
		machineLabel:     sanitizeMachine(name),
	}

	if engine.logger != nil || engine.metrics || engine.tracing {
		engine.instrument = engine.instrumentAction
	}

	return engine
}

// Post applies a stimulus to the current state.
//
// It returns false without side effects when no transition is registered,
// when the destination equals the current state, or when the guard blocks
// the transition. The first two cases return ErrNoTransition and
// ErrSameStateTransition instead when the corresponding strict flag is set.
//
// A failing leave action aborts the post before the state changes. A
// failing enter action is returned with true: the state has already
// changed, but no history entry is recorded.
func (e *Engine[S, E]) Post(ctx context.Context, stimulus E) (transitioned bool, err error) {
	from := e.current

	if e.tracing {
		var span trace.Span

		ctx, span = startPostSpan(ctx, e.name, Label(from), Label(stimulus))

		defer func() {
			endSpan(span, err,
				attribute.Bool("transitioned", transitioned),
				attribute.String("to_state", Label(e.current)),
			)
		}()
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	dest, found := e.table.Lookup(from, stimulus)
	if !found {
		e.rejected(ctx, from, stimulus, causeNoTransition)

		if e.errorOnFailed {
			return false, wrapTransitionError(e.name, Label(from), Label(stimulus), "", ErrNoTransition)
		}

		return false, nil
	}

	if dest == from {
		e.rejected(ctx, from, stimulus, causeSameState)

		if e.errorOnSameState {
			return false, wrapTransitionError(e.name, Label(from), Label(stimulus), Label(dest), ErrSameStateTransition)
		}

		return false, nil
	}

	transition := Transition[S, E]{From: from, To: dest, Reason: stimulus}

	allowed, err := e.guards.Check(ctx, transition)
	if err != nil {
		return false, wrapTransitionError(e.name, Label(from), Label(stimulus), Label(dest), err)
	}

	if !allowed {
		e.rejected(ctx, from, stimulus, causeGuard)

		return false, nil
	}

	if err := e.leave.dispatch(ctx, from, transition, true, e.instrument); err != nil {
		return false, wrapTransitionError(e.name, Label(from), Label(stimulus), Label(dest), err)
	}

	e.current = dest

	if err := e.enter.dispatch(ctx, dest, transition, true, e.instrument); err != nil {
		return true, wrapTransitionError(e.name, Label(from), Label(stimulus), Label(dest), err)
	}

	reason := stimulus
	e.history.Add(from, dest, &reason)

	if e.metrics {
		transitionsTotal.WithLabelValues(e.machineLabel, Label(from), Label(dest), Label(stimulus)).Inc()
	}

	if e.logger != nil {
		e.logger.TransitionExecuted(ctx, e.name, Label(from), Label(dest), Label(stimulus))
	}

	return true, nil
}

// OverrideState forces the machine into state without consulting the table
// or guards. Global and state-scoped leave and enter actions still fire
// with a transition whose reason is the zero stimulus; transition-scoped
// actions do not, even when the zero stimulus names a registered edge.
// History records the change with a nil reason. Persistence uses this to restore a snapshot while notifying observers.
func (e *Engine[S, E]) OverrideState(ctx context.Context, state S) (err error) {
	from := e.current

	if e.tracing {
		var span trace.Span

		ctx, span = startOverrideSpan(ctx, e.name, Label(from), Label(state))

		defer func() {
			endSpan(span, err)
		}()
	}

	var zero E

	transition := Transition[S, E]{From: from, To: state, Reason: zero}

	if err := e.leave.dispatch(ctx, from, transition, false, e.instrument); err != nil {
		return wrapStateError(e.name, Label(state), err)
	}

	e.current = state

	if err := e.enter.dispatch(ctx, state, transition, false, e.instrument); err != nil {
		return wrapStateError(e.name, Label(state), err)
	}

	e.history.Add(from, state, nil)

	if e.metrics {
		overridesTotal.WithLabelValues(e.machineLabel).Inc()
	}

	if e.logger != nil {
		e.logger.StateOverridden(ctx, e.name, Label(from), Label(state))
	}

	return nil
}

// ID returns the unique identifier of this engine instance.
func (e *Engine[S, E]) ID() string {
	return e.id
}

// Name returns the machine name.
func (e *Engine[S, E]) Name() string {
	return e.name
}

// CurrentState returns the state the machine is in.
func (e *Engine[S, E]) CurrentState() S {
	return e.current
}

// InitialState returns the state the engine was created in.
func (e *Engine[S, E]) InitialState() S {
	return e.initial
}

// History returns the transition log.
func (e *Engine[S, E]) History() *History[S, E] {
	return e.history
}

// Table returns a read-only view of the transition table.
func (e *Engine[S, E]) Table() TableView[S, E] { //nolint:ireturn
	return e.table
}

// Guards returns a read-only view of the guard registry.
func (e *Engine[S, E]) Guards() GuardView[S, E] { //nolint:ireturn
	return e.guards
}

// EnterActions returns a read-only view of the enter action registry.
func (e *Engine[S, E]) EnterActions() ActionView[S, E] { //nolint:ireturn
	return e.enter
}

// LeaveActions returns a read-only view of the leave action registry.
func (e *Engine[S, E]) LeaveActions() ActionView[S, E] { //nolint:ireturn
	return e.leave
}

// SetErrorOnFailedTransition toggles strict handling of unregistered stimuli.
func (e *Engine[S, E]) SetErrorOnFailedTransition(enabled bool) {
	e.errorOnFailed = enabled
}

// ErrorOnFailedTransition reports whether unregistered stimuli return ErrNoTransition.
func (e *Engine[S, E]) ErrorOnFailedTransition() bool {
	return e.errorOnFailed
}

// SetErrorOnSameStateTransition toggles strict handling of self-transitions.
func (e *Engine[S, E]) SetErrorOnSameStateTransition(enabled bool) {
	e.errorOnSameState = enabled
}

// ErrorOnSameStateTransition reports whether self-transitions return ErrSameStateTransition.
func (e *Engine[S, E]) ErrorOnSameStateTransition() bool {
	return e.errorOnSameState
}

func (e *Engine[S, E]) rejected(ctx context.Context, from S, stimulus E, cause string) {
	if e.metrics {
		rejectionsTotal.WithLabelValues(e.machineLabel, cause).Inc()
	}

	if e.logger != nil {
		e.logger.TransitionRejected(ctx, e.name, Label(from), Label(stimulus), cause)
	}
}

// instrumentAction wraps every enter/leave action with a span, a duration
// metric and a log hook.
func (e *Engine[S, E]) instrumentAction(phase Phase, action Action[S, E], next ActionFunc[S, E]) ActionFunc[S, E] {
	return func(ctx context.Context, t Transition[S, E]) error {
		var span trace.Span

		if e.tracing {
			ctx, span = startActionSpan(ctx, e.name, phase, action.ID)
		}

		start := time.Now()
		err := next(ctx, t)
		elapsed := time.Since(start)

		if span != nil {
			endSpan(span, err, attribute.Int64("duration_ms", elapsed.Milliseconds()))
		}

		if e.metrics {
			outcome := outcomeSuccess
			if err != nil {
				outcome = outcomeError
			}

			actionDuration.WithLabelValues(e.machineLabel, string(phase), action.ID, outcome).Observe(elapsed.Seconds())
		}

		if e.logger != nil {
			e.logger.ActionCompleted(ctx, e.name, phase, action.ID, elapsed, err)
		}

		return err
	}
}
