package statemachine

import "context"

// Phase identifies whether an action runs when a state is entered or left.
type Phase string

const (
	PhaseEnter Phase = "enter"
	PhaseLeave Phase = "leave"
)

// ActionFunc is a side-effecting callback over a transition.
type ActionFunc[S, E comparable] func(ctx context.Context, t Transition[S, E]) error

// Action is an ActionFunc with a stable identifier used for validation,
// visualization, logs and metrics.
type Action[S, E comparable] struct {
	ID string
	Fn ActionFunc[S, E]
}

// ActionMiddleware wraps the function of every action dispatched by a registry.
type ActionMiddleware[S, E comparable] func(phase Phase, action Action[S, E], next ActionFunc[S, E]) ActionFunc[S, E]

// ActionRegistry dispatches ordered actions at three scopes: global,
// per-state and per-exact-transition. Unlike guards, any number of actions
// may be registered per scope and duplicates are kept.
type ActionRegistry[S, E comparable] struct {
	phase        Phase
	global       []Action[S, E]
	byState      map[S][]Action[S, E]
	byTransition map[Transition[S, E]][]Action[S, E]
	middleware   []ActionMiddleware[S, E]
}

// NewActionRegistry creates an empty registry for the given phase.
func NewActionRegistry[S, E comparable](phase Phase) *ActionRegistry[S, E] {
	return &ActionRegistry[S, E]{
		phase:        phase,
		byState:      make(map[S][]Action[S, E]),
		byTransition: make(map[Transition[S, E]][]Action[S, E]),
	}
}

// Phase returns the phase this registry dispatches for.
func (r *ActionRegistry[S, E]) Phase() Phase {
	return r.phase
}

// RegisterGlobal adds an action that fires for every state.
func (r *ActionRegistry[S, E]) RegisterGlobal(id string, fn ActionFunc[S, E]) bool {
	if !validAction(id, fn) {
		return false
	}

	r.global = append(r.global, Action[S, E]{ID: id, Fn: fn})

	return true
}

// RegisterForState adds an action that fires whenever state is entered or
// left, regardless of the counterpart state or stimulus.
func (r *ActionRegistry[S, E]) RegisterForState(state S, id string, fn ActionFunc[S, E]) bool {
	if !validAction(id, fn) {
		return false
	}

	r.byState[state] = append(r.byState[state], Action[S, E]{ID: id, Fn: fn})

	return true
}

// RegisterForTransition adds an action that fires only for the exact transition.
func (r *ActionRegistry[S, E]) RegisterForTransition(t Transition[S, E], id string, fn ActionFunc[S, E]) bool {
	if !validAction(id, fn) {
		return false
	}

	r.byTransition[t] = append(r.byTransition[t], Action[S, E]{ID: id, Fn: fn})

	return true
}

// Use installs a middleware around every subsequently dispatched action.
// Middleware added first is the outermost.
func (r *ActionRegistry[S, E]) Use(mw ActionMiddleware[S, E]) {
	if mw != nil {
		r.middleware = append(r.middleware, mw)
	}
}

// Resolve returns the actions Trigger would fire, in dispatch order.
func (r *ActionRegistry[S, E]) Resolve(state S, t Transition[S, E]) []Action[S, E] {
	return r.resolve(state, t, true)
}

func (r *ActionRegistry[S, E]) resolve(state S, t Transition[S, E], exact bool) []Action[S, E] {
	scoped := r.byState[state]

	var matched []Action[S, E]
	if exact {
		matched = r.byTransition[t]
	}

	out := make([]Action[S, E], 0, len(r.global)+len(scoped)+len(matched))
	out = append(out, r.global...)
	out = append(out, scoped...)
	out = append(out, matched...)

	return out
}

// Trigger fires global actions, then those registered for state, then
// those registered for the exact transition. Dispatch stops at the first
// failing action and its error is returned.
func (r *ActionRegistry[S, E]) Trigger(ctx context.Context, state S, t Transition[S, E]) error {
	return r.dispatch(ctx, state, t, true, nil)
}

// TriggerState fires global actions, then those registered for state.
// Transition-scoped actions never fire: t carries no stimulus that could
// have selected them.
func (r *ActionRegistry[S, E]) TriggerState(ctx context.Context, state S, t Transition[S, E]) error {
	return r.dispatch(ctx, state, t, false, nil)
}

// dispatch runs the resolved actions through the registry middleware. outer,
// when set, wraps outside all of it and is not stored on the registry.
func (r *ActionRegistry[S, E]) dispatch(
	ctx context.Context,
	state S,
	t Transition[S, E],
	exact bool,
	outer ActionMiddleware[S, E],
) error {
	for _, action := range r.resolve(state, t, exact) {
		fn := action.Fn
		for i := len(r.middleware) - 1; i >= 0; i-- {
			fn = r.middleware[i](r.phase, action, fn)
		}

		if outer != nil {
			fn = outer(r.phase, action, fn)
		}

		if err := fn(ctx, t); err != nil {
			return &ActionError{Phase: r.phase, Action: action.ID, Err: err}
		}
	}

	return nil
}

// GlobalActions returns the identifiers of global actions.
func (r *ActionRegistry[S, E]) GlobalActions() []string {
	return actionIDs(r.global)
}

// StateActions returns the identifiers of state-scoped actions, keyed by state.
func (r *ActionRegistry[S, E]) StateActions() map[S][]string {
	out := make(map[S][]string, len(r.byState))
	for state, actions := range r.byState {
		out[state] = actionIDs(actions)
	}

	return out
}

// TransitionActions returns the identifiers of transition-scoped actions, keyed by transition.
func (r *ActionRegistry[S, E]) TransitionActions() map[Transition[S, E]][]string {
	out := make(map[Transition[S, E]][]string, len(r.byTransition))
	for t, actions := range r.byTransition {
		out[t] = actionIDs(actions)
	}

	return out
}

func validAction[S, E comparable](id string, fn ActionFunc[S, E]) bool {
	return id != "" && fn != nil
}

func actionIDs[S, E comparable](actions []Action[S, E]) []string {
	ids := make([]string, len(actions))
	for i, action := range actions {
		ids[i] = action.ID
	}

	return ids
}

var _ ActionView[string, string] = (*ActionRegistry[string, string])(nil)
