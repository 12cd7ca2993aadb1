package statemachine

import (
	"errors"
	"fmt"
)

// Predefined error types.
var (
	// ErrNoTransition indicates that no transition is registered for the current state and stimulus.
	ErrNoTransition = errors.New("no transition registered")
	// ErrSameStateTransition indicates that a stimulus would move the machine into the state it is already in.
	ErrSameStateTransition = errors.New("same state transition")
	// ErrInvalidHistoryCapacity indicates that a bounded history was requested with a non-positive size.
	ErrInvalidHistoryCapacity = errors.New("history capacity must be greater than zero")
	// ErrDeferredClosed indicates that the deferred engine no longer accepts work.
	ErrDeferredClosed = errors.New("deferred engine is closed")
	// ErrCommandsDropped indicates that queued commands were discarded by a forceful close.
	ErrCommandsDropped = errors.New("queued commands were dropped")
	// ErrReentrantWait indicates a wait on the deferred engine from its own consumer goroutine.
	ErrReentrantWait = errors.New("cannot wait for the deferred engine from its own consumer")

	// ErrDuplicateTransition indicates that (state, stimulus) is already mapped.
	ErrDuplicateTransition = errors.New("duplicate transition")
	// ErrDuplicateGuard indicates that a guard is already registered for the transition.
	ErrDuplicateGuard = errors.New("guard already registered")
	// ErrInvalidGuard indicates that a nil guard was supplied.
	ErrInvalidGuard = errors.New("guard cannot be nil")
	// ErrInvalidAction indicates that an action had no id or no function.
	ErrInvalidAction = errors.New("action requires an id and a function")
	// ErrNilFactory indicates that BuildWith was called without a factory.
	ErrNilFactory = errors.New("factory cannot be nil")
	// ErrBuilderConsumed indicates that a builder's registries were already handed to an engine.
	ErrBuilderConsumed = errors.New("builder already built")
)

// TransitionError wraps an error with transition context.
type TransitionError struct {
	Machine string
	From    string
	Reason  string
	To      string
	Err     error
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("%s: transition from %s on %s: %v", e.Machine, e.From, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s: transition %s -> %s on %s: %v", e.Machine, e.From, e.To, e.Reason, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// StateError wraps an error raised while forcing the machine into a state.
type StateError struct {
	Machine string
	State   string
	Err     error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: state %s: %v", e.Machine, e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// ActionError wraps an error returned by an enter or leave action.
type ActionError struct {
	Phase  Phase
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s action %q: %v", e.Phase, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// GuardError wraps an error returned by a guard. A guard that merely
// returns false is not an error.
type GuardError struct {
	Transition string
	Err        error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard for %s: %v", e.Transition, e.Err)
}

func (e *GuardError) Unwrap() error {
	return e.Err
}

// wrapTransitionError wraps an error with transition context.
func wrapTransitionError(machine, from, reason, to string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		Machine: machine,
		From:    from,
		Reason:  reason,
		To:      to,
		Err:     err,
	}
}

// wrapStateError wraps an error with state context.
func wrapStateError(machine, state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		Machine: machine,
		State:   state,
		Err:     err,
	}
}
