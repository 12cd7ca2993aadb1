// Package fsmtest provides testing utilities for state machines: an action
// recorder, history matchers, stimulus scenarios and per-test loggers.
package fsmtest

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/neilotoole/slogt"
)

// Call is one recorded action invocation.
type Call[S, E comparable] struct {
	Phase      statemachine.Phase
	ID         string
	Transition statemachine.Transition[S, E]
}

// Recorder produces actions that record their invocations. It is safe for
// concurrent use, so it works with deferred engines too.
type Recorder[S, E comparable] struct {
	mu    sync.Mutex
	calls []Call[S, E]
}

// NewRecorder creates an empty recorder.
func NewRecorder[S, E comparable]() *Recorder[S, E] {
	return &Recorder[S, E]{}
}

// Action returns an action that records phase and id, then returns err.
func (r *Recorder[S, E]) Action(phase statemachine.Phase, id string, err error) statemachine.ActionFunc[S, E] {
	return func(_ context.Context, t statemachine.Transition[S, E]) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.calls = append(r.calls, Call[S, E]{Phase: phase, ID: id, Transition: t})

		return err
	}
}

// Enter is shorthand for a successful enter action.
func (r *Recorder[S, E]) Enter(id string) statemachine.ActionFunc[S, E] {
	return r.Action(statemachine.PhaseEnter, id, nil)
}

// Leave is shorthand for a successful leave action.
func (r *Recorder[S, E]) Leave(id string) statemachine.ActionFunc[S, E] {
	return r.Action(statemachine.PhaseLeave, id, nil)
}

// Calls returns a copy of the recorded calls, oldest first.
func (r *Recorder[S, E]) Calls() []Call[S, E] {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Call[S, E], len(r.calls))
	copy(out, r.calls)

	return out
}

// IDs returns the ids of the recorded calls in order.
func (r *Recorder[S, E]) IDs() []string {
	calls := r.Calls()

	ids := make([]string, len(calls))
	for i, call := range calls {
		ids[i] = call.ID
	}

	return ids
}

// Reset forgets every recorded call.
func (r *Recorder[S, E]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = nil
}

// Logger returns a slog logger that writes through t.Log, so output is
// attributed to the test that produced it.
func Logger(t testing.TB) *slog.Logger {
	t.Helper()

	return slogt.New(t)
}

// MachineLogger returns a statemachine.Logger writing through t.Log.
func MachineLogger(t testing.TB) *statemachine.DefaultLogger {
	t.Helper()

	return statemachine.NewSlogLogger(Logger(t))
}
