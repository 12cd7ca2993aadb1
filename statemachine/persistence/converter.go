package persistence

import (
	"fmt"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// Converter maps states and stimuli to and from their stable string form.
type Converter[S, E comparable] struct {
	FormatState    func(S) string
	ParseState     func(string) (S, error)
	FormatStimulus func(E) string
	ParseStimulus  func(string) (E, error)
}

// StringConverter converts string-backed states and stimuli as-is.
func StringConverter[S ~string, E ~string]() Converter[S, E] {
	return Converter[S, E]{
		FormatState:    func(s S) string { return string(s) },
		ParseState:     func(s string) (S, error) { return S(s), nil },
		FormatStimulus: func(e E) string { return string(e) },
		ParseStimulus:  func(s string) (E, error) { return E(s), nil },
	}
}

// LookupConverter converts enumerated values through their labels. Every
// value that may be persisted must be listed; parsing an unknown label
// fails with ErrUnknownValue.
func LookupConverter[S, E comparable](states []S, stimuli []E) Converter[S, E] {
	stateByLabel := make(map[string]S, len(states))
	for _, state := range states {
		stateByLabel[statemachine.Label(state)] = state
	}

	stimulusByLabel := make(map[string]E, len(stimuli))
	for _, stimulus := range stimuli {
		stimulusByLabel[statemachine.Label(stimulus)] = stimulus
	}

	return Converter[S, E]{
		FormatState: func(s S) string { return statemachine.Label(s) },
		ParseState: func(label string) (S, error) {
			state, ok := stateByLabel[label]
			if !ok {
				return state, fmt.Errorf("%w: state %q", ErrUnknownValue, label)
			}

			return state, nil
		},
		FormatStimulus: func(e E) string { return statemachine.Label(e) },
		ParseStimulus: func(label string) (E, error) {
			stimulus, ok := stimulusByLabel[label]
			if !ok {
				return stimulus, fmt.Errorf("%w: stimulus %q", ErrUnknownValue, label)
			}

			return stimulus, nil
		},
	}
}
