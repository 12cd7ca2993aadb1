package fsmtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// Matcher checks a recorded history.
type Matcher[S, E comparable] interface {
	Match(items []statemachine.HistoryItem[S, E]) bool
	Description() string
}

type matcherFunc[S, E comparable] struct {
	match       func(items []statemachine.HistoryItem[S, E]) bool
	description string
}

func (m matcherFunc[S, E]) Match(items []statemachine.HistoryItem[S, E]) bool {
	return m.match(items)
}

func (m matcherFunc[S, E]) Description() string {
	return m.description
}

// StateWasVisited matches when some history item entered state.
func StateWasVisited[S, E comparable](state S) Matcher[S, E] {
	return matcherFunc[S, E]{
		description: fmt.Sprintf("state '%v' should be visited", state),
		match: func(items []statemachine.HistoryItem[S, E]) bool {
			for _, item := range items {
				if item.To == state {
					return true
				}
			}

			return false
		},
	}
}

// TransitionWasTaken matches when the exact stimulus-driven transition was recorded.
func TransitionWasTaken[S, E comparable](t statemachine.Transition[S, E]) Matcher[S, E] {
	return matcherFunc[S, E]{
		description: fmt.Sprintf("transition %s should be taken", t),
		match: func(items []statemachine.HistoryItem[S, E]) bool {
			for _, item := range items {
				if item.Reason != nil && item.From == t.From && item.To == t.To && *item.Reason == t.Reason {
					return true
				}
			}

			return false
		},
	}
}

// WasForcedInto matches when an override moved the machine into state.
func WasForcedInto[S, E comparable](state S) Matcher[S, E] {
	return matcherFunc[S, E]{
		description: fmt.Sprintf("state '%v' should be forced", state),
		match: func(items []statemachine.HistoryItem[S, E]) bool {
			for _, item := range items {
				if item.Forced() && item.To == state {
					return true
				}
			}

			return false
		},
	}
}

// Not inverts a matcher.
func Not[S, E comparable](m Matcher[S, E]) Matcher[S, E] {
	return matcherFunc[S, E]{
		description: "not: " + m.Description(),
		match: func(items []statemachine.HistoryItem[S, E]) bool {
			return !m.Match(items)
		},
	}
}

// All matches when every matcher matches.
func All[S, E comparable](matchers ...Matcher[S, E]) Matcher[S, E] {
	return matcherFunc[S, E]{
		description: "all of: " + describe(matchers),
		match: func(items []statemachine.HistoryItem[S, E]) bool {
			for _, m := range matchers {
				if !m.Match(items) {
					return false
				}
			}

			return true
		},
	}
}

// Any matches when at least one matcher matches.
func Any[S, E comparable](matchers ...Matcher[S, E]) Matcher[S, E] {
	return matcherFunc[S, E]{
		description: "any of: " + describe(matchers),
		match: func(items []statemachine.HistoryItem[S, E]) bool {
			for _, m := range matchers {
				if m.Match(items) {
					return true
				}
			}

			return false
		},
	}
}

func describe[S, E comparable](matchers []Matcher[S, E]) string {
	descriptions := make([]string, len(matchers))
	for i, m := range matchers {
		descriptions[i] = m.Description()
	}

	return strings.Join(descriptions, ", ")
}

// AssertHistory reports every matcher that does not match history.
func AssertHistory[S, E comparable](t testing.TB, history *statemachine.History[S, E], matchers ...Matcher[S, E]) bool {
	t.Helper()

	items := history.Items()
	ok := true

	for _, m := range matchers {
		if !m.Match(items) {
			t.Errorf("history assertion failed: %s\nhistory:\n%s", m.Description(), Format(items))

			ok = false
		}
	}

	return ok
}

// Step is a timestamp-free history item used for exact comparisons.
// A nil Reason expects a forced override.
type Step[S, E comparable] struct {
	From   S
	To     S
	Reason *E
}

// Stepped builds a stimulus-driven Step.
func Stepped[S, E comparable](from S, reason E, to S) Step[S, E] {
	return Step[S, E]{From: from, To: to, Reason: &reason}
}

// Forced builds an override Step.
func Forced[S, E comparable](from, to S) Step[S, E] {
	return Step[S, E]{From: from, To: to}
}

// RequireSteps fails the test unless history holds exactly want, in order.
func RequireSteps[S, E comparable](t testing.TB, history *statemachine.History[S, E], want ...Step[S, E]) {
	t.Helper()

	items := history.Items()

	if len(items) != len(want) {
		t.Fatalf("history has %d items, want %d\nhistory:\n%s", len(items), len(want), Format(items))
	}

	for i, item := range items {
		step := want[i]

		sameReason := (item.Reason == nil) == (step.Reason == nil) &&
			(item.Reason == nil || *item.Reason == *step.Reason)

		if item.From != step.From || item.To != step.To || !sameReason {
			t.Fatalf("history item %d differs\nhistory:\n%s", i, Format(items))
		}
	}
}

// Format renders history items one per line, for failure messages.
func Format[S, E comparable](items []statemachine.HistoryItem[S, E]) string {
	var sb strings.Builder

	for i, item := range items {
		reason := "<forced>"
		if item.Reason != nil {
			reason = statemachine.Label(*item.Reason)
		}

		fmt.Fprintf(&sb, "  %d: %s --%s--> %s\n", i, statemachine.Label(item.From), reason, statemachine.Label(item.To))
	}

	return sb.String()
}
