package fsmtest

import (
	"context"
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario posts a sequence of stimuli and checks the outcome of each.
type Scenario[S, E comparable] struct {
	Name    string
	Stimuli []E
	// Want lists the expected Post result per stimulus. Leave nil to skip.
	Want      []bool
	WantState S
	Matchers  []Matcher[S, E]
}

// RunScenario runs scenario as a subtest against the engine built by newEngine.
func RunScenario[S, E comparable](
	t *testing.T, newEngine func(t *testing.T) *statemachine.Engine[S, E], scenario Scenario[S, E],
) {
	t.Helper()

	t.Run(scenario.Name, func(t *testing.T) {
		engine := newEngine(t)
		ctx := context.Background()

		if scenario.Want != nil {
			require.Len(t, scenario.Want, len(scenario.Stimuli), "one expectation per stimulus")
		}

		for i, stimulus := range scenario.Stimuli {
			ok, err := engine.Post(ctx, stimulus)
			require.NoError(t, err, "posting %v", stimulus)

			if scenario.Want != nil {
				assert.Equal(t, scenario.Want[i], ok, "post %d (%v)", i, stimulus)
			}
		}

		assert.Equal(t, scenario.WantState, engine.CurrentState())

		AssertHistory(t, engine.History(), scenario.Matchers...)
	})
}
