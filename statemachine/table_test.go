package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRegister(t *testing.T) {
	t.Parallel()

	table := NewTable[testState, testEvent]()

	require.True(t, table.Register(NewTransition(stateIdle, eventWalk, stateWalking)))
	assert.False(t, table.Register(NewTransition(stateIdle, eventWalk, stateStopped)), "first registration wins")

	dest, ok := table.Lookup(stateIdle, eventWalk)
	require.True(t, ok)
	assert.Equal(t, stateWalking, dest)

	_, ok = table.Lookup(stateIdle, eventStop)
	assert.False(t, ok)

	_, ok = table.Lookup(stateStopped, eventWalk)
	assert.False(t, ok)

	assert.Equal(t, 1, table.Len())
}

func TestTableIsRegistered(t *testing.T) {
	t.Parallel()

	table := walkerComponents().Table

	tests := []struct {
		name       string
		transition testTransition
		want       bool
	}{
		{"exact match", NewTransition(stateIdle, eventWalk, stateWalking), true},
		{"wrong destination", NewTransition(stateIdle, eventWalk, stateStopped), false},
		{"wrong stimulus", NewTransition(stateIdle, eventStop, stateWalking), false},
		{"unknown source", NewTransition(testState("nowhere"), eventWalk, stateWalking), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, table.IsRegistered(tt.transition))
		})
	}
}

func TestTableTopLevelStates(t *testing.T) {
	t.Parallel()

	table := NewTable[testState, testEvent]()
	table.Register(NewTransition(stateWalking, eventStop, stateStopped))
	assert.True(t, table.AddState(stateIdle))
	assert.False(t, table.AddState(stateWalking), "already a source state")
	table.Register(NewTransition(stateIdle, eventWalk, stateWalking))

	// stopped only appears as a destination
	assert.Equal(t, []testState{stateWalking, stateIdle}, table.TopLevelStates())
	assert.True(t, table.HasState(stateIdle))
	assert.False(t, table.HasState(stateStopped))
}

func TestTableOutgoingIsACopy(t *testing.T) {
	t.Parallel()

	table := walkerComponents().Table

	outgoing := table.Outgoing(stateIdle)
	require.Equal(t, map[testEvent]testState{eventWalk: stateWalking}, outgoing)

	outgoing[eventStop] = stateStopped
	delete(outgoing, eventWalk)

	assert.Equal(t, map[testEvent]testState{eventWalk: stateWalking}, table.Outgoing(stateIdle))
	assert.Empty(t, table.Outgoing(testState("nowhere")))
}

func TestTableTransitionsOrder(t *testing.T) {
	t.Parallel()

	table := NewTable[testState, testEvent]()
	table.Register(NewTransition(stateWalking, eventStop, stateStopped))
	table.Register(NewTransition(stateIdle, eventWalk, stateWalking))
	table.Register(NewTransition(stateWalking, eventRest, stateIdle))

	assert.Equal(t, []testTransition{
		NewTransition(stateWalking, eventStop, stateStopped),
		NewTransition(stateWalking, eventRest, stateIdle),
		NewTransition(stateIdle, eventWalk, stateWalking),
	}, table.Transitions())
}

func TestTransitionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle --walk--> walking", NewTransition(stateIdle, eventWalk, stateWalking).String())
}
