package statemachine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	current := start

	return func() time.Time {
		current = current.Add(time.Second)

		return current
	}
}

func reasonOf(e testEvent) *testEvent {
	return &e
}

func TestHistoryDisabledByDefault(t *testing.T) {
	t.Parallel()

	history := NewHistory[testState, testEvent]()
	history.Add(stateIdle, stateWalking, reasonOf(eventWalk))

	assert.False(t, history.Enabled())
	assert.Zero(t, history.Len())

	history.Enable()
	history.Add(stateIdle, stateWalking, reasonOf(eventWalk))
	assert.Equal(t, 1, history.Len())

	history.Disable()
	history.Add(stateWalking, stateStopped, reasonOf(eventStop))
	assert.Equal(t, 1, history.Len(), "disabling keeps existing items")
}

func TestHistoryBoundedEvictsOldest(t *testing.T) {
	t.Parallel()

	history := NewHistory[testState, testEvent]()
	history.Enable()
	require.NoError(t, history.MakeBounded(2))

	history.Add(stateIdle, stateWalking, reasonOf(eventWalk))
	history.Add(stateWalking, stateStopped, reasonOf(eventStop))
	history.Add(stateStopped, stateIdle, reasonOf(eventRest))

	items := history.Items()
	require.Len(t, items, 2)
	assert.Equal(t, stateWalking, items[0].From)
	assert.Equal(t, stateStopped, items[1].From)

	capacity, bounded := history.Capacity()
	assert.True(t, bounded)
	assert.Equal(t, 2, capacity)
}

func TestHistoryMakeBounded(t *testing.T) {
	t.Parallel()

	history := NewHistory[testState, testEvent]()
	history.Enable()

	for range 5 {
		history.Add(stateIdle, stateWalking, reasonOf(eventWalk))
	}

	history.Add(stateWalking, stateStopped, nil)

	require.ErrorIs(t, history.MakeBounded(0), ErrInvalidHistoryCapacity)
	require.ErrorIs(t, history.MakeBounded(-3), ErrInvalidHistoryCapacity)
	assert.Equal(t, 6, history.Len())

	require.NoError(t, history.MakeBounded(3))
	items := history.Items()
	require.Len(t, items, 3)
	assert.True(t, items[2].Forced(), "newest items are kept")

	history.MakeUnbounded()
	history.Add(stateStopped, stateIdle, reasonOf(eventRest))
	assert.Equal(t, 4, history.Len())

	_, bounded := history.Capacity()
	assert.False(t, bounded)
}

func TestHistoryTimestampsAndReplay(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	history := NewHistory[testState, testEvent]()
	history.now = fixedClock(start)
	history.Enable()

	history.Add(stateIdle, stateWalking, reasonOf(eventWalk))

	saved := start.Add(-time.Hour)
	history.AddItem(HistoryItem[testState, testEvent]{From: stateWalking, To: stateStopped, When: saved})
	history.AddItem(HistoryItem[testState, testEvent]{From: stateStopped, To: stateIdle, Reason: reasonOf(eventRest)})

	items := history.Items()
	require.Len(t, items, 3)
	assert.Equal(t, start.Add(time.Second), items[0].When)
	assert.Equal(t, saved, items[1].When)
	assert.True(t, items[1].Forced())
	assert.Equal(t, start.Add(2*time.Second), items[2].When)
	assert.Equal(t, eventRest, *items[2].Reason)
}

func TestHistoryItemsAndClear(t *testing.T) {
	t.Parallel()

	history := NewHistory[testState, testEvent]()
	history.Enable()
	history.Add(stateIdle, stateWalking, reasonOf(eventWalk))
	history.Add(stateWalking, stateStopped, reasonOf(eventStop))

	items := history.Items()
	items[0].From = stateStopped

	var froms []testState
	for item := range history.All() {
		froms = append(froms, item.From)
	}

	assert.Equal(t, []testState{stateIdle, stateWalking}, froms)

	history.Clear()
	assert.Zero(t, history.Len())
	assert.True(t, history.Enabled())
}
