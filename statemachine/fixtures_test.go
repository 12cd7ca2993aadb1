package statemachine

import (
	"context"
	"sync"
)

type testState string

const (
	stateIdle    testState = "idle"
	stateWalking testState = "walking"
	stateStopped testState = "stopped"
)

type testEvent string

const (
	eventWalk testEvent = "walk"
	eventStop testEvent = "stop"
	eventRest testEvent = "rest"
)

type testTransition = Transition[testState, testEvent]

// walkerComponents wires idle -walk-> walking -stop-> stopped -rest-> idle.
func walkerComponents() Components[testState, testEvent] {
	table := NewTable[testState, testEvent]()
	table.Register(NewTransition(stateIdle, eventWalk, stateWalking))
	table.Register(NewTransition(stateWalking, eventStop, stateStopped))
	table.Register(NewTransition(stateStopped, eventRest, stateIdle))

	return Components[testState, testEvent]{Table: table}
}

// callLog records action invocations in order. It is safe for concurrent use.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) action(name string, err error) ActionFunc[testState, testEvent] {
	return func(_ context.Context, _ testTransition) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.calls = append(c.calls, name)

		return err
	}
}

func (c *callLog) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.calls))
	copy(out, c.calls)

	return out
}

func allow(allowed bool) Guard[testState, testEvent] {
	return func(context.Context, testTransition) (bool, error) {
		return allowed, nil
	}
}
