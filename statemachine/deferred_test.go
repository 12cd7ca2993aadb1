package statemachine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stateOn   testState = "on"
	stateOff  testState = "off"
	eventFlip testEvent = "flip"
)

func newToggle(t *testing.T, opts ...Option) *Engine[testState, testEvent] {
	t.Helper()

	table := NewTable[testState, testEvent]()
	table.Register(NewTransition(stateOff, eventFlip, stateOn))
	table.Register(NewTransition(stateOn, eventFlip, stateOff))

	opts = append([]Option{WithHistory(0), WithMetrics(false), WithTracing(false)}, opts...)

	return NewEngine(t.Name(), stateOff, Components[testState, testEvent]{Table: table}, opts...)
}

func TestDeferredAppliesInOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	deferred := NewDeferred(ctx, newWalker(t, walkerComponents()))

	t.Cleanup(func() { _ = deferred.Close() })

	for _, stimulus := range []testEvent{eventWalk, eventStop, eventRest, eventWalk} {
		require.NoError(t, deferred.PostAsync(ctx, stimulus))
	}

	require.NoError(t, deferred.AwaitIdle(ctx))

	assert.Equal(t, stateWalking, deferred.CurrentState())
	assert.Equal(t, uint64(4), deferred.Processed())
	assert.Zero(t, deferred.Pending())

	var froms []testState
	for item := range deferred.History().All() {
		froms = append(froms, item.From)
	}

	assert.Equal(t, []testState{stateIdle, stateWalking, stateStopped, stateIdle}, froms)
}

func TestDeferredConcurrentProducers(t *testing.T) {
	t.Parallel()

	const (
		producers = 8
		posts     = 250
	)

	ctx := context.Background()
	deferred := NewDeferred(ctx, newToggle(t))

	var wg sync.WaitGroup

	for range producers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range posts {
				assert.NoError(t, deferred.PostAsync(ctx, eventFlip))
			}
		}()
	}

	wg.Wait()
	require.NoError(t, deferred.Close())

	assert.Equal(t, uint64(producers*posts), deferred.Processed())

	items := deferred.History().Items()
	require.Len(t, items, producers*posts)

	previous := stateOff
	for _, item := range items {
		assert.Equal(t, previous, item.From)
		previous = item.To
	}

	// an even number of flips lands back where it started
	assert.Equal(t, stateOff, deferred.CurrentState())
}

func TestDeferredPostAndWait(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	deferred := NewDeferred(ctx, newWalker(t, walkerComponents()))

	t.Cleanup(func() { _ = deferred.Close() })

	require.NoError(t, deferred.PostAndWait(ctx, eventWalk))
	assert.Equal(t, stateWalking, deferred.CurrentState())

	require.NoError(t, deferred.OverrideState(ctx, stateIdle))
	assert.Equal(t, stateIdle, deferred.CurrentState())

	require.NoError(t, deferred.OverrideStateAsync(ctx, stateStopped))
	require.NoError(t, deferred.PostAndWait(ctx, eventRest))
	assert.Equal(t, stateIdle, deferred.CurrentState())

	items := deferred.History().Items()
	require.Len(t, items, 4)
	assert.True(t, items[1].Forced())
	assert.True(t, items[2].Forced())
	assert.Equal(t, eventRest, *items[3].Reason)
}

func TestDeferredErrorHandler(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := &recordingLogger{}

	var (
		mu       sync.Mutex
		reported []error
	)

	deferred := NewDeferred(ctx,
		newWalker(t, walkerComponents(), WithErrorOnFailedTransition(true), WithLogger(log)),
		WithErrorHandler(func(_ context.Context, err error) {
			mu.Lock()
			defer mu.Unlock()

			reported = append(reported, err)
		}),
	)

	t.Cleanup(func() { _ = deferred.Close() })

	require.NoError(t, deferred.PostAndWait(ctx, eventStop), "producers never see consumer errors")
	require.NoError(t, deferred.PostAndWait(ctx, eventWalk))

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, reported, 1)
	require.ErrorIs(t, reported[0], ErrNoTransition)
	require.Len(t, log.failed, 1)
	assert.Equal(t, stateWalking, deferred.CurrentState())
	assert.Equal(t, uint64(2), deferred.Processed())
}

func TestDeferredGracefulClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	deferred := NewDeferred(ctx, newToggle(t))

	for range 100 {
		require.NoError(t, deferred.PostAsync(ctx, eventFlip))
	}

	require.NoError(t, deferred.Close())
	require.NoError(t, deferred.Close())

	assert.Equal(t, uint64(100), deferred.Processed())
	require.ErrorIs(t, deferred.PostAsync(ctx, eventFlip), ErrDeferredClosed)
	require.ErrorIs(t, deferred.OverrideStateAsync(ctx, stateOn), ErrDeferredClosed)
	require.NoError(t, deferred.AwaitIdle(ctx))

	select {
	case <-deferred.Done():
	default:
		t.Fatal("consumer still running after Close")
	}
}

// blockingWalker returns an engine whose enter action for walking blocks
// until the context it receives is cancelled.
func blockingWalker(t *testing.T, started chan<- struct{}) *Engine[testState, testEvent] {
	t.Helper()

	components := walkerComponents()
	components.EnterActions = NewActionRegistry[testState, testEvent](PhaseEnter)
	components.EnterActions.RegisterForState(stateWalking, "block", func(ctx context.Context, _ testTransition) error {
		started <- struct{}{}
		<-ctx.Done()

		return nil
	})

	return newWalker(t, components)
}

func TestDeferredForcefulCloseDropsQueued(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	started := make(chan struct{}, 1)
	deferred := NewDeferred(ctx, blockingWalker(t, started), WithDrainOnClose(false))

	require.NoError(t, deferred.PostAsync(ctx, eventWalk))
	<-started

	require.NoError(t, deferred.PostAsync(ctx, eventStop))
	require.NoError(t, deferred.PostAsync(ctx, eventRest))
	require.NoError(t, deferred.PostAsync(ctx, eventWalk))
	assert.Equal(t, 4, deferred.Pending())

	err := deferred.Close()
	require.ErrorIs(t, err, ErrCommandsDropped)
	assert.Contains(t, err.Error(), ": 3")
	assert.Equal(t, err, deferred.Close())

	// the in-flight command completed, nothing after it ran
	assert.Equal(t, stateWalking, deferred.CurrentState())
	assert.Equal(t, uint64(1), deferred.Processed())
	assert.Zero(t, deferred.Pending())
	require.ErrorIs(t, deferred.AwaitIdle(ctx), ErrCommandsDropped)
}

func TestDeferredAwaitIdleCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 1)
	deferred := NewDeferred(ctx, blockingWalker(t, started))

	require.NoError(t, deferred.PostAsync(ctx, eventWalk))
	<-started

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()

	require.ErrorIs(t, deferred.AwaitIdle(waitCtx), context.DeadlineExceeded)
	assert.Equal(t, 1, deferred.Pending(), "abandoning the wait leaves the command queued")

	// cancelling the construction context stops the consumer
	cancel()
	<-deferred.Done()

	require.ErrorIs(t, deferred.PostAsync(context.Background(), eventStop), ErrDeferredClosed)
}

func TestDeferredPostAsyncCancelledContext(t *testing.T) {
	t.Parallel()

	deferred := NewDeferred(context.Background(), newWalker(t, walkerComponents()))

	t.Cleanup(func() { _ = deferred.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, deferred.PostAsync(ctx, eventWalk), context.Canceled)
	assert.Zero(t, deferred.Pending())
	assert.Zero(t, deferred.Processed())
}

func TestDeferredViews(t *testing.T) {
	t.Parallel()

	inner := newWalker(t, walkerComponents())
	deferred := NewDeferred(context.Background(), inner)

	t.Cleanup(func() { _ = deferred.Close() })

	assert.Same(t, inner, deferred.Inner())
	assert.Equal(t, inner.Name(), deferred.Name())
	assert.Equal(t, stateIdle, deferred.InitialState())
	assert.Len(t, deferred.Table().Transitions(), 3)
	assert.Empty(t, deferred.Guards().RegisteredTransitions())
	assert.Equal(t, PhaseEnter, deferred.EnterActions().Phase())
	assert.Equal(t, PhaseLeave, deferred.LeaveActions().Phase())
}

func TestDeferredCloseFromConsumer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		drain bool
	}{
		{name: "drain", drain: true},
		{name: "forceful", drain: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			closed := make(chan error, 1)

			var deferred *Deferred[testState, testEvent]

			deferred = NewDeferred(ctx,
				newWalker(t, walkerComponents(), WithErrorOnFailedTransition(true)),
				WithDrainOnClose(tt.drain),
				WithErrorHandler(func(context.Context, error) {
					closed <- deferred.Close()
				}),
			)

			require.NoError(t, deferred.PostAsync(ctx, eventStop))

			select {
			case <-deferred.Done():
			case <-time.After(5 * time.Second):
				t.Fatal("consumer did not exit after closing itself")
			}

			require.NoError(t, <-closed)
			require.NoError(t, deferred.Close())
			require.ErrorIs(t, deferred.PostAsync(ctx, eventWalk), ErrDeferredClosed)
			assert.Equal(t, uint64(1), deferred.Processed())
		})
	}
}

func TestDeferredCloseFromAction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var deferred *Deferred[testState, testEvent]

	components := walkerComponents()
	components.EnterActions = NewActionRegistry[testState, testEvent](PhaseEnter)
	components.EnterActions.RegisterForState(stateWalking, "close", func(context.Context, testTransition) error {
		return deferred.Close()
	})

	deferred = NewDeferred(ctx, newWalker(t, components))

	require.NoError(t, deferred.PostAsync(ctx, eventWalk))

	select {
	case <-deferred.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not exit after an action closed it")
	}

	require.NoError(t, deferred.Close())
	assert.Equal(t, stateWalking, deferred.CurrentState())
}

func TestDeferredWaitFromConsumer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var (
		deferred *Deferred[testState, testEvent]
		waits    []error
	)

	components := walkerComponents()
	components.EnterActions = NewActionRegistry[testState, testEvent](PhaseEnter)
	components.EnterActions.RegisterForState(stateWalking, "wait", func(ctx context.Context, _ testTransition) error {
		waits = append(waits,
			deferred.AwaitIdle(ctx),
			deferred.PostAndWait(ctx, eventStop),
			deferred.OverrideState(ctx, stateIdle),
		)

		return nil
	})

	deferred = NewDeferred(ctx, newWalker(t, components))

	t.Cleanup(func() { _ = deferred.Close() })

	require.NoError(t, deferred.PostAndWait(ctx, eventWalk))

	require.Len(t, waits, 3)

	for _, err := range waits {
		require.ErrorIs(t, err, ErrReentrantWait)
	}

	// the commands enqueued from the action still ran, in order
	assert.Equal(t, stateIdle, deferred.CurrentState())
	assert.Equal(t, uint64(3), deferred.Processed())
}

func TestDeferredDroppedCountsOnlyAcceptedCommands(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})

	components := walkerComponents()
	components.EnterActions = NewActionRegistry[testState, testEvent](PhaseEnter)
	components.EnterActions.RegisterForState(stateWalking, "hold", func(context.Context, testTransition) error {
		close(started)
		<-release

		return nil
	})

	deferred := NewDeferred(ctx, newWalker(t, components))

	require.NoError(t, deferred.PostAsync(context.Background(), eventWalk))
	<-started

	cancel()

	// this producer races the shutdown: it is either accepted and then
	// dropped, or refused with ErrDeferredClosed, never both
	accepted := make(chan error, 1)

	go func() {
		accepted <- deferred.PostAsync(context.Background(), eventStop)
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)
	<-deferred.Done()

	err := <-accepted
	closeErr := deferred.Close()

	if err == nil {
		require.ErrorIs(t, closeErr, ErrCommandsDropped)
		assert.Contains(t, closeErr.Error(), ": 1")
		require.ErrorIs(t, deferred.AwaitIdle(context.Background()), ErrCommandsDropped)
	} else {
		require.ErrorIs(t, err, ErrDeferredClosed)
		require.NoError(t, closeErr)
		require.NoError(t, deferred.AwaitIdle(context.Background()))
	}

	assert.Equal(t, uint64(1), deferred.Processed())
	assert.Zero(t, deferred.Pending())
}
