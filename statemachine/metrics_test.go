package statemachine

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMachine(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("checkout-", 10)
	longer := long + "x"

	assert.Equal(t, "unnamed", sanitizeMachine(""))
	assert.Equal(t, "checkout", sanitizeMachine("checkout"))
	assert.Len(t, sanitizeMachine(long), maxMachineLabelLength)
	assert.NotEqual(t, sanitizeMachine(long), sanitizeMachine(longer))
	assert.Equal(t, sanitizeMachine(long), sanitizeMachine(long))
}

func TestEngineMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	name := "metrics-" + t.Name()

	components := walkerComponents()
	components.EnterActions = NewActionRegistry[testState, testEvent](PhaseEnter)
	components.EnterActions.RegisterGlobal("noop", func(context.Context, testTransition) error { return nil })

	engine := NewEngine(name, stateIdle, components, WithTracing(false))

	_, err := engine.Post(ctx, eventWalk)
	require.NoError(t, err)
	_, err = engine.Post(ctx, eventWalk)
	require.NoError(t, err)
	require.NoError(t, engine.OverrideState(ctx, stateIdle))

	assert.InDelta(t, 1, testutil.ToFloat64(transitionsTotal.WithLabelValues(name, "idle", "walking", "walk")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rejectionsTotal.WithLabelValues(name, causeNoTransition)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(overridesTotal.WithLabelValues(name)), 0)
}

func TestDeferredMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	name := "metrics-" + t.Name()

	deferred := NewDeferred(ctx, NewEngine(name, stateIdle, walkerComponents(),
		WithTracing(false), WithErrorOnFailedTransition(true)))

	require.NoError(t, deferred.PostAsync(ctx, eventWalk))
	require.NoError(t, deferred.PostAsync(ctx, eventWalk))
	require.NoError(t, deferred.Close())

	assert.InDelta(t, 1, testutil.ToFloat64(deferredProcessed.WithLabelValues(name, outcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(deferredProcessed.WithLabelValues(name, outcomeError)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(deferredPending.WithLabelValues(name)), 0)
}
