package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnboundedQueueFIFO(t *testing.T) {
	t.Parallel()

	queue := newUnboundedQueue[int](context.Background())

	// nothing reads until every value is in, so sends must not block
	for i := range 1000 {
		queue.in <- i
	}

	close(queue.in)

	var got []int
	for v := range queue.out {
		got = append(got, v)
	}

	assert.Len(t, got, 1000)
	assert.Zero(t, <-queue.leftover)

	for i, v := range got {
		if v != i {
			t.Fatalf("value %d out of order: got %d", i, v)
		}
	}
}

func TestUnboundedQueueCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	queue := newUnboundedQueue[string](ctx)

	queue.in <- "a"
	queue.in <- "b"

	cancel()

	// out closes once the pump notices cancellation; buffered values may be lost
	received := 0
	for range queue.out {
		received++
	}

	assert.LessOrEqual(t, received, 2)
	assert.Equal(t, 2, received+<-queue.leftover, "every value is either delivered or reported")
}
