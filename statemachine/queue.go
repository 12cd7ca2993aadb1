package statemachine

import "context"

// unboundedQueue is a FIFO channel pair with unlimited buffering. Sends on
// in never block for long: a pump goroutine moves values into an internal
// slice and feeds them to out in order. Closing in drains the remaining
// values and then closes out; cancelling ctx stops the pump immediately
// and closes out, dropping whatever was still buffered. The pump reports
// how many values it dropped on leftover exactly once, before out closes.
type unboundedQueue[T any] struct {
	in       chan<- T
	out      <-chan T
	leftover <-chan int
}

func newUnboundedQueue[T any](ctx context.Context) *unboundedQueue[T] {
	inputCh := make(chan T)
	outputCh := make(chan T)
	leftoverCh := make(chan int, 1)

	go func() {
		var (
			buffered []T
			input    = inputCh
		)

		// outCh is nil while the buffer is empty, which disables that select case.
		outCh := func() chan T {
			if len(buffered) == 0 {
				return nil
			}

			return outputCh
		}

		head := func() T {
			if len(buffered) == 0 {
				var zero T

				return zero
			}

			return buffered[0]
		}

		defer func() {
			leftoverCh <- len(buffered)
			close(outputCh)
		}()

		for len(buffered) > 0 || input != nil {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-input:
				if !ok {
					input = nil

					continue
				}

				buffered = append(buffered, v)
			case outCh() <- head():
				var zero T

				buffered[0] = zero
				buffered = buffered[1:]
			}
		}
	}()

	return &unboundedQueue[T]{
		in:       inputCh,
		out:      outputCh,
		leftover: leftoverCh,
	}
}
