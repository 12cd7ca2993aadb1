package statemachine

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"go.uber.org/atomic"
)

// DeferredOption configures a Deferred engine.
type DeferredOption func(*deferredOptions)

type deferredOptions struct {
	drainOnClose bool
	onError      func(ctx context.Context, err error)
}

// WithDrainOnClose selects the Close policy. When true (the default) Close
// waits for every queued command to be applied; when false Close cancels
// the consumer and drops queued commands.
func WithDrainOnClose(drain bool) DeferredOption {
	return func(o *deferredOptions) {
		o.drainOnClose = drain
	}
}

// WithErrorHandler receives errors returned by the inner engine while it
// applies queued commands (strict-mode errors, guard and action failures).
// Producers never see these errors.
func WithErrorHandler(handler func(ctx context.Context, err error)) DeferredOption {
	return func(o *deferredOptions) {
		o.onError = handler
	}
}

type commandKind int

const (
	commandPost commandKind = iota
	commandOverride
)

type command[S, E comparable] struct {
	kind     commandKind
	stimulus E
	state    S
}

// Deferred serializes stimuli from any number of goroutines onto a single
// Engine. Commands are applied strictly in enqueue order, one at a time, by
// a single consumer goroutine, so the inner engine is never used concurrently.
// Delivery is at-most-once: commands dropped by a forceful Close or by
// cancellation of the construction context are never applied.
type Deferred[S, E comparable] struct {
	inner   *Engine[S, E]
	queue   *unboundedQueue[command[S, E]]
	cancel  context.CancelFunc
	stop    <-chan struct{}
	done    chan struct{}
	options deferredOptions

	sendMu    sync.RWMutex
	closed    *atomic.Bool
	closeOnce sync.Once
	closeErr  error

	idle      *idleTracker
	state     *atomic.Pointer[S]
	processed *atomic.Uint64
	dropped   *atomic.Int64
	consumer  *atomic.Uint64
}

// NewDeferred wraps inner and starts the consumer goroutine. ctx bounds the
// consumer's lifetime: cancelling it stops processing like a forceful Close.
// The caller must not use inner directly afterwards.
func NewDeferred[S, E comparable](ctx context.Context, inner *Engine[S, E], opts ...DeferredOption) *Deferred[S, E] {
	options := deferredOptions{drainOnClose: true}
	for _, opt := range opts {
		opt(&options)
	}

	consumerCtx, cancel := context.WithCancel(ctx)
	current := inner.CurrentState()

	deferred := &Deferred[S, E]{
		inner:     inner,
		queue:     newUnboundedQueue[command[S, E]](consumerCtx),
		cancel:    cancel,
		stop:      consumerCtx.Done(),
		done:      make(chan struct{}),
		options:   options,
		closed:    atomic.NewBool(false),
		idle:      newIdleTracker(),
		state:     atomic.NewPointer(&current),
		processed: atomic.NewUint64(0),
		dropped:   atomic.NewInt64(0),
		consumer:  atomic.NewUint64(0),
	}

	go deferred.run(consumerCtx)

	return deferred
}

// PostAsync enqueues a stimulus and returns once it is queued, not once it
// is applied. Cancelling ctx only aborts the enqueue itself; a queued
// stimulus is applied regardless.
func (d *Deferred[S, E]) PostAsync(ctx context.Context, stimulus E) error {
	return d.enqueue(ctx, command[S, E]{kind: commandPost, stimulus: stimulus})
}

// PostAndWait enqueues a stimulus and waits until the queue has drained,
// i.e. until this and every previously queued command has been applied.
// Called from an action or the error handler, it still enqueues but returns
// ErrReentrantWait instead of waiting.
func (d *Deferred[S, E]) PostAndWait(ctx context.Context, stimulus E) error {
	if err := d.PostAsync(ctx, stimulus); err != nil {
		return err
	}

	return d.AwaitIdle(ctx)
}

// OverrideStateAsync enqueues a forced state change behind any queued stimuli.
func (d *Deferred[S, E]) OverrideStateAsync(ctx context.Context, state S) error {
	return d.enqueue(ctx, command[S, E]{kind: commandOverride, state: state})
}

// OverrideState enqueues a forced state change and waits for the queue to drain.
func (d *Deferred[S, E]) OverrideState(ctx context.Context, state S) error {
	if err := d.OverrideStateAsync(ctx, state); err != nil {
		return err
	}

	return d.AwaitIdle(ctx)
}

// AwaitIdle blocks until no commands are pending. This is an observation,
// not a barrier: another producer may enqueue right after it returns.
// Cancelling ctx aborts only the wait. Once commands have been dropped by a
// forceful close it returns ErrCommandsDropped. The consumer goroutine
// cannot wait for itself, so a call from an action or the error handler
// returns ErrReentrantWait.
func (d *Deferred[S, E]) AwaitIdle(ctx context.Context) error {
	if d.onConsumer() {
		return ErrReentrantWait
	}

	select {
	case <-d.idle.wait():
		if d.dropped.Load() > 0 {
			return ErrCommandsDropped
		}

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting commands and shuts the consumer down according to
// the drain policy, then waits for the consumer to exit. It is safe to call
// more than once; every waiting call returns the same result.
//
// Called from an action or the error handler, Close only initiates the
// shutdown and returns nil; Done reports when the consumer has exited.
func (d *Deferred[S, E]) Close() error {
	d.closeOnce.Do(func() {
		d.sendMu.Lock()
		d.closed.Store(true)
		close(d.queue.in)
		d.sendMu.Unlock()

		if !d.options.drainOnClose {
			d.cancel()
		}
	})

	if d.onConsumer() {
		return nil
	}

	<-d.done
	d.cancel()

	return d.closeErr
}

// Done is closed once the consumer goroutine has exited.
func (d *Deferred[S, E]) Done() <-chan struct{} {
	return d.done
}

// Pending returns the number of commands queued or in flight.
func (d *Deferred[S, E]) Pending() int {
	return d.idle.count()
}

// Processed returns the number of commands applied so far.
func (d *Deferred[S, E]) Processed() uint64 {
	return d.processed.Load()
}

// CurrentState returns the state observed after the last applied command.
func (d *Deferred[S, E]) CurrentState() S {
	return *d.state.Load()
}

// Inner returns the wrapped engine. Its views are safe to read; posting to
// it directly bypasses the queue and is not.
func (d *Deferred[S, E]) Inner() *Engine[S, E] {
	return d.inner
}

// InitialState returns the initial state of the inner engine.
func (d *Deferred[S, E]) InitialState() S {
	return d.inner.InitialState()
}

// Name returns the machine name.
func (d *Deferred[S, E]) Name() string {
	return d.inner.Name()
}

// History returns the inner engine's transition log, which is safe to read
// while the consumer appends to it.
func (d *Deferred[S, E]) History() *History[S, E] {
	return d.inner.History()
}

// Table returns a read-only view of the transition table.
func (d *Deferred[S, E]) Table() TableView[S, E] { //nolint:ireturn
	return d.inner.Table()
}

// Guards returns a read-only view of the guard registry.
func (d *Deferred[S, E]) Guards() GuardView[S, E] { //nolint:ireturn
	return d.inner.Guards()
}

// EnterActions returns a read-only view of the enter action registry.
func (d *Deferred[S, E]) EnterActions() ActionView[S, E] { //nolint:ireturn
	return d.inner.EnterActions()
}

// LeaveActions returns a read-only view of the leave action registry.
func (d *Deferred[S, E]) LeaveActions() ActionView[S, E] { //nolint:ireturn
	return d.inner.LeaveActions()
}

func (d *Deferred[S, E]) enqueue(ctx context.Context, cmd command[S, E]) error {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()

	if d.closed.Load() {
		return ErrDeferredClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	d.track(d.idle.add())

	select {
	case d.queue.in <- cmd:
		return nil
	case <-ctx.Done():
		d.track(d.idle.done())

		return ctx.Err()
	case <-d.stop:
		d.track(d.idle.done())

		return ErrDeferredClosed
	case <-d.done:
		d.track(d.idle.done())

		return ErrDeferredClosed
	}
}

func (d *Deferred[S, E]) run(ctx context.Context) {
	d.consumer.Store(goroutineID())

	// unapplied counts a command taken off the queue after cancellation.
	var unapplied int

	defer close(d.done)

	defer func() {
		// Producers still blocked in enqueue when the pump stops get
		// ErrDeferredClosed and are not counted here.
		dropped := unapplied + <-d.queue.leftover

		if dropped > 0 {
			d.dropped.Add(int64(dropped))
			d.closeErr = fmt.Errorf("%w: %d", ErrCommandsDropped, dropped)

			if d.inner.metrics {
				deferredProcessed.WithLabelValues(d.inner.machineLabel, outcomeDropped).Add(float64(dropped))
			}
		}

		// after the count, so AwaitIdle observes it once unblocked
		d.idle.reset()
		d.track(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-d.queue.out:
			if !ok {
				return
			}

			if ctx.Err() != nil {
				unapplied++

				return
			}

			d.apply(ctx, cmd)
		}
	}
}

func (d *Deferred[S, E]) apply(ctx context.Context, cmd command[S, E]) {
	var err error

	switch cmd.kind {
	case commandPost:
		_, err = d.inner.Post(ctx, cmd.stimulus)
	case commandOverride:
		err = d.inner.OverrideState(ctx, cmd.state)
	}

	current := d.inner.CurrentState()
	d.state.Store(&current)
	d.processed.Inc()

	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError

		if d.inner.logger != nil {
			d.inner.logger.CommandFailed(ctx, d.inner.name, err)
		}

		if d.options.onError != nil {
			d.options.onError(ctx, err)
		}
	}

	if d.inner.metrics {
		deferredProcessed.WithLabelValues(d.inner.machineLabel, outcome).Inc()
	}

	d.track(d.idle.done())
}

// onConsumer reports whether the caller runs on the consumer goroutine,
// i.e. inside an action or the error handler.
func (d *Deferred[S, E]) onConsumer() bool {
	id := d.consumer.Load()

	return id != 0 && id == goroutineID()
}

// goroutineID parses the calling goroutine's id from the first line of its
// stack trace, which reads "goroutine 42 [running]:".
func goroutineID() uint64 {
	var buf [64]byte

	n := runtime.Stack(buf[:], false)

	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}

	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}

	return id
}

func (d *Deferred[S, E]) track(pending int) {
	if d.inner.metrics {
		deferredPending.WithLabelValues(d.inner.machineLabel).Set(float64(pending))
	}
}

// idleTracker counts pending commands and exposes a channel that is closed
// whenever the count is zero.
type idleTracker struct {
	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

func newIdleTracker() *idleTracker {
	idle := make(chan struct{})
	close(idle)

	return &idleTracker{idle: idle}
}

func (t *idleTracker) add() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == 0 {
		t.idle = make(chan struct{})
	}

	t.pending++

	return t.pending
}

func (t *idleTracker) done() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == 0 {
		return 0
	}

	t.pending--
	if t.pending == 0 {
		close(t.idle)
	}

	return t.pending
}

// reset forgets every pending command.
func (t *idleTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending > 0 {
		t.pending = 0
		close(t.idle)
	}
}

func (t *idleTracker) wait() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.idle
}

func (t *idleTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.pending
}
